package pricing

import (
	"fmt"
	"math"
)

// Volatility search bracket for the IV solver. 5.0 is 500% annualized vol.
const (
	SigmaMin = 1e-5
	SigmaMax = 5.0
)

// ImpliedVolatility finds sigma such that Price(optType, S, K, T, r, sigma)
// equals marketPrice, using Brent's method over [SigmaMin, SigmaMax].
//
// Parameters:
//   - marketPrice: observed option price (typically the bid/ask mid)
//   - S, K, T, r: spot, strike, years to expiry, risk-free rate
//   - optType: Call or Put
//
// Returns:
//   - float64: implied volatility in (SigmaMin, SigmaMax]
//   - error: *DomainError for invalid inputs, ErrNoBracketingRoot when the
//     price is outside what the bracket can produce, ErrNonConvergence when
//     the root finder exhausts its budget or collapses onto SigmaMin
//
// A non-nil error always means "no value"; the float is then zero and must
// not be used.
func ImpliedVolatility(marketPrice, S, K, T, r float64, optType OptionType) (float64, error) {
	if math.IsNaN(marketPrice) || math.IsInf(marketPrice, 0) {
		return 0, &DomainError{Param: "market price", Value: marketPrice}
	}
	// Validate once; the objective below runs the unchecked closed form.
	if err := checkDomain(optType, S, K, T, r, SigmaMin); err != nil {
		return 0, err
	}

	objective := func(sigma float64) float64 {
		return blackScholes(optType, S, K, T, r, sigma) - marketPrice
	}

	sigma, err := Brent(objective, SigmaMin, SigmaMax, DefaultXTol, DefaultMaxIter)
	if err != nil {
		return 0, fmt.Errorf("implied vol %s K=%.4f T=%.4f price=%.4f: %w", optType, K, T, marketPrice, err)
	}
	if sigma <= SigmaMin {
		return 0, fmt.Errorf("implied vol %s K=%.4f T=%.4f price=%.4f: root at lower bound: %w",
			optType, K, T, marketPrice, ErrNonConvergence)
	}
	return sigma, nil
}
