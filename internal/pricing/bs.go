// Package pricing implements closed-form Black-Scholes valuation of European
// options and its inversion to implied volatility.
//
// Everything here is a pure function of its inputs: no clocks, no I/O and no
// shared state, so callers may evaluate many quotes concurrently.
package pricing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// DomainError reports a Pricer input outside the model's domain
// (non-positive or non-finite spot, strike, time or volatility).
type DomainError struct {
	Param string
	Value float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("pricing: %s out of domain: %v", e.Param, e.Value)
}

// Price calculates the price of a European option using the Black-Scholes model.
//
// Parameters:
//   - optType: Call or Put
//   - S: spot price of the underlying asset
//   - K: strike price of the option
//   - T: time to expiry in years
//   - r: risk-free interest rate (annual, continuously compounded)
//   - sigma: volatility of the underlying asset (annual, as a decimal)
//
// Returns:
//
//	The theoretical option value, or a *DomainError when S, K, T or sigma is
//	not strictly positive and finite, r is not finite, or optType is unknown.
//	There is no intrinsic-value fallback: T=0 never yields a price.
func Price(optType OptionType, S, K, T, r, sigma float64) (float64, error) {
	if err := checkDomain(optType, S, K, T, r, sigma); err != nil {
		return 0, err
	}
	return blackScholes(optType, S, K, T, r, sigma), nil
}

// checkDomain validates Price inputs in a fixed order so the reported
// parameter is deterministic when several are invalid.
func checkDomain(optType OptionType, S, K, T, r, sigma float64) error {
	if optType.Validate() != nil {
		return &DomainError{Param: "type", Value: float64(optType)}
	}
	for _, p := range []struct {
		name  string
		value float64
	}{
		{"spot", S},
		{"strike", K},
		{"time", T},
		{"sigma", sigma},
	} {
		if !(p.value > 0) || math.IsInf(p.value, 0) {
			return &DomainError{Param: p.name, Value: p.value}
		}
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return &DomainError{Param: "rate", Value: r}
	}
	return nil
}

// blackScholes is the unchecked closed form; callers validate inputs first.
func blackScholes(optType OptionType, S, K, T, r, sigma float64) float64 {
	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	discK := K * math.Exp(-r*T)

	if optType == Call {
		return S*normCDF(d1) - discK*normCDF(d2)
	}
	return discK*normCDF(-d2) - S*normCDF(-d1)
}

// normCDF is the standard normal cumulative distribution function.
func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}
