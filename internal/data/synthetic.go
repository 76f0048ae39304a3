package data

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/contactkeval/iv-surface/internal/chain"
	"github.com/contactkeval/iv-surface/internal/pricing"
)

// syntheticExpiryDays are the listed expirations, in days after the anchor.
var syntheticExpiryDays = []int{7, 14, 30, 60, 91, 182, 365}

// synthDataProvider implements Data Provider generating a deterministic
// chain priced off a known volatility smile.
type synthDataProvider struct {
	seed      int64
	spot      float64
	rate      float64
	anchor    time.Time
	secondary Provider
}

// NewSyntheticProvider returns a provider whose quotes are Black-Scholes
// prices under SyntheticVol. The same seed always produces the same chain.
func NewSyntheticProvider(seed int64, spot float64) *synthDataProvider {
	if spot <= 0 {
		spot = 100
	}
	return &synthDataProvider{
		seed:   seed,
		spot:   spot,
		rate:   0.01,
		anchor: time.Now().UTC().Truncate(24 * time.Hour),
	}
}

// WithAnchor pins the date the synthetic expirations and prices are measured from.
func (synthDataProv *synthDataProvider) WithAnchor(anchor time.Time) *synthDataProvider {
	synthDataProv.anchor = anchor
	return synthDataProv
}

// WithRate sets the rate the synthetic quotes are priced with.
func (synthDataProv *synthDataProvider) WithRate(rate float64) *synthDataProvider {
	synthDataProv.rate = rate
	return synthDataProv
}

func (synthDataProv *synthDataProvider) Secondary() Provider {
	return synthDataProv.secondary
}

func (synthDataProv *synthDataProvider) GetSpotPrice(ctx context.Context, underlying string) (float64, error) {
	return synthDataProv.spot, nil
}

func (synthDataProv *synthDataProvider) GetExpirations(ctx context.Context, underlying string, asOf time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, d := range syntheticExpiryDays {
		exp := synthDataProv.anchor.AddDate(0, 0, d)
		if exp.After(asOf) {
			out = append(out, exp)
		}
	}
	return out, nil
}

func (synthDataProv *synthDataProvider) GetOptionChain(ctx context.Context, underlying string, expiry time.Time) ([]chain.OptionQuote, error) {
	T := chain.TimeToExpiry(expiry, synthDataProv.anchor)
	if T <= 0 {
		return nil, nil
	}

	// per-expiry stream keeps results independent of call order
	days := expiry.Unix() / 86400
	rng := rand.New(rand.NewSource(synthDataProv.seed ^ days))

	S := synthDataProv.spot
	step := strikeStep(S)
	lo := math.Ceil(S*0.7/step) * step
	hi := math.Floor(S*1.3/step) * step

	var out []chain.OptionQuote
	for K := lo; K <= hi+step/2; K += step {
		sigma := SyntheticVol(math.Log(K/S), T)
		for _, optType := range []pricing.OptionType{pricing.Call, pricing.Put} {
			price, err := pricing.Price(optType, S, K, T, synthDataProv.rate, sigma)
			if err != nil {
				return nil, err
			}
			half := math.Max(0.005, price*(0.01+0.02*rng.Float64()))
			bid := math.Max(0, price-half)
			out = append(out, chain.OptionQuote{
				Contract:     OptionSymbolFromParts(underlying, expiry, optType, K),
				Strike:       K,
				Expiration:   expiry,
				Type:         optType,
				Bid:          bid,
				Ask:          bid + 2*half,
				Volume:       float64(rng.Intn(5000)),
				OpenInterest: float64(100 + rng.Intn(20000)),
			})
		}
	}
	return out, nil
}

// SyntheticVol is the smile the synthetic provider prices with: a skewed
// parabola in log-moneyness whose level decays with time to expiry.
func SyntheticVol(logMoneyness, T float64) float64 {
	level := 0.2 + 0.08*math.Exp(-4*T)
	return level - 0.15*logMoneyness + 0.6*logMoneyness*logMoneyness
}

// strikeStep picks a listing interval that scales with the spot.
func strikeStep(spot float64) float64 {
	switch {
	case spot < 25:
		return 0.5
	case spot < 200:
		return 2.5
	case spot < 1000:
		return 10
	default:
		return 50
	}
}
