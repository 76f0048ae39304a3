package pricing

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImpliedVolatilityConcreteScenario(t *testing.T) {
	price, err := Price(Call, 100, 100, 1, 0.01, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, 8.433, price, 1e-3)

	iv, err := ImpliedVolatility(price, 100, 100, 1, 0.01, Call)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, iv, 1e-4)
}

func TestImpliedVolatilityRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		S := 10 + rng.Float64()*990
		K := S * (0.85 + rng.Float64()*0.3)
		T := 0.25 + rng.Float64()*1.75
		r := rng.Float64() * 0.1
		sigma := 0.1 + rng.Float64()*1.4
		optType := Call
		if i%2 == 1 {
			optType = Put
		}

		price, err := Price(optType, S, K, T, r, sigma)
		require.NoError(t, err)

		iv, err := ImpliedVolatility(price, S, K, T, r, optType)
		require.NoError(t, err, "S=%v K=%v T=%v r=%v sigma=%v %s", S, K, T, r, sigma, optType)
		assert.InDelta(t, sigma, iv, 1e-4, "S=%v K=%v T=%v r=%v %s", S, K, T, r, optType)
	}
}

func TestImpliedVolatilityRoundTripGrid(t *testing.T) {
	// Strikes away from the money only where vega is still material.
	cases := []struct {
		sigma   float64
		strikes []float64
	}{
		{0.01, []float64{100}},
		{0.1, []float64{90, 100, 110}},
		{0.35, []float64{80, 100, 120}},
		{1, []float64{50, 100, 200}},
		{2, []float64{50, 100, 200}},
		{3, []float64{50, 100, 200}},
	}

	for _, c := range cases {
		for _, K := range c.strikes {
			for _, optType := range []OptionType{Call, Put} {
				price, err := Price(optType, 100, K, 1, 0, c.sigma)
				require.NoError(t, err)

				iv, err := ImpliedVolatility(price, 100, K, 1, 0, optType)
				require.NoError(t, err, "sigma=%v K=%v %s", c.sigma, K, optType)
				assert.InDelta(t, c.sigma, iv, 1e-4, "sigma=%v K=%v %s", c.sigma, K, optType)
			}
		}
	}
}

func TestImpliedVolatilityUnsolvable(t *testing.T) {
	t.Run("price above bracket maximum", func(t *testing.T) {
		maxPrice, err := Price(Call, 100, 100, 1, 0.01, SigmaMax)
		require.NoError(t, err)

		_, err = ImpliedVolatility(maxPrice+50, 100, 100, 1, 0.01, Call)
		assert.ErrorIs(t, err, ErrNoBracketingRoot)
	})

	t.Run("price far above spot", func(t *testing.T) {
		_, err := ImpliedVolatility(1000, 100, 100, 1, 0.01, Call)
		assert.ErrorIs(t, err, ErrNoBracketingRoot)
	})

	t.Run("price below intrinsic floor", func(t *testing.T) {
		// deep ITM call worth at least S - K*exp(-rT) ~ 50.5
		_, err := ImpliedVolatility(10, 150, 100, 1, 0.01, Call)
		assert.ErrorIs(t, err, ErrNoBracketingRoot)
	})

	t.Run("negative price", func(t *testing.T) {
		_, err := ImpliedVolatility(-1, 100, 100, 1, 0.01, Put)
		assert.ErrorIs(t, err, ErrNoBracketingRoot)
	})
}

func TestImpliedVolatilityDomainErrors(t *testing.T) {
	tests := []struct {
		name        string
		marketPrice float64
		S, K, T     float64
		param       string
	}{
		{"zero time", 5, 100, 100, 0, "time"},
		{"negative time", 5, 100, 100, -0.5, "time"},
		{"zero strike", 5, 100, 0, 1, "strike"},
		{"nan price", math.NaN(), 100, 100, 1, "market price"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			iv, err := ImpliedVolatility(tc.marketPrice, tc.S, tc.K, tc.T, 0.01, Call)
			require.Error(t, err)
			assert.Zero(t, iv)

			var domainErr *DomainError
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, tc.param, domainErr.Param)
			assert.False(t, errors.Is(err, ErrNoBracketingRoot))
		})
	}
}

func TestImpliedVolatilityStaysInsideBracket(t *testing.T) {
	for _, K := range []float64{50, 80, 100, 120, 200} {
		price, err := Price(Put, 100, K, 0.5, 0.03, 0.6)
		require.NoError(t, err)

		iv, err := ImpliedVolatility(price, 100, K, 0.5, 0.03, Put)
		require.NoError(t, err)
		assert.Greater(t, iv, SigmaMin)
		assert.LessOrEqual(t, iv, SigmaMax)
	}
}
