package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceReferenceValues(t *testing.T) {
	tests := []struct {
		name     string
		optType  OptionType
		S, K, T  float64
		r, sigma float64
		expected float64
		tol      float64
	}{
		{"atm call r=1%", Call, 100, 100, 1, 0.01, 0.2, 8.433, 1e-3},
		{"atm call r=5%", Call, 100, 100, 1, 0.05, 0.2, 10.4506, 1e-4},
		{"atm put r=5%", Put, 100, 100, 1, 0.05, 0.2, 5.5735, 1e-4},
		{"itm call hull 15.6", Call, 42, 40, 0.5, 0.1, 0.2, 4.7594, 5e-4},
		{"otm put hull 15.6", Put, 42, 40, 0.5, 0.1, 0.2, 0.8086, 5e-4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			price, err := Price(tc.optType, tc.S, tc.K, tc.T, tc.r, tc.sigma)
			require.NoError(t, err)
			assert.InDelta(t, tc.expected, price, tc.tol)
		})
	}
}

func TestPricePutCallParity(t *testing.T) {
	cases := []struct{ S, K, T, r, sigma float64 }{
		{100, 100, 1, 0.01, 0.2},
		{100, 80, 0.25, 0.03, 0.45},
		{2500, 3000, 2, 0.2, 0.05},
		{1, 5, 0.001, 0, 3},
		{9000, 10000, 5, 0.1, 1.2},
	}

	for _, c := range cases {
		call, err := Price(Call, c.S, c.K, c.T, c.r, c.sigma)
		require.NoError(t, err)
		put, err := Price(Put, c.S, c.K, c.T, c.r, c.sigma)
		require.NoError(t, err)

		lhs := call - put
		rhs := c.S - c.K*math.Exp(-c.r*c.T)
		assert.InDelta(t, rhs, lhs, 1e-6, "parity S=%v K=%v T=%v", c.S, c.K, c.T)
	}
}

func TestPriceMonotoneInSigma(t *testing.T) {
	for _, optType := range []OptionType{Call, Put} {
		prev := -1.0
		for sigma := 0.05; sigma <= 3.0; sigma += 0.05 {
			p, err := Price(optType, 100, 110, 0.5, 0.02, sigma)
			require.NoError(t, err)
			assert.Greater(t, p, prev, "%s price not increasing at sigma=%.2f", optType, sigma)
			prev = p
		}
	}
}

func TestPriceDomainErrors(t *testing.T) {
	tests := []struct {
		name    string
		optType OptionType
		S, K, T float64
		sigma   float64
		r       float64
		param   string
	}{
		{"zero time", Call, 100, 100, 0, 0.2, 0.01, "time"},
		{"negative time", Put, 100, 100, -0.1, 0.2, 0.01, "time"},
		{"zero strike", Call, 100, 0, 1, 0.2, 0.01, "strike"},
		{"zero spot", Call, 0, 100, 1, 0.2, 0.01, "spot"},
		{"zero sigma", Put, 100, 100, 1, 0, 0.01, "sigma"},
		{"nan sigma", Call, 100, 100, 1, math.NaN(), 0.01, "sigma"},
		{"inf strike", Call, 100, math.Inf(1), 1, 0.2, 0.01, "strike"},
		{"nan rate", Call, 100, 100, 1, 0.2, math.NaN(), "rate"},
		{"unknown type", OptionType(0), 100, 100, 1, 0.2, 0.01, "type"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			price, err := Price(tc.optType, tc.S, tc.K, tc.T, tc.r, tc.sigma)
			require.Error(t, err)
			assert.Zero(t, price)

			var domainErr *DomainError
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, tc.param, domainErr.Param)
		})
	}
}

func TestParseOptionType(t *testing.T) {
	for in, want := range map[string]OptionType{"call": Call, "C": Call, " Put ": Put, "p": Put} {
		got, err := ParseOptionType(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseOptionType("straddle")
	assert.Error(t, err)

	var ot OptionType
	require.NoError(t, ot.UnmarshalText([]byte("PUT")))
	assert.Equal(t, Put, ot)

	b, err := Call.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "call", string(b))

	_, err = OptionType(7).MarshalText()
	assert.Error(t, err)
}
