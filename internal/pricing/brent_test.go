package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrent(t *testing.T) {
	tests := []struct {
		name     string
		f        func(float64) float64
		a, b     float64
		expected float64
	}{
		{"linear", func(x float64) float64 { return 2*x - 3 }, 0, 5, 1.5},
		{"quadratic", func(x float64) float64 { return x*x - 2 }, 0, 2, math.Sqrt2},
		{"cubic", func(x float64) float64 { return x*x*x - x - 2 }, 1, 2, 1.5213797068045676},
		{"cosine", math.Cos, 0, 3, math.Pi / 2},
		{"reversed signs", func(x float64) float64 { return 1 - math.Exp(x) }, -1, 2, 0},
		{"root at endpoint", func(x float64) float64 { return x - 4 }, 0, 4, 4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			root, err := Brent(tc.f, tc.a, tc.b, DefaultXTol, DefaultMaxIter)
			require.NoError(t, err)
			assert.InDelta(t, tc.expected, root, 1e-10)
		})
	}
}

func TestBrentNoBracket(t *testing.T) {
	_, err := Brent(func(x float64) float64 { return x*x + 1 }, -1, 1, DefaultXTol, DefaultMaxIter)
	assert.ErrorIs(t, err, ErrNoBracketingRoot)

	_, err = Brent(func(float64) float64 { return math.NaN() }, 0, 1, DefaultXTol, DefaultMaxIter)
	assert.ErrorIs(t, err, ErrNoBracketingRoot)
}

func TestBrentIterationBudget(t *testing.T) {
	_, err := Brent(func(x float64) float64 { return x*x*x - 0.3 }, 0, 1, 0, 2)
	assert.ErrorIs(t, err, ErrNonConvergence)
}
