package pricing

import (
	"errors"
	"math"
)

var (
	// ErrNoBracketingRoot is returned when f(a) and f(b) share a sign.
	ErrNoBracketingRoot = errors.New("no bracketing root")
	// ErrNonConvergence is returned when the iteration budget runs out.
	ErrNonConvergence = errors.New("root finder did not converge")
)

const (
	// DefaultXTol and DefaultMaxIter match the usual brentq defaults.
	DefaultXTol    = 2e-12
	DefaultMaxIter = 100

	machEps = 2.220446049250313e-16
)

// Brent finds a root of f in [a, b] using Brent's method (inverse quadratic
// interpolation guarded by bisection).
//
// Parameters:
//   - f: continuous function with opposite signs at a and b
//   - a, b: bracket endpoints
//   - xtol: absolute tolerance on the root location
//   - maxIter: iteration budget
//
// Returns:
//
//	The root, ErrNoBracketingRoot if f(a) and f(b) have the same sign (or
//	either is NaN), or ErrNonConvergence once maxIter is exhausted; the last
//	iterate is returned alongside ErrNonConvergence.
func Brent(f func(float64) float64, a, b, xtol float64, maxIter int) (float64, error) {
	fa, fb := f(a), f(b)
	if math.IsNaN(fa) || math.IsNaN(fb) {
		return 0, ErrNoBracketingRoot
	}
	if fa == 0 {
		return a, nil
	}
	if fb == 0 {
		return b, nil
	}
	if (fa > 0) == (fb > 0) {
		return 0, ErrNoBracketingRoot
	}

	c, fc := b, fb
	var d, e float64

	for i := 0; i < maxIter; i++ {
		if (fb > 0) == (fc > 0) {
			// keep the root between b and c
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}

		tol := 2*machEps*math.Abs(b) + 0.5*xtol
		xm := 0.5 * (c - b)
		if math.Abs(xm) <= tol || fb == 0 {
			return b, nil
		}

		if math.Abs(e) >= tol && math.Abs(fa) > math.Abs(fb) {
			var p, q float64
			s := fb / fa
			if a == c {
				// secant step
				p = 2 * xm * s
				q = 1 - s
			} else {
				// inverse quadratic interpolation
				q = fa / fc
				r := fb / fc
				p = s * (2*xm*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)

			if 2*p < math.Min(3*xm*q-math.Abs(tol*q), math.Abs(e*q)) {
				e = d
				d = p / q
			} else {
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}

		a, fa = b, fb
		if math.Abs(d) > tol {
			b += d
		} else {
			b += math.Copysign(tol, xm)
		}
		fb = f(b)
		if math.IsNaN(fb) {
			return b, ErrNonConvergence
		}
	}

	return b, ErrNonConvergence
}
