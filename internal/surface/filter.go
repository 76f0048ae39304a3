// Package surface builds the exploratory views over an IV-annotated chain:
// the volatility smile per expiration, the term structure for the lowest
// strikes, a single-expiry heatmap, per-expiry distributions and moneyness
// scatter points.
//
// Every view consumes only solved rows. Call Filter first to pick the
// option type and apply an optional expression.
package surface

import (
	"errors"
	"fmt"

	"github.com/Knetic/govaluate"

	"github.com/contactkeval/iv-surface/internal/chain"
	"github.com/contactkeval/iv-surface/internal/pricing"
)

// ErrInvalidExpression is returned by Filter for an expression that does not
// compile or does not evaluate to a boolean.
var ErrInvalidExpression = errors.New("invalid filter expression")

// Selection picks the rows the views are built from.
type Selection struct {
	// Type keeps only this option type; zero keeps both.
	Type pricing.OptionType
	// Expression is an optional boolean govaluate expression over
	// strike, iv, t, mid, moneyness, bid, ask, volume and open_interest,
	// e.g. "moneyness > 0.8 && moneyness < 1.2".
	Expression string
}

// Filter returns the solved rows matching sel, in input order.
//
// Parameters:
//   - rows: annotated batch output
//   - sel: option type and optional expression
//
// Returns:
//   - chain.Rows: matching rows with a present implied volatility
//   - error: ErrInvalidExpression if the expression does not compile or does
//     not yield a boolean
func Filter(rows chain.Rows, sel Selection) (chain.Rows, error) {
	var expr *govaluate.EvaluableExpression
	if sel.Expression != "" {
		var err error
		expr, err = govaluate.NewEvaluableExpression(sel.Expression)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
		}
	}

	if sel.Type != 0 {
		rows = rows.OfType(sel.Type)
	}

	out := make(chain.Rows, 0, len(rows))
	for _, r := range rows {
		if !r.HasIV() {
			continue
		}
		if expr != nil {
			ok, err := matches(expr, r)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func matches(expr *govaluate.EvaluableExpression, r chain.Row) (bool, error) {
	result, err := expr.Evaluate(map[string]interface{}{
		"strike":        r.Strike,
		"iv":            r.IV(),
		"t":             r.T,
		"mid":           r.Mid,
		"moneyness":     r.Moneyness,
		"bid":           r.Bid,
		"ask":           r.Ask,
		"volume":        r.Volume,
		"open_interest": r.OpenInterest,
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q is not a condition", ErrInvalidExpression, expr.String())
	}
	return b, nil
}
