package chain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/contactkeval/iv-surface/internal/logger"
	"github.com/contactkeval/iv-surface/internal/pricing"
)

// Structural failures abort the whole batch. Per-row failures never do.
var (
	ErrEmptyChain      = errors.New("option chain is empty")
	ErrSpotUnavailable = errors.New("spot price unavailable")
	ErrInvalidRate     = errors.New("invalid risk-free rate")

	// ErrMissingInput classifies rows skipped before the solver (T <= 0 or mid <= 0).
	ErrMissingInput = errors.New("missing input")
)

// DefaultFailureThreshold marks a batch degraded when half its rows fail.
const DefaultFailureThreshold = 0.5

// Options tunes batch execution. The zero value runs single-threaded with
// DefaultFailureThreshold.
type Options struct {
	Workers          int     // <= 1 runs rows sequentially
	FailureThreshold float64 // fraction of unsolved rows that marks the batch degraded
}

// Summary counts row outcomes for one batch.
type Summary struct {
	Total    int            `json:"total"`
	Counts   map[Status]int `json:"counts"`
	Degraded bool           `json:"degraded"`
}

// Solved returns the number of rows with an implied volatility.
func (s Summary) Solved() int {
	return s.Counts[StatusSolved]
}

// Failed returns the number of rows without an implied volatility.
func (s Summary) Failed() int {
	return s.Total - s.Solved()
}

// FailureRate is Failed/Total, or 0 for an empty summary.
func (s Summary) FailureRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Failed()) / float64(s.Total)
}

// Result is the annotated table plus its batch metadata.
type Result struct {
	RunID        string    `json:"run_id"`
	EvaluatedAt  time.Time `json:"evaluated_at"`
	Spot         float64   `json:"spot"`
	RiskFreeRate float64   `json:"risk_free_rate"`
	Rows         Rows      `json:"rows"`
	Summary      Summary   `json:"summary"`
}

// ComputeIV annotates every quote with its Black-Scholes implied volatility.
//
// Parameters:
//   - quotes: raw chain rows (not modified)
//   - spot: underlying price shared by the whole batch
//   - rate: risk-free rate shared by the whole batch
//   - evalTime: evaluation instant used for every row's time to expiry
//   - opts: worker count and degraded-batch threshold
//
// Returns:
//   - *Result: rows in input order, each with an IV or an explicit failure status
//   - error: ErrEmptyChain, ErrSpotUnavailable or ErrInvalidRate; row-level
//     failures are reported in Result.Summary instead
func ComputeIV(quotes []OptionQuote, spot, rate float64, evalTime time.Time, opts Options) (*Result, error) {
	if len(quotes) == 0 {
		return nil, ErrEmptyChain
	}
	if !(spot > 0) || math.IsInf(spot, 0) {
		return nil, fmt.Errorf("%w: spot=%v", ErrSpotUnavailable, spot)
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil, fmt.Errorf("%w: rate=%v", ErrInvalidRate, rate)
	}

	runID := uuid.NewString()
	logger.Infof(
		"event=batch_start run=%s rows=%d spot=%.4f rate=%.4f eval=%s workers=%d",
		runID, len(quotes), spot, rate, evalTime.Format(time.RFC3339), opts.Workers,
	)

	rows := make(Rows, len(quotes))
	if opts.Workers <= 1 {
		for i := range quotes {
			rows[i] = annotate(quotes[i], spot, rate, evalTime)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(opts.Workers)
		for i := range quotes {
			i := i
			g.Go(func() error {
				rows[i] = annotate(quotes[i], spot, rate, evalTime)
				return nil
			})
		}
		_ = g.Wait() // annotate never fails; errors live in Row.Status
	}

	threshold := opts.FailureThreshold
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	summary := summarize(rows, threshold)

	logger.Infof(
		"event=batch_done run=%s solved=%d failed=%d failure_rate=%.2f",
		runID, summary.Solved(), summary.Failed(), summary.FailureRate(),
	)
	if summary.Degraded {
		logger.Warnf(
			"event=batch_degraded run=%s failed=%d/%d counts=%v (check for crossed or stale quotes, or a wrong ticker)",
			runID, summary.Failed(), summary.Total, summary.Counts,
		)
	}

	return &Result{
		RunID:        runID,
		EvaluatedAt:  evalTime,
		Spot:         spot,
		RiskFreeRate: rate,
		Rows:         rows,
		Summary:      summary,
	}, nil
}

// annotate builds the output row for a single quote.
func annotate(q OptionQuote, spot, rate float64, evalTime time.Time) Row {
	q, bad := usable(q)
	T, mid := Normalize(q, evalTime)
	row := Row{
		OptionQuote: q,
		T:           T,
		Mid:         mid,
		Moneyness:   moneyness(spot, q.Strike),
	}

	if bad != "" {
		row.Mid = 0
		row.Status = StatusMissingInput
		row.Reason = fmt.Sprintf("%v: %s", ErrMissingInput, bad)
		logger.Debugf("event=row_skipped strike=%.2f exp=%s type=%s reason=%q",
			q.Strike, q.Expiration.Format("2006-01-02"), q.Type, bad)
		return row
	}
	if !(T > 0) || !(mid > 0) {
		row.Status = StatusMissingInput
		row.Reason = fmt.Sprintf("%v: T=%.6f mid=%.6f", ErrMissingInput, T, mid)
		logger.Tracef("event=row_skipped strike=%.2f exp=%s type=%s T=%.4f mid=%.4f",
			q.Strike, q.Expiration.Format("2006-01-02"), q.Type, T, mid)
		return row
	}

	iv, err := pricing.ImpliedVolatility(mid, spot, q.Strike, T, rate, q.Type)
	if err != nil {
		row.Status = classify(err)
		row.Reason = err.Error()
		logger.Debugf("event=row_unsolved strike=%.2f exp=%s type=%s status=%s err=%v",
			q.Strike, q.Expiration.Format("2006-01-02"), q.Type, row.Status, err)
		return row
	}

	row.ImpliedVolatility = &iv
	row.Status = StatusSolved
	return row
}

// usable zeroes the numeric fields of q that cannot be priced or encoded
// (non-finite values, negative bid or ask) and describes them. An empty
// description means the quote is clean.
func usable(q OptionQuote) (OptionQuote, string) {
	var bad []string
	check := func(name string, v *float64, allowNegative bool) {
		switch {
		case math.IsNaN(*v) || math.IsInf(*v, 0):
			bad = append(bad, fmt.Sprintf("%s=%v", name, *v))
			*v = 0
		case !allowNegative && *v < 0:
			bad = append(bad, fmt.Sprintf("%s=%v", name, *v))
		}
	}
	check("bid", &q.Bid, false)
	check("ask", &q.Ask, false)
	check("strike", &q.Strike, true)
	check("volume", &q.Volume, true)
	check("open_interest", &q.OpenInterest, true)
	return q, strings.Join(bad, " ")
}

// classify maps solver errors onto row statuses.
func classify(err error) Status {
	var domainErr *pricing.DomainError
	switch {
	case errors.As(err, &domainErr):
		return StatusDomainError
	case errors.Is(err, pricing.ErrNoBracketingRoot):
		return StatusNoBracket
	default:
		return StatusNonConvergence
	}
}

// moneyness is spot/strike, or 0 for a non-positive strike so rows stay JSON encodable.
func moneyness(spot, strike float64) float64 {
	if !(strike > 0) {
		return 0
	}
	return spot / strike
}

func summarize(rows Rows, threshold float64) Summary {
	s := Summary{Total: len(rows), Counts: make(map[Status]int, len(Statuses))}
	for _, st := range Statuses {
		s.Counts[st] = 0
	}
	for _, r := range rows {
		s.Counts[r.Status]++
	}
	s.Degraded = s.FailureRate() >= threshold
	return s
}
