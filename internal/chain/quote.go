// Package chain turns a table of listed option quotes into an IV-annotated
// table.
//
// Responsibilities:
//   - Normalize raw quotes (time to expiry in years, bid/ask mid)
//   - Decide per row whether a solve is attempted at all
//   - Run the IV solver per row and classify every failure
//   - Summarize outcomes so callers can report failure rates
//
// Design notes:
//   - The evaluation time is an explicit input; nothing here reads the clock
//   - Input tables are never mutated; ComputeIV returns a new table
//   - Rows are independent, so the batch may fan out across workers
package chain

import (
	"math"
	"sort"
	"time"

	"github.com/contactkeval/iv-surface/internal/pricing"
)

// DaysPerYear is the day-count denominator for time to expiry.
const DaysPerYear = 365.0

// OptionQuote is one row of the raw option chain.
// Identity is the tuple (Strike, Expiration, Type).
type OptionQuote struct {
	Contract     string             `json:"contract,omitempty"` // e.g. O:AAPL250117C00150000
	Strike       float64            `json:"strike"`
	Expiration   time.Time          `json:"expiration"`
	Type         pricing.OptionType `json:"type"`
	Bid          float64            `json:"bid"`
	Ask          float64            `json:"ask"`
	Volume       float64            `json:"volume,omitempty"`
	OpenInterest float64            `json:"open_interest,omitempty"`
}

// Mid returns the bid/ask midpoint.
func (q OptionQuote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// TimeToExpiry returns years between evalTime and expiration, counting whole
// elapsed days only. An expiration on or before the evaluation day yields a
// value <= 0.
func TimeToExpiry(expiration, evalTime time.Time) float64 {
	days := math.Floor(expiration.Sub(evalTime).Hours() / 24)
	return days / DaysPerYear
}

// Normalize derives the solver inputs for one quote.
func Normalize(q OptionQuote, evalTime time.Time) (T, mid float64) {
	return TimeToExpiry(q.Expiration, evalTime), q.Mid()
}

// Status is the per-row outcome of a batch.
type Status string

const (
	StatusSolved         Status = "solved"
	StatusMissingInput   Status = "missing_input"
	StatusNoBracket      Status = "no_bracketing_root"
	StatusNonConvergence Status = "non_convergence"
	StatusDomainError    Status = "domain_error"
)

// Statuses lists every Status in reporting order.
var Statuses = []Status{
	StatusSolved,
	StatusMissingInput,
	StatusNoBracket,
	StatusNonConvergence,
	StatusDomainError,
}

// Row is an annotated quote.
type Row struct {
	OptionQuote
	T                 float64  `json:"t"`
	Mid               float64  `json:"mid"`
	Moneyness         float64  `json:"moneyness"` // spot / strike
	ImpliedVolatility *float64 `json:"implied_volatility"`
	Status            Status   `json:"status"`
	Reason            string   `json:"reason,omitempty"`
}

// HasIV reports whether the solver produced a value for this row.
func (r Row) HasIV() bool {
	return r.ImpliedVolatility != nil
}

// IV returns the implied volatility, or NaN when absent. Intended for
// display code that has already filtered with HasIV.
func (r Row) IV() float64 {
	if r.ImpliedVolatility == nil {
		return math.NaN()
	}
	return *r.ImpliedVolatility
}

// Rows is an ordered annotated table.
type Rows []Row

// Solved returns the rows that carry an implied volatility, in order.
func (rows Rows) Solved() Rows {
	out := make(Rows, 0, len(rows))
	for _, r := range rows {
		if r.HasIV() {
			out = append(out, r)
		}
	}
	return out
}

// OfType returns the rows of the given option type, in order.
func (rows Rows) OfType(t pricing.OptionType) Rows {
	out := make(Rows, 0, len(rows))
	for _, r := range rows {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// Expirations returns the distinct expirations, ascending.
func (rows Rows) Expirations() []time.Time {
	seen := map[string]struct{}{}
	var out []time.Time
	for _, r := range rows {
		key := r.Expiration.Format("2006-01-02")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r.Expiration)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Strikes returns the distinct strikes, ascending.
func (rows Rows) Strikes() []float64 {
	seen := map[float64]struct{}{}
	var out []float64
	for _, r := range rows {
		if _, ok := seen[r.Strike]; ok {
			continue
		}
		seen[r.Strike] = struct{}{}
		out = append(out, r.Strike)
	}
	sort.Float64s(out)
	return out
}
