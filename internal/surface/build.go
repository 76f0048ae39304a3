package surface

import (
	"time"

	"github.com/contactkeval/iv-surface/internal/chain"
)

// Views bundles the views selected for one run. Unselected views are nil.
type Views struct {
	Smile        []Series       `json:"smile,omitempty"`
	Term         []Series       `json:"term,omitempty"`
	Heatmap      *HeatmapGrid   `json:"heatmap,omitempty"`
	Distribution []BoxStats     `json:"distribution,omitempty"`
	Points       []ScatterPoint `json:"points,omitempty"` // moneyness and scatter views
}

// Options controls Build.
type Options struct {
	Views []View
	// HeatmapExpiry is matched to a listed expiration with HeatmapMatch
	// (nearest when empty); zero means the earliest one.
	HeatmapExpiry time.Time
	HeatmapMatch  DateMatchType
	TermStrikes   int
}

// Build computes the selected views over already filtered rows.
func Build(rows chain.Rows, opts Options) (*Views, error) {
	solved := rows.Solved()
	out := &Views{}

	for _, v := range opts.Views {
		switch v {
		case ViewSmile:
			out.Smile = Smile(solved)
		case ViewTerm:
			out.Term = TermStructure(solved, opts.TermStrikes)
		case ViewHeatmap:
			expiries := solved.Expirations()
			if len(expiries) == 0 {
				continue
			}
			exp := expiries[0]
			if !opts.HeatmapExpiry.IsZero() {
				exp = MatchExpiry(opts.HeatmapExpiry, expiries, opts.HeatmapMatch)
				if exp.IsZero() {
					continue
				}
			}
			if grid, ok := Heatmap(solved, exp); ok {
				out.Heatmap = &grid
			}
		case ViewBox:
			dist, err := Distribution(solved)
			if err != nil {
				return nil, err
			}
			out.Distribution = dist
		case ViewMoneyness, ViewScatter:
			if out.Points == nil {
				out.Points = MoneynessScatter(solved)
			}
		}
	}
	return out, nil
}
