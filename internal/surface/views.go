package surface

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/contactkeval/iv-surface/internal/chain"
)

// DefaultTermStrikes is how many of the lowest strikes TermStructure plots.
const DefaultTermStrikes = 5

// View names one exploratory view.
type View string

const (
	ViewSmile     View = "smile"
	ViewTerm      View = "term"
	ViewHeatmap   View = "heatmap"
	ViewBox       View = "box"
	ViewMoneyness View = "moneyness"
	ViewScatter   View = "scatter"
)

// AllViews lists every view in display order.
var AllViews = []View{ViewSmile, ViewHeatmap, ViewTerm, ViewBox, ViewMoneyness, ViewScatter}

// ParseViews reads a comma separated view list; "" and "all" select every view.
func ParseViews(s string) ([]View, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "all" {
		return AllViews, nil
	}

	var out []View
	for _, part := range strings.Split(s, ",") {
		v := View(strings.TrimSpace(part))
		switch v {
		case ViewSmile, ViewTerm, ViewHeatmap, ViewBox, ViewMoneyness, ViewScatter:
			out = append(out, v)
		case "":
		default:
			return nil, fmt.Errorf("unknown view %q", part)
		}
	}
	return out, nil
}

// Point is one (x, iv) sample of a line series.
type Point struct {
	X  float64 `json:"x"`
	IV float64 `json:"iv"`
}

// Series is a labelled IV curve.
type Series struct {
	Label      string    `json:"label"`
	Expiration time.Time `json:"expiration,omitempty"`
	Strike     float64   `json:"strike,omitempty"`
	Points     []Point   `json:"points"`
}

// Smile returns IV against strike, one series per expiration (ascending),
// each sorted by strike.
func Smile(rows chain.Rows) []Series {
	byExp := map[string]*Series{}
	for _, r := range rows {
		if !r.HasIV() {
			continue
		}
		key := r.Expiration.Format("2006-01-02")
		s, ok := byExp[key]
		if !ok {
			s = &Series{Label: key, Expiration: r.Expiration}
			byExp[key] = s
		}
		s.Points = append(s.Points, Point{X: r.Strike, IV: r.IV()})
	}

	out := make([]Series, 0, len(byExp))
	for _, s := range byExp {
		sortPoints(s.Points)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Expiration.Before(out[j].Expiration) })
	return out
}

// TermStructure returns IV against time to expiry for the n lowest strikes,
// one series per strike, each sorted by T.
func TermStructure(rows chain.Rows, n int) []Series {
	if n <= 0 {
		n = DefaultTermStrikes
	}

	solved := rows.Solved()
	strikes := solved.Strikes()
	if len(strikes) > n {
		strikes = strikes[:n]
	}

	out := make([]Series, 0, len(strikes))
	for _, k := range strikes {
		s := Series{Label: fmt.Sprintf("Strike %g", k), Strike: k}
		for _, r := range solved {
			if r.Strike == k {
				s.Points = append(s.Points, Point{X: r.T, IV: r.IV()})
			}
		}
		sortPoints(s.Points)
		out = append(out, s)
	}
	return out
}

// HeatmapGrid is the IV row of one expiration laid out by strike.
type HeatmapGrid struct {
	Expiration time.Time `json:"expiration"`
	Strikes    []float64 `json:"strikes"`
	IV         []float64 `json:"iv"`
}

// Heatmap lays out the IVs of a single expiration by ascending strike.
// Duplicate strikes (calls and puts together) are averaged. ok is false when
// no solved row falls on that expiration.
func Heatmap(rows chain.Rows, expiry time.Time) (grid HeatmapGrid, ok bool) {
	want := expiry.Format("2006-01-02")

	sum := map[float64]float64{}
	cnt := map[float64]int{}
	for _, r := range rows {
		if !r.HasIV() || r.Expiration.Format("2006-01-02") != want {
			continue
		}
		sum[r.Strike] += r.IV()
		cnt[r.Strike]++
	}
	if len(cnt) == 0 {
		return HeatmapGrid{}, false
	}

	grid.Expiration = expiry
	for k := range cnt {
		grid.Strikes = append(grid.Strikes, k)
	}
	sort.Float64s(grid.Strikes)
	for _, k := range grid.Strikes {
		grid.IV = append(grid.IV, sum[k]/float64(cnt[k]))
	}
	return grid, true
}

// ScatterPoint is one solved row projected for the scatter views.
type ScatterPoint struct {
	Strike     float64   `json:"strike"`
	Moneyness  float64   `json:"moneyness"`
	IV         float64   `json:"iv"`
	T          float64   `json:"t"`
	Expiration time.Time `json:"expiration"`
}

// MoneynessScatter projects every solved row onto (spot/strike, IV), keeping
// strike, T and expiration for colouring.
func MoneynessScatter(rows chain.Rows) []ScatterPoint {
	out := make([]ScatterPoint, 0, len(rows))
	for _, r := range rows {
		if !r.HasIV() {
			continue
		}
		out = append(out, ScatterPoint{
			Strike:     r.Strike,
			Moneyness:  r.Moneyness,
			IV:         r.IV(),
			T:          r.T,
			Expiration: r.Expiration,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Moneyness < out[j].Moneyness })
	return out
}

func sortPoints(p []Point) {
	sort.SliceStable(p, func(i, j int) bool { return p[i].X < p[j].X })
}
