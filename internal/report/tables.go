package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/contactkeval/iv-surface/internal/chain"
	"github.com/contactkeval/iv-surface/internal/surface"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)
	return table
}

func pct(iv float64) string {
	return fixed(iv*100, 2) + "%"
}

// RenderSummary prints the run header and the per-status row counts.
func RenderSummary(w io.Writer, ticker string, res *chain.Result) {
	fmt.Fprintf(w, "%s spot=%s rate=%s evaluated=%s run=%s\n",
		ticker, fixed(res.Spot, 2), fixed(res.RiskFreeRate, 4),
		res.EvaluatedAt.Format("2006-01-02 15:04"), res.RunID)

	table := newTable(w, "status", "rows")
	for _, st := range chain.Statuses {
		table.Append([]string{string(st), fmt.Sprintf("%d", res.Summary.Counts[st])})
	}
	table.SetFooter([]string{"total", fmt.Sprintf("%d", res.Summary.Total)})
	table.Render()

	if res.Summary.Degraded {
		fmt.Fprintf(w, "WARNING: %d of %d rows have no implied volatility (%s%% failure rate)\n",
			res.Summary.Failed(), res.Summary.Total, fixed(res.Summary.FailureRate()*100, 1))
	}
}

// RenderSmile prints strikes down and expirations across. The strike
// nearest the spot is starred.
func RenderSmile(w io.Writer, smile []surface.Series, spot float64) {
	if len(smile) == 0 {
		return
	}

	header := []string{"strike"}
	byStrike := map[float64][]string{}
	var strikes []float64
	for i, s := range smile {
		header = append(header, s.Label)
		for _, p := range s.Points {
			cells, ok := byStrike[p.X]
			if !ok {
				cells = make([]string, len(smile))
				strikes = append(strikes, p.X)
			}
			cells[i] = pct(p.IV)
			byStrike[p.X] = cells
		}
	}
	sort.Float64s(strikes)
	atm, _ := surface.NearestStrike(strikes, spot)

	fmt.Fprintln(w, "IV vs strike")
	table := newTable(w, header...)
	for _, k := range strikes {
		label := fixed(k, 2)
		if k == atm {
			label = "*" + label
		}
		table.Append(append([]string{label}, byStrike[k]...))
	}
	table.Render()
}

// RenderTerm prints one line per strike with IV at each time to expiry.
func RenderTerm(w io.Writer, term []surface.Series) {
	if len(term) == 0 {
		return
	}

	fmt.Fprintln(w, "IV vs time to expiry")
	table := newTable(w, "strike", "term structure (T: iv)")
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, s := range term {
		parts := make([]string, 0, len(s.Points))
		for _, p := range s.Points {
			parts = append(parts, fixed(p.X, 3)+": "+pct(p.IV))
		}
		table.Append([]string{fixed(s.Strike, 2), strings.Join(parts, "  ")})
	}
	table.Render()
}

// RenderHeatmap prints a single-expiration IV row laid out by strike.
func RenderHeatmap(w io.Writer, grid *surface.HeatmapGrid) {
	if grid == nil {
		return
	}

	fmt.Fprintf(w, "IV heatmap %s\n", grid.Expiration.Format("2006-01-02"))
	table := newTable(w, "strike", "iv")
	for i, k := range grid.Strikes {
		table.Append([]string{fixed(k, 2), pct(grid.IV[i])})
	}
	table.Render()
}

// RenderDistribution prints the per-expiration box statistics.
func RenderDistribution(w io.Writer, dist []surface.BoxStats) {
	if len(dist) == 0 {
		return
	}

	fmt.Fprintln(w, "IV distribution by expiration")
	table := newTable(w, "expiration", "n", "min", "q1", "median", "q3", "max", "mean", "std", "outliers")
	for _, d := range dist {
		table.Append([]string{
			d.Expiration.Format("2006-01-02"),
			fmt.Sprintf("%d", d.N),
			pct(d.Min), pct(d.Q1), pct(d.Median), pct(d.Q3), pct(d.Max),
			pct(d.Mean), pct(d.StdDev),
			fmt.Sprintf("%d", d.Outliers),
		})
	}
	table.Render()
}

// RenderPoints prints the moneyness scatter points.
func RenderPoints(w io.Writer, pts []surface.ScatterPoint) {
	if len(pts) == 0 {
		return
	}

	fmt.Fprintln(w, "IV vs moneyness (S/K)")
	table := newTable(w, "moneyness", "strike", "expiration", "T", "iv")
	for _, p := range pts {
		table.Append([]string{
			fixed(p.Moneyness, 4),
			fixed(p.Strike, 2),
			p.Expiration.Format("2006-01-02"),
			fixed(p.T, 4),
			pct(p.IV),
		})
	}
	table.Render()
}

// RenderViews prints every non-empty view in display order.
func RenderViews(w io.Writer, views *surface.Views, spot float64) {
	if views == nil {
		return
	}
	RenderSmile(w, views.Smile, spot)
	RenderHeatmap(w, views.Heatmap)
	RenderTerm(w, views.Term)
	RenderDistribution(w, views.Distribution)
	RenderPoints(w, views.Points)
}
