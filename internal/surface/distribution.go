package surface

import (
	"fmt"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"github.com/contactkeval/iv-surface/internal/chain"
)

// BoxStats summarises the IV distribution of one expiration.
type BoxStats struct {
	Expiration time.Time `json:"expiration"`
	N          int       `json:"n"`
	Min        float64   `json:"min"`
	Q1         float64   `json:"q1"`
	Median     float64   `json:"median"`
	Q3         float64   `json:"q3"`
	Max        float64   `json:"max"`
	Mean       float64   `json:"mean"`
	StdDev     float64   `json:"std_dev"` // sample standard deviation, 0 when N < 2
	Outliers   int       `json:"outliers"`
}

// Distribution returns box statistics per expiration, ascending.
func Distribution(rows chain.Rows) ([]BoxStats, error) {
	ivs := map[string][]float64{}
	exps := map[string]time.Time{}
	for _, r := range rows {
		if !r.HasIV() {
			continue
		}
		key := r.Expiration.Format("2006-01-02")
		ivs[key] = append(ivs[key], r.IV())
		exps[key] = r.Expiration
	}

	out := make([]BoxStats, 0, len(ivs))
	for key, data := range ivs {
		box, err := boxStats(data)
		if err != nil {
			return nil, fmt.Errorf("distribution %s: %w", key, err)
		}
		box.Expiration = exps[key]
		out = append(out, box)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Expiration.Before(out[j].Expiration) })
	return out, nil
}

func boxStats(data []float64) (BoxStats, error) {
	in := stats.Float64Data(data)
	box := BoxStats{N: len(data)}

	var err error
	if box.Min, err = stats.Min(in); err != nil {
		return box, err
	}
	if box.Max, err = stats.Max(in); err != nil {
		return box, err
	}
	if box.Median, err = stats.Median(in); err != nil {
		return box, err
	}

	if len(data) == 1 {
		box.Q1, box.Q3 = data[0], data[0]
		box.Mean = data[0]
		return box, nil
	}

	q, err := stats.Quartile(in)
	if err != nil {
		return box, err
	}
	box.Q1, box.Q3 = q.Q1, q.Q3

	outliers, err := stats.QuartileOutliers(in)
	if err != nil {
		return box, err
	}
	box.Outliers = len(outliers.Mild) + len(outliers.Extreme)

	box.Mean, box.StdDev = stat.MeanStdDev(data, nil)
	return box, nil
}
