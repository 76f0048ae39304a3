package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/contactkeval/iv-surface/internal/chain"
	"github.com/contactkeval/iv-surface/internal/surface"
)

const (
	CSVFile  = "iv_surface.csv"
	JSONFile = "iv_surface.json"
)

// csvRow is the flat export form of an annotated row. Numbers are fixed
// point strings so the file diffs cleanly between runs.
type csvRow struct {
	Contract          string `csv:"contract"`
	Type              string `csv:"type"`
	Expiration        string `csv:"expiration"`
	Strike            string `csv:"strike"`
	Bid               string `csv:"bid"`
	Ask               string `csv:"ask"`
	Mid               string `csv:"mid"`
	T                 string `csv:"t"`
	Moneyness         string `csv:"moneyness"`
	ImpliedVolatility string `csv:"implied_volatility"` // empty when absent
	Status            string `csv:"status"`
	Reason            string `csv:"reason"`
}

// Document is the JSON export of one run.
type Document struct {
	Ticker       string         `json:"ticker"`
	RunID        string         `json:"run_id"`
	EvaluatedAt  time.Time      `json:"evaluated_at"`
	Spot         float64        `json:"spot"`
	RiskFreeRate float64        `json:"risk_free_rate"`
	Summary      chain.Summary  `json:"summary"`
	Rows         chain.Rows     `json:"rows"`
	Views        *surface.Views `json:"views,omitempty"`
}

// NewDocument assembles the JSON export for a batch result.
func NewDocument(ticker string, res *chain.Result, views *surface.Views) Document {
	return Document{
		Ticker:       ticker,
		RunID:        res.RunID,
		EvaluatedAt:  res.EvaluatedAt,
		Spot:         res.Spot,
		RiskFreeRate: res.RiskFreeRate,
		Summary:      res.Summary,
		Rows:         res.Rows,
		Views:        views,
	}
}

// fixed formats v with a fixed number of decimals. Non-finite values,
// which decimal cannot represent, become an empty cell.
func fixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

func toCSVRows(rows chain.Rows) []*csvRow {
	out := make([]*csvRow, 0, len(rows))
	for _, r := range rows {
		iv := ""
		if r.HasIV() {
			iv = fixed(r.IV(), 6)
		}
		out = append(out, &csvRow{
			Contract:          r.Contract,
			Type:              r.Type.String(),
			Expiration:        r.Expiration.Format("2006-01-02"),
			Strike:            fixed(r.Strike, 2),
			Bid:               fixed(r.Bid, 4),
			Ask:               fixed(r.Ask, 4),
			Mid:               fixed(r.Mid, 4),
			T:                 fixed(r.T, 6),
			Moneyness:         fixed(r.Moneyness, 4),
			ImpliedVolatility: iv,
			Status:            string(r.Status),
			Reason:            r.Reason,
		})
	}
	return out
}

// WriteCSV writes every row, solved or not, in input order.
func WriteCSV(rows chain.Rows, w io.Writer) error {
	records := toCSVRows(rows)
	if err := gocsv.Marshal(&records, w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteJSON writes doc as indented JSON.
func WriteJSON(doc Document, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteFiles writes iv_surface.csv and iv_surface.json into outdir,
// creating it when needed.
func WriteFiles(doc Document, outdir string) (csvPath, jsonPath string, err error) {
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return "", "", err
	}

	csvPath = filepath.Join(outdir, CSVFile)
	if err := writeFile(csvPath, func(w io.Writer) error { return WriteCSV(doc.Rows, w) }); err != nil {
		return "", "", err
	}

	jsonPath = filepath.Join(outdir, JSONFile)
	if err := writeFile(jsonPath, func(w io.Writer) error { return WriteJSON(doc, w) }); err != nil {
		return "", "", err
	}
	return csvPath, jsonPath, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
