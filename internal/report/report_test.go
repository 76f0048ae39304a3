package report

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/iv-surface/internal/chain"
	"github.com/contactkeval/iv-surface/internal/pricing"
	"github.com/contactkeval/iv-surface/internal/surface"
	"github.com/contactkeval/iv-surface/internal/testutil"
)

var (
	evalTime = time.Date(2025, 1, 2, 16, 0, 0, 0, time.UTC)
	exp      = time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC)
)

func fixtureResult() *chain.Result {
	iv := 0.2
	iv2 := 0.215
	rows := chain.Rows{
		{
			OptionQuote: chain.OptionQuote{Contract: "O:AAPL250117C00100000", Strike: 100, Expiration: exp, Type: pricing.Call, Bid: 4, Ask: 4.5},
			T:           15.0 / 365, Mid: 4.25, Moneyness: 1, ImpliedVolatility: &iv, Status: chain.StatusSolved,
		},
		{
			OptionQuote: chain.OptionQuote{Contract: "O:AAPL250117P00095000", Strike: 95, Expiration: exp, Type: pricing.Put},
			T:           15.0 / 365, Moneyness: 100.0 / 95, Status: chain.StatusMissingInput,
			Reason: "missing input: T=0.041096 mid=0.000000",
		},
		{
			OptionQuote: chain.OptionQuote{Contract: "O:AAPL250117C00105000", Strike: 105, Expiration: exp, Type: pricing.Call, Bid: 1.5, Ask: 1.7},
			T:           15.0 / 365, Mid: 1.6, Moneyness: 100.0 / 105, ImpliedVolatility: &iv2, Status: chain.StatusSolved,
		},
	}
	return &chain.Result{
		RunID:        "run-1",
		EvaluatedAt:  evalTime,
		Spot:         100,
		RiskFreeRate: 0.01,
		Rows:         rows,
		Summary: chain.Summary{
			Total:    3,
			Counts:   map[chain.Status]int{chain.StatusSolved: 2, chain.StatusMissingInput: 1},
			Degraded: false,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(fixtureResult().Rows, &buf))

	testutil.CompareBytes(t, "iv_surface_csv", buf.Bytes())
}

func TestExportSurvivesNonFiniteQuote(t *testing.T) {
	quotes := []chain.OptionQuote{
		{Contract: "O:AAPL250117C00100000", Strike: 100, Expiration: exp, Type: pricing.Call, Bid: math.NaN(), Ask: 4.5},
		{Contract: "O:AAPL250117C00105000", Strike: 105, Expiration: exp, Type: pricing.Call, Bid: 1.5, Ask: 1.7},
	}
	res, err := chain.ComputeIV(quotes, 100, 0.01, evalTime, chain.Options{})
	require.NoError(t, err)

	var csvBuf bytes.Buffer
	require.NotPanics(t, func() { err = WriteCSV(res.Rows, &csvBuf) })
	require.NoError(t, err)
	assert.Contains(t, csvBuf.String(), ",missing_input,missing input: bid=NaN")
	assert.NotContains(t, csvBuf.String(), "NaN,")

	var jsonBuf bytes.Buffer
	require.NoError(t, WriteJSON(NewDocument("AAPL", res, nil), &jsonBuf))
	assert.Contains(t, jsonBuf.String(), `"status": "solved"`)
}

func TestFixedNonFinite(t *testing.T) {
	assert.Equal(t, "", fixed(math.NaN(), 2))
	assert.Equal(t, "", fixed(math.Inf(-1), 2))
	assert.Equal(t, "1.50", fixed(1.5, 2))
}

func TestWriteFiles(t *testing.T) {
	res := fixtureResult()
	views, err := surface.Build(res.Rows, surface.Options{Views: surface.AllViews})
	require.NoError(t, err)

	dir := t.TempDir()
	csvPath, jsonPath, err := WriteFiles(NewDocument("AAPL", res, views), dir+"/out")
	require.NoError(t, err)
	assert.FileExists(t, csvPath)

	b, err := os.ReadFile(jsonPath)
	require.NoError(t, err)

	var doc struct {
		Ticker  string `json:"ticker"`
		RunID   string `json:"run_id"`
		Summary struct {
			Total  int            `json:"total"`
			Counts map[string]int `json:"counts"`
		} `json:"summary"`
		Rows []struct {
			Type              string   `json:"type"`
			ImpliedVolatility *float64 `json:"implied_volatility"`
			Status            string   `json:"status"`
		} `json:"rows"`
		Views struct {
			Smile []json.RawMessage `json:"smile"`
		} `json:"views"`
	}
	require.NoError(t, json.Unmarshal(b, &doc))

	assert.Equal(t, "AAPL", doc.Ticker)
	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, 3, doc.Summary.Total)
	assert.Equal(t, 1, doc.Summary.Counts["missing_input"])
	require.Len(t, doc.Rows, 3)
	assert.Equal(t, "put", doc.Rows[1].Type)
	assert.Nil(t, doc.Rows[1].ImpliedVolatility)
	require.NotNil(t, doc.Rows[0].ImpliedVolatility)
	assert.Equal(t, 0.2, *doc.Rows[0].ImpliedVolatility)
	assert.Len(t, doc.Views.Smile, 1)
}

func TestRenderSummary(t *testing.T) {
	res := fixtureResult()

	var buf bytes.Buffer
	RenderSummary(&buf, "AAPL", res)
	out := buf.String()
	assert.Contains(t, out, "AAPL spot=100.00 rate=0.0100")
	assert.Contains(t, out, "missing_input")
	assert.NotContains(t, out, "WARNING")

	res.Summary.Degraded = true
	buf.Reset()
	RenderSummary(&buf, "AAPL", res)
	assert.Contains(t, buf.String(), "WARNING: 1 of 3 rows have no implied volatility (33.3% failure rate)")
}

func TestRenderViews(t *testing.T) {
	res := fixtureResult()
	views, err := surface.Build(res.Rows, surface.Options{Views: surface.AllViews})
	require.NoError(t, err)

	var buf bytes.Buffer
	RenderViews(&buf, views, res.Spot)
	out := buf.String()

	assert.Contains(t, out, "IV vs strike")
	assert.Contains(t, out, "*100.00")
	assert.Contains(t, out, "20.00%")
	assert.Contains(t, out, "21.50%")
	assert.Contains(t, out, "IV heatmap 2025-01-17")
	assert.Contains(t, out, "IV distribution by expiration")
	assert.Contains(t, out, "IV vs moneyness (S/K)")
}
