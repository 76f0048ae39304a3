// Package engine runs one implied volatility analysis end to end: spot and
// chain retrieval, batch IV, row selection and view building. The CLI and
// the REST server both drive it.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/contactkeval/iv-surface/internal/chain"
	"github.com/contactkeval/iv-surface/internal/config"
	"github.com/contactkeval/iv-surface/internal/data"
	"github.com/contactkeval/iv-surface/internal/logger"
	"github.com/contactkeval/iv-surface/internal/surface"
)

// Engine runs analyses for one configuration against one provider.
type Engine struct {
	cfg  *config.Config
	prov data.Provider
	now  func() time.Time
}

// Result is the outcome of a run. Batch holds every annotated row; Selected
// holds the solved rows of the configured type that passed the filter.
type Result struct {
	Ticker   string
	Batch    *chain.Result
	Selected chain.Rows
	Views    *surface.Views
}

// NewEngine returns an engine evaluating at wall-clock time.
func NewEngine(cfg *config.Config, prov data.Provider) *Engine {
	return &Engine{cfg: cfg, prov: prov, now: time.Now}
}

// WithClock replaces the evaluation time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Run fetches the chain and computes the surface.
//
// Returns:
//   - *Result: batch output, selected rows and views
//   - error: a configuration error, chain.ErrSpotUnavailable, a data layer
//     error (data.ErrNoExpirations, data.ErrNoChainData) or a batch
//     structural error; per-row failures are reported in the batch summary
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	cfg := e.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	typ, err := cfg.Type()
	if err != nil {
		return nil, err
	}
	views, err := surface.ParseViews(cfg.Views)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	var heatmapExpiry time.Time
	if cfg.HeatmapExpiry != "" {
		heatmapExpiry, err = time.Parse("2006-01-02", cfg.HeatmapExpiry)
		if err != nil {
			return nil, fmt.Errorf("%w: heatmap expiry: %v", config.ErrInvalidConfig, err)
		}
	}

	evalTime := e.now().UTC()

	spot, err := e.prov.GetSpotPrice(ctx, cfg.Ticker)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", chain.ErrSpotUnavailable, cfg.Ticker, err)
	}
	logger.Infof("event=spot ticker=%s spot=%.2f", cfg.Ticker, spot)

	quotes, err := data.FetchChain(ctx, e.prov, cfg.Ticker, cfg.MaxExpirations, evalTime)
	if err != nil {
		return nil, fmt.Errorf("fetch chain %s: %w", cfg.Ticker, err)
	}

	batch, err := chain.ComputeIV(quotes, spot, cfg.RiskFreeRate, evalTime, chain.Options{
		Workers:          cfg.Workers,
		FailureThreshold: cfg.FailureThreshold,
	})
	if err != nil {
		return nil, err
	}

	selected, err := surface.Filter(batch.Rows, surface.Selection{Type: typ, Expression: cfg.Filter})
	if err != nil {
		return nil, err
	}
	logger.Debugf("event=selected ticker=%s type=%s rows=%d", cfg.Ticker, typ, len(selected))

	built, err := surface.Build(selected, surface.Options{
		Views:         views,
		HeatmapExpiry: heatmapExpiry,
		HeatmapMatch:  surface.DateMatchType(cfg.HeatmapMatch),
		TermStrikes:   surface.DefaultTermStrikes,
	})
	if err != nil {
		return nil, fmt.Errorf("build views: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"ticker":   cfg.Ticker,
		"run":      batch.RunID,
		"rows":     batch.Summary.Total,
		"solved":   batch.Summary.Solved(),
		"selected": len(selected),
	}).Info("event=surface_built")
	if logger.Verbosity() >= logger.Debug {
		for _, st := range chain.Statuses {
			if n := batch.Summary.Counts[st]; n > 0 {
				logger.Debugf("event=status_count run=%s status=%s rows=%d", batch.RunID, st, n)
			}
		}
	}

	return &Result{
		Ticker:   cfg.Ticker,
		Batch:    batch,
		Selected: selected,
		Views:    built,
	}, nil
}
