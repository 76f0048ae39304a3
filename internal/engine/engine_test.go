package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/iv-surface/internal/chain"
	"github.com/contactkeval/iv-surface/internal/config"
	"github.com/contactkeval/iv-surface/internal/data"
	"github.com/contactkeval/iv-surface/internal/pricing"
)

var asOf = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

func clock() time.Time { return asOf }

func synthetic() data.Provider {
	return data.NewSyntheticProvider(7, 100).WithAnchor(asOf)
}

type downProvider struct {
	spotErr error
}

func (p *downProvider) Secondary() data.Provider { return nil }

func (p *downProvider) GetSpotPrice(ctx context.Context, underlying string) (float64, error) {
	if p.spotErr != nil {
		return 0, p.spotErr
	}
	return 100, nil
}

func (p *downProvider) GetExpirations(ctx context.Context, underlying string, asOf time.Time) ([]time.Time, error) {
	return nil, nil
}

func (p *downProvider) GetOptionChain(ctx context.Context, underlying string, expiry time.Time) ([]chain.OptionQuote, error) {
	return nil, nil
}

func TestRun_Synthetic(t *testing.T) {
	cfg := config.Default()
	cfg.Ticker = "SYN"
	cfg.MaxExpirations = 2
	cfg.Views = "smile,heatmap"

	res, err := NewEngine(&cfg, synthetic()).WithClock(clock).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "SYN", res.Ticker)
	assert.Equal(t, 100.0, res.Batch.Spot)
	assert.Equal(t, asOf, res.Batch.EvaluatedAt)
	assert.Equal(t, len(res.Batch.Rows), res.Batch.Summary.Total)
	assert.False(t, res.Batch.Summary.Degraded)
	assert.Equal(t, []time.Time{asOf.AddDate(0, 0, 7), asOf.AddDate(0, 0, 14)}, res.Batch.Rows.Expirations())

	require.NotEmpty(t, res.Selected)
	for _, r := range res.Selected {
		assert.Equal(t, pricing.Call, r.Type)
		assert.True(t, r.HasIV())
	}

	require.NotNil(t, res.Views)
	assert.Len(t, res.Views.Smile, 2)
	require.NotNil(t, res.Views.Heatmap)
	assert.Equal(t, asOf.AddDate(0, 0, 7), res.Views.Heatmap.Expiration)
	assert.Nil(t, res.Views.Term)
	assert.Nil(t, res.Views.Distribution)
}

func TestRun_FilterAndType(t *testing.T) {
	cfg := config.Default()
	cfg.OptionType = "put"
	cfg.MaxExpirations = 1
	cfg.Filter = "strike >= 95 && strike <= 105"
	cfg.HeatmapExpiry = "2025-01-30"
	cfg.HeatmapMatch = "lower"
	cfg.Workers = 4

	res, err := NewEngine(&cfg, synthetic()).WithClock(clock).Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, res.Selected)
	for _, r := range res.Selected {
		assert.Equal(t, pricing.Put, r.Type)
		assert.GreaterOrEqual(t, r.Strike, 95.0)
		assert.LessOrEqual(t, r.Strike, 105.0)
	}
	// the only loaded expiration is the last one before the target
	require.NotNil(t, res.Views.Heatmap)
	assert.Equal(t, asOf.AddDate(0, 0, 7), res.Views.Heatmap.Expiration)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		prov   data.Provider
		want   error
	}{
		{"bad views", func(c *config.Config) { c.Views = "smile,surface3d" }, synthetic(), config.ErrInvalidConfig},
		{"bad filter", func(c *config.Config) { c.Filter = "strike >" }, synthetic(), nil},
		{"spot down", func(c *config.Config) {}, &downProvider{spotErr: errors.New("timeout")}, chain.ErrSpotUnavailable},
		{"no expirations", func(c *config.Config) {}, &downProvider{}, data.ErrNoExpirations},
		{"negative rate", func(c *config.Config) { c.RiskFreeRate = -0.5 }, synthetic(), config.ErrInvalidConfig},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)

			_, err := NewEngine(&cfg, tc.prov).WithClock(clock).Run(context.Background())
			require.Error(t, err)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}
