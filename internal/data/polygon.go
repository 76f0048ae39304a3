package data

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/contactkeval/iv-surface/internal/chain"
	"github.com/contactkeval/iv-surface/internal/logger"
	"github.com/contactkeval/iv-surface/internal/pricing"
)

// polygonDataProvider implements Data Provider using the Polygon.io SDK.
type polygonDataProvider struct {
	client    *polygon.Client
	secondary Provider
}

// NewPolygonDataProvider returns a provider backed by the Polygon SDK client.
func NewPolygonDataProvider(apiKey string) *polygonDataProvider {
	logger.Infof("initializing Polygon data provider")
	return &polygonDataProvider{client: polygon.New(apiKey)}
}

// newPolygonDataProviderWithClient lets tests route the SDK through a custom transport.
func newPolygonDataProviderWithClient(apiKey string, hc *http.Client) *polygonDataProvider {
	return &polygonDataProvider{client: polygon.NewWithClient(apiKey, hc)}
}

func (polygonDataProv *polygonDataProvider) Secondary() Provider {
	return polygonDataProv.secondary
}

func (polygonDataProv *polygonDataProvider) GetSpotPrice(ctx context.Context, underlying string) (float64, error) {
	params := models.GetPreviousCloseAggParams{Ticker: underlying}.WithAdjusted(true)

	res, err := polygonDataProv.client.GetPreviousCloseAgg(ctx, params)
	if err != nil || len(res.Results) == 0 {
		if polygonDataProv.secondary != nil {
			return polygonDataProv.secondary.GetSpotPrice(ctx, underlying)
		}
		if err != nil {
			return 0, fmt.Errorf("polygon previous close %s: %w", underlying, err)
		}
		return 0, fmt.Errorf("polygon previous close %s: no results", underlying)
	}

	return res.Results[0].Close, nil
}

func (polygonDataProv *polygonDataProvider) GetExpirations(ctx context.Context, underlying string, asOf time.Time) ([]time.Time, error) {
	params := models.ListOptionsContractsParams{}.
		WithUnderlyingTicker(models.EQ, underlying).
		WithExpirationDate(models.GT, models.Date(asOf)).
		WithExpired(false).
		WithLimit(1000)

	expiryMap := map[string]time.Time{}
	iter := polygonDataProv.client.ListOptionsContracts(ctx, params)
	for iter.Next() {
		exp := time.Time(iter.Item().ExpirationDate)
		expiryMap[exp.Format("2006-01-02")] = exp
	}
	if err := iter.Err(); err != nil {
		if polygonDataProv.secondary != nil {
			return polygonDataProv.secondary.GetExpirations(ctx, underlying, asOf)
		}
		return nil, fmt.Errorf("polygon contracts %s: %w", underlying, err)
	}

	out := make([]time.Time, 0, len(expiryMap))
	for _, exp := range expiryMap {
		out = append(out, exp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (polygonDataProv *polygonDataProvider) GetOptionChain(ctx context.Context, underlying string, expiry time.Time) ([]chain.OptionQuote, error) {
	params := models.ListOptionsChainParams{UnderlyingAsset: underlying}.
		WithExpirationDate(models.EQ, models.Date(expiry)).
		WithLimit(250)

	var out []chain.OptionQuote
	iter := polygonDataProv.client.ListOptionsChainSnapshot(ctx, params)
	for iter.Next() {
		s := iter.Item()
		optType, err := pricing.ParseOptionType(s.Details.ContractType)
		if err != nil {
			continue
		}
		out = append(out, chain.OptionQuote{
			Contract:     s.Details.Ticker,
			Strike:       s.Details.StrikePrice,
			Expiration:   time.Time(s.Details.ExpirationDate),
			Type:         optType,
			Bid:          s.LastQuote.Bid,
			Ask:          s.LastQuote.Ask,
			Volume:       s.Day.Volume,
			OpenInterest: s.OpenInterest,
		})
	}
	if err := iter.Err(); err != nil {
		if polygonDataProv.secondary != nil {
			return polygonDataProv.secondary.GetOptionChain(ctx, underlying, expiry)
		}
		return nil, fmt.Errorf("polygon chain snapshot %s: %w", underlying, err)
	}
	return out, nil
}
