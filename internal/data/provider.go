// Package data loads spot prices and option chains from market data
// providers. Providers chain through Secondary when they cannot serve a call.
package data

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/contactkeval/iv-surface/internal/chain"
	"github.com/contactkeval/iv-surface/internal/logger"
	"github.com/contactkeval/iv-surface/internal/pricing"
)

var (
	// ErrNoExpirations means the provider listed no expirations after the as-of date.
	ErrNoExpirations = errors.New("no option expiration dates available")
	// ErrNoChainData means every selected expiration failed or came back empty.
	ErrNoChainData = errors.New("no option chain data")
	// ErrNotSupported is returned by providers that cannot serve a call and have no secondary.
	ErrNotSupported = errors.New("operation not supported by provider")
)

// Provider supplies market data
type Provider interface {
	Secondary() Provider
	GetSpotPrice(ctx context.Context, underlying string) (float64, error)
	GetExpirations(ctx context.Context, underlying string, asOf time.Time) ([]time.Time, error)
	GetOptionChain(ctx context.Context, underlying string, expiry time.Time) ([]chain.OptionQuote, error)
}

// Settings selects and configures a Provider.
type Settings struct {
	Name          string // massive | polygon | csv | synthetic
	DataDir       string // csv only
	MassiveAPIKey string
	PolygonAPIKey string
	Seed          int64     // synthetic only
	Spot          float64   // synthetic only
	Rate          float64   // synthetic only; quotes are priced at this rate
	Anchor        time.Time // synthetic only; zero means today
}

// SettingsFromEnv fills the API keys from MASSIVE_API_KEY and POLYGON_API_KEY.
func SettingsFromEnv(name, dataDir string) Settings {
	return Settings{
		Name:          name,
		DataDir:       dataDir,
		MassiveAPIKey: os.Getenv("MASSIVE_API_KEY"),
		PolygonAPIKey: os.Getenv("POLYGON_API_KEY"),
	}
}

// NewProvider builds the named provider. The csv provider falls back to
// Massive when a Massive API key is available.
func NewProvider(s Settings) (Provider, error) {
	switch strings.ToLower(s.Name) {
	case "massive":
		return NewMassiveDataProvider(s.MassiveAPIKey), nil
	case "polygon":
		return NewPolygonDataProvider(s.PolygonAPIKey), nil
	case "csv", "local":
		var secondary Provider
		if s.MassiveAPIKey != "" {
			secondary = NewMassiveDataProvider(s.MassiveAPIKey)
		}
		return NewLocalCSVDataProvider(s.DataDir, secondary), nil
	case "", "synthetic":
		synth := NewSyntheticProvider(s.Seed, s.Spot)
		if !s.Anchor.IsZero() {
			synth.WithAnchor(s.Anchor)
		}
		synth.WithRate(s.Rate)
		return synth, nil
	}
	return nil, fmt.Errorf("unknown data provider %q", s.Name)
}

// FetchChain loads the option chain for the first maxExpirations expirations
// strictly after asOf.
//
// Parameters:
//   - prov: market data provider (its secondary is used by the provider itself)
//   - underlying: ticker symbol (e.g. "AAPL")
//   - maxExpirations: number of nearest expirations to load (<= 0 means all)
//   - asOf: evaluation time; expirations on or before it are ignored
//
// Returns:
//   - []chain.OptionQuote: concatenated quotes, grouped by expiration ascending
//   - error: ErrNoExpirations, ErrNoChainData or a provider error
//
// A single failing expiration is logged and skipped; the call only fails when
// nothing at all could be loaded.
func FetchChain(
	ctx context.Context,
	prov Provider,
	underlying string,
	maxExpirations int,
	asOf time.Time,
) ([]chain.OptionQuote, error) {

	expiries, err := prov.GetExpirations(ctx, underlying, asOf)
	if err != nil {
		return nil, fmt.Errorf("list expirations for %s: %w", underlying, err)
	}

	selected := SelectExpirations(expiries, asOf, maxExpirations)
	if len(selected) == 0 {
		return nil, ErrNoExpirations
	}

	logger.Infof("event=fetch_chain underlying=%s expirations=%d", underlying, len(selected))

	var out []chain.OptionQuote
	for _, exp := range selected {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		quotes, err := prov.GetOptionChain(ctx, underlying, exp)
		if err != nil {
			logger.Errorf("event=fetch_chain_failed underlying=%s expiry=%s err=%v",
				underlying, exp.Format("2006-01-02"), err)
			continue
		}
		logger.Debugf("event=fetch_chain_expiry underlying=%s expiry=%s quotes=%d",
			underlying, exp.Format("2006-01-02"), len(quotes))
		out = append(out, quotes...)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoChainData, underlying)
	}
	return out, nil
}

// SelectExpirations returns up to n distinct expirations after asOf, ascending.
func SelectExpirations(expiries []time.Time, asOf time.Time, n int) []time.Time {
	seen := map[string]struct{}{}
	var out []time.Time
	for _, e := range expiries {
		if chain.TimeToExpiry(e, asOf) <= 0 {
			continue
		}
		key := e.Format("2006-01-02")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// OptionSymbolFromParts: improved OCC-like formatter (best-effort)
func OptionSymbolFromParts(underlying string, expiryDate time.Time, optionType pricing.OptionType, strike float64) string {
	// OCC: <root><YYMMDD><C|P><strike*1000 padded to 8 digits>
	expDt := expiryDate.UTC().Format("060102")
	optType := "C"
	if optionType == pricing.Put {
		optType = "P"
	}
	strikeInt := int(math.Round(strike * 1000))
	return fmt.Sprintf("O:%s%s%s%08d", strings.ToUpper(underlying), expDt, optType, strikeInt)
}
