package data

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/contactkeval/iv-surface/internal/chain"
	"github.com/contactkeval/iv-surface/internal/logger"
	"github.com/contactkeval/iv-surface/internal/pricing"
)

// csvQuote is one line of <UNDERLYING>_chain.csv.
type csvQuote struct {
	Contract     string  `csv:"contract"`
	Strike       float64 `csv:"strike"`
	Expiration   string  `csv:"expiration"` // 2006-01-02
	Type         string  `csv:"type"`
	Bid          float64 `csv:"bid"`
	Ask          float64 `csv:"ask"`
	Volume       float64 `csv:"volume"`
	OpenInterest float64 `csv:"open_interest"`
}

// csvSpot is one line of spot.csv.
type csvSpot struct {
	Underlying string  `csv:"underlying"`
	Price      float64 `csv:"price"`
}

// localCSVDataProvider implements Data Provider from local CSV files.
//
// Layout of dir:
//   - spot.csv: underlying,price
//   - <UNDERLYING>_chain.csv: contract,strike,expiration,type,bid,ask,volume,open_interest
type localCSVDataProvider struct {
	dir       string
	secondary Provider
}

// NewLocalCSVDataProvider convenience constructor.
func NewLocalCSVDataProvider(dir string, secondary Provider) *localCSVDataProvider {
	return &localCSVDataProvider{dir: dir, secondary: secondary}
}

func (localCSVDataProv *localCSVDataProvider) Secondary() Provider {
	return localCSVDataProv.secondary
}

func (localCSVDataProv *localCSVDataProvider) GetSpotPrice(ctx context.Context, underlying string) (float64, error) {
	var rows []*csvSpot
	err := localCSVDataProv.readCSV("spot.csv", &rows)
	if err == nil {
		for _, r := range rows {
			if strings.EqualFold(strings.TrimSpace(r.Underlying), underlying) {
				return r.Price, nil
			}
		}
		err = fmt.Errorf("no spot for %s in spot.csv", underlying)
	}

	if localCSVDataProv.secondary != nil {
		logger.Debugf("spot for %s not found locally (%v), trying secondary", underlying, err)
		return localCSVDataProv.secondary.GetSpotPrice(ctx, underlying)
	}
	return 0, err
}

func (localCSVDataProv *localCSVDataProvider) GetExpirations(ctx context.Context, underlying string, asOf time.Time) ([]time.Time, error) {
	quotes, err := localCSVDataProv.loadChain(underlying)
	if err != nil {
		if localCSVDataProv.secondary != nil {
			return localCSVDataProv.secondary.GetExpirations(ctx, underlying, asOf)
		}
		return nil, err
	}

	seen := map[string]struct{}{}
	var out []time.Time
	for _, q := range quotes {
		key := q.Expiration.Format("2006-01-02")
		if _, ok := seen[key]; ok || chain.TimeToExpiry(q.Expiration, asOf) <= 0 {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q.Expiration)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (localCSVDataProv *localCSVDataProvider) GetOptionChain(ctx context.Context, underlying string, expiry time.Time) ([]chain.OptionQuote, error) {
	quotes, err := localCSVDataProv.loadChain(underlying)
	if err != nil {
		if localCSVDataProv.secondary != nil {
			return localCSVDataProv.secondary.GetOptionChain(ctx, underlying, expiry)
		}
		return nil, err
	}

	want := expiry.Format("2006-01-02")
	var out []chain.OptionQuote
	for _, q := range quotes {
		if q.Expiration.Format("2006-01-02") == want {
			out = append(out, q)
		}
	}
	return out, nil
}

// loadChain parses <dir>/<UNDERLYING>_chain.csv. Lines with an unknown type
// or unparseable expiration are skipped.
func (localCSVDataProv *localCSVDataProvider) loadChain(underlying string) ([]chain.OptionQuote, error) {
	name := strings.ToUpper(underlying) + "_chain.csv"

	var rows []*csvQuote
	if err := localCSVDataProv.readCSV(name, &rows); err != nil {
		return nil, err
	}

	out := make([]chain.OptionQuote, 0, len(rows))
	for i, r := range rows {
		optType, err := pricing.ParseOptionType(r.Type)
		if err != nil {
			logger.Tracef("%s line %d: %v", name, i+2, err)
			continue
		}
		exp, err := time.Parse("2006-01-02", strings.TrimSpace(r.Expiration))
		if err != nil {
			logger.Tracef("%s line %d: bad expiration %q", name, i+2, r.Expiration)
			continue
		}

		contract := r.Contract
		if contract == "" {
			contract = OptionSymbolFromParts(underlying, exp, optType, r.Strike)
		}
		out = append(out, chain.OptionQuote{
			Contract:     contract,
			Strike:       r.Strike,
			Expiration:   exp,
			Type:         optType,
			Bid:          r.Bid,
			Ask:          r.Ask,
			Volume:       r.Volume,
			OpenInterest: r.OpenInterest,
		})
	}

	logger.Debugf("loaded %d quotes from %s", len(out), name)
	return out, nil
}

func (localCSVDataProv *localCSVDataProvider) readCSV(name string, out any) error {
	f, err := os.Open(filepath.Join(localCSVDataProv.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", name, ErrNotSupported)
		}
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	return nil
}
