package data

// Massive REST provider: previous close for the spot, the contracts
// reference endpoint for expirations and the chain snapshot for quotes.
// Requests follow next_url pages and sleep through 429 responses.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/contactkeval/iv-surface/internal/chain"
	"github.com/contactkeval/iv-surface/internal/logger"
	"github.com/contactkeval/iv-surface/internal/pricing"
)

type massiveDataProvider struct {
	APIKey    string
	Client    *http.Client
	BaseURL   string // overridden in tests
	secondary Provider
}

// massiveContract is one row of /v3/reference/options/contracts.
type massiveContract struct {
	ContractType     string  `json:"contract_type"`
	ExerciseStyle    string  `json:"exercise_style"`
	ExpiryDate       string  `json:"expiration_date"`
	StrikePrice      float64 `json:"strike_price"`
	Ticker           string  `json:"ticker"`
	UnderlyingTicker string  `json:"underlying_ticker"`
}

type massiveContractsResp struct {
	Results   []massiveContract `json:"results"`
	Status    string            `json:"status"`
	RequestID string            `json:"request_id"`
	NextURL   string            `json:"next_url"`
}

// massiveSnapshot is one contract of the option chain snapshot endpoint.
type massiveSnapshot struct {
	Details struct {
		ContractType string  `json:"contract_type"`
		ExpiryDate   string  `json:"expiration_date"`
		StrikePrice  float64 `json:"strike_price"`
		Ticker       string  `json:"ticker"`
	} `json:"details"`
	LastQuote struct {
		Bid float64 `json:"bid"`
		Ask float64 `json:"ask"`
	} `json:"last_quote"`
	Day struct {
		Volume float64 `json:"volume"`
	} `json:"day"`
	OpenInterest float64 `json:"open_interest"`
}

type massiveSnapshotResp struct {
	Results   []massiveSnapshot `json:"results"`
	Status    string            `json:"status"`
	RequestID string            `json:"request_id"`
	NextURL   string            `json:"next_url"`
}

// NewMassiveDataProvider returns a provider authenticated with apiKey and a
// pooled HTTP/2 client.
func NewMassiveDataProvider(apiKey string) *massiveDataProvider {
	logger.Debugf("event=provider_init provider=massive")

	return &massiveDataProvider{
		APIKey: apiKey,
		Client: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		BaseURL: "https://api.massive.com",
	}
}

// Secondary returns the configured secondary Provider, if any.
func (massiveDataProv *massiveDataProvider) Secondary() Provider {
	return massiveDataProv.secondary
}

// GetSpotPrice returns the underlying's previous session close.
func (massiveDataProv *massiveDataProvider) GetSpotPrice(ctx context.Context, underlying string) (float64, error) {
	reqURL := fmt.Sprintf(
		"%s/v2/aggs/ticker/%s/prev?adjusted=true&apiKey=%s",
		massiveDataProv.BaseURL,
		url.PathEscape(underlying),
		url.QueryEscape(massiveDataProv.APIKey),
	)

	logger.Debugf("spot request: %s", underlying)

	var body struct {
		Ticker  string `json:"ticker"`
		Results []struct {
			Close     float64 `json:"c"`
			Timestamp int64   `json:"t"` // epoch millis
		} `json:"results"`
		Status string `json:"status"`
	}

	if err := massiveDataProv.getJSON(ctx, reqURL, &body); err != nil {
		if massiveDataProv.secondary != nil {
			logger.Tracef("delegating spot lookup to secondary provider: %v", err)
			return massiveDataProv.secondary.GetSpotPrice(ctx, underlying)
		}
		return 0, fmt.Errorf("massive previous close %s: %w", underlying, err)
	}

	if len(body.Results) == 0 || body.Results[0].Close <= 0 {
		if massiveDataProv.secondary != nil {
			return massiveDataProv.secondary.GetSpotPrice(ctx, underlying)
		}
		return 0, fmt.Errorf("massive previous close %s: no results", underlying)
	}

	spot := body.Results[0].Close
	logger.Tracef("spot resolved %s=%.4f", underlying, spot)
	return spot, nil
}

// GetExpirations lists the distinct expirations of live contracts
// expiring after asOf.
//
// Parameters:
//   - underlying: underlying ticker symbol
//   - asOf: only expirations strictly after this date are requested
//
// Returns:
//   - []time.Time: unique expirations, ascending
//   - error: if request or decoding fails
func (massiveDataProv *massiveDataProvider) GetExpirations(
	ctx context.Context,
	underlying string,
	asOf time.Time,
) ([]time.Time, error) {

	logger.Infof(
		"resolving expirations for %s after %s",
		underlying,
		asOf.Format("2006-01-02"),
	)

	contracts, err := massiveDataProv.listContracts(ctx, underlying, asOf)
	if err != nil {
		if massiveDataProv.secondary != nil {
			return massiveDataProv.secondary.GetExpirations(ctx, underlying, asOf)
		}
		return nil, err
	}

	expiryMap := map[string]time.Time{}
	for _, c := range contracts {
		t, err := time.Parse("2006-01-02", c.ExpiryDate)
		if err != nil {
			continue // skip malformed expiry dates
		}
		expiryMap[c.ExpiryDate] = t
	}

	expiries := make([]time.Time, 0, len(expiryMap))
	for _, dt := range expiryMap {
		expiries = append(expiries, dt)
	}

	sort.Slice(expiries, func(i, j int) bool {
		return expiries[i].Before(expiries[j])
	})

	logger.Infof("resolved %d unique expiries", len(expiries))
	return expiries, nil
}

// listContracts pages through the contracts reference endpoint.
func (massiveDataProv *massiveDataProvider) listContracts(
	ctx context.Context,
	underlying string,
	asOf time.Time,
) ([]massiveContract, error) {

	u, err := url.Parse(massiveDataProv.BaseURL + "/v3/reference/options/contracts")
	if err != nil {
		return nil, err
	}

	query := u.Query()
	query.Set("underlying_ticker", underlying)
	query.Set("expiration_date.gt", asOf.Format("2006-01-02"))
	query.Set("expired", "false")
	query.Set("sort", "expiration_date")
	query.Set("order", "asc")
	query.Set("limit", "1000")
	query.Set("apiKey", massiveDataProv.APIKey)
	u.RawQuery = query.Encode()

	var out []massiveContract

	// Handle pagination
	reqURL := u.String()
	for reqURL != "" {
		logger.Debugf("contracts request URL: %s", reqURL)

		var page massiveContractsResp
		if err := massiveDataProv.getJSON(ctx, reqURL, &page); err != nil {
			return nil, fmt.Errorf("massive contracts %s: %w", underlying, err)
		}

		logger.Tracef("received %d contracts", len(page.Results))
		out = append(out, page.Results...)
		reqURL = page.NextURL
	}

	return out, nil
}

// GetOptionChain returns the quoted chain for one expiration from the
// option chain snapshot endpoint. Contracts with an unrecognised type or
// expiry are skipped.
func (massiveDataProv *massiveDataProvider) GetOptionChain(
	ctx context.Context,
	underlying string,
	expiry time.Time,
) ([]chain.OptionQuote, error) {

	u, err := url.Parse(massiveDataProv.BaseURL + "/v3/snapshot/options/" + url.PathEscape(underlying))
	if err != nil {
		return nil, err
	}

	query := u.Query()
	query.Set("expiration_date", expiry.Format("2006-01-02"))
	query.Set("limit", strconv.Itoa(250))
	query.Set("apiKey", massiveDataProv.APIKey)
	u.RawQuery = query.Encode()

	var out []chain.OptionQuote

	reqURL := u.String()
	for reqURL != "" {
		logger.Debugf("snapshot request URL: %s", reqURL)

		var page massiveSnapshotResp
		if err := massiveDataProv.getJSON(ctx, reqURL, &page); err != nil {
			if massiveDataProv.secondary != nil {
				logger.Tracef("delegating option chain to secondary provider: %v", err)
				return massiveDataProv.secondary.GetOptionChain(ctx, underlying, expiry)
			}
			return nil, fmt.Errorf("massive snapshot %s %s: %w", underlying, expiry.Format("2006-01-02"), err)
		}

		for _, s := range page.Results {
			optType, err := pricing.ParseOptionType(s.Details.ContractType)
			if err != nil {
				logger.Tracef("skipping %s: %v", s.Details.Ticker, err)
				continue
			}
			exp, err := time.Parse("2006-01-02", s.Details.ExpiryDate)
			if err != nil {
				continue
			}
			out = append(out, chain.OptionQuote{
				Contract:     s.Details.Ticker,
				Strike:       s.Details.StrikePrice,
				Expiration:   exp,
				Type:         optType,
				Bid:          s.LastQuote.Bid,
				Ask:          s.LastQuote.Ask,
				Volume:       s.Day.Volume,
				OpenInterest: s.OpenInterest,
			})
		}
		reqURL = page.NextURL
	}

	logger.Tracef("snapshot received: %d quotes", len(out))
	return out, nil
}

// getJSON issues an authenticated GET and decodes a 200 response into v.
func (massiveDataProv *massiveDataProvider) getJSON(ctx context.Context, reqURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+massiveDataProv.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "massive-client/1.0")

	resp, err := massiveDataProv.processGetRequest(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			var dbg struct {
				Message string `json:"message"`
			}
			body, _ := io.ReadAll(resp.Body)
			_ = json.Unmarshal(body, &dbg)

			logger.Errorf(
				"massive API error status=%d message=%s",
				resp.StatusCode,
				dbg.Message,
			)
			return fmt.Errorf("massive returned status %d: %s", resp.StatusCode, dbg.Message)
		}
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return fmt.Errorf("empty response body")
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// processGetRequest executes an HTTP GET request with rate-limit handling.
//
// Behavior:
//   - Retries on HTTP 429 until the context is done
//   - Waits for Retry-After when present, else until the next minute boundary
//   - Returns immediately on success (<400)
//   - Returns the response and an error for other status codes
func (massiveDataProv *massiveDataProvider) processGetRequest(
	req *http.Request,
) (*http.Response, error) {

	for {
		resp, err := massiveDataProv.Client.Do(req)
		if err != nil {
			return nil, err
		}

		// Success
		if resp.StatusCode < 400 {
			return resp, nil
		}

		// Handle per-minute rate limit (commonly 429)
		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()

			sleepDuration := rateLimitWait(resp.Header.Get("Retry-After"), time.Now())
			logger.Infof("rate limit hit, sleeping for %s", sleepDuration)

			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(sleepDuration):
			}
			continue
		}

		return resp, fmt.Errorf(
			"unexpected status code: %d",
			resp.StatusCode,
		)
	}
}

// rateLimitWait parses a Retry-After value in seconds, falling back to the
// time left until the next minute boundary.
func rateLimitWait(retryAfter string, now time.Time) time.Duration {
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return now.Truncate(time.Minute).Add(time.Minute).Sub(now)
}
