// Package server exposes the surface computation over HTTP.
//
//	GET /surface?ticker=AAPL&type=call&rate=0.01&max_exp=3[&filter=...&views=...]
//	GET /health
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/contactkeval/iv-surface/internal/chain"
	"github.com/contactkeval/iv-surface/internal/config"
	"github.com/contactkeval/iv-surface/internal/data"
	"github.com/contactkeval/iv-surface/internal/engine"
	"github.com/contactkeval/iv-surface/internal/logger"
	"github.com/contactkeval/iv-surface/internal/report"
	"github.com/contactkeval/iv-surface/internal/surface"
)

// ProviderFactory builds the market data provider for one request.
type ProviderFactory func(cfg config.Config) (data.Provider, error)

// Server answers surface requests, building a fresh engine per request.
type Server struct {
	base        config.Config
	newProvider ProviderFactory
	now         func() time.Time
}

type errorResponse struct {
	Type string `json:"type"`
	Msg  string `json:"msg"`
}

// NewErrorResponse builds the JSON body sent with every non-200 response.
func NewErrorResponse(errType string, message string) *errorResponse {
	return &errorResponse{
		Type: errType,
		Msg:  message,
	}
}

// New returns a server whose requests start from base and override it with
// query parameters.
func New(base config.Config, newProvider ProviderFactory) *Server {
	return &Server{base: base, newProvider: newProvider, now: time.Now}
}

// WithClock replaces the evaluation time source.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

// Router returns the routes: GET /health and GET /surface.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/surface", s.handleSurface).Methods(http.MethodGet)
	return router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("event=server_start addr=%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Infof("event=server_stop addr=%s", addr)
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleSurface(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.requestConfig(r)
	if err != nil {
		s.writeError(w, "bad_request", http.StatusBadRequest, err)
		return
	}

	prov, err := s.newProvider(cfg)
	if err != nil {
		s.writeError(w, "bad_request", http.StatusBadRequest, err)
		return
	}

	res, err := engine.NewEngine(&cfg, prov).WithClock(s.now).Run(r.Context())
	if err != nil {
		errType, status := classify(err)
		s.writeError(w, errType, status, err)
		return
	}

	doc := report.NewDocument(res.Ticker, res.Batch, res.Views)
	doc.Rows = res.Selected
	if err := setResponse(doc, w); err != nil {
		logger.Errorf("event=surface_response_failed err=%v", err)
	}
}

// requestConfig overlays the query parameters on the base configuration.
func (s *Server) requestConfig(r *http.Request) (config.Config, error) {
	cfg := s.base
	q := r.URL.Query()

	if v := q.Get("ticker"); v != "" {
		cfg.Ticker = v
	}
	if v := q.Get("type"); v != "" {
		cfg.OptionType = v
	}
	if v := q.Get("rate"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("%w: rate %q: %v", config.ErrInvalidConfig, v, err)
		}
		cfg.RiskFreeRate = rate
	}
	if v := q.Get("max_exp"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: max_exp %q: %v", config.ErrInvalidConfig, v, err)
		}
		cfg.MaxExpirations = n
	}
	if v := q.Get("filter"); v != "" {
		cfg.Filter = v
	}
	if v := q.Get("views"); v != "" {
		cfg.Views = v
	}

	cfg.Normalize()
	return cfg, cfg.Validate()
}

func classify(err error) (string, int) {
	switch {
	case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, surface.ErrInvalidExpression):
		return "bad_request", http.StatusBadRequest
	case errors.Is(err, data.ErrNoExpirations), errors.Is(err, data.ErrNoChainData):
		return "not_found", http.StatusNotFound
	case errors.Is(err, chain.ErrSpotUnavailable):
		return "upstream", http.StatusBadGateway
	}
	return "internal", http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, errType string, statusCode int, err error) {
	logger.Warnf("event=surface_request_failed type=%s status=%d err=%v", errType, statusCode, err)
	if encodeErr := setErrorResponse(errType, statusCode, err, w); encodeErr != nil {
		logger.Errorf("event=surface_response_failed err=%v", encodeErr)
	}
}

func setResponse(response interface{}, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		return fmt.Errorf("setResponse: encode: %w", err)
	}
	return nil
}

func setErrorResponse(errType string, statusCode int, err error, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := NewErrorResponse(errType, strings.TrimSpace(err.Error()))
	return json.NewEncoder(w).Encode(resp)
}
