package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hindsight/internal/backtest"
	"hindsight/internal/candle"
	"hindsight/internal/config"
	"hindsight/internal/domain"
	"hindsight/internal/report"
	"hindsight/internal/store"
	"hindsight/internal/strategy"
)

// maxRequestBody bounds backtest request bodies. Inline candle series of a
// few hundred thousand rows fit comfortably.
const maxRequestBody = 32 << 20

// Server serves the backtest HTTP API.
type Server struct {
	backtester *backtest.Backtester
	registry   *strategy.Registry
	candles    store.CandleStore // nil disables symbol-sourced requests
	runs       store.RunStore    // nil disables run persistence
	defaults   config.BacktestConfig
	log        *slog.Logger
}

// NewServer creates a Server. candleStore and runStore may be nil, which
// disables the endpoints that need them. A nil logger falls back to the
// default slog logger.
func NewServer(registry *strategy.Registry, candleStore store.CandleStore, runStore store.RunStore, defaults config.BacktestConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		backtester: backtest.New(backtest.WithLogger(logger)),
		registry:   registry,
		candles:    candleStore,
		runs:       runStore,
		defaults:   defaults,
		log:        logger.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/strategies", s.handleStrategies)
	mux.HandleFunc("POST /api/v1/backtest", s.handleBacktest)
	mux.HandleFunc("GET /api/v1/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/v1/runs/{id}/trades", s.handleGetTrades)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseLimit extracts the result cap from the "limit" query param. Zero
// means the store default.
func parseLimit(r *http.Request) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok"})
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	names := s.registry.List()
	if names == nil {
		names = []string{}
	}
	writeJSON(w, StrategiesResponse{Strategies: names})
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decoding request: %v", err))
		return
	}

	if req.Strategy.Name == "" {
		writeError(w, http.StatusBadRequest, "strategy.name required")
		return
	}
	strat, ok := s.registry.Get(req.Strategy.Name)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown strategy %q", req.Strategy.Name))
		return
	}

	cfg, err := s.runConfig(req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg.Params = strategy.Params(req.Strategy.Params)

	candles, symbol, status, err := s.resolveCandles(r, &req)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	// The request context flows into the run, so a dropped connection
	// cancels the backtest.
	result, err := s.backtester.Run(r.Context(), candles, strat, cfg)
	if err != nil {
		writeError(w, runErrorStatus(err), err.Error())
		return
	}
	s.log.Info("backtest run",
		"strategy", req.Strategy.Name,
		"symbol", symbol,
		"candles", result.Candles,
		"trades", len(result.Trades),
		"status", result.Status)

	resp := BacktestResponse{
		Strategy: req.Strategy.Name,
		Symbol:   symbol,
		Payload:  *report.FromResult(result),
	}

	if req.Save {
		if s.runs == nil {
			writeError(w, http.StatusServiceUnavailable, "run store not configured")
			return
		}
		rec := &store.RunRecord{
			Strategy:       req.Strategy.Name,
			Symbol:         symbol,
			Status:         result.Status,
			InitialBalance: result.InitialBalance,
			FinalEquity:    result.FinalEquity,
			Candles:        result.Candles,
			Metrics:        result.Metrics,
			Diagnostics:    len(result.Diagnostics),
			Trades:         result.Trades,
		}
		if err := s.runs.SaveRun(r.Context(), rec); err != nil {
			s.log.Error("saving run", "error", err)
			writeError(w, http.StatusInternalServerError, "saving run failed")
			return
		}
		resp.RunID = rec.ID
	}

	writeJSON(w, resp)
}

// runConfig layers request overrides on the configured defaults and
// validates the merged result.
func (s *Server) runConfig(raw json.RawMessage) (backtest.Config, error) {
	merged := RunConfigJSON{
		InitialBalance: s.defaults.InitialBalance,
		CommissionRate: s.defaults.CommissionRate,
		SlippageRate:   s.defaults.SlippageRate,
		MinLot:         s.defaults.MinLot,
		Annualization:  s.defaults.Annualization,
		Strict:         s.defaults.Strict,
		Seed:           s.defaults.Seed,
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &merged); err != nil {
			return backtest.Config{}, fmt.Errorf("decoding config: %w", err)
		}
	}

	cfg := backtest.Config{
		InitialBalance: merged.InitialBalance,
		CommissionRate: merged.CommissionRate,
		SlippageRate:   merged.SlippageRate,
		MinLot:         merged.MinLot,
		Annualization:  merged.Annualization,
		Strict:         merged.Strict,
		Seed:           merged.Seed,
	}
	if err := cfg.Validate(); err != nil {
		return backtest.Config{}, err
	}
	return cfg, nil
}

// resolveCandles picks the candle source for a request: inline candles win,
// then CSV content, otherwise the symbol is read from the candle store. The
// returned status is the HTTP code to use when err is non-nil.
func (s *Server) resolveCandles(r *http.Request, req *BacktestRequest) ([]domain.Candle, string, int, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))

	if len(req.Candles) > 0 {
		return toCandles(req.Candles), symbol, 0, nil
	}
	if req.CandlesCSV != "" {
		candles, err := candle.Read(strings.NewReader(req.CandlesCSV))
		if err != nil {
			return nil, "", http.StatusBadRequest, fmt.Errorf("parsing candlesCsv: %w", err)
		}
		return candles, symbol, 0, nil
	}

	if symbol == "" {
		return nil, "", http.StatusBadRequest, errors.New("candles or symbol required")
	}
	if s.candles == nil {
		return nil, "", http.StatusServiceUnavailable, errors.New("candle store not configured")
	}

	from := time.Time{}
	if req.From != "" {
		t, err := time.Parse("2006-01-02", req.From)
		if err != nil {
			return nil, "", http.StatusBadRequest, fmt.Errorf("parsing from %q: %w", req.From, err)
		}
		from = t
	}
	to := time.Now().UTC()
	if req.To != "" {
		t, err := time.Parse("2006-01-02", req.To)
		if err != nil {
			return nil, "", http.StatusBadRequest, fmt.Errorf("parsing to %q: %w", req.To, err)
		}
		// Make the bound cover the whole day.
		to = t.AddDate(0, 0, 1).Add(-time.Millisecond)
	}

	candles, err := s.candles.ReadCandles(r.Context(), symbol, from, to)
	if err != nil {
		s.log.Error("reading candles", "symbol", symbol, "error", err)
		return nil, "", http.StatusInternalServerError, fmt.Errorf("reading candles for %s failed", symbol)
	}
	if len(candles) == 0 {
		return nil, "", http.StatusNotFound, fmt.Errorf("no candles for %s in range", symbol)
	}
	return candles, symbol, 0, nil
}

// runErrorStatus maps run failures to HTTP codes: bad input data is the
// client's fault, strategy failures are unprocessable, the rest is ours.
func runErrorStatus(err error) int {
	switch {
	case errors.Is(err, backtest.ErrInvalidSeries), errors.Is(err, backtest.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, backtest.ErrStrategyInit), errors.Is(err, backtest.ErrStrategyEval):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run store not configured")
		return
	}

	recs, err := s.runs.ListRuns(r.Context(), parseLimit(r))
	if err != nil {
		s.log.Error("listing runs", "error", err)
		writeError(w, http.StatusInternalServerError, "listing runs failed")
		return
	}

	runs := make([]RunJSON, 0, len(recs))
	for _, rec := range recs {
		runs = append(runs, fromRunRecord(rec))
	}
	writeJSON(w, RunsResponse{Runs: runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run store not configured")
		return
	}

	id := r.PathValue("id")
	rec, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", id))
			return
		}
		s.log.Error("loading run", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "loading run failed")
		return
	}
	writeJSON(w, fromRunRecord(*rec))
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run store not configured")
		return
	}

	id := r.PathValue("id")
	trades, err := s.runs.GetTrades(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", id))
			return
		}
		s.log.Error("loading trades", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "loading trades failed")
		return
	}
	writeJSON(w, TradesResponse{RunID: id, Trades: report.FromTrades(trades)})
}
