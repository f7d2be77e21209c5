// Package httpapi serves the tradesim JSON HTTP API.
package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"tradesim/internal/backtest"
	"tradesim/internal/store"
	"tradesim/internal/strategy"
)

// Server serves the backtest HTTP API.
type Server struct {
	bars     store.BarStore
	runs     store.RunStore
	registry *strategy.Registry
	defaults backtest.Config
	log      *slog.Logger
}

// NewServer creates a Server. bars, runs, and registry may each be nil; the
// endpoints depending on them degrade to empty listings or errors.
func NewServer(bars store.BarStore, runs store.RunStore, registry *strategy.Registry, defaults backtest.Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		bars:     bars,
		runs:     runs,
		registry: registry,
		defaults: defaults,
		log:      log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/backtest", s.handleBacktest)
	mux.HandleFunc("GET /api/symbols", s.handleSymbols)
	mux.HandleFunc("GET /api/strategies", s.handleStrategies)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
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

func writeError(w http.ResponseWriter, status int, errType, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Success: false, Error: msg, Type: errType})
}

// writeBacktestError maps engine errors onto the failure envelope.
func writeBacktestError(w http.ResponseWriter, err error) {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		writeError(w, http.StatusBadRequest, "ValueError", err.Error())
	case errors.Is(err, backtest.ErrIntegrity):
		writeError(w, http.StatusInternalServerError, "IntegrityError", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "RuntimeError", err.Error())
	}
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "ValueError", "invalid JSON body: "+err.Error())
		return
	}

	resp, err := ExecuteBacktest(r.Context(), &req, s.bars, s.registry, s.defaults, s.log)
	if err != nil {
		s.log.Warn("backtest failed", "error", err)
		writeBacktestError(w, err)
		return
	}

	if s.runs != nil {
		resp.RunID = s.persistRun(r, &req, resp)
	}
	writeJSON(w, resp)
}

// persistRun saves the run record and returns its ID, or "" if saving
// failed. Persistence failures don't fail the backtest response.
func (s *Server) persistRun(r *http.Request, req *BacktestRequest, resp *BacktestResponse) string {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("marshaling run result", "error", err)
		return ""
	}

	run := &store.Run{
		ID:             newRunID(),
		CreatedAt:      time.Now().UTC(),
		Strategy:       req.Strategy,
		Symbols:        req.Symbols,
		InitialCash:    resp.Metrics.InitialValue,
		TotalReturnPct: resp.Metrics.TotalReturnPct,
		MaxDrawdownPct: resp.Metrics.MaxDrawdownPct,
		SharpeRatio:    resp.Metrics.SharpeRatio,
		TradeCount:     resp.Metrics.TradeCount,
		Result:         payload,
	}
	if req.Commission != nil {
		run.CommissionRate = *req.Commission
	} else {
		run.CommissionRate = s.defaults.CommissionRate
	}
	if n := len(resp.EquityCurve); n > 0 {
		run.StartDate, _ = parseWireDate(resp.EquityCurve[0].Date)
		run.EndDate, _ = parseWireDate(resp.EquityCurve[n-1].Date)
	}

	if err := s.runs.SaveRun(r.Context(), run); err != nil {
		s.log.Error("saving run", "error", err)
		return ""
	}
	return run.ID
}

func newRunID() string {
	var b [8]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	if s.bars == nil {
		writeJSON(w, map[string][]string{"symbols": {}})
		return
	}
	symbols, err := s.bars.ListSymbols(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "RuntimeError", "listing symbols: "+err.Error())
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	writeJSON(w, map[string][]string{"symbols": symbols})
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if s.registry != nil {
		names = s.registry.List()
	}
	writeJSON(w, map[string][]string{"strategies": names})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeJSON(w, map[string][]store.Run{"runs": {}})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "RuntimeError", "listing runs: "+err.Error())
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, map[string][]store.Run{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "KeyError", "run storage not configured")
		return
	}

	id := r.PathValue("id")
	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "KeyError", "run not found: "+id)
			return
		}
		writeError(w, http.StatusInternalServerError, "RuntimeError", "loading run: "+err.Error())
		return
	}
	writeJSON(w, run)
}
