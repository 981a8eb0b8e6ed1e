// Package api provides the HTTP server for edgarkpi.
//
// It exposes JSON endpoints for company lookup, filings, KPI panels, feeds
// and cache control, CSV downloads, an HTML dashboard, interactive charts,
// Prometheus metrics and a WebSocket event stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/seenimoa/edgarkpi/internal/config"
	"github.com/seenimoa/edgarkpi/internal/provider"
	"github.com/seenimoa/edgarkpi/internal/providers/sec"
	"github.com/seenimoa/edgarkpi/internal/report"
	"github.com/seenimoa/edgarkpi/internal/tracker"
	"github.com/seenimoa/edgarkpi/pkg/models"
)

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	svc     *tracker.Service
	wsHub   *WSHub
	logger  zerolog.Logger
	version string
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, svc *tracker.Service, logger zerolog.Logger, version string) *Server {
	srv := &Server{
		cfg:     cfg,
		svc:     svc,
		wsHub:   NewWSHub(),
		logger:  logger,
		version: version,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket event hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// ListenAndServe starts the HTTP server and shuts it down gracefully when
// ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.wsHub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
	}
	s.logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Identity
		r.Get("/companies", s.handleCompanies)
		r.Get("/companies/{ticker}", s.handleCompany)

		// Filings + KPIs
		r.Get("/filings/{ticker}", s.handleFilings)
		r.Get("/kpi/{ticker}", s.handleKPI)
		r.Get("/kpi/{ticker}/csv", s.handleKPICSV)
		r.Get("/feed/{ticker}", s.handleFeed)
		r.Get("/document", s.handleDocument)

		// Operations
		r.Post("/refresh", s.handleRefresh)
		r.Get("/status", s.handleStatus)
		r.Get("/config", s.handleGetConfig)

		// WebSocket event stream
		r.Get("/ws", s.handleWebSocket)
	})

	// Dashboard
	r.Get("/dashboard/{ticker}", s.handleDashboard)
	r.Get("/dashboard/{ticker}/charts", s.handleCharts)

	return r
}

// requestLogger logs every request with zerolog and places a request-scoped
// logger in the request context.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := s.logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context())))

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// ============================================================
// Response envelope
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Hint    string `json:"hint,omitempty"` // operator guidance for upstream failures
}

// CompanyList is the body of GET /api/v1/companies.
type CompanyList struct {
	Total     int                      `json:"total"` // companies in the listing
	Companies []models.CompanyIdentity `json:"companies"`
}

// FilingsResponse is the body of GET /api/v1/filings/{ticker}.
type FilingsResponse struct {
	Company models.CompanyIdentity `json:"company"`
	Filings []models.FilingRecord  `json:"filings"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":     "ok",
			"version":    s.version,
			"time":       time.Now().UTC().Format(time.RFC3339),
			"ws_clients": s.wsHub.ClientCount(),
		},
	})
}

// handleCompanies searches the ticker listing: ?q=apple&limit=20. Without
// a query it returns the first companies by ticker.
func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 20)
	all, err := s.svc.Companies(r.Context())
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}

	q := r.URL.Query().Get("q")
	matches := all
	if q != "" {
		matches, err = s.svc.Search(r.Context(), q, limit)
		if err != nil {
			writeUpstreamError(w, r, err)
			return
		}
	} else if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    CompanyList{Total: len(all), Companies: matches},
	})
}

func (s *Server) handleCompany(w http.ResponseWriter, r *http.Request) {
	id, err := s.svc.Lookup(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: id})
}

func (s *Server) handleFilings(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", s.svc.Options().FilingsLimit)
	id, filings, err := s.svc.Filings(r.Context(), chi.URLParam(r, "ticker"), limit)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    FilingsResponse{Company: id, Filings: filings},
	})
}

// handleKPI returns the snapshot for a ticker: ?extended=true&tail=8.
func (s *Server) handleKPI(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Snapshot(r.Context(), chi.URLParam(r, "ticker"), boolQuery(r, "extended"))
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	if tail := intQuery(r, "tail", 0); tail > 0 {
		snap.Panel = snap.Panel.Tail(tail)
	}
	s.wsHub.Broadcast(snapshotEvent(snap))
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: snap})
}

func (s *Server) handleKPICSV(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Snapshot(r.Context(), chi.URLParam(r, "ticker"), boolQuery(r, "extended"))
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.CSVFilename(snap.Company.Ticker)))
	if err := report.WriteCSV(w, snap.Panel); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("write csv")
	}
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Feed(r.Context(), chi.URLParam(r, "ticker"), r.URL.Query().Get("form"))
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: entries})
}

// handleDocument returns the readable text of an archived filing: ?url=...
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	u := r.URL.Query().Get("url")
	if u == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}
	doc, err := s.svc.Document(r.Context(), u)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: doc})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.wsHub.Broadcast(WSMessage{Type: EventRefresh, Data: map[string]string{"at": time.Now().UTC().Format(time.RFC3339)}})
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: map[string]string{"status": "refreshed"}})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.svc.Status(r.Context())})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Snapshot(r.Context(), chi.URLParam(r, "ticker"), boolQuery(r, "extended"))
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	s.wsHub.Broadcast(snapshotEvent(snap))

	cfg := report.DefaultReportConfig()
	cfg.MaxFilings = s.svc.Options().FilingsLimit
	cfg.CSVURL = "/api/v1/kpi/" + snap.Company.Ticker + "/csv"
	cfg.ChartsURL = "/dashboard/" + snap.Company.Ticker + "/charts"

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteHTML(w, snap, cfg); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("render dashboard")
	}
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Snapshot(r.Context(), chi.URLParam(r, "ticker"), true)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderCharts(w, snap); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("render charts")
	}
}

// ============================================================
// Helpers
// ============================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// writeUpstreamError maps a tracker or fetch error to an HTTP status and
// attaches remediation guidance when there is any.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		zerolog.Ctx(r.Context()).Warn().Err(err).Int("status", status).Msg("upstream failure")
	}
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
		Hint:    sec.Remediation(err),
	})
}

func statusFor(err error) int {
	var noProvider *provider.ErrProviderNotFound
	switch {
	case errors.Is(err, tracker.ErrTickerNotFound):
		return http.StatusNotFound
	case errors.Is(err, sec.ErrNotArchiveURL):
		return http.StatusBadRequest
	case errors.Is(err, sec.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &noProvider):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case tracker.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func intQuery(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return def
}

func boolQuery(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}
