// Package server is the HTTP control surface for the sync engine.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/time/rate"

	"github.com/harrisonrobin/taskcal/pkg/metrics"
	"github.com/harrisonrobin/taskcal/pkg/syncerr"
	"github.com/harrisonrobin/taskcal/pkg/tools"
)

type Options struct {
	Addr      string
	APIKey    string
	RateLimit float64
	RateBurst int
}

type Server struct {
	svc      *tools.Service
	metrics  *metrics.Metrics
	log      zerolog.Logger
	opts     Options
	limiter  *rate.Limiter
	validate *validator.Validate

	mu     sync.Mutex
	server *http.Server
}

func New(svc *tools.Service, m *metrics.Metrics, log zerolog.Logger, opts Options) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 10
	}
	return &Server{
		svc:      svc,
		metrics:  m,
		log:      log,
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Handler builds the full middleware chain and routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		hlog.NewHandler(s.log),
		hlog.RequestIDHandler("req_id", "X-Request-Id"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("duration", duration).
				Msg("request")
		}),
		s.metricsMiddleware,
		s.apiKeyMiddleware,
	)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/logs", s.handleLogs)
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Post("/sync", s.handleSync)
			r.Post("/automation/start", s.handleStartAutomation)
			r.Post("/automation/stop", s.handleStopAutomation)
			r.Post("/stats/reset", s.handleResetStats)
		})
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, errorBody{Code: "not_found", Message: "not found"})
		})
	})

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(r)
}

// ListenAndServe serves until Shutdown is called. Request contexts derive
// from ctx.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.log.Info().Str("addr", s.opts.Addr).Msg("starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(route, status)
	})
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.APIKey == "" || r.URL.Path == "/health" || r.URL.Path == "/metrics" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.opts.APIKey)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Code: "unauthorized", Message: "missing or invalid API key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Code: "rate_limited", Message: "the API is at capacity, try again later"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type syncRequest struct {
	Keyword string `json:"keyword" validate:"omitempty,max=200"`
}

type automationRequest struct {
	Interval string `json:"interval" validate:"omitempty,max=32"`
	Keyword  string `json:"keyword" validate:"omitempty,max=200"`
	RunNow   bool   `json:"runNow"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !s.decode(w, r, &req) {
		return
	}
	run, err := s.svc.RunSync(r.Context(), req.Keyword)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleStartAutomation(w http.ResponseWriter, r *http.Request) {
	var req automationRequest
	if !s.decode(w, r, &req) {
		return
	}
	st, err := s.svc.StartAutomation(req.Interval, req.Keyword, req.RunNow)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStopAutomation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": s.svc.StopAutomation()})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, syncerr.New(syncerr.Invalid, "", "limit must be a non-negative integer", nil))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.svc.Logs(limit))
}

func (s *Server) handleResetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ResetStats())
}

// decode reads an optional JSON body into v and validates it. An empty
// body leaves v zero.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength != 0 {
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(v)
		if err != nil && !errors.Is(err, io.EOF) {
			writeError(w, syncerr.New(syncerr.Invalid, "", "request body must be valid JSON", err))
			return false
		}
	}
	if err := s.validate.Struct(v); err != nil {
		writeError(w, syncerr.New(syncerr.Invalid, "", err.Error(), err))
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Warn().Err(err).Msg("request failed")
	writeError(w, err)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError renders err as JSON with the status of its kind.
func writeError(w http.ResponseWriter, err error) {
	kind := syncerr.KindOf(err)
	writeJSON(w, kind.HTTPStatus(), errorBody{Code: kind.String(), Message: syncerr.Message(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
