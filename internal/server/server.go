// Package server provides the HTTP control surface for the apply agent.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jonathan/apply-agent/internal/events"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/metrics"
	"github.com/jonathan/apply-agent/internal/server/ratelimit"
	"github.com/jonathan/apply-agent/internal/types"
)

// DefaultKeepAlive is the interval between SSE keep-alive comments.
const DefaultKeepAlive = 15 * time.Second

// Controller is the run control the server drives.
type Controller interface {
	Start(settings types.Settings) error
	Stop()
	Status() types.RunStatus
}

// Config holds server configuration
type Config struct {
	Port       int
	Controller Controller
	Bus        *events.Bus
	// Gatherer backs GET /metrics; nil disables the endpoint.
	Gatherer  prometheus.Gatherer
	RateLimit *ratelimit.Config
	KeepAlive time.Duration
	Logger    *zap.SugaredLogger
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	controller  Controller
	bus         *events.Bus
	rateLimiter *ratelimit.Limiter
	validate    *validator.Validate
	keepAlive   time.Duration
	log         *zap.SugaredLogger
}

// StartRequest is the body of POST /start. Empty fields fall back to the defaults.
type StartRequest struct {
	JobTitle string `json:"job_title" validate:"max=200"`
	JobType  string `json:"job_type" validate:"omitempty,oneof=none remote hybrid onsite"`
	Location string `json:"location" validate:"max=200"`
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Controller == nil {
		return nil, errors.New("server requires a controller")
	}
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus()
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.RateLimit == nil {
		cfg.RateLimit = ratelimit.LoadConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Named("server")
	}

	s := &Server{
		controller:  cfg.Controller,
		bus:         cfg.Bus,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		validate:    validator.New(),
		keepAlive:   cfg.KeepAlive,
		log:         log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /start", s.handleStart)
	mux.HandleFunc("POST /stop", s.handleStop)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /health", s.handleHealth)
	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(cfg.Gatherer))
	}

	// WriteTimeout stays zero so /events can stream.
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	defer s.rateLimiter.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			err = &ErrValidation{Field: verrs[0].Field(), Message: verrs[0].Tag()}
		}
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	settings := types.Settings{
		JobTitle: req.JobTitle,
		JobType:  types.JobType(req.JobType),
		Location: req.Location,
	}
	if err := s.controller.Start(settings); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusAccepted, s.controller.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.controller.Stop()
	s.jsonResponse(w, http.StatusOK, s.controller.Status())
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.controller.Status())
}

// handleEvents streams bus events as SSE, starting with the current status.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	ch := s.bus.Subscribe(events.DefaultBuffer)
	defer s.bus.Unsubscribe(ch)

	if err := sse.WriteEvent("snapshot", s.controller.Status()); err != nil {
		return
	}

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := sse.WriteEvent(string(e.Type), e); err != nil {
				s.log.Debugw("event stream closed", "error", err)
				return
			}
		case <-ticker.C:
			if err := sse.WriteComment("keep-alive"); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		if info.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		}
		if !allowed {
			retry := int(info.RetryAfter.Round(time.Second) / time.Second)
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			s.log.Warnw("rate limit exceeded", "path", r.URL.Path, "client", clientID(r))
			s.errorResponse(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debugw("request", "method", r.Method, "path", r.URL.Path,
			"remote", r.RemoteAddr, "duration", time.Since(start))
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warnw("error encoding JSON response", "error", err)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// clientID is the remote IP without the port.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
