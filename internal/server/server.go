// internal/server/server.go

// Package server exposes the dashboard service over HTTP: a JSON control plane and a websocket
// event plane.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/mwiater/georaft/internal/benchmark"
	"github.com/mwiater/georaft/internal/dashboard"
	"github.com/mwiater/georaft/internal/history"
	"github.com/mwiater/georaft/internal/logging"
	"github.com/mwiater/georaft/internal/sources"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

// Options configures a Server.
type Options struct {
	Addr    string
	Version string
}

// Server routes control-plane and event-plane requests to a dashboard.Service.
type Server struct {
	svc      *dashboard.Service
	opts     Options
	router   *mux.Router
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

// New builds the router for svc.
func New(svc *dashboard.Service, opts Options) *Server {
	s := &Server{
		svc:  svc,
		opts: opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: logging.WithComponent("server"),
	}

	router := mux.NewRouter()
	router.Use(s.logRequests)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/benchmarks", s.handleStartBenchmark).Methods("POST")
	api.HandleFunc("/benchmarks/history", s.handleHistory).Methods("GET")
	api.HandleFunc("/benchmarks/import", s.handleImportBenchmark).Methods("POST")
	api.HandleFunc("/benchmarks/{id}", s.handleDetails).Methods("GET")
	api.HandleFunc("/benchmarks/{id}/stop", s.handleStopBenchmark).Methods("POST")
	api.HandleFunc("/monitoring/start", s.handleStartMonitoring).Methods("POST")
	api.HandleFunc("/monitoring/stop", s.handleStopMonitoring).Methods("POST")
	api.HandleFunc("/prometheus/query_range", s.handleQueryRange).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/ws", s.handleWebSocket)

	s.router = router
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errorLog := logging.Logger().WriterLevel(logrus.WarnLevel)
	defer errorLog.Close()
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.New(errorLog, "", 0),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.opts.Addr).Info("control plane listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"remote":   r.RemoteAddr,
			"duration": time.Since(start).String(),
		}).Debug("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"version":    s.opts.Version,
		"uptime":     s.svc.Uptime().Round(time.Second).String(),
		"monitoring": s.svc.Monitoring(),
		"timestamp":  time.Now().UTC(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleStartBenchmark(w http.ResponseWriter, r *http.Request) {
	var cfg benchmark.Config
	if err := decodeJSON(w, r, &cfg); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.svc.StartBenchmark(cfg)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":      id,
		"status":  string(benchmark.StatusPending),
		"message": "benchmark started",
	})
}

func (s *Server) handleStopBenchmark(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.svc.StopBenchmark(id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "message": "benchmark stopping"})
}

func (s *Server) handleImportBenchmark(w http.ResponseWriter, r *http.Request) {
	var run benchmark.Run
	if err := decodeJSON(w, r, &run); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is required")
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	stored, err := s.svc.ImportRun(run)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rep, err := s.svc.History(history.Filter{
		Region:   q.Get("region"),
		Workload: q.Get("workload"),
		Window:   q.Get("time"),
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	run, err := s.svc.Details(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleStartMonitoring(w http.ResponseWriter, _ *http.Request) {
	changed := s.svc.StartMonitoring()
	writeJSON(w, http.StatusOK, map[string]bool{"isMonitoring": true, "changed": changed})
}

func (s *Server) handleStopMonitoring(w http.ResponseWriter, _ *http.Request) {
	changed := s.svc.StopMonitoring()
	writeJSON(w, http.StatusOK, map[string]bool{"isMonitoring": false, "changed": changed})
}

func (s *Server) handleQueryRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	expr := q.Get("query")
	if expr == "" {
		writeError(w, http.StatusBadRequest, errors.New("query parameter is required"))
		return
	}
	end, err := parseTime(q.Get("end"), time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	start, err := parseTime(q.Get("start"), end.Add(-time.Hour))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	step, err := parseStep(q.Get("step"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	series, err := s.svc.QueryRange(r.Context(), expr, start, end, step)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": expr, "start": start, "end": end, "step": step.String(), "series": series})
}

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, benchmark.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, benchmark.ErrInvalidConfig), errors.Is(err, history.ErrInvalidFilter),
		errors.Is(err, history.ErrInvalidRun):
		return http.StatusBadRequest
	case errors.Is(err, dashboard.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dashboard.ErrNoPrometheus):
		return http.StatusServiceUnavailable
	case errors.Is(err, sources.ErrSourceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return io.EOF
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
