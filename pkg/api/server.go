package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/vjranagit/thermotrack/internal/metrics"
	"github.com/vjranagit/thermotrack/pkg/controller"
	"github.com/vjranagit/thermotrack/pkg/playback"
	"github.com/vjranagit/thermotrack/pkg/sensor"
	"github.com/vjranagit/thermotrack/pkg/series"
	"github.com/vjranagit/thermotrack/pkg/setpoint"
	"github.com/vjranagit/thermotrack/pkg/storage"
	"github.com/vjranagit/thermotrack/pkg/types"
)

// Deps are the collaborators the server exposes
type Deps struct {
	Storage    storage.Storage
	Series     *series.Store
	Clock      *playback.Clock
	Controller *controller.Controller
	Sensor     sensor.Source
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	// AllowedOrigins enables CORS for these origins when non-empty
	AllowedOrigins []string
	// AccessLog receives Apache-style access logs when set
	AccessLog io.Writer
	// Timeout bounds reads and writes of plain HTTP requests
	Timeout time.Duration
}

// Server implements the HTTP API server
type Server struct {
	deps     Deps
	log      *slog.Logger
	addr     string
	upgrader websocket.Upgrader

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates a new API server
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 30 * time.Second
	}

	s := &Server{
		deps: deps,
		log:  deps.Logger,
		addr: addr,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler builds the routed, middleware-wrapped handler
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/data", s.handleListReadings).Methods(http.MethodGet)
	r.HandleFunc("/api/data", s.handleAddReading).Methods(http.MethodPost)
	r.HandleFunc("/api/data/{id}", s.handleDeleteReading).Methods(http.MethodDelete)
	r.HandleFunc("/api/temperature", s.handleTemperature).Methods(http.MethodGet)
	r.HandleFunc("/api/setpoint", s.handleSetPoint).Methods(http.MethodGet)
	r.HandleFunc("/api/playback", s.handlePlayback).Methods(http.MethodGet)
	r.HandleFunc("/api/playback/{action}", s.handlePlaybackAction).Methods(http.MethodPost)
	r.HandleFunc("/api/runs", s.handleListRuns).Methods(http.MethodGet)
	r.HandleFunc("/api/runs/{id}", s.handleGetRun).Methods(http.MethodGet)
	r.HandleFunc("/api/stream", s.handleStream).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	var h http.Handler = r
	if len(s.deps.AllowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.deps.AllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type"}),
			handlers.AllowCredentials(),
		)(h)
	}
	if s.deps.AccessLog != nil {
		h = handlers.LoggingHandler(s.deps.AccessLog, h)
	}
	return h
}

// Start starts the HTTP server
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.deps.Timeout,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.log.Info("api server listening", "addr", s.addr)
	return srv.ListenAndServe()
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// readingRequest accepts "value" as an alias of "temperature"
type readingRequest struct {
	Time        *float64 `json:"time"`
	Temperature *float64 `json:"temperature"`
	Value       *float64 `json:"value"`
}

// handleListReadings lists readings ordered by time. When storage fails the
// session's in-memory series is served instead.
func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	readings, err := s.deps.Storage.ListReadings(r.Context())
	if err != nil {
		s.log.Warn("listing readings from storage failed, serving session copy", "err", err)
		readings = s.deps.Series.All()
	}

	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Time < readings[j].Time
	})
	writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleAddReading(w http.ResponseWriter, r *http.Request) {
	var req readingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.Temperature == nil {
		req.Temperature = req.Value
	}
	if req.Time == nil || req.Temperature == nil {
		writeError(w, http.StatusBadRequest, "time and temperature are required")
		return
	}

	reading, err := s.deps.Storage.AddReading(r.Context(), types.ControlPoint{
		Time:        *req.Time,
		Temperature: *req.Temperature,
	})
	if err != nil {
		s.log.Error("add reading failed", "err", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("write failed: %v", err))
		return
	}

	s.deps.Series.Put(reading)
	if s.deps.Metrics != nil {
		s.deps.Metrics.ReadingsAdded.Inc()
	}
	s.log.Info("reading added", "id", reading.ID, "time", reading.Time, "temperature", reading.Temperature)

	writeJSON(w, http.StatusCreated, reading)
}

func (s *Server) handleDeleteReading(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := s.deps.Storage.DeleteReading(r.Context(), id); err != nil {
		s.log.Error("delete reading failed", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("delete failed: %v", err))
		return
	}

	if s.deps.Series.Remove(id) {
		if s.deps.Metrics != nil {
			s.deps.Metrics.ReadingsRemoved.Inc()
		}
		s.log.Info("reading removed", "id", id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTemperature(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sensor == nil {
		writeJSON(w, http.StatusOK, sensor.Payload{})
		return
	}

	v, ok, err := s.deps.Sensor.Current(r.Context())
	if err != nil {
		s.log.Warn("temperature read failed", "err", err)
		writeError(w, http.StatusServiceUnavailable, "temperature unavailable")
		return
	}

	var p sensor.Payload
	if ok {
		p.Temperature = &v
	}
	writeJSON(w, http.StatusOK, p)
}

type setPointResponse struct {
	Time     float64  `json:"time"`
	SetPoint *float64 `json:"setPoint"`
	Display  string   `json:"display"`
}

func (s *Server) handleSetPoint(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("t")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing t parameter")
		return
	}
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid t parameter")
		return
	}

	v, ok := setpoint.Interpolate(s.deps.Series.Points(), t)
	resp := setPointResponse{Time: t, Display: setpoint.Format(v, ok)}
	if ok {
		resp.SetPoint = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Controller.Current())
}

func (s *Server) handlePlaybackAction(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	switch action {
	case "play":
		s.deps.Clock.Play()
	case "pause":
		s.deps.Clock.Pause()
	case "reset":
		s.deps.Clock.Reset()
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown playback action %q", action))
		return
	}

	s.log.Info("playback", "action", action, "time", s.deps.Clock.Time())
	writeJSON(w, http.StatusOK, s.deps.Controller.Current())
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.deps.Storage.ListRuns(r.Context())
	if err != nil {
		s.log.Error("list runs failed", "err", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.deps.Storage.GetRun(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.log.Error("get run failed", "err", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// checkOrigin allows same-host requests and the configured origins
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host {
		return true
	}
	for _, allowed := range s.deps.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
