// Package web serves the dashboard and the JSON control API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BSMSciTech/guardian-pi-door/internal/eventlog"
	"github.com/BSMSciTech/guardian-pi-door/internal/logic"
	"github.com/BSMSciTech/guardian-pi-door/internal/schedule"
	"github.com/BSMSciTech/guardian-pi-door/internal/status"
)

// API is the controller surface the HTTP layer drives. Commands are
// serialized by the controller; handlers just translate requests.
type API interface {
	SubmitDoorEvent(ev logic.DoorEvent) error
	ResetAlarm(actor string) error
	SetConfig(cfg logic.Config, actor string) error
	SetAccessSchedule(s schedule.Schedule, actor string) error
	TestAlarm() error
}

// EventSource reads the persisted event history.
type EventSource interface {
	Recent(ctx context.Context, limit, offset int, eventType string) ([]eventlog.Record, error)
	Count(ctx context.Context) (int64, error)
}

// Server serves the dashboard, the API and the status websocket.
type Server struct {
	httpServer *http.Server
	api        API
	tracker    *status.Tracker
	events     EventSource
	log        *zap.SugaredLogger
}

// New creates a Server. events may be nil; /api/events then reports the
// history as unavailable.
func New(addr string, api API, tracker *status.Tracker, events EventSource, log *zap.SugaredLogger) *Server {
	s := &Server{
		api:     api,
		tracker: tracker,
		events:  events,
		log:     log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/door", s.handleDoor)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("POST /api/config", s.handleSetConfig)
	mux.HandleFunc("GET /api/schedule", s.handleGetSchedule)
	mux.HandleFunc("PUT /api/schedule", s.handleSetSchedule)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("POST /api/test-alarm", s.handleTestAlarm)
	mux.HandleFunc("GET /ws", s.handleWS)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleDoor(w http.ResponseWriter, r *http.Request) {
	var req doorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	ev, err := logic.ParseDoorEvent(req.Event)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.api.SubmitDoorEvent(ev); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeOK(w)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req actorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if err := s.api.ResetAlarm(req.Actor); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeOK(w)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	writeJSON(w, http.StatusOK, configResponse{
		TimerDurationSeconds: int(snap.Config.TimerDuration.Seconds()),
		InstantAlarmMode:     snap.Config.InstantAlarm,
	})
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	cfg := logic.Config{
		TimerDuration: time.Duration(req.TimerDurationSeconds) * time.Second,
		InstantAlarm:  req.InstantAlarmMode,
	}
	if err := s.api.SetConfig(cfg, req.Actor); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeOK(w)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	writeJSON(w, http.StatusOK, snap.Schedule)
}

func (s *Server) handleSetSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return
	}
	if err := s.api.SetAccessSchedule(req.Schedule, req.Actor); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeOK(w)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("event history unavailable"))
		return
	}
	q := r.URL.Query()
	limit := queryInt(q.Get("limit"), 0)
	offset := queryInt(q.Get("offset"), 0)

	records, err := s.events.Recent(r.Context(), limit, offset, q.Get("type"))
	if err != nil {
		s.log.Errorw("event history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("event history query failed"))
		return
	}
	total, err := s.events.Count(r.Context())
	if err != nil {
		s.log.Errorw("event count failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("event history query failed"))
		return
	}
	if records == nil {
		records = []eventlog.Record{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: records, Total: total})
}

func (s *Server) handleTestAlarm(w http.ResponseWriter, r *http.Request) {
	if err := s.api.TestAlarm(); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeOK(w)
}

func (s *Server) writeOK(w http.ResponseWriter) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func queryInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// decodeJSON fills dst from the request body. An empty body is treated as an
// empty object so bodyless commands like reset work from curl.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		writeError(w, http.StatusBadRequest, err)
		return err
	}
	return nil
}
