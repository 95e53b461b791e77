package web

import (
	"encoding/json"
	"net/http"

	"github.com/BSMSciTech/guardian-pi-door/internal/eventlog"
	"github.com/BSMSciTech/guardian-pi-door/internal/schedule"
)

type doorRequest struct {
	Event string `json:"event"`
}

type actorRequest struct {
	Actor string `json:"actor"`
}

type configRequest struct {
	TimerDurationSeconds int    `json:"timer_duration_seconds"`
	InstantAlarmMode     bool   `json:"instant_alarm_mode"`
	Actor                string `json:"actor"`
}

type configResponse struct {
	TimerDurationSeconds int  `json:"timer_duration_seconds"`
	InstantAlarmMode     bool `json:"instant_alarm_mode"`
}

type scheduleRequest struct {
	schedule.Schedule
	Actor string `json:"actor"`
}

type eventsResponse struct {
	Events []eventlog.Record `json:"events"`
	Total  int64             `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}
