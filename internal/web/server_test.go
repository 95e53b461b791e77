package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/BSMSciTech/guardian-pi-door/internal/eventlog"
	"github.com/BSMSciTech/guardian-pi-door/internal/logic"
	"github.com/BSMSciTech/guardian-pi-door/internal/schedule"
	"github.com/BSMSciTech/guardian-pi-door/internal/status"
)

type fakeAPI struct {
	doorEvents []logic.DoorEvent
	resets     []string
	configs    []logic.Config
	schedules  []schedule.Schedule
	testAlarms int
	err        error
}

func (f *fakeAPI) SubmitDoorEvent(ev logic.DoorEvent) error {
	f.doorEvents = append(f.doorEvents, ev)
	return f.err
}

func (f *fakeAPI) ResetAlarm(actor string) error {
	f.resets = append(f.resets, actor)
	return f.err
}

func (f *fakeAPI) SetConfig(cfg logic.Config, actor string) error {
	if f.err != nil {
		return f.err
	}
	f.configs = append(f.configs, cfg)
	return nil
}

func (f *fakeAPI) SetAccessSchedule(s schedule.Schedule, actor string) error {
	if f.err != nil {
		return f.err
	}
	f.schedules = append(f.schedules, s)
	return nil
}

func (f *fakeAPI) TestAlarm() error {
	f.testAlarms++
	return f.err
}

type fakeEvents struct {
	records []eventlog.Record
	gotType string
	gotLim  int
	gotOff  int
}

func (f *fakeEvents) Recent(ctx context.Context, limit, offset int, eventType string) ([]eventlog.Record, error) {
	f.gotLim, f.gotOff, f.gotType = limit, offset, eventType
	return f.records, nil
}

func (f *fakeEvents) Count(ctx context.Context) (int64, error) {
	return int64(len(f.records)), nil
}

func newTestServer(api *fakeAPI, events EventSource) (*Server, *status.Tracker) {
	tracker := status.NewTracker(time.Now().Add(-time.Hour), "tcp://broker:1883", false)
	tracker.Update(logic.DoorClosed, logic.ModeNormal, time.Time{}, 0,
		logic.Config{TimerDuration: 30 * time.Second}, schedule.Default())
	return New(":0", api, tracker, events, zap.NewNop().Sugar()), tracker
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)
	return rr
}

func send(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexRendersDashboard(t *testing.T) {
	s, _ := newTestServer(&fakeAPI{}, nil)

	rr := get(t, s, "/")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Door Guardian", "CLOSED", "NORMAL", "tcp://broker:1883"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestStatusEndpoint(t *testing.T) {
	s, tracker := newTestServer(&fakeAPI{}, nil)
	started := time.Now().Add(-10 * time.Second)
	tracker.Update(logic.DoorOpen, logic.ModeCountdown, started, 30*time.Second,
		logic.Config{TimerDuration: 30 * time.Second}, schedule.Default())

	rr := get(t, s, "/api/status")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}

	var doc status.StatusJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Status.Door != "OPEN" || doc.Status.Alarm != "COUNTDOWN" {
		t.Errorf("got %s/%s, want OPEN/COUNTDOWN", doc.Status.Door, doc.Status.Alarm)
	}
	if doc.Status.RemainingCountdownSeconds == nil {
		t.Fatal("remaining_countdown_seconds missing")
	}
	if got := *doc.Status.RemainingCountdownSeconds; got < 15 || got > 25 {
		t.Errorf("remaining: got %d, want ~20", got)
	}
}

func TestDoorEndpoint(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newTestServer(api, nil)

	rr := send(t, s, http.MethodPost, "/api/door", `{"event":"OPEN"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if len(api.doorEvents) != 1 || api.doorEvents[0] != logic.DoorEventOpen {
		t.Errorf("door events: %v", api.doorEvents)
	}

	rr = send(t, s, http.MethodPost, "/api/door", `{"event":"AJAR"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("invalid event: got %d, want 400", rr.Code)
	}
	if len(api.doorEvents) != 1 {
		t.Errorf("invalid event reached the controller")
	}
}

func TestResetEndpoint(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newTestServer(api, nil)

	rr := send(t, s, http.MethodPost, "/api/reset", `{"actor":"admin"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}

	// Bodyless reset is allowed; the actor is simply empty.
	rr = send(t, s, http.MethodPost, "/api/reset", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("bodyless reset: got %d", rr.Code)
	}

	if len(api.resets) != 2 || api.resets[0] != "admin" || api.resets[1] != "" {
		t.Errorf("resets: %v", api.resets)
	}
}

func TestConfigEndpoints(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newTestServer(api, nil)

	rr := get(t, s, "/api/config")
	var cfg configResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.TimerDurationSeconds != 30 || cfg.InstantAlarmMode {
		t.Errorf("config: %+v", cfg)
	}

	rr = send(t, s, http.MethodPost, "/api/config",
		`{"timer_duration_seconds":60,"instant_alarm_mode":true,"actor":"admin"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if len(api.configs) != 1 {
		t.Fatalf("configs: %v", api.configs)
	}
	if api.configs[0].TimerDuration != 60*time.Second || !api.configs[0].InstantAlarm {
		t.Errorf("config passed: %+v", api.configs[0])
	}
}

func TestConfigRejectionReturns400(t *testing.T) {
	api := &fakeAPI{err: logic.Config{}.Validate()}
	s, _ := newTestServer(api, nil)

	rr := send(t, s, http.MethodPost, "/api/config", `{"timer_duration_seconds":0}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == "" {
		t.Error("error body empty")
	}
}

func TestScheduleEndpoints(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newTestServer(api, nil)

	rr := get(t, s, "/api/schedule")
	var sched schedule.Schedule
	if err := json.Unmarshal(rr.Body.Bytes(), &sched); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(sched.Weekday) == 0 {
		t.Error("schedule weekday windows missing")
	}

	rr = send(t, s, http.MethodPut, "/api/schedule",
		`{"weekday":[{"start":"07:00","end":"19:00"}],"weekend":[],"actor":"admin"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}
	if len(api.schedules) != 1 || len(api.schedules[0].Weekday) != 1 {
		t.Fatalf("schedules: %+v", api.schedules)
	}
	if api.schedules[0].Weekday[0].Start != "07:00" {
		t.Errorf("window: %+v", api.schedules[0].Weekday[0])
	}
}

func TestEventsEndpoint(t *testing.T) {
	src := &fakeEvents{records: []eventlog.Record{
		{ID: 2, Type: "DOOR_OPEN", Severity: "WARNING"},
		{ID: 1, Type: "DOOR_CLOSE", Severity: "INFO"},
	}}
	s, _ := newTestServer(&fakeAPI{}, src)

	rr := get(t, s, "/api/events?limit=10&offset=5&type=door_open")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if src.gotLim != 10 || src.gotOff != 5 || src.gotType != "door_open" {
		t.Errorf("query passed: limit=%d offset=%d type=%q", src.gotLim, src.gotOff, src.gotType)
	}

	var resp eventsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Events) != 2 || resp.Total != 2 {
		t.Errorf("events: %+v", resp)
	}
}

func TestEventsEndpointWithoutStore(t *testing.T) {
	s, _ := newTestServer(&fakeAPI{}, nil)

	rr := get(t, s, "/api/events")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rr.Code)
	}
}

func TestTestAlarmEndpoint(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newTestServer(api, nil)

	rr := send(t, s, http.MethodPost, "/api/test-alarm", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if api.testAlarms != 1 {
		t.Errorf("test alarms: %d", api.testAlarms)
	}
}

func TestWebsocketStreamsStatus(t *testing.T) {
	s, tracker := newTestServer(&fakeAPI{}, nil)

	srv := httptest.NewServer(s.httpServer.Handler)
	defer srv.Close()

	tracker.Update(logic.DoorOpen, logic.ModeAlarmed, time.Time{}, 0,
		logic.Config{TimerDuration: 30 * time.Second}, schedule.Default())

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var doc status.StatusJSON
	if err := json.Unmarshal(payload, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Status.Door != "OPEN" || doc.Status.Alarm != "ALARMED" {
		t.Errorf("got %s/%s, want OPEN/ALARMED", doc.Status.Door, doc.Status.Alarm)
	}
}
