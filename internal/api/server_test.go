package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-lights/internal/device"
	"github.com/nerrad567/gray-logic-lights/internal/dispatch"
	"github.com/nerrad567/gray-logic-lights/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lights/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-lights/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-lights/internal/schedule"
	_ "github.com/nerrad567/gray-logic-lights/migrations"
)

type testEnv struct {
	srv      *Server
	handler  http.Handler
	registry *device.Registry
	sim      *device.Simulated
	store    *schedule.Store
}

// testServer wires a Server over simulated lights and an in-memory database.
func testServer(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(database.Config{Path: database.MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	sim := device.NewSimulated(0)
	registry, err := device.NewRegistry([]device.Device{
		{ID: "10.0.0.1", Name: "Alpha", Transport: device.TransportTelnet, Address: "10.0.0.1"},
		{ID: "10.0.0.2", Name: "Bravo", Transport: device.TransportTelnet, Address: "10.0.0.2"},
		{ID: "desk", Name: "Desk", Transport: device.TransportKasa, Address: "10.0.0.3"},
	}, device.SimulatedTransports(sim))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	store := schedule.NewStore(schedule.NewSQLiteRepository(db.DB))
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	prom := prometheus.NewRegistry()
	srv, err := New(Deps{
		Config:   config.APIConfig{Host: "127.0.0.1"},
		WS:       config.WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Logger:   logging.Discard(),
		Registry: registry,
		Dispatcher: dispatch.New(registry, dispatch.Options{
			CommandTimeout: time.Second,
			Metrics:        dispatch.NewMetrics(prom),
		}),
		Schedules:  store,
		DB:         db,
		Prometheus: prom,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	registry.SetOnStateChange(srv.OnDeviceStateChange)
	store.SetOnChange(srv.OnScheduleChanged)

	return &testEnv{srv: srv, handler: srv.buildRouter(), registry: registry, sim: sim, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New(Deps{}) should fail without a logger")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() should fail without a registry")
	}
}

func TestHealth(t *testing.T) {
	env := testServer(t)
	rec := env.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestLightCommand(t *testing.T) {
	env := testServer(t)

	rec := env.do(t, http.MethodPost, "/on/10.0.0.1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decode[CommandResponse](t, rec)
	if !resp.Success || resp.Response != "ok on" {
		t.Errorf("response = %+v", resp)
	}

	lights := decode[[]LightResponse](t, env.do(t, http.MethodGet, "/lights", ""))
	if len(lights) != 3 || lights[0].State != device.PowerOn || lights[1].State != device.PowerUnknown {
		t.Errorf("lights = %+v", lights)
	}

	rec = env.do(t, http.MethodPost, "/off/desk", "")
	if resp := decode[CommandResponse](t, rec); !resp.Success || resp.Response != "ok off" {
		t.Errorf("off response = %+v", resp)
	}
}

func TestLightCommand_UnknownDevice(t *testing.T) {
	env := testServer(t)
	rec := env.do(t, http.MethodPost, "/on/10.9.9.9", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	resp := decode[CommandResponse](t, rec)
	if resp.Success || resp.Code != ErrCodeUnknownDevice || resp.Error == "" {
		t.Errorf("response = %+v", resp)
	}
}

func TestLightCommand_DeviceFailure(t *testing.T) {
	env := testServer(t)
	env.sim.FailDevice("10.0.0.2", errors.New("connection refused"))

	rec := env.do(t, http.MethodPost, "/on/10.0.0.2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decode[CommandResponse](t, rec)
	if resp.Success {
		t.Fatal("failed device reported success")
	}
	if !strings.Contains(resp.Error, "connection refused") || resp.Code != "device_command_failed" {
		t.Errorf("response = %+v", resp)
	}
}

func TestBulkCommand(t *testing.T) {
	env := testServer(t)

	rec := env.do(t, http.MethodPost, "/off_all", "")
	if resp := decode[BulkResponse](t, rec); !resp.Success || resp.Error != "" {
		t.Errorf("off_all = %+v", resp)
	}

	env.sim.FailDevice("10.0.0.2", errors.New("connection refused"))
	rec = env.do(t, http.MethodPost, "/on_all", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decode[BulkResponse](t, rec)
	if resp.Success {
		t.Fatal("partial failure reported success")
	}
	if resp.Error != "Failed to turn on: Bravo" {
		t.Errorf("error = %q", resp.Error)
	}
	if len(resp.Failed) != 1 || resp.Failed[0].DeviceID != "10.0.0.2" {
		t.Errorf("failed = %+v", resp.Failed)
	}

	alpha, _ := env.registry.Get("10.0.0.1")
	if alpha.State != device.PowerOn {
		t.Errorf("healthy device state = %s, want on", alpha.State)
	}
}

func TestSchedules_CRUD(t *testing.T) {
	env := testServer(t)

	rec := env.do(t, http.MethodPost, "/schedules", `{"time":"07:30","action":"on"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	created := decode[map[string]any](t, rec)
	if created["time"] != "07:30" || created["action"] != "ON" || created["enabled"] != true {
		t.Errorf("created = %v", created)
	}
	id := int64(created["id"].(float64))

	list := decode[[]map[string]any](t, env.do(t, http.MethodGet, "/schedules", ""))
	if len(list) != 1 {
		t.Fatalf("list = %v", list)
	}

	toggled := decode[map[string]any](t, env.do(t, http.MethodPut, pathf("/schedules/%d/toggle", id), ""))
	if toggled["enabled"] != false {
		t.Errorf("first toggle = %v", toggled)
	}
	toggled = decode[map[string]any](t, env.do(t, http.MethodPut, pathf("/schedules/%d/toggle", id), ""))
	if toggled["enabled"] != true {
		t.Errorf("second toggle = %v", toggled)
	}

	runs := env.do(t, http.MethodGet, pathf("/schedules/%d/runs?limit=5", id), "")
	if runs.Code != http.StatusOK || strings.TrimSpace(runs.Body.String()) != "[]" {
		t.Errorf("runs = %d %s", runs.Code, runs.Body)
	}

	rec = env.do(t, http.MethodDelete, pathf("/schedules/%d", id), "")
	if del := decode[DeleteScheduleResponse](t, rec); !del.Success || del.ID != id {
		t.Errorf("delete = %+v", del)
	}

	for _, tc := range []struct{ method, path string }{
		{http.MethodDelete, pathf("/schedules/%d", id)},
		{http.MethodPut, pathf("/schedules/%d/toggle", id)},
		{http.MethodGet, pathf("/schedules/%d/runs", id)},
		{http.MethodDelete, "/schedules/abc"},
	} {
		rec := env.do(t, tc.method, tc.path, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s status = %d, want 404", tc.method, tc.path, rec.Code)
		}
		if e := decode[Error](t, rec); e.Error == "" || e.Code != ErrCodeNotFound {
			t.Errorf("%s %s body = %+v", tc.method, tc.path, e)
		}
	}
}

func TestSchedules_CreateValidation(t *testing.T) {
	env := testServer(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid time", `{"time":"25:99","action":"ON"}`, "invalid time"},
		{"invalid action", `{"time":"07:00","action":"dim"}`, "invalid action"},
		{"bad json", `{"time":`, "invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/schedules", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if e := decode[Error](t, rec); !strings.Contains(e.Error, tt.want) {
				t.Errorf("error = %q, want it to contain %q", e.Error, tt.want)
			}
		})
	}

	if n := len(env.store.List(context.Background())); n != 0 {
		t.Errorf("store has %d schedules after rejected creates", n)
	}
}

func TestSchedules_RunsLimitValidation(t *testing.T) {
	env := testServer(t)
	sc, err := env.store.Create(context.Background(), "08:00", "OFF")
	if err != nil {
		t.Fatal(err)
	}
	rec := env.do(t, http.MethodGet, pathf("/schedules/%d/runs?limit=0", sc.ID), "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestStatusAndMetrics(t *testing.T) {
	env := testServer(t)
	env.do(t, http.MethodPost, "/on_all", "")

	status := decode[SystemStatus](t, env.do(t, http.MethodGet, "/status", ""))
	if status.Devices.TotalDevices != 3 || status.Database == nil {
		t.Errorf("status = %+v", status)
	}

	rec := env.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	for _, want := range []string{"graylights_http_requests_total", "graylights_device_commands_total", `route="/on_all"`} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestNotFoundIsJSON(t *testing.T) {
	env := testServer(t)
	rec := env.do(t, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if e := decode[Error](t, rec); e.Code != ErrCodeNotFound {
		t.Errorf("body = %+v", e)
	}
}

func TestWebSocket_ReceivesEvents(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.handler)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for env.srv.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Post(ts.URL+"/on/desk", "application/json", nil)
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	var msg wsFrame
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Kind != frameEvent || msg.Event != EventDeviceStateChanged {
		t.Errorf("message = %+v", msg)
	}
	data, _ := msg.Data.(map[string]any)
	if data["device_id"] != "desk" || data["state"] != "on" {
		t.Errorf("data = %v", msg.Data)
	}
}

func TestWebSocket_SubscriptionFilters(t *testing.T) {
	env := testServer(t)
	ts := httptest.NewServer(env.handler)
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline

	sub := wsRequest{Kind: frameSubscribe, ID: "1", Channels: []string{EventScheduleChanged}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	var ack wsFrame
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ack.Kind != frameAck || ack.ID != "1" {
		t.Fatalf("ack = %+v", ack)
	}

	// A light event is filtered out; the schedule event arrives first.
	env.srv.PublishEvent(EventDeviceStateChanged, map[string]any{"device_id": "desk"})
	env.srv.PublishEvent(EventScheduleChanged, map[string]any{"change": "created"})

	var msg wsFrame
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Event != EventScheduleChanged {
		t.Errorf("event = %q, want %q", msg.Event, EventScheduleChanged)
	}
}

func TestParseStatePayload(t *testing.T) {
	tests := []struct {
		in   string
		want device.PowerState
		ok   bool
	}{
		{`{"state":"on"}`, device.PowerOn, true},
		{`{"state":"OFF"}`, device.PowerOff, true},
		{`{"on":true}`, device.PowerOn, true},
		{`{"on":false}`, device.PowerOff, true},
		{`on`, device.PowerOn, true},
		{`"off"`, device.PowerOff, true},
		{`{"brightness":40}`, "", false},
		{`dim`, "", false},
	}
	for _, tt := range tests {
		got, ok := parseStatePayload([]byte(tt.in))
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parseStatePayload(%s) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
