package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sweeney/stair-sensor/internal/eventlog"
	"github.com/sweeney/stair-sensor/internal/logic"
	"github.com/sweeney/stair-sensor/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker, *eventlog.Log) {
	t.Helper()
	ts, tr, log, _ := newTestServerWithHub(t)
	return ts, tr, log
}

func newTestServerWithHub(t *testing.T) (*httptest.Server, *status.Tracker, *eventlog.Log, *Hub) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Device:      "hall",
		PollMs:      100,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPPort:    ":8080",
	}
	tr := status.NewTracker(start, cfg)
	log := eventlog.New(10)
	srv := New(":0", tr, log, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.hub.Close()
		ts.Close()
	})
	return ts, tr, log, srv.hub
}

func at(sec int) time.Time {
	return time.Date(2026, 1, 1, 12, 0, sec, 0, time.UTC)
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update(status.SessionState{
		Running: true,
		ID:      "s1",
		Moving:  true,
		Counts:  logic.EventCounts{StairTransitions: 5, MotionStarts: 2},
	})
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if !sj.Status.Session.Running || sj.Status.Session.ID != "s1" {
		t.Errorf("Session: got %+v", sj.Status.Session)
	}
	if !sj.Status.Session.Moving {
		t.Error("expected Moving=true")
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q", sj.Status.MQTT.Broker)
	}
	if sj.Status.Counts.StairTransitions != 5 {
		t.Errorf("Counts.StairTransitions: got %d, want 5", sj.Status.Counts.StairTransitions)
	}
	if sj.Status.Config.PollMs != 100 {
		t.Errorf("Config.PollMs: got %d, want 100", sj.Status.Config.PollMs)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"})

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	json.NewDecoder(resp.Body).Decode(&sj)

	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestEventsEndpointNewestFirst(t *testing.T) {
	ts, _, log := newTestServer(t)
	log.Add(eventlog.Entry{Time: at(1), Kind: eventlog.KindSystem, Text: "activity detection started"})
	log.Add(eventlog.Entry{Time: at(2), Kind: eventlog.KindActivity, Text: "WALKING ENTER"})
	log.Add(eventlog.Entry{Time: at(3), Kind: eventlog.KindStair, Text: "stair transition detected"})

	resp, err := http.Get(ts.URL + "/events.json")
	if err != nil {
		t.Fatalf("GET /events.json: %v", err)
	}
	defer resp.Body.Close()

	var ej EventsJSON
	if err := json.NewDecoder(resp.Body).Decode(&ej); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(ej.Events) != 3 {
		t.Fatalf("events: got %d, want 3", len(ej.Events))
	}
	if ej.Events[0].Kind != "stair" || ej.Events[2].Kind != "system" {
		t.Errorf("order: got %+v", ej.Events)
	}
	if ej.Events[0].Time != "2026-01-01T12:00:03Z" {
		t.Errorf("time: got %q", ej.Events[0].Time)
	}
}

func TestEventsEndpointEmpty(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/events.json")
	if err != nil {
		t.Fatalf("GET /events.json: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"events": []`) {
		t.Errorf("expected empty array, got %s", body)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr, log := newTestServer(t)
	tr.Update(status.SessionState{Running: true, ID: "s1", OnStairs: true})
	log.Add(eventlog.Entry{Time: at(1), Kind: eventlog.KindSystem, Text: "first entry"})
	log.Add(eventlog.Entry{Time: at(2), Kind: eventlog.KindStair, Text: "second entry"})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	html := string(body)
	first := strings.Index(html, "first entry")
	second := strings.Index(html, "second entry")
	if first < 0 || second < 0 {
		t.Fatalf("event entries missing from page")
	}
	if second > first {
		t.Error("expected newest entry rendered first")
	}
	if !strings.Contains(html, "Stair Sensor hall") {
		t.Error("expected device name in heading")
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr, _ := newTestServer(t)

	resp1, _ := http.Get(ts.URL + "/index.json")
	var sj1 status.StatusJSON
	json.NewDecoder(resp1.Body).Decode(&sj1)
	resp1.Body.Close()
	if sj1.Status.Session.Running {
		t.Error("expected no session initially")
	}

	tr.Update(status.SessionState{Running: true, OnStairs: true})
	tr.SetSensors(true, true)

	resp2, _ := http.Get(ts.URL + "/index.json")
	var sj2 status.StatusJSON
	json.NewDecoder(resp2.Body).Decode(&sj2)
	resp2.Body.Close()

	if !sj2.Status.Session.Running || !sj2.Status.Session.OnStairs {
		t.Errorf("Session after update: got %+v", sj2.Status.Session)
	}
	if !sj2.Status.Sensors.Acceleration || !sj2.Status.Sensors.Pressure {
		t.Errorf("Sensors after update: got %+v", sj2.Status.Sensors)
	}
}

func TestWebsocketFeed(t *testing.T) {
	ts, _, log, hub := newTestServerWithHub(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	defer conn.Close()

	waitForClients(t, hub, 1)

	log.Add(eventlog.Entry{Time: at(5), Kind: eventlog.KindStair, Text: "stair transition detected"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got eventJSON
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Kind != "stair" || got.Text != "stair transition detected" {
		t.Errorf("got %+v", got)
	}
	if got.Time != "2026-01-01T12:00:05Z" {
		t.Errorf("time: got %q", got.Time)
	}
}

func TestHubClose(t *testing.T) {
	h := NewHub(zap.NewNop())
	ts := httptest.NewServer(http.HandlerFunc(h.serveWS))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitForClients(t, h, 1)

	h.Close()
	if h.Clients() != 0 {
		t.Errorf("clients after Close: got %d, want 0", h.Clients())
	}
	h.Broadcast(eventlog.Entry{Time: at(1), Kind: eventlog.KindSystem, Text: "x"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close, got %v", err)
	}
}

func TestServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	tr := status.NewTracker(at(0), status.Config{Device: "hall"})
	log := eventlog.New(10)
	srv := New(ln.Addr().String(), tr, log, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	select {
	case err := <-done:
		if err != http.ErrServerClosed {
			t.Errorf("Serve returned %v, want ErrServerClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}

	// The feed is detached: adding entries after shutdown must not block.
	log.Add(eventlog.Entry{Time: at(1), Kind: eventlog.KindSystem, Text: "after shutdown"})
}

// waitForClients polls until the hub has registered n clients. The hub
// registers a client only after the handshake completes.
func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := h.Clients(); got != n {
		t.Fatalf("clients: got %d, want %d", got, n)
	}
}
