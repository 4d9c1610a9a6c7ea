package preview

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/framecast/engine/internal/health"
	"github.com/framecast/engine/internal/processing"
)

type fixedStats string

func (s fixedStats) Stats() string { return string(s) }

func newTestServer(t *testing.T, latest *processing.Latest) (*Server, *httptest.Server) {
	t.Helper()
	monitor := health.NewMonitor()
	monitor.Update("capture", health.Healthy, "")
	s := NewServer("127.0.0.1:0", latest,
		fixedStats("captured=5 dropped=0"), fixedStats("state=running processed=5"), monitor)
	ts := httptest.NewServer(s.httpSrv.Handler)
	t.Cleanup(ts.Close)
	return s, ts
}

type resettableStats struct {
	resets int
}

func (r *resettableStats) Stats() string { return "captured=9" }
func (r *resettableStats) ResetMetrics() { r.resets++ }

func TestMetricsResetEndpoint(t *testing.T) {
	latest := processing.NewLatest()
	src := &resettableStats{}
	monitor := health.NewMonitor()
	s := NewServer("127.0.0.1:0", latest, src, fixedStats("state=stopped"), monitor)
	ts := httptest.NewServer(s.httpSrv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics/reset")
	if err != nil {
		t.Fatalf("GET /metrics/reset: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d, want 405", resp.StatusCode)
	}
	if src.resets != 0 {
		t.Fatal("GET must not reset counters")
	}

	resp, err = http.Post(ts.URL+"/metrics/reset", "", nil)
	if err != nil {
		t.Fatalf("POST /metrics/reset: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("POST status = %d, want 204", resp.StatusCode)
	}
	if src.resets != 1 {
		t.Fatalf("resets = %d, want 1", src.resets)
	}
}

func TestHealthEndpoint(t *testing.T) {
	latest := processing.NewLatest()
	s, ts := newTestServer(t, latest)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var summary map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if summary["status"] != "healthy" {
		t.Errorf("overall status = %v, want healthy", summary["status"])
	}

	s.monitor.Update("capture", health.Unhealthy, "frame loop stalled")
	resp2, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 when unhealthy", resp2.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	latest := processing.NewLatest()
	_, ts := newTestServer(t, latest)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	buf := make([]byte, 256)
	n, _ := resp.Body.Read(buf)
	body := string(buf[:n])
	if !strings.Contains(body, "captured=5") || !strings.Contains(body, "processed=5") {
		t.Errorf("metrics body = %q, want capture and processing stats", body)
	}
}

func TestStatusEndpoint(t *testing.T) {
	latest := processing.NewLatest()
	_, ts := newTestServer(t, latest)

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	var payload statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if payload.Capture != "captured=5 dropped=0" {
		t.Errorf("capture stats = %q", payload.Capture)
	}
}

func TestWebSocketPushesLatestFrame(t *testing.T) {
	latest := processing.NewLatest()
	_, ts := newTestServer(t, latest)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	latest.Set(processing.ProcessedFrame{Data: []byte{0xFF, 0xD8, 0xAA}, Width: 800, Height: 450})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var header frameHeader
	if err := conn.ReadJSON(&header); err != nil {
		t.Fatalf("read header: %v", err)
	}
	if header.Width != 800 || header.Height != 450 || header.Bytes != 3 {
		t.Errorf("header = %+v, want 800x450, 3 bytes", header)
	}

	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Errorf("message type = %d, want binary", kind)
	}
	if len(data) != 3 || data[0] != 0xFF {
		t.Errorf("frame bytes = %v, want the published frame", data)
	}
}
