// Package preview serves the latest processed frame to UI clients over
// WebSocket and exposes the engine's metrics over HTTP.
package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/framecast/engine/internal/health"
	"github.com/framecast/engine/internal/logging"
	"github.com/framecast/engine/internal/processing"
)

const writeWait = 10 * time.Second

// StatsSource provides the informational metrics strings.
type StatsSource interface {
	Stats() string
}

// MetricsResetter is implemented by stats sources whose counters an
// operator may zero.
type MetricsResetter interface {
	ResetMetrics()
}

// Server pushes ProcessedFrame bytes to every connected client as they
// become available. Slow clients fall behind to the most recent frame,
// never to a backlog.
type Server struct {
	addr    string
	latest  *processing.Latest
	capture StatsSource
	proc    StatsSource
	monitor *health.Monitor
	log     *slog.Logger

	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

type frameHeader struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Bytes  int `json:"bytes"`
}

func NewServer(addr string, latest *processing.Latest, captureStats, processingStats StatsSource, monitor *health.Monitor) *Server {
	s := &Server{
		addr:    addr,
		latest:  latest,
		capture: captureStats,
		proc:    processingStats,
		monitor: monitor,
		log:     logging.L("preview"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			// local preview UI only
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/metrics/reset", s.handleMetricsReset)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/healthz", s.handleHealth)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// ListenAndServe blocks until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	s.log.Info("preview server listening", "addr", s.addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// handleWS streams frames: a JSON header then the encoded bytes as one
// binary message, repeated as the latest slot changes.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", logging.KeyError, err)
		return
	}
	defer conn.Close()
	s.log.Debug("preview client connected", "remote", conn.RemoteAddr().String())

	// drain client messages so pings and close frames are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var seq uint64
	for {
		frame, next, ok := s.latest.Await(seq)
		if !ok {
			return
		}
		seq = next
		if len(frame.Data) == 0 {
			continue
		}

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		header := frameHeader{Width: frame.Width, Height: frame.Height, Bytes: len(frame.Data)}
		if err := conn.WriteJSON(header); err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, frame.Data); err != nil {
			return
		}
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "capture: %s\nprocessing: %s\n", s.capture.Stats(), s.proc.Stats())
}

// handleHealth reports per-component health. Any component worse than
// degraded turns the endpoint into a 503 so external probes notice.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	summary := s.monitor.Summary()
	code := http.StatusOK
	switch s.monitor.Overall() {
	case health.Unhealthy, health.Unknown:
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(summary)
}

// handleMetricsReset zeroes every resettable counter. POST only.
func (s *Server) handleMetricsReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	for _, src := range []StatsSource{s.capture, s.proc} {
		if rs, ok := src.(MetricsResetter); ok {
			rs.ResetMetrics()
		}
	}
	s.log.Info("metrics reset by operator")
	w.WriteHeader(http.StatusNoContent)
}

type statusPayload struct {
	Capture    string  `json:"capture"`
	Processing string  `json:"processing"`
	CPUPercent float64 `json:"cpu_percent"`
	MemoryMB   float64 `json:"memory_mb"`
}

// handleStatus reports engine counters plus the process's own resource
// usage, so the preview UI can show capture overhead.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	payload := statusPayload{
		Capture:    s.capture.Stats(),
		Processing: s.proc.Stats(),
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if cpu, err := proc.CPUPercent(); err == nil {
			payload.CPUPercent = cpu
		}
		if mem, err := proc.MemoryInfo(); err == nil {
			payload.MemoryMB = float64(mem.RSS) / (1024 * 1024)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}
