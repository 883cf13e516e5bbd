package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/antnest/internal/engine"
)

const (
	sseCatchUp     = 50
	sseHeartbeat   = 15 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// WSMessage is one WebSocket frame. A map frame is sent on connect and again
// whenever the run or its explored count changes; state frames follow at the
// push interval.
type WSMessage struct {
	Type  string                `json:"type"` // "map" or "state"
	Map   *engine.MapSnapshot   `json:"map,omitempty"`
	State *engine.StateSnapshot `json:"state,omitempty"`
}

// handleStream serves simulation events as server-sent events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	current := atomic.AddInt32(&s.sseConns, 1)
	if current > maxSSEConns {
		atomic.AddInt32(&s.sseConns, -1)
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.sseConns, -1)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subID, backlog, ch := s.Sim.SubscribeWithBacklog(sseCatchUp)
	defer s.Sim.Unsubscribe(subID)

	for _, e := range backlog {
		writeSSEEvent(w, e)
	}
	flusher.Flush()

	slog.Info("SSE client connected", "sub_id", subID)

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			writeSSEEvent(w, e)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "sub_id", subID)
			return
		}
	}
}

// writeSSEEvent writes a single event in SSE format.
func writeSSEEvent(w http.ResponseWriter, e engine.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Category, data)
}

// handleWS pushes the map once, then state snapshots until the client leaves.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Reader: clients only send close frames; any read error ends the session.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	slog.Debug("websocket client connected", "remote", r.RemoteAddr)

	ticker := time.NewTicker(s.PushInterval)
	defer ticker.Stop()

	runID, explored := "", 0
	for {
		st := s.Sim.SnapshotState()
		if st.RunID != runID || st.Explored != explored {
			m := s.Sim.SnapshotMap()
			if err := writeWS(conn, WSMessage{Type: "map", Map: &m}); err != nil {
				return
			}
			runID, explored = st.RunID, st.Explored
		}
		if err := writeWS(conn, WSMessage{Type: "state", State: &st}); err != nil {
			return
		}

		select {
		case <-gone:
			slog.Debug("websocket client disconnected", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(time.Second))
			return
		case <-ticker.C:
		}
	}
}

func writeWS(conn *websocket.Conn, msg WSMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(msg)
}
