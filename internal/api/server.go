// Package api serves the nest layout, live exploration state and run history
// over HTTP. GET endpoints are read-only; POST endpoints drive the simulation.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/talgya/antnest/internal/engine"
)

const (
	maxSSEConns     = 16
	maxSpawnBatch   = 100
	maxSpeed        = 100
	defaultEvents   = 50
	defaultRuns     = 20
	maxListLimit    = 200
	defaultWSPush   = 33 * time.Millisecond
)

// RunLedger lists completed runs.
type RunLedger interface {
	RecentRuns(limit int) ([]engine.RunRecord, error)
	FastestRuns(limit int) ([]engine.RunRecord, error)
}

// Server serves the simulation over HTTP.
type Server struct {
	Sim  *engine.Simulation
	Eng  *engine.Engine // Optional; speed control is disabled without it
	Runs RunLedger      // Optional; /api/runs returns 404 without it
	Port int

	CORSOrigins  []string      // "*" or explicit origins; empty means "*"
	PushInterval time.Duration // WebSocket state push period
	SpawnLimiter *RateLimiter  // Optional; nil leaves /api/spawn unlimited

	started  time.Time
	sseConns int32
	upgrader websocket.Upgrader
	http     *http.Server
	cancel   context.CancelFunc // Ends live feeds on shutdown
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	if s.PushInterval <= 0 {
		s.PushInterval = defaultWSPush
	}
	policy := newOriginPolicy(s.CORSOrigins)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     policy.checkOrigin,
	}

	mux := http.NewServeMux()

	// Observation.
	mux.HandleFunc("/api/map", only(http.MethodGet, s.handleMap))
	mux.HandleFunc("/api/map.geojson", only(http.MethodGet, s.handleGeoJSON))
	mux.HandleFunc("/api/state", only(http.MethodGet, s.handleState))
	mux.HandleFunc("/api/status", only(http.MethodGet, s.handleStatus))
	mux.HandleFunc("/api/events", only(http.MethodGet, s.handleEvents))
	mux.HandleFunc("/api/runs", only(http.MethodGet, s.handleRuns))
	mux.HandleFunc("/api/health", only(http.MethodGet, s.handleHealth))

	// Live feeds.
	mux.HandleFunc("/api/stream", only(http.MethodGet, s.handleStream))
	mux.HandleFunc("/api/ws", only(http.MethodGet, s.handleWS))

	// Control.
	// Spawning is unbounded by default; operators may opt into a per-client cap.
	spawn := s.handleSpawn
	if s.SpawnLimiter != nil {
		spawn = limited(s.SpawnLimiter, spawnCost, spawn)
	}
	mux.HandleFunc("/api/spawn", only(http.MethodPost, spawn))
	mux.HandleFunc("/api/reset", only(http.MethodPost, s.handleReset))
	mux.HandleFunc("/api/speed", s.handleSpeed)

	return corsMiddleware(policy, mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	base, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	slog.Info("HTTP API starting", "addr", addr, "ledger", s.Runs != nil, "speed_control", s.Eng != nil)

	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops accepting connections and waits for handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	s.cancel()
	return s.http.Shutdown(ctx)
}

// originPolicy is the allow-list built from CORSOrigins. A "*" entry (or no
// entries) allows any origin.
type originPolicy struct {
	anyOrigin bool
	allowed   map[string]bool
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{anyOrigin: len(origins) == 0, allowed: make(map[string]bool, len(origins))}
	for _, o := range origins {
		if o == "*" {
			p.anyOrigin = true
		}
		p.allowed[o] = true
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	return p.anyOrigin || p.allowed[origin]
}

// checkOrigin gates WebSocket upgrades. Requests without an Origin header
// come from non-browser clients and are accepted.
func (p originPolicy) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || p.allows(origin)
}

// corsMiddleware adds CORS headers. Only origins the policy allows are echoed back.
func corsMiddleware(policy originPolicy, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case policy.anyOrigin:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case policy.allows(origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// only rejects every method but m with 405.
func only(m string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != m {
			w.Header().Set("Allow", m)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.SnapshotMap())
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	fc := s.Sim.Nest().GeoJSON()
	data, err := fc.MarshalJSON()
	if err != nil {
		slog.Error("geojson encode failed", "error", err)
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(data)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.SnapshotState())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Sim.Status()
	resp := map[string]any{
		"run":     st,
		"elapsed": st.Elapsed.Round(time.Millisecond).String(),
		"started": humanize.Time(st.StartTime),
	}
	if s.Eng != nil {
		resp["engine"] = map[string]any{
			"ticks":   s.Eng.Ticks(),
			"speed":   s.Eng.Speed(),
			"running": s.Eng.Running(),
		}
	}
	writeJSON(w, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultEvents, 1, maxListLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s.Sim.RecentEvents(limit))
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.Runs == nil {
		http.Error(w, "run ledger disabled", http.StatusNotFound)
		return
	}
	limit, err := queryInt(r, "limit", defaultRuns, 1, maxListLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	list := s.Runs.RecentRuns
	switch order := r.URL.Query().Get("order"); order {
	case "", "recent":
	case "fastest":
		list = s.Runs.FastestRuns
	default:
		http.Error(w, fmt.Sprintf("unknown order %q (recent, fastest)", order), http.StatusBadRequest)
		return
	}
	runs, err := list(limit)
	if err != nil {
		slog.Error("list runs failed", "error", err)
		http.Error(w, "ledger query failed", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []engine.RunRecord{}
	}
	writeJSON(w, runs)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var tick uint64
	if s.Eng != nil {
		tick = s.Eng.Ticks()
	}
	writeJSON(w, map[string]any{
		"status": "ok",
		"tick":   tick,
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "count", 1, 1, maxSpawnBatch)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.Sim.SpawnN(n)
	w.WriteHeader(http.StatusOK)
}

// spawnCost charges one token per ant requested.
func spawnCost(r *http.Request) int {
	n, err := queryInt(r, "count", 1, 1, maxSpawnBatch)
	if err != nil {
		return 1
	}
	return n
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.Sim.Reset()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "no engine attached", http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req struct {
			Speed *float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Speed == nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if *req.Speed < 0 || *req.Speed > maxSpeed {
			http.Error(w, fmt.Sprintf("speed must be 0-%d", maxSpeed), http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(*req.Speed)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

// queryInt parses an optional integer query parameter within [lo, hi].
func queryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%s must be an integer in [%d, %d]", key, lo, hi)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
