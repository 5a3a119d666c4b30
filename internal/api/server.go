// Package api provides the HTTP API for querying world state.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/talgya/herd-world/internal/agents"
	"github.com/talgya/herd-world/internal/engine"
	"github.com/talgya/herd-world/internal/herd"
	"github.com/talgya/herd-world/internal/observability"
	"github.com/talgya/herd-world/internal/persistence"
)

const maxSSEConns = 4

// Server serves the world state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB               // Optional; census history and snapshots need it
	Metrics  *observability.HerdCollector // Optional; /metrics and request instrumentation
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
	RunID    string

	// Active SSE connection count (atomic).
	sseConns int32
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	// Dumps walk every herd member; keep them cheap for the world loop.
	dumpLimiter := NewRateLimiter(10, time.Minute)

	mux := http.NewServeMux()
	route := func(pattern, name string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, s.Metrics.Instrument(name, h))
	}

	// Public endpoints (GET, read-only).
	route("GET /api/v1/status", "status", s.handleStatus)
	route("GET /api/v1/herds", "herds", s.handleHerds)
	route("GET /api/v1/herds/dump", "herds_dump", RateLimitMiddleware(dumpLimiter, s.handleHerdDump))
	route("GET /api/v1/herd/{dimension}/{species}", "herd", s.handleHerdDetail)
	route("GET /api/v1/agents", "agents", s.handleAgents)
	route("GET /api/v1/agent/{id}", "agent", s.handleAgentDetail)
	route("GET /api/v1/events", "events", s.handleEvents)
	route("GET /api/v1/census/history", "census_history", s.handleCensusHistory)
	route("GET /api/v1/species", "species", s.handleSpecies)

	// SSE streaming endpoint.
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}

	// Admin endpoints (POST, require bearer token).
	route("/api/v1/speed", "speed", s.adminOnly(s.handleSpeed))
	route("POST /api/v1/rebalance", "rebalance", s.adminOnly(s.handleRebalance))
	route("POST /api/v1/snapshot", "snapshot", s.adminOnly(s.handleSnapshot))
	route("POST /api/v1/spawn", "spawn", s.adminOnly(s.handleSpawn))
	route("POST /api/v1/despawn", "despawn", s.adminOnly(s.handleDespawn))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "metrics", s.Metrics != nil)

	go func() {
		if err := http.ListenAndServe(addr, s.Handler()); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no WORLDSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}

			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Sim.Status()
	cfg := s.Sim.HerdConfig()

	status := map[string]any{
		"name":           "herd-world",
		"run_id":         s.RunID,
		"tick":           st.Tick,
		"sim_time":       st.SimTime,
		"speed":          s.Eng.Speed(),
		"running":        s.Eng.Running(),
		"population":     st.Stats.Population,
		"herding":        st.Stats.Herding,
		"herds":          st.Stats.Herds,
		"clusters":       st.Stats.Clusters,
		"noise":          st.Stats.Noise,
		"births":         st.Stats.Births,
		"deaths":         st.Stats.Deaths,
		"last_rebalance": st.LastRebalance,
		"next_rebalance": st.NextRebalance,
		"dimensions":     st.Dimensions,
		"herd_config": map[string]any{
			"min_herd_size":   cfg.MinHerdSize,
			"rebalance_delay": cfg.RebalanceDelay,
			"min_radius":      cfg.MinRadius,
			"radius_scale":    cfg.RadiusScale,
			"proximity":       cfg.Mode.String(),
		},
	}
	writeJSON(w, status)
}

func (s *Server) handleHerds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Census())
}

func (s *Server) handleHerdDump(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.Sim.HerdDump(w); err != nil {
		slog.Error("herd dump failed", "error", err)
	}
}

func (s *Server) handleHerdDetail(w http.ResponseWriter, r *http.Request) {
	key := herd.Key{
		Species:   strings.ToLower(r.PathValue("species")),
		Dimension: r.PathValue("dimension"),
	}
	view, err := s.Sim.HerdDetail(key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 200
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 5000 {
			limit = n
		}
	}

	type agentSummary struct {
		ID        agents.AgentID `json:"id"`
		Species   string         `json:"species"`
		Dimension string         `json:"dimension"`
		X         float64        `json:"x"`
		Y         float64        `json:"y"`
		Z         float64        `json:"z"`
		Walking   bool           `json:"walking"`
		Age       uint64         `json:"age"`
	}

	tick := s.Sim.CurrentTick()
	list := s.Sim.AgentList(strings.ToLower(q.Get("species")), q.Get("dimension"))
	result := make([]agentSummary, 0, min(len(list), limit))
	for _, a := range list {
		if len(result) >= limit {
			break
		}
		result = append(result, agentSummary{
			ID:        a.ID,
			Species:   a.Species,
			Dimension: a.Dimension,
			X:         a.Pos[0],
			Y:         a.Pos[1],
			Z:         a.Pos[2],
			Walking:   a.Target != nil,
			Age:       a.Age(tick),
		})
	}
	writeJSON(w, result)
}

func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}

	a, err := s.Sim.Agent(agents.AgentID(id))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	plan, err := s.Sim.WanderPreview(a.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]any{
		"agent":  a,
		"wander": plan,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events := s.Sim.RecentEvents(0)

	// Optional category filter.
	if category := r.URL.Query().Get("category"); category != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}

	writeJSON(w, events[start:])
}

func (s *Server) handleCensusHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	limit := 100
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	rows, err := s.DB.CensusHistory(strings.ToLower(q.Get("species")), q.Get("dimension"), limit)
	if err != nil {
		slog.Error("census history query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func (s *Server) handleSpecies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, agents.AllSpecies())
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	} else if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	stats := s.Sim.RebalanceNow()
	slog.Info("manual rebalance", "herds", len(stats))
	writeJSON(w, map[string]any{
		"tick":  s.Sim.CurrentTick(),
		"herds": stats,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	if err := s.DB.SaveWorldState(s.Sim); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"tick":    s.Sim.CurrentTick(),
		"message": "snapshot saved",
	})
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Species   string `json:"species"`
		Dimension string `json:"dimension"`
		X         int    `json:"x"`
		Z         int    `json:"z"`
		Count     int    `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Count <= 0 || req.Count > 100 {
		http.Error(w, "count must be 1-100", http.StatusBadRequest)
		return
	}

	ids, err := s.Sim.Spawn(req.Species, req.Dimension, req.X, req.Z, req.Count)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, engine.ErrUnknownSpecies) || errors.Is(err, engine.ErrUnknownDimension) || errors.Is(err, engine.ErrInvalidCount) {
			code = http.StatusBadRequest
		}
		http.Error(w, err.Error(), code)
		return
	}

	writeJSON(w, map[string]any{
		"spawned": len(ids),
		"ids":     ids,
	})
}

func (s *Server) handleDespawn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID agents.AgentID `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := s.Sim.Despawn(req.ID); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, engine.ErrUnknownAgent) {
			code = http.StatusNotFound
		}
		http.Error(w, err.Error(), code)
		return
	}

	writeJSON(w, map[string]any{"despawned": req.ID})
}

// handleStream pushes live events as server-sent events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// Connection limit.
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

	subID, ch := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(subID)

	// Catch-up with the last few events.
	for _, e := range s.Sim.RecentEvents(20) {
		writeSSEEvent(w, e)
	}
	flusher.Flush()

	slog.Info("SSE client connected", "sub_id", subID)

	heartbeat := time.NewTicker(15 * time.Second)
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

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
