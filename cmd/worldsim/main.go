// Command worldsim runs the herd world simulation: creatures roaming voxel
// dimensions, kept together by the herd clustering engine.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/herd-world/internal/agents"
	"github.com/talgya/herd-world/internal/api"
	"github.com/talgya/herd-world/internal/engine"
	"github.com/talgya/herd-world/internal/herd"
	"github.com/talgya/herd-world/internal/observability"
	"github.com/talgya/herd-world/internal/persistence"
	"github.com/talgya/herd-world/internal/world"
)

func main() {
	level := slog.LevelInfo
	if v := os.Getenv("WORLDSIM_LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			fmt.Fprintf(os.Stderr, "bad WORLDSIM_LOG_LEVEL %q, using info\n", v)
		}
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("herd world starting")

	seed := int64(envIntOrDefault("WORLDSIM_SEED", 42))
	dbPath := envOrDefault("WORLDSIM_DB", "data/herdworld.db")
	apiPort := envIntOrDefault("WORLDSIM_PORT", 8080)
	runID := uuid.NewString()

	// ── Herd engine config ────────────────────────────────────────────
	herdCfg := herd.DefaultConfig()
	herdCfg.RebalanceDelay = uint64(envIntOrDefault("HERD_REBALANCE_DELAY", int(herdCfg.RebalanceDelay)))
	herdCfg.MinHerdSize = envIntOrDefault("HERD_MIN_SIZE", herdCfg.MinHerdSize)
	mode, err := herd.ParseRadiusMode(os.Getenv("HERD_PROXIMITY"))
	if err != nil {
		slog.Error("invalid HERD_PROXIMITY", "error", err)
		os.Exit(1)
	}
	herdCfg.Mode = mode

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(dbPath), 0755)
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	// ── Dimensions (always regenerated, deterministic from seed) ──────
	slog.Info("generating dimensions...")
	overCfg := world.DefaultGenConfig()
	overCfg.Seed = seed
	overworld := world.Generate(overCfg)

	netherCfg := world.DefaultGenConfig()
	netherCfg.Dimension = "nether"
	netherCfg.Radius = 64
	netherCfg.Seed = seed + 1000
	netherCfg.SeaLevel = 31
	netherCfg.MaxHeight = 90
	netherCfg.WaterLvl = 0.3
	nether := world.Generate(netherCfg)

	maps := []*world.Map{overworld, nether}
	for _, m := range maps {
		for b, c := range world.BiomeCounts(m) {
			slog.Info("biome", "dimension", m.Dimension, "type", world.BiomeName(b), "columns", humanize.Comma(int64(c)))
		}
	}

	// ── Load or seed population ───────────────────────────────────────
	spawner := agents.NewSpawner(seed)

	allAgents, err := db.LoadAgents()
	if err != nil {
		slog.Error("failed to load agents", "error", err)
		os.Exit(1)
	}
	startTick, err := db.LastTick()
	if err != nil {
		slog.Error("failed to read last tick", "error", err)
		os.Exit(1)
	}

	if len(allAgents) > 0 {
		maxID, err := db.MaxAgentID()
		if err != nil {
			slog.Error("failed to read max agent id", "error", err)
			os.Exit(1)
		}
		spawner.SetNextID(maxID + 1)
		slog.Info("population restored",
			"agents", len(allAgents),
			"tick", startTick,
			"sim_time", engine.SimTime(startTick),
		)
	} else {
		slog.Info("no saved population, seeding nesting grounds...")
		startTick = 0
		for _, m := range maps {
			sites := world.PlaceNestingGrounds(m, seed, 4+m.Radius/16, 20)
			group := engine.SeedPopulation(spawner, m, sites, 0)
			allAgents = append(allAgents, group...)
			slog.Info("nesting grounds placed", "dimension", m.Dimension, "sites", len(sites), "agents", len(group))
		}
	}

	// ── Herd registry + metrics ───────────────────────────────────────
	metrics, err := observability.NewHerdCollector(nil)
	if err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}
	registry, err := herd.NewRegistry(herdCfg, herd.WithRecorder(metrics))
	if err != nil {
		slog.Error("invalid herd config", "error", err)
		os.Exit(1)
	}

	// ── Simulation ────────────────────────────────────────────────────
	simCfg := engine.DefaultSimConfig()
	simCfg.Seed = seed
	sim, err := engine.NewSimulation(simCfg, maps, allAgents, registry, spawner)
	if err != nil {
		slog.Error("failed to build simulation", "error", err)
		os.Exit(1)
	}

	if err := db.SaveMeta("run_id", runID); err != nil {
		slog.Error("failed to save run id", "error", err)
	}
	if err := db.SaveMeta("seed", strconv.FormatInt(seed, 10)); err != nil {
		slog.Error("failed to save seed", "error", err)
	}

	// Save on fresh generation only (loaded worlds are already saved).
	if startTick == 0 {
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	eng := engine.NewEngine()
	eng.Tick = startTick
	if v := os.Getenv("WORLDSIM_SPEED"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			eng.SetSpeed(f)
		}
	}

	// Wire tick callbacks: census every sim-minute, auto-save every sim-day.
	eng.OnTick = sim.TickUpdate
	eng.OnSecond = sim.TickSecond
	eng.OnMinute = func(tick uint64) {
		sim.TickMinute(tick)
		if err := db.SaveCensus(runID, tick, sim.Census()); err != nil {
			slog.Error("census save failed", "error", err)
		}
	}
	eng.OnDay = func(tick uint64) {
		sim.TickDay(tick)
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("daily save failed", "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("WORLDSIM_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("WORLDSIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}

	apiServer := &api.Server{
		Sim:      sim,
		Eng:      eng,
		DB:       db,
		Metrics:  metrics,
		Port:     apiPort,
		AdminKey: adminKey,
		RunID:    runID,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := sim.Status()
	fmt.Printf("\nHerd world is alive: %s creatures in %d herds across %d dimensions.\n",
		humanize.Comma(int64(st.Stats.Population)), st.Stats.Herds, len(maps))
	fmt.Printf("API: http://localhost:%d/api/v1/status (run %s)\n", apiPort, runID)
	if startTick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", startTick, engine.SimTime(startTick))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	// Final save on shutdown.
	slog.Info("final save...")
	if err := db.SaveWorldState(sim); err != nil {
		slog.Error("final save failed", "error", err)
	}

	fmt.Println("Simulation stopped. World state saved.")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
