// Command warden runs the external herd steward. It watches herd health
// through the worldsim API and forces a rebalance when herds drift apart.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/herd-world/internal/warden"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := envOrDefault("WORLDSIM_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("WORLDSIM_ADMIN_KEY")
	intervalSec := envIntOrDefault("WARDEN_INTERVAL", 60)
	memoryPath := envOrDefault("WARDEN_MEMORY", "warden_memory.json")

	th := warden.DefaultThresholds()
	if v := os.Getenv("WARDEN_NOISE_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			th.NoiseRatio = f
		}
	}
	if err := th.Validate(); err != nil {
		slog.Error("invalid warden thresholds", "error", err)
		os.Exit(1)
	}

	if adminKey == "" {
		slog.Error("WORLDSIM_ADMIN_KEY is required")
		os.Exit(1)
	}

	interval := time.Duration(intervalSec) * time.Second

	slog.Info("herd warden starting",
		"api_url", apiURL,
		"interval", interval,
		"noise_ratio", th.NoiseRatio,
	)

	w := &warden.Warden{
		Observer:   warden.NewObserver(apiURL),
		Actor:      warden.NewActor(apiURL, adminKey),
		Memory:     warden.LoadMemory(memoryPath),
		Thresholds: th,
	}

	// Wait for worldsim API to be ready before first cycle.
	slog.Info("waiting for worldsim API...")
	waitForAPI(w.Observer)

	runCycle(w)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runCycle(w)
		case sig := <-sigCh:
			slog.Info("received signal, shutting down", "signal", sig)
			fmt.Println("Warden stopped.")
			return
		}
	}
}

func runCycle(w *warden.Warden) {
	start := time.Now()
	rec, err := w.Cycle()
	if err != nil {
		slog.Error("warden cycle failed", "error", err)
		return
	}
	slog.Info("warden cycle complete",
		"action", rec.Action,
		"level", rec.Level,
		"took", time.Since(start).Round(time.Millisecond),
	)
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

// waitForAPI polls the worldsim status endpoint with exponential backoff
// until it responds. Exits after 5 minutes if the API never becomes ready.
func waitForAPI(o *warden.Observer) {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for !o.Ready() {
		if time.Now().After(deadline) {
			slog.Error("worldsim API did not become ready within 5 minutes")
			os.Exit(1)
		}
		slog.Info("worldsim not ready, retrying...", "backoff", backoff)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	slog.Info("worldsim API is ready")
}
