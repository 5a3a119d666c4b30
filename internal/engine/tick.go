// Package engine provides the tick-based simulation loop.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// TickSchedule defines when each system runs relative to the tick counter.
const (
	TicksPerSecond = 20    // Base rate: one tick every 50ms at speed 1
	TicksPerMinute = 1200  // 60 seconds × 20
	TicksPerDay    = 24000 // One full day/night cycle
)

// Engine drives the simulation forward.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, owned by the loop)
	Interval time.Duration // Base tick interval (default 50ms)

	// Callbacks for each tick layer, populated during setup.
	OnTick   func(tick uint64) // Every tick
	OnSecond func(tick uint64) // Every 20 ticks
	OnMinute func(tick uint64) // Every 1200 ticks
	OnDay    func(tick uint64) // Every 24000 ticks

	mu      sync.Mutex
	speed   float64 // Multiplier: 1.0 = real-time, 0 = paused
	running bool
}

// NewEngine creates a simulation engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Interval: time.Second / TicksPerSecond,
		speed:    1.0,
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. Zero pauses the loop.
func (e *Engine) SetSpeed(speed float64) {
	if speed < 0 {
		speed = 0
	}
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run starts the simulation loop. Blocks until Stop is called or ctx ends.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed())

	for e.Running() {
		if ctx.Err() != nil {
			e.Stop()
			break
		}

		speed := e.Speed()
		if speed <= 0 {
			// Paused: sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()

		e.Step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick)
}

// Stop halts the simulation loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	e.Tick++

	// Every tick: movement and herd wander decisions.
	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}

	// Every second: stats refresh.
	if e.Tick%TicksPerSecond == 0 && e.OnSecond != nil {
		e.OnSecond(e.Tick)
	}

	// Every minute: lifecycle (deaths, breeding), census.
	if e.Tick%TicksPerMinute == 0 && e.OnMinute != nil {
		e.OnMinute(e.Tick)
	}

	// Every day: daily report, persistence.
	if e.Tick%TicksPerDay == 0 && e.OnDay != nil {
		e.OnDay(e.Tick)
	}
}

// SimTime returns a human-readable simulation time string from a tick number.
func SimTime(tick uint64) string {
	day := tick/TicksPerDay + 1
	inDay := tick % TicksPerDay
	// Day starts at 06:00, 1000 ticks per hour.
	hours := (inDay/1000 + 6) % 24
	minutes := (inDay % 1000) * 60 / 1000

	return fmt.Sprintf("Day %d, %d:%02d", day, hours, minutes)
}
