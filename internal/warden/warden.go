package warden

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
)

// Warden runs observe, triage, act cycles.
type Warden struct {
	Observer   *Observer
	Actor      *Actor
	Memory     *CycleMemory
	Thresholds Thresholds
}

// Cycle executes one observe → triage → act cycle and records it.
func (w *Warden) Cycle() (CycleRecord, error) {
	snap, err := w.Observer.Observe()
	if err != nil {
		return CycleRecord{}, fmt.Errorf("observe: %w", err)
	}
	slog.Info("observation complete",
		"tick", humanize.Comma(int64(snap.Status.Tick)),
		"sim_time", snap.Status.SimTime,
		"population", humanize.Comma(int64(snap.Status.Population)),
		"herds", len(snap.Herds),
	)

	health := Triage(snap, w.Thresholds)
	decision := Decide(health, w.Memory, w.Thresholds)
	slog.Info("triage complete",
		"level", health.Level,
		"noise_ratio", fmt.Sprintf("%.2f", health.NoiseRatio),
		"scattered", len(health.Scattered),
		"unclustered", len(health.Unclustered),
		"stale", health.Stale,
		"action", decision.Action,
	)

	rec := CycleRecord{
		Tick:       snap.Status.Tick,
		Action:     decision.Action,
		Level:      health.Level,
		NoiseRatio: health.NoiseRatio,
		Reason:     decision.Reason,
	}

	if decision.Action == ActionRebalance {
		result, err := w.Actor.Rebalance()
		if err != nil {
			return rec, fmt.Errorf("act: %w", err)
		}
		slog.Info("rebalance forced",
			"reason", decision.Reason,
			"herds", len(result.Herds),
			"noise_after", result.Noise(),
		)
	}

	if w.Memory != nil {
		w.Memory.Record(rec)
		w.Memory.Save()
	}
	return rec, nil
}
