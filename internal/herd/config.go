package herd

import (
	"fmt"
	"time"
)

// Config holds the clustering parameters shared by every herd in a registry.
type Config struct {
	MinHerdSize    int        // Smallest component kept as a cluster after rebalance
	RebalanceDelay uint64     // Ticks between full rebalances
	MinRadius      float64    // Proximity radius floor, in blocks
	RadiusScale    float64    // Proximity radius as a multiple of width
	Mode           RadiusMode // Whose radius decides proximity
}

// DefaultConfig returns the standard herd tuning.
func DefaultConfig() Config {
	return Config{
		MinHerdSize:    3,
		RebalanceDelay: 200,
		MinRadius:      4,
		RadiusScale:    3,
		Mode:           RadiusMax,
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.MinHerdSize < 1 {
		return fmt.Errorf("min herd size must be at least 1, got %d", c.MinHerdSize)
	}
	if c.MinRadius <= 0 {
		return fmt.Errorf("min radius must be positive, got %v", c.MinRadius)
	}
	if c.RadiusScale <= 0 {
		return fmt.Errorf("radius scale must be positive, got %v", c.RadiusScale)
	}
	if c.Mode != RadiusMax && c.Mode != RadiusFirst {
		return fmt.Errorf("unknown radius mode %d", c.Mode)
	}
	return nil
}

// Policy returns the proximity policy described by c.
func (c Config) Policy() ProximityPolicy {
	return ProximityPolicy{MinRadius: c.MinRadius, Scale: c.RadiusScale, Mode: c.Mode}
}

// Recorder receives engine measurements. Implementations must be cheap;
// ObserveWander runs once per agent query.
type Recorder interface {
	ObserveRebalance(stats RebalanceStats)
	ObserveRebalanceAll(herds int, elapsed time.Duration)
	ObserveWander(key Key, d Decision)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRebalance(RebalanceStats)        {}
func (nopRecorder) ObserveRebalanceAll(int, time.Duration) {}
func (nopRecorder) ObserveWander(Key, Decision)            {}
