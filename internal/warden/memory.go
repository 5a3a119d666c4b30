package warden

import (
	"encoding/json"
	"log/slog"
	"os"
)

const maxRecords = 10

// CycleRecord captures what happened in a single warden cycle.
type CycleRecord struct {
	Tick       uint64  `json:"tick"`
	Action     string  `json:"action"`
	Level      string  `json:"level"`
	NoiseRatio float64 `json:"noise_ratio"`
	Reason     string  `json:"reason,omitempty"`
}

// CycleMemory manages a ring of recent warden cycle records.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`

	path string
}

// LoadMemory reads the memory file from disk. Returns empty memory if not found.
func LoadMemory(path string) *CycleMemory {
	data, err := os.ReadFile(path)
	if err != nil {
		return &CycleMemory{path: path}
	}
	var mem CycleMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		slog.Warn("warden memory corrupted, starting fresh", "error", err)
		return &CycleMemory{path: path}
	}
	mem.path = path
	return &mem
}

// Save writes the memory to disk.
func (m *CycleMemory) Save() {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		slog.Error("failed to marshal warden memory", "error", err)
		return
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		slog.Error("failed to write warden memory", "error", err)
	}
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// RecentRebalances counts rebalance actions in the trailing n records.
func (m *CycleMemory) RecentRebalances(n int) int {
	start := max(len(m.Records)-n, 0)
	count := 0
	for _, r := range m.Records[start:] {
		if r.Action == ActionRebalance {
			count++
		}
	}
	return count
}
