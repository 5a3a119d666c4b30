package warden

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func herdInfo(species string, members, clusters, noise int) HerdInfo {
	var h HerdInfo
	h.Key.Species = species
	h.Key.Dimension = "overworld"
	h.Members = members
	h.Clusters = clusters
	h.Noise = noise
	return h
}

func snapshot(tick, last uint64, herds ...HerdInfo) *Snapshot {
	s := &Snapshot{Herds: herds}
	s.Status.Tick = tick
	s.Status.LastRebalance = last
	s.Status.HerdConfig.MinHerdSize = 3
	s.Status.HerdConfig.RebalanceDelay = 200
	return s
}

func TestTriageHealthy(t *testing.T) {
	h := Triage(snapshot(1000, 900,
		herdInfo("dodo", 10, 2, 1),
		herdInfo("triceratops", 2, 0, 2), // too small to cluster
	), DefaultThresholds())

	assert.Equal(t, "HEALTHY", h.Level)
	assert.Equal(t, 10, h.Members)
	assert.InDelta(t, 0.1, h.NoiseRatio, 1e-9)
	assert.Empty(t, h.Unclustered)
	assert.False(t, h.Stale)
}

func TestTriageSignals(t *testing.T) {
	th := DefaultThresholds()

	h := Triage(snapshot(1000, 900, herdInfo("dodo", 10, 1, 6), herdInfo("gallimimus", 20, 3, 2)), th)
	assert.Equal(t, "WATCH", h.Level)
	assert.Equal(t, []string{"dodo/overworld"}, h.Scattered)

	h = Triage(snapshot(1000, 900, herdInfo("dodo", 5, 0, 5)), th)
	assert.Equal(t, "DRIFTING", h.Level)
	assert.Equal(t, []string{"dodo/overworld"}, h.Unclustered)

	h = Triage(snapshot(1000, 300, herdInfo("dodo", 10, 2, 0)), th)
	assert.True(t, h.Stale)
	assert.Equal(t, "DRIFTING", h.Level)

	h = Triage(snapshot(1000, 400, herdInfo("dodo", 10, 2, 0)), th)
	assert.False(t, h.Stale, "exactly three delays is not yet stale")
}

func TestDecideCooldown(t *testing.T) {
	th := DefaultThresholds()
	mem := &CycleMemory{}
	drifting := &Health{Level: "DRIFTING", Stale: true}

	d := Decide(&Health{Level: "WATCH"}, mem, th)
	assert.Equal(t, ActionNone, d.Action)

	for i := 0; i < th.Cooldown; i++ {
		d = Decide(drifting, mem, th)
		require.Equal(t, ActionRebalance, d.Action)
		assert.Equal(t, "stale schedule", d.Reason)
		mem.Record(CycleRecord{Action: d.Action})
	}
	d = Decide(drifting, mem, th)
	assert.Equal(t, ActionNone, d.Action, "limit reached")
	assert.Equal(t, "cooldown", d.Reason)
	mem.Record(CycleRecord{Action: d.Action})

	d = Decide(drifting, mem, th)
	assert.Equal(t, ActionRebalance, d.Action, "a quiet cycle reopens the window")
	mem.Record(CycleRecord{Action: d.Action})

	// No window of Cooldown+1 cycles holds more than Cooldown rebalances.
	for i := 0; i+th.Cooldown+1 <= len(mem.Records); i++ {
		n := 0
		for _, r := range mem.Records[i : i+th.Cooldown+1] {
			if r.Action == ActionRebalance {
				n++
			}
		}
		assert.LessOrEqual(t, n, th.Cooldown)
	}

	th.Cooldown = 0
	assert.Equal(t, ActionRebalance, Decide(drifting, mem, th).Action, "zero disables the cooldown")
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
	bad := DefaultThresholds()
	bad.NoiseRatio = 0
	assert.Error(t, bad.Validate())
	bad = DefaultThresholds()
	bad.StaleAfter = 0
	assert.Error(t, bad.Validate())
}

func TestMemoryPersistsAndTrims(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warden.json")
	mem := LoadMemory(path)
	assert.Empty(t, mem.Records)

	for i := 0; i < maxRecords+3; i++ {
		mem.Record(CycleRecord{Tick: uint64(i), Action: ActionNone})
	}
	mem.Save()

	loaded := LoadMemory(path)
	require.Len(t, loaded.Records, maxRecords)
	assert.Equal(t, uint64(3), loaded.Records[0].Tick)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	assert.Empty(t, LoadMemory(path).Records)
}

// fakeWorld serves the subset of the worldsim API the warden talks to.
type fakeWorld struct {
	status     string
	herds      string
	rebalances int
}

func (f *fakeWorld) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, f.status)
	})
	mux.HandleFunc("GET /api/v1/herds", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, f.herds)
	})
	mux.HandleFunc("POST /api/v1/rebalance", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		f.rebalances++
		json.NewEncoder(w).Encode(map[string]any{
			"tick":  500,
			"herds": []map[string]int{{"members": 5, "clusters": 1, "noise": 1}},
		})
	})
	return mux
}

const statusJSON = `{"tick": 500, "population": 5, "last_rebalance": 400,
	"herd_config": {"min_herd_size": 3, "rebalance_delay": 200}}`

func TestCycleRebalancesDriftingWorld(t *testing.T) {
	fw := &fakeWorld{
		status: statusJSON,
		herds:  `[{"key": {"species": "dodo", "dimension": "overworld"}, "members": 5, "clusters": 0, "noise": 5}]`,
	}
	srv := httptest.NewServer(fw.handler())
	defer srv.Close()

	w := &Warden{
		Observer:   NewObserver(srv.URL),
		Actor:      NewActor(srv.URL, "key"),
		Memory:     LoadMemory(filepath.Join(t.TempDir(), "mem.json")),
		Thresholds: DefaultThresholds(),
	}
	require.True(t, w.Observer.Ready())

	rec, err := w.Cycle()
	require.NoError(t, err)
	assert.Equal(t, ActionRebalance, rec.Action)
	assert.Equal(t, "DRIFTING", rec.Level)
	assert.Equal(t, uint64(500), rec.Tick)
	assert.Equal(t, 1, fw.rebalances)
	require.Len(t, w.Memory.Records, 1)

	fw.herds = `[{"key": {"species": "dodo", "dimension": "overworld"}, "members": 5, "clusters": 1, "noise": 0}]`
	rec, err = w.Cycle()
	require.NoError(t, err)
	assert.Equal(t, ActionNone, rec.Action)
	assert.Equal(t, 1, fw.rebalances)
}

func TestCycleReportsErrors(t *testing.T) {
	fw := &fakeWorld{
		status: statusJSON,
		herds:  `[{"key": {"species": "dodo", "dimension": "overworld"}, "members": 5, "clusters": 0, "noise": 5}]`,
	}
	srv := httptest.NewServer(fw.handler())
	defer srv.Close()

	w := &Warden{
		Observer:   NewObserver(srv.URL),
		Actor:      NewActor(srv.URL, "wrong"),
		Thresholds: DefaultThresholds(),
	}
	_, err := w.Cycle()
	assert.ErrorContains(t, err, "401")

	w.Observer = NewObserver(srv.URL + "/missing")
	_, err = w.Cycle()
	assert.ErrorContains(t, err, "fetch status")
}
