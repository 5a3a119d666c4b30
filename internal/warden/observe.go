// Package warden implements the external herd steward.
// It observes herd health via the API, triages it with fixed thresholds,
// and forces a rebalance through the admin endpoint when herds drift apart.
package warden

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Snapshot holds all data collected during an observation cycle.
type Snapshot struct {
	Status WorldStatus `json:"status"`
	Herds  []HerdInfo  `json:"herds"`
}

// WorldStatus mirrors GET /api/v1/status.
type WorldStatus struct {
	Name          string  `json:"name"`
	RunID         string  `json:"run_id"`
	Tick          uint64  `json:"tick"`
	SimTime       string  `json:"sim_time"`
	Speed         float64 `json:"speed"`
	Running       bool    `json:"running"`
	Population    int     `json:"population"`
	Herding       int     `json:"herding"`
	Births        int     `json:"births"`
	Deaths        int     `json:"deaths"`
	LastRebalance uint64  `json:"last_rebalance"`
	NextRebalance uint64  `json:"next_rebalance"`
	HerdConfig    struct {
		MinHerdSize    int    `json:"min_herd_size"`
		RebalanceDelay uint64 `json:"rebalance_delay"`
	} `json:"herd_config"`
}

// HerdInfo mirrors items from GET /api/v1/herds.
type HerdInfo struct {
	Key struct {
		Species   string `json:"species"`
		Dimension string `json:"dimension"`
	} `json:"key"`
	Members      int   `json:"members"`
	Clusters     int   `json:"clusters"`
	Noise        int   `json:"noise"`
	Largest      int   `json:"largest"`
	ClusterSizes []int `json:"cluster_sizes"`
}

// Name returns "species/dimension".
func (h HerdInfo) Name() string {
	return h.Key.Species + "/" + h.Key.Dimension
}

// Observer fetches world state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Observe fetches status and the herd census.
func (o *Observer) Observe() (*Snapshot, error) {
	snap := &Snapshot{}

	if err := o.fetchJSON("/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	if err := o.fetchJSON("/api/v1/herds", &snap.Herds); err != nil {
		return nil, fmt.Errorf("fetch herds: %w", err)
	}

	return snap, nil
}

// Ready reports whether the status endpoint answers 200.
func (o *Observer) Ready() bool {
	resp, err := o.HTTPClient.Get(o.BaseURL + "/api/v1/status")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(path string, target any) error {
	resp, err := o.HTTPClient.Get(o.BaseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
