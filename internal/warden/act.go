package warden

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RebalanceResult is the response from POST /api/v1/rebalance.
type RebalanceResult struct {
	Tick  uint64 `json:"tick"`
	Herds []struct {
		Members  int `json:"members"`
		Clusters int `json:"clusters"`
		Noise    int `json:"noise"`
	} `json:"herds"`
}

// Noise sums noise across the rebalanced herds.
func (r *RebalanceResult) Noise() int {
	n := 0
	for _, h := range r.Herds {
		n += h.Noise
	}
	return n
}

// Actor executes rebalances via the admin API.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL with admin auth.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Rebalance sends POST /api/v1/rebalance.
func (a *Actor) Rebalance() (*RebalanceResult, error) {
	req, err := http.NewRequest(http.MethodPost, a.BaseURL+"/api/v1/rebalance", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.AdminKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST rebalance: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rebalance failed (%d): %s", resp.StatusCode, string(respBody))
	}

	var result RebalanceResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}
