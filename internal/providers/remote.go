package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// RemoteMetric scores text pairs through a metric sidecar exposing
// POST {BaseURL}/score/{Metric} with {"candidate", "reference"} and
// answering {"score": <float>}.
type RemoteMetric struct {
	BaseURL string
	Metric  string
	Client  *http.Client
}

type scoreRequest struct {
	Candidate string `json:"candidate"`
	Reference string `json:"reference"`
}

type scoreResponse struct {
	Score *float64 `json:"score"`
	Error string   `json:"error,omitempty"`
}

func (m *RemoteMetric) Score(ctx context.Context, candidate, reference string) (float64, error) {
	body, err := json.Marshal(scoreRequest{Candidate: candidate, Reference: reference})
	if err != nil {
		return 0, err
	}
	url := strings.TrimRight(m.BaseURL, "/") + "/score/" + m.Metric
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var out scoreResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode %s response (status %d): %w", m.Metric, resp.StatusCode, err)
	}
	if resp.StatusCode/100 != 2 {
		return 0, fmt.Errorf("%s status %d: %s", m.Metric, resp.StatusCode, out.Error)
	}
	if out.Score == nil {
		return 0, fmt.Errorf("%s response has no score", m.Metric)
	}
	return *out.Score, nil
}
