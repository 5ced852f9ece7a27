package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type submitRequest struct {
	Source struct {
		Kind  string `json:"kind"`
		Value string `json:"value"`
	} `json:"source"`
	Instruments []string `json:"instruments"`
	Options     struct {
		EnableTTA     bool `json:"enable_tta"`
		EnableRefiner bool `json:"enable_refiner"`
		ParallelStems bool `json:"parallel_stems"`
	} `json:"options"`
}

type submitResponse struct {
	JobID        string `json:"job_id"`
	Status       string `json:"status"`
	WebsocketURL string `json:"websocket_url"`
}

type jobRecord struct {
	JobID     string         `json:"job_id"`
	Status    string         `json:"status"`
	Progress  int            `json:"progress"`
	Stage     string         `json:"current_stage"`
	Artifacts map[string]any `json:"artifacts"`
	Error     map[string]any `json:"error"`
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

func submitJob(serverURL, sourceKind, sourceValue string, instruments []string, enableTTA, enableRefiner, parallelStems bool) (*submitResponse, error) {
	var req submitRequest
	req.Source.Kind = sourceKind
	req.Source.Value = sourceValue
	req.Instruments = instruments
	req.Options.EnableTTA = enableTTA
	req.Options.EnableRefiner = enableRefiner
	req.Options.ParallelStems = parallelStems

	body, err := json.Marshal(req)
	if err != nil {
		return nil, internalError(fmt.Errorf("encode request: %w", err))
	}

	resp, err := httpClient.Post(serverURL+"/transcribe", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, infraError(fmt.Errorf("reach server: %w", err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity {
		return nil, userError(fmt.Errorf("server rejected job (%d): %s", resp.StatusCode, respBody))
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, infraError(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody))
	}

	var out submitResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, internalError(fmt.Errorf("decode response: %w", err))
	}
	return &out, nil
}

func fetchJob(serverURL, jobID string) (*jobRecord, error) {
	resp, err := httpClient.Get(serverURL + "/jobs/" + jobID)
	if err != nil {
		return nil, infraError(fmt.Errorf("reach server: %w", err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return nil, userError(fmt.Errorf("no such job: %s", jobID))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, infraError(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody))
	}

	var out jobRecord
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, internalError(fmt.Errorf("decode response: %w", err))
	}
	return &out, nil
}
