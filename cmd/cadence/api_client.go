package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fentz26/cadence/internal/controlplane"
)

// DefaultClientTimeout covers plan requests that wait on an external planner.
const DefaultClientTimeout = 3 * time.Minute

var apiClient = &http.Client{Timeout: DefaultClientTimeout}

// apiError is a non-2xx daemon reply.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

func apiGet(path string, out interface{}) error {
	return call(apiClient, http.MethodGet, path, nil, out)
}

// apiPost sends data as JSON. Either data or out may be nil.
func apiPost(path string, data, out interface{}) error {
	return call(apiClient, http.MethodPost, path, data, out)
}

func call(client *http.Client, method, path string, data, out interface{}) error {
	var body io.Reader = http.NoBody
	if data != nil {
		buf, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, apiAddr+path, body)
	if err != nil {
		return err
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var failure error
	if resp.StatusCode >= 300 {
		failure = &apiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	// Health replies carry a JSON body on 503 too.
	if out == nil || (failure != nil && !json.Valid(raw)) {
		return failure
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Join(failure, fmt.Errorf("decode response: %w", err))
	}
	return failure
}

// CheckHealth returns the health payload even when the daemon reports
// itself unhealthy, alongside the error.
func CheckHealth(client *http.Client) (*controlplane.HealthResponse, error) {
	var health controlplane.HealthResponse
	err := call(client, http.MethodGet, "/health", nil, &health)
	var apiErr *apiError
	if err != nil && !errors.As(err, &apiErr) {
		return nil, err
	}
	return &health, err
}
