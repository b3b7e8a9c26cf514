package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"signage.relay/internal/core/ports"
)

// HTTPLocalExecutor reaches the local device backend over loopback HTTP.
// Protocol encoding happens entirely on the other side of these two calls.
type HTTPLocalExecutor struct {
	baseURL string
	http    *http.Client
}

func NewHTTPLocalExecutor(baseURL string, timeout time.Duration) *HTTPLocalExecutor {
	return &HTTPLocalExecutor{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

var _ ports.LocalExecutor = (*HTTPLocalExecutor)(nil)

func (e *HTTPLocalExecutor) DeviceAction(ctx context.Context, action string, payload map[string]any) (map[string]any, error) {
	body, err := json.Marshal(map[string]any{
		"action":  action,
		"payload": payload,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/device_action", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return e.roundTrip(req)
}

func (e *HTTPLocalExecutor) AutoProbe(ctx context.Context, ip string) (map[string]any, error) {
	probeURL := fmt.Sprintf("%s/auto_probe?%s", e.baseURL, url.Values{"ip": {ip}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return nil, err
	}
	return e.roundTrip(req)
}

func (e *HTTPLocalExecutor) roundTrip(req *http.Request) (map[string]any, error) {
	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("local request failed %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("local HTTP %d %s: %s", resp.StatusCode, req.URL.Path, detail)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode local response %s: %w", req.URL.Path, err)
	}
	return result, nil
}
