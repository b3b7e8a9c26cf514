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

	"signage.relay/internal/core/circuitbreaker"
	"signage.relay/internal/core/domain"
)

// Coordinator is the agent's view of the cloud side. Split out so the
// runtime can be driven by a fake in tests.
type Coordinator interface {
	Heartbeat(ctx context.Context, meta domain.AgentMeta) error
	Poll(ctx context.Context, maxJobs int) ([]*domain.Job, error)
	ReportResult(ctx context.Context, jobID string, report ResultReport) error
}

// ResultReport is the body of a result call. Result and Error serialize to
// null when unset, mirroring the wire contract.
type ResultReport struct {
	Status string         `json:"status"`
	Result map[string]any `json:"result"`
	Error  *string        `json:"error"`
}

// Client talks HTTP/JSON to the coordinator. All calls share one request
// timeout and run behind a circuit breaker; an open circuit surfaces as a
// transport error, which the runtime answers with backoff.
type Client struct {
	baseURL string
	agentID string
	secret  string
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

func NewClient(baseURL, agentID, secret string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		agentID: agentID,
		secret:  secret,
		http:    &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New("coordinator"),
	}
}

var _ Coordinator = (*Client)(nil)

func (c *Client) Heartbeat(ctx context.Context, meta domain.AgentMeta) error {
	path := fmt.Sprintf("/api/agent/%s/heartbeat", url.PathEscape(c.agentID))
	return c.post(ctx, path, meta, nil)
}

type pollResponse struct {
	OK      bool          `json:"ok"`
	AgentID string        `json:"agent_id"`
	Jobs    []*domain.Job `json:"jobs"`
}

func (c *Client) Poll(ctx context.Context, maxJobs int) ([]*domain.Job, error) {
	path := fmt.Sprintf("/api/agent/%s/poll", url.PathEscape(c.agentID))
	var resp pollResponse
	if err := c.post(ctx, path, map[string]int{"max_jobs": maxJobs}, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (c *Client) ReportResult(ctx context.Context, jobID string, report ResultReport) error {
	path := fmt.Sprintf("/api/agent/%s/jobs/%s/result",
		url.PathEscape(c.agentID), url.PathEscape(jobID))
	return c.post(ctx, path, report, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.breaker.Execute(func() error {
		return c.doPost(ctx, path, body, out)
	})
}

func (c *Client) doPost(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set("x-agent-token", c.secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("HTTP %d %s: %s", resp.StatusCode, path, detail)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response %s: %w", path, err)
		}
	}
	return nil
}
