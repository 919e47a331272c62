// Package salesbuilder integrates with the Sales Builder qualification job
// API: kicking off jobs for new leads and polling their status until the
// conversational replies are ready.
package salesbuilder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"prospect_intake_backend/platform/config"
	"prospect_intake_backend/platform/logger"
)

// TaskResult is the payload returned by the status endpoint once the job is
// ready. Auxiliary scheduling fields in the result body are opaque to this
// service and kept only in the raw payload.
type TaskResult struct {
	TaskID    string        `json:"task_id"`
	Queue     string        `json:"queue"`
	State     string        `json:"state"`
	Result    ResultPayload `json:"result"`
	Timestamp string        `json:"timestamp"`
}

// ResultPayload holds the fields this service consumes from the job result.
type ResultPayload struct {
	Messages     []string `json:"msg_resposta"`
	Whatsapp     string   `json:"whatsapp_prospect"`
	ProspectName string   `json:"nome_prospect"`
}

// ProbeResult is one status-endpoint response: the HTTP status plus, for 200
// responses, the decoded task and its raw body for caching on the record.
type ProbeResult struct {
	StatusCode int
	Task       *TaskResult
	Raw        json.RawMessage
}

// KickoffInput carries the lead fields the qualification job needs.
// Field names follow the Sales Builder API contract.
type KickoffInput struct {
	Whatsapp     string `json:"whatsapp_prospect"`
	ProspectName string `json:"nome_prospect"`
	Company      string `json:"empresa_prospect"`
	Email        string `json:"email_prospect"`
	JobTitle     string `json:"cargo_prospect"`
	Revenue      string `json:"faturamento_empresa"`
}

// Client calls the Sales Builder HTTP API.
type Client struct {
	baseURL string
	creds   CredentialProvider
	http    *http.Client
	log     *logger.Logger
}

// NewClient creates a Sales Builder API client. The per-call timeout comes
// from configuration because upstream job latency is highly variable.
func NewClient(cfg config.SalesBuilderConfig, creds CredentialProvider, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.GetSalesBuilderURL(), "/"),
		creds:   creds,
		http:    &http.Client{Timeout: cfg.GetPollRequestTimeout()},
		log:     log,
	}
}

// StartTask submits a new qualification job and returns its task identifier.
func (c *Client) StartTask(ctx context.Context, input KickoffInput) (string, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal kickoff payload: %w", err)
	}

	url := fmt.Sprintf("%s/kickoff_task", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sales builder kickoff failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("sales builder kickoff returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var payload struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode kickoff response: %w", err)
	}
	if payload.TaskID == "" {
		return "", fmt.Errorf("sales builder kickoff response missing task_id")
	}

	c.log.Info("sales builder task started", "task_id", payload.TaskID)
	return payload.TaskID, nil
}

// CheckStatus probes the status endpoint for one task. A non-2xx status is
// not an error at this layer; the poller classifies it. Errors are reserved
// for transport failures and undecodable 200 bodies.
func (c *Client) CheckStatus(ctx context.Context, taskID string) (ProbeResult, error) {
	url := fmt.Sprintf("%s/status/%s", c.baseURL, taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ProbeResult{}, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("sales builder status request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	result := ProbeResult{StatusCode: resp.StatusCode}
	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return result, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("read status response: %w", err)
	}

	var task TaskResult
	if err := json.Unmarshal(raw, &task); err != nil {
		return ProbeResult{}, fmt.Errorf("decode status response: %w", err)
	}

	result.Task = &task
	result.Raw = raw
	return result, nil
}

func (c *Client) authorize(req *http.Request) {
	if token := c.creds.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
