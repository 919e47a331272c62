package evolution

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

// Client sends messages through an Evolution API instance.
type Client struct {
	baseURL  string
	instance string
	token    string
	http     *http.Client
	log      *logger.Logger
}

// NewClient creates an Evolution API client from configuration.
func NewClient(cfg config.EvolutionConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.GetEvolutionBaseURL(), "/"),
		instance: cfg.GetEvolutionInstance(),
		token:    cfg.GetEvolutionToken(),
		http:     &http.Client{Timeout: cfg.GetEvolutionSendTimeout()},
		log:      log,
	}
}

// IsConfigured reports whether base URL, instance and token are all present.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.instance != "" && c.token != ""
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
	Delay  int    `json:"delay"`
}

// SendText delivers one text message to a digits-only recipient number. The
// delay field simulates typing time so consecutive messages read naturally.
func (c *Client) SendText(ctx context.Context, number, text string) error {
	payload := sendTextRequest{
		Number: number,
		Text:   text,
		Delay:  int(EstimateTypingDelay(text).Milliseconds()),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal send payload: %w", err)
	}

	url := fmt.Sprintf("%s/message/sendText/%s", c.baseURL, c.instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("evolution send failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("evolution send returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	// Some Evolution deployments report delivery failures in a 200 body.
	var ack struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(data, &ack); err == nil && ack.Error != nil {
		if msg, ok := ack.Error.(string); ok && msg != "" {
			return fmt.Errorf("evolution send rejected: %s", msg)
		}
		if flag, ok := ack.Error.(bool); ok && flag {
			return fmt.Errorf("evolution send rejected: %s", strings.TrimSpace(string(data)))
		}
	}

	c.log.Debug("evolution message sent", "number", number, "chars", len(text))
	return nil
}
