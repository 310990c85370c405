// Package agent is the client for the reasoning collaborator: the external
// conversational engine that decides replies and may deliver artifacts
// through its own tools.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// deliveredSentinel is the reserved reply meaning "the artifact was already
// delivered out-of-band"; it must never be forwarded to the user.
const deliveredSentinel = "✅"

// Result is the tagged outcome of one collaborator turn.
type Result struct {
	// Delivered reports that the collaborator already delivered the reply
	// through a side channel; Text is empty and nothing should be sent.
	Delivered bool
	Text      string
}

type converseRequest struct {
	ConversationID string `json:"conversation_id"`
	Input          string `json:"input"`
}

type converseResponse struct {
	Reply string `json:"reply"`
}

// Client calls the reasoning collaborator over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a collaborator client. The timeout bounds each turn and
// must stay below the webhook platform's response ceiling.
func NewClient(log *slog.Logger, baseURL, apiKey string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With(slog.String("component", "agent_client")),
	}
}

// Converse sends one user input and returns the collaborator's reply. The
// conversation id is opaque to the gateway; the collaborator owns history.
func (c *Client) Converse(ctx context.Context, conversationID, input string) (Result, error) {
	body, err := json.Marshal(converseRequest{
		ConversationID: conversationID,
		Input:          input,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal converse request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/converse", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("converse: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("converse: status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed converseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, fmt.Errorf("decode converse response: %w", err)
	}
	reply := strings.TrimSpace(parsed.Reply)
	if reply == "" {
		return Result{}, fmt.Errorf("converse: empty reply")
	}
	if reply == deliveredSentinel {
		c.logger.Info("collaborator delivered out-of-band",
			slog.String("conversation_id", conversationID))
		return Result{Delivered: true}, nil
	}
	return Result{Text: reply}, nil
}
