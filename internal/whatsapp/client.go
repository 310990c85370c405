package whatsapp

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

	"github.com/parloteam/parlo/internal/media"
)

const (
	// MaxTextRunes is the Cloud API body limit for a text message.
	MaxTextRunes = 4096
	// MaxCaptionRunes is the Cloud API caption limit for media messages.
	MaxCaptionRunes = 1024

	maxDownloadBytes int64 = 32 << 20 // 32 MiB
)

// StatusError reports a non-2xx Graph API response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("whatsapp: graph api status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the failure is worth retrying: rate limits and
// server-side errors are; other 4xx responses are terminal.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client talks to the WhatsApp Cloud (Graph) API.
type Client struct {
	graphBase     string
	phoneNumberID string
	token         string
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewClient creates a Graph API client for one phone number.
func NewClient(log *slog.Logger, graphBase, phoneNumberID, token string) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		graphBase:     strings.TrimRight(graphBase, "/"),
		phoneNumberID: phoneNumberID,
		token:         token,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        log.With(slog.String("component", "whatsapp_client")),
	}
}

// MediaURL resolves a media id into its ephemeral download URL and MIME type.
func (c *Client) MediaURL(ctx context.Context, mediaID string) (string, string, error) {
	if strings.TrimSpace(mediaID) == "" {
		return "", "", fmt.Errorf("media id is required")
	}
	var meta mediaMeta
	if err := c.getJSON(ctx, c.graphBase+"/"+mediaID, &meta); err != nil {
		return "", "", fmt.Errorf("resolve media %s: %w", mediaID, err)
	}
	if meta.URL == "" {
		return "", "", fmt.Errorf("resolve media %s: no url in response", mediaID)
	}
	return meta.URL, meta.MimeType, nil
}

// Download fetches media bytes from an ephemeral URL. The bearer token is
// required; the URL alone does not grant access.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	data, err := media.ReadAllWithLimit(resp.Body, maxDownloadBytes)
	if err != nil {
		return nil, fmt.Errorf("read media body: %w", err)
	}
	return data, nil
}

// SendText delivers a plain text message. The body is truncated to the
// platform limit.
func (c *Client) SendText(ctx context.Context, to, text string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "text",
		"text": map[string]any{
			"preview_url": false,
			"body":        truncateRunes(text, MaxTextRunes),
		},
	}
	return c.postMessage(ctx, payload)
}

// SendAudio delivers an audio message by HTTPS link.
func (c *Client) SendAudio(ctx context.Context, to, link string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "audio",
		"audio":             map[string]any{"link": link},
	}
	return c.postMessage(ctx, payload)
}

// SendImage delivers an image message by HTTPS link with an optional caption.
func (c *Client) SendImage(ctx context.Context, to, link, caption string) error {
	image := map[string]any{"link": link}
	if strings.TrimSpace(caption) != "" {
		image["caption"] = truncateRunes(caption, MaxCaptionRunes)
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "image",
		"image":             image,
	}
	return c.postMessage(ctx, payload)
}

func (c *Client) postMessage(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	url := c.graphBase + "/" + c.phoneNumberID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	var parsed sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err == nil && len(parsed.Messages) > 0 {
		c.logger.Debug("message accepted", slog.String("message_id", parsed.Messages[0].ID))
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
