package speech

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

// maxSynthesisRunes bounds the text handed to the synthesis engine.
const maxSynthesisRunes = 3000

type synthesizeRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

type synthesizeResponse struct {
	OK       bool   `json:"ok"`
	AudioURL string `json:"audio_url"`
	Error    string `json:"error,omitempty"`
}

// Synthesizer turns reply text into a fetchable audio link.
type Synthesizer struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSynthesizer creates a TTS client. An empty endpoint disables voice
// replies; Synthesize then fails and callers fall back to text.
func NewSynthesizer(log *slog.Logger, endpoint string, timeout time.Duration) *Synthesizer {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Synthesizer{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With(slog.String("component", "synthesizer")),
	}
}

// Enabled reports whether a synthesis endpoint is configured.
func (s *Synthesizer) Enabled() bool {
	return strings.TrimSpace(s.endpoint) != ""
}

// Synthesize converts text into speech and returns the audio link.
func (s *Synthesizer) Synthesize(ctx context.Context, conversationID, text string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("synthesis endpoint not configured")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("text is required")
	}
	runes := []rune(text)
	if len(runes) > maxSynthesisRunes {
		text = string(runes[:maxSynthesisRunes])
	}
	body, err := json.Marshal(synthesizeRequest{ConversationID: conversationID, Text: text})
	if err != nil {
		return "", fmt.Errorf("marshal synthesize request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("synthesize: status %d: %s", resp.StatusCode, string(raw))
	}
	var parsed synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode synthesize response: %w", err)
	}
	if !parsed.OK || strings.TrimSpace(parsed.AudioURL) == "" {
		return "", fmt.Errorf("synthesize: engine reported failure: %s", parsed.Error)
	}
	s.logger.Debug("synthesis ready", slog.String("conversation_id", conversationID))
	return parsed.AudioURL, nil
}
