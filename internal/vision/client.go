package vision

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

// defaultQuestions picks a caption prompt per conversation language when
// the sender provided no caption of their own.
var defaultQuestions = map[string]string{
	"es": "Describe brevemente esta imagen.",
	"en": "Briefly describe this image.",
	"pt": "Descreva brevemente esta imagem.",
}

type analyzeRequest struct {
	ImageURL string `json:"image_url"`
	Question string `json:"question"`
}

type analyzeResponse struct {
	Answer string `json:"answer"`
	Error  string `json:"error,omitempty"`
}

// Client asks the image understanding engine about a stored image.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(log *slog.Logger, endpoint string, timeout time.Duration) *Client {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 40 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With(slog.String("component", "vision")),
	}
}

// QuestionFor returns the caption when present, otherwise a language
// appropriate default prompt.
func QuestionFor(caption, language string) string {
	caption = strings.TrimSpace(caption)
	if caption != "" {
		return caption
	}
	if q, ok := defaultQuestions[language]; ok {
		return q
	}
	return defaultQuestions["en"]
}

// Analyze answers a question about the image behind imageURL.
func (c *Client) Analyze(ctx context.Context, imageURL, question string) (string, error) {
	if strings.TrimSpace(c.endpoint) == "" {
		return "", fmt.Errorf("vision endpoint not configured")
	}
	if strings.TrimSpace(imageURL) == "" {
		return "", fmt.Errorf("image url is required")
	}
	body, err := json.Marshal(analyzeRequest{ImageURL: imageURL, Question: question})
	if err != nil {
		return "", fmt.Errorf("marshal analyze request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("analyze image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("analyze image: status %d: %s", resp.StatusCode, string(raw))
	}
	var parsed analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode analyze response: %w", err)
	}
	answer := strings.TrimSpace(parsed.Answer)
	if answer == "" {
		return "", fmt.Errorf("analyze image: empty answer: %s", parsed.Error)
	}
	c.logger.Debug("image analyzed", slog.Int("answer_len", len(answer)))
	return answer, nil
}
