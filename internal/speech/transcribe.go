// Package speech holds the speech-to-text job starter and the text-to-speech
// client. Transcription is asynchronous: starting a job returns an opaque id
// and the result arrives later on the completion endpoint.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const maxJobNameLen = 200

var jobNamePattern = regexp.MustCompile(`[^a-zA-Z0-9-]`)

// StartRequest describes one transcription job submission.
type StartRequest struct {
	JobName     string   `json:"job_name"`
	MediaRef    string   `json:"media_ref"`
	MediaFormat string   `json:"media_format"`
	Languages   []string `json:"language_options,omitempty"`
}

type startResponse struct {
	JobID string `json:"job_id"`
}

// Transcriber submits audio to the speech-to-text engine.
type Transcriber struct {
	endpoint   string
	languages  []string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTranscriber creates a transcription job client. languages are the
// identification candidates passed with every job.
func NewTranscriber(log *slog.Logger, endpoint string, languages []string, timeout time.Duration) *Transcriber {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Transcriber{
		endpoint:   endpoint,
		languages:  languages,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With(slog.String("component", "transcriber")),
	}
}

// Start submits a transcription job and returns the id assigned by the job
// system. The result arrives later through the completion endpoint.
func (t *Transcriber) Start(ctx context.Context, mediaRef, mime, jobName string) (string, error) {
	if strings.TrimSpace(mediaRef) == "" {
		return "", fmt.Errorf("media ref is required")
	}
	req := StartRequest{
		JobName:     jobName,
		MediaRef:    mediaRef,
		MediaFormat: FormatForMime(mime),
		Languages:   t.languages,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal start request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("start transcription: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("start transcription: status %d: %s", resp.StatusCode, string(raw))
	}
	var parsed startResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode start response: %w", err)
	}
	if strings.TrimSpace(parsed.JobID) == "" {
		return "", fmt.Errorf("start transcription: no job id in response")
	}
	t.logger.Info("transcription started",
		slog.String("job_id", parsed.JobID),
		slog.String("job_name", jobName),
		slog.String("format", req.MediaFormat))
	return parsed.JobID, nil
}

// JobName builds a job-system-safe name from conversation and event ids:
// letters, digits, and hyphens only, length capped.
func JobName(conversationID, eventID string) string {
	base := "tr-" + conversationID + "-" + eventID
	clean := jobNamePattern.ReplaceAllString(base, "-")
	if len(clean) > maxJobNameLen {
		clean = clean[:maxJobNameLen]
	}
	return clean
}

// FormatForMime maps an audio MIME type to the job system's media format.
// WhatsApp voice notes are opus-in-ogg, the safest default.
func FormatForMime(mime string) string {
	base := strings.ToLower(strings.TrimSpace(strings.Split(mime, ";")[0]))
	mapping := map[string]string{
		"audio/ogg":  "ogg",
		"audio/opus": "ogg",
		"audio/mpeg": "mp3",
		"audio/mp3":  "mp3",
		"audio/mp4":  "mp4",
		"audio/m4a":  "mp4",
		"audio/aac":  "aac",
		"audio/wav":  "wav",
		"audio/flac": "flac",
	}
	if format, ok := mapping[base]; ok {
		return format
	}
	return "ogg"
}
