// Package completion is the second ingress entry point: background jobs
// report their results here and rejoin the conversation.
package completion

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/parloteam/parlo/internal/metrics"
	"github.com/parloteam/parlo/internal/orchestrator"
	"github.com/parloteam/parlo/internal/outbound"
	"github.com/parloteam/parlo/internal/pending"
)

// Router re-enters a transcript into the main dispatch path.
type Router interface {
	Route(ctx context.Context, event orchestrator.InboundEvent) orchestrator.Outcome
	SendApology(ctx context.Context, conversationID, language string)
}

// ReplySender delivers results that do not re-enter dispatch, such as a
// finished generated image.
type ReplySender interface {
	Send(ctx context.Context, reply outbound.Reply) error
}

type callbackRequest struct {
	JobID string `json:"job_id"`
	// Status is "ok" or "error".
	Status     string `json:"status"`
	Transcript string `json:"transcript,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
	Caption    string `json:"caption,omitempty"`
	Error      string `json:"error,omitempty"`
}

type Handler struct {
	store  pending.Store
	router Router
	sender ReplySender
	logger *slog.Logger
}

func NewHandler(log *slog.Logger, store pending.Store, router Router, sender ReplySender) *Handler {
	return &Handler{
		store:  store,
		router: router,
		sender: sender,
		logger: log.With(slog.String("handler", "completion")),
	}
}

func (h *Handler) Register(e *echo.Echo) {
	e.POST("/jobs/completion", h.Complete)
}

// Complete consumes one job callback. A missing pending entry is a
// benign duplicate or an expired job and acknowledges without action.
func (h *Handler) Complete(c echo.Context) error {
	var req callbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid callback payload")
	}
	if strings.TrimSpace(req.JobID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "job_id is required")
	}

	ctx := c.Request().Context()
	job, err := h.store.TakeAndDelete(ctx, req.JobID)
	if err != nil {
		if errors.Is(err, pending.ErrNotFound) {
			h.logger.Info("callback for unknown job ignored", slog.String("job_id", req.JobID))
			return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
		}
		h.logger.Error("pending job lookup failed",
			slog.String("job_id", req.JobID), slog.String("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "pending job lookup failed")
	}

	if strings.ToLower(req.Status) != "ok" {
		metrics.JobsCompleted.WithLabelValues("failed").Inc()
		h.logger.Warn("job reported failure",
			slog.String("job_id", job.JobID),
			slog.String("conversation_id", job.ConversationID),
			slog.String("error", req.Error))
		h.router.SendApology(ctx, job.ConversationID, "")
		return c.JSON(http.StatusOK, map[string]string{"status": "failed"})
	}

	switch job.Intent {
	case pending.IntentTranscribeThenReply:
		h.resumeTranscript(ctx, job, req.Transcript)
	case pending.IntentGenerateImage:
		h.deliverImage(ctx, job, req.ImageURL, req.Caption)
	default:
		h.logger.Error("pending job has unknown intent",
			slog.String("job_id", job.JobID), slog.String("intent", string(job.Intent)))
		h.router.SendApology(ctx, job.ConversationID, "")
	}
	metrics.JobsCompleted.WithLabelValues("ok").Inc()
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// resumeTranscript re-enters the transcript as a synthetic text event so
// the normal delegated path produces the conversational reply. The
// synthetic event id is derived from the source event so the
// idempotency check treats it as its own event.
func (h *Handler) resumeTranscript(ctx context.Context, job pending.Job, transcript string) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		h.logger.Warn("empty transcript", slog.String("job_id", job.JobID))
		h.router.SendApology(ctx, job.ConversationID, "")
		return
	}
	event := orchestrator.InboundEvent{
		ConversationID:  job.ConversationID,
		Modality:        orchestrator.ModalityText,
		Text:            transcript,
		ExternalEventID: job.SourceEventID + "#transcript",
		ReceivedAt:      time.Now().UTC(),
	}
	outcome := h.router.Route(ctx, event)
	h.logger.Info("transcript resumed",
		slog.String("job_id", job.JobID),
		slog.String("conversation_id", job.ConversationID),
		slog.String("outcome", string(outcome)))
}

func (h *Handler) deliverImage(ctx context.Context, job pending.Job, imageURL, caption string) {
	if strings.TrimSpace(imageURL) == "" {
		h.logger.Warn("image job completed without a link", slog.String("job_id", job.JobID))
		h.router.SendApology(ctx, job.ConversationID, "")
		return
	}
	err := h.sender.Send(ctx, outbound.Reply{
		ConversationID: job.ConversationID,
		Kind:           outbound.KindImage,
		Content:        imageURL,
		Caption:        caption,
	})
	if err != nil {
		h.logger.Error("generated image delivery failed",
			slog.String("job_id", job.JobID), slog.String("error", err.Error()))
	}
}
