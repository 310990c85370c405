// Package ingress receives platform webhook deliveries, verifies them,
// normalizes them into inbound events, and hands them off without
// blocking the delivery response.
package ingress

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/parloteam/parlo/internal/media"
	"github.com/parloteam/parlo/internal/metrics"
	"github.com/parloteam/parlo/internal/orchestrator"
	"github.com/parloteam/parlo/internal/whatsapp"
)

// maxBodyBytes bounds a single webhook delivery.
const maxBodyBytes = 4 << 20

// Router is the downstream dispatch entry point.
type Router interface {
	Route(ctx context.Context, event orchestrator.InboundEvent) orchestrator.Outcome
}

// MediaFetcher resolves a platform media id to its payload.
type MediaFetcher interface {
	MediaURL(ctx context.Context, mediaID string) (string, string, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// MediaIngester persists raw media bytes and returns the stored asset.
type MediaIngester interface {
	Ingest(ctx context.Context, input media.IngestInput) (media.Asset, error)
}

type Handler struct {
	verifyToken string
	appSecret   string
	router      Router
	fetcher     MediaFetcher
	ingester    MediaIngester
	logger      *slog.Logger
}

func NewHandler(log *slog.Logger, verifyToken, appSecret string, router Router, fetcher MediaFetcher, ingester MediaIngester) *Handler {
	return &Handler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		router:      router,
		fetcher:     fetcher,
		ingester:    ingester,
		logger:      log.With(slog.String("handler", "ingress")),
	}
}

func (h *Handler) Register(e *echo.Echo) {
	e.GET("/webhook", h.Verify)
	e.POST("/webhook", h.Receive)
}

// Verify answers the platform's subscription handshake.
func (h *Handler) Verify(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")
	if mode == "subscribe" && token == h.verifyToken && challenge != "" {
		return c.String(http.StatusOK, challenge)
	}
	h.logger.Warn("webhook verification rejected", slog.String("mode", mode))
	return echo.NewHTTPError(http.StatusForbidden, "verification failed")
}

// Receive accepts one webhook delivery. The platform expects a fast
// acknowledgment, so events are normalized inline but dispatched in the
// background; delivery always gets 200 once the signature checks out.
func (h *Handler) Receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	sig := c.Request().Header.Get(whatsapp.SignatureHeader)
	if err := whatsapp.VerifySignature(h.appSecret, body, sig); err != nil {
		h.logger.Warn("delivery signature rejected")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	var env whatsapp.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.logger.Warn("undecodable delivery dropped", slog.String("error", err.Error()))
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	events := h.normalize(c.Request().Context(), env)
	if len(events) > 0 {
		// Outlives the webhook request on purpose.
		ctx := context.WithoutCancel(c.Request().Context())
		go h.dispatch(ctx, events)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "accepted"})
}

func (h *Handler) dispatch(ctx context.Context, events []orchestrator.InboundEvent) {
	for _, event := range events {
		outcome := h.router.Route(ctx, event)
		h.logger.Info("event routed",
			slog.String("conversation_id", event.ConversationID),
			slog.String("event_id", event.ExternalEventID),
			slog.String("outcome", string(outcome)))
	}
}

// normalize flattens a delivery into inbound events. One delivery may
// batch several messages across entries and changes.
func (h *Handler) normalize(ctx context.Context, env whatsapp.Envelope) []orchestrator.InboundEvent {
	var events []orchestrator.InboundEvent
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, msg := range change.Value.Messages {
				event, ok := h.normalizeMessage(ctx, msg)
				if !ok {
					continue
				}
				metrics.EventsReceived.WithLabelValues(string(event.Modality)).Inc()
				events = append(events, event)
			}
			for _, status := range change.Value.Statuses {
				h.logger.Debug("status notification ignored",
					slog.String("message_id", status.ID),
					slog.String("status", status.Status))
			}
		}
	}
	return events
}

func (h *Handler) normalizeMessage(ctx context.Context, msg whatsapp.MessageIn) (orchestrator.InboundEvent, bool) {
	eventID := msg.ID
	if eventID == "" {
		// The platform always assigns message ids; a synthetic one keeps
		// the idempotency check total if that ever breaks.
		eventID = uuid.NewString()
	}
	event := orchestrator.InboundEvent{
		ConversationID:  msg.From,
		ExternalEventID: eventID,
		ReceivedAt:      timestampOf(msg.Timestamp),
	}
	switch msg.Type {
	case "text":
		if msg.Text == nil || msg.Text.Body == "" {
			return event, false
		}
		event.Modality = orchestrator.ModalityText
		event.Text = msg.Text.Body
	case "interactive":
		text := msg.Interactive.ReplyText()
		if text == "" {
			return event, false
		}
		event.Modality = orchestrator.ModalityText
		event.Text = text
	case "audio":
		if msg.Audio == nil {
			return event, false
		}
		asset, ok := h.storeMedia(ctx, msg.From, msg.Audio.ID, media.MediaTypeAudio)
		if !ok {
			return event, false
		}
		event.Modality = orchestrator.ModalityAudio
		event.MediaRef = asset.StorageKey
		event.Mime = asset.Mime
	case "image":
		if msg.Image == nil {
			return event, false
		}
		asset, ok := h.storeMedia(ctx, msg.From, msg.Image.ID, media.MediaTypeImage)
		if !ok {
			return event, false
		}
		event.Modality = orchestrator.ModalityImage
		event.MediaRef = asset.StorageKey
		event.Mime = asset.Mime
		event.Caption = msg.Image.Caption
	default:
		h.logger.Warn("unsupported message type dropped",
			slog.String("message_id", msg.ID), slog.String("type", msg.Type))
		return event, false
	}
	return event, true
}

// storeMedia pulls the payload from the platform and persists it so only
// a reference travels downstream.
func (h *Handler) storeMedia(ctx context.Context, scope, mediaID string, mediaType media.MediaType) (media.Asset, bool) {
	url, mime, err := h.fetcher.MediaURL(ctx, mediaID)
	if err != nil {
		h.logger.Error("media url lookup failed",
			slog.String("media_id", mediaID), slog.String("error", err.Error()))
		return media.Asset{}, false
	}
	data, err := h.fetcher.Download(ctx, url)
	if err != nil {
		h.logger.Error("media download failed",
			slog.String("media_id", mediaID), slog.String("error", err.Error()))
		return media.Asset{}, false
	}
	asset, err := h.ingester.Ingest(ctx, media.IngestInput{
		Scope:     scope,
		MediaType: mediaType,
		Mime:      mime,
		Data:      data,
	})
	if err != nil {
		h.logger.Error("media ingest failed",
			slog.String("media_id", mediaID), slog.String("error", err.Error()))
		return media.Asset{}, false
	}
	return asset, true
}

func timestampOf(raw string) time.Time {
	if raw == "" {
		return time.Now().UTC()
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}
