package outbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ReplyKind selects the outbound message shape.
type ReplyKind string

const (
	KindText  ReplyKind = "text"
	KindAudio ReplyKind = "audio"
	KindImage ReplyKind = "image"
)

// Reply is a fully resolved outbound message. Content holds the text
// body for KindText and the media link for KindAudio and KindImage.
type Reply struct {
	ConversationID string
	Kind           ReplyKind
	Content        string
	Caption        string
}

// ChannelClient is the delivery surface of the messaging channel.
type ChannelClient interface {
	SendText(ctx context.Context, to, text string) error
	SendAudio(ctx context.Context, to, link string) error
	SendImage(ctx context.Context, to, link, caption string) error
}

// retryable is implemented by channel errors that are worth retrying,
// such as rate limits and upstream 5xx responses.
type retryable interface {
	Retryable() bool
}

// Sender delivers replies with a shared rate limit and bounded retries
// on transient channel failures. Terminal rejections are returned on
// the first attempt.
type Sender struct {
	client      ChannelClient
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
	logger      *slog.Logger
}

type SenderOptions struct {
	// MessagesPerSecond caps outbound throughput across conversations.
	MessagesPerSecond float64
	Burst             int
	MaxAttempts       int
	BaseBackoff       time.Duration
}

func NewSender(log *slog.Logger, client ChannelClient, opts SenderOptions) *Sender {
	if log == nil {
		log = slog.Default()
	}
	if opts.MessagesPerSecond <= 0 {
		opts.MessagesPerSecond = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 500 * time.Millisecond
	}
	return &Sender{
		client:      client,
		limiter:     rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), opts.Burst),
		maxAttempts: opts.MaxAttempts,
		baseBackoff: opts.BaseBackoff,
		logger:      log.With(slog.String("component", "outbound")),
	}
}

// Send delivers one reply, retrying transient failures with exponential
// backoff. It returns the last error when every attempt fails.
func (s *Sender) Send(ctx context.Context, reply Reply) error {
	if strings.TrimSpace(reply.ConversationID) == "" {
		return fmt.Errorf("conversation id is required")
	}
	if strings.TrimSpace(reply.Content) == "" {
		return fmt.Errorf("reply content is required")
	}

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		lastErr = s.deliver(ctx, reply)
		if lastErr == nil {
			return nil
		}
		var r retryable
		if !errors.As(lastErr, &r) || !r.Retryable() {
			return lastErr
		}
		if attempt == s.maxAttempts {
			break
		}
		wait := s.baseBackoff << (attempt - 1)
		s.logger.Warn("transient delivery failure, retrying",
			slog.String("conversation_id", reply.ConversationID),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", wait),
			slog.String("error", lastErr.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("send %s reply after %d attempts: %w", reply.Kind, s.maxAttempts, lastErr)
}

func (s *Sender) deliver(ctx context.Context, reply Reply) error {
	switch reply.Kind {
	case KindAudio:
		return s.client.SendAudio(ctx, reply.ConversationID, reply.Content)
	case KindImage:
		return s.client.SendImage(ctx, reply.ConversationID, reply.Content, reply.Caption)
	case KindText:
		return s.client.SendText(ctx, reply.ConversationID, reply.Content)
	default:
		return fmt.Errorf("unknown reply kind %q", reply.Kind)
	}
}
