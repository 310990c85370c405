// Package orchestrator routes normalized inbound events to the right
// processing path and owns the failure policy for a turn.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/parloteam/parlo/internal/agent"
	"github.com/parloteam/parlo/internal/intent"
	"github.com/parloteam/parlo/internal/metrics"
	"github.com/parloteam/parlo/internal/outbound"
	"github.com/parloteam/parlo/internal/pending"
	"github.com/parloteam/parlo/internal/speech"
	"github.com/parloteam/parlo/internal/vision"
)

var apologies = map[string]string{
	"es": "Lo siento, algo salió mal procesando tu mensaje. Inténtalo de nuevo en un momento.",
	"en": "Sorry, something went wrong handling your message. Please try again in a moment.",
	"pt": "Desculpe, algo deu errado ao processar sua mensagem. Tente novamente em instantes.",
}

var timeoutNotices = map[string]string{
	"es": "Tu solicitud tardó demasiado y fue cancelada. Por favor, inténtalo de nuevo.",
	"en": "Your request took too long and was cancelled. Please try again.",
	"pt": "Sua solicitação demorou demais e foi cancelada. Tente novamente, por favor.",
}

// Reasoner is the delegated conversational path.
type Reasoner interface {
	Converse(ctx context.Context, conversationID, input string) (agent.Result, error)
}

// TranscriptionStarter submits audio for background transcription.
type TranscriptionStarter interface {
	Start(ctx context.Context, mediaRef, mime, jobName string) (string, error)
}

// ImageAnalyzer is the direct compute path for image understanding.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, imageURL, question string) (string, error)
}

// VoiceSynthesizer turns reply text into an audio link.
type VoiceSynthesizer interface {
	Enabled() bool
	Synthesize(ctx context.Context, conversationID, text string) (string, error)
}

// ReplySender delivers the turn's outbound reply.
type ReplySender interface {
	Send(ctx context.Context, reply outbound.Reply) error
}

// MediaResolver maps a storage key to a link collaborators can fetch.
type MediaResolver interface {
	AccessPath(storageKey string) string
}

type Options struct {
	// DispatchTimeout bounds each synchronous collaborator call. It
	// must stay under the channel's webhook response ceiling.
	DispatchTimeout time.Duration
	// JobTTL bounds how long a pending job may await its callback.
	JobTTL time.Duration
	// JobStartBackoff is the pause before the single job-start retry.
	JobStartBackoff time.Duration
	DedupTTL        time.Duration
	DefaultLanguage string
}

func (o *Options) fill() {
	if o.DispatchTimeout <= 0 {
		o.DispatchTimeout = 25 * time.Second
	}
	if o.JobTTL <= 0 {
		o.JobTTL = 10 * time.Minute
	}
	if o.JobStartBackoff <= 0 {
		o.JobStartBackoff = 2 * time.Second
	}
	if o.DefaultLanguage == "" {
		o.DefaultLanguage = "es"
	}
}

// Orchestrator classifies inbound events and drives them to a reply,
// a background job, or a contained failure.
type Orchestrator struct {
	reasoner    Reasoner
	transcriber TranscriptionStarter
	analyzer    ImageAnalyzer
	synthesizer VoiceSynthesizer
	sender      ReplySender
	store       pending.Store
	classifier  intent.Classifier
	resolver    MediaResolver
	seen        *seenSet
	opts        Options
	logger      *slog.Logger
}

func New(
	log *slog.Logger,
	reasoner Reasoner,
	transcriber TranscriptionStarter,
	analyzer ImageAnalyzer,
	synthesizer VoiceSynthesizer,
	sender ReplySender,
	store pending.Store,
	classifier intent.Classifier,
	resolver MediaResolver,
	opts Options,
) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	opts.fill()
	return &Orchestrator{
		reasoner:    reasoner,
		transcriber: transcriber,
		analyzer:    analyzer,
		synthesizer: synthesizer,
		sender:      sender,
		store:       store,
		classifier:  classifier,
		resolver:    resolver,
		seen:        newSeenSet(opts.DedupTTL),
		opts:        opts,
		logger:      log.With(slog.String("component", "orchestrator")),
	}
}

// Route processes one inbound event to completion of its turn. Errors
// are contained: the caller only learns how the turn ended.
func (o *Orchestrator) Route(ctx context.Context, event InboundEvent) Outcome {
	log := o.logger.With(
		slog.String("conversation_id", event.ConversationID),
		slog.String("event_id", event.ExternalEventID),
		slog.String("modality", string(event.Modality)))

	if event.ExternalEventID != "" && !o.seen.Remember(event.ExternalEventID) {
		metrics.DuplicateEvents.Inc()
		log.Info("duplicate event suppressed")
		return OutcomeDuplicate
	}

	switch event.Modality {
	case ModalityAudio:
		return o.routeAudio(ctx, event, log)
	case ModalityImage:
		return o.routeImage(ctx, event, log)
	case ModalityText:
		return o.routeText(ctx, event, log)
	default:
		log.Warn("unclassifiable event dropped")
		return OutcomeDropped
	}
}

// routeAudio starts a transcription job and suspends the turn. The
// transcript re-enters Route later as a synthetic text event.
func (o *Orchestrator) routeAudio(ctx context.Context, event InboundEvent, log *slog.Logger) Outcome {
	jobName := speech.JobName(event.ConversationID, event.ExternalEventID)
	mediaRef := event.MediaRef
	if o.resolver != nil {
		mediaRef = o.resolver.AccessPath(event.MediaRef)
	}

	jobID, err := o.startWithRetry(ctx, mediaRef, event.Mime, jobName, log)
	if err != nil {
		log.Error("transcription start failed", slog.String("error", err.Error()))
		o.sendApology(ctx, event.ConversationID, event.Language)
		return OutcomeReplied
	}

	now := time.Now().UTC()
	job := pending.Job{
		JobID:          jobID,
		ConversationID: event.ConversationID,
		Intent:         pending.IntentTranscribeThenReply,
		SourceEventID:  event.ExternalEventID,
		CreatedAt:      now,
		ExpiresAt:      now.Add(o.opts.JobTTL),
	}
	if err := o.store.Put(ctx, job); err != nil {
		if errors.Is(err, pending.ErrDuplicateJob) {
			log.Info("pending job already recorded", slog.String("job_id", jobID))
			return OutcomeBackgroundStarted
		}
		log.Error("pending job write failed", slog.String("job_id", jobID), slog.String("error", err.Error()))
		o.sendApology(ctx, event.ConversationID, event.Language)
		return OutcomeReplied
	}
	metrics.JobsStarted.WithLabelValues(string(pending.IntentTranscribeThenReply)).Inc()
	log.Info("transcription started", slog.String("job_id", jobID))
	return OutcomeBackgroundStarted
}

// startWithRetry tries the job start twice before giving up.
func (o *Orchestrator) startWithRetry(ctx context.Context, mediaRef, mime, jobName string, log *slog.Logger) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.opts.DispatchTimeout)
	jobID, err := o.transcriber.Start(callCtx, mediaRef, mime, jobName)
	cancel()
	if err == nil {
		return jobID, nil
	}
	log.Warn("transcription start failed, retrying", slog.String("error", err.Error()))
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(o.opts.JobStartBackoff):
	}
	callCtx, cancel = context.WithTimeout(ctx, o.opts.DispatchTimeout)
	defer cancel()
	return o.transcriber.Start(callCtx, mediaRef, mime, jobName)
}

func (o *Orchestrator) routeImage(ctx context.Context, event InboundEvent, log *slog.Logger) Outcome {
	imageURL := event.MediaRef
	if o.resolver != nil {
		imageURL = o.resolver.AccessPath(event.MediaRef)
	}
	question := vision.QuestionFor(event.Caption, o.language(event))

	callCtx, cancel := context.WithTimeout(ctx, o.opts.DispatchTimeout)
	defer cancel()
	answer, err := o.analyzer.Analyze(callCtx, imageURL, question)
	if err != nil {
		log.Error("image analysis failed", slog.String("error", err.Error()))
		o.sendApology(ctx, event.ConversationID, event.Language)
		return OutcomeReplied
	}
	o.send(ctx, outbound.Reply{
		ConversationID: event.ConversationID,
		Kind:           outbound.KindText,
		Content:        answer,
	})
	return OutcomeReplied
}

func (o *Orchestrator) routeText(ctx context.Context, event InboundEvent, log *slog.Logger) Outcome {
	callCtx, cancel := context.WithTimeout(ctx, o.opts.DispatchTimeout)
	result, err := o.reasoner.Converse(callCtx, event.ConversationID, event.Text)
	cancel()
	if err != nil {
		log.Error("delegated dispatch failed", slog.String("error", err.Error()))
		o.sendApology(ctx, event.ConversationID, event.Language)
		return OutcomeReplied
	}
	if result.Delivered {
		log.Info("delegate delivered result out of band")
		return OutcomeDelivered
	}

	if o.classifier != nil && o.synthesizer != nil && o.synthesizer.Enabled() &&
		o.classifier.WantsVoiceReply(event.Text, o.language(event)) {
		callCtx, cancel := context.WithTimeout(ctx, o.opts.DispatchTimeout)
		audioURL, synthErr := o.synthesizer.Synthesize(callCtx, event.ConversationID, result.Text)
		cancel()
		if synthErr == nil {
			o.send(ctx, outbound.Reply{
				ConversationID: event.ConversationID,
				Kind:           outbound.KindAudio,
				Content:        audioURL,
			})
			return OutcomeReplied
		}
		// Voice synthesis is best effort; the text answer still goes out.
		log.Warn("voice synthesis failed, falling back to text", slog.String("error", synthErr.Error()))
	}

	o.send(ctx, outbound.Reply{
		ConversationID: event.ConversationID,
		Kind:           outbound.KindText,
		Content:        result.Text,
	})
	return OutcomeReplied
}

// NotifyTimeout tells the conversation its background job was reclaimed
// by the TTL sweep.
func (o *Orchestrator) NotifyTimeout(ctx context.Context, job pending.Job) {
	metrics.JobsExpired.Inc()
	o.logger.Warn("pending job expired",
		slog.String("job_id", job.JobID),
		slog.String("conversation_id", job.ConversationID))
	o.send(ctx, outbound.Reply{
		ConversationID: job.ConversationID,
		Kind:           outbound.KindText,
		Content:        noticeFor(o.opts.DefaultLanguage),
	})
}

// SendApology produces the contained-failure reply for a turn that
// cannot complete normally.
func (o *Orchestrator) SendApology(ctx context.Context, conversationID, language string) {
	o.sendApology(ctx, conversationID, language)
}

func (o *Orchestrator) sendApology(ctx context.Context, conversationID, language string) {
	if language == "" {
		language = o.opts.DefaultLanguage
	}
	o.send(ctx, outbound.Reply{
		ConversationID: conversationID,
		Kind:           outbound.KindText,
		Content:        apologyFor(language),
	})
}

// send is the single exit to the outbound chokepoint. Delivery errors
// end the turn silently; a secondary reply attempt would risk
// duplicate-message storms.
func (o *Orchestrator) send(ctx context.Context, reply outbound.Reply) {
	if err := o.sender.Send(ctx, reply); err != nil {
		metrics.DeliveryFailures.Inc()
		o.logger.Error("reply delivery failed",
			slog.String("conversation_id", reply.ConversationID),
			slog.String("kind", string(reply.Kind)),
			slog.String("error", err.Error()))
		return
	}
	metrics.RepliesSent.WithLabelValues(string(reply.Kind)).Inc()
}

func (o *Orchestrator) language(event InboundEvent) string {
	if event.Language != "" {
		return event.Language
	}
	return o.opts.DefaultLanguage
}

func apologyFor(language string) string {
	if text, ok := apologies[language]; ok {
		return text
	}
	return apologies["en"]
}

func noticeFor(language string) string {
	if text, ok := timeoutNotices[language]; ok {
		return text
	}
	return timeoutNotices["en"]
}

var _ pending.TimeoutNotifier = (*Orchestrator)(nil)
