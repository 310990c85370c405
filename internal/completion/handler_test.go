package completion

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/parloteam/parlo/internal/orchestrator"
	"github.com/parloteam/parlo/internal/outbound"
	"github.com/parloteam/parlo/internal/pending"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRouter struct {
	routed    []orchestrator.InboundEvent
	apologies []string
}

func (f *fakeRouter) Route(_ context.Context, event orchestrator.InboundEvent) orchestrator.Outcome {
	f.routed = append(f.routed, event)
	return orchestrator.OutcomeReplied
}

func (f *fakeRouter) SendApology(_ context.Context, conversationID, _ string) {
	f.apologies = append(f.apologies, conversationID)
}

type fakeSender struct {
	replies []outbound.Reply
}

func (f *fakeSender) Send(_ context.Context, reply outbound.Reply) error {
	f.replies = append(f.replies, reply)
	return nil
}

func callbackRequestFor(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/jobs/completion", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.Complete(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func pendingJob(id string, intent pending.Intent) pending.Job {
	now := time.Now().UTC()
	return pending.Job{
		JobID:          id,
		ConversationID: "15550001111",
		Intent:         intent,
		SourceEventID:  "wamid.original",
		CreatedAt:      now,
		ExpiresAt:      now.Add(time.Minute),
	}
}

func TestCompleteResumesTranscript(t *testing.T) {
	t.Parallel()
	store := pending.NewMemoryStore()
	router := &fakeRouter{}
	sender := &fakeSender{}
	h := NewHandler(newTestLogger(), store, router, sender)

	assert.NoError(t, store.Put(context.Background(), pendingJob("job-42", pending.IntentTranscribeThenReply)))

	rec := callbackRequestFor(t, h, `{"job_id":"job-42","status":"ok","transcript":"what's the weather"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Len(t, router.routed, 1)
	event := router.routed[0]
	assert.Equal(t, orchestrator.ModalityText, event.Modality)
	assert.Equal(t, "what's the weather", event.Text)
	assert.Equal(t, "15550001111", event.ConversationID)
	assert.Equal(t, "wamid.original#transcript", event.ExternalEventID)

	// Entry consumed: the table holds single-use continuations.
	assert.Equal(t, 0, store.Len())
}

func TestCompleteDuplicateCallbackIsBenign(t *testing.T) {
	t.Parallel()
	store := pending.NewMemoryStore()
	router := &fakeRouter{}
	h := NewHandler(newTestLogger(), store, router, &fakeSender{})

	assert.NoError(t, store.Put(context.Background(), pendingJob("job-42", pending.IntentTranscribeThenReply)))

	first := callbackRequestFor(t, h, `{"job_id":"job-42","status":"ok","transcript":"hello"}`)
	second := callbackRequestFor(t, h, `{"job_id":"job-42","status":"ok","transcript":"hello"}`)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), "ignored")
	assert.Len(t, router.routed, 1)
	assert.Empty(t, router.apologies)
}

func TestCompleteUnknownJobIsNoOp(t *testing.T) {
	t.Parallel()
	router := &fakeRouter{}
	h := NewHandler(newTestLogger(), pending.NewMemoryStore(), router, &fakeSender{})

	rec := callbackRequestFor(t, h, `{"job_id":"never-seen","status":"ok","transcript":"hi"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, router.routed)
}

func TestCompleteJobFailureApologizes(t *testing.T) {
	t.Parallel()
	store := pending.NewMemoryStore()
	router := &fakeRouter{}
	h := NewHandler(newTestLogger(), store, router, &fakeSender{})

	assert.NoError(t, store.Put(context.Background(), pendingJob("job-42", pending.IntentTranscribeThenReply)))

	rec := callbackRequestFor(t, h, `{"job_id":"job-42","status":"error","error":"unintelligible audio"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, router.routed)
	assert.Equal(t, []string{"15550001111"}, router.apologies)
}

func TestCompleteEmptyTranscriptApologizes(t *testing.T) {
	t.Parallel()
	store := pending.NewMemoryStore()
	router := &fakeRouter{}
	h := NewHandler(newTestLogger(), store, router, &fakeSender{})

	assert.NoError(t, store.Put(context.Background(), pendingJob("job-42", pending.IntentTranscribeThenReply)))

	rec := callbackRequestFor(t, h, `{"job_id":"job-42","status":"ok","transcript":"  "}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, router.routed)
	assert.Len(t, router.apologies, 1)
}

func TestCompleteDeliversGeneratedImage(t *testing.T) {
	t.Parallel()
	store := pending.NewMemoryStore()
	router := &fakeRouter{}
	sender := &fakeSender{}
	h := NewHandler(newTestLogger(), store, router, sender)

	assert.NoError(t, store.Put(context.Background(), pendingJob("job-7", pending.IntentGenerateImage)))

	rec := callbackRequestFor(t, h, `{"job_id":"job-7","status":"ok","image_url":"https://media.test/out.png","caption":"here you go"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Len(t, sender.replies, 1)
	reply := sender.replies[0]
	assert.Equal(t, outbound.KindImage, reply.Kind)
	assert.Equal(t, "https://media.test/out.png", reply.Content)
	assert.Equal(t, "here you go", reply.Caption)
	assert.Empty(t, router.routed)
}

func TestCompleteRejectsMissingJobID(t *testing.T) {
	t.Parallel()
	h := NewHandler(newTestLogger(), pending.NewMemoryStore(), &fakeRouter{}, &fakeSender{})

	rec := callbackRequestFor(t, h, `{"status":"ok"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
