// Package pending holds the job dispatch table: single-use continuations
// keyed by the identifier a background job system assigns when work is
// submitted. The orchestrator writes entries, the completion handler takes
// them exactly once, and a TTL sweep reclaims jobs that never report back.
package pending

import (
	"context"
	"errors"
	"time"
)

// Intent names what should happen when the job's result arrives.
type Intent string

const (
	// IntentTranscribeThenReply re-enters the transcript as a text event.
	IntentTranscribeThenReply Intent = "transcribe-then-reply"
	// IntentGenerateImage delivers the generated image to the conversation.
	IntentGenerateImage Intent = "generate-image"
)

// Job is a suspended orchestration awaiting an asynchronous result.
type Job struct {
	JobID          string    `json:"job_id"`
	ConversationID string    `json:"conversation_id"`
	Intent         Intent    `json:"intent"`
	// SourceEventID is the external event id that started the job; synthetic
	// re-entry events derive their ids from it so de-duplication holds.
	SourceEventID string    `json:"source_event_id"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

var (
	// ErrNotFound indicates no pending job exists for the id. Completion
	// callers treat this as a benign duplicate, not a failure.
	ErrNotFound = errors.New("pending job not found")
	// ErrDuplicateJob indicates a Put for a job id that is already pending.
	ErrDuplicateJob = errors.New("pending job already exists")
)

// Store is the dispatch-table contract. Implementations must make
// TakeAndDelete atomic: concurrent calls for one id yield the job to exactly
// one caller and ErrNotFound to the rest.
type Store interface {
	Put(ctx context.Context, job Job) error
	TakeAndDelete(ctx context.Context, jobID string) (Job, error)
	// ExpireBefore removes and returns all jobs whose ExpiresAt is at or
	// before cutoff. A job taken concurrently is never returned (delete-wins).
	ExpireBefore(ctx context.Context, cutoff time.Time) ([]Job, error)
}
