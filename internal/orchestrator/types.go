package orchestrator

import "time"

// Modality is the shape of an inbound event's content.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
)

// InboundEvent is one normalized unit of user input. For text events
// Text carries the body; for image and audio events MediaRef carries
// the storage key of the already persisted payload.
type InboundEvent struct {
	ConversationID  string
	Modality        Modality
	Text            string
	MediaRef        string
	Caption         string
	Mime            string
	Language        string
	ExternalEventID string
	ReceivedAt      time.Time
}

// Outcome reports how routing ended for one event.
type Outcome string

const (
	// OutcomeReplied means a reply was produced this turn, including
	// the apology path.
	OutcomeReplied Outcome = "replied"
	// OutcomeBackgroundStarted means a job was started and the turn
	// ended with no reply yet.
	OutcomeBackgroundStarted Outcome = "background_started"
	// OutcomeDelivered means the delegate reported it already sent
	// the result out of band.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeDuplicate means the event id was already processed.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeDropped means the event could not be classified and was
	// discarded without a reply.
	OutcomeDropped Outcome = "dropped"
)
