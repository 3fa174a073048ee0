package service

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// EventPublisher fans lifecycle events out to interested consumers
// (notification workers, analytics). Publication is best-effort: a failed
// publish is logged by the caller and never rolls a transition back.
type EventPublisher interface {
	Publish(subject string, payload interface{}) error
}

// DocumentEvent is the wire shape of a lifecycle event.
type DocumentEvent struct {
	DocumentID uint   `json:"document_id"`
	OwnerID    uint   `json:"owner_id"`
	Status     string `json:"status"`
	ActorID    uint   `json:"actor_id"`
	Revision   int    `json:"revision"`
}

const (
	// SubjectDocumentSubmitted is published when a draft enters review.
	SubjectDocumentSubmitted = "folio.document.submitted"
	// SubjectDocumentApproved is published on approval.
	SubjectDocumentApproved = "folio.document.approved"
	// SubjectDocumentRevision is published when revision is requested.
	SubjectDocumentRevision = "folio.document.revision_requested"
	// SubjectDocumentReopened is published when a document returns to draft.
	SubjectDocumentReopened = "folio.document.reopened"
)

type natsPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewNATSPublisher wraps a NATS connection as an EventPublisher.
func NewNATSPublisher(conn *nats.Conn, logger zerolog.Logger) EventPublisher {
	return &natsPublisher{
		conn:   conn,
		logger: logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *natsPublisher) Publish(subject string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.conn.Publish(subject, raw); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug().Str("subject", subject).Msg("event published")

	return nil
}
