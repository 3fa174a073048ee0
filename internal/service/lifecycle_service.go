package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/folio-go-api/internal/dto"
	"github.com/noah-isme/folio-go-api/internal/models"
	"github.com/noah-isme/folio-go-api/internal/observability"
	"github.com/noah-isme/folio-go-api/internal/repository"
	"github.com/noah-isme/folio-go-api/internal/workflow"
)

var (
	// ErrNotAuthorized indicates the actor's role does not permit the transition.
	ErrNotAuthorized = errors.New("actor is not permitted to perform this transition")
	// ErrFeedbackRequired indicates a revision request without explanation.
	ErrFeedbackRequired = errors.New("feedback is required when requesting revision")
)

// IncompleteDocumentError reports which required fields block submission,
// keyed by field id with a human label. It is surfaced per-field and never
// persisted.
type IncompleteDocumentError struct {
	Missing map[string]string
}

func (e *IncompleteDocumentError) Error() string {
	fields := make([]string, 0, len(e.Missing))
	for id := range e.Missing {
		fields = append(fields, id)
	}
	return fmt.Sprintf("document is incomplete: missing %s", strings.Join(fields, ", "))
}

// LifecycleService governs the document status machine and who may mutate the
// document at each state. Every transition is one atomic persisted update.
type LifecycleService interface {
	Submit(ctx context.Context, documentID uint, actor Actor) (dto.DocumentResponse, error)
	Approve(ctx context.Context, documentID uint, actor Actor, payload dto.ApproveRequest) (dto.DocumentResponse, error)
	RequestRevision(ctx context.Context, documentID uint, actor Actor, payload dto.RevisionRequest) (dto.DocumentResponse, error)
	Reopen(ctx context.Context, documentID uint, actor Actor) (dto.DocumentResponse, error)
}

// SessionCloser detaches a live editing session after a transition so the
// next edit reloads the authoritative record.
type SessionCloser interface {
	CloseSession(id uint)
	Save(ctx context.Context, id uint, actor Actor) (dto.DocumentResponse, error)
}

// ReviewCacheInvalidator drops cached review queues after transitions.
type ReviewCacheInvalidator interface {
	Invalidate(ctx context.Context)
}

type lifecycleService struct {
	documents repository.DocumentRepository
	sessions  SessionCloser
	navigator *workflow.Navigator
	events    EventPublisher
	cache     ReviewCacheInvalidator
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewLifecycleService constructs the lifecycle state machine service.
func NewLifecycleService(documents repository.DocumentRepository, sessions SessionCloser, steps []workflow.StepDescriptor, events EventPublisher, cache ReviewCacheInvalidator, validate *validator.Validate, logger zerolog.Logger) LifecycleService {
	if len(steps) == 0 {
		steps = workflow.DefaultSteps()
	}

	return &lifecycleService{
		documents: documents,
		sessions:  sessions,
		navigator: workflow.NewNavigator(steps, nil),
		events:    events,
		cache:     cache,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "lifecycle_service").Logger(),
	}
}

func (s *lifecycleService) Submit(ctx context.Context, documentID uint, actor Actor) (dto.DocumentResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/folio-go-api/internal/service/lifecycle")
	ctx, span := tracer.Start(ctx, "lifecycle.submit")
	span.SetAttributes(
		attribute.Int64("document.id", int64(documentID)),
		attribute.Int64("actor.id", int64(actor.ID)),
	)
	defer span.End()

	// Pending edits must be durable before validating against them.
	if s.sessions != nil {
		if _, err := s.sessions.Save(ctx, documentID, actor); err != nil && !errors.Is(err, ErrNotOwner) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "draft_flush_failed")
			return dto.DocumentResponse{}, err
		}
	}

	doc, err := s.load(ctx, documentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "document_lookup_failed")
		return dto.DocumentResponse{}, err
	}

	if doc.OwnerID != actor.ID {
		span.SetStatus(codes.Error, "not_owner")
		return dto.DocumentResponse{}, ErrNotAuthorized
	}

	// Submission uses the strict validation mode: every step's required
	// fields plus the artifact rule that step navigation deliberately skips.
	if missing := s.navigator.Validate(doc); len(missing) > 0 {
		span.SetAttributes(attribute.Int("submission.missing_fields", len(missing)))
		span.SetStatus(codes.Error, "incomplete")
		observability.TransitionTotal().WithLabelValues(models.StatusSubmitted, "rejected").Inc()
		return dto.DocumentResponse{}, &IncompleteDocumentError{Missing: missing}
	}

	updated, err := s.documents.TransitionStatus(ctx, documentID, repository.StatusTransition{
		From:           []string{models.StatusDraft},
		To:             models.StatusSubmitted,
		SetSubmittedAt: true,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition_failed")
		observability.TransitionTotal().WithLabelValues(models.StatusSubmitted, "error").Inc()
		return dto.DocumentResponse{}, err
	}

	s.afterTransition(ctx, updated, actor, SubjectDocumentSubmitted)
	observability.TransitionTotal().WithLabelValues(models.StatusSubmitted, "ok").Inc()
	s.logger.Info().Uint("document_id", documentID).Msg("document submitted")

	return dto.NewDocumentResponse(updated), nil
}

func (s *lifecycleService) Approve(ctx context.Context, documentID uint, actor Actor, payload dto.ApproveRequest) (dto.DocumentResponse, error) {
	if !actor.IsTeacher() {
		return dto.DocumentResponse{}, ErrNotAuthorized
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.DocumentResponse{}, err
	}

	approvedBy := actor.ID
	transition := repository.StatusTransition{
		From:           []string{models.StatusSubmitted},
		To:             models.StatusApproved,
		ApprovedBy:     &approvedBy,
		ApprovedSkills: payload.Skills,
		ApprovalNote:   s.sanitizer.Sanitize(payload.Justification),
	}

	if feedback := strings.TrimSpace(payload.Feedback); feedback != "" {
		transition.Feedback = []models.FeedbackEntry{{
			AuthorID: actor.ID,
			Comment:  s.sanitizer.Sanitize(feedback),
		}}
	}

	updated, err := s.documents.TransitionStatus(ctx, documentID, transition)
	if err != nil {
		observability.TransitionTotal().WithLabelValues(models.StatusApproved, "error").Inc()
		return dto.DocumentResponse{}, s.mapError(err)
	}

	s.afterTransition(ctx, updated, actor, SubjectDocumentApproved)
	observability.TransitionTotal().WithLabelValues(models.StatusApproved, "ok").Inc()
	s.logger.Info().Uint("document_id", documentID).Uint("teacher_id", actor.ID).Msg("document approved")

	return dto.NewDocumentResponse(updated), nil
}

func (s *lifecycleService) RequestRevision(ctx context.Context, documentID uint, actor Actor, payload dto.RevisionRequest) (dto.DocumentResponse, error) {
	if !actor.IsTeacher() {
		return dto.DocumentResponse{}, ErrNotAuthorized
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.DocumentResponse{}, err
	}

	feedback := s.sanitizer.Sanitize(strings.TrimSpace(payload.Feedback))
	if feedback == "" {
		return dto.DocumentResponse{}, ErrFeedbackRequired
	}

	updated, err := s.documents.TransitionStatus(ctx, documentID, repository.StatusTransition{
		From: []string{models.StatusSubmitted},
		To:   models.StatusNeedsRevision,
		Feedback: []models.FeedbackEntry{{
			AuthorID: actor.ID,
			FieldID:  payload.FieldID,
			Comment:  feedback,
		}},
	})
	if err != nil {
		observability.TransitionTotal().WithLabelValues(models.StatusNeedsRevision, "error").Inc()
		return dto.DocumentResponse{}, s.mapError(err)
	}

	s.afterTransition(ctx, updated, actor, SubjectDocumentRevision)
	observability.TransitionTotal().WithLabelValues(models.StatusNeedsRevision, "ok").Inc()
	s.logger.Info().Uint("document_id", documentID).Uint("teacher_id", actor.ID).Msg("revision requested")

	return dto.NewDocumentResponse(updated), nil
}

func (s *lifecycleService) Reopen(ctx context.Context, documentID uint, actor Actor) (dto.DocumentResponse, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return dto.DocumentResponse{}, err
	}

	// A teacher may reopen any returned document; the owner may pick their
	// own back up to continue editing.
	if !actor.IsTeacher() && doc.OwnerID != actor.ID {
		return dto.DocumentResponse{}, ErrNotAuthorized
	}

	updated, err := s.documents.TransitionStatus(ctx, documentID, repository.StatusTransition{
		From:              []string{models.StatusNeedsRevision},
		To:                models.StatusDraft,
		IncrementRevision: true,
	})
	if err != nil {
		observability.TransitionTotal().WithLabelValues(models.StatusDraft, "error").Inc()
		return dto.DocumentResponse{}, s.mapError(err)
	}

	s.afterTransition(ctx, updated, actor, SubjectDocumentReopened)
	observability.TransitionTotal().WithLabelValues(models.StatusDraft, "ok").Inc()
	s.logger.Info().Uint("document_id", documentID).Int("revision", updated.Revision).Msg("document reopened")

	return dto.NewDocumentResponse(updated), nil
}

// afterTransition detaches any live session so stale drafts cannot overwrite
// the new status, invalidates the review cache and publishes the event.
func (s *lifecycleService) afterTransition(ctx context.Context, doc models.Document, actor Actor, subject string) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent("lifecycle.transition", trace.WithAttributes(
			attribute.String("subject", subject),
			attribute.String("status", doc.Status),
		))
	}

	if s.sessions != nil {
		s.sessions.CloseSession(doc.ID)
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}

	if s.events != nil {
		event := DocumentEvent{
			DocumentID: doc.ID,
			OwnerID:    doc.OwnerID,
			Status:     doc.Status,
			ActorID:    actor.ID,
			Revision:   doc.Revision,
		}
		if err := s.events.Publish(subject, event); err != nil {
			s.logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish lifecycle event")
		}
	}
}

func (s *lifecycleService) load(ctx context.Context, id uint) (models.Document, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Document{}, ErrDocumentNotFound
		}
		return models.Document{}, err
	}

	return doc, nil
}

func (s *lifecycleService) mapError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrDocumentNotFound
	}
	return err
}
