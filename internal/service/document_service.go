package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/folio-go-api/internal/dto"
	"github.com/noah-isme/folio-go-api/internal/models"
	"github.com/noah-isme/folio-go-api/internal/repository"
	"github.com/noah-isme/folio-go-api/internal/workflow"
)

var (
	// ErrDocumentNotFound indicates the document could not be located.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrNotOwner indicates the actor does not own the document.
	ErrNotOwner = errors.New("only the document owner may perform this action")
	// ErrAttachmentNotFound indicates the attachment is not on the document.
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// DocumentService drives draft editing sessions: field mutation, link and
// attachment management, step navigation checks and draft persistence.
type DocumentService interface {
	Create(ctx context.Context, ownerID uint, payload dto.DocumentCreateRequest) (dto.DocumentResponse, error)
	Get(ctx context.Context, id uint, actor Actor) (dto.DocumentResponse, error)
	List(ctx context.Context, actor Actor, filter dto.DocumentFilter) ([]dto.DocumentResponse, error)
	Delete(ctx context.Context, id uint, actor Actor) error
	PatchFields(ctx context.Context, id uint, actor Actor, payload dto.FieldPatchRequest) (dto.DocumentResponse, error)
	AddLink(ctx context.Context, id uint, actor Actor, payload dto.ExternalLinkRequest) (dto.DocumentResponse, error)
	RemoveLink(ctx context.Context, id, linkID uint, actor Actor) (dto.DocumentResponse, error)
	CheckStep(ctx context.Context, id uint, actor Actor, step string) (dto.NavigationCheckResponse, error)
	UploadAttachments(ctx context.Context, id uint, actor Actor, files []workflow.RawFile) (dto.UploadBatchResponse, error)
	DeleteAttachment(ctx context.Context, id, attachmentID uint, actor Actor) (dto.DocumentResponse, error)
	Save(ctx context.Context, id uint, actor Actor) (dto.DocumentResponse, error)
	CloseSession(id uint)
}

// Actor identifies the authenticated caller to the workflow engine.
type Actor struct {
	ID   uint
	Role string
}

// IsTeacher reports whether the actor holds the teacher role.
func (a Actor) IsTeacher() bool {
	return a.Role == models.RoleTeacher
}

type documentService struct {
	documents   repository.DocumentRepository
	attachments repository.AttachmentRepository
	storage     workflow.BlobStorage
	sessions    *workflow.SessionRegistry
	steps       []workflow.StepDescriptor
	cfg         WorkflowConfig
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
}

// WorkflowConfig carries the engine tunables shared by all sessions.
type WorkflowConfig struct {
	AutosaveMinInterval time.Duration
	AutosaveDebounce    time.Duration
	UploadMaxSizeMB     int
	UploadMaxAttempts   int
	UploadRetryBackoff  time.Duration
}

// NewDocumentService constructs a DocumentService instance.
func NewDocumentService(documents repository.DocumentRepository, attachments repository.AttachmentRepository, storage workflow.BlobStorage, steps []workflow.StepDescriptor, cfg WorkflowConfig, validate *validator.Validate, logger zerolog.Logger) DocumentService {
	if len(steps) == 0 {
		steps = workflow.DefaultSteps()
	}

	return &documentService{
		documents:   documents,
		attachments: attachments,
		storage:     storage,
		sessions:    workflow.NewSessionRegistry(),
		steps:       steps,
		cfg:         cfg,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "document_service").Logger(),
	}
}

func (s *documentService) Create(ctx context.Context, ownerID uint, payload dto.DocumentCreateRequest) (dto.DocumentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.DocumentResponse{}, err
	}

	doc := models.Document{
		OwnerID: ownerID,
		Status:  models.StatusDraft,
		Fields:  map[string]interface{}{"title": strings.TrimSpace(payload.Title)},
	}

	if err := s.documents.Upsert(ctx, &doc); err != nil {
		return dto.DocumentResponse{}, err
	}

	s.logger.Info().Uint("document_id", doc.ID).Uint("owner_id", ownerID).Msg("draft created")

	return dto.NewDocumentResponse(doc), nil
}

func (s *documentService) Get(ctx context.Context, id uint, actor Actor) (dto.DocumentResponse, error) {
	// A live session is more current than the stored record.
	if session, ok := s.sessions.Get(id); ok {
		snapshot := session.Store.Snapshot()
		if err := s.authorizeRead(snapshot, actor); err != nil {
			return dto.DocumentResponse{}, err
		}
		return dto.NewDocumentResponse(snapshot), nil
	}

	doc, err := s.load(ctx, id)
	if err != nil {
		return dto.DocumentResponse{}, err
	}

	if err := s.authorizeRead(doc, actor); err != nil {
		return dto.DocumentResponse{}, err
	}

	return dto.NewDocumentResponse(doc), nil
}

func (s *documentService) List(ctx context.Context, actor Actor, filter dto.DocumentFilter) ([]dto.DocumentResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	repoFilter := repository.DocumentFilter{Status: filter.Status}
	if !actor.IsTeacher() {
		ownerID := actor.ID
		repoFilter.OwnerID = &ownerID
	}

	docs, err := s.documents.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}

	return dto.NewDocumentResponseSlice(docs), nil
}

func (s *documentService) Delete(ctx context.Context, id uint, actor Actor) error {
	doc, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if doc.OwnerID != actor.ID {
		return ErrNotOwner
	}

	if !doc.IsEditable() {
		return workflow.ErrDocumentLocked
	}

	s.sessions.Remove(id)

	return s.documents.Delete(ctx, id)
}

func (s *documentService) PatchFields(ctx context.Context, id uint, actor Actor, payload dto.FieldPatchRequest) (dto.DocumentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.DocumentResponse{}, err
	}

	session, err := s.session(ctx, id, actor)
	if err != nil {
		return dto.DocumentResponse{}, err
	}

	for field, value := range payload.Fields {
		if text, ok := value.(string); ok {
			value = s.sanitizer.Sanitize(text)
		}
		if err := session.Store.SetValue(field, value); err != nil {
			return dto.DocumentResponse{}, err
		}
	}

	session.NotifyChange()

	return dto.NewDocumentResponse(session.Store.Snapshot()), nil
}

func (s *documentService) AddLink(ctx context.Context, id uint, actor Actor, payload dto.ExternalLinkRequest) (dto.DocumentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.DocumentResponse{}, err
	}

	session, err := s.session(ctx, id, actor)
	if err != nil {
		return dto.DocumentResponse{}, err
	}

	if !session.Store.Snapshot().IsEditable() {
		return dto.DocumentResponse{}, workflow.ErrDocumentLocked
	}

	linkType := payload.Type
	if linkType == "" {
		linkType = models.LinkTypeOther
	}

	session.Store.ReplaceLinks(func(current []models.ExternalLink) []models.ExternalLink {
		return append(current, models.ExternalLink{
			DocumentID: id,
			URL:        payload.URL,
			Title:      s.sanitizer.Sanitize(payload.Title),
			Type:       linkType,
		})
	})

	session.NotifyChange()

	return dto.NewDocumentResponse(session.Store.Snapshot()), nil
}

func (s *documentService) RemoveLink(ctx context.Context, id, linkID uint, actor Actor) (dto.DocumentResponse, error) {
	session, err := s.session(ctx, id, actor)
	if err != nil {
		return dto.DocumentResponse{}, err
	}

	if !session.Store.Snapshot().IsEditable() {
		return dto.DocumentResponse{}, workflow.ErrDocumentLocked
	}

	session.Store.ReplaceLinks(func(current []models.ExternalLink) []models.ExternalLink {
		next := make([]models.ExternalLink, 0, len(current))
		for _, link := range current {
			if link.ID == linkID {
				continue
			}
			next = append(next, link)
		}
		return next
	})

	session.NotifyChange()

	return dto.NewDocumentResponse(session.Store.Snapshot()), nil
}

func (s *documentService) CheckStep(ctx context.Context, id uint, actor Actor, step string) (dto.NavigationCheckResponse, error) {
	session, err := s.session(ctx, id, actor)
	if err != nil {
		return dto.NavigationCheckResponse{}, err
	}

	snapshot := session.Store.Snapshot()
	allowed, missing := session.Navigator.CanEnter(step, snapshot)

	// The caller surfaces these per-field; they are never persisted.
	for field, label := range missing {
		session.Store.SetFieldError(field, label)
	}

	return dto.NavigationCheckResponse{Step: step, Allowed: allowed, Missing: missing}, nil
}

func (s *documentService) UploadAttachments(ctx context.Context, id uint, actor Actor, files []workflow.RawFile) (dto.UploadBatchResponse, error) {
	session, err := s.session(ctx, id, actor)
	if err != nil {
		return dto.UploadBatchResponse{}, err
	}

	if !session.Store.Snapshot().IsEditable() {
		return dto.UploadBatchResponse{}, workflow.ErrDocumentLocked
	}

	batch := session.Uploader.Upload(ctx, files)

	response := dto.UploadBatchResponse{}
	for _, att := range batch.Persisted {
		response.Persisted = append(response.Persisted, dto.NewAttachmentResponse(att))
	}
	for _, rejected := range batch.Rejected {
		response.Rejected = append(response.Rejected, dto.FileIssue{Name: rejected.Name, Reason: rejected.Reason})
	}
	for _, failed := range batch.Failed {
		response.Failed = append(response.Failed, dto.FileIssue{Name: failed.Name, Reason: failed.Reason})
	}

	return response, nil
}

func (s *documentService) DeleteAttachment(ctx context.Context, id, attachmentID uint, actor Actor) (dto.DocumentResponse, error) {
	session, err := s.session(ctx, id, actor)
	if err != nil {
		return dto.DocumentResponse{}, err
	}

	if !session.Store.Snapshot().IsEditable() {
		return dto.DocumentResponse{}, workflow.ErrDocumentLocked
	}

	var target models.Attachment
	for _, att := range session.Store.Snapshot().Attachments {
		if att.ID == attachmentID {
			target = att
			break
		}
	}

	if target.ID == 0 {
		return dto.DocumentResponse{}, ErrAttachmentNotFound
	}

	session.Uploader.Delete(ctx, target)
	session.NotifyChange()

	return dto.NewDocumentResponse(session.Store.Snapshot()), nil
}

func (s *documentService) Save(ctx context.Context, id uint, actor Actor) (dto.DocumentResponse, error) {
	session, err := s.session(ctx, id, actor)
	if err != nil {
		return dto.DocumentResponse{}, err
	}

	if err := session.Scheduler.Flush(ctx); err != nil {
		return dto.DocumentResponse{}, err
	}

	return dto.NewDocumentResponse(session.Store.Snapshot()), nil
}

func (s *documentService) CloseSession(id uint) {
	s.sessions.Remove(id)
}

// session returns the live editing session for a document, creating one from
// the stored record on first touch. Only the owner may edit.
func (s *documentService) session(ctx context.Context, id uint, actor Actor) (*workflow.Session, error) {
	if session, ok := s.sessions.Get(id); ok {
		if session.Store.Snapshot().OwnerID != actor.ID {
			return nil, ErrNotOwner
		}
		return session, nil
	}

	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if doc.OwnerID != actor.ID {
		return nil, ErrNotOwner
	}

	session := workflow.NewSession(doc, workflow.SessionConfig{
		Steps:       s.steps,
		Saver:       &draftSaver{documents: s.documents},
		Storage:     s.storage,
		Recorder:    s.attachments,
		MinInterval: s.cfg.AutosaveMinInterval,
		Debounce:    s.cfg.AutosaveDebounce,
		MaxSizeMB:   s.cfg.UploadMaxSizeMB,
		MaxAttempts: s.cfg.UploadMaxAttempts,
		Backoff:     s.cfg.UploadRetryBackoff,
	}, s.logger)

	s.sessions.Put(session)

	return session, nil
}

func (s *documentService) load(ctx context.Context, id uint) (models.Document, error) {
	doc, err := s.documents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Document{}, ErrDocumentNotFound
		}
		return models.Document{}, err
	}

	return doc, nil
}

func (s *documentService) authorizeRead(doc models.Document, actor Actor) error {
	if doc.OwnerID == actor.ID || actor.IsTeacher() {
		return nil
	}
	return ErrNotOwner
}

// draftSaver adapts the repository to the scheduler's DraftSaver contract.
// Only persisted attachments are written; optimistic entries stay local.
type draftSaver struct {
	documents repository.DocumentRepository
}

func (d *draftSaver) SaveDraft(ctx context.Context, doc models.Document) (models.Document, error) {
	persistable := doc
	persistable.Attachments = nil
	for _, att := range doc.Attachments {
		if att.ID != 0 {
			persistable.Attachments = append(persistable.Attachments, att)
		}
	}

	if err := d.documents.Upsert(ctx, &persistable); err != nil {
		return models.Document{}, err
	}

	return persistable, nil
}
