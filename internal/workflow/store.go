package workflow

import (
	"errors"
	"sync"

	"gorm.io/datatypes"

	"github.com/noah-isme/folio-go-api/internal/models"
)

// ErrDocumentLocked indicates a mutation was attempted on a document whose
// status no longer permits editing.
var ErrDocumentLocked = errors.New("document is not editable in its current status")

// DocumentStore owns the in-memory draft for the lifetime of one editing
// session. It tracks per-field dirtiness and exposes snapshots for the
// autosave scheduler; the persistence gateway owns the durable copy.
type DocumentStore struct {
	mu          sync.Mutex
	doc         models.Document
	dirtyFields map[string]struct{}
	fieldErrors map[string]string
	listeners   []func(field string)
}

// NewDocumentStore wraps the given draft in a store.
func NewDocumentStore(doc models.Document) *DocumentStore {
	if doc.Fields == nil {
		doc.Fields = datatypes.JSONMap{}
	}

	return &DocumentStore{
		doc:         doc,
		dirtyFields: map[string]struct{}{},
		fieldErrors: map[string]string{},
	}
}

// OnChange registers a listener invoked after every successful SetValue.
// The step navigator uses this to invalidate its completeness memo.
func (s *DocumentStore) OnChange(fn func(field string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// GetValue returns the current value of the named field.
func (s *DocumentStore) GetValue(field string) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Fields[field]
}

// SetValue mutates one field, marks it dirty and clears any prior validation
// error on it. Mutation is rejected once the document has been submitted or
// approved; only a lifecycle transition may edit it then.
func (s *DocumentStore) SetValue(field string, value interface{}) error {
	s.mu.Lock()

	if !s.doc.IsEditable() {
		s.mu.Unlock()
		return ErrDocumentLocked
	}

	if value == nil {
		// Text fields represent absence as the empty string, never null.
		value = ""
	}

	s.doc.Fields[field] = value
	s.dirtyFields[field] = struct{}{}
	delete(s.fieldErrors, field)
	listeners := s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(field)
	}

	return nil
}

// SetFieldError records a validation message against a field. It is cleared
// by the next SetValue on the same field.
func (s *DocumentStore) SetFieldError(field, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fieldErrors[field] = message
}

// FieldErrors returns a copy of the current validation messages.
func (s *DocumentStore) FieldErrors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.fieldErrors))
	for k, v := range s.fieldErrors {
		out[k] = v
	}
	return out
}

// Snapshot returns a copy of the draft safe to hand to other goroutines.
func (s *DocumentStore) Snapshot() models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneDocument(s.doc)
}

// Reset replaces the draft and clears all dirtiness, used after the initial
// load and after a confirmed save.
func (s *DocumentStore) Reset(doc models.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.Fields == nil {
		doc.Fields = datatypes.JSONMap{}
	}
	s.doc = doc
	s.dirtyFields = map[string]struct{}{}
}

// Dirty reports whether any field changed since the last Reset or ClearDirty.
func (s *DocumentStore) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirtyFields) > 0
}

// ClearDirty forgets accumulated dirtiness after a confirmed save.
func (s *DocumentStore) ClearDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirtyFields = map[string]struct{}{}
}

// AssignID records the server-assigned identifier after the first persist.
func (s *DocumentStore) AssignID(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.ID == 0 {
		s.doc.ID = id
	}
}

// ReplaceAttachments recomputes the attachment list from the current one in a
// single swap. Reconciliation callbacks must use this rather than a captured
// copy so two uploads finishing nearly simultaneously cannot lose updates.
func (s *DocumentStore) ReplaceAttachments(compute func(current []models.Attachment) []models.Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := make([]models.Attachment, len(s.doc.Attachments))
	copy(current, s.doc.Attachments)
	s.doc.Attachments = compute(current)
}

// ReplaceLinks swaps the external link list wholesale.
func (s *DocumentStore) ReplaceLinks(compute func(current []models.ExternalLink) []models.ExternalLink) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := make([]models.ExternalLink, len(s.doc.ExternalLinks))
	copy(current, s.doc.ExternalLinks)
	s.doc.ExternalLinks = compute(current)
}

func cloneDocument(doc models.Document) models.Document {
	out := doc

	out.Fields = make(datatypes.JSONMap, len(doc.Fields))
	for k, v := range doc.Fields {
		out.Fields[k] = v
	}

	out.Attachments = make([]models.Attachment, len(doc.Attachments))
	copy(out.Attachments, doc.Attachments)

	out.ExternalLinks = make([]models.ExternalLink, len(doc.ExternalLinks))
	copy(out.ExternalLinks, doc.ExternalLinks)

	out.Feedback = make([]models.FeedbackEntry, len(doc.Feedback))
	copy(out.Feedback, doc.Feedback)

	return out
}
