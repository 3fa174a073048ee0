package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/folio-go-api/internal/models"
)

// Session binds the store, navigator, scheduler and uploader for one document
// while its owner edits it. Sessions have an explicit lifecycle: created when
// editing starts, closed when it ends; closing cancels the pending debounce
// timer and marks in-flight save results discard-on-arrival.
type Session struct {
	DocumentID uint
	Store      *DocumentStore
	Navigator  *Navigator
	Scheduler  *Scheduler
	Uploader   *Uploader

	logger   zerolog.Logger
	debounce time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// SessionConfig carries the tunables for one editing session.
type SessionConfig struct {
	Steps       []StepDescriptor
	Saver       DraftSaver
	Storage     BlobStorage
	Recorder    AttachmentRecorder
	MinInterval time.Duration
	Debounce    time.Duration
	MaxSizeMB   int
	MaxAttempts int
	Backoff     time.Duration
}

// NewSession builds the full engine around a loaded draft.
func NewSession(doc models.Document, cfg SessionConfig, logger zerolog.Logger) *Session {
	if cfg.Debounce <= 0 {
		cfg.Debounce = time.Second
	}
	steps := cfg.Steps
	if len(steps) == 0 {
		steps = DefaultSteps()
	}

	store := NewDocumentStore(doc)
	navigator := NewNavigator(steps, store)
	scheduler := NewScheduler(cfg.Saver, store, cfg.MinInterval, logger)
	scheduler.SeedPersisted(store.Snapshot())
	uploader := NewUploader(cfg.Storage, cfg.Recorder, store, scheduler, cfg.MaxSizeMB, cfg.MaxAttempts, cfg.Backoff, logger)

	return &Session{
		DocumentID: doc.ID,
		Store:      store,
		Navigator:  navigator,
		Scheduler:  scheduler,
		Uploader:   uploader,
		logger:     logger.With().Str("component", "editing_session").Uint("document_id", doc.ID).Logger(),
		debounce:   cfg.Debounce,
	}
}

// NotifyChange restarts the debounce timer; the scheduler sees a candidate
// save one quiet period after the last edit.
func (s *Session) NotifyChange() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}

	s.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}
		s.Scheduler.Trigger(context.Background())
	})
}

// Close ends the session: the debounce timer is cancelled and the scheduler
// discards whatever in-flight results arrive afterwards. In-flight uploads
// finish in the background but their reconciliation targets a dead store.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.Scheduler.Close()
	s.logger.Debug().Msg("editing session closed")
}

// SessionRegistry tracks live editing sessions keyed by document id.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[uint]*Session
}

// NewSessionRegistry constructs an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: map[uint]*Session{}}
}

// Get returns the live session for a document, if any.
func (r *SessionRegistry) Get(documentID uint) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[documentID]
	return session, ok
}

// Put registers a session, closing any previous one for the same document.
func (r *SessionRegistry) Put(session *Session) {
	r.mu.Lock()
	previous := r.sessions[session.DocumentID]
	r.sessions[session.DocumentID] = session
	r.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
}

// Remove closes and forgets the session for a document.
func (r *SessionRegistry) Remove(documentID uint) {
	r.mu.Lock()
	session := r.sessions[documentID]
	delete(r.sessions, documentID)
	r.mu.Unlock()

	if session != nil {
		session.Close()
	}
}
