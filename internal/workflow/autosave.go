package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/folio-go-api/internal/models"
	"github.com/noah-isme/folio-go-api/internal/observability"
)

// DraftSaver persists a draft snapshot and returns the authoritative stored
// record, including the server-assigned id on first create.
type DraftSaver interface {
	SaveDraft(ctx context.Context, doc models.Document) (models.Document, error)
}

// Scheduler persists the draft automatically: never faster than the floor
// interval, never with two overlapping writes racing, and never for unchanged
// content. Each save carries a generation token; only the newest generation
// may apply its result, so a slow older save can never overwrite state derived
// from a faster newer one.
type Scheduler struct {
	saver       DraftSaver
	store       *DocumentStore
	logger      zerolog.Logger
	minInterval time.Duration
	now         func() time.Time

	mu              sync.Mutex
	generation      uint64
	persistedHash   string
	lastCompletedAt time.Time
	saving          bool
	closed          bool
	onFailure       func(err error)
}

// NewScheduler constructs a scheduler bound to one editing session's store.
func NewScheduler(saver DraftSaver, store *DocumentStore, minInterval time.Duration, logger zerolog.Logger) *Scheduler {
	if minInterval <= 0 {
		minInterval = 5 * time.Second
	}

	return &Scheduler{
		saver:       saver,
		store:       store,
		logger:      logger.With().Str("component", "autosave_scheduler").Logger(),
		minInterval: minInterval,
		now:         time.Now,
	}
}

// OnFailure registers a non-fatal notification hook for failed saves.
func (s *Scheduler) OnFailure(fn func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFailure = fn
}

// SeedPersisted records the hash of the snapshot as currently durable, used
// right after the initial load so an untouched draft never saves.
func (s *Scheduler) SeedPersisted(doc models.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistedHash = snapshotHash(doc)
}

// Trigger is a candidate save. It returns true when a write was started.
// Unchanged content and floor-interval deferrals are silent no-ops; the next
// debounced edit retries a deferred request automatically.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	return s.schedule(ctx, false)
}

// ForceSave starts a write immediately, bypassing the floor interval. It is
// used right after a successful upload so the attachment list is durable
// before the user can navigate away.
func (s *Scheduler) ForceSave(ctx context.Context) bool {
	return s.schedule(ctx, true)
}

func (s *Scheduler) schedule(ctx context.Context, force bool) bool {
	snapshot := s.store.Snapshot()
	hash := snapshotHash(snapshot)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}

	if hash == s.persistedHash {
		s.mu.Unlock()
		observability.AutosaveSkipped().WithLabelValues("unchanged").Inc()
		return false
	}

	if !force {
		if s.saving {
			s.mu.Unlock()
			observability.AutosaveSkipped().WithLabelValues("in_flight").Inc()
			return false
		}
		if elapsed := s.now().Sub(s.lastCompletedAt); !s.lastCompletedAt.IsZero() && elapsed < s.minInterval {
			s.mu.Unlock()
			observability.AutosaveSkipped().WithLabelValues("floor_interval").Inc()
			return false
		}
	}

	s.generation++
	myGeneration := s.generation
	s.saving = true
	s.mu.Unlock()

	go s.save(ctx, snapshot, hash, myGeneration)

	return true
}

func (s *Scheduler) save(ctx context.Context, snapshot models.Document, hash string, myGeneration uint64) {
	started := s.now()
	saved, err := s.saver.SaveDraft(ctx, snapshot)
	observability.AutosaveLatency().Observe(s.now().Sub(started).Seconds())

	s.mu.Lock()
	stale := myGeneration != s.generation || s.closed
	if myGeneration == s.generation {
		s.saving = false
	}
	if err == nil && !stale {
		s.persistedHash = hash
		s.lastCompletedAt = s.now()
	}
	onFailure := s.onFailure
	s.mu.Unlock()

	if err != nil {
		// Dirty flag stays set; the next debounced trigger retries.
		observability.AutosaveTotal().WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Uint64("generation", myGeneration).Msg("draft autosave failed")
		if onFailure != nil {
			onFailure(err)
		}
		return
	}

	if stale {
		// A newer generation started meanwhile; its result wins.
		observability.AutosaveTotal().WithLabelValues("stale").Inc()
		s.logger.Debug().Uint64("generation", myGeneration).Msg("discarding stale autosave result")
		return
	}

	s.store.AssignID(saved.ID)
	s.store.ClearDirty()
	observability.AutosaveTotal().WithLabelValues("ok").Inc()
	s.logger.Debug().Uint("document_id", saved.ID).Uint64("generation", myGeneration).Msg("draft autosaved")
}

// Flush performs a synchronous save of the current snapshot when dirty,
// bypassing the floor interval. Used on explicit save requests.
func (s *Scheduler) Flush(ctx context.Context) error {
	snapshot := s.store.Snapshot()
	hash := snapshotHash(snapshot)

	s.mu.Lock()
	if s.closed || hash == s.persistedHash {
		s.mu.Unlock()
		return nil
	}
	s.generation++
	myGeneration := s.generation
	s.mu.Unlock()

	started := s.now()
	saved, err := s.saver.SaveDraft(ctx, snapshot)
	observability.AutosaveLatency().Observe(s.now().Sub(started).Seconds())
	if err != nil {
		observability.AutosaveTotal().WithLabelValues("error").Inc()
		return err
	}

	s.mu.Lock()
	stale := myGeneration != s.generation || s.closed
	if !stale {
		s.persistedHash = hash
		s.lastCompletedAt = s.now()
	}
	s.mu.Unlock()

	if stale {
		observability.AutosaveTotal().WithLabelValues("stale").Inc()
		return nil
	}

	s.store.AssignID(saved.ID)
	s.store.ClearDirty()
	observability.AutosaveTotal().WithLabelValues("ok").Inc()

	return nil
}

// Close marks any in-flight save's eventual result as discard-on-arrival and
// refuses new triggers. Called when the editing session ends.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// snapshotHash produces a stable digest of the persistable parts of a draft.
// Timestamps are excluded so a round-trip through the gateway does not make
// an unchanged draft look dirty.
func snapshotHash(doc models.Document) string {
	type hashedAttachment struct {
		ID         uint   `json:"id"`
		URL        string `json:"url"`
		Name       string `json:"name"`
		StorageKey string `json:"storage_key"`
		Process    bool   `json:"process"`
	}

	type hashedLink struct {
		URL   string `json:"url"`
		Title string `json:"title"`
		Type  string `json:"type"`
	}

	attachments := make([]hashedAttachment, 0, len(doc.Attachments))
	for _, a := range doc.Attachments {
		attachments = append(attachments, hashedAttachment{
			ID:         a.ID,
			URL:        a.URL,
			Name:       a.Name,
			StorageKey: a.StorageKey,
			Process:    a.IsProcessDocumentation,
		})
	}

	links := make([]hashedLink, 0, len(doc.ExternalLinks))
	for _, l := range doc.ExternalLinks {
		links = append(links, hashedLink{URL: l.URL, Title: l.Title, Type: l.Type})
	}

	payload := struct {
		ID          uint                   `json:"id"`
		OwnerID     uint                   `json:"owner_id"`
		Status      string                 `json:"status"`
		Revision    int                    `json:"revision"`
		Fields      map[string]interface{} `json:"fields"`
		Attachments []hashedAttachment     `json:"attachments"`
		Links       []hashedLink           `json:"links"`
	}{
		ID:          doc.ID,
		OwnerID:     doc.OwnerID,
		Status:      doc.Status,
		Revision:    doc.Revision,
		Fields:      doc.Fields,
		Attachments: attachments,
		Links:       links,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return ""
	}

	digest := sha256.Sum256(raw)
	return hex.EncodeToString(digest[:])
}
