package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/folio-go-api/internal/models"
)

type countingSaver struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSaver) SaveDraft(_ context.Context, doc models.Document) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return doc, nil
}

func (s *countingSaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestSession(saver DraftSaver, debounce time.Duration) *Session {
	return NewSession(models.Document{
		ID:     1,
		Status: models.StatusDraft,
		Fields: datatypes.JSONMap{},
	}, SessionConfig{
		Saver:    saver,
		Debounce: debounce,
	}, testLogger())
}

func TestSessionDebouncedAutosave(t *testing.T) {
	saver := &countingSaver{}
	session := newTestSession(saver, 5*time.Millisecond)
	defer session.Close()

	require.NoError(t, session.Store.SetValue("title", "draft"))
	session.NotifyChange()

	require.Eventually(t, func() bool { return saver.count() == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return !session.Store.Dirty() }, time.Second, time.Millisecond)
}

func TestSessionDebounceCoalescesRapidEdits(t *testing.T) {
	saver := &countingSaver{}
	session := newTestSession(saver, 20*time.Millisecond)
	defer session.Close()

	for _, value := range []string{"d", "dr", "dra", "draft"} {
		require.NoError(t, session.Store.SetValue("title", value))
		session.NotifyChange()
	}

	require.Eventually(t, func() bool { return saver.count() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, saver.count(), "rapid edits should collapse into one save")
}

func TestSessionCloseCancelsPendingDebounce(t *testing.T) {
	saver := &countingSaver{}
	session := newTestSession(saver, 10*time.Millisecond)

	require.NoError(t, session.Store.SetValue("title", "abandoned"))
	session.NotifyChange()
	session.Close()

	time.Sleep(40 * time.Millisecond)
	require.Zero(t, saver.count())
}

func TestSessionUntouchedDraftNeverSaves(t *testing.T) {
	saver := &countingSaver{}
	session := newTestSession(saver, 5*time.Millisecond)
	defer session.Close()

	// A trigger without edits matches the persisted baseline and is skipped.
	require.False(t, session.Scheduler.Trigger(context.Background()))
	require.Zero(t, saver.count())
}

func TestRegistryPutClosesPreviousSession(t *testing.T) {
	saver := &countingSaver{}
	registry := NewSessionRegistry()

	first := newTestSession(saver, time.Minute)
	second := newTestSession(saver, time.Minute)

	registry.Put(first)
	registry.Put(second)

	require.NoError(t, first.Store.SetValue("title", "stale"))
	require.False(t, first.Scheduler.Trigger(context.Background()), "replaced session must be closed")

	current, ok := registry.Get(1)
	require.True(t, ok)
	require.Same(t, second, current)

	registry.Remove(1)
	_, ok = registry.Get(1)
	require.False(t, ok)
	require.NoError(t, second.Store.SetValue("title", "gone"))
	require.False(t, second.Scheduler.Trigger(context.Background()))
}
