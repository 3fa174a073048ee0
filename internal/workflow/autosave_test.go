package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/folio-go-api/internal/models"
)

// gatedSaver blocks each SaveDraft on a per-title gate so tests control the
// completion order of concurrent saves.
type gatedSaver struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	calls []string
	done  int
}

func newGatedSaver() *gatedSaver {
	return &gatedSaver{gates: map[string]chan struct{}{}}
}

func (s *gatedSaver) gate(title string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.gates[title] = ch
	return ch
}

func (s *gatedSaver) SaveDraft(_ context.Context, doc models.Document) (models.Document, error) {
	title := doc.StringField("title")

	s.mu.Lock()
	gate := s.gates[title]
	s.calls = append(s.calls, title)
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}

	if doc.ID == 0 {
		doc.ID = 42
	}

	s.mu.Lock()
	s.done++
	s.mu.Unlock()

	return doc, nil
}

func (s *gatedSaver) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *gatedSaver) doneCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

type failingSaver struct {
	err error
}

func (s *failingSaver) SaveDraft(_ context.Context, doc models.Document) (models.Document, error) {
	return models.Document{}, s.err
}

func draftStore() *DocumentStore {
	return NewDocumentStore(models.Document{
		ID:     1,
		Status: models.StatusDraft,
		Fields: datatypes.JSONMap{},
	})
}

func TestSchedulerSkipsUnchangedSnapshot(t *testing.T) {
	saver := newGatedSaver()
	store := draftStore()
	sched := NewScheduler(saver, store, time.Second, testLogger())
	sched.SeedPersisted(store.Snapshot())

	require.False(t, sched.Trigger(context.Background()))
	require.Zero(t, saver.callCount())
}

func TestSchedulerSavesChangedSnapshot(t *testing.T) {
	saver := newGatedSaver()
	store := draftStore()
	sched := NewScheduler(saver, store, time.Second, testLogger())
	sched.SeedPersisted(store.Snapshot())

	require.NoError(t, store.SetValue("title", "draft one"))
	require.True(t, sched.Trigger(context.Background()))

	require.Eventually(t, func() bool { return !store.Dirty() }, time.Second, 5*time.Millisecond)

	// Saved content is now the persisted baseline.
	require.False(t, sched.Trigger(context.Background()))
	require.Equal(t, 1, saver.callCount())
}

func TestSchedulerDiscardsStaleGeneration(t *testing.T) {
	saver := newGatedSaver()
	store := draftStore()
	sched := NewScheduler(saver, store, time.Second, testLogger())
	sched.SeedPersisted(store.Snapshot())

	ctx := context.Background()
	slow := saver.gate("slow")
	fast := saver.gate("fast")

	require.NoError(t, store.SetValue("title", "slow"))
	require.True(t, sched.Trigger(ctx))
	require.Eventually(t, func() bool { return saver.callCount() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, store.SetValue("title", "fast"))
	require.True(t, sched.ForceSave(ctx))
	require.Eventually(t, func() bool { return saver.callCount() == 2 }, time.Second, time.Millisecond)

	// The newer save completes first and becomes the baseline.
	close(fast)
	require.Eventually(t, func() bool { return !store.Dirty() }, time.Second, time.Millisecond)

	// The older save arrives late; its result must be discarded.
	close(slow)
	require.Eventually(t, func() bool { return saver.doneCount() == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	require.False(t, store.Dirty())
	require.Equal(t, "fast", store.GetValue("title"))
	require.False(t, sched.Trigger(ctx), "current content should already be persisted")
}

func TestSchedulerFloorInterval(t *testing.T) {
	saver := newGatedSaver()
	store := draftStore()
	sched := NewScheduler(saver, store, 5*time.Second, testLogger())
	sched.SeedPersisted(store.Snapshot())

	current := time.Now()
	sched.now = func() time.Time { return current }

	ctx := context.Background()

	require.NoError(t, store.SetValue("title", "first"))
	require.NoError(t, sched.Flush(ctx))
	require.Equal(t, 1, saver.callCount())

	// A second change right away is deferred by the floor interval.
	require.NoError(t, store.SetValue("title", "second"))
	require.False(t, sched.Trigger(ctx))

	// But a forced save goes through regardless.
	require.True(t, sched.ForceSave(ctx))
	require.Eventually(t, func() bool { return saver.doneCount() == 2 }, time.Second, time.Millisecond)

	// Once the floor has elapsed, ordinary triggers run again.
	current = current.Add(6 * time.Second)
	require.NoError(t, store.SetValue("title", "third"))
	require.True(t, sched.Trigger(ctx))
	require.Eventually(t, func() bool { return saver.doneCount() == 3 }, time.Second, time.Millisecond)
}

func TestSchedulerSkipsWhileSaveInFlight(t *testing.T) {
	saver := newGatedSaver()
	store := draftStore()
	sched := NewScheduler(saver, store, time.Second, testLogger())
	sched.SeedPersisted(store.Snapshot())

	gate := saver.gate("busy")
	require.NoError(t, store.SetValue("title", "busy"))
	require.True(t, sched.Trigger(context.Background()))
	require.Eventually(t, func() bool { return saver.callCount() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, store.SetValue("subject", "queued"))
	require.False(t, sched.Trigger(context.Background()))

	close(gate)
}

func TestFailedSaveKeepsDraftDirty(t *testing.T) {
	saver := &failingSaver{err: errors.New("gateway unavailable")}
	store := draftStore()
	sched := NewScheduler(saver, store, time.Second, testLogger())
	sched.SeedPersisted(store.Snapshot())

	failures := make(chan error, 1)
	sched.OnFailure(func(err error) { failures <- err })

	require.NoError(t, store.SetValue("title", "doomed"))
	require.True(t, sched.Trigger(context.Background()))

	select {
	case err := <-failures:
		require.ErrorContains(t, err, "gateway unavailable")
	case <-time.After(time.Second):
		t.Fatal("failure hook never fired")
	}

	require.True(t, store.Dirty(), "failed save must keep the dirty flag for retry")
}

func TestFlushReturnsSaveError(t *testing.T) {
	saver := &failingSaver{err: errors.New("gateway unavailable")}
	store := draftStore()
	sched := NewScheduler(saver, store, time.Second, testLogger())
	sched.SeedPersisted(store.Snapshot())

	require.NoError(t, store.SetValue("title", "doomed"))
	require.Error(t, sched.Flush(context.Background()))
	require.True(t, store.Dirty())
}

func TestFlushAssignsServerID(t *testing.T) {
	saver := newGatedSaver()
	store := NewDocumentStore(models.Document{Status: models.StatusDraft, Fields: datatypes.JSONMap{}})
	sched := NewScheduler(saver, store, time.Second, testLogger())
	sched.SeedPersisted(store.Snapshot())

	require.NoError(t, store.SetValue("title", "new draft"))
	require.NoError(t, sched.Flush(context.Background()))

	require.Equal(t, uint(42), store.Snapshot().ID)
	require.False(t, store.Dirty())
}

func TestClosedSchedulerRefusesTriggers(t *testing.T) {
	saver := newGatedSaver()
	store := draftStore()
	sched := NewScheduler(saver, store, time.Second, testLogger())
	sched.SeedPersisted(store.Snapshot())
	sched.Close()

	require.NoError(t, store.SetValue("title", "orphan"))
	require.False(t, sched.Trigger(context.Background()))
	require.False(t, sched.ForceSave(context.Background()))
	require.NoError(t, sched.Flush(context.Background()))
	require.Zero(t, saver.callCount())
}
