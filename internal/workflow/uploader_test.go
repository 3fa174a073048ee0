package workflow

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/folio-go-api/internal/models"
)

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

type blobStub struct {
	mu       sync.Mutex
	failures map[string]int
	attempts map[string]int
	removed  []string
}

func newBlobStub() *blobStub {
	return &blobStub{failures: map[string]int{}, attempts: map[string]int{}}
}

func (b *blobStub) Upload(_ context.Context, name string, _ io.Reader) (BlobUploadResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attempts[name]++
	if b.failures[name] > 0 {
		b.failures[name]--
		return BlobUploadResult{}, errors.New("storage unavailable")
	}

	return BlobUploadResult{
		URL:        "https://cdn.example.com/" + name,
		StorageKey: "folio/" + name,
	}, nil
}

func (b *blobStub) Remove(_ context.Context, storageKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removed = append(b.removed, storageKey)
	return nil
}

func (b *blobStub) attemptCount(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts[name]
}

func (b *blobStub) removedKeys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.removed...)
}

type recorderStub struct {
	mu      sync.Mutex
	nextID  uint
	created []models.Attachment
	deleted []uint
}

func (r *recorderStub) CreateAttachment(_ context.Context, attachment *models.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	attachment.ID = r.nextID
	r.created = append(r.created, *attachment)
	return nil
}

func (r *recorderStub) DeleteAttachment(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *recorderStub) createdCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.created)
}

func (r *recorderStub) deletedIDs() []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint(nil), r.deleted...)
}

type forceSaverStub struct {
	mu    sync.Mutex
	calls int
}

func (f *forceSaverStub) ForceSave(_ context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return true
}

func (f *forceSaverStub) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newUploaderFixture(t *testing.T, maxSizeMB int) (*Uploader, *blobStub, *recorderStub, *forceSaverStub, *DocumentStore) {
	t.Helper()
	storage := newBlobStub()
	recorder := &recorderStub{}
	saver := &forceSaverStub{}
	store := NewDocumentStore(models.Document{ID: 1, OwnerID: 2, Status: models.StatusDraft})
	uploader := NewUploader(storage, recorder, store, saver, maxSizeMB, 3, time.Millisecond, testLogger())
	return uploader, storage, recorder, saver, store
}

func TestUploadBatchIsolatesOversizedFile(t *testing.T) {
	uploader, _, recorder, saver, store := newUploaderFixture(t, 1)

	result := uploader.Upload(context.Background(), []RawFile{
		{Name: "sketch.png", Content: pngMagic},
		{Name: "raw-footage.png", Content: bytes.Repeat(pngMagic, 300*1024)},
	})

	require.Len(t, result.Persisted, 1)
	require.Equal(t, "sketch.png", result.Persisted[0].Name)
	require.Len(t, result.Rejected, 1)
	require.Equal(t, "raw-footage.png", result.Rejected[0].Name)
	require.Empty(t, result.Failed)

	attachments := store.Snapshot().Attachments
	require.Len(t, attachments, 1)
	require.True(t, attachments[0].IsPersisted())
	require.Empty(t, attachments[0].TempID)

	require.Equal(t, 1, recorder.createdCount())
	require.Equal(t, 1, saver.count(), "a partially successful batch still forces a save")
}

func TestUploadRejectsUnknownFileType(t *testing.T) {
	uploader, storage, _, saver, store := newUploaderFixture(t, 5)

	result := uploader.Upload(context.Background(), []RawFile{
		{Name: "tool.bin", Content: []byte{0x00, 0x01, 0x02, 0x03, 0xFF, 0xFE}},
	})

	require.Empty(t, result.Persisted)
	require.Len(t, result.Rejected, 1)
	require.ErrorContains(t, errors.New(result.Rejected[0].Reason), "file type not allowed")

	require.Zero(t, storage.attemptCount("tool.bin"), "rejected files never reach storage")
	require.Empty(t, store.Snapshot().Attachments)
	require.Zero(t, saver.count())
}

func TestUploadRetriesTransientFailure(t *testing.T) {
	uploader, storage, recorder, saver, store := newUploaderFixture(t, 5)
	storage.failures["sketch.png"] = 2

	result := uploader.Upload(context.Background(), []RawFile{
		{Name: "sketch.png", Content: pngMagic},
	})

	require.Len(t, result.Persisted, 1)
	require.Empty(t, result.Failed)
	require.Equal(t, 3, storage.attemptCount("sketch.png"))
	require.Equal(t, 1, recorder.createdCount(), "retries must not duplicate records")
	require.Equal(t, 1, saver.count())

	attachments := store.Snapshot().Attachments
	require.Len(t, attachments, 1)
	require.Equal(t, "https://cdn.example.com/sketch.png", attachments[0].URL)
	require.Equal(t, models.AttachmentStatePersisted, attachments[0].State)
}

func TestUploadExhaustedRetriesRemovesOptimisticEntry(t *testing.T) {
	uploader, storage, recorder, saver, store := newUploaderFixture(t, 5)
	storage.failures["sketch.png"] = 10

	result := uploader.Upload(context.Background(), []RawFile{
		{Name: "sketch.png", Content: pngMagic},
	})

	require.Empty(t, result.Persisted)
	require.Len(t, result.Failed, 1)
	require.Equal(t, 3, storage.attemptCount("sketch.png"))
	require.Zero(t, recorder.createdCount())
	require.Zero(t, saver.count(), "a fully failed batch must not force a save")
	require.Empty(t, store.Snapshot().Attachments, "the optimistic entry must be rolled back")
}

func TestUploadConcurrentBatchKeepsEveryConfirmation(t *testing.T) {
	uploader, _, recorder, _, store := newUploaderFixture(t, 5)

	files := []RawFile{
		{Name: "one.png", Content: pngMagic},
		{Name: "two.png", Content: pngMagic},
		{Name: "three.png", Content: pngMagic},
	}

	result := uploader.Upload(context.Background(), files)

	require.Len(t, result.Persisted, 3)
	require.Equal(t, 3, recorder.createdCount())

	attachments := store.Snapshot().Attachments
	require.Len(t, attachments, 3)
	for _, att := range attachments {
		require.True(t, att.IsPersisted())
		require.NotZero(t, att.ID)
	}
}

func TestDeleteRemovesListEntryBeforeStorageCleanup(t *testing.T) {
	uploader, storage, recorder, _, store := newUploaderFixture(t, 5)

	target := models.Attachment{
		ID:         9,
		Name:       "sketch.png",
		StorageKey: "folio/sketch.png",
		State:      models.AttachmentStatePersisted,
	}
	store.ReplaceAttachments(func(current []models.Attachment) []models.Attachment {
		return append(current, target)
	})

	uploader.Delete(context.Background(), target)

	require.Empty(t, store.Snapshot().Attachments, "the list entry must disappear immediately")

	require.Eventually(t, func() bool {
		return len(recorder.deletedIDs()) == 1 && len(storage.removedKeys()) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []uint{9}, recorder.deletedIDs())
	require.Equal(t, []string{"folio/sketch.png"}, storage.removedKeys())
}

func TestDeletePendingUploadByTempID(t *testing.T) {
	uploader, _, _, _, store := newUploaderFixture(t, 5)

	store.ReplaceAttachments(func(current []models.Attachment) []models.Attachment {
		return append(current,
			models.Attachment{TempID: "pending", State: models.AttachmentStateUploading},
			models.Attachment{ID: 4, State: models.AttachmentStatePersisted},
		)
	})

	uploader.Delete(context.Background(), models.Attachment{TempID: "pending"})

	attachments := store.Snapshot().Attachments
	require.Len(t, attachments, 1)
	require.Equal(t, uint(4), attachments[0].ID)
}
