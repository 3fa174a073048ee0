package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/folio-go-api/internal/models"
	"github.com/noah-isme/folio-go-api/internal/observability"
)

var (
	// ErrFileTooLarge indicates the file exceeds the configured size ceiling.
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrFileTypeNotAllowed indicates the detected MIME type is outside the allow-list.
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
)

// BlobUploadResult is the confirmation returned by blob storage.
type BlobUploadResult struct {
	URL        string
	StorageKey string
}

// BlobStorage abstracts the binary attachment store.
type BlobStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (BlobUploadResult, error)
	Remove(ctx context.Context, storageKey string) error
}

// AttachmentRecorder persists confirmed attachment records.
type AttachmentRecorder interface {
	CreateAttachment(ctx context.Context, attachment *models.Attachment) error
	DeleteAttachment(ctx context.Context, id uint) error
}

// ForceSaver triggers an immediate draft persist after a successful batch.
type ForceSaver interface {
	ForceSave(ctx context.Context) bool
}

// RawFile is one file handed to the orchestrator by the transport layer.
type RawFile struct {
	Name                   string
	Content                []byte
	IsProcessDocumentation bool
}

// RejectedFile reports one file that failed validation or exhausted retries.
type RejectedFile struct {
	Name   string
	Reason string
}

// BatchResult aggregates the outcome of one upload batch. A bad file never
// blocks its siblings, so all three lists may be populated at once.
type BatchResult struct {
	Persisted []models.Attachment
	Rejected  []RejectedFile
	Failed    []RejectedFile
}

// Uploader validates, uploads, retries and reconciles a batch of attachments
// for one editing session, keeping the store's file list consistent with
// upload state throughout.
type Uploader struct {
	storage     BlobStorage
	recorder    AttachmentRecorder
	store       *DocumentStore
	saver       ForceSaver
	logger      zerolog.Logger
	maxSize     int64
	maxAttempts int
	backoff     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewUploader constructs the orchestrator.
func NewUploader(storage BlobStorage, recorder AttachmentRecorder, store *DocumentStore, saver ForceSaver, maxSizeMB, maxAttempts int, backoff time.Duration, logger zerolog.Logger) *Uploader {
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = time.Second
	}

	return &Uploader{
		storage:     storage,
		recorder:    recorder,
		store:       store,
		saver:       saver,
		logger:      logger.With().Str("component", "upload_orchestrator").Logger(),
		maxSize:     int64(maxSizeMB) * 1024 * 1024,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		sleep:       sleepContext,
	}
}

// Upload runs one batch. Files failing pre-validation are reported in
// Rejected without any network traffic; accepted files upload concurrently
// with bounded retries, and each success is reconciled into the store's
// attachment list before the batch triggers a forced autosave.
func (u *Uploader) Upload(ctx context.Context, files []RawFile) BatchResult {
	result := BatchResult{}

	type accepted struct {
		file   RawFile
		tempID string
		mime   string
	}

	var queue []accepted
	for _, file := range files {
		mime, err := u.validate(file)
		if err != nil {
			reason := "type"
			if errors.Is(err, ErrFileTooLarge) {
				reason = "size"
			}
			observability.UploadRejected().WithLabelValues(reason).Inc()
			result.Rejected = append(result.Rejected, RejectedFile{Name: file.Name, Reason: err.Error()})
			continue
		}
		queue = append(queue, accepted{file: file, tempID: uuid.NewString(), mime: mime})
	}

	if len(queue) == 0 {
		return result
	}

	snapshot := u.store.Snapshot()

	// Optimistic insertion: the list reflects pending uploads immediately.
	u.store.ReplaceAttachments(func(current []models.Attachment) []models.Attachment {
		for _, item := range queue {
			current = append(current, models.Attachment{
				DocumentID:             snapshot.ID,
				OwnerID:                snapshot.OwnerID,
				Name:                   item.file.Name,
				MimeType:               item.mime,
				SizeBytes:              int64(len(item.file.Content)),
				IsProcessDocumentation: item.file.IsProcessDocumentation,
				State:                  models.AttachmentStateUploading,
				TempID:                 item.tempID,
			})
		}
		return current
	})

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		persisted []models.Attachment
		failed    []RejectedFile
	)

	for _, item := range queue {
		wg.Add(1)
		go func(item accepted) {
			defer wg.Done()

			attachment, err := u.uploadOne(ctx, snapshot, item.file, item.tempID, item.mime)
			if err != nil {
				u.removeTemp(item.tempID)
				observability.UploadTotal().WithLabelValues("failed").Inc()
				u.logger.Warn().Err(err).Str("file", item.file.Name).Msg("attachment upload exhausted retries")
				mu.Lock()
				failed = append(failed, RejectedFile{Name: item.file.Name, Reason: err.Error()})
				mu.Unlock()
				return
			}

			observability.UploadTotal().WithLabelValues("ok").Inc()
			mu.Lock()
			persisted = append(persisted, attachment)
			mu.Unlock()
		}(item)
	}

	wg.Wait()

	result.Persisted = persisted
	result.Failed = failed

	if len(persisted) > 0 && u.saver != nil {
		// The attachment list must survive a reload even if the user does
		// nothing else, so this bypasses the autosave floor interval.
		u.saver.ForceSave(ctx)
	}

	return result
}

func (u *Uploader) uploadOne(ctx context.Context, doc models.Document, file RawFile, tempID, mime string) (models.Attachment, error) {
	started := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(started).Seconds())
	}()

	var lastErr error
	for attempt := 1; attempt <= u.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := u.sleep(ctx, u.backoff); err != nil {
				return models.Attachment{}, err
			}
		}

		blob, err := u.storage.Upload(ctx, file.Name, bytes.NewReader(file.Content))
		if err != nil {
			lastErr = err
			u.logger.Debug().Err(err).Str("file", file.Name).Int("attempt", attempt).Msg("upload attempt failed")
			continue
		}

		attachment := models.Attachment{
			DocumentID:             doc.ID,
			OwnerID:                doc.OwnerID,
			URL:                    blob.URL,
			StorageKey:             blob.StorageKey,
			Name:                   file.Name,
			MimeType:               mime,
			SizeBytes:              int64(len(file.Content)),
			IsProcessDocumentation: file.IsProcessDocumentation,
			State:                  models.AttachmentStatePersisted,
		}

		if err := u.recorder.CreateAttachment(ctx, &attachment); err != nil {
			lastErr = err
			continue
		}

		u.reconcile(tempID, attachment)
		return attachment, nil
	}

	return models.Attachment{}, fmt.Errorf("upload failed after %d attempts: %w", u.maxAttempts, lastErr)
}

// reconcile swaps the temporary entry for the confirmed one. The new list is
// computed from the current list under the store lock, so two uploads
// finishing nearly simultaneously cannot lose each other's updates.
func (u *Uploader) reconcile(tempID string, confirmed models.Attachment) {
	u.store.ReplaceAttachments(func(current []models.Attachment) []models.Attachment {
		next := make([]models.Attachment, 0, len(current))
		for _, att := range current {
			if att.TempID == tempID {
				next = append(next, confirmed)
				continue
			}
			next = append(next, att)
		}
		return next
	})
}

func (u *Uploader) removeTemp(tempID string) {
	u.store.ReplaceAttachments(func(current []models.Attachment) []models.Attachment {
		next := make([]models.Attachment, 0, len(current))
		for _, att := range current {
			if att.TempID == tempID {
				continue
			}
			next = append(next, att)
		}
		return next
	})
}

// Delete removes an attachment in two phases: the list entry goes first for
// instant feedback, then storage and record deletion proceed asynchronously.
// A storage failure is logged but never reverts the list removal, which would
// otherwise leave an orphaned-but-irremovable entry in front of the user.
func (u *Uploader) Delete(ctx context.Context, attachment models.Attachment) {
	u.store.ReplaceAttachments(func(current []models.Attachment) []models.Attachment {
		next := make([]models.Attachment, 0, len(current))
		for _, att := range current {
			if attachment.ID != 0 && att.ID == attachment.ID {
				continue
			}
			if attachment.ID == 0 && attachment.TempID != "" && att.TempID == attachment.TempID {
				continue
			}
			next = append(next, att)
		}
		return next
	})

	go func() {
		if attachment.ID != 0 {
			if err := u.recorder.DeleteAttachment(context.WithoutCancel(ctx), attachment.ID); err != nil {
				u.logger.Warn().Err(err).Uint("attachment_id", attachment.ID).Msg("failed to delete attachment record")
			}
		}
		if attachment.StorageKey != "" {
			if err := u.storage.Remove(context.WithoutCancel(ctx), attachment.StorageKey); err != nil {
				u.logger.Warn().Err(err).Str("storage_key", attachment.StorageKey).Msg("failed to remove blob")
			}
		}
	}()
}

func (u *Uploader) validate(file RawFile) (string, error) {
	if int64(len(file.Content)) > u.maxSize {
		return "", ErrFileTooLarge
	}

	mime := mimetype.Detect(file.Content)
	if !isAllowedMime(mime.String()) {
		return "", fmt.Errorf("%w: %s", ErrFileTypeNotAllowed, mime.String())
	}

	return mime.String(), nil
}

// isAllowedMime accepts images, common documents, presentations and common
// video types. Content beyond type and size is not inspected.
func isAllowedMime(mime string) bool {
	lower := strings.ToLower(strings.TrimSpace(mime))

	if strings.HasPrefix(lower, "image/") || strings.HasPrefix(lower, "video/") {
		return true
	}

	switch lower {
	case "application/pdf",
		"text/plain; charset=utf-8",
		"text/plain",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.oasis.opendocument.text",
		"application/vnd.oasis.opendocument.presentation":
		return true
	default:
		return false
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
