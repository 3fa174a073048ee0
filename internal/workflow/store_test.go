package workflow

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/folio-go-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestStoreTracksDirtyFields(t *testing.T) {
	store := NewDocumentStore(models.Document{ID: 1, Status: models.StatusDraft})
	require.False(t, store.Dirty())

	require.NoError(t, store.SetValue("title", "Bridge project"))
	require.True(t, store.Dirty())
	require.Equal(t, "Bridge project", store.GetValue("title"))

	store.ClearDirty()
	require.False(t, store.Dirty())
}

func TestStoreNormalizesNilToEmptyString(t *testing.T) {
	store := NewDocumentStore(models.Document{Status: models.StatusDraft})

	require.NoError(t, store.SetValue("title", nil))
	require.Equal(t, "", store.GetValue("title"))
}

func TestStoreRejectsEditsAfterSubmission(t *testing.T) {
	for _, status := range []string{models.StatusSubmitted, models.StatusApproved} {
		store := NewDocumentStore(models.Document{ID: 2, Status: status})

		err := store.SetValue("title", "too late")
		require.ErrorIs(t, err, ErrDocumentLocked)
		require.False(t, store.Dirty())
	}
}

func TestStoreSnapshotIsIsolated(t *testing.T) {
	store := NewDocumentStore(models.Document{
		ID:     3,
		Status: models.StatusDraft,
		Fields: datatypes.JSONMap{"title": "original"},
		Attachments: []models.Attachment{
			{ID: 10, Name: "sketch.png"},
		},
	})

	snapshot := store.Snapshot()
	snapshot.Fields["title"] = "mutated"
	snapshot.Attachments[0].Name = "mutated.png"

	require.Equal(t, "original", store.GetValue("title"))
	require.Equal(t, "sketch.png", store.Snapshot().Attachments[0].Name)
}

func TestStoreSetValueClearsFieldError(t *testing.T) {
	store := NewDocumentStore(models.Document{Status: models.StatusDraft})

	store.SetFieldError("title", "Title")
	require.Len(t, store.FieldErrors(), 1)

	require.NoError(t, store.SetValue("title", "fixed"))
	require.Empty(t, store.FieldErrors())
}

func TestStoreNotifiesListeners(t *testing.T) {
	store := NewDocumentStore(models.Document{Status: models.StatusDraft})

	var seen []string
	store.OnChange(func(field string) { seen = append(seen, field) })

	require.NoError(t, store.SetValue("title", "a"))
	require.NoError(t, store.SetValue("subject", "b"))
	require.Equal(t, []string{"title", "subject"}, seen)
}

func TestReplaceAttachmentsComputesFromCurrent(t *testing.T) {
	store := NewDocumentStore(models.Document{Status: models.StatusDraft})

	store.ReplaceAttachments(func(current []models.Attachment) []models.Attachment {
		return append(current, models.Attachment{TempID: "a"})
	})
	store.ReplaceAttachments(func(current []models.Attachment) []models.Attachment {
		return append(current, models.Attachment{TempID: "b"})
	})

	attachments := store.Snapshot().Attachments
	require.Len(t, attachments, 2)
	require.Equal(t, "a", attachments[0].TempID)
	require.Equal(t, "b", attachments[1].TempID)
}

func TestAssignIDOnlyOnFirstPersist(t *testing.T) {
	store := NewDocumentStore(models.Document{Status: models.StatusDraft})

	store.AssignID(7)
	store.AssignID(99)

	require.Equal(t, uint(7), store.Snapshot().ID)
}
