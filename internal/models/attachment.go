package models

import "time"

// AttachmentState tracks an attachment between upload start and confirmation.
type AttachmentState string

const (
	// AttachmentStateLocal is an optimistic entry that has not hit storage yet.
	AttachmentStateLocal AttachmentState = "local"
	// AttachmentStateUploading is an entry with an in-flight storage transfer.
	AttachmentStateUploading AttachmentState = "uploading"
	// AttachmentStatePersisted is a confirmed entry with a server id and URL.
	AttachmentStatePersisted AttachmentState = "persisted"
)

// Attachment is one uploaded file associated with a document. While an upload
// is in flight the entry lives only in the editing session, identified by
// TempID; once confirmed it carries the persisted ID and storage key.
type Attachment struct {
	ID                     uint            `gorm:"primaryKey" json:"id"`
	DocumentID             uint            `gorm:"not null;index" json:"document_id"`
	OwnerID                uint            `gorm:"not null" json:"owner_id"`
	URL                    string          `gorm:"size:512" json:"url"`
	StorageKey             string          `gorm:"size:256" json:"storage_key"`
	Name                   string          `gorm:"size:256;not null" json:"name"`
	MimeType               string          `gorm:"size:128" json:"mime_type"`
	SizeBytes              int64           `json:"size_bytes"`
	IsProcessDocumentation bool            `gorm:"not null;default:false" json:"is_process_documentation"`
	CreatedAt              time.Time       `json:"created_at"`
	State                  AttachmentState `gorm:"-" json:"state,omitempty"`
	TempID                 string          `gorm:"-" json:"temp_id,omitempty"`
}

// IsPersisted reports whether the attachment has been confirmed by storage
// and the persistence layer.
func (a Attachment) IsPersisted() bool {
	return a.ID != 0 && a.State != AttachmentStateLocal && a.State != AttachmentStateUploading
}
