package models

import "time"

// FeedbackEntry is one teacher annotation on a document. The history is
// append-only: entries are never updated or removed.
type FeedbackEntry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocumentID uint      `gorm:"not null;index" json:"document_id"`
	AuthorID   uint      `gorm:"not null" json:"author_id"`
	FieldID    *string   `gorm:"size:64" json:"field_id"`
	Comment    string    `gorm:"type:text;not null" json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}
