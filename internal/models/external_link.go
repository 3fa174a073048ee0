package models

import "time"

// ExternalLink references work hosted outside blob storage.
type ExternalLink struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocumentID uint      `gorm:"not null;index" json:"document_id"`
	URL        string    `gorm:"size:512;not null" json:"url"`
	Title      string    `gorm:"size:256" json:"title"`
	Type       string    `gorm:"size:32;not null;default:other" json:"type"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	// LinkTypeYouTube marks a video link.
	LinkTypeYouTube = "youtube"
	// LinkTypeDrive marks a shared drive document.
	LinkTypeDrive = "drive"
	// LinkTypeOther marks any other URL.
	LinkTypeOther = "other"
)
