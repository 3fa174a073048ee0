package models

import (
	"time"

	"gorm.io/datatypes"
)

// Document is a multi-section portfolio assignment assembled by a student
// across editing sessions and reviewed by a teacher.
type Document struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	OwnerID        uint                        `gorm:"not null;index" json:"owner_id"`
	Status         string                      `gorm:"size:32;not null;default:DRAFT" json:"status"`
	Fields         datatypes.JSONMap           `gorm:"type:jsonb" json:"fields"`
	Attachments    []Attachment                `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"attachments"`
	ExternalLinks  []ExternalLink              `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"external_links"`
	Feedback       []FeedbackEntry             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"feedback"`
	Revision       int                         `gorm:"not null;default:0" json:"revision"`
	SubmittedAt    *time.Time                  `json:"submitted_at"`
	ApprovedAt     *time.Time                  `json:"approved_at"`
	ApprovedBy     *uint                       `json:"approved_by"`
	ApprovedSkills datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"approved_skills"`
	ApprovalNote   string                      `gorm:"type:text" json:"approval_note"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

const (
	// StatusDraft marks a document freely editable by its owner.
	StatusDraft = "DRAFT"
	// StatusSubmitted marks a document awaiting teacher review.
	StatusSubmitted = "SUBMITTED"
	// StatusNeedsRevision marks a document returned with mandatory feedback.
	StatusNeedsRevision = "NEEDS_REVISION"
	// StatusApproved marks a document accepted by a teacher; terminal.
	StatusApproved = "APPROVED"
)

// IsEditable reports whether the owner may still mutate fields, files and links.
func (d Document) IsEditable() bool {
	return d.Status == StatusDraft
}

// IsTerminal reports whether the document has reached its final state.
func (d Document) IsTerminal() bool {
	return d.Status == StatusApproved
}

// HasArtifacts reports whether at least one attachment or external link exists.
// Submission requires an artifact; step navigation does not.
func (d Document) HasArtifacts() bool {
	return len(d.Attachments) > 0 || len(d.ExternalLinks) > 0
}

// StringField returns the named field as a string; absent values are the
// empty string, never a null sentinel, so equality checks stay stable.
func (d Document) StringField(name string) string {
	if d.Fields == nil {
		return ""
	}
	if value, ok := d.Fields[name].(string); ok {
		return value
	}
	return ""
}

// BoolField returns the named field and whether it has been answered at all.
func (d Document) BoolField(name string) (bool, bool) {
	if d.Fields == nil {
		return false, false
	}
	value, ok := d.Fields[name].(bool)
	return value, ok
}

// SliceField returns the named array-valued field.
func (d Document) SliceField(name string) []interface{} {
	if d.Fields == nil {
		return nil
	}
	if value, ok := d.Fields[name].([]interface{}); ok {
		return value
	}
	return nil
}
