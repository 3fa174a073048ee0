package dto

import (
	"time"

	"github.com/noah-isme/folio-go-api/internal/models"
)

// DocumentCreateRequest starts a new draft for the authenticated owner.
type DocumentCreateRequest struct {
	Title string `json:"title" validate:"omitempty,max=256"`
}

// FieldPatchRequest mutates a set of draft fields in one editing action.
type FieldPatchRequest struct {
	Fields map[string]interface{} `json:"fields" validate:"required,min=1"`
}

// ExternalLinkRequest attaches a link to the draft.
type ExternalLinkRequest struct {
	URL   string `json:"url" validate:"required,url"`
	Title string `json:"title" validate:"omitempty,max=256"`
	Type  string `json:"type" validate:"omitempty,oneof=youtube drive other"`
}

// DocumentFilter describes query string filters for listing documents.
type DocumentFilter struct {
	Status *string `query:"status" validate:"omitempty,oneof=DRAFT SUBMITTED NEEDS_REVISION APPROVED"`
}

// NavigationCheckResponse reports whether a step may be entered and which
// required fields are still missing when it may not.
type NavigationCheckResponse struct {
	Step    string            `json:"step"`
	Allowed bool              `json:"allowed"`
	Missing map[string]string `json:"missing,omitempty"`
}

// AttachmentResponse serializes one attachment.
type AttachmentResponse struct {
	ID                     uint      `json:"id"`
	URL                    string    `json:"url"`
	Name                   string    `json:"name"`
	MimeType               string    `json:"mime_type"`
	SizeBytes              int64     `json:"size_bytes"`
	IsProcessDocumentation bool      `json:"is_process_documentation"`
	State                  string    `json:"state,omitempty"`
	TempID                 string    `json:"temp_id,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
}

// ExternalLinkResponse serializes one external link.
type ExternalLinkResponse struct {
	ID    uint   `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// FeedbackResponse serializes one teacher annotation.
type FeedbackResponse struct {
	ID        uint      `json:"id"`
	AuthorID  uint      `json:"author_id"`
	FieldID   *string   `json:"field_id"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentResponse is returned to API clients when viewing documents.
type DocumentResponse struct {
	ID             uint                   `json:"id"`
	OwnerID        uint                   `json:"owner_id"`
	Status         string                 `json:"status"`
	Fields         map[string]interface{} `json:"fields"`
	Attachments    []AttachmentResponse   `json:"attachments"`
	ExternalLinks  []ExternalLinkResponse `json:"external_links"`
	Feedback       []FeedbackResponse     `json:"feedback"`
	Revision       int                    `json:"revision"`
	SubmittedAt    *time.Time             `json:"submitted_at"`
	ApprovedAt     *time.Time             `json:"approved_at"`
	ApprovedBy     *uint                  `json:"approved_by"`
	ApprovedSkills []string               `json:"approved_skills"`
	ApprovalNote   string                 `json:"approval_note,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// NewDocumentResponse converts a Document model into a DTO.
func NewDocumentResponse(model models.Document) DocumentResponse {
	response := DocumentResponse{
		ID:             model.ID,
		OwnerID:        model.OwnerID,
		Status:         model.Status,
		Fields:         model.Fields,
		Revision:       model.Revision,
		SubmittedAt:    model.SubmittedAt,
		ApprovedAt:     model.ApprovedAt,
		ApprovedBy:     model.ApprovedBy,
		ApprovedSkills: model.ApprovedSkills,
		ApprovalNote:   model.ApprovalNote,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}

	response.Attachments = make([]AttachmentResponse, 0, len(model.Attachments))
	for _, att := range model.Attachments {
		response.Attachments = append(response.Attachments, NewAttachmentResponse(att))
	}

	response.ExternalLinks = make([]ExternalLinkResponse, 0, len(model.ExternalLinks))
	for _, link := range model.ExternalLinks {
		response.ExternalLinks = append(response.ExternalLinks, ExternalLinkResponse{
			ID:    link.ID,
			URL:   link.URL,
			Title: link.Title,
			Type:  link.Type,
		})
	}

	response.Feedback = make([]FeedbackResponse, 0, len(model.Feedback))
	for _, entry := range model.Feedback {
		response.Feedback = append(response.Feedback, FeedbackResponse{
			ID:        entry.ID,
			AuthorID:  entry.AuthorID,
			FieldID:   entry.FieldID,
			Comment:   entry.Comment,
			CreatedAt: entry.CreatedAt,
		})
	}

	return response
}

// NewAttachmentResponse converts an Attachment model into a DTO.
func NewAttachmentResponse(model models.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:                     model.ID,
		URL:                    model.URL,
		Name:                   model.Name,
		MimeType:               model.MimeType,
		SizeBytes:              model.SizeBytes,
		IsProcessDocumentation: model.IsProcessDocumentation,
		State:                  string(model.State),
		TempID:                 model.TempID,
		CreatedAt:              model.CreatedAt,
	}
}

// NewDocumentResponseSlice converts document models into DTOs.
func NewDocumentResponseSlice(docs []models.Document) []DocumentResponse {
	responses := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		responses = append(responses, NewDocumentResponse(doc))
	}

	return responses
}
