package dto

// ApproveRequest closes the review loop positively. Between one and three
// skills must be confirmed, and the justification is mandatory; feedback text
// is optional on approval.
type ApproveRequest struct {
	Skills        []string `json:"skills" validate:"required,min=1,max=3,dive,min=1"`
	Justification string   `json:"justification" validate:"required,min=3"`
	Feedback      string   `json:"feedback" validate:"omitempty,min=3"`
}

// RevisionRequest sends a document back to its owner. Feedback is mandatory:
// revision without explanation is rejected at this boundary, not just in UI.
type RevisionRequest struct {
	Feedback string  `json:"feedback" validate:"required,min=1"`
	FieldID  *string `json:"field_id" validate:"omitempty,min=1,max=64"`
}

// UploadBatchResponse reports the outcome of one attachment batch.
type UploadBatchResponse struct {
	Persisted []AttachmentResponse `json:"persisted"`
	Rejected  []FileIssue          `json:"rejected,omitempty"`
	Failed    []FileIssue          `json:"failed,omitempty"`
}

// FileIssue names one file that was rejected or failed, with the reason.
type FileIssue struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}
