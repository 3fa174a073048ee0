package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/folio-go-api/internal/models"
)

// AttachmentRepository defines data operations for attachment records.
type AttachmentRepository interface {
	CreateAttachment(ctx context.Context, attachment *models.Attachment) error
	DeleteAttachment(ctx context.Context, id uint) error
	ListByDocument(ctx context.Context, documentID uint) ([]models.Attachment, error)
}

type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository instantiates the repository.
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) CreateAttachment(ctx context.Context, attachment *models.Attachment) error {
	return r.db.WithContext(ctx).Create(attachment).Error
}

func (r *attachmentRepository) DeleteAttachment(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Attachment{}, id).Error
}

func (r *attachmentRepository) ListByDocument(ctx context.Context, documentID uint) ([]models.Attachment, error) {
	var attachments []models.Attachment
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC").
		Find(&attachments).Error; err != nil {
		return nil, err
	}

	return attachments, nil
}
