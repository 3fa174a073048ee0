package repository

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/folio-go-api/internal/models"
)

// ErrStatusConflict indicates a transition found the document in a status it
// does not accept; the caller sees the stored record untouched.
var ErrStatusConflict = errors.New("document status does not permit this transition")

// DocumentFilter allows narrowing document queries.
type DocumentFilter struct {
	OwnerID *uint
	Status  *string
}

// StatusTransition describes one atomic lifecycle change. Everything in it is
// applied in a single transaction so no observer sees an intermediate status.
type StatusTransition struct {
	From              []string
	To                string
	SetSubmittedAt    bool
	IncrementRevision bool
	Feedback          []models.FeedbackEntry
	ApprovedBy        *uint
	ApprovedSkills    []string
	ApprovalNote      string
}

// DocumentRepository is the persistence gateway for documents.
type DocumentRepository interface {
	Upsert(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uint) (models.Document, error)
	List(ctx context.Context, filter DocumentFilter) ([]models.Document, error)
	Delete(ctx context.Context, id uint) error
	TransitionStatus(ctx context.Context, id uint, transition StatusTransition) (models.Document, error)
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository instantiates the repository.
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Document{}).
		Preload("Attachments").
		Preload("ExternalLinks").
		Preload("Feedback", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		})
}

// Upsert creates the record when no id is set and updates it otherwise,
// leaving the authoritative stored state (including the server-assigned id)
// in the passed document.
func (r *documentRepository) Upsert(ctx context.Context, doc *models.Document) error {
	if doc.ID == 0 {
		return r.db.WithContext(ctx).Create(doc).Error
	}

	return r.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(doc).Error
}

func (r *documentRepository) GetByID(ctx context.Context, id uint) (models.Document, error) {
	var doc models.Document
	if err := r.baseQuery(ctx).First(&doc, id).Error; err != nil {
		return models.Document{}, err
	}

	return doc, nil
}

func (r *documentRepository) List(ctx context.Context, filter DocumentFilter) ([]models.Document, error) {
	query := r.baseQuery(ctx)

	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var docs []models.Document
	if err := query.Order("updated_at DESC").Find(&docs).Error; err != nil {
		return nil, err
	}

	return docs, nil
}

func (r *documentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Document{}, id).Error
}

// TransitionStatus applies one lifecycle change as a single persisted update.
// The current status is re-read under a row lock inside the transaction, so a
// concurrent transition from another session loses cleanly with
// ErrStatusConflict instead of producing a double submission.
func (r *documentRepository) TransitionStatus(ctx context.Context, id uint, transition StatusTransition) (models.Document, error) {
	var result models.Document

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc models.Document
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&doc, id).Error; err != nil {
			return err
		}

		if !statusAllowed(doc.Status, transition.From) {
			return ErrStatusConflict
		}

		updates := map[string]interface{}{"status": transition.To}

		if transition.SetSubmittedAt {
			updates["submitted_at"] = tx.NowFunc()
		}

		if transition.IncrementRevision {
			updates["revision"] = gorm.Expr("revision + 1")
		}

		if transition.ApprovedBy != nil {
			updates["approved_at"] = tx.NowFunc()
			updates["approved_by"] = *transition.ApprovedBy
			updates["approval_note"] = transition.ApprovalNote
			updates["approved_skills"] = datatypes.NewJSONSlice(transition.ApprovedSkills)
		}

		if err := tx.Model(&models.Document{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}

		for i := range transition.Feedback {
			transition.Feedback[i].DocumentID = id
			if err := tx.Create(&transition.Feedback[i]).Error; err != nil {
				return err
			}
		}

		return tx.Preload("Attachments").
			Preload("ExternalLinks").
			Preload("Feedback", func(db *gorm.DB) *gorm.DB {
				return db.Order("created_at ASC")
			}).
			First(&result, id).Error
	})
	if err != nil {
		return models.Document{}, err
	}

	return result, nil
}

func statusAllowed(current string, allowed []string) bool {
	for _, status := range allowed {
		if current == status {
			return true
		}
	}
	return false
}
