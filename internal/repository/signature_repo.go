package repository

import (
	"context"

	"github.com/yashturmbekar/PMCRMS-sub002/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SignatureAttemptRepository stores signature protocol attempts.
type SignatureAttemptRepository interface {
	Create(ctx context.Context, attempt *model.SignatureAttempt) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.SignatureAttempt, error)

	// FindBlocking returns an attempt that forbids a new Initiate for the
	// stage: one already IN_PROGRESS or COMPLETED. Nil when none exists.
	FindBlocking(ctx context.Context, applicationID uuid.UUID, stageKey string) (*model.SignatureAttempt, error)

	Update(ctx context.Context, attempt *model.SignatureAttempt) error
	ListForApplication(ctx context.Context, applicationID uuid.UUID) ([]model.SignatureAttempt, error)
}

type signatureAttemptRepository struct {
	db *gorm.DB
}

func NewSignatureAttemptRepository(db *gorm.DB) SignatureAttemptRepository {
	return &signatureAttemptRepository{db: db}
}

func (r *signatureAttemptRepository) Create(ctx context.Context, attempt *model.SignatureAttempt) error {
	return GetDB(ctx, r.db).Create(attempt).Error
}

func (r *signatureAttemptRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.SignatureAttempt, error) {
	var attempt model.SignatureAttempt
	if err := GetDB(ctx, r.db).First(&attempt, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *signatureAttemptRepository) FindBlocking(ctx context.Context, applicationID uuid.UUID, stageKey string) (*model.SignatureAttempt, error) {
	var attempt model.SignatureAttempt
	err := GetDB(ctx, r.db).
		Where("application_id = ? AND stage_key = ?", applicationID, stageKey).
		Where("status IN ?", []string{model.SignatureInProgress, model.SignatureCompleted}).
		First(&attempt).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

func (r *signatureAttemptRepository) Update(ctx context.Context, attempt *model.SignatureAttempt) error {
	return GetDB(ctx, r.db).Save(attempt).Error
}

func (r *signatureAttemptRepository) ListForApplication(ctx context.Context, applicationID uuid.UUID) ([]model.SignatureAttempt, error) {
	var attempts []model.SignatureAttempt
	err := GetDB(ctx, r.db).
		Where("application_id = ?", applicationID).
		Order("initiated_at ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

// DocumentRepository is the document store boundary: fetch and replace
// artifact blobs per application and type.
type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error)
	FindByType(ctx context.Context, applicationID uuid.UUID, docType string) (*model.Document, error)

	// ReplaceContent swaps the stored bytes for the signed ones and bumps
	// the version counter.
	ReplaceContent(ctx context.Context, doc *model.Document, content []byte) error
}

type documentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *model.Document) error {
	return GetDB(ctx, r.db).Create(doc).Error
}

func (r *documentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	if err := GetDB(ctx, r.db).First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) FindByType(ctx context.Context, applicationID uuid.UUID, docType string) (*model.Document, error) {
	var doc model.Document
	err := GetDB(ctx, r.db).
		First(&doc, "application_id = ? AND type = ?", applicationID, docType).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) ReplaceContent(ctx context.Context, doc *model.Document, content []byte) error {
	doc.Content = content
	doc.Version++
	return GetDB(ctx, r.db).Model(doc).
		Updates(map[string]interface{}{
			"content": content,
			"version": doc.Version,
		}).Error
}
