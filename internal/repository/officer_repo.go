package repository

import (
	"context"

	"github.com/yashturmbekar/PMCRMS-sub002/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OfficerRepository is the reviewer directory: lookups by role and active
// flag, plus the account operations the auth layer needs.
type OfficerRepository interface {
	Create(ctx context.Context, officer *model.Officer) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Officer, error)
	GetByEmail(ctx context.Context, email string) (*model.Officer, error)

	// GetActiveByRole returns active officers holding the fine-grained
	// role, ordered by id for deterministic strategy selection.
	GetActiveByRole(ctx context.Context, role string) ([]model.Officer, error)

	List(ctx context.Context, role string, page, limit int) ([]model.Officer, int64, error)
	Update(ctx context.Context, officer *model.Officer) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type officerRepository struct {
	db *gorm.DB
}

func NewOfficerRepository(db *gorm.DB) OfficerRepository {
	return &officerRepository{db: db}
}

func (r *officerRepository) Create(ctx context.Context, officer *model.Officer) error {
	return GetDB(ctx, r.db).Create(officer).Error
}

func (r *officerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Officer, error) {
	var officer model.Officer
	if err := GetDB(ctx, r.db).First(&officer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &officer, nil
}

func (r *officerRepository) GetByEmail(ctx context.Context, email string) (*model.Officer, error) {
	var officer model.Officer
	if err := GetDB(ctx, r.db).First(&officer, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &officer, nil
}

func (r *officerRepository) GetActiveByRole(ctx context.Context, role string) ([]model.Officer, error) {
	var officers []model.Officer
	err := GetDB(ctx, r.db).
		Where("role = ? AND active = ?", role, true).
		Order("id ASC").
		Find(&officers).Error
	if err != nil {
		return nil, err
	}
	return officers, nil
}

func (r *officerRepository) List(ctx context.Context, role string, page, limit int) ([]model.Officer, int64, error) {
	var officers []model.Officer
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Officer{})
	if role != "" {
		query = query.Where("role = ?", role)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetch := db.Order("name ASC").Offset(offset).Limit(limit)
	if role != "" {
		fetch = fetch.Where("role = ?", role)
	}
	if err := fetch.Find(&officers).Error; err != nil {
		return nil, 0, err
	}

	return officers, total, nil
}

func (r *officerRepository) Update(ctx context.Context, officer *model.Officer) error {
	return GetDB(ctx, r.db).Save(officer).Error
}

func (r *officerRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.Officer{}).
		Where("id = ?", id).
		Update("active", false).Error
}
