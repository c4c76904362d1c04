package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yashturmbekar/PMCRMS-sub002/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApplicationRepository defines data access for licensing applications.
type ApplicationRepository interface {
	Create(ctx context.Context, app *model.Application) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Application, error)
	FindByNumber(ctx context.Context, number string) (*model.Application, error)
	List(ctx context.Context, status string, page, limit int) ([]model.Application, int64, error)
	Update(ctx context.Context, app *model.Application) error

	// CountOpenForOfficer returns the officer's workload: applications
	// assigned to them on some stage whose signature is not yet applied,
	// excluding terminal cases.
	CountOpenForOfficer(ctx context.Context, officerID uuid.UUID) (int64, error)

	// FindAssignedBefore returns non-terminal applications in the given
	// status whose stage assignment happened at or before the cutoff.
	FindAssignedBefore(ctx context.Context, status string, cutoff time.Time) ([]model.Application, error)

	NextApplicationNumber(ctx context.Context) (string, error)
}

type applicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) Create(ctx context.Context, app *model.Application) error {
	return GetDB(ctx, r.db).Create(app).Error
}

func (r *applicationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	var app model.Application
	if err := GetDB(ctx, r.db).First(&app, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepository) FindByNumber(ctx context.Context, number string) (*model.Application, error) {
	var app model.Application
	if err := GetDB(ctx, r.db).First(&app, "application_number = ?", number).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepository) List(ctx context.Context, status string, page, limit int) ([]model.Application, int64, error) {
	var apps []model.Application
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Application{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetch := db.Order("created_at DESC").Offset(offset).Limit(limit)
	if status != "" {
		fetch = fetch.Where("status = ?", status)
	}
	if err := fetch.Find(&apps).Error; err != nil {
		return nil, 0, err
	}

	return apps, total, nil
}

func (r *applicationRepository) Update(ctx context.Context, app *model.Application) error {
	return GetDB(ctx, r.db).Save(app).Error
}

// stagePrefixes are the embedded-column prefixes of the seven stage blocks.
var stagePrefixes = []string{"je", "ae", "ee", "ce", "clerk", "ee_sign", "ce_sign"}

func (r *applicationRepository) CountOpenForOfficer(ctx context.Context, officerID uuid.UUID) (int64, error) {
	db := GetDB(ctx, r.db)

	query := db.Model(&model.Application{}).
		Where("status NOT IN ?", []string{model.StatusApproved, model.StatusRejected})

	var stageCond *gorm.DB
	for _, p := range stagePrefixes {
		cond := db.Where(
			fmt.Sprintf("%s_officer_id = ? AND %s_signature_applied = ?", p, p),
			officerID, false,
		)
		if stageCond == nil {
			stageCond = cond
		} else {
			stageCond = stageCond.Or(cond)
		}
	}

	var count int64
	if err := query.Where(stageCond).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *applicationRepository) FindAssignedBefore(ctx context.Context, status string, cutoff time.Time) ([]model.Application, error) {
	stage, ok := model.StageForStatus(status)
	if !ok {
		return nil, nil
	}
	prefix, ok := stageColumnPrefix(stage)
	if !ok {
		return nil, nil
	}

	var apps []model.Application
	err := GetDB(ctx, r.db).
		Where("status = ?", status).
		Where(fmt.Sprintf("%s_officer_id IS NOT NULL", prefix)).
		Where(fmt.Sprintf("%s_assigned_at <= ?", prefix), cutoff).
		Order("created_at ASC").
		Find(&apps).Error
	if err != nil {
		return nil, err
	}
	return apps, nil
}

func stageColumnPrefix(stage string) (string, bool) {
	switch stage {
	case model.StageJE:
		return "je", true
	case model.StageAE:
		return "ae", true
	case model.StageEE:
		return "ee", true
	case model.StageCE:
		return "ce", true
	case model.StageClerk:
		return "clerk", true
	case model.StageEESign:
		return "ee_sign", true
	case model.StageCESign:
		return "ce_sign", true
	}
	return "", false
}

// NextApplicationNumber issues PMC-LIC-YYYYMMDD-NNNNN, serialized with an
// advisory lock so concurrent submissions never collide.
func (r *applicationRepository) NextApplicationNumber(ctx context.Context) (string, error) {
	db := GetDB(ctx, r.db)

	today := time.Now().Format("20060102")
	prefix := "PMC-LIC-" + today + "-"

	db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix)

	var count int64
	if err := db.Model(&model.Application{}).
		Where("application_number LIKE ?", prefix+"%").
		Count(&count).Error; err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}
