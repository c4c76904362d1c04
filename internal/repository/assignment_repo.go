package repository

import (
	"context"
	"time"

	"github.com/yashturmbekar/PMCRMS-sub002/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AssignmentRuleRepository resolves and updates per-tier selection rules.
type AssignmentRuleRepository interface {
	// EffectiveRuleForTier returns the rule in force for the tier at the
	// given instant: lowest priority number within its date window.
	EffectiveRuleForTier(ctx context.Context, tier string, at time.Time) (*model.AssignmentRule, error)

	// ListWithEscalation returns every rule carrying escalation config.
	ListWithEscalation(ctx context.Context) ([]model.AssignmentRule, error)

	Update(ctx context.Context, rule *model.AssignmentRule) error
	List(ctx context.Context) ([]model.AssignmentRule, error)
}

type assignmentRuleRepository struct {
	db *gorm.DB
}

func NewAssignmentRuleRepository(db *gorm.DB) AssignmentRuleRepository {
	return &assignmentRuleRepository{db: db}
}

func (r *assignmentRuleRepository) EffectiveRuleForTier(ctx context.Context, tier string, at time.Time) (*model.AssignmentRule, error) {
	var rule model.AssignmentRule
	err := GetDB(ctx, r.db).
		Where("role_tier = ?", tier).
		Where("effective_from <= ?", at).
		Where("effective_until IS NULL OR effective_until > ?", at).
		Order("priority ASC").
		First(&rule).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *assignmentRuleRepository) ListWithEscalation(ctx context.Context) ([]model.AssignmentRule, error) {
	var rules []model.AssignmentRule
	err := GetDB(ctx, r.db).
		Where("escalation_time_hours IS NOT NULL AND escalation_role <> ''").
		Order("role_tier ASC, priority ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *assignmentRuleRepository) Update(ctx context.Context, rule *model.AssignmentRule) error {
	return GetDB(ctx, r.db).Save(rule).Error
}

func (r *assignmentRuleRepository) List(ctx context.Context) ([]model.AssignmentRule, error) {
	var rules []model.AssignmentRule
	if err := GetDB(ctx, r.db).Order("role_tier ASC, priority ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// AssignmentHistoryRepository maintains the audit trail of case ownership.
type AssignmentHistoryRepository interface {
	Create(ctx context.Context, entry *model.AssignmentHistory) error
	ActiveForApplication(ctx context.Context, applicationID uuid.UUID) (*model.AssignmentHistory, error)

	// Deactivate stamps the row inactive with its elapsed duration. Rows
	// are never mutated in any other way.
	Deactivate(ctx context.Context, entry *model.AssignmentHistory, at time.Time) error

	ListForApplication(ctx context.Context, applicationID uuid.UUID) ([]model.AssignmentHistory, error)
}

type assignmentHistoryRepository struct {
	db *gorm.DB
}

func NewAssignmentHistoryRepository(db *gorm.DB) AssignmentHistoryRepository {
	return &assignmentHistoryRepository{db: db}
}

func (r *assignmentHistoryRepository) Create(ctx context.Context, entry *model.AssignmentHistory) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *assignmentHistoryRepository) ActiveForApplication(ctx context.Context, applicationID uuid.UUID) (*model.AssignmentHistory, error) {
	var entry model.AssignmentHistory
	err := GetDB(ctx, r.db).
		Where("application_id = ? AND is_active = ?", applicationID, true).
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *assignmentHistoryRepository) Deactivate(ctx context.Context, entry *model.AssignmentHistory, at time.Time) error {
	duration := at.Sub(entry.AssignedAt).Hours()
	entry.IsActive = false
	entry.DeactivatedAt = &at
	entry.DurationHours = &duration
	return GetDB(ctx, r.db).Model(entry).
		Updates(map[string]interface{}{
			"is_active":      false,
			"deactivated_at": at,
			"duration_hours": duration,
		}).Error
}

func (r *assignmentHistoryRepository) ListForApplication(ctx context.Context, applicationID uuid.UUID) ([]model.AssignmentHistory, error) {
	var entries []model.AssignmentHistory
	err := GetDB(ctx, r.db).
		Preload("Officer").
		Where("application_id = ?", applicationID).
		Order("assigned_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
