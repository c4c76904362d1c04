package model

import (
	"time"

	"github.com/google/uuid"
)

// Selection strategies for the auto-assignment engine.
const (
	StrategyRoundRobin    = "ROUND_ROBIN"
	StrategyWorkloadBased = "WORKLOAD_BASED"
	StrategyPriorityBased = "PRIORITY_BASED"
	StrategySkillBased    = "SKILL_BASED"
)

// Assignment actions recorded in the history trail.
const (
	ActionAutoAssigned     = "AUTO_ASSIGNED"
	ActionManuallyAssigned = "MANUALLY_ASSIGNED"
	ActionReassigned       = "REASSIGNED"
	ActionTransferred      = "TRANSFERRED"
)

// AssignmentRule configures reviewer selection for one tier. For a given
// tier and point in time exactly one effective rule applies: lowest
// Priority inside its effective date window.
type AssignmentRule struct {
	ID                    uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RoleTier              string     `gorm:"type:varchar(30);not null;index" json:"role_tier"`
	Strategy              string     `gorm:"type:varchar(30);not null" json:"strategy"`
	MaxWorkloadPerOfficer int        `gorm:"not null;default:10" json:"max_workload_per_officer"`
	Priority              int        `gorm:"not null;default:100" json:"priority"`
	EffectiveFrom         time.Time  `gorm:"not null" json:"effective_from"`
	EffectiveUntil        *time.Time `json:"effective_until"`
	EscalationTimeHours   *int       `json:"escalation_time_hours"`
	EscalationRole        string     `gorm:"type:varchar(30)" json:"escalation_role,omitempty"` // Tier receiving escalated cases

	// Round-robin cursor. Updated only inside the serialized assignment
	// transaction so concurrent assignments cannot lose updates.
	LastRoundRobinIndex     int        `gorm:"default:-1" json:"last_round_robin_index"`
	LastRoundRobinOfficerID *uuid.UUID `gorm:"type:uuid" json:"last_round_robin_officer_id"`

	TimesApplied  int64      `gorm:"default:0" json:"times_applied"`
	LastAppliedAt *time.Time `json:"last_applied_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// AssignmentHistory is the immutable-once-written audit record of who held
// a case and why. Exactly one row per application has IsActive=true; a row
// is only ever mutated to deactivate it and stamp the elapsed duration.
type AssignmentHistory struct {
	ID                   uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ApplicationID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"application_id"`
	PreviousOfficerID    *uuid.UUID `gorm:"type:uuid" json:"previous_officer_id"`
	OfficerID            uuid.UUID  `gorm:"type:uuid;not null;index" json:"officer_id"`
	Officer              *Officer   `gorm:"foreignKey:OfficerID" json:"officer,omitempty"`
	Action               string     `gorm:"type:varchar(30);not null" json:"action"`
	Reason               string     `gorm:"type:text" json:"reason"`
	WorkloadAtAssignment int        `json:"workload_at_assignment"`
	StrategyUsed         string     `gorm:"type:varchar(30)" json:"strategy_used"`
	StatusAtAssignment   string     `gorm:"type:varchar(30)" json:"status_at_assignment"`
	IsActive             bool       `gorm:"default:true;index" json:"is_active"`
	AssignedBy           *uuid.UUID `gorm:"type:uuid" json:"assigned_by"`
	AssignedAt           time.Time  `gorm:"autoCreateTime" json:"assigned_at"`
	DeactivatedAt        *time.Time `json:"deactivated_at"`
	DurationHours        *float64   `json:"duration_hours"`
}
