package database

import (
	"log"
	"time"

	"github.com/yashturmbekar/PMCRMS-sub002/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate core models
	err = db.AutoMigrate(
		&model.Officer{},
		&model.RefreshToken{},
		&model.Application{},
		&model.AssignmentRule{},
		&model.AssignmentHistory{},
		&model.SignatureAttempt{},
		&model.Document{},
		&model.NotificationOutbox{},
		&model.AuditLog{},
	)
	if err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	return db, nil
}

// SeedAssignmentRules inserts one workload-based rule per tier when the
// rules table is empty, so a fresh deployment can assign reviewers without
// manual configuration. Escalation defaults follow the review chain: JE
// stalls go to the assistant tier, AE stalls to the executive tier.
func SeedAssignmentRules(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.AssignmentRule{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	escalation := map[string]string{
		model.TierJuniorEngineer:    model.TierAssistantEngineer,
		model.TierAssistantEngineer: model.TierExecutiveEngineer,
	}
	escalationHours := 72

	tiers := []string{
		model.TierJuniorEngineer,
		model.TierAssistantEngineer,
		model.TierExecutiveEngineer,
		model.TierCityEngineer,
		model.TierClerk,
	}

	now := time.Now()
	for _, tier := range tiers {
		rule := model.AssignmentRule{
			RoleTier:              tier,
			Strategy:              model.StrategyWorkloadBased,
			MaxWorkloadPerOfficer: 10,
			Priority:              100,
			EffectiveFrom:         now,
			LastRoundRobinIndex:   -1,
		}
		if target, ok := escalation[tier]; ok {
			hours := escalationHours
			rule.EscalationTimeHours = &hours
			rule.EscalationRole = target
		}
		if err := db.Create(&rule).Error; err != nil {
			return err
		}
	}

	log.Println("Seeded default assignment rules for all tiers")
	return nil
}
