package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionSubmitApplication   = "SUBMIT_APPLICATION"
	ActionAdvanceStatus       = "ADVANCE_STATUS"
	ActionRejectApplication   = "REJECT_APPLICATION"
	ActionRecordPayment       = "RECORD_PAYMENT"
	ActionAutoAssignOfficer   = "AUTO_ASSIGN_OFFICER"
	ActionManualAssignOfficer = "MANUAL_ASSIGN_OFFICER"
	ActionReassignOfficer     = "REASSIGN_OFFICER"
	ActionEscalateApplication = "ESCALATE_APPLICATION"
	ActionRequestSignOtp      = "REQUEST_SIGN_OTP"
	ActionInitiateSignature   = "INITIATE_SIGNATURE"
	ActionCompleteSignature   = "COMPLETE_SIGNATURE"
	ActionAbandonSignature    = "ABANDON_SIGNATURE"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OfficerID  *uuid.UUID `gorm:"type:uuid;index" json:"officer_id"` // Nullable gracefully if automated trigger
	Officer    *Officer   `gorm:"foreignKey:OfficerID" json:"officer"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/number)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
