package model

import (
	"time"

	"github.com/google/uuid"
)

// Notification outbox statuses.
const (
	OutboxPending = "PENDING"
	OutboxSent    = "SENT"
	OutboxFailed  = "FAILED"
)

// maxOutboxAttempts bounds the dispatcher's redelivery of one message.
const MaxOutboxAttempts = 5

// NotificationOutbox is written inside the same transaction as the
// assignment it announces; a background dispatcher delivers it afterwards.
// Delivery failure never fails the assignment.
type NotificationOutbox struct {
	ID                uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OfficerID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"officer_id"`
	ApplicationID     uuid.UUID  `gorm:"type:uuid;not null" json:"application_id"`
	ApplicationNumber string     `gorm:"type:varchar(40);not null" json:"application_number"`
	Category          string     `gorm:"type:varchar(30)" json:"category"`
	ApplicantName     string     `gorm:"type:varchar(255)" json:"applicant_name"`
	AssignedBy        string     `gorm:"type:varchar(255)" json:"assigned_by"`
	Status            string     `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	Attempts          int        `gorm:"default:0" json:"attempts"`
	LastError         string     `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	SentAt            *time.Time `json:"sent_at"`
}
