package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Officer is a reviewer directory entry. Officers are also the
// authenticated principals of the API, so the row carries credentials
// alongside the directory fields.
type Officer struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name            string         `gorm:"type:varchar(255);not null" json:"name"`
	Email           string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone           string         `gorm:"type:varchar(20)" json:"phone"`
	Password        string         `gorm:"type:varchar(255);not null" json:"-"` // Omit password from JSON requests/responses
	Role            string         `gorm:"type:varchar(50);not null;index" json:"role"`
	Active          bool           `gorm:"default:true;index" json:"active"`
	HSMKeyLabel     string         `gorm:"type:varchar(100)" json:"hsm_key_label,omitempty"` // Signing key reference on the HSM
	SeniorityMonths int            `gorm:"default:0" json:"seniority_months"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"` // GORM soft delete
}

// RefreshToken stores long-lived tokens allowing officers to request new
// access tokens
type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OfficerID uuid.UUID `gorm:"type:uuid;not null;index" json:"officer_id"`
	Officer   Officer   `gorm:"foreignKey:OfficerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Token     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"token"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
