package model

import (
	"time"

	"github.com/google/uuid"
)

// Signature attempt statuses.
const (
	SignaturePending    = "PENDING"
	SignatureInProgress = "IN_PROGRESS"
	SignatureCompleted  = "COMPLETED"
	SignatureFailed     = "FAILED"
	SignatureVerified   = "VERIFIED"
	SignatureRevoked    = "REVOKED"
)

// MaxSignatureRetries caps how often a failed attempt may be retried before
// a fresh Initiate is required.
const MaxSignatureRetries = 3

// SignatureAttempt records one pass through the HSM signing protocol for a
// stage of an application. Only IN_PROGRESS attempts may complete; only
// FAILED attempts under the retry cap may be retried.
type SignatureAttempt struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ApplicationID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"application_id"`
	StageKey        string     `gorm:"type:varchar(20);not null;index" json:"stage_key"`
	OfficerID       uuid.UUID  `gorm:"type:uuid;not null" json:"officer_id"`
	Status          string     `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	DocumentType    string     `gorm:"type:varchar(40);not null" json:"document_type"`
	OtpRequestedAt  *time.Time `json:"otp_requested_at"`
	OtpUsed         bool       `gorm:"default:false" json:"otp_used"`
	RetryCount      int        `gorm:"default:0" json:"retry_count"`
	HSMTxnRef       string     `gorm:"type:varchar(100)" json:"hsm_txn_ref,omitempty"`
	FailureReason   string     `gorm:"type:text" json:"failure_reason,omitempty"`
	SignedDocument  *uuid.UUID `gorm:"type:uuid" json:"signed_document_id"`
	InitiatedAt     time.Time  `gorm:"autoCreateTime" json:"initiated_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	DurationSeconds *float64   `json:"duration_seconds"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Document types stored for an application.
const (
	DocumentRecommendationForm = "RECOMMENDATION_FORM"
	DocumentLicenceCertificate = "LICENCE_CERTIFICATE"
)

// Document is a stored artifact blob for an application. Signing replaces
// Content with the signed bytes and bumps Version.
type Document struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ApplicationID uuid.UUID `gorm:"type:uuid;not null;index:idx_documents_app_type,unique" json:"application_id"`
	Type          string    `gorm:"type:varchar(40);not null;index:idx_documents_app_type,unique" json:"type"`
	ContentType   string    `gorm:"type:varchar(100);default:'application/pdf'" json:"content_type"`
	Content       []byte    `gorm:"type:bytea" json:"-"`
	Version       int       `gorm:"default:1" json:"version"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
