package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Application statuses. The forward chain is strictly linear; REJECTED is
// reachable from any non-terminal status, APPROVED only from the final
// city engineer signing stage.
const (
	StatusJEPending              = "JE_PENDING"
	StatusJEAppointmentScheduled = "JE_APPOINTMENT_SCHEDULED"
	StatusJEDocumentVerified     = "JE_DOCUMENT_VERIFIED"
	StatusAEPending              = "AE_PENDING"
	StatusEEPending              = "EE_PENDING"
	StatusCEPending              = "CE_PENDING"
	StatusPaymentPending         = "PAYMENT_PENDING"
	StatusClerkPending           = "CLERK_PENDING"
	StatusEESignPending          = "EE_SIGN_PENDING"
	StatusCESignPending          = "CE_SIGN_PENDING"
	StatusApproved               = "APPROVED"
	StatusRejected               = "REJECTED"
)

// Stage keys identify the seven review/signing blocks of an application.
const (
	StageJE     = "JE"
	StageAE     = "AE"
	StageEE     = "EE"
	StageCE     = "CE"
	StageClerk  = "CLERK"
	StageEESign = "EE_SIGN"
	StageCESign = "CE_SIGN"
)

// stageTiers maps each stage to the reviewer tier that staffs it. The two
// certificate-signing stages are staffed by the executive and city tiers
// again.
var stageTiers = map[string]string{
	StageJE:     TierJuniorEngineer,
	StageAE:     TierAssistantEngineer,
	StageEE:     TierExecutiveEngineer,
	StageCE:     TierCityEngineer,
	StageClerk:  TierClerk,
	StageEESign: TierExecutiveEngineer,
	StageCESign: TierCityEngineer,
}

// TierForStage returns the reviewer tier staffing the given stage.
func TierForStage(stage string) (string, bool) {
	tier, ok := stageTiers[stage]
	return tier, ok
}

// reviewStages maps each status that needs an assigned reviewer to the
// stage whose assignment fields it fills.
var reviewStages = map[string]string{
	StatusJEPending:     StageJE,
	StatusAEPending:     StageAE,
	StatusEEPending:     StageEE,
	StatusCEPending:     StageCE,
	StatusClerkPending:  StageClerk,
	StatusEESignPending: StageEESign,
	StatusCESignPending: StageCESign,
}

// StageForStatus returns the stage a status belongs to, if the status
// requires a reviewer.
func StageForStatus(status string) (string, bool) {
	stage, ok := reviewStages[status]
	return stage, ok
}

// signingStages maps each status where a signature may be requested to
// the stage that signature closes. It differs from reviewStages on the
// junior engineer leg: the JE signature is applied during the site-visit
// sub-steps, so both sub-statuses point back at StageJE, while the bare
// JE_PENDING entry status has nothing to sign yet.
var signingStages = map[string]string{
	StatusJEAppointmentScheduled: StageJE,
	StatusJEDocumentVerified:     StageJE,
	StatusAEPending:              StageAE,
	StatusEEPending:              StageEE,
	StatusCEPending:              StageCE,
	StatusClerkPending:           StageClerk,
	StatusEESignPending:          StageEESign,
	StatusCESignPending:          StageCESign,
}

// SigningStageForStatus returns the stage whose signature is pending at
// the given status.
func SigningStageForStatus(status string) (string, bool) {
	stage, ok := signingStages[status]
	return stage, ok
}

// TerminalStatus reports whether status is APPROVED or REJECTED.
func TerminalStatus(status string) bool {
	return status == StatusApproved || status == StatusRejected
}

// StageReview holds the per-stage assignment, decision and signature fields
// of an application. At most one of Approved/Rejected may be set, and
// SignatureApplied may only be true once Approved is.
type StageReview struct {
	OfficerID         *uuid.UUID `gorm:"type:uuid;index" json:"officer_id"`
	AssignedAt        *time.Time `json:"assigned_at"`
	Approved          *bool      `json:"approved"`
	ApprovalComments  string     `gorm:"type:text" json:"approval_comments,omitempty"`
	ApprovedAt        *time.Time `json:"approved_at"`
	Rejected          *bool      `json:"rejected"`
	RejectionComments string     `gorm:"type:text" json:"rejection_comments,omitempty"`
	RejectedAt        *time.Time `json:"rejected_at"`
	SignatureApplied  bool       `gorm:"default:false" json:"signature_applied"`
	SignedAt          *time.Time `json:"signed_at"`
}

// Application is the unit of work moving through the reviewer chain.
// Created on submission, mutated only by the workflow and signature
// services, never deleted.
type Application struct {
	ID                uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ApplicationNumber string          `gorm:"type:varchar(40);uniqueIndex;not null" json:"application_number"`
	ApplicantName     string          `gorm:"type:varchar(255);not null" json:"applicant_name"`
	ApplicantEmail    string          `gorm:"type:varchar(255);not null" json:"applicant_email"`
	ApplicantPhone    string          `gorm:"type:varchar(20)" json:"applicant_phone"`
	ApplicantAddress  string          `gorm:"type:text" json:"applicant_address"`
	Category          string          `gorm:"type:varchar(30);not null;index" json:"category"`
	Status            string          `gorm:"type:varchar(30);not null;index" json:"status"`
	ScrutinyFee       decimal.Decimal `gorm:"type:numeric(12,2)" json:"scrutiny_fee"`
	LicenceFee        decimal.Decimal `gorm:"type:numeric(12,2)" json:"licence_fee"`
	PaymentCompleted  bool            `gorm:"default:false" json:"payment_completed"`
	PaymentReference  string          `gorm:"type:varchar(100)" json:"payment_reference,omitempty"`
	PaymentDate       *time.Time      `json:"payment_date"`

	JE     StageReview `gorm:"embedded;embeddedPrefix:je_" json:"je"`
	AE     StageReview `gorm:"embedded;embeddedPrefix:ae_" json:"ae"`
	EE     StageReview `gorm:"embedded;embeddedPrefix:ee_" json:"ee"`
	CE     StageReview `gorm:"embedded;embeddedPrefix:ce_" json:"ce"`
	Clerk  StageReview `gorm:"embedded;embeddedPrefix:clerk_" json:"clerk"`
	EESign StageReview `gorm:"embedded;embeddedPrefix:ee_sign_" json:"ee_sign"`
	CESign StageReview `gorm:"embedded;embeddedPrefix:ce_sign_" json:"ce_sign"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Stage returns a pointer to the stage block identified by key, or nil for
// an unknown key.
func (a *Application) Stage(key string) *StageReview {
	switch key {
	case StageJE:
		return &a.JE
	case StageAE:
		return &a.AE
	case StageEE:
		return &a.EE
	case StageCE:
		return &a.CE
	case StageClerk:
		return &a.Clerk
	case StageEESign:
		return &a.EESign
	case StageCESign:
		return &a.CESign
	}
	return nil
}

// CurrentStage returns the stage block for the application's current
// status, if the status has one.
func (a *Application) CurrentStage() (string, *StageReview) {
	stage, ok := StageForStatus(a.Status)
	if !ok {
		return "", nil
	}
	return stage, a.Stage(stage)
}
