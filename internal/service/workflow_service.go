package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/yashturmbekar/PMCRMS-sub002/internal/model"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/repository"
	"github.com/yashturmbekar/PMCRMS-sub002/pkg/apperrors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Workflow triggers. Each names the event that moves an application one
// step along the review chain.
const (
	TriggerApplicationSubmitted = "APPLICATION_SUBMITTED"
	TriggerAppointmentScheduled = "APPOINTMENT_SCHEDULED"
	TriggerDocumentsVerified    = "DOCUMENTS_VERIFIED"
	TriggerJEApproved           = "JE_APPROVED"
	TriggerAEApproved           = "AE_APPROVED"
	TriggerEEApproved           = "EE_APPROVED"
	TriggerCEApproved           = "CE_APPROVED"
	TriggerPaymentCompleted     = "PAYMENT_COMPLETED"
	TriggerClerkVerified        = "CLERK_VERIFIED"
	TriggerEESignCompleted      = "EE_SIGN_COMPLETED"
	TriggerCESignCompleted      = "CE_SIGN_COMPLETED"
)

type transition struct {
	From string // expected source status, empty for submission
	To   string
}

// transitions is the static table defining every legal forward move.
var transitions = map[string]transition{
	TriggerApplicationSubmitted: {From: "", To: model.StatusJEPending},
	TriggerAppointmentScheduled: {From: model.StatusJEPending, To: model.StatusJEAppointmentScheduled},
	TriggerDocumentsVerified:    {From: model.StatusJEAppointmentScheduled, To: model.StatusJEDocumentVerified},
	TriggerJEApproved:           {From: model.StatusJEDocumentVerified, To: model.StatusAEPending},
	TriggerAEApproved:           {From: model.StatusAEPending, To: model.StatusEEPending},
	TriggerEEApproved:           {From: model.StatusEEPending, To: model.StatusCEPending},
	TriggerCEApproved:           {From: model.StatusCEPending, To: model.StatusPaymentPending},
	TriggerPaymentCompleted:     {From: model.StatusPaymentPending, To: model.StatusClerkPending},
	TriggerClerkVerified:        {From: model.StatusClerkPending, To: model.StatusEESignPending},
	TriggerEESignCompleted:      {From: model.StatusEESignPending, To: model.StatusCESignPending},
	TriggerCESignCompleted:      {From: model.StatusCESignPending, To: model.StatusApproved},
}

// signatureGatedStages maps each trigger that closes a review stage to
// that stage. AdvanceInTx refuses these triggers until the stage block
// carries an applied signature, so a status can never imply a signature
// that was not actually completed.
var signatureGatedStages = map[string]string{
	TriggerJEApproved:      model.StageJE,
	TriggerAEApproved:      model.StageAE,
	TriggerEEApproved:      model.StageEE,
	TriggerCEApproved:      model.StageCE,
	TriggerClerkVerified:   model.StageClerk,
	TriggerEESignCompleted: model.StageEESign,
	TriggerCESignCompleted: model.StageCESign,
}

// TriggerForStage returns the trigger fired when the given stage's
// signature completes.
func TriggerForStage(stage string) (string, bool) {
	switch stage {
	case model.StageJE:
		return TriggerJEApproved, true
	case model.StageAE:
		return TriggerAEApproved, true
	case model.StageEE:
		return TriggerEEApproved, true
	case model.StageCE:
		return TriggerCEApproved, true
	case model.StageClerk:
		return TriggerClerkVerified, true
	case model.StageEESign:
		return TriggerEESignCompleted, true
	case model.StageCESign:
		return TriggerCESignCompleted, true
	}
	return "", false
}

// --- DTOs ---

type SubmitApplicationRequest struct {
	ApplicantName    string `json:"applicant_name" binding:"required"`
	ApplicantEmail   string `json:"applicant_email" binding:"required,email"`
	ApplicantPhone   string `json:"applicant_phone"`
	ApplicantAddress string `json:"applicant_address"`
	Category         string `json:"category" binding:"required"`
	ScrutinyFee      string `json:"scrutiny_fee"`
	LicenceFee       string `json:"licence_fee"`
}

type RecordPaymentRequest struct {
	Reference string `json:"reference" binding:"required"`
}

// AdvanceResult reports one state machine step. Unassigned is the partial
// success case: the status committed but no reviewer could be assigned.
type AdvanceResult struct {
	ApplicationID     uuid.UUID  `json:"application_id"`
	ApplicationNumber string     `json:"application_number"`
	PreviousStatus    string     `json:"previous_status"`
	NewStatus         string     `json:"new_status"`
	AssignedOfficerID *uuid.UUID `json:"assigned_officer_id,omitempty"`
	Unassigned        bool       `json:"unassigned"`
	Message           string     `json:"message"`
}

type StageInfo struct {
	Stage             string     `json:"stage"`
	OfficerID         *uuid.UUID `json:"officer_id"`
	AssignedAt        *time.Time `json:"assigned_at"`
	Approved          *bool      `json:"approved"`
	Rejected          *bool      `json:"rejected"`
	SignatureApplied  bool       `json:"signature_applied"`
	SignedAt          *time.Time `json:"signed_at"`
	ApprovalComments  string     `json:"approval_comments,omitempty"`
	RejectionComments string     `json:"rejection_comments,omitempty"`
}

type ApplicationSummary struct {
	ID                uuid.UUID `json:"id"`
	ApplicationNumber string    `json:"application_number"`
	ApplicantName     string    `json:"applicant_name"`
	Category          string    `json:"category"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

type CaseStageInfoResponse struct {
	ApplicationID     uuid.UUID   `json:"application_id"`
	ApplicationNumber string      `json:"application_number"`
	ApplicantName     string      `json:"applicant_name"`
	Category          string      `json:"category"`
	Status            string      `json:"status"`
	Stages            []StageInfo `json:"stages"`
}

// --- Interface ---

// WorkflowService is the authoritative state machine: it owns every status
// mutation and sequences the assignment engine as a case advances.
type WorkflowService interface {
	Submit(ctx context.Context, req SubmitApplicationRequest) (*AdvanceResult, error)
	Advance(ctx context.Context, applicationID uuid.UUID, trigger string, actorID *uuid.UUID) (*AdvanceResult, error)

	// AdvanceInTx is Advance for callers already holding the case
	// transaction, operating on the loaded application row.
	AdvanceInTx(ctx context.Context, app *model.Application, trigger string, actorID *uuid.UUID) (*AdvanceResult, error)

	Reject(ctx context.Context, applicationID uuid.UUID, comments string, actorID *uuid.UUID) (*AdvanceResult, error)
	RecordPayment(ctx context.Context, applicationID uuid.UUID, req RecordPaymentRequest, actorID *uuid.UUID) (*AdvanceResult, error)
	GetCaseStageInfo(ctx context.Context, applicationID uuid.UUID) (*CaseStageInfoResponse, error)
	ListApplications(ctx context.Context, status string, page, limit int) ([]ApplicationSummary, int64, error)
}

type workflowService struct {
	txm         repository.TransactionManager
	apps        repository.ApplicationRepository
	docs        repository.DocumentRepository
	audits      repository.AuditRepository
	assignments AssignmentService
}

func NewWorkflowService(
	txm repository.TransactionManager,
	apps repository.ApplicationRepository,
	docs repository.DocumentRepository,
	audits repository.AuditRepository,
	assignments AssignmentService,
) WorkflowService {
	return &workflowService{
		txm:         txm,
		apps:        apps,
		docs:        docs,
		audits:      audits,
		assignments: assignments,
	}
}

// --- Implementation ---

func (s *workflowService) Submit(ctx context.Context, req SubmitApplicationRequest) (*AdvanceResult, error) {
	if !model.ValidCategory(req.Category) {
		return nil, fmt.Errorf("%w: unknown category %q", apperrors.ErrValidationError, req.Category)
	}

	scrutinyFee, err := parseFee(req.ScrutinyFee)
	if err != nil {
		return nil, fmt.Errorf("%w: scrutiny_fee: %v", apperrors.ErrValidationError, err)
	}
	licenceFee, err := parseFee(req.LicenceFee)
	if err != nil {
		return nil, fmt.Errorf("%w: licence_fee: %v", apperrors.ErrValidationError, err)
	}

	var result *AdvanceResult
	err = s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		number, numErr := s.apps.NextApplicationNumber(txCtx)
		if numErr != nil {
			return fmt.Errorf("failed to generate application number: %w", numErr)
		}

		app := &model.Application{
			ApplicationNumber: number,
			ApplicantName:     req.ApplicantName,
			ApplicantEmail:    req.ApplicantEmail,
			ApplicantPhone:    req.ApplicantPhone,
			ApplicantAddress:  req.ApplicantAddress,
			Category:          req.Category,
			Status:            model.StatusJEPending,
			ScrutinyFee:       scrutinyFee,
			LicenceFee:        licenceFee,
		}
		if createErr := s.apps.Create(txCtx, app); createErr != nil {
			return fmt.Errorf("failed to create application: %w", createErr)
		}

		// The recommendation form placeholder is created up front so the
		// signing stages always have an artifact to operate on.
		doc := &model.Document{
			ApplicationID: app.ID,
			Type:          model.DocumentRecommendationForm,
			Content:       []byte{},
		}
		if docErr := s.docs.Create(txCtx, doc); docErr != nil {
			return fmt.Errorf("failed to create recommendation document: %w", docErr)
		}

		s.audit(txCtx, nil, model.ActionSubmitApplication, app, map[string]interface{}{
			"category": app.Category,
		})

		result = &AdvanceResult{
			ApplicationID:     app.ID,
			ApplicationNumber: app.ApplicationNumber,
			NewStatus:         app.Status,
			Message:           "application submitted",
		}

		// Junior engineer assignment on entry; no reviewer available is a
		// partial success, not a rollback.
		history, assignErr := s.assignments.AssignInTx(txCtx, app, model.StageJE, model.ActionAutoAssigned, "Automatic assignment on submission", nil)
		if assignErr != nil {
			if errors.Is(assignErr, apperrors.ErrNoEligibleReviewer) {
				log.Printf("WARNING: application %s submitted unassigned: %v", app.ApplicationNumber, assignErr)
				result.Unassigned = true
				result.Message = "application submitted; no junior engineer available for assignment"
				return nil
			}
			return assignErr
		}
		result.AssignedOfficerID = &history.OfficerID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *workflowService) Advance(ctx context.Context, applicationID uuid.UUID, trigger string, actorID *uuid.UUID) (*AdvanceResult, error) {
	var result *AdvanceResult
	err := s.txm.RunInCaseTx(ctx, applicationID, func(txCtx context.Context) error {
		app, findErr := s.apps.FindByID(txCtx, applicationID)
		if findErr != nil {
			return wrapNotFound(findErr, "application")
		}
		r, advErr := s.AdvanceInTx(txCtx, app, trigger, actorID)
		if advErr != nil {
			return advErr
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *workflowService) AdvanceInTx(ctx context.Context, app *model.Application, trigger string, actorID *uuid.UUID) (*AdvanceResult, error) {
	t, ok := transitions[trigger]
	if !ok {
		return nil, fmt.Errorf("%w: unknown trigger %q", apperrors.ErrValidationError, trigger)
	}
	if t.From == "" {
		return nil, fmt.Errorf("%w: %s is only valid at submission", apperrors.ErrInvalidTransition, trigger)
	}
	if app.Status != t.From {
		return nil, fmt.Errorf("%w: trigger %s expects status %s, application %s is %s",
			apperrors.ErrInvalidTransition, trigger, t.From, app.ApplicationNumber, app.Status)
	}
	if stage, gated := signatureGatedStages[trigger]; gated && !app.Stage(stage).SignatureApplied {
		return nil, fmt.Errorf("%w: trigger %s requires a completed %s signature on application %s",
			apperrors.ErrSignatureRequired, trigger, stage, app.ApplicationNumber)
	}

	previous := app.Status
	app.Status = t.To
	if err := s.apps.Update(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to persist status: %w", err)
	}

	s.audit(ctx, actorID, model.ActionAdvanceStatus, app, map[string]interface{}{
		"trigger": trigger,
		"from":    previous,
		"to":      app.Status,
	})

	result := &AdvanceResult{
		ApplicationID:     app.ID,
		ApplicationNumber: app.ApplicationNumber,
		PreviousStatus:    previous,
		NewStatus:         app.Status,
		Message:           fmt.Sprintf("advanced to %s", app.Status),
	}

	stage, needsReviewer := model.StageForStatus(app.Status)
	if !needsReviewer {
		return result, nil
	}

	history, assignErr := s.assignments.AssignInTx(ctx, app, stage, model.ActionAutoAssigned,
		fmt.Sprintf("Automatic assignment on %s", trigger), actorID)
	if assignErr != nil {
		if errors.Is(assignErr, apperrors.ErrNoEligibleReviewer) {
			// Partial success: the transition stands so waiting reviewers
			// still see the case once one becomes available.
			log.Printf("WARNING: application %s advanced to %s unassigned: %v", app.ApplicationNumber, app.Status, assignErr)
			result.Unassigned = true
			result.Message = fmt.Sprintf("advanced to %s; no eligible reviewer available", app.Status)
			return result, nil
		}
		return nil, assignErr
	}
	result.AssignedOfficerID = &history.OfficerID
	return result, nil
}

func (s *workflowService) Reject(ctx context.Context, applicationID uuid.UUID, comments string, actorID *uuid.UUID) (*AdvanceResult, error) {
	if strings.TrimSpace(comments) == "" {
		return nil, fmt.Errorf("%w: rejection comments are mandatory", apperrors.ErrValidationError)
	}

	var result *AdvanceResult
	err := s.txm.RunInCaseTx(ctx, applicationID, func(txCtx context.Context) error {
		app, findErr := s.apps.FindByID(txCtx, applicationID)
		if findErr != nil {
			return wrapNotFound(findErr, "application")
		}
		if model.TerminalStatus(app.Status) {
			return fmt.Errorf("%w: application %s is already %s", apperrors.ErrInvalidTransition, app.ApplicationNumber, app.Status)
		}

		previous := app.Status
		now := time.Now()

		// Stamp the rejection on the stage currently under review, when
		// there is one; payment-pending rejections carry no stage block.
		if _, stage := app.CurrentStage(); stage != nil {
			rejected := true
			stage.Rejected = &rejected
			stage.RejectionComments = comments
			stage.RejectedAt = &now
		}

		app.Status = model.StatusRejected
		if saveErr := s.apps.Update(txCtx, app); saveErr != nil {
			return fmt.Errorf("failed to persist rejection: %w", saveErr)
		}

		s.audit(txCtx, actorID, model.ActionRejectApplication, app, map[string]interface{}{
			"from":     previous,
			"comments": comments,
		})

		result = &AdvanceResult{
			ApplicationID:     app.ID,
			ApplicationNumber: app.ApplicationNumber,
			PreviousStatus:    previous,
			NewStatus:         app.Status,
			Message:           "application rejected",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *workflowService) RecordPayment(ctx context.Context, applicationID uuid.UUID, req RecordPaymentRequest, actorID *uuid.UUID) (*AdvanceResult, error) {
	var result *AdvanceResult
	err := s.txm.RunInCaseTx(ctx, applicationID, func(txCtx context.Context) error {
		app, findErr := s.apps.FindByID(txCtx, applicationID)
		if findErr != nil {
			return wrapNotFound(findErr, "application")
		}
		if app.Status != model.StatusPaymentPending {
			return fmt.Errorf("%w: payment can only be recorded in %s, application %s is %s",
				apperrors.ErrInvalidTransition, model.StatusPaymentPending, app.ApplicationNumber, app.Status)
		}

		now := time.Now()
		app.PaymentCompleted = true
		app.PaymentReference = req.Reference
		app.PaymentDate = &now
		if saveErr := s.apps.Update(txCtx, app); saveErr != nil {
			return fmt.Errorf("failed to record payment: %w", saveErr)
		}

		s.audit(txCtx, actorID, model.ActionRecordPayment, app, map[string]interface{}{
			"reference": req.Reference,
			"scrutiny":  app.ScrutinyFee.StringFixed(2),
			"licence":   app.LicenceFee.StringFixed(2),
		})

		r, advErr := s.AdvanceInTx(txCtx, app, TriggerPaymentCompleted, actorID)
		if advErr != nil {
			return advErr
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *workflowService) GetCaseStageInfo(ctx context.Context, applicationID uuid.UUID) (*CaseStageInfoResponse, error) {
	app, err := s.apps.FindByID(ctx, applicationID)
	if err != nil {
		return nil, wrapNotFound(err, "application")
	}

	stages := []string{
		model.StageJE, model.StageAE, model.StageEE, model.StageCE,
		model.StageClerk, model.StageEESign, model.StageCESign,
	}
	info := make([]StageInfo, 0, len(stages))
	for _, key := range stages {
		block := app.Stage(key)
		info = append(info, StageInfo{
			Stage:             key,
			OfficerID:         block.OfficerID,
			AssignedAt:        block.AssignedAt,
			Approved:          block.Approved,
			Rejected:          block.Rejected,
			SignatureApplied:  block.SignatureApplied,
			SignedAt:          block.SignedAt,
			ApprovalComments:  block.ApprovalComments,
			RejectionComments: block.RejectionComments,
		})
	}

	return &CaseStageInfoResponse{
		ApplicationID:     app.ID,
		ApplicationNumber: app.ApplicationNumber,
		ApplicantName:     app.ApplicantName,
		Category:          app.Category,
		Status:            app.Status,
		Stages:            info,
	}, nil
}

func (s *workflowService) ListApplications(ctx context.Context, status string, page, limit int) ([]ApplicationSummary, int64, error) {
	apps, total, err := s.apps.List(ctx, status, page, limit)
	if err != nil {
		return nil, 0, err
	}

	out := make([]ApplicationSummary, 0, len(apps))
	for _, app := range apps {
		out = append(out, ApplicationSummary{
			ID:                app.ID,
			ApplicationNumber: app.ApplicationNumber,
			ApplicantName:     app.ApplicantName,
			Category:          app.Category,
			Status:            app.Status,
			CreatedAt:         app.CreatedAt,
		})
	}
	return out, total, nil
}

// --- Helpers ---

func (s *workflowService) audit(ctx context.Context, actorID *uuid.UUID, action string, app *model.Application, details map[string]interface{}) {
	payload, _ := json.Marshal(details)
	entry := &model.AuditLog{
		OfficerID:  actorID,
		Action:     action,
		EntityID:   app.ID.String(),
		EntityName: app.ApplicationNumber,
		Details:    string(payload),
	}
	if err := s.audits.Log(ctx, entry); err != nil {
		log.Printf("WARNING: failed to write audit log for %s on %s: %v", action, app.ApplicationNumber, err)
	}
}

func parseFee(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func wrapNotFound(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, entity)
	}
	return err
}
