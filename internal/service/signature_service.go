package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/yashturmbekar/PMCRMS-sub002/internal/hsm"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/model"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/repository"
	"github.com/yashturmbekar/PMCRMS-sub002/pkg/apperrors"

	"github.com/google/uuid"
)

// StampConfig maps each signing stage to the stamp position for its
// signature visual. Purely a rendering detail: coordinates never influence
// whether signing succeeds.
type StampConfig map[string]hsm.Coordinates

// DefaultStampConfig places recommendation signatures down the right
// margin in chain order and certificate signatures at the foot of the
// licence.
func DefaultStampConfig() StampConfig {
	return StampConfig{
		model.StageJE:     {Page: 1, X: 420, Y: 640, Width: 140, Height: 60},
		model.StageAE:     {Page: 1, X: 420, Y: 560, Width: 140, Height: 60},
		model.StageEE:     {Page: 1, X: 420, Y: 480, Width: 140, Height: 60},
		model.StageCE:     {Page: 1, X: 420, Y: 400, Width: 140, Height: 60},
		model.StageClerk:  {Page: 1, X: 420, Y: 320, Width: 140, Height: 60},
		model.StageEESign: {Page: 1, X: 120, Y: 160, Width: 160, Height: 70},
		model.StageCESign: {Page: 1, X: 360, Y: 160, Width: 160, Height: 70},
	}
}

// --- DTOs ---

type InitiateSignatureRequest struct {
	OfficerID    string `json:"officer_id" binding:"required"`
	DocumentType string `json:"document_type"`
}

type CompleteSignatureRequest struct {
	Otp string `json:"otp" binding:"required"`
}

type OtpResponse struct {
	ApplicationID uuid.UUID `json:"application_id"`
	TxnRef        string    `json:"txn_ref"`
	Message       string    `json:"message"`
}

type SignatureAttemptResponse struct {
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"application_id"`
	StageKey      string    `json:"stage_key"`
	OfficerID     uuid.UUID `json:"officer_id"`
	Status        string    `json:"status"`
	DocumentType  string    `json:"document_type"`
	RetryCount    int       `json:"retry_count"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

type CompleteSignatureResponse struct {
	Attempt         SignatureAttemptResponse `json:"attempt"`
	NewStatus       string                   `json:"new_status"`
	Unassigned      bool                     `json:"unassigned"`
	DocumentVersion int                      `json:"document_version"`
	Message         string                   `json:"message"`
}

// --- Interface ---

// SignatureService drives the four-step HSM signing protocol for one stage
// of an application and advances the state machine on success.
type SignatureService interface {
	RequestOtp(ctx context.Context, applicationID, officerID uuid.UUID) (*OtpResponse, error)
	Initiate(ctx context.Context, applicationID uuid.UUID, req InitiateSignatureRequest) (*SignatureAttemptResponse, error)
	Complete(ctx context.Context, attemptID uuid.UUID, otp string, completedBy uuid.UUID) (*CompleteSignatureResponse, error)

	// Retry resets a FAILED attempt under the cap back to IN_PROGRESS so
	// Complete can be re-invoked with a fresh OTP.
	Retry(ctx context.Context, attemptID uuid.UUID) (*SignatureAttemptResponse, error)

	// Abandon marks a stale IN_PROGRESS attempt FAILED without consuming
	// a retry, releasing the stage for a fresh Initiate.
	Abandon(ctx context.Context, attemptID uuid.UUID, by uuid.UUID) error

	ListAttempts(ctx context.Context, applicationID uuid.UUID) ([]SignatureAttemptResponse, error)
}

type signatureService struct {
	txm      repository.TransactionManager
	apps     repository.ApplicationRepository
	officers repository.OfficerRepository
	attempts repository.SignatureAttemptRepository
	docs     repository.DocumentRepository
	audits   repository.AuditRepository
	gateway  hsm.Gateway
	workflow WorkflowService
	stamps   StampConfig
}

func NewSignatureService(
	txm repository.TransactionManager,
	apps repository.ApplicationRepository,
	officers repository.OfficerRepository,
	attempts repository.SignatureAttemptRepository,
	docs repository.DocumentRepository,
	audits repository.AuditRepository,
	gateway hsm.Gateway,
	workflow WorkflowService,
	stamps StampConfig,
) SignatureService {
	if stamps == nil {
		stamps = DefaultStampConfig()
	}
	return &signatureService{
		txm:      txm,
		apps:     apps,
		officers: officers,
		attempts: attempts,
		docs:     docs,
		audits:   audits,
		gateway:  gateway,
		workflow: workflow,
		stamps:   stamps,
	}
}

// --- Implementation ---

func (s *signatureService) RequestOtp(ctx context.Context, applicationID, officerID uuid.UUID) (*OtpResponse, error) {
	app, err := s.apps.FindByID(ctx, applicationID)
	if err != nil {
		return nil, wrapNotFound(err, "application")
	}
	stage, ok := model.SigningStageForStatus(app.Status)
	if !ok {
		return nil, fmt.Errorf("%w: application %s is in %s, no stage awaits a signature",
			apperrors.ErrInvalidState, app.ApplicationNumber, app.Status)
	}

	officer, err := s.officers.GetByID(ctx, officerID)
	if err != nil {
		return nil, wrapNotFound(err, "officer")
	}
	if err := assignedReviewer(app, stage, officer.ID); err != nil {
		return nil, err
	}
	if officer.HSMKeyLabel == "" {
		return nil, fmt.Errorf("%w: officer %s", apperrors.ErrKeyNotConfigured, officer.Name)
	}

	txnRef := signTxnRef(app.ID, stage)
	result, err := s.gateway.RequestOtp(ctx, txnRef, officer.HSMKeyLabel)
	if err != nil {
		return nil, err
	}

	// Stamp the OTP request on the open attempt when one exists; OTP may
	// also be requested before Initiate.
	if attempt, findErr := s.attempts.FindBlocking(ctx, app.ID, stage); findErr == nil &&
		attempt != nil && attempt.Status == model.SignatureInProgress {
		now := time.Now()
		attempt.OtpRequestedAt = &now
		attempt.HSMTxnRef = txnRef
		if updErr := s.attempts.Update(ctx, attempt); updErr != nil {
			log.Printf("WARNING: failed to stamp OTP request on attempt %s: %v", attempt.ID, updErr)
		}
	}

	s.audit(ctx, &officerID, model.ActionRequestSignOtp, app, map[string]interface{}{
		"stage":   stage,
		"txn_ref": txnRef,
	})

	return &OtpResponse{
		ApplicationID: app.ID,
		TxnRef:        txnRef,
		Message:       result.Message,
	}, nil
}

func (s *signatureService) Initiate(ctx context.Context, applicationID uuid.UUID, req InitiateSignatureRequest) (*SignatureAttemptResponse, error) {
	officerID, err := uuid.Parse(req.OfficerID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid officer id", apperrors.ErrValidationError)
	}

	var response *SignatureAttemptResponse
	err = s.txm.RunInCaseTx(ctx, applicationID, func(txCtx context.Context) error {
		app, findErr := s.apps.FindByID(txCtx, applicationID)
		if findErr != nil {
			return wrapNotFound(findErr, "application")
		}
		stage, ok := model.SigningStageForStatus(app.Status)
		if !ok {
			return fmt.Errorf("%w: application %s is in %s, no stage awaits a signature",
				apperrors.ErrInvalidState, app.ApplicationNumber, app.Status)
		}

		officer, offErr := s.officers.GetByID(txCtx, officerID)
		if offErr != nil {
			return wrapNotFound(offErr, "officer")
		}
		if !officer.Active {
			return fmt.Errorf("%w: officer %s is inactive", apperrors.ErrRoleMismatch, officer.Name)
		}
		if assignErr := assignedReviewer(app, stage, officer.ID); assignErr != nil {
			return assignErr
		}

		docType := req.DocumentType
		if docType == "" {
			docType = defaultDocumentType(stage)
		}
		if _, docErr := s.docs.FindByType(txCtx, app.ID, docType); docErr != nil {
			return wrapNotFound(docErr, fmt.Sprintf("document %s", docType))
		}

		blocking, blockErr := s.attempts.FindBlocking(txCtx, app.ID, stage)
		if blockErr != nil {
			return fmt.Errorf("failed to check existing attempts: %w", blockErr)
		}
		if blocking != nil {
			return fmt.Errorf("%w: attempt %s for stage %s is already %s",
				apperrors.ErrInvalidState, blocking.ID, stage, blocking.Status)
		}

		attempt := &model.SignatureAttempt{
			ApplicationID: app.ID,
			StageKey:      stage,
			OfficerID:     officer.ID,
			Status:        model.SignatureInProgress,
			DocumentType:  docType,
			HSMTxnRef:     signTxnRef(app.ID, stage),
		}
		if createErr := s.attempts.Create(txCtx, attempt); createErr != nil {
			return fmt.Errorf("failed to create signature attempt: %w", createErr)
		}

		s.audit(txCtx, &officerID, model.ActionInitiateSignature, app, map[string]interface{}{
			"stage":    stage,
			"attempt":  attempt.ID.String(),
			"document": docType,
		})

		response = toAttemptResponse(attempt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

func (s *signatureService) Complete(ctx context.Context, attemptID uuid.UUID, otp string, completedBy uuid.UUID) (*CompleteSignatureResponse, error) {
	// Resolve the case id first so the whole completion runs under the
	// per-case lock.
	probe, err := s.attempts.FindByID(ctx, attemptID)
	if err != nil {
		return nil, wrapNotFound(err, "signature attempt")
	}

	var response *CompleteSignatureResponse
	var signErr error
	err = s.txm.RunInCaseTx(ctx, probe.ApplicationID, func(txCtx context.Context) error {
		attempt, findErr := s.attempts.FindByID(txCtx, attemptID)
		if findErr != nil {
			return wrapNotFound(findErr, "signature attempt")
		}

		if attempt.Status == model.SignatureFailed && attempt.RetryCount >= model.MaxSignatureRetries {
			return fmt.Errorf("%w: attempt %s failed %d times, initiate a new attempt",
				apperrors.ErrRetryExhausted, attempt.ID, attempt.RetryCount)
		}
		if attempt.Status != model.SignatureInProgress {
			return fmt.Errorf("%w: attempt %s is %s, only IN_PROGRESS attempts may complete",
				apperrors.ErrInvalidState, attempt.ID, attempt.Status)
		}

		app, appErr := s.apps.FindByID(txCtx, attempt.ApplicationID)
		if appErr != nil {
			return wrapNotFound(appErr, "application")
		}
		if assignErr := assignedReviewer(app, attempt.StageKey, completedBy); assignErr != nil {
			return assignErr
		}

		// The completion must be checked against the state machine before
		// the HSM call: a rollback after a successful Sign would discard a
		// document the HSM already signed.
		trigger, ok := TriggerForStage(attempt.StageKey)
		if !ok || transitions[trigger].From != app.Status {
			return fmt.Errorf("%w: stage %s cannot complete while application %s is %s",
				apperrors.ErrInvalidTransition, attempt.StageKey, app.ApplicationNumber, app.Status)
		}

		officer, offErr := s.officers.GetByID(txCtx, attempt.OfficerID)
		if offErr != nil {
			return wrapNotFound(offErr, "officer")
		}
		if officer.HSMKeyLabel == "" {
			return fmt.Errorf("%w: officer %s", apperrors.ErrKeyNotConfigured, officer.Name)
		}

		doc, docErr := s.docs.FindByType(txCtx, app.ID, attempt.DocumentType)
		if docErr != nil {
			return wrapNotFound(docErr, fmt.Sprintf("document %s", attempt.DocumentType))
		}

		result, gwErr := s.gateway.Sign(txCtx, attempt.HSMTxnRef, officer.HSMKeyLabel, doc.Content, otp, s.stamps[attempt.StageKey])
		if gwErr != nil || result == nil || !result.Success {
			// The failure mark must survive the rollback-free path: only
			// the attempt row changes, then the transaction commits and
			// the signing error is reported out-of-band.
			attempt.Status = model.SignatureFailed
			attempt.RetryCount++
			attempt.OtpUsed = true
			if gwErr != nil {
				attempt.FailureReason = gwErr.Error()
			} else {
				attempt.FailureReason = "gateway reported failure"
			}
			if updErr := s.attempts.Update(txCtx, attempt); updErr != nil {
				return fmt.Errorf("failed to record signing failure: %w", updErr)
			}
			signErr = fmt.Errorf("%w: attempt %s retry %d of %d",
				apperrors.ErrSigningFailed, attempt.ID, attempt.RetryCount, model.MaxSignatureRetries)
			if gwErr != nil {
				signErr = fmt.Errorf("%v: %w", signErr, gwErr)
			}
			response = &CompleteSignatureResponse{
				Attempt:   *toAttemptResponse(attempt),
				NewStatus: app.Status,
				Message:   "signing failed",
			}
			return nil
		}

		if replaceErr := s.docs.ReplaceContent(txCtx, doc, result.SignedBytes); replaceErr != nil {
			return fmt.Errorf("failed to store signed document: %w", replaceErr)
		}

		now := time.Now()
		duration := now.Sub(attempt.InitiatedAt).Seconds()
		attempt.Status = model.SignatureCompleted
		attempt.OtpUsed = true
		attempt.CompletedAt = &now
		attempt.DurationSeconds = &duration
		attempt.SignedDocument = &doc.ID
		if updErr := s.attempts.Update(txCtx, attempt); updErr != nil {
			return fmt.Errorf("failed to complete signature attempt: %w", updErr)
		}

		approved := true
		block := app.Stage(attempt.StageKey)
		block.Approved = &approved
		block.ApprovedAt = &now
		block.SignatureApplied = true
		block.SignedAt = &now
		if saveErr := s.apps.Update(txCtx, app); saveErr != nil {
			return fmt.Errorf("failed to stamp stage signature: %w", saveErr)
		}

		advance, advErr := s.workflow.AdvanceInTx(txCtx, app, trigger, &completedBy)
		if advErr != nil {
			return advErr
		}

		s.audit(txCtx, &completedBy, model.ActionCompleteSignature, app, map[string]interface{}{
			"stage":      attempt.StageKey,
			"attempt":    attempt.ID.String(),
			"new_status": advance.NewStatus,
		})

		response = &CompleteSignatureResponse{
			Attempt:         *toAttemptResponse(attempt),
			NewStatus:       advance.NewStatus,
			Unassigned:      advance.Unassigned,
			DocumentVersion: doc.Version,
			Message:         fmt.Sprintf("signature applied, application advanced to %s", advance.NewStatus),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if signErr != nil {
		return response, signErr
	}
	return response, nil
}

func (s *signatureService) Retry(ctx context.Context, attemptID uuid.UUID) (*SignatureAttemptResponse, error) {
	probe, err := s.attempts.FindByID(ctx, attemptID)
	if err != nil {
		return nil, wrapNotFound(err, "signature attempt")
	}

	var response *SignatureAttemptResponse
	err = s.txm.RunInCaseTx(ctx, probe.ApplicationID, func(txCtx context.Context) error {
		attempt, findErr := s.attempts.FindByID(txCtx, attemptID)
		if findErr != nil {
			return wrapNotFound(findErr, "signature attempt")
		}
		if attempt.Status != model.SignatureFailed {
			return fmt.Errorf("%w: only FAILED attempts may be retried, attempt %s is %s",
				apperrors.ErrInvalidState, attempt.ID, attempt.Status)
		}
		if attempt.RetryCount >= model.MaxSignatureRetries {
			return fmt.Errorf("%w: attempt %s failed %d times, initiate a new attempt",
				apperrors.ErrRetryExhausted, attempt.ID, attempt.RetryCount)
		}

		attempt.Status = model.SignatureInProgress
		attempt.OtpUsed = false
		if updErr := s.attempts.Update(txCtx, attempt); updErr != nil {
			return fmt.Errorf("failed to reset attempt: %w", updErr)
		}
		response = toAttemptResponse(attempt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

func (s *signatureService) Abandon(ctx context.Context, attemptID uuid.UUID, by uuid.UUID) error {
	probe, err := s.attempts.FindByID(ctx, attemptID)
	if err != nil {
		return wrapNotFound(err, "signature attempt")
	}

	return s.txm.RunInCaseTx(ctx, probe.ApplicationID, func(txCtx context.Context) error {
		attempt, findErr := s.attempts.FindByID(txCtx, attemptID)
		if findErr != nil {
			return wrapNotFound(findErr, "signature attempt")
		}
		if attempt.Status != model.SignatureInProgress {
			return fmt.Errorf("%w: only IN_PROGRESS attempts may be abandoned, attempt %s is %s",
				apperrors.ErrInvalidState, attempt.ID, attempt.Status)
		}

		// Abandonment does not consume a retry: the officer walked away,
		// the HSM never rejected anything.
		attempt.Status = model.SignatureFailed
		attempt.FailureReason = "abandoned by officer"
		if updErr := s.attempts.Update(txCtx, attempt); updErr != nil {
			return fmt.Errorf("failed to abandon attempt: %w", updErr)
		}

		app, appErr := s.apps.FindByID(txCtx, attempt.ApplicationID)
		if appErr == nil {
			s.audit(txCtx, &by, model.ActionAbandonSignature, app, map[string]interface{}{
				"stage":   attempt.StageKey,
				"attempt": attempt.ID.String(),
			})
		}
		return nil
	})
}

func (s *signatureService) ListAttempts(ctx context.Context, applicationID uuid.UUID) ([]SignatureAttemptResponse, error) {
	attempts, err := s.attempts.ListForApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	result := make([]SignatureAttemptResponse, 0, len(attempts))
	for i := range attempts {
		result = append(result, *toAttemptResponse(&attempts[i]))
	}
	return result, nil
}

// --- Helpers ---

// assignedReviewer verifies the officer holds the stage's assignment.
// Signing is personal: only the reviewer the case was routed to may
// request an OTP, open an attempt or complete one.
func assignedReviewer(app *model.Application, stage string, officerID uuid.UUID) error {
	block := app.Stage(stage)
	if block == nil || block.OfficerID == nil || *block.OfficerID != officerID {
		return fmt.Errorf("%w: stage %s of application %s is not assigned to officer %s",
			apperrors.ErrRoleMismatch, stage, app.ApplicationNumber, officerID)
	}
	return nil
}

func signTxnRef(applicationID uuid.UUID, stage string) string {
	return fmt.Sprintf("PMC-%s-%s", stage, applicationID)
}

func defaultDocumentType(stage string) string {
	if stage == model.StageEESign || stage == model.StageCESign {
		return model.DocumentLicenceCertificate
	}
	return model.DocumentRecommendationForm
}

func toAttemptResponse(a *model.SignatureAttempt) *SignatureAttemptResponse {
	return &SignatureAttemptResponse{
		ID:            a.ID,
		ApplicationID: a.ApplicationID,
		StageKey:      a.StageKey,
		OfficerID:     a.OfficerID,
		Status:        a.Status,
		DocumentType:  a.DocumentType,
		RetryCount:    a.RetryCount,
		FailureReason: a.FailureReason,
	}
}

func (s *signatureService) audit(ctx context.Context, actorID *uuid.UUID, action string, app *model.Application, details map[string]interface{}) {
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
