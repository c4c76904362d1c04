package service

import (
	"context"
	"testing"

	"github.com/yashturmbekar/PMCRMS-sub002/internal/model"
	"github.com/yashturmbekar/PMCRMS-sub002/pkg/apperrors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) initiate(t *testing.T, app *model.Application, officer *model.Officer) *SignatureAttemptResponse {
	t.Helper()
	attempt, err := f.signature.Initiate(context.Background(), app.ID, InitiateSignatureRequest{OfficerID: officer.ID.String()})
	require.NoError(t, err)
	return attempt
}

func TestRequestOtpNeedsSigningStage(t *testing.T) {
	f := newFixture()
	officer := f.officers.add("ravi", model.RoleEEArchitect, 80, "key-ravi")
	app := f.seedApp(model.StatusApproved)

	_, err := f.signature.RequestOtp(context.Background(), app.ID, officer.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestRequestOtpNeedsKeyLabel(t *testing.T) {
	f := newFixture()
	officer := f.officers.add("ravi", model.RoleEEArchitect, 80, "")
	app := f.seedAppAssigned(model.StatusEESignPending, officer)

	_, err := f.signature.RequestOtp(context.Background(), app.ID, officer.ID)
	assert.ErrorIs(t, err, apperrors.ErrKeyNotConfigured)
}

func TestRequestOtpRequiresStageAssignment(t *testing.T) {
	f := newFixture()
	assigned := f.officers.add("ravi", model.RoleEEArchitect, 80, "key-ravi")
	other := f.officers.add("anil", model.RoleEEArchitect, 60, "key-anil")
	app := f.seedAppAssigned(model.StatusEESignPending, assigned)

	_, err := f.signature.RequestOtp(context.Background(), app.ID, other.ID)
	assert.ErrorIs(t, err, apperrors.ErrRoleMismatch)
}

func TestRequestOtpStampsOpenAttempt(t *testing.T) {
	f := newFixture()
	officer := f.officers.add("ravi", model.RoleEEArchitect, 80, "key-ravi")
	app := f.seedAppAssigned(model.StatusEESignPending, officer)
	attempt := f.initiate(t, app, officer)

	resp, err := f.signature.RequestOtp(context.Background(), app.ID, officer.ID)
	require.NoError(t, err)
	assert.Contains(t, resp.TxnRef, "PMC-EE_SIGN-")

	stored, err := f.attempts.FindByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.OtpRequestedAt)
}

func TestInitiateCreatesInProgressAttempt(t *testing.T) {
	f := newFixture()
	officer := f.officers.add("ravi", model.RoleEEArchitect, 80, "key-ravi")
	app := f.seedAppAssigned(model.StatusEESignPending, officer)

	attempt := f.initiate(t, app, officer)
	assert.Equal(t, model.SignatureInProgress, attempt.Status)
	assert.Equal(t, model.StageEESign, attempt.StageKey)
	// Signing stages default to the licence certificate.
	assert.Equal(t, model.DocumentLicenceCertificate, attempt.DocumentType)
	assert.Equal(t, 0, attempt.RetryCount)
}

func TestInitiateBlockedByOpenAttempt(t *testing.T) {
	f := newFixture()
	officer := f.officers.add("ravi", model.RoleEEArchitect, 80, "key-ravi")
	app := f.seedAppAssigned(model.StatusEESignPending, officer)
	f.initiate(t, app, officer)

	_, err := f.signature.Initiate(context.Background(), app.ID, InitiateSignatureRequest{OfficerID: officer.ID.String()})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestInitiateNeedsReviewStage(t *testing.T) {
	f := newFixture()
	officer := f.officers.add("ravi", model.RoleEEArchitect, 80, "key-ravi")
	app := f.seedApp(model.StatusPaymentPending)

	_, err := f.signature.Initiate(context.Background(), app.ID, InitiateSignatureRequest{OfficerID: officer.ID.String()})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestInitiateRejectsInactiveOfficer(t *testing.T) {
	f := newFixture()
	officer := f.officers.add("ravi", model.RoleEEArchitect, 80, "key-ravi")
	app := f.seedAppAssigned(model.StatusEESignPending, officer)
	officer.Active = false

	_, err := f.signature.Initiate(context.Background(), app.ID, InitiateSignatureRequest{OfficerID: officer.ID.String()})
	assert.ErrorIs(t, err, apperrors.ErrRoleMismatch)
}

func TestInitiateRejectsUnassignedOfficer(t *testing.T) {
	f := newFixture()
	assigned := f.officers.add("ravi", model.RoleEEArchitect, 80, "key-ravi")
	other := f.officers.add("anil", model.RoleEEArchitect, 60, "key-anil")
	app := f.seedAppAssigned(model.StatusEESignPending, assigned)

	_, err := f.signature.Initiate(context.Background(), app.ID, InitiateSignatureRequest{OfficerID: other.ID.String()})
	assert.ErrorIs(t, err, apperrors.ErrRoleMismatch)
}

func TestCompleteSignsAndAdvances(t *testing.T) {
	f := newFixture()
	ee := f.officers.add("ravi", model.RoleEEArchitect, 80, "key-ravi")
	ce := f.officers.add("devika", model.RoleCEArchitect, 160, "key-devika")
	app := f.seedAppAssigned(model.StatusEESignPending, ee)
	attempt := f.initiate(t, app, ee)

	result, err := f.signature.Complete(context.Background(), attempt.ID, "123456", ee.ID)
	require.NoError(t, err)

	assert.Equal(t, model.SignatureCompleted, result.Attempt.Status)
	assert.Equal(t, model.StatusCESignPending, result.NewStatus)
	assert.False(t, result.Unassigned)
	assert.Equal(t, 2, result.DocumentVersion)

	// The stored certificate now holds the signed bytes.
	doc, err := f.docs.FindByType(context.Background(), app.ID, model.DocumentLicenceCertificate)
	require.NoError(t, err)
	assert.Equal(t, []byte("signed:certificate"), doc.Content)
	assert.Equal(t, 2, doc.Version)

	// Stage block stamped and the city engineer picked up the next stage.
	assert.True(t, app.EESign.SignatureApplied)
	require.NotNil(t, app.EESign.Approved)
	assert.True(t, *app.EESign.Approved)
	require.NotNil(t, app.CESign.OfficerID)
	assert.Equal(t, ce.ID, *app.CESign.OfficerID)
}

func TestCompleteFinalStageApproves(t *testing.T) {
	f := newFixture()
	ce := f.officers.add("devika", model.RoleCEArchitect, 160, "key-devika")
	app := f.seedAppAssigned(model.StatusCESignPending, ce)
	attempt := f.initiate(t, app, ce)

	result, err := f.signature.Complete(context.Background(), attempt.ID, "123456", ce.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, result.NewStatus)
	assert.Equal(t, model.StatusApproved, app.Status)
	assert.True(t, app.CESign.SignatureApplied)
}

func TestJuniorEngineerSigningLegAdvancesToAE(t *testing.T) {
	f := newFixture()
	je := f.officers.add("kiran", model.RoleJEArchitect, 12, "key-kiran")
	ae := f.officers.add("meera", model.RoleAEArchitect, 36, "")
	app := f.seedAppAssigned(model.StatusJEDocumentVerified, je)

	otp, err := f.signature.RequestOtp(context.Background(), app.ID, je.ID)
	require.NoError(t, err)
	assert.Contains(t, otp.TxnRef, "PMC-JE-")

	attempt := f.initiate(t, app, je)
	assert.Equal(t, model.StageJE, attempt.StageKey)
	// Review stages sign the recommendation form.
	assert.Equal(t, model.DocumentRecommendationForm, attempt.DocumentType)

	result, err := f.signature.Complete(context.Background(), attempt.ID, "123456", je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAEPending, result.NewStatus)
	assert.Equal(t, model.StatusAEPending, app.Status)
	assert.True(t, app.JE.SignatureApplied)
	require.NotNil(t, app.JE.Approved)
	assert.True(t, *app.JE.Approved)

	doc, err := f.docs.FindByType(context.Background(), app.ID, model.DocumentRecommendationForm)
	require.NoError(t, err)
	assert.Equal(t, []byte("signed:recommendation"), doc.Content)

	// The assistant engineer picked up the case.
	require.NotNil(t, app.AE.OfficerID)
	assert.Equal(t, ae.ID, *app.AE.OfficerID)
}

func TestCompleteBeforeDocumentsVerifiedRefused(t *testing.T) {
	f := newFixture()
	je := f.officers.add("kiran", model.RoleJEArchitect, 12, "key-kiran")
	app := f.seedAppAssigned(model.StatusJEAppointmentScheduled, je)
	attempt := f.initiate(t, app, je)

	_, err := f.signature.Complete(context.Background(), attempt.ID, "123456", je.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	// The HSM was never reached and the attempt stays open for after the
	// document check.
	assert.Equal(t, 0, f.gateway.signCalls)
	stored, findErr := f.attempts.FindByID(context.Background(), attempt.ID)
	require.NoError(t, findErr)
	assert.Equal(t, model.SignatureInProgress, stored.Status)
	assert.Equal(t, model.StatusJEAppointmentScheduled, app.Status)
}

func TestCompleteRequiresAssignedReviewer(t *testing.T) {
	f := newFixture()
	ee := f.officers.add("ravi", model.RoleEEArchitect, 80, "key-ravi")
	intruder := f.officers.add("anil", model.RoleEEArchitect, 60, "key-anil")
	app := f.seedAppAssigned(model.StatusEESignPending, ee)
	attempt := f.initiate(t, app, ee)

	_, err := f.signature.Complete(context.Background(), attempt.ID, "123456", intruder.ID)
	assert.ErrorIs(t, err, apperrors.ErrRoleMismatch)
	assert.Equal(t, 0, f.gateway.signCalls)
	assert.Equal(t, model.StatusEESignPending, app.Status)
	assert.False(t, app.EESign.SignatureApplied)
}

func TestCompleteGatewayFailureKeepsStatus(t *testing.T) {
	f := newFixture()
	ee := f.officers.add("ravi", model.RoleEEArchitect, 80, "key-ravi")
	app := f.seedAppAssigned(model.StatusEESignPending, ee)
	attempt := f.initiate(t, app, ee)

	f.gateway.signSuccess = false
	result, err := f.signature.Complete(context.Background(), attempt.ID, "000000", ee.ID)
	assert.ErrorIs(t, err, apperrors.ErrSigningFailed)

	// The failure itself committed: the attempt carries the mark even
	// though the call errored.
	require.NotNil(t, result)
	assert.Equal(t, model.SignatureFailed, result.Attempt.Status)
	assert.Equal(t, 1, result.Attempt.RetryCount)

	stored, findErr := f.attempts.FindByID(context.Background(), attempt.ID)
	require.NoError(t, findErr)
	assert.Equal(t, model.SignatureFailed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.True(t, stored.OtpUsed)

	// Status and document untouched.
	assert.Equal(t, model.StatusEESignPending, app.Status)
	doc, _ := f.docs.FindByType(context.Background(), app.ID, model.DocumentLicenceCertificate)
	assert.Equal(t, []byte("certificate"), doc.Content)
	assert.Equal(t, 1, doc.Version)
	assert.False(t, app.EESign.SignatureApplied)
}

func TestRetryResetsFailedAttempt(t *testing.T) {
	f := newFixture()
	ee := f.officers.add("ravi", model.RoleEEArchitect, 80, "key-ravi")
	app := f.seedAppAssigned(model.StatusEESignPending, ee)
	attempt := f.initiate(t, app, ee)

	f.gateway.signSuccess = false
	_, err := f.signature.Complete(context.Background(), attempt.ID, "000000", ee.ID)
	require.ErrorIs(t, err, apperrors.ErrSigningFailed)

	reset, err := f.signature.Retry(context.Background(), attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SignatureInProgress, reset.Status)
	assert.Equal(t, 1, reset.RetryCount)

	// Second pass succeeds with a fresh OTP.
	f.gateway.signSuccess = true
	result, err := f.signature.Complete(context.Background(), attempt.ID, "654321", ee.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SignatureCompleted, result.Attempt.Status)
	assert.Equal(t, "654321", f.gateway.lastOtp)
}

func TestRetryExhaustedAfterCap(t *testing.T) {
	f := newFixture()
	ee := f.officers.add("ravi", model.RoleEEArchitect, 80, "key-ravi")
	app := f.seedAppAssigned(model.StatusEESignPending, ee)
	attempt := f.initiate(t, app, ee)

	f.gateway.signSuccess = false
	for i := 0; i < model.MaxSignatureRetries; i++ {
		_, err := f.signature.Complete(context.Background(), attempt.ID, "000000", ee.ID)
		require.ErrorIs(t, err, apperrors.ErrSigningFailed, "attempt %d", i+1)
		if i < model.MaxSignatureRetries-1 {
			_, err = f.signature.Retry(context.Background(), attempt.ID)
			require.NoError(t, err)
		}
	}

	_, err := f.signature.Retry(context.Background(), attempt.ID)
	assert.ErrorIs(t, err, apperrors.ErrRetryExhausted)
	_, err = f.signature.Complete(context.Background(), attempt.ID, "000000", ee.ID)
	assert.ErrorIs(t, err, apperrors.ErrRetryExhausted)
}

func TestRetryOnlyAppliesToFailedAttempts(t *testing.T) {
	f := newFixture()
	ee := f.officers.add("ravi", model.RoleEEArchitect, 80, "key-ravi")
	app := f.seedAppAssigned(model.StatusEESignPending, ee)
	attempt := f.initiate(t, app, ee)

	_, err := f.signature.Retry(context.Background(), attempt.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestAbandonReleasesStageWithoutConsumingRetry(t *testing.T) {
	f := newFixture()
	ee := f.officers.add("ravi", model.RoleEEArchitect, 80, "key-ravi")
	app := f.seedAppAssigned(model.StatusEESignPending, ee)
	attempt := f.initiate(t, app, ee)

	err := f.signature.Abandon(context.Background(), attempt.ID, ee.ID)
	require.NoError(t, err)

	stored, findErr := f.attempts.FindByID(context.Background(), attempt.ID)
	require.NoError(t, findErr)
	assert.Equal(t, model.SignatureFailed, stored.Status)
	assert.Equal(t, 0, stored.RetryCount)

	// The stage is free for a fresh attempt.
	fresh := f.initiate(t, app, ee)
	assert.NotEqual(t, attempt.ID, fresh.ID)
}

func TestAbandonRequiresInProgress(t *testing.T) {
	f := newFixture()
	ce := f.officers.add("devika", model.RoleCEArchitect, 160, "key-devika")
	app := f.seedAppAssigned(model.StatusCESignPending, ce)
	attempt := f.initiate(t, app, ce)

	_, err := f.signature.Complete(context.Background(), attempt.ID, "123456", ce.ID)
	require.NoError(t, err)

	err = f.signature.Abandon(context.Background(), attempt.ID, ce.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestCompleteUnknownAttempt(t *testing.T) {
	f := newFixture()

	_, err := f.signature.Complete(context.Background(), uuid.New(), "123456", uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListAttemptsReturnsTrail(t *testing.T) {
	f := newFixture()
	ee := f.officers.add("ravi", model.RoleEEArchitect, 80, "key-ravi")
	app := f.seedAppAssigned(model.StatusEESignPending, ee)
	attempt := f.initiate(t, app, ee)

	f.gateway.signSuccess = false
	_, _ = f.signature.Complete(context.Background(), attempt.ID, "000000", ee.ID)

	trail, err := f.signature.ListAttempts(context.Background(), app.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, model.SignatureFailed, trail[0].Status)
	assert.Equal(t, 1, trail[0].RetryCount)
}
