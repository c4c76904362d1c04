package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleForCoversEveryTierCategoryPair(t *testing.T) {
	categories := []string{
		CategoryArchitect, CategoryStructuralEngineer, CategoryLicensedEngineer,
		CategoryLicensedSupervisor, CategoryLicensedPlumber,
	}
	tiers := []string{
		TierJuniorEngineer, TierAssistantEngineer, TierExecutiveEngineer, TierCityEngineer,
	}

	seen := map[string]bool{}
	for _, tier := range tiers {
		for _, category := range categories {
			role, ok := RoleFor(category, tier)
			assert.True(t, ok, "no role for %s/%s", tier, category)
			assert.False(t, seen[role], "role %s resolved twice", role)
			seen[role] = true

			back, ok := TierOf(role)
			assert.True(t, ok)
			assert.Equal(t, tier, back, "round trip for %s", role)
		}
	}
	assert.Len(t, seen, 20)
}

func TestRoleForClerkIgnoresCategory(t *testing.T) {
	for _, category := range []string{CategoryArchitect, CategoryLicensedPlumber, "anything"} {
		role, ok := RoleFor(category, TierClerk)
		assert.True(t, ok)
		assert.Equal(t, RoleClerk, role)
	}
}

func TestRoleForUnknownInputs(t *testing.T) {
	_, ok := RoleFor(CategoryArchitect, "SUPERINTENDENT")
	assert.False(t, ok)

	_, ok = RoleFor("ASTROLOGER", TierJuniorEngineer)
	assert.False(t, ok)
}

func TestTierOfUnknownRole(t *testing.T) {
	_, ok := TierOf("JE_ASTROLOGER")
	assert.False(t, ok)
}

func TestValidCategory(t *testing.T) {
	assert.True(t, ValidCategory(CategoryStructuralEngineer))
	assert.False(t, ValidCategory("architect")) // case sensitive
	assert.False(t, ValidCategory(""))
}

func TestTierForStageSigningStagesReuseSeniorTiers(t *testing.T) {
	cases := map[string]string{
		StageJE:     TierJuniorEngineer,
		StageAE:     TierAssistantEngineer,
		StageEE:     TierExecutiveEngineer,
		StageCE:     TierCityEngineer,
		StageClerk:  TierClerk,
		StageEESign: TierExecutiveEngineer,
		StageCESign: TierCityEngineer,
	}
	for stage, want := range cases {
		tier, ok := TierForStage(stage)
		assert.True(t, ok, stage)
		assert.Equal(t, want, tier, stage)
	}

	_, ok := TierForStage("SE")
	assert.False(t, ok)
}

func TestStageForStatusOnlyReviewStatuses(t *testing.T) {
	stage, ok := StageForStatus(StatusEESignPending)
	assert.True(t, ok)
	assert.Equal(t, StageEESign, stage)

	for _, status := range []string{
		StatusJEAppointmentScheduled, StatusJEDocumentVerified,
		StatusPaymentPending, StatusApproved, StatusRejected,
	} {
		_, ok := StageForStatus(status)
		assert.False(t, ok, status)
	}
}

func TestSigningStageForStatusCoversJESubStates(t *testing.T) {
	// The JE signature is applied during the site-visit sub-states, which
	// carry no fresh assignment of their own.
	for _, status := range []string{StatusJEAppointmentScheduled, StatusJEDocumentVerified} {
		stage, ok := SigningStageForStatus(status)
		assert.True(t, ok, status)
		assert.Equal(t, StageJE, stage, status)
	}

	// The review statuses sign for the same stage they assign for.
	for status, want := range map[string]string{
		StatusAEPending:     StageAE,
		StatusEEPending:     StageEE,
		StatusCEPending:     StageCE,
		StatusClerkPending:  StageClerk,
		StatusEESignPending: StageEESign,
		StatusCESignPending: StageCESign,
	} {
		stage, ok := SigningStageForStatus(status)
		assert.True(t, ok, status)
		assert.Equal(t, want, stage, status)
	}

	for _, status := range []string{StatusJEPending, StatusPaymentPending, StatusApproved, StatusRejected} {
		_, ok := SigningStageForStatus(status)
		assert.False(t, ok, status)
	}
}

func TestApplicationStageLookup(t *testing.T) {
	app := &Application{Status: StatusCEPending}

	stage, review := app.CurrentStage()
	assert.Equal(t, StageCE, stage)
	assert.Same(t, &app.CE, review)

	assert.Same(t, &app.EESign, app.Stage(StageEESign))
	assert.Nil(t, app.Stage("UNKNOWN"))

	app.Status = StatusApproved
	stage, review = app.CurrentStage()
	assert.Empty(t, stage)
	assert.Nil(t, review)
}

func TestTerminalStatus(t *testing.T) {
	assert.True(t, TerminalStatus(StatusApproved))
	assert.True(t, TerminalStatus(StatusRejected))
	assert.False(t, TerminalStatus(StatusCESignPending))
}
