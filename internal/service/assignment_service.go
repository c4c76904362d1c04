package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yashturmbekar/PMCRMS-sub002/internal/model"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/repository"
	"github.com/yashturmbekar/PMCRMS-sub002/pkg/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type AssignRequest struct {
	Tier   string `json:"tier" binding:"required"`
	Reason string `json:"reason"`
}

type ReassignRequest struct {
	NewOfficerID string `json:"new_officer_id" binding:"required"`
	Reason       string `json:"reason" binding:"required"`
}

type EscalateRequest struct {
	Reason string `json:"reason"`
}

type AssignmentHistoryResponse struct {
	ID                   uuid.UUID  `json:"id"`
	ApplicationID        uuid.UUID  `json:"application_id"`
	PreviousOfficerID    *uuid.UUID `json:"previous_officer_id"`
	OfficerID            uuid.UUID  `json:"officer_id"`
	OfficerName          string     `json:"officer_name,omitempty"`
	Action               string     `json:"action"`
	Reason               string     `json:"reason"`
	WorkloadAtAssignment int        `json:"workload_at_assignment"`
	StrategyUsed         string     `json:"strategy_used"`
	StatusAtAssignment   string     `json:"status_at_assignment"`
	IsActive             bool       `json:"is_active"`
	AssignedAt           string     `json:"assigned_at"`
	DurationHours        *float64   `json:"duration_hours"`
}

// --- Interface ---

// AssignmentService selects reviewers for cases, keeps the assignment
// audit trail, and escalates stalled cases.
type AssignmentService interface {
	// SelectOfficer picks an officer for the tier under the given
	// strategy without committing anything. Selection is deterministic:
	// the same workload snapshot always yields the same officer.
	SelectOfficer(ctx context.Context, category, tier, strategy string) (*model.Officer, error)

	Assign(ctx context.Context, applicationID uuid.UUID, tier, reason string, assignedBy *uuid.UUID) (*model.AssignmentHistory, error)

	// AssignInTx performs the assignment inside an already-open case
	// transaction. The workflow and signature services call this while
	// holding the per-case lock.
	AssignInTx(ctx context.Context, app *model.Application, stage, action, reason string, assignedBy *uuid.UUID) (*model.AssignmentHistory, error)

	Reassign(ctx context.Context, applicationID, newOfficerID uuid.UUID, reason string, by *uuid.UUID) (*model.AssignmentHistory, error)
	Escalate(ctx context.Context, applicationID uuid.UUID, reason string) (*model.AssignmentHistory, error)

	// FindEscalationCandidates scans every rule carrying escalation
	// config and returns the ids of cases whose time in stage exceeds the
	// threshold. Scanning failures for one rule do not abort the rest.
	FindEscalationCandidates(ctx context.Context) ([]uuid.UUID, error)

	History(ctx context.Context, applicationID uuid.UUID) ([]AssignmentHistoryResponse, error)
}

type assignmentService struct {
	txm      repository.TransactionManager
	apps     repository.ApplicationRepository
	officers repository.OfficerRepository
	rules    repository.AssignmentRuleRepository
	history  repository.AssignmentHistoryRepository
	outbox   repository.OutboxRepository
	audits   repository.AuditRepository
}

func NewAssignmentService(
	txm repository.TransactionManager,
	apps repository.ApplicationRepository,
	officers repository.OfficerRepository,
	rules repository.AssignmentRuleRepository,
	history repository.AssignmentHistoryRepository,
	outbox repository.OutboxRepository,
	audits repository.AuditRepository,
) AssignmentService {
	return &assignmentService{
		txm:      txm,
		apps:     apps,
		officers: officers,
		rules:    rules,
		history:  history,
		outbox:   outbox,
		audits:   audits,
	}
}

// --- Selection strategies ---

// selection is one strategy's pick plus the round-robin cursor position
// when that strategy was used.
type selection struct {
	officer     model.Officer
	cursorIndex int
	workload    int
}

// selectForStrategy applies the strategy to the officer list. officers must
// already be in stable id order; workloads holds the open-case snapshot.
func selectForStrategy(strategy string, officers []model.Officer, workloads map[uuid.UUID]int, rule *model.AssignmentRule) selection {
	switch strategy {
	case model.StrategyRoundRobin:
		return selectRoundRobin(officers, workloads, rule)
	case model.StrategyPriorityBased:
		return selectPriorityBased(officers, workloads)
	case model.StrategySkillBased:
		// Skill metadata is not modeled yet; SKILL_BASED intentionally
		// behaves as WORKLOAD_BASED until it is.
		return selectWorkloadBased(officers, workloads)
	default:
		return selectWorkloadBased(officers, workloads)
	}
}

// selectRoundRobin advances the persisted cursor to the next officer in id
// order, wrapping past the end. An unset cursor, or one pointing at an
// officer no longer in the active list, falls back to the first officer.
func selectRoundRobin(officers []model.Officer, workloads map[uuid.UUID]int, rule *model.AssignmentRule) selection {
	next := 0
	if rule != nil && rule.LastRoundRobinOfficerID != nil {
		for i, o := range officers {
			if o.ID == *rule.LastRoundRobinOfficerID {
				next = (i + 1) % len(officers)
				break
			}
		}
	}
	chosen := officers[next]
	return selection{officer: chosen, cursorIndex: next, workload: workloads[chosen.ID]}
}

// selectWorkloadBased returns the officer with the fewest open cases, ties
// broken by first-encountered order.
func selectWorkloadBased(officers []model.Officer, workloads map[uuid.UUID]int) selection {
	best := 0
	for i := 1; i < len(officers); i++ {
		if workloads[officers[i].ID] < workloads[officers[best].ID] {
			best = i
		}
	}
	chosen := officers[best]
	return selection{officer: chosen, cursorIndex: best, workload: workloads[chosen.ID]}
}

// selectPriorityBased scores (100 - workload) * 10 + seniorityMonths and
// returns the maximum, ties broken by first-encountered order.
func selectPriorityBased(officers []model.Officer, workloads map[uuid.UUID]int) selection {
	best := 0
	bestScore := priorityScore(officers[0], workloads)
	for i := 1; i < len(officers); i++ {
		if score := priorityScore(officers[i], workloads); score > bestScore {
			best = i
			bestScore = score
		}
	}
	chosen := officers[best]
	return selection{officer: chosen, cursorIndex: best, workload: workloads[chosen.ID]}
}

func priorityScore(o model.Officer, workloads map[uuid.UUID]int) int {
	return (100-workloads[o.ID])*10 + o.SeniorityMonths
}

// --- Implementation ---

func (s *assignmentService) SelectOfficer(ctx context.Context, category, tier, strategy string) (*model.Officer, error) {
	role, ok := model.RoleFor(category, tier)
	if !ok {
		return nil, fmt.Errorf("%w: no role for category %s at tier %s", apperrors.ErrRoleMismatch, category, tier)
	}

	officers, err := s.officers.GetActiveByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to load officers for %s: %w", role, err)
	}
	if len(officers) == 0 {
		return nil, fmt.Errorf("%w: no active officer holds role %s", apperrors.ErrNoEligibleReviewer, role)
	}

	workloads, err := s.workloadSnapshot(ctx, officers)
	if err != nil {
		return nil, err
	}

	rule, _ := s.rules.EffectiveRuleForTier(ctx, tier, time.Now())
	sel := selectForStrategy(strategy, officers, workloads, rule)
	return &sel.officer, nil
}

func (s *assignmentService) Assign(ctx context.Context, applicationID uuid.UUID, tier, reason string, assignedBy *uuid.UUID) (*model.AssignmentHistory, error) {
	var entry *model.AssignmentHistory
	err := s.txm.RunInCaseTx(ctx, applicationID, func(txCtx context.Context) error {
		app, findErr := s.apps.FindByID(txCtx, applicationID)
		if findErr != nil {
			return wrapNotFound(findErr, "application")
		}
		stage, ok := model.StageForStatus(app.Status)
		if !ok {
			return fmt.Errorf("%w: status %s has no reviewer stage", apperrors.ErrInvalidTransition, app.Status)
		}
		stageTier, _ := model.TierForStage(stage)
		if tier != "" && tier != stageTier {
			return fmt.Errorf("%w: stage %s is staffed by %s, not %s", apperrors.ErrRoleMismatch, stage, stageTier, tier)
		}

		action := model.ActionAutoAssigned
		if assignedBy != nil {
			action = model.ActionManuallyAssigned
		}
		e, assignErr := s.AssignInTx(txCtx, app, stage, action, reason, assignedBy)
		if assignErr != nil {
			return assignErr
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// AssignInTx runs the full assignment write path: pick (or keep) the
// officer, re-validate the workload cap at commit time, swap the active
// history row, stamp the stage fields, bump the rule counters and enqueue
// the notification. Caller must hold the case transaction.
func (s *assignmentService) AssignInTx(ctx context.Context, app *model.Application, stage, action, reason string, assignedBy *uuid.UUID) (*model.AssignmentHistory, error) {
	tier, ok := model.TierForStage(stage)
	if !ok {
		return nil, fmt.Errorf("%w: unknown stage %s", apperrors.ErrValidationError, stage)
	}
	role, ok := model.RoleFor(app.Category, tier)
	if !ok {
		return nil, fmt.Errorf("%w: no role for category %s at tier %s", apperrors.ErrRoleMismatch, app.Category, tier)
	}

	rule, err := s.effectiveRule(ctx, tier)
	if err != nil {
		return nil, err
	}

	officers, err := s.officers.GetActiveByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to load officers for %s: %w", role, err)
	}
	if len(officers) == 0 {
		return nil, fmt.Errorf("%w: no active officer holds role %s", apperrors.ErrNoEligibleReviewer, role)
	}

	workloads, err := s.workloadSnapshot(ctx, officers)
	if err != nil {
		return nil, err
	}

	sel := selectForStrategy(rule.Strategy, officers, workloads, rule)

	// Commit-time cap check: the snapshot used for selection may be
	// slightly stale under concurrent assignment, the cap must not be.
	if err := s.validateOfficer(ctx, &sel.officer, role, rule); err != nil {
		return nil, err
	}

	return s.commitAssignment(ctx, app, stage, &sel.officer, rule, action, reason, sel.workload, assignedBy)
}

func (s *assignmentService) Reassign(ctx context.Context, applicationID, newOfficerID uuid.UUID, reason string, by *uuid.UUID) (*model.AssignmentHistory, error) {
	var entry *model.AssignmentHistory
	err := s.txm.RunInCaseTx(ctx, applicationID, func(txCtx context.Context) error {
		app, findErr := s.apps.FindByID(txCtx, applicationID)
		if findErr != nil {
			return wrapNotFound(findErr, "application")
		}
		stage, ok := model.StageForStatus(app.Status)
		if !ok {
			return fmt.Errorf("%w: status %s has no reviewer stage", apperrors.ErrInvalidTransition, app.Status)
		}
		tier, _ := model.TierForStage(stage)
		role, ok := model.RoleFor(app.Category, tier)
		if !ok {
			return fmt.Errorf("%w: no role for category %s at tier %s", apperrors.ErrRoleMismatch, app.Category, tier)
		}

		officer, offErr := s.officers.GetByID(txCtx, newOfficerID)
		if offErr != nil {
			return wrapNotFound(offErr, "officer")
		}

		rule, ruleErr := s.effectiveRule(txCtx, tier)
		if ruleErr != nil {
			return ruleErr
		}
		if valErr := s.validateOfficer(txCtx, officer, role, rule); valErr != nil {
			return valErr
		}

		workload, wlErr := s.apps.CountOpenForOfficer(txCtx, officer.ID)
		if wlErr != nil {
			return fmt.Errorf("failed to compute workload: %w", wlErr)
		}

		e, commitErr := s.commitAssignment(txCtx, app, stage, officer, rule, model.ActionReassigned, reason, int(workload), by)
		if commitErr != nil {
			return commitErr
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *assignmentService) Escalate(ctx context.Context, applicationID uuid.UUID, reason string) (*model.AssignmentHistory, error) {
	var entry *model.AssignmentHistory
	err := s.txm.RunInCaseTx(ctx, applicationID, func(txCtx context.Context) error {
		app, findErr := s.apps.FindByID(txCtx, applicationID)
		if findErr != nil {
			return wrapNotFound(findErr, "application")
		}
		stage, ok := model.StageForStatus(app.Status)
		if !ok {
			return fmt.Errorf("%w: status %s has no reviewer stage", apperrors.ErrInvalidTransition, app.Status)
		}
		tier, _ := model.TierForStage(stage)

		rule, ruleErr := s.effectiveRule(txCtx, tier)
		if ruleErr != nil {
			return ruleErr
		}
		if rule.EscalationRole == "" {
			return fmt.Errorf("%w: tier %s has no escalation role configured", apperrors.ErrValidationError, tier)
		}

		role, ok := model.RoleFor(app.Category, rule.EscalationRole)
		if !ok {
			return fmt.Errorf("%w: no role for category %s at tier %s", apperrors.ErrRoleMismatch, app.Category, rule.EscalationRole)
		}

		officers, offErr := s.officers.GetActiveByRole(txCtx, role)
		if offErr != nil {
			return fmt.Errorf("failed to load officers for %s: %w", role, offErr)
		}
		if len(officers) == 0 {
			return fmt.Errorf("%w: no active officer holds role %s", apperrors.ErrNoEligibleReviewer, role)
		}

		workloads, wlErr := s.workloadSnapshot(txCtx, officers)
		if wlErr != nil {
			return wlErr
		}
		sel := selectWorkloadBased(officers, workloads)

		// Re-escalating to the officer who already holds the case must
		// not spawn another active row.
		active, actErr := s.history.ActiveForApplication(txCtx, app.ID)
		if actErr != nil {
			return fmt.Errorf("failed to load active assignment: %w", actErr)
		}
		if active != nil && active.OfficerID == sel.officer.ID {
			entry = active
			return nil
		}

		// An escalation is still an assignment: the cap applies to the
		// escalation target the same as to any commit.
		if valErr := s.validateOfficer(txCtx, &sel.officer, role, rule); valErr != nil {
			return valErr
		}

		e, commitErr := s.commitAssignment(txCtx, app, stage, &sel.officer, rule, model.ActionTransferred, reason, sel.workload, nil)
		if commitErr != nil {
			return commitErr
		}
		s.auditAssignment(txCtx, nil, model.ActionEscalateApplication, app, e)
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *assignmentService) FindEscalationCandidates(ctx context.Context) ([]uuid.UUID, error) {
	rules, err := s.rules.ListWithEscalation(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalation rules: %w", err)
	}

	now := time.Now()
	seen := make(map[uuid.UUID]bool)
	var candidates []uuid.UUID

	for _, rule := range rules {
		if rule.EscalationTimeHours == nil {
			continue
		}
		cutoff := now.Add(-time.Duration(*rule.EscalationTimeHours) * time.Hour)

		for _, status := range statusesForTier(rule.RoleTier) {
			apps, scanErr := s.apps.FindAssignedBefore(ctx, status, cutoff)
			if scanErr != nil {
				// Per-rule isolation: one broken rule must not stop the
				// scan for the others.
				log.Printf("WARNING: escalation scan failed for tier %s status %s: %v", rule.RoleTier, status, scanErr)
				continue
			}
			for _, app := range apps {
				if !seen[app.ID] {
					seen[app.ID] = true
					candidates = append(candidates, app.ID)
				}
			}
		}
	}
	return candidates, nil
}

func (s *assignmentService) History(ctx context.Context, applicationID uuid.UUID) ([]AssignmentHistoryResponse, error) {
	entries, err := s.history.ListForApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignment history: %w", err)
	}

	result := make([]AssignmentHistoryResponse, 0, len(entries))
	for _, e := range entries {
		resp := AssignmentHistoryResponse{
			ID:                   e.ID,
			ApplicationID:        e.ApplicationID,
			PreviousOfficerID:    e.PreviousOfficerID,
			OfficerID:            e.OfficerID,
			Action:               e.Action,
			Reason:               e.Reason,
			WorkloadAtAssignment: e.WorkloadAtAssignment,
			StrategyUsed:         e.StrategyUsed,
			StatusAtAssignment:   e.StatusAtAssignment,
			IsActive:             e.IsActive,
			AssignedAt:           e.AssignedAt.Format(time.RFC3339),
			DurationHours:        e.DurationHours,
		}
		if e.Officer != nil {
			resp.OfficerName = e.Officer.Name
		}
		result = append(result, resp)
	}
	return result, nil
}

// --- Internals ---

// commitAssignment is the single serialized write path for case ownership:
// deactivate the previous active row, insert the new one, stamp the stage
// fields, bump the rule counters and enqueue the notification.
func (s *assignmentService) commitAssignment(
	ctx context.Context,
	app *model.Application,
	stage string,
	officer *model.Officer,
	rule *model.AssignmentRule,
	action, reason string,
	workload int,
	assignedBy *uuid.UUID,
) (*model.AssignmentHistory, error) {
	now := time.Now()

	var previousOfficer *uuid.UUID
	active, err := s.history.ActiveForApplication(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active assignment: %w", err)
	}
	if active != nil {
		previousOfficer = &active.OfficerID
		if err := s.history.Deactivate(ctx, active, now); err != nil {
			return nil, fmt.Errorf("failed to deactivate previous assignment: %w", err)
		}
	}

	entry := &model.AssignmentHistory{
		ApplicationID:        app.ID,
		PreviousOfficerID:    previousOfficer,
		OfficerID:            officer.ID,
		Action:               action,
		Reason:               reason,
		WorkloadAtAssignment: workload,
		StrategyUsed:         rule.Strategy,
		StatusAtAssignment:   app.Status,
		IsActive:             true,
		AssignedBy:           assignedBy,
		AssignedAt:           now,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record assignment: %w", err)
	}

	block := app.Stage(stage)
	block.OfficerID = &officer.ID
	block.AssignedAt = &now
	if err := s.apps.Update(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to stamp stage assignment: %w", err)
	}

	if rule.ID != uuid.Nil {
		rule.TimesApplied++
		rule.LastAppliedAt = &now
		if rule.Strategy == model.StrategyRoundRobin {
			idx := s.officerIndex(ctx, rule, officer)
			rule.LastRoundRobinIndex = idx
			officerID := officer.ID
			rule.LastRoundRobinOfficerID = &officerID
		}
		if err := s.rules.Update(ctx, rule); err != nil {
			return nil, fmt.Errorf("failed to update assignment rule: %w", err)
		}
	}

	// Assignment commits even if the enqueue fails; delivery is strictly
	// best effort.
	assignedByName := "system"
	if assignedBy != nil {
		assignedByName = assignedBy.String()
	}
	msg := &model.NotificationOutbox{
		OfficerID:         officer.ID,
		ApplicationID:     app.ID,
		ApplicationNumber: app.ApplicationNumber,
		Category:          app.Category,
		ApplicantName:     app.ApplicantName,
		AssignedBy:        assignedByName,
	}
	if err := s.outbox.Enqueue(ctx, msg); err != nil {
		log.Printf("WARNING: failed to enqueue assignment notification for %s: %v", app.ApplicationNumber, err)
	}

	auditAction := model.ActionAutoAssignOfficer
	switch action {
	case model.ActionManuallyAssigned:
		auditAction = model.ActionManualAssignOfficer
	case model.ActionReassigned:
		auditAction = model.ActionReassignOfficer
	}
	s.auditAssignment(ctx, assignedBy, auditAction, app, entry)

	return entry, nil
}

func (s *assignmentService) validateOfficer(ctx context.Context, officer *model.Officer, role string, rule *model.AssignmentRule) error {
	if !officer.Active {
		return fmt.Errorf("%w: officer %s is inactive", apperrors.ErrRoleMismatch, officer.Name)
	}
	if officer.Role != role {
		return fmt.Errorf("%w: officer %s holds %s, stage requires %s", apperrors.ErrRoleMismatch, officer.Name, officer.Role, role)
	}

	workload, err := s.apps.CountOpenForOfficer(ctx, officer.ID)
	if err != nil {
		return fmt.Errorf("failed to compute workload: %w", err)
	}
	if int(workload) >= rule.MaxWorkloadPerOfficer {
		return fmt.Errorf("%w: officer %s has %d open cases, limit is %d",
			apperrors.ErrWorkloadExceeded, officer.Name, workload, rule.MaxWorkloadPerOfficer)
	}
	return nil
}

// effectiveRule resolves the rule in force for the tier; a tier without a
// configured rule gets an in-memory workload-based default so assignment
// still works on an unseeded database.
func (s *assignmentService) effectiveRule(ctx context.Context, tier string) (*model.AssignmentRule, error) {
	rule, err := s.rules.EffectiveRuleForTier(ctx, tier, time.Now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("WARNING: no assignment rule configured for tier %s, using workload default", tier)
			return &model.AssignmentRule{
				RoleTier:              tier,
				Strategy:              model.StrategyWorkloadBased,
				MaxWorkloadPerOfficer: 10,
				LastRoundRobinIndex:   -1,
			}, nil
		}
		return nil, fmt.Errorf("failed to resolve assignment rule for %s: %w", tier, err)
	}
	return rule, nil
}

func (s *assignmentService) workloadSnapshot(ctx context.Context, officers []model.Officer) (map[uuid.UUID]int, error) {
	workloads := make(map[uuid.UUID]int, len(officers))
	for _, o := range officers {
		count, err := s.apps.CountOpenForOfficer(ctx, o.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to compute workload for %s: %w", o.Name, err)
		}
		workloads[o.ID] = int(count)
	}
	return workloads, nil
}

func (s *assignmentService) officerIndex(ctx context.Context, rule *model.AssignmentRule, officer *model.Officer) int {
	officers, err := s.officers.GetActiveByRole(ctx, officer.Role)
	if err != nil {
		return rule.LastRoundRobinIndex
	}
	for i, o := range officers {
		if o.ID == officer.ID {
			return i
		}
	}
	return rule.LastRoundRobinIndex
}

func (s *assignmentService) auditAssignment(ctx context.Context, actorID *uuid.UUID, action string, app *model.Application, entry *model.AssignmentHistory) {
	details, _ := json.Marshal(map[string]interface{}{
		"officer_id": entry.OfficerID.String(),
		"action":     entry.Action,
		"strategy":   entry.StrategyUsed,
		"workload":   entry.WorkloadAtAssignment,
		"status":     entry.StatusAtAssignment,
	})
	audit := &model.AuditLog{
		OfficerID:  actorID,
		Action:     action,
		EntityID:   app.ID.String(),
		EntityName: app.ApplicationNumber,
		Details:    string(details),
	}
	if err := s.audits.Log(ctx, audit); err != nil {
		log.Printf("WARNING: failed to write assignment audit for %s: %v", app.ApplicationNumber, err)
	}
}

// statusesForTier lists the pending statuses staffed by a tier, covering
// both the review stage and, for the executive and city tiers, the
// certificate-signing stage.
func statusesForTier(tier string) []string {
	switch tier {
	case model.TierJuniorEngineer:
		return []string{model.StatusJEPending}
	case model.TierAssistantEngineer:
		return []string{model.StatusAEPending}
	case model.TierExecutiveEngineer:
		return []string{model.StatusEEPending, model.StatusEESignPending}
	case model.TierCityEngineer:
		return []string{model.StatusCEPending, model.StatusCESignPending}
	case model.TierClerk:
		return []string{model.StatusClerkPending}
	}
	return nil
}
