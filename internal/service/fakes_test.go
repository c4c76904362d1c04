package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/yashturmbekar/PMCRMS-sub002/internal/hsm"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// In-memory fakes backing the service tests. They mirror the repository
// contracts, including the gorm.ErrRecordNotFound sentinel the services
// translate.

type fakeTxManager struct{}

func (f *fakeTxManager) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (f *fakeTxManager) RunInCaseTx(ctx context.Context, _ uuid.UUID, fn func(context.Context) error) error {
	return fn(ctx)
}

// --- applications ---

type fakeAppRepo struct {
	apps map[uuid.UUID]*model.Application
	seq  int
}

func newFakeAppRepo() *fakeAppRepo {
	return &fakeAppRepo{apps: make(map[uuid.UUID]*model.Application)}
}

func (f *fakeAppRepo) Create(_ context.Context, app *model.Application) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	app.CreatedAt = time.Now()
	f.apps[app.ID] = app
	return nil
}

func (f *fakeAppRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Application, error) {
	app, ok := f.apps[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return app, nil
}

func (f *fakeAppRepo) FindByNumber(_ context.Context, number string) (*model.Application, error) {
	for _, app := range f.apps {
		if app.ApplicationNumber == number {
			return app, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAppRepo) List(_ context.Context, status string, page, limit int) ([]model.Application, int64, error) {
	var all []model.Application
	for _, app := range f.apps {
		if status == "" || app.Status == status {
			all = append(all, *app)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ApplicationNumber < all[j].ApplicationNumber })
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (f *fakeAppRepo) Update(_ context.Context, app *model.Application) error {
	if _, ok := f.apps[app.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	f.apps[app.ID] = app
	return nil
}

var allStageKeys = []string{
	model.StageJE, model.StageAE, model.StageEE, model.StageCE,
	model.StageClerk, model.StageEESign, model.StageCESign,
}

func (f *fakeAppRepo) CountOpenForOfficer(_ context.Context, officerID uuid.UUID) (int64, error) {
	var count int64
	for _, app := range f.apps {
		if model.TerminalStatus(app.Status) {
			continue
		}
		for _, key := range allStageKeys {
			block := app.Stage(key)
			if block.OfficerID != nil && *block.OfficerID == officerID && !block.SignatureApplied {
				count++
			}
		}
	}
	return count, nil
}

func (f *fakeAppRepo) FindAssignedBefore(_ context.Context, status string, cutoff time.Time) ([]model.Application, error) {
	stage, ok := model.StageForStatus(status)
	if !ok {
		return nil, nil
	}
	var out []model.Application
	for _, app := range f.apps {
		if app.Status != status {
			continue
		}
		block := app.Stage(stage)
		if block.AssignedAt != nil && !block.AssignedAt.After(cutoff) {
			out = append(out, *app)
		}
	}
	return out, nil
}

func (f *fakeAppRepo) NextApplicationNumber(_ context.Context) (string, error) {
	f.seq++
	return fmt.Sprintf("PMC-LIC-%s-%05d", time.Now().Format("20060102"), f.seq), nil
}

// --- officers ---

type fakeOfficerRepo struct {
	officers []*model.Officer
}

func (f *fakeOfficerRepo) add(name, role string, seniority int, keyLabel string) *model.Officer {
	o := &model.Officer{
		ID:              uuid.New(),
		Name:            name,
		Email:           name + "@pmc.gov.in",
		Role:            role,
		Active:          true,
		HSMKeyLabel:     keyLabel,
		SeniorityMonths: seniority,
	}
	f.officers = append(f.officers, o)
	return o
}

func (f *fakeOfficerRepo) Create(_ context.Context, officer *model.Officer) error {
	if officer.ID == uuid.Nil {
		officer.ID = uuid.New()
	}
	f.officers = append(f.officers, officer)
	return nil
}

func (f *fakeOfficerRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Officer, error) {
	for _, o := range f.officers {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOfficerRepo) GetByEmail(_ context.Context, email string) (*model.Officer, error) {
	for _, o := range f.officers {
		if o.Email == email {
			return o, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// GetActiveByRole preserves insertion order, standing in for the real
// repository's stable id ordering.
func (f *fakeOfficerRepo) GetActiveByRole(_ context.Context, role string) ([]model.Officer, error) {
	var out []model.Officer
	for _, o := range f.officers {
		if o.Active && o.Role == role {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOfficerRepo) List(_ context.Context, role string, page, limit int) ([]model.Officer, int64, error) {
	var out []model.Officer
	for _, o := range f.officers {
		if role == "" || o.Role == role {
			out = append(out, *o)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeOfficerRepo) Update(_ context.Context, officer *model.Officer) error {
	for i, o := range f.officers {
		if o.ID == officer.ID {
			f.officers[i] = officer
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeOfficerRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	for _, o := range f.officers {
		if o.ID == id {
			o.Active = false
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// --- assignment rules ---

type fakeRuleRepo struct {
	rules []*model.AssignmentRule
}

func (f *fakeRuleRepo) add(rule *model.AssignmentRule) *model.AssignmentRule {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if rule.EffectiveFrom.IsZero() {
		rule.EffectiveFrom = time.Now().Add(-time.Hour)
	}
	f.rules = append(f.rules, rule)
	return rule
}

func (f *fakeRuleRepo) EffectiveRuleForTier(_ context.Context, tier string, at time.Time) (*model.AssignmentRule, error) {
	var best *model.AssignmentRule
	for _, r := range f.rules {
		if r.RoleTier != tier || r.EffectiveFrom.After(at) {
			continue
		}
		if r.EffectiveUntil != nil && !r.EffectiveUntil.After(at) {
			continue
		}
		if best == nil || r.Priority < best.Priority {
			best = r
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return best, nil
}

func (f *fakeRuleRepo) ListWithEscalation(_ context.Context) ([]model.AssignmentRule, error) {
	var out []model.AssignmentRule
	for _, r := range f.rules {
		if r.EscalationTimeHours != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRuleRepo) Update(_ context.Context, rule *model.AssignmentRule) error {
	for i, r := range f.rules {
		if r.ID == rule.ID {
			f.rules[i] = rule
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRuleRepo) List(_ context.Context) ([]model.AssignmentRule, error) {
	out := make([]model.AssignmentRule, 0, len(f.rules))
	for _, r := range f.rules {
		out = append(out, *r)
	}
	return out, nil
}

// --- assignment history ---

type fakeHistoryRepo struct {
	entries []*model.AssignmentHistory
}

func (f *fakeHistoryRepo) Create(_ context.Context, entry *model.AssignmentHistory) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeHistoryRepo) ActiveForApplication(_ context.Context, applicationID uuid.UUID) (*model.AssignmentHistory, error) {
	for _, e := range f.entries {
		if e.ApplicationID == applicationID && e.IsActive {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeHistoryRepo) Deactivate(_ context.Context, entry *model.AssignmentHistory, at time.Time) error {
	for _, e := range f.entries {
		if e.ID == entry.ID {
			e.IsActive = false
			e.DeactivatedAt = &at
			hours := at.Sub(e.AssignedAt).Hours()
			e.DurationHours = &hours
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeHistoryRepo) ListForApplication(_ context.Context, applicationID uuid.UUID) ([]model.AssignmentHistory, error) {
	var out []model.AssignmentHistory
	for _, e := range f.entries {
		if e.ApplicationID == applicationID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeHistoryRepo) activeCount(applicationID uuid.UUID) int {
	n := 0
	for _, e := range f.entries {
		if e.ApplicationID == applicationID && e.IsActive {
			n++
		}
	}
	return n
}

// --- signature attempts ---

type fakeAttemptRepo struct {
	attempts []*model.SignatureAttempt
}

func (f *fakeAttemptRepo) Create(_ context.Context, attempt *model.SignatureAttempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}
	if attempt.InitiatedAt.IsZero() {
		attempt.InitiatedAt = time.Now()
	}
	f.attempts = append(f.attempts, attempt)
	return nil
}

func (f *fakeAttemptRepo) FindByID(_ context.Context, id uuid.UUID) (*model.SignatureAttempt, error) {
	for _, a := range f.attempts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAttemptRepo) FindBlocking(_ context.Context, applicationID uuid.UUID, stageKey string) (*model.SignatureAttempt, error) {
	for _, a := range f.attempts {
		if a.ApplicationID == applicationID && a.StageKey == stageKey &&
			(a.Status == model.SignatureInProgress || a.Status == model.SignatureCompleted) {
			return a, nil
		}
	}
	return nil, nil
}

func (f *fakeAttemptRepo) Update(_ context.Context, attempt *model.SignatureAttempt) error {
	for i, a := range f.attempts {
		if a.ID == attempt.ID {
			f.attempts[i] = attempt
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeAttemptRepo) ListForApplication(_ context.Context, applicationID uuid.UUID) ([]model.SignatureAttempt, error) {
	var out []model.SignatureAttempt
	for _, a := range f.attempts {
		if a.ApplicationID == applicationID {
			out = append(out, *a)
		}
	}
	return out, nil
}

// --- documents ---

type fakeDocRepo struct {
	docs []*model.Document
}

func (f *fakeDocRepo) Create(_ context.Context, doc *model.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	f.docs = append(f.docs, doc)
	return nil
}

func (f *fakeDocRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Document, error) {
	for _, d := range f.docs {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDocRepo) FindByType(_ context.Context, applicationID uuid.UUID, docType string) (*model.Document, error) {
	for _, d := range f.docs {
		if d.ApplicationID == applicationID && d.Type == docType {
			return d, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDocRepo) ReplaceContent(_ context.Context, doc *model.Document, content []byte) error {
	for _, d := range f.docs {
		if d.ID == doc.ID {
			d.Content = content
			d.Version++
			doc.Content = content
			doc.Version = d.Version
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// --- audit ---

type fakeAuditRepo struct {
	entries []*model.AuditLog
}

func (f *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditRepo) List(_ context.Context, action string, page, limit int) ([]model.AuditLog, int64, error) {
	var out []model.AuditLog
	for _, e := range f.entries {
		if action == "" || e.Action == action {
			out = append(out, *e)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeAuditRepo) actions() []string {
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

// --- outbox ---

type fakeOutboxRepo struct {
	messages []*model.NotificationOutbox
}

func (f *fakeOutboxRepo) Enqueue(_ context.Context, msg *model.NotificationOutbox) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.Status == "" {
		msg.Status = model.OutboxPending
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeOutboxRepo) FetchPending(_ context.Context, limit int) ([]model.NotificationOutbox, error) {
	var out []model.NotificationOutbox
	for _, m := range f.messages {
		if m.Status == model.OutboxPending && m.Attempts < model.MaxOutboxAttempts {
			out = append(out, *m)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeOutboxRepo) MarkSent(_ context.Context, msg *model.NotificationOutbox) error {
	for _, m := range f.messages {
		if m.ID == msg.ID {
			now := time.Now()
			m.Status = model.OutboxSent
			m.Attempts++
			m.SentAt = &now
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeOutboxRepo) MarkFailed(_ context.Context, msg *model.NotificationOutbox, reason string) error {
	for _, m := range f.messages {
		if m.ID == msg.ID {
			m.Attempts++
			m.LastError = reason
			if m.Attempts >= model.MaxOutboxAttempts {
				m.Status = model.OutboxFailed
			}
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// --- wiring ---

// fixture builds the full service graph over the fakes, mirroring the
// production wiring in cmd/api.
type fixture struct {
	apps     *fakeAppRepo
	officers *fakeOfficerRepo
	rules    *fakeRuleRepo
	history  *fakeHistoryRepo
	attempts *fakeAttemptRepo
	docs     *fakeDocRepo
	audits   *fakeAuditRepo
	outbox   *fakeOutboxRepo
	gateway  *fakeGateway

	assignment AssignmentService
	workflow   WorkflowService
	signature  SignatureService
}

func newFixture() *fixture {
	f := &fixture{
		apps:     newFakeAppRepo(),
		officers: &fakeOfficerRepo{},
		rules:    &fakeRuleRepo{},
		history:  &fakeHistoryRepo{},
		attempts: &fakeAttemptRepo{},
		docs:     &fakeDocRepo{},
		audits:   &fakeAuditRepo{},
		outbox:   &fakeOutboxRepo{},
		gateway:  &fakeGateway{signSuccess: true},
	}
	txm := &fakeTxManager{}
	f.assignment = NewAssignmentService(txm, f.apps, f.officers, f.rules, f.history, f.outbox, f.audits)
	f.workflow = NewWorkflowService(txm, f.apps, f.docs, f.audits, f.assignment)
	f.signature = NewSignatureService(txm, f.apps, f.officers, f.attempts, f.docs, f.audits, f.gateway, f.workflow, nil)
	return f
}

// seedApp inserts an application directly in the given status with its
// recommendation form, bypassing the submission path.
func (f *fixture) seedApp(status string) *model.Application {
	app := &model.Application{
		ID:                uuid.New(),
		ApplicationNumber: fmt.Sprintf("PMC-LIC-20250901-%05d", len(f.apps.apps)+1),
		ApplicantName:     "Asha Kulkarni",
		ApplicantEmail:    "asha@example.com",
		Category:          model.CategoryArchitect,
		Status:            status,
	}
	f.apps.apps[app.ID] = app
	f.docs.Create(context.Background(), &model.Document{
		ApplicationID: app.ID,
		Type:          model.DocumentRecommendationForm,
		Content:       []byte("recommendation"),
	})
	f.docs.Create(context.Background(), &model.Document{
		ApplicationID: app.ID,
		Type:          model.DocumentLicenceCertificate,
		Content:       []byte("certificate"),
	})
	return app
}

// seedAppAssigned seeds an application and stamps the officer onto the
// stage that signs at the given status, the way the assignment engine
// would have.
func (f *fixture) seedAppAssigned(status string, officer *model.Officer) *model.Application {
	app := f.seedApp(status)
	if stage, ok := model.SigningStageForStatus(status); ok {
		now := time.Now()
		block := app.Stage(stage)
		block.OfficerID = &officer.ID
		block.AssignedAt = &now
	}
	return app
}

// --- HSM gateway ---

type fakeGateway struct {
	otpErr      error
	signErr     error
	signSuccess bool
	signedBytes []byte
	signCalls   int
	lastOtp     string
}

func (g *fakeGateway) RequestOtp(_ context.Context, txnID, keyLabel string) (*hsm.OtpResult, error) {
	if g.otpErr != nil {
		return nil, g.otpErr
	}
	return &hsm.OtpResult{Success: true, Message: "OTP sent"}, nil
}

func (g *fakeGateway) Sign(_ context.Context, txnID, keyLabel string, document []byte, otp string, coords hsm.Coordinates) (*hsm.SignResult, error) {
	g.signCalls++
	g.lastOtp = otp
	if g.signErr != nil {
		return nil, g.signErr
	}
	if !g.signSuccess {
		return &hsm.SignResult{Success: false, Message: "rejected"}, nil
	}
	signed := g.signedBytes
	if signed == nil {
		signed = append([]byte("signed:"), document...)
	}
	return &hsm.SignResult{Success: true, SignedBytes: signed, Message: "OK"}, nil
}
