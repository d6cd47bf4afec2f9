package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/repository"
	"github.com/spec-kit/grievance-service/internal/sla"
	"github.com/spec-kit/grievance-service/pkg/util"
)

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	// conflictsLeft forces UpdateWithVersion failures to simulate races.
	conflictsLeft int
}

func newFakeTicketRepo(tickets ...*domain.Ticket) *fakeTicketRepo {
	repo := &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
	for _, t := range tickets {
		copied := *t
		repo.tickets[t.ID] = &copied
	}
	return repo
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) UpdateWithVersion(_ context.Context, ticket *domain.Ticket, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		// the concurrent writer bumped the version underneath us
		stored.Version++
		return repository.ErrVersionConflict
	}
	if stored.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	copied := *ticket
	copied.Version = expectedVersion + 1
	r.tickets[ticket.ID] = &copied
	ticket.Version = copied.Version
	return nil
}

func (r *fakeTicketRepo) ListOpen(_ context.Context) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if t.Status == domain.TicketStatusOpen || t.Status == domain.TicketStatusInProgress {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, _ repository.TicketFilter) ([]domain.Ticket, error) {
	return r.ListOpen(context.Background())
}

type fakeRuleRepo struct {
	rules map[string]*domain.EscalationRule
}

func (r *fakeRuleRepo) GetByID(_ context.Context, id string) (*domain.EscalationRule, error) {
	rule, ok := r.rules[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *rule
	return &copied, nil
}

func (r *fakeRuleRepo) ListActive(_ context.Context) ([]domain.EscalationRule, error) {
	var out []domain.EscalationRule
	for _, rule := range r.rules {
		if rule.Active {
			out = append(out, *rule)
		}
	}
	return out, nil
}

type fakeRecordRepo struct {
	mu      sync.Mutex
	records []domain.EscalationRecord
}

func (r *fakeRecordRepo) Append(_ context.Context, record *domain.EscalationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

func (r *fakeRecordRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.EscalationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.EscalationRecord
	for _, rec := range r.records {
		if rec.TicketID == ticketID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

type notifyCall struct {
	recipients []string
	ticketID   string
	level      int
}

func (n *fakeNotifier) Notify(_ context.Context, recipients []string, ticketID string, level int, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{recipients: recipients, ticketID: ticketID, level: level})
	return nil
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	acquires int
	releases int
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) AcquireTicketLock(_ context.Context, ticketID string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[ticketID] {
		return false, nil
	}
	l.held[ticketID] = true
	l.acquires++
	return true, nil
}

func (l *fakeLocker) ReleaseTicketLock(_ context.Context, ticketID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, ticketID)
	l.releases++
	return nil
}

func newEngineCalendar(t *testing.T) *sla.Calendar {
	t.Helper()
	cal, err := sla.NewCalendar(sla.Settings{
		Location: time.UTC,
		DayStart: 9 * time.Hour,
		DayEnd:   17 * time.Hour,
		OffDays:  []time.Weekday{time.Saturday, time.Sunday},
	})
	require.NoError(t, err)
	return cal
}

type engineFixture struct {
	svc      *EscalationService
	tickets  *fakeTicketRepo
	records  *fakeRecordRepo
	notifier *fakeNotifier
	locker   *fakeLocker
}

func newEngineFixture(t *testing.T, rules map[string]*domain.EscalationRule, tickets ...*domain.Ticket) *engineFixture {
	t.Helper()
	if rules == nil {
		rules = map[string]*domain.EscalationRule{}
	}
	ticketRepo := newFakeTicketRepo(tickets...)
	recordRepo := &fakeRecordRepo{}
	notifier := &fakeNotifier{}
	locker := newFakeLocker()
	svc := NewEscalationService(EscalationDependencies{
		TicketRepo: ticketRepo,
		RuleRepo:   &fakeRuleRepo{rules: rules},
		RecordRepo: recordRepo,
		Classifier: sla.NewClassifier(newEngineCalendar(t), nil),
		Locker:     locker,
		Notifier:   notifier,
	})
	return &engineFixture{svc: svc, tickets: ticketRepo, records: recordRepo, notifier: notifier, locker: locker}
}

func openTicket(id string, priority domain.TicketPriority, createdAt time.Time) *domain.Ticket {
	return &domain.Ticket{
		ID:        id,
		Status:    domain.TicketStatusOpen,
		Priority:  priority,
		Category:  "General",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		Version:   1,
	}
}

func TestRunAutoEscalationTickRaisesOverdueTickets(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	fx := newEngineFixture(t, nil,
		openTicket("crit-overdue", domain.TicketPriorityCritical, now.Add(-5*time.Hour)),
		openTicket("crit-fresh", domain.TicketPriorityCritical, now.Add(-3*time.Hour)),
		openTicket("low-fresh", domain.TicketPriorityLow, now.Add(-48*time.Hour)),
	)

	result, err := fx.svc.RunAutoEscalationTick(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Scanned)
	assert.Equal(t, 1, result.Escalated())
	assert.Equal(t, 0, result.Failed)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "crit-overdue", result.Records[0].TicketID)

	ticket, err := fx.tickets.GetByID(context.Background(), "crit-overdue")
	require.NoError(t, err)
	assert.Equal(t, 1, ticket.EscalationLevel)
	require.NotNil(t, ticket.EscalatedAt)
	assert.True(t, ticket.EscalatedAt.Equal(now))

	untouched, err := fx.tickets.GetByID(context.Background(), "crit-fresh")
	require.NoError(t, err)
	assert.Equal(t, 0, untouched.EscalationLevel)
	assert.Nil(t, untouched.EscalatedAt)

	records, err := fx.records.ListByTicket(context.Background(), "crit-overdue")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 0, records[0].FromLevel)
	assert.Equal(t, 1, records[0].ToLevel)
	assert.Equal(t, domain.SystemActor, records[0].EscalatedBy)
}

func TestRunAutoEscalationTickMeasuresFromLastEscalation(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	ticket := openTicket("t1", domain.TicketPriorityHigh, now.Add(-80*time.Hour))
	lastEscalated := now.Add(-2 * time.Hour)
	ticket.EscalationLevel = 1
	ticket.EscalatedAt = &lastEscalated
	fx := newEngineFixture(t, nil, ticket)

	result, err := fx.svc.RunAutoEscalationTick(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Escalated())

	stored, err := fx.tickets.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.EscalationLevel)
}

func TestRunAutoEscalationTickCapsAtMaxLevel(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	ticket := openTicket("t1", domain.TicketPriorityCritical, now.Add(-300*time.Hour))
	ticket.EscalationLevel = domain.MaxEscalationLevel
	escalatedAt := now.Add(-200 * time.Hour)
	ticket.EscalatedAt = &escalatedAt
	fx := newEngineFixture(t, nil, ticket)

	result, err := fx.svc.RunAutoEscalationTick(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Escalated())
	assert.Equal(t, 0, result.Failed)

	stored, err := fx.tickets.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.MaxEscalationLevel, stored.EscalationLevel)
	assert.Empty(t, fx.records.records)
}

func TestRunAutoEscalationTickSkipsTerminalTickets(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	ticket := openTicket("t1", domain.TicketPriorityCritical, now.Add(-100*time.Hour))
	ticket.Status = domain.TicketStatusResolved
	fx := newEngineFixture(t, nil, ticket)

	result, err := fx.svc.RunAutoEscalationTick(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Scanned)
	assert.Equal(t, 0, result.Escalated())
}

func TestRunAutoEscalationRetriesOnceOnVersionConflict(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	fx := newEngineFixture(t, nil, openTicket("t1", domain.TicketPriorityCritical, now.Add(-6*time.Hour)))
	fx.tickets.conflictsLeft = 1

	result, err := fx.svc.RunAutoEscalationTick(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Escalated())
	assert.Equal(t, 0, result.Failed)

	stored, err := fx.tickets.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.EscalationLevel)

	records, err := fx.records.ListByTicket(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRunAutoEscalationSurfacesSecondConflict(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	fx := newEngineFixture(t, nil, openTicket("t1", domain.TicketPriorityCritical, now.Add(-6*time.Hour)))
	fx.tickets.conflictsLeft = 2

	result, err := fx.svc.RunAutoEscalationTick(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Escalated())
	assert.Equal(t, 1, result.Failed)
	assert.Empty(t, fx.records.records)
}

func TestManualEscalateAppliesRuleLevel(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	rules := map[string]*domain.EscalationRule{
		"rule-2": {
			ID:              "rule-2",
			Role:            domain.RoleOfficer,
			EscalationLevel: 2,
			NotifyToRole:    domain.RoleSuperAdmin,
			Active:          true,
		},
	}
	assignee := "officer-7"
	ticket := openTicket("t1", domain.TicketPriorityHigh, now.Add(-1*time.Hour))
	ticket.AssigneeID = &assignee
	fx := newEngineFixture(t, rules, ticket)
	fx.svc.now = func() time.Time { return now }

	record, err := fx.svc.ManualEscalate(context.Background(), "t1", "rule-2", "officer-1", "no movement after follow-up")
	require.NoError(t, err)
	assert.Equal(t, 0, record.FromLevel)
	assert.Equal(t, 2, record.ToLevel)
	assert.Equal(t, "officer-1", record.EscalatedBy)
	require.NotNil(t, record.EscalatedTo)
	assert.Equal(t, domain.RoleSuperAdmin, *record.EscalatedTo)

	stored, err := fx.tickets.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.EscalationLevel)

	require.Len(t, fx.notifier.calls, 1)
	call := fx.notifier.calls[0]
	assert.Equal(t, 2, call.level)
	assert.ElementsMatch(t, []string{
		string(domain.RoleHRAdmin), "officer-7", string(domain.RoleSuperAdmin),
	}, call.recipients)
}

func TestManualEscalateRejectsNonRaisingRule(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	rules := map[string]*domain.EscalationRule{
		"rule-1": {ID: "rule-1", EscalationLevel: 1, NotifyToRole: domain.RoleHRAdmin, Active: true},
	}
	ticket := openTicket("t1", domain.TicketPriorityMedium, now.Add(-1*time.Hour))
	ticket.EscalationLevel = 1
	fx := newEngineFixture(t, rules, ticket)

	_, err := fx.svc.ManualEscalate(context.Background(), "t1", "rule-1", "officer-1", "retry")
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.CodeInvalidState))

	stored, err := fx.tickets.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.EscalationLevel)
	assert.Empty(t, fx.records.records)
}

func TestManualEscalateValidation(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	rules := map[string]*domain.EscalationRule{
		"rule-1":   {ID: "rule-1", EscalationLevel: 1, NotifyToRole: domain.RoleHRAdmin, Active: true},
		"inactive": {ID: "inactive", EscalationLevel: 2, NotifyToRole: domain.RoleHRAdmin, Active: false},
	}
	resolved := openTicket("resolved", domain.TicketPriorityHigh, now.Add(-1*time.Hour))
	resolved.Status = domain.TicketStatusResolved
	fx := newEngineFixture(t, rules,
		openTicket("t1", domain.TicketPriorityHigh, now.Add(-1*time.Hour)),
		resolved,
	)

	_, err := fx.svc.ManualEscalate(context.Background(), "t1", "rule-1", "officer-1", "   ")
	assert.True(t, util.HasCode(err, util.CodeValidation))

	_, err = fx.svc.ManualEscalate(context.Background(), "t1", "missing", "officer-1", "reason")
	assert.True(t, util.HasCode(err, util.CodeNotFound))

	_, err = fx.svc.ManualEscalate(context.Background(), "t1", "inactive", "officer-1", "reason")
	assert.True(t, util.HasCode(err, util.CodeValidation))

	_, err = fx.svc.ManualEscalate(context.Background(), "resolved", "rule-1", "officer-1", "reason")
	assert.True(t, util.HasCode(err, util.CodeValidation))

	_, err = fx.svc.ManualEscalate(context.Background(), "missing", "rule-1", "officer-1", "reason")
	assert.True(t, util.HasCode(err, util.CodeNotFound))
}

func TestDeEscalateLowersOneLevel(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	ticket := openTicket("t1", domain.TicketPriorityHigh, now.Add(-1*time.Hour))
	ticket.EscalationLevel = 2
	fx := newEngineFixture(t, nil, ticket)
	fx.svc.now = func() time.Time { return now }

	record, err := fx.svc.DeEscalate(context.Background(), "t1", "officer-1", "resolved at source")
	require.NoError(t, err)
	assert.Equal(t, 2, record.FromLevel)
	assert.Equal(t, 1, record.ToLevel)
	assert.True(t, record.IsDeescalation())

	stored, err := fx.tickets.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.EscalationLevel)
	// de-escalations never alert anyone
	assert.Empty(t, fx.notifier.calls)
}

func TestDeEscalateAtLevelZeroFails(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	fx := newEngineFixture(t, nil, openTicket("t1", domain.TicketPriorityHigh, now.Add(-1*time.Hour)))

	_, err := fx.svc.DeEscalate(context.Background(), "t1", "officer-1", "reason")
	require.Error(t, err)
	assert.True(t, util.HasCode(err, util.CodeInvalidState))

	stored, err := fx.tickets.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.EscalationLevel)
	assert.Empty(t, fx.records.records)
}

func TestDeEscalateRejectsTerminalTickets(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	resolved := openTicket("resolved", domain.TicketPriorityHigh, now.Add(-50*time.Hour))
	resolved.Status = domain.TicketStatusResolved
	resolved.EscalationLevel = 1

	closed := openTicket("closed", domain.TicketPriorityHigh, now.Add(-50*time.Hour))
	closed.Status = domain.TicketStatusClosed
	closedAt := now.Add(-time.Hour)
	closed.ClosedAt = &closedAt
	closed.EscalationLevel = 2

	fx := newEngineFixture(t, nil, resolved, closed)

	for _, id := range []string{"resolved", "closed"} {
		_, err := fx.svc.DeEscalate(context.Background(), id, "officer-1", "cleanup")
		require.Error(t, err)
		assert.True(t, util.HasCode(err, util.CodeValidation))
	}

	// level and audit trail stay frozen
	stored, err := fx.tickets.GetByID(context.Background(), "resolved")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.EscalationLevel)
	stored, err = fx.tickets.GetByID(context.Background(), "closed")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.EscalationLevel)
	assert.Empty(t, fx.records.records)
}

func TestDeEscalateRequiresReason(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	ticket := openTicket("t1", domain.TicketPriorityHigh, now.Add(-1*time.Hour))
	ticket.EscalationLevel = 1
	fx := newEngineFixture(t, nil, ticket)

	_, err := fx.svc.DeEscalate(context.Background(), "t1", "officer-1", "")
	assert.True(t, util.HasCode(err, util.CodeValidation))
}

func TestLowPriorityEscalationSkipsNotifier(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	fx := newEngineFixture(t, nil, openTicket("t1", domain.TicketPriorityLow, now.Add(-80*time.Hour)))

	result, err := fx.svc.RunAutoEscalationTick(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Escalated())
	assert.Empty(t, fx.notifier.calls)
}

func TestCheckReopenable(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	within := openTicket("within", domain.TicketPriorityLow, now.Add(-100*time.Hour))
	within.Status = domain.TicketStatusClosed
	closedRecently := now.Add(-71 * time.Hour)
	within.ClosedAt = &closedRecently

	expired := openTicket("expired", domain.TicketPriorityLow, now.Add(-200*time.Hour))
	expired.Status = domain.TicketStatusClosed
	closedLongAgo := now.Add(-73 * time.Hour)
	expired.ClosedAt = &closedLongAgo

	fx := newEngineFixture(t, nil,
		within, expired,
		openTicket("open", domain.TicketPriorityLow, now.Add(-1*time.Hour)),
	)
	fx.svc.now = func() time.Time { return now }

	status, err := fx.svc.CheckReopenable(context.Background(), "within")
	require.NoError(t, err)
	assert.True(t, status.Reopenable)
	require.NotNil(t, status.Until)
	assert.True(t, status.Until.Equal(closedRecently.Add(sla.ReopenWindow)))

	status, err = fx.svc.CheckReopenable(context.Background(), "expired")
	require.NoError(t, err)
	assert.False(t, status.Reopenable)

	status, err = fx.svc.CheckReopenable(context.Background(), "open")
	require.NoError(t, err)
	assert.False(t, status.Reopenable)

	_, err = fx.svc.CheckReopenable(context.Background(), "missing")
	assert.True(t, util.HasCode(err, util.CodeNotFound))
}

func TestApplyTransitionReleasesLock(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	fx := newEngineFixture(t, nil, openTicket("t1", domain.TicketPriorityCritical, now.Add(-6*time.Hour)))

	_, err := fx.svc.RunAutoEscalationTick(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, fx.locker.acquires, fx.locker.releases)
	assert.Empty(t, fx.locker.held)
}
