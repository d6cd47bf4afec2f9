package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/events"
	"github.com/spec-kit/grievance-service/internal/repository"
	"github.com/spec-kit/grievance-service/internal/sla"
	"github.com/spec-kit/grievance-service/pkg/util"
)

// autoEscalationThresholds maps current ticket priority to the wall-clock
// age after which the scheduler raises the escalation level. Age is
// measured from the last escalation, or ticket creation if never escalated.
var autoEscalationThresholds = map[domain.TicketPriority]time.Duration{
	domain.TicketPriorityCritical: 4 * time.Hour,
	domain.TicketPriorityHigh:     24 * time.Hour,
	domain.TicketPriorityMedium:   48 * time.Hour,
	domain.TicketPriorityLow:      72 * time.Hour,
}

// Notifier delivers escalation alerts to resolved recipients.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, ticketID string, level int, reason string) error
}

// TicketLocker guards per-ticket escalation writes across processes.
// Locking is advisory; the version check on write is the real guard.
type TicketLocker interface {
	AcquireTicketLock(ctx context.Context, ticketID string, ttl time.Duration) (bool, error)
	ReleaseTicketLock(ctx context.Context, ticketID string) error
}

// EscalationService owns escalation state transitions, both the periodic
// automatic sweep and the manual officer-driven paths.
type EscalationService struct {
	tickets    repository.TicketRepository
	rules      repository.EscalationRuleRepository
	records    repository.EscalationRecordRepository
	classifier *sla.Classifier
	locker     TicketLocker
	notifier   Notifier
	dispatcher events.Dispatcher
	logger     *zap.Logger
	lockTTL    time.Duration
	now        func() time.Time
}

// EscalationDependencies bundles collaborators for the escalation service.
type EscalationDependencies struct {
	TicketRepo repository.TicketRepository
	RuleRepo   repository.EscalationRuleRepository
	RecordRepo repository.EscalationRecordRepository
	Classifier *sla.Classifier
	Locker     TicketLocker
	Notifier   Notifier
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	LockTTL    time.Duration
}

// NewEscalationService wires the escalation service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	lockTTL := deps.LockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &EscalationService{
		tickets:    deps.TicketRepo,
		rules:      deps.RuleRepo,
		records:    deps.RecordRepo,
		classifier: deps.Classifier,
		locker:     deps.Locker,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		lockTTL:    lockTTL,
		now:        time.Now,
	}
}

// TickResult summarizes one automatic escalation sweep. Records holds the
// audit entries appended during the sweep, one per escalated ticket.
type TickResult struct {
	Scanned int
	Failed  int
	Records []domain.EscalationRecord
}

// Escalated reports how many tickets the sweep raised.
func (r TickResult) Escalated() int {
	return len(r.Records)
}

// RunAutoEscalationTick scans open tickets and raises the escalation level
// of any ticket whose age exceeds its priority threshold. A failure on one
// ticket is logged and does not abort the sweep.
func (s *EscalationService) RunAutoEscalationTick(ctx context.Context, now time.Time) (TickResult, error) {
	tickets, err := s.tickets.ListOpen(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("list open tickets: %w", err)
	}

	result := TickResult{Scanned: len(tickets)}
	for i := range tickets {
		ticket := tickets[i]
		record, err := s.autoEscalateTicket(ctx, &ticket, now)
		if err != nil {
			result.Failed++
			s.logger.Error("auto escalation failed",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err))
			continue
		}
		if record != nil {
			result.Records = append(result.Records, *record)
		}
	}
	return result, nil
}

// autoEscalateTicket applies the threshold check to a single ticket and
// raises its level by one when due. Tickets already at the top level are
// left alone.
func (s *EscalationService) autoEscalateTicket(ctx context.Context, ticket *domain.Ticket, now time.Time) (*domain.EscalationRecord, error) {
	if ticket.IsTerminal() || ticket.EscalationLevel >= domain.MaxEscalationLevel {
		return nil, nil
	}

	threshold, ok := autoEscalationThresholds[ticket.Priority]
	if !ok {
		threshold = autoEscalationThresholds[domain.TicketPriorityLow]
	}
	since := ticket.CreatedAt
	if ticket.EscalatedAt != nil {
		since = *ticket.EscalatedAt
	}
	if now.Sub(since) < threshold {
		return nil, nil
	}

	record, err := s.applyTransition(ctx, ticket.ID, func(t *domain.Ticket) (*domain.EscalationRecord, error) {
		if t.IsTerminal() || t.EscalationLevel >= domain.MaxEscalationLevel {
			return nil, nil
		}
		from := t.EscalationLevel
		retrySince := t.CreatedAt
		if t.EscalatedAt != nil {
			retrySince = *t.EscalatedAt
		}
		if now.Sub(retrySince) < threshold {
			return nil, nil
		}
		t.EscalationLevel = from + 1
		escalatedAt := now
		t.EscalatedAt = &escalatedAt
		t.UpdatedAt = now
		return &domain.EscalationRecord{
			ID:          uuid.NewString(),
			TicketID:    t.ID,
			EscalatedAt: now,
			FromLevel:   from,
			ToLevel:     from + 1,
			EscalatedBy: domain.SystemActor,
			Reason:      fmt.Sprintf("unattended beyond %s threshold", threshold),
		}, nil
	})
	if err != nil || record == nil {
		return nil, err
	}

	s.finishEscalation(ctx, ticket.ID, record, nil)
	return record, nil
}

// ListActiveRules returns the active escalation rules ordered by level.
func (s *EscalationService) ListActiveRules(ctx context.Context) ([]domain.EscalationRule, error) {
	rules, err := s.rules.ListActive(ctx)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	return rules, nil
}

// ManualEscalate bumps a ticket to the level defined by the given rule.
// The rule level must be above the ticket's current level.
func (s *EscalationService) ManualEscalate(ctx context.Context, ticketID, ruleID, actorID, reason string) (*domain.EscalationRecord, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, util.NewValidationError("escalation reason is required", nil)
	}

	rule, err := s.rules.GetByID(ctx, ruleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("escalation rule", map[string]any{"rule_id": ruleID})
		}
		return nil, util.NewInternalError(err)
	}
	if !rule.Active {
		return nil, util.NewValidationError("escalation rule is inactive", map[string]any{"rule_id": ruleID})
	}

	targetLevel := rule.EscalationLevel
	if targetLevel > domain.MaxEscalationLevel {
		targetLevel = domain.MaxEscalationLevel
	}

	now := s.now()
	record, err := s.applyTransition(ctx, ticketID, func(t *domain.Ticket) (*domain.EscalationRecord, error) {
		if t.IsTerminal() {
			return nil, util.NewValidationError("resolved or closed tickets cannot be escalated", nil)
		}
		if targetLevel <= t.EscalationLevel {
			return nil, util.NewInvalidState("rule level does not raise the ticket", map[string]any{
				"current_level": t.EscalationLevel,
				"rule_level":    rule.EscalationLevel,
			})
		}
		from := t.EscalationLevel
		t.EscalationLevel = targetLevel
		escalatedAt := now
		t.EscalatedAt = &escalatedAt
		t.UpdatedAt = now
		notifyRole := rule.NotifyToRole
		return &domain.EscalationRecord{
			ID:          uuid.NewString(),
			TicketID:    t.ID,
			EscalatedAt: now,
			FromLevel:   from,
			ToLevel:     targetLevel,
			EscalatedBy: actorID,
			Reason:      reason,
			EscalatedTo: &notifyRole,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.finishEscalation(ctx, ticketID, record, rule)
	return record, nil
}

// DeEscalate lowers a ticket's escalation level by exactly one step.
func (s *EscalationService) DeEscalate(ctx context.Context, ticketID, actorID, reason string) (*domain.EscalationRecord, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, util.NewValidationError("de-escalation reason is required", nil)
	}

	now := s.now()
	record, err := s.applyTransition(ctx, ticketID, func(t *domain.Ticket) (*domain.EscalationRecord, error) {
		if t.IsTerminal() {
			return nil, util.NewValidationError("resolved or closed tickets cannot be de-escalated", nil)
		}
		if t.EscalationLevel <= 0 {
			return nil, util.NewInvalidState("ticket is not escalated", nil)
		}
		from := t.EscalationLevel
		t.EscalationLevel = from - 1
		t.UpdatedAt = now
		return &domain.EscalationRecord{
			ID:          uuid.NewString(),
			TicketID:    t.ID,
			EscalatedAt: now,
			FromLevel:   from,
			ToLevel:     from - 1,
			EscalatedBy: actorID,
			Reason:      reason,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if s.records != nil {
		if err := s.records.Append(ctx, record); err != nil {
			s.logger.Error("append de-escalation record failed",
				zap.String("ticket_id", ticketID), zap.Error(err))
		}
	}
	s.publishLevelChange(ctx, events.EventTicketDeescalated, record, nil)
	return record, nil
}

// ClassifyPriority computes the suggested priority for a ticket without
// persisting anything.
func (s *EscalationService) ClassifyPriority(ctx context.Context, ticketID string) (domain.TicketPriority, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", util.NewNotFound("grievance", map[string]any{"ticket_id": ticketID})
		}
		return "", util.NewInternalError(err)
	}
	return s.classifier.Classify(ticket, s.now()), nil
}

// ReopenStatus reports whether a ticket can still be reopened and, when it
// can, until when.
type ReopenStatus struct {
	Reopenable bool
	Until      *time.Time
}

// CheckReopenable evaluates the reopen window for a ticket.
func (s *EscalationService) CheckReopenable(ctx context.Context, ticketID string) (ReopenStatus, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ReopenStatus{}, util.NewNotFound("grievance", map[string]any{"ticket_id": ticketID})
		}
		return ReopenStatus{}, util.NewInternalError(err)
	}
	if ticket.Status != domain.TicketStatusClosed || ticket.ClosedAt == nil {
		return ReopenStatus{}, nil
	}
	if !sla.IsReopenable(*ticket.ClosedAt, s.now()) {
		return ReopenStatus{}, nil
	}
	until := sla.ReopenableUntil(*ticket.ClosedAt)
	return ReopenStatus{Reopenable: true, Until: &until}, nil
}

// ListRecords returns the escalation audit trail for a ticket, oldest first.
func (s *EscalationService) ListRecords(ctx context.Context, ticketID string) ([]domain.EscalationRecord, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("grievance", map[string]any{"ticket_id": ticketID})
		}
		return nil, util.NewInternalError(err)
	}
	records, err := s.records.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	return records, nil
}

// applyTransition loads the ticket, lets mutate adjust it, and writes it
// back under the optimistic version check. A lost race is retried exactly
// once from freshly read state; a second loss surfaces as a conflict.
// mutate returning a nil record with nil error means the transition became
// unnecessary and nothing is written.
func (s *EscalationService) applyTransition(ctx context.Context, ticketID string, mutate func(*domain.Ticket) (*domain.EscalationRecord, error)) (*domain.EscalationRecord, error) {
	if s.locker != nil {
		acquired, err := s.locker.AcquireTicketLock(ctx, ticketID, s.lockTTL)
		if err != nil {
			s.logger.Warn("ticket lock unavailable",
				zap.String("ticket_id", ticketID), zap.Error(err))
		} else if acquired {
			defer func() {
				if err := s.locker.ReleaseTicketLock(ctx, ticketID); err != nil {
					s.logger.Warn("ticket lock release failed",
						zap.String("ticket_id", ticketID), zap.Error(err))
				}
			}()
		}
	}

	record, err := s.tryTransition(ctx, ticketID, mutate)
	if errors.Is(err, repository.ErrVersionConflict) {
		record, err = s.tryTransition(ctx, ticketID, mutate)
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, util.NewVersionConflict("grievance was modified concurrently", map[string]any{"ticket_id": ticketID})
		}
	}
	return record, err
}

func (s *EscalationService) tryTransition(ctx context.Context, ticketID string, mutate func(*domain.Ticket) (*domain.EscalationRecord, error)) (*domain.EscalationRecord, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("grievance", map[string]any{"ticket_id": ticketID})
		}
		return nil, util.NewInternalError(err)
	}

	expected := ticket.Version
	record, err := mutate(ticket)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	if err := s.tickets.UpdateWithVersion(ctx, ticket, expected); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		return nil, util.NewInternalError(err)
	}
	return record, nil
}

// finishEscalation appends the audit record, resolves recipients, notifies
// them, and publishes the escalation event. Post-write failures are logged
// only; the level change itself is already committed.
func (s *EscalationService) finishEscalation(ctx context.Context, ticketID string, record *domain.EscalationRecord, rule *domain.EscalationRule) {
	if s.records != nil {
		if err := s.records.Append(ctx, record); err != nil {
			s.logger.Error("append escalation record failed",
				zap.String("ticket_id", ticketID), zap.Error(err))
		}
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		s.logger.Error("reload ticket after escalation failed",
			zap.String("ticket_id", ticketID), zap.Error(err))
		ticket = nil
	}

	recipients := s.resolveRecipients(ticket, rule)
	if len(recipients) > 0 && s.notifier != nil {
		if err := s.notifier.Notify(ctx, recipients, ticketID, record.ToLevel, record.Reason); err != nil {
			s.logger.Error("escalation notification failed",
				zap.String("ticket_id", ticketID), zap.Error(err))
		}
	}
	s.publishLevelChange(ctx, events.EventTicketEscalated, record, recipients)
}

// resolveRecipients builds the alert audience for an escalation. The HR
// admin role is alerted from medium priority up; high and critical add the
// assignee and the super admin role; a manual rule adds its notify role.
func (s *EscalationService) resolveRecipients(ticket *domain.Ticket, rule *domain.EscalationRule) []string {
	seen := make(map[string]struct{})
	var recipients []string
	add := func(r string) {
		if r == "" {
			return
		}
		if _, ok := seen[r]; ok {
			return
		}
		seen[r] = struct{}{}
		recipients = append(recipients, r)
	}

	if ticket != nil {
		switch ticket.Priority {
		case domain.TicketPriorityMedium:
			add(string(domain.RoleHRAdmin))
		case domain.TicketPriorityHigh, domain.TicketPriorityCritical:
			add(string(domain.RoleHRAdmin))
			if ticket.AssigneeID != nil {
				add(*ticket.AssigneeID)
			}
			add(string(domain.RoleSuperAdmin))
		}
	}
	if rule != nil {
		add(string(rule.NotifyToRole))
	}
	return recipients
}

func (s *EscalationService) publishLevelChange(ctx context.Context, eventType events.EventType, record *domain.EscalationRecord, recipients []string) {
	if s.dispatcher == nil {
		return
	}
	actor := events.Actor{System: record.EscalatedBy == domain.SystemActor}
	if !actor.System {
		actorID := record.EscalatedBy
		actor.Type = domain.SubjectTypeOfficer
		actor.UserID = &actorID
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  record.TicketID,
		Actor:     actor,
		Timestamp: record.EscalatedAt,
		Payload: events.TicketEscalationPayload{
			FromLevel:   record.FromLevel,
			ToLevel:     record.ToLevel,
			Reason:      record.Reason,
			EscalatedBy: record.EscalatedBy,
			Recipients:  recipients,
		},
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish escalation event failed",
			zap.String("ticket_id", record.TicketID), zap.Error(err))
	}
}
