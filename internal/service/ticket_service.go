package service

import (
	"context"
	"errors"
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

// allowedTransitions defines the grievance status state machine. A reopen
// is the only path out of CLOSED and goes through ReopenTicket, not here.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusResolved},
	domain.TicketStatusInProgress: {domain.TicketStatusResolved},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed, domain.TicketStatusInProgress},
	domain.TicketStatusClosed:     {},
}

// TicketService coordinates grievance lifecycle workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	classifier *sla.Classifier
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Classifier *sla.Classifier
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewTicketService wires the ticket service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		classifier: deps.Classifier,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// TicketCreateInput describes grievance creation payload.
type TicketCreateInput struct {
	Category    string
	Subject     string
	Description string
	Priority    domain.TicketPriority
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	Category    *string
	AssigneeID  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// CreateTicket files a new grievance. When no priority is supplied the
// classifier picks one from the category and filing time.
func (s *TicketService) CreateTicket(ctx context.Context, requesterID string, input TicketCreateInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return nil, util.NewValidationError("subject is required", nil)
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		return nil, util.NewValidationError("category is required", nil)
	}

	now := s.now()
	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		ExternalKey: generateTicketKey(),
		RequesterID: requesterID,
		Category:    category,
		Subject:     subject,
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}
	if ticket.Priority == "" {
		ticket.Priority = s.classifier.Classify(ticket, now)
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, util.NewInternalError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    userActor(requesterID),
		Payload: events.TicketCreatedPayload{
			Category: ticket.Category,
			Priority: ticket.Priority,
			Subject:  ticket.Subject,
		},
	})
	return ticket, nil
}

// GetTicketForUser fetches a grievance ensuring ownership.
func (s *TicketService) GetTicketForUser(ctx context.Context, userID, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.RequesterID != userID {
		return nil, util.NewForbidden("grievance belongs to another requester")
	}
	return ticket, nil
}

// GetTicket fetches a grievance without ownership checks, for officers.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.getTicket(ctx, ticketID)
}

// ListUserTickets returns the caller's own grievances.
func (s *TicketService) ListUserTickets(ctx context.Context, userID string, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := s.toRepoFilter(filter)
	repoFilter.RequesterID = &userID
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	return tickets, nil
}

// ListTickets returns grievances matching the filter, for officers.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, s.toRepoFilter(filter))
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	return tickets, nil
}

// UpdateStatus moves a grievance through the status state machine.
func (s *TicketService) UpdateStatus(ctx context.Context, ticketID, actorID string, newStatus domain.TicketStatus, comment string) (*domain.Ticket, error) {
	now := s.now()
	var oldStatus domain.TicketStatus
	ticket, err := s.mutateTicket(ctx, ticketID, func(t *domain.Ticket) error {
		if !transitionAllowed(t.Status, newStatus) {
			return util.NewInvalidState("status transition not allowed", map[string]any{
				"from": t.Status,
				"to":   newStatus,
			})
		}
		oldStatus = t.Status
		t.Status = newStatus
		t.UpdatedAt = now
		switch newStatus {
		case domain.TicketStatusClosed:
			closedAt := now
			t.ClosedAt = &closedAt
		case domain.TicketStatusInProgress:
			t.ClosedAt = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    officerActor(actorID),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: ticket.Status,
			Comment:   comment,
		},
	})
	return ticket, nil
}

// ReopenTicket moves a closed grievance back to OPEN when still inside
// the reopen window.
func (s *TicketService) ReopenTicket(ctx context.Context, ticketID, requesterID string) (*domain.Ticket, error) {
	now := s.now()
	var closedAt time.Time
	ticket, err := s.mutateTicket(ctx, ticketID, func(t *domain.Ticket) error {
		if t.RequesterID != requesterID {
			return util.NewForbidden("grievance belongs to another requester")
		}
		if t.Status != domain.TicketStatusClosed || t.ClosedAt == nil {
			return util.NewInvalidState("only closed grievances can be reopened", map[string]any{"status": t.Status})
		}
		if !sla.IsReopenable(*t.ClosedAt, now) {
			return util.NewValidationError("reopen window has expired", map[string]any{
				"closed_at":        t.ClosedAt,
				"reopenable_until": sla.ReopenableUntil(*t.ClosedAt),
			})
		}
		closedAt = *t.ClosedAt
		t.Status = domain.TicketStatusOpen
		t.ClosedAt = nil
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketReopened,
		TicketID: ticket.ID,
		Actor:    userActor(requesterID),
		Payload: events.TicketReopenedPayload{
			ClosedAt:        closedAt,
			ReopenableUntil: sla.ReopenableUntil(closedAt),
		},
	})
	return ticket, nil
}

// AssignTicket sets or clears the assignee of a grievance.
func (s *TicketService) AssignTicket(ctx context.Context, ticketID, actorID string, assigneeID *string) (*domain.Ticket, error) {
	now := s.now()
	ticket, err := s.mutateTicket(ctx, ticketID, func(t *domain.Ticket) error {
		if t.IsTerminal() {
			return util.NewInvalidState("resolved or closed grievances cannot be reassigned", nil)
		}
		t.AssigneeID = assigneeID
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    officerActor(actorID),
		Payload:  events.TicketAssignedPayload{AssigneeID: assigneeID},
	})
	return ticket, nil
}

func (s *TicketService) getTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("grievance", map[string]any{"ticket_id": ticketID})
		}
		return nil, util.NewInternalError(err)
	}
	return ticket, nil
}

// mutateTicket performs a read-modify-write under the version check with
// a single automatic retry on a lost race.
func (s *TicketService) mutateTicket(ctx context.Context, ticketID string, mutate func(*domain.Ticket) error) (*domain.Ticket, error) {
	ticket, err := s.tryMutate(ctx, ticketID, mutate)
	if errors.Is(err, repository.ErrVersionConflict) {
		ticket, err = s.tryMutate(ctx, ticketID, mutate)
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, util.NewVersionConflict("grievance was modified concurrently", map[string]any{"ticket_id": ticketID})
		}
	}
	return ticket, err
}

func (s *TicketService) tryMutate(ctx context.Context, ticketID string, mutate func(*domain.Ticket) error) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	expected := ticket.Version
	if err := mutate(ticket); err != nil {
		return nil, err
	}
	if err := s.tickets.UpdateWithVersion(ctx, ticket, expected); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		return nil, util.NewInternalError(err)
	}
	return ticket, nil
}

func (s *TicketService) toRepoFilter(filter TicketListFilter) repository.TicketFilter {
	return repository.TicketFilter{
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		Category:    filter.Category,
		AssigneeID:  filter.AssigneeID,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func transitionAllowed(from, to domain.TicketStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func generateTicketKey() string {
	return "GRV-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func userActor(userID string) events.Actor {
	return events.Actor{Type: domain.SubjectTypeUser, UserID: &userID}
}

func officerActor(officerID string) events.Actor {
	return events.Actor{Type: domain.SubjectTypeOfficer, UserID: &officerID}
}
