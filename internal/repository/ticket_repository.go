package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/grievance-service/internal/domain"
)

// ErrVersionConflict reports a lost optimistic-lock race on a
// read-modify-write. Callers re-read and retry the decision.
var ErrVersionConflict = errors.New("ticket version conflict")

// TicketFilter captures listing parameters.
type TicketFilter struct {
	RequesterID *string
	AssigneeID  *string
	Category    *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketRepository encapsulates grievance persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// UpdateWithVersion persists the ticket only when the stored row still
	// carries expectedVersion, bumping the version on success. Returns
	// ErrVersionConflict when another writer got there first.
	UpdateWithVersion(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) error
	// ListOpen returns tickets still eligible for automatic escalation.
	ListOpen(ctx context.Context) ([]domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, requester_id, category, subject, description,
               status, priority, assignee_id, escalation_level, escalated_at,
               created_at, updated_at, closed_at, version`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, external_key, requester_id, category, subject, description, status, priority, assignee_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING escalation_level, created_at, updated_at, version`
	return r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.ExternalKey,
		ticket.RequesterID,
		ticket.Category,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.AssigneeID,
	).Scan(&ticket.EscalationLevel, &ticket.CreatedAt, &ticket.UpdatedAt, &ticket.Version)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) UpdateWithVersion(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) error {
	const query = `
        UPDATE tickets SET category=$1, subject=$2, description=$3, status=$4, priority=$5,
            assignee_id=$6, escalation_level=$7, escalated_at=$8, closed_at=$9,
            version=version+1, updated_at=NOW()
        WHERE id=$10 AND version=$11
        RETURNING version, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.Category,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.AssigneeID,
		ticket.EscalationLevel,
		ticket.EscalatedAt,
		ticket.ClosedAt,
		ticket.ID,
		expectedVersion,
	).Scan(&ticket.Version, &ticket.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	// No row matched: either the ticket is gone or the version moved on.
	var exists bool
	if checkErr := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, ticket.ID).Scan(&exists); checkErr != nil {
		return checkErr
	}
	if exists {
		return ErrVersionConflict
	}
	return pgx.ErrNoRows
}

func (r *ticketRepository) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE status = ANY($1) ORDER BY created_at ASC`, ticketColumns)
	rows, err := r.pool.Query(ctx, query, []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, strings.ToLower(strings.TrimSpace(*filter.Category)))
		clauses = append(clauses, fmt.Sprintf("LOWER(category)=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.RequesterID,
		&ticket.Category,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.AssigneeID,
		&ticket.EscalationLevel,
		&ticket.EscalatedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
		&ticket.Version,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
