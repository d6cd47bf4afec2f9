package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/grievance-service/internal/domain"
)

// EscalationRuleRepository reads the static escalation rule table.
type EscalationRuleRepository interface {
	GetByID(ctx context.Context, id string) (*domain.EscalationRule, error)
	ListActive(ctx context.Context) ([]domain.EscalationRule, error)
}

// EscalationRecordRepository stores the append-only escalation audit trail.
type EscalationRecordRepository interface {
	Append(ctx context.Context, record *domain.EscalationRecord) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.EscalationRecord, error)
}

type escalationRuleRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationRuleRepository builds the rule repository.
func NewEscalationRuleRepository(pool *pgxpool.Pool) EscalationRuleRepository {
	return &escalationRuleRepository{pool: pool}
}

func (r *escalationRuleRepository) GetByID(ctx context.Context, id string) (*domain.EscalationRule, error) {
	const query = `
        SELECT id, role, threshold_minutes, escalation_level, notify_to_role, active, created_at
        FROM escalation_rules WHERE id=$1`
	var rule domain.EscalationRule
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&rule.ID,
		&rule.Role,
		&rule.ThresholdMinutes,
		&rule.EscalationLevel,
		&rule.NotifyToRole,
		&rule.Active,
		&rule.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *escalationRuleRepository) ListActive(ctx context.Context) ([]domain.EscalationRule, error) {
	const query = `
        SELECT id, role, threshold_minutes, escalation_level, notify_to_role, active, created_at
        FROM escalation_rules WHERE active ORDER BY escalation_level ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.EscalationRule
	for rows.Next() {
		var rule domain.EscalationRule
		if err := rows.Scan(
			&rule.ID,
			&rule.Role,
			&rule.ThresholdMinutes,
			&rule.EscalationLevel,
			&rule.NotifyToRole,
			&rule.Active,
			&rule.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

type escalationRecordRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationRecordRepository builds the record repository.
func NewEscalationRecordRepository(pool *pgxpool.Pool) EscalationRecordRepository {
	return &escalationRecordRepository{pool: pool}
}

func (r *escalationRecordRepository) Append(ctx context.Context, record *domain.EscalationRecord) error {
	const query = `
        INSERT INTO escalation_records (id, ticket_id, escalated_at, from_level, to_level, escalated_by, reason, escalated_to)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.pool.Exec(ctx, query,
		record.ID,
		record.TicketID,
		record.EscalatedAt,
		record.FromLevel,
		record.ToLevel,
		record.EscalatedBy,
		record.Reason,
		record.EscalatedTo,
	)
	return err
}

func (r *escalationRecordRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.EscalationRecord, error) {
	const query = `
        SELECT id, ticket_id, escalated_at, from_level, to_level, escalated_by, reason, escalated_to
        FROM escalation_records WHERE ticket_id=$1 ORDER BY escalated_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.EscalationRecord
	for rows.Next() {
		var record domain.EscalationRecord
		if err := rows.Scan(
			&record.ID,
			&record.TicketID,
			&record.EscalatedAt,
			&record.FromLevel,
			&record.ToLevel,
			&record.EscalatedBy,
			&record.Reason,
			&record.EscalatedTo,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
