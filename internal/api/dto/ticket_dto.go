package dto

import (
	"time"

	"github.com/spec-kit/grievance-service/internal/domain"
)

// CreateGrievanceRequest payload.
type CreateGrievanceRequest struct {
	Category    string                `json:"category"`
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status  domain.TicketStatus `json:"status"`
	Comment string              `json:"comment"`
}

// AssignRequest payload. A null assignee clears the assignment.
type AssignRequest struct {
	AssigneeID *string `json:"assignee_id"`
}

// GrievanceResponse provides full grievance info.
type GrievanceResponse struct {
	ID              string                `json:"id"`
	ExternalKey     string                `json:"external_key"`
	RequesterID     string                `json:"requester_id"`
	Category        string                `json:"category"`
	Subject         string                `json:"subject"`
	Description     string                `json:"description"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	AssigneeID      *string               `json:"assignee_id"`
	EscalationLevel int                   `json:"escalation_level"`
	EscalatedAt     *time.Time            `json:"escalated_at"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	ClosedAt        *time.Time            `json:"closed_at"`
}

// NewGrievanceResponse maps a domain ticket to its response shape.
func NewGrievanceResponse(t *domain.Ticket) GrievanceResponse {
	return GrievanceResponse{
		ID:              t.ID,
		ExternalKey:     t.ExternalKey,
		RequesterID:     t.RequesterID,
		Category:        t.Category,
		Subject:         t.Subject,
		Description:     t.Description,
		Status:          t.Status,
		Priority:        t.Priority,
		AssigneeID:      t.AssigneeID,
		EscalationLevel: t.EscalationLevel,
		EscalatedAt:     t.EscalatedAt,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		ClosedAt:        t.ClosedAt,
	}
}

// NewGrievanceListResponse maps a ticket slice.
func NewGrievanceListResponse(tickets []domain.Ticket) []GrievanceResponse {
	out := make([]GrievanceResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewGrievanceResponse(&tickets[i]))
	}
	return out
}

// PriorityResponse reports a computed priority suggestion.
type PriorityResponse struct {
	TicketID string                `json:"ticket_id"`
	Priority domain.TicketPriority `json:"priority"`
}

// ReopenableResponse reports the reopen window state.
type ReopenableResponse struct {
	TicketID        string     `json:"ticket_id"`
	Reopenable      bool       `json:"reopenable"`
	ReopenableUntil *time.Time `json:"reopenable_until,omitempty"`
}
