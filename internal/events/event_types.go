package events

import (
	"time"

	"github.com/spec-kit/grievance-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketReopened      EventType = "ticket_reopened"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventTicketDeescalated   EventType = "ticket_deescalated"
)

// Actor encapsulates actor metadata for an event. System describes
// transitions driven by the scheduler tick.
type Actor struct {
	Type   domain.SubjectType `json:"type,omitempty"`
	UserID *string            `json:"user_id,omitempty"`
	System bool               `json:"system,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Category string                `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
	Subject  string                `json:"subject"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeID *string `json:"assignee_id,omitempty"`
}

// TicketReopenedPayload payload.
type TicketReopenedPayload struct {
	ClosedAt        time.Time `json:"closed_at"`
	ReopenableUntil time.Time `json:"reopenable_until"`
}

// TicketEscalationPayload is shared by escalation and de-escalation
// events; Recipients is empty for de-escalations.
type TicketEscalationPayload struct {
	FromLevel   int      `json:"from_level"`
	ToLevel     int      `json:"to_level"`
	Reason      string   `json:"reason,omitempty"`
	EscalatedBy string   `json:"escalated_by"`
	Recipients  []string `json:"recipients,omitempty"`
}
