package domain

import "time"

// TicketStatus enumerates lifecycle states for grievance tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// Severity returns the ordinal rank of the priority for comparisons.
// Unknown values rank below LOW.
func (p TicketPriority) Severity() int {
	switch p {
	case TicketPriorityLow:
		return 1
	case TicketPriorityMedium:
		return 2
	case TicketPriorityHigh:
		return 3
	case TicketPriorityCritical:
		return 4
	default:
		return 0
	}
}

// Ticket is the aggregate for grievance requests. Version carries the
// optimistic-lock counter checked on every read-modify-write.
type Ticket struct {
	ID              string
	ExternalKey     string
	RequesterID     string
	Category        string
	Subject         string
	Description     string
	Status          TicketStatus
	Priority        TicketPriority
	AssigneeID      *string
	EscalationLevel int
	EscalatedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ClosedAt        *time.Time
	Version         int64
}

// IsTerminal reports whether the ticket reached a state where priority is
// meaningless and escalation is frozen.
func (t *Ticket) IsTerminal() bool {
	return t.Status == TicketStatusResolved || t.Status == TicketStatusClosed
}
