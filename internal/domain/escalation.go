package domain

import "time"

// MaxEscalationLevel is the terminal escalation tier. Automatic escalation
// never pushes a ticket above it; manual escalation is clamped to it.
const MaxEscalationLevel = 2

// SystemActor identifies transitions triggered by the scheduler tick.
const SystemActor = "system"

// EscalationRule is static configuration mapping a responsible role to a
// target escalation level and the role to notify. Loaded once, read-only.
type EscalationRule struct {
	ID               string
	Role             Role
	ThresholdMinutes int
	EscalationLevel  int
	NotifyToRole     Role
	Active           bool
	CreatedAt        time.Time
}

// EscalationRecord is an append-only audit entry created on every level
// change, up or down. Never mutated or deleted after creation.
type EscalationRecord struct {
	ID          string
	TicketID    string
	EscalatedAt time.Time
	FromLevel   int
	ToLevel     int
	EscalatedBy string
	Reason      string
	EscalatedTo *Role
}

// IsDeescalation reports whether the record captures a level decrease.
func (r *EscalationRecord) IsDeescalation() bool {
	return r.ToLevel < r.FromLevel
}
