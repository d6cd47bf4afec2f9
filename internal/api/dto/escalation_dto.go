package dto

import (
	"time"

	"github.com/spec-kit/grievance-service/internal/domain"
)

// EscalateRequest payload for manual escalation.
type EscalateRequest struct {
	RuleID string `json:"rule_id"`
	Reason string `json:"reason"`
}

// DeEscalateRequest payload.
type DeEscalateRequest struct {
	Reason string `json:"reason"`
}

// EscalationRuleResponse describes one configured rule.
type EscalationRuleResponse struct {
	ID               string      `json:"id"`
	Role             domain.Role `json:"role"`
	ThresholdMinutes int         `json:"threshold_minutes"`
	EscalationLevel  int         `json:"escalation_level"`
	NotifyToRole     domain.Role `json:"notify_to_role"`
}

// NewEscalationRuleListResponse maps a rule slice.
func NewEscalationRuleListResponse(rules []domain.EscalationRule) []EscalationRuleResponse {
	out := make([]EscalationRuleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, EscalationRuleResponse{
			ID:               r.ID,
			Role:             r.Role,
			ThresholdMinutes: r.ThresholdMinutes,
			EscalationLevel:  r.EscalationLevel,
			NotifyToRole:     r.NotifyToRole,
		})
	}
	return out
}

// EscalationRecordResponse is one audit trail entry.
type EscalationRecordResponse struct {
	ID          string       `json:"id"`
	TicketID    string       `json:"ticket_id"`
	EscalatedAt time.Time    `json:"escalated_at"`
	FromLevel   int          `json:"from_level"`
	ToLevel     int          `json:"to_level"`
	EscalatedBy string       `json:"escalated_by"`
	Reason      string       `json:"reason"`
	EscalatedTo *domain.Role `json:"escalated_to,omitempty"`
}

// NewEscalationRecordResponse maps a domain record.
func NewEscalationRecordResponse(r *domain.EscalationRecord) EscalationRecordResponse {
	return EscalationRecordResponse{
		ID:          r.ID,
		TicketID:    r.TicketID,
		EscalatedAt: r.EscalatedAt,
		FromLevel:   r.FromLevel,
		ToLevel:     r.ToLevel,
		EscalatedBy: r.EscalatedBy,
		Reason:      r.Reason,
		EscalatedTo: r.EscalatedTo,
	}
}

// NewEscalationRecordListResponse maps a record slice.
func NewEscalationRecordListResponse(records []domain.EscalationRecord) []EscalationRecordResponse {
	out := make([]EscalationRecordResponse, 0, len(records))
	for i := range records {
		out = append(out, NewEscalationRecordResponse(&records[i]))
	}
	return out
}
