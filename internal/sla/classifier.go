package sla

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-service/internal/domain"
)

// Working-hours thresholds for elapsed-time priority tiers.
const (
	criticalAfter = 40 * time.Hour
	highAfter     = 24 * time.Hour
	mediumAfter   = 16 * time.Hour

	// Staleness thresholds against the last update.
	inProgressStaleAfter = 12 * time.Hour
	assignedStaleAfter   = 8 * time.Hour
)

// reservedCategories are grievance categories that start at HIGH regardless
// of age. Matched case-insensitively as substrings of the ticket category.
var reservedCategories = []string{"health", "insurance", "advance", "esi", "medical"}

// Classifier derives a ticket's priority from elapsed working time and
// ticket attributes. Pure: the same ticket and now always yield the same
// priority, and urgency never decreases with the passage of time alone.
type Classifier struct {
	cal    *Calendar
	logger *zap.Logger
}

// NewClassifier builds a classifier over the given calendar.
func NewClassifier(cal *Calendar, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{cal: cal, logger: logger}
}

// Classify evaluates the priority rules in fixed order. The order is
// load-bearing: later, looser rules must not override earlier, stricter
// ones. Resolved and closed tickets return LOW as a sentinel that callers
// must not display as a real priority.
func (cl *Classifier) Classify(t *domain.Ticket, now time.Time) domain.TicketPriority {
	if t.IsTerminal() {
		return domain.TicketPriorityLow
	}

	elapsed := cl.elapsedSince(t.ID, t.CreatedAt, now)
	switch {
	case elapsed >= criticalAfter:
		return domain.TicketPriorityCritical
	case elapsed >= highAfter:
		return domain.TicketPriorityHigh
	case elapsed >= mediumAfter:
		return domain.TicketPriorityMedium
	}

	category := strings.ToLower(t.Category)
	for _, reserved := range reservedCategories {
		if strings.Contains(category, reserved) {
			return domain.TicketPriorityHigh
		}
	}
	// Facility categories jump straight to critical past the 24h mark.
	if strings.Contains(category, "facility") && elapsed > highAfter {
		return domain.TicketPriorityCritical
	}

	lastTouched := t.UpdatedAt
	if lastTouched.IsZero() {
		lastTouched = t.CreatedAt
	}
	sinceUpdate := cl.elapsedSince(t.ID, lastTouched, now)
	if t.Status == domain.TicketStatusInProgress && sinceUpdate > inProgressStaleAfter {
		return domain.TicketPriorityMedium
	}
	if t.AssigneeID != nil && sinceUpdate > assignedStaleAfter {
		return domain.TicketPriorityMedium
	}

	return domain.TicketPriorityLow
}

// elapsedSince degrades invalid timestamps to zero elapsed working time
// instead of failing the classification.
func (cl *Classifier) elapsedSince(ticketID string, from, now time.Time) time.Duration {
	if from.IsZero() {
		cl.logger.Warn("classifier: missing timestamp, treating elapsed as zero",
			zap.String("ticket_id", ticketID))
		return 0
	}
	return cl.cal.WorkingDuration(from, now)
}
