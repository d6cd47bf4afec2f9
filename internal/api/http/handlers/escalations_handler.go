package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-service/internal/api/dto"
	"github.com/spec-kit/grievance-service/internal/auth"
	"github.com/spec-kit/grievance-service/internal/service"
	"github.com/spec-kit/grievance-service/pkg/util"
)

// EscalationsHandler exposes escalation and SLA endpoints.
type EscalationsHandler struct {
	service *service.EscalationService
}

// NewEscalationsHandler constructs handler.
func NewEscalationsHandler(escalationService *service.EscalationService) *EscalationsHandler {
	return &EscalationsHandler{service: escalationService}
}

// Escalate POST /grievances/:id/escalate.
func (h *EscalationsHandler) Escalate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.EscalateRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.RuleID == "" {
		return util.NewValidationError("rule_id required", nil)
	}

	record, err := h.service.ManualEscalate(c.UserContext(), c.Params("id"), req.RuleID, principal.SubjectID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEscalationRecordResponse(record)})
}

// DeEscalate POST /grievances/:id/deescalate.
func (h *EscalationsHandler) DeEscalate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.DeEscalateRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	record, err := h.service.DeEscalate(c.UserContext(), c.Params("id"), principal.SubjectID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEscalationRecordResponse(record)})
}

// ListRecords GET /grievances/:id/escalations.
func (h *EscalationsHandler) ListRecords(c *fiber.Ctx) error {
	records, err := h.service.ListRecords(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEscalationRecordListResponse(records)})
}

// ListRules GET /escalation-rules.
func (h *EscalationsHandler) ListRules(c *fiber.Ctx) error {
	rules, err := h.service.ListActiveRules(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEscalationRuleListResponse(rules)})
}

// Priority GET /grievances/:id/priority.
func (h *EscalationsHandler) Priority(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	priority, err := h.service.ClassifyPriority(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.PriorityResponse{TicketID: ticketID, Priority: priority}})
}

// Reopenable GET /grievances/:id/reopenable.
func (h *EscalationsHandler) Reopenable(c *fiber.Ctx) error {
	ticketID := c.Params("id")
	status, err := h.service.CheckReopenable(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ReopenableResponse{
		TicketID:        ticketID,
		Reopenable:      status.Reopenable,
		ReopenableUntil: status.Until,
	}})
}
