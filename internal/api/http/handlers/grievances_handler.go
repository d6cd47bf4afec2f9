package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-service/internal/api/dto"
	"github.com/spec-kit/grievance-service/internal/auth"
	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/internal/service"
	"github.com/spec-kit/grievance-service/pkg/util"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// GrievancesHandler manages grievance lifecycle endpoints.
type GrievancesHandler struct {
	service *service.TicketService
}

// NewGrievancesHandler constructs handler.
func NewGrievancesHandler(ticketService *service.TicketService) *GrievancesHandler {
	return &GrievancesHandler{service: ticketService}
}

// Create POST /grievances.
func (h *GrievancesHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.SubjectType != domain.SubjectTypeUser {
		return util.NewUnauthorized("end-user required")
	}
	var req dto.CreateGrievanceRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), principal.SubjectID, service.TicketCreateInput{
		Category:    req.Category,
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewGrievanceResponse(ticket)})
}

// List GET /grievances. End-users see their own filings; officers see all.
func (h *GrievancesHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	filter := parseListQuery(c)

	var (
		tickets []domain.Ticket
		err     error
	)
	if principal.SubjectType == domain.SubjectTypeUser {
		tickets, err = h.service.ListUserTickets(c.UserContext(), principal.SubjectID, filter)
	} else {
		tickets, err = h.service.ListTickets(c.UserContext(), filter)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewGrievanceListResponse(tickets)})
}

// Get GET /grievances/:id.
func (h *GrievancesHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}

	var (
		ticket *domain.Ticket
		err    error
	)
	if principal.SubjectType == domain.SubjectTypeUser {
		ticket, err = h.service.GetTicketForUser(c.UserContext(), principal.SubjectID, c.Params("id"))
	} else {
		ticket, err = h.service.GetTicket(c.UserContext(), c.Params("id"))
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewGrievanceResponse(ticket)})
}

// UpdateStatus PATCH /grievances/:id/status.
func (h *GrievancesHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return util.NewValidationError("status required", nil)
	}

	ticket, err := h.service.UpdateStatus(c.UserContext(), c.Params("id"), principal.SubjectID, req.Status, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewGrievanceResponse(ticket)})
}

// Reopen POST /grievances/:id/reopen.
func (h *GrievancesHandler) Reopen(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.SubjectType != domain.SubjectTypeUser {
		return util.NewUnauthorized("end-user required")
	}

	ticket, err := h.service.ReopenTicket(c.UserContext(), c.Params("id"), principal.SubjectID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewGrievanceResponse(ticket)})
}

// Assign POST /grievances/:id/assign.
func (h *GrievancesHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.AssignTicket(c.UserContext(), c.Params("id"), principal.SubjectID, req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewGrievanceResponse(ticket)})
}

func parseListQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{
		CreatedFrom: parseTime(c.Query("created_from")),
		CreatedTo:   parseTime(c.Query("created_to")),
	}
	for _, raw := range strings.Split(c.Query("status"), ",") {
		if s := strings.TrimSpace(raw); s != "" {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.ToUpper(s)))
		}
	}
	for _, raw := range strings.Split(c.Query("priority"), ",") {
		if p := strings.TrimSpace(raw); p != "" {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.ToUpper(p)))
		}
	}
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		filter.Category = &category
	}
	if assignee := strings.TrimSpace(c.Query("assignee_id")); assignee != "" {
		filter.AssigneeID = &assignee
	}

	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
