package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/escalation-service/internal/api/dto"
	"github.com/spec-kit/escalation-service/internal/auth"
	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/mapper"
	"github.com/spec-kit/escalation-service/internal/service"
	apperrors "github.com/spec-kit/escalation-service/pkg/util/errorutil"
)

const displayView = "display"

// TicketsHandler serves the support desk ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	return h.list(c, c.Query("level"))
}

// ListByLevel GET /tickets/level/:level.
func (h *TicketsHandler) ListByLevel(c *fiber.Ctx) error {
	return h.list(c, c.Params("level"))
}

func (h *TicketsHandler) list(c *fiber.Ctx, level string) error {
	page, err := h.service.ListTickets(c.UserContext(), service.ListQuery{
		Page:     c.Query("page"),
		Limit:    c.Query("limit"),
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Level:    level,
	})
	if err != nil {
		return err
	}

	var data any = dto.NewTicketResponses(page.Tickets)
	if c.Query("view") == displayView {
		data = mapper.MapTickets(page.Tickets)
	}
	return c.JSON(fiber.Map{
		"data":        data,
		"pagination":  page.Meta,
		"pageNumbers": page.PageNumbers,
	})
}

// Stats GET /tickets/stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return h.renderTicket(c, http.StatusOK, ticket)
}

// ListLogs GET /tickets/:id/logs.
func (h *TicketsHandler) ListLogs(c *fiber.Ctx) error {
	entries, err := h.service.ListLogs(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if c.Query("view") == displayView {
		return c.JSON(fiber.Map{"data": mapper.MapLogs(entries)})
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketLogResponses(entries)})
}

// Permissions GET /tickets/:id/permissions.
func (h *TicketsHandler) Permissions(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	perms, err := h.service.Permissions(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPermissionsResponse(perms.Affordances, perms.Forms)})
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), actor, service.CreateTicketInput{
		Title:                  req.Title,
		Description:            req.Description,
		Category:               req.Category,
		Priority:               req.Priority,
		ExpectedCompletionDate: req.ExpectedCompletionDate,
	})
	if err != nil {
		return err
	}
	return h.renderTicket(c, http.StatusCreated, ticket)
}

// UpdateAtLevel returns the POST /tickets/:id/update-l{n} handler for level.
func (h *TicketsHandler) UpdateAtLevel(level domain.Level) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := currentUser(c)
		if err != nil {
			return err
		}
		var req dto.UpdateTicketRequest
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		ticket, err := h.service.UpdateAtLevel(c.UserContext(), actor, c.Params("id"), service.UpdateInput{
			Level:           level,
			ActionStatus:    req.ActionStatus,
			ResolutionNotes: req.ResolutionNotes,
			CriticalValue:   req.CriticalValue,
			Resolution:      req.Resolution,
		})
		if err != nil {
			return err
		}
		return h.renderTicket(c, http.StatusOK, ticket)
	}
}

// Escalate returns the POST /tickets/:id/escalate-l{n} handler for target.
func (h *TicketsHandler) Escalate(target domain.Level) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := currentUser(c)
		if err != nil {
			return err
		}
		var req dto.EscalateRequest
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		ticket, err := h.service.Escalate(c.UserContext(), actor, c.Params("id"), service.EscalateInput{
			Target:     target,
			Reason:     req.Reason,
			AssigneeID: req.AssigneeID,
		})
		if err != nil {
			return err
		}
		return h.renderTicket(c, http.StatusOK, ticket)
	}
}

// Resolve POST /tickets/:id/resolve.
func (h *TicketsHandler) Resolve(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Resolve(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return h.renderTicket(c, http.StatusOK, ticket)
}

func (h *TicketsHandler) renderTicket(c *fiber.Ctx, status int, ticket *domain.Ticket) error {
	if c.Query("view") == displayView {
		return c.Status(status).JSON(fiber.Map{"data": mapper.MapTicket(ticket)})
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	return principal.User, nil
}
