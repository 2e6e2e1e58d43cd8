package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/communa-labs/ticketing/internal/domain"
	"github.com/communa-labs/ticketing/internal/dto"
	"github.com/communa-labs/ticketing/internal/service"
	"github.com/communa-labs/ticketing/pkg/middleware"
	"github.com/communa-labs/ticketing/pkg/telemetry"
)

// TicketTypeHandler handles ticket type administration HTTP requests
type TicketTypeHandler struct {
	ticketTypeService service.TicketTypeService
	ticketService     service.TicketService
}

// NewTicketTypeHandler creates a new ticket type handler
func NewTicketTypeHandler(ticketTypeService service.TicketTypeService, ticketService service.TicketService) *TicketTypeHandler {
	return &TicketTypeHandler{
		ticketTypeService: ticketTypeService,
		ticketService:     ticketService,
	}
}

// Create handles POST /ticket-types
func (h *TicketTypeHandler) Create(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket_type.create")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	actor, ok := middleware.GetActor(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	var req dto.CreateTicketTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	span.SetAttributes(
		attribute.String("user_id", actor.UserID),
		attribute.String("sellable_kind", req.SellableKind),
		attribute.String("sellable_id", req.SellableID),
	)

	result, err := h.ticketTypeService.Create(ctx, actor, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("ticket_type_id", result.ID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, result)
}

// Get handles GET /ticket-types/:id
func (h *TicketTypeHandler) Get(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket_type.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	id := c.Param("id")
	if id == "" {
		span.SetStatus(codes.Error, "ticket type id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "ticket type id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	span.SetAttributes(attribute.String("ticket_type_id", id))

	result, err := h.ticketTypeService.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// ListMine handles GET /ticket-types
func (h *TicketTypeHandler) ListMine(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket_type.list")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	actor, ok := middleware.GetActor(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	span.SetAttributes(attribute.String("organizer_id", actor.UserID))

	result, err := h.ticketTypeService.ListByOrganizer(ctx, actor.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// Archive handles DELETE /ticket-types/:id
func (h *TicketTypeHandler) Archive(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket_type.archive")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	actor, ok := middleware.GetActor(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	id := c.Param("id")
	if id == "" {
		span.SetStatus(codes.Error, "ticket type id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "ticket type id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	span.SetAttributes(
		attribute.String("ticket_type_id", id),
		attribute.String("user_id", actor.UserID),
	)

	if err := h.ticketTypeService.Archive(ctx, id, actor); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, gin.H{"status": "archived"})
}

// GetAvailability handles GET /ticket-types/:id/availability
func (h *TicketTypeHandler) GetAvailability(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket_type.availability")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	id := c.Param("id")
	if id == "" {
		span.SetStatus(codes.Error, "ticket type id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "ticket type id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	span.SetAttributes(attribute.String("ticket_type_id", id))

	result, err := h.ticketService.CheckAvailability(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// handleError converts domain errors to HTTP responses
func (h *TicketTypeHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrTicketTypeNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "NOT_FOUND",
		})
	case errors.Is(err, domain.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "FORBIDDEN",
		})
	case errors.Is(err, domain.ErrTicketTypeArchived):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "ARCHIVED",
		})
	case domain.IsValidationError(err):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		})
	}
}
