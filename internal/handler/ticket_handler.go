package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/communa-labs/ticketing/internal/domain"
	"github.com/communa-labs/ticketing/internal/dto"
	"github.com/communa-labs/ticketing/internal/service"
	"github.com/communa-labs/ticketing/pkg/middleware"
	"github.com/communa-labs/ticketing/pkg/telemetry"
)

// TicketHandler handles ticket lifecycle HTTP requests
type TicketHandler struct {
	ticketService service.TicketService
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(ticketService service.TicketService) *TicketHandler {
	return &TicketHandler{ticketService: ticketService}
}

// Reserve handles POST /tickets/reserve
func (h *TicketHandler) Reserve(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket.reserve")
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

	var req dto.ReserveTicketRequest
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
		attribute.String("ticket_type_id", req.TicketTypeID),
	)

	result, err := h.ticketService.Reserve(ctx, actor, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("ticket_id", result.TicketID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, result)
}

// ConfirmPayment handles POST /tickets/:id/confirm
func (h *TicketHandler) ConfirmPayment(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket.confirm")
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

	ticketID := c.Param("id")
	if ticketID == "" {
		span.SetStatus(codes.Error, "ticket id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "ticket id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	span.SetAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("user_id", actor.UserID),
	)

	var req dto.ConfirmPaymentRequest
	// The payment reference is optional, an empty body is fine
	_ = c.ShouldBindJSON(&req)

	result, err := h.ticketService.ConfirmPayment(ctx, ticketID, actor, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// Cancel handles POST /tickets/:id/cancel
func (h *TicketHandler) Cancel(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket.cancel")
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

	ticketID := c.Param("id")
	if ticketID == "" {
		span.SetStatus(codes.Error, "ticket id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "ticket id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	span.SetAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("user_id", actor.UserID),
	)

	var req dto.CancelTicketRequest
	// The reason is optional, an empty body is fine
	_ = c.ShouldBindJSON(&req)

	result, err := h.ticketService.Cancel(ctx, ticketID, actor, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// GetTicket handles GET /tickets/:id
func (h *TicketHandler) GetTicket(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket.get")
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

	ticketID := c.Param("id")
	if ticketID == "" {
		span.SetStatus(codes.Error, "ticket id required")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "ticket id required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	span.SetAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("user_id", actor.UserID),
	)

	result, err := h.ticketService.GetTicket(ctx, ticketID, actor)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// GetUserTickets handles GET /tickets
func (h *TicketHandler) GetUserTickets(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket.list")
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

	page := 1
	pageSize := 20
	if p := c.Query("page"); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			page = n
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if n, err := strconv.Atoi(ps); err == nil && n > 0 && n <= 100 {
			pageSize = n
		}
	}

	span.SetAttributes(
		attribute.String("user_id", actor.UserID),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)

	result, err := h.ticketService.GetUserTickets(ctx, actor.UserID, page, pageSize)
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
func (h *TicketHandler) handleError(c *gin.Context, err error) {
	switch {
	case domain.IsNotFoundError(err):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "NOT_FOUND",
		})
	case errors.Is(err, domain.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "FORBIDDEN",
		})
	case errors.Is(err, domain.ErrUnavailable):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   err.Error(),
			Code:    "SOLD_OUT",
			Message: "No units remain for this ticket type",
		})
	case errors.Is(err, domain.ErrSaleWindowClosed):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "SALE_WINDOW_CLOSED",
		})
	case errors.Is(err, domain.ErrAlreadyPaid):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "ALREADY_PAID",
		})
	case errors.Is(err, domain.ErrAlreadyCancelled):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "ALREADY_CANCELLED",
		})
	case errors.Is(err, domain.ErrAlreadyRedeemed):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "ALREADY_REDEEMED",
		})
	case domain.IsExpiredError(err):
		c.JSON(http.StatusGone, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "EXPIRED",
		})
	case domain.IsConflictError(err):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "CONFLICT",
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
