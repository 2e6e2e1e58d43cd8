package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/communa-labs/ticketing/internal/dto"
	"github.com/communa-labs/ticketing/internal/service"
	"github.com/communa-labs/ticketing/pkg/logger"
	"github.com/communa-labs/ticketing/pkg/middleware"
	"github.com/communa-labs/ticketing/pkg/telemetry"
)

// ScanHandler handles gate admission HTTP requests
type ScanHandler struct {
	ticketService service.TicketService
}

// NewScanHandler creates a new scan handler
func NewScanHandler(ticketService service.TicketService) *ScanHandler {
	return &ScanHandler{ticketService: ticketService}
}

// Scan handles POST /scan. The response is always 200 with a structured
// outcome: a rejected code is a normal answer for a gate device, not an
// HTTP error.
func (h *ScanHandler) Scan(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.scan")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	operator, ok := middleware.GetActor(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}
	if !operator.IsStaff() {
		span.SetStatus(codes.Error, "forbidden")
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error: "scanning requires an organizer or admin role",
			Code:  "FORBIDDEN",
		})
		return
	}

	var req dto.ScanRequest
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

	span.SetAttributes(attribute.String("operator_id", operator.UserID))

	result, err := h.ticketService.Scan(ctx, req.Code, operator)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	// Every scan attempt is audited with the operator identity.
	logger.Get().Info("gate scan",
		"operator_id", operator.UserID,
		"result", result.Result,
		"serial", result.Serial,
		"ticket_id", result.TicketID,
	)

	span.SetAttributes(attribute.String("result", result.Result))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}
