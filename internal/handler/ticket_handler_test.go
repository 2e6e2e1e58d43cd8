package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/communa-labs/ticketing/internal/domain"
	"github.com/communa-labs/ticketing/internal/dto"
	"github.com/communa-labs/ticketing/pkg/middleware"
)

func setupTicketRouter(svc *MockTicketService, userID, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set(middleware.ContextUserIDKey, userID)
		}
		if role != "" {
			c.Set(middleware.ContextRoleKey, role)
		}
		c.Next()
	})

	h := NewTicketHandler(svc)
	tickets := router.Group("/tickets")
	{
		tickets.POST("/reserve", h.Reserve)
		tickets.GET("", h.GetUserTickets)
		tickets.GET("/:id", h.GetTicket)
		tickets.POST("/:id/confirm", h.ConfirmPayment)
		tickets.POST("/:id/cancel", h.Cancel)
	}
	return router
}

func performJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTicketHandler_Reserve(t *testing.T) {
	tests := []struct {
		name           string
		userID         string
		body           interface{}
		reserveFunc    func(ctx context.Context, actor domain.Actor, req *dto.ReserveTicketRequest) (*dto.ReserveTicketResponse, error)
		expectedStatus int
	}{
		{
			name:   "successful reservation",
			userID: "user-001",
			body:   dto.ReserveTicketRequest{TicketTypeID: "type-001"},
			reserveFunc: func(ctx context.Context, actor domain.Actor, req *dto.ReserveTicketRequest) (*dto.ReserveTicketResponse, error) {
				return &dto.ReserveTicketResponse{
					TicketID:      "ticket-001",
					Serial:        "serial-001",
					ScanCode:      "signed-code",
					Status:        "reserved",
					HoldExpiresAt: time.Now().Add(15 * time.Minute),
				}, nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing identity",
			userID:         "",
			body:           dto.ReserveTicketRequest{TicketTypeID: "type-001"},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "missing ticket type id",
			userID:         "user-001",
			body:           map[string]string{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "sold out",
			userID: "user-001",
			body:   dto.ReserveTicketRequest{TicketTypeID: "type-001"},
			reserveFunc: func(ctx context.Context, actor domain.Actor, req *dto.ReserveTicketRequest) (*dto.ReserveTicketResponse, error) {
				return nil, domain.ErrUnavailable
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name:   "sale window closed",
			userID: "user-001",
			body:   dto.ReserveTicketRequest{TicketTypeID: "type-001"},
			reserveFunc: func(ctx context.Context, actor domain.Actor, req *dto.ReserveTicketRequest) (*dto.ReserveTicketResponse, error) {
				return nil, domain.ErrSaleWindowClosed
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name:   "unknown ticket type",
			userID: "user-001",
			body:   dto.ReserveTicketRequest{TicketTypeID: "missing"},
			reserveFunc: func(ctx context.Context, actor domain.Actor, req *dto.ReserveTicketRequest) (*dto.ReserveTicketResponse, error) {
				return nil, domain.ErrTicketTypeNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &MockTicketService{ReserveFunc: tc.reserveFunc}
			router := setupTicketRouter(svc, tc.userID, string(domain.RoleAttendee))

			w := performJSON(router, http.MethodPost, "/tickets/reserve", tc.body)

			if w.Code != tc.expectedStatus {
				t.Fatalf("expected status %d, got %d (body: %s)", tc.expectedStatus, w.Code, w.Body.String())
			}

			if tc.expectedStatus == http.StatusCreated {
				var resp dto.ReserveTicketResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if resp.ScanCode == "" {
					t.Error("expected the scan code in the reservation response")
				}
			}
		})
	}
}

func TestTicketHandler_ConfirmPayment(t *testing.T) {
	tests := []struct {
		name           string
		confirmFunc    func(ctx context.Context, ticketID string, actor domain.Actor, req *dto.ConfirmPaymentRequest) (*dto.ConfirmPaymentResponse, error)
		expectedStatus int
	}{
		{
			name: "successful confirmation",
			confirmFunc: func(ctx context.Context, ticketID string, actor domain.Actor, req *dto.ConfirmPaymentRequest) (*dto.ConfirmPaymentResponse, error) {
				return &dto.ConfirmPaymentResponse{TicketID: ticketID, Status: "paid", PaidAt: time.Now()}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "hold lapsed",
			confirmFunc: func(ctx context.Context, ticketID string, actor domain.Actor, req *dto.ConfirmPaymentRequest) (*dto.ConfirmPaymentResponse, error) {
				return nil, domain.ErrTicketExpired
			},
			expectedStatus: http.StatusGone,
		},
		{
			name: "already paid",
			confirmFunc: func(ctx context.Context, ticketID string, actor domain.Actor, req *dto.ConfirmPaymentRequest) (*dto.ConfirmPaymentResponse, error) {
				return nil, domain.ErrAlreadyPaid
			},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &MockTicketService{ConfirmPaymentFunc: tc.confirmFunc}
			router := setupTicketRouter(svc, "user-001", string(domain.RoleAttendee))

			w := performJSON(router, http.MethodPost, "/tickets/ticket-001/confirm", dto.ConfirmPaymentRequest{PaymentRef: "pay-123"})

			if w.Code != tc.expectedStatus {
				t.Fatalf("expected status %d, got %d (body: %s)", tc.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestTicketHandler_Cancel(t *testing.T) {
	tests := []struct {
		name           string
		cancelFunc     func(ctx context.Context, ticketID string, actor domain.Actor, req *dto.CancelTicketRequest) (*dto.CancelTicketResponse, error)
		expectedStatus int
	}{
		{
			name: "successful cancellation",
			cancelFunc: func(ctx context.Context, ticketID string, actor domain.Actor, req *dto.CancelTicketRequest) (*dto.CancelTicketResponse, error) {
				return &dto.CancelTicketResponse{TicketID: ticketID, Status: "cancelled"}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "not the owner",
			cancelFunc: func(ctx context.Context, ticketID string, actor domain.Actor, req *dto.CancelTicketRequest) (*dto.CancelTicketResponse, error) {
				return nil, domain.ErrPermissionDenied
			},
			expectedStatus: http.StatusForbidden,
		},
		{
			name: "already redeemed",
			cancelFunc: func(ctx context.Context, ticketID string, actor domain.Actor, req *dto.CancelTicketRequest) (*dto.CancelTicketResponse, error) {
				return nil, domain.ErrAlreadyRedeemed
			},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &MockTicketService{CancelFunc: tc.cancelFunc}
			router := setupTicketRouter(svc, "user-001", string(domain.RoleAttendee))

			w := performJSON(router, http.MethodPost, "/tickets/ticket-001/cancel", dto.CancelTicketRequest{Reason: "changed plans"})

			if w.Code != tc.expectedStatus {
				t.Fatalf("expected status %d, got %d (body: %s)", tc.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestTicketHandler_GetTicket(t *testing.T) {
	t.Run("ticket not found", func(t *testing.T) {
		svc := &MockTicketService{
			GetTicketFunc: func(ctx context.Context, ticketID string, actor domain.Actor) (*dto.TicketResponse, error) {
				return nil, domain.ErrTicketNotFound
			},
		}
		router := setupTicketRouter(svc, "user-001", string(domain.RoleAttendee))

		w := performJSON(router, http.MethodGet, "/tickets/missing", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", w.Code)
		}
	})

	t.Run("listing forwards pagination", func(t *testing.T) {
		var gotPage, gotPageSize int
		svc := &MockTicketService{
			GetUserTicketsFunc: func(ctx context.Context, userID string, page, pageSize int) (*dto.PaginatedTicketsResponse, error) {
				gotPage, gotPageSize = page, pageSize
				return &dto.PaginatedTicketsResponse{Page: page, PageSize: pageSize}, nil
			},
		}
		router := setupTicketRouter(svc, "user-001", string(domain.RoleAttendee))

		w := performJSON(router, http.MethodGet, "/tickets?page=3&page_size=50", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		if gotPage != 3 || gotPageSize != 50 {
			t.Errorf("expected page=3 page_size=50, got page=%d page_size=%d", gotPage, gotPageSize)
		}
	})
}
