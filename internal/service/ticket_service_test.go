package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/communa-labs/ticketing/internal/domain"
	"github.com/communa-labs/ticketing/internal/dto"
	"github.com/communa-labs/ticketing/internal/inventory"
	"github.com/communa-labs/ticketing/internal/scancode"
)

// MockTicketRepository is a mock implementation of TicketRepository
type MockTicketRepository struct {
	CreateFunc               func(ctx context.Context, ticket *domain.Ticket) error
	GetByIDFunc              func(ctx context.Context, id string) (*domain.Ticket, error)
	GetBySerialFunc          func(ctx context.Context, serial string) (*domain.Ticket, error)
	GetByOwnerFunc           func(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Ticket, error)
	ConfirmPaymentFunc       func(ctx context.Context, id, paymentRef string) error
	CancelFunc               func(ctx context.Context, id string, from domain.TicketStatus, reason string) error
	RedeemFunc               func(ctx context.Context, id, operatorID string) error
	MarkExpiredFunc          func(ctx context.Context, id string) error
	GetStaleReservationsFunc func(ctx context.Context, limit int) ([]*domain.Ticket, error)
}

func (m *MockTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, ticket)
	}
	return nil
}

func (m *MockTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrTicketNotFound
}

func (m *MockTicketRepository) GetBySerial(ctx context.Context, serial string) (*domain.Ticket, error) {
	if m.GetBySerialFunc != nil {
		return m.GetBySerialFunc(ctx, serial)
	}
	return nil, domain.ErrTicketNotFound
}

func (m *MockTicketRepository) GetByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Ticket, error) {
	if m.GetByOwnerFunc != nil {
		return m.GetByOwnerFunc(ctx, ownerID, limit, offset)
	}
	return []*domain.Ticket{}, nil
}

func (m *MockTicketRepository) ConfirmPayment(ctx context.Context, id, paymentRef string) error {
	if m.ConfirmPaymentFunc != nil {
		return m.ConfirmPaymentFunc(ctx, id, paymentRef)
	}
	return nil
}

func (m *MockTicketRepository) Cancel(ctx context.Context, id string, from domain.TicketStatus, reason string) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, id, from, reason)
	}
	return nil
}

func (m *MockTicketRepository) Redeem(ctx context.Context, id, operatorID string) error {
	if m.RedeemFunc != nil {
		return m.RedeemFunc(ctx, id, operatorID)
	}
	return nil
}

func (m *MockTicketRepository) MarkExpired(ctx context.Context, id string) error {
	if m.MarkExpiredFunc != nil {
		return m.MarkExpiredFunc(ctx, id)
	}
	return nil
}

func (m *MockTicketRepository) GetStaleReservations(ctx context.Context, limit int) ([]*domain.Ticket, error) {
	if m.GetStaleReservationsFunc != nil {
		return m.GetStaleReservationsFunc(ctx, limit)
	}
	return []*domain.Ticket{}, nil
}

// MockTicketTypeRepository is a mock implementation of TicketTypeRepository
type MockTicketTypeRepository struct {
	CreateFunc         func(ctx context.Context, tt *domain.TicketType) error
	GetByIDFunc        func(ctx context.Context, id string) (*domain.TicketType, error)
	GetByOrganizerFunc func(ctx context.Context, organizerID string) ([]*domain.TicketType, error)
	ArchiveFunc        func(ctx context.Context, id string) error
}

func (m *MockTicketTypeRepository) Create(ctx context.Context, tt *domain.TicketType) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tt)
	}
	return nil
}

func (m *MockTicketTypeRepository) GetByID(ctx context.Context, id string) (*domain.TicketType, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrTicketTypeNotFound
}

func (m *MockTicketTypeRepository) GetByOrganizer(ctx context.Context, organizerID string) ([]*domain.TicketType, error) {
	if m.GetByOrganizerFunc != nil {
		return m.GetByOrganizerFunc(ctx, organizerID)
	}
	return []*domain.TicketType{}, nil
}

func (m *MockTicketTypeRepository) Archive(ctx context.Context, id string) error {
	if m.ArchiveFunc != nil {
		return m.ArchiveFunc(ctx, id)
	}
	return nil
}

// MockLedger is a mock implementation of inventory.Ledger
type MockLedger struct {
	TryReserveFunc        func(ctx context.Context, ticketTypeID string, qty int64) error
	ReleaseFunc           func(ctx context.Context, ticketTypeID string, qty int64) error
	CheckAvailabilityFunc func(ctx context.Context, ticketTypeID string) (*inventory.Availability, error)
}

func (m *MockLedger) TryReserve(ctx context.Context, ticketTypeID string, qty int64) error {
	if m.TryReserveFunc != nil {
		return m.TryReserveFunc(ctx, ticketTypeID, qty)
	}
	return nil
}

func (m *MockLedger) Release(ctx context.Context, ticketTypeID string, qty int64) error {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, ticketTypeID, qty)
	}
	return nil
}

func (m *MockLedger) CheckAvailability(ctx context.Context, ticketTypeID string) (*inventory.Availability, error) {
	if m.CheckAvailabilityFunc != nil {
		return m.CheckAvailabilityFunc(ctx, ticketTypeID)
	}
	return &inventory.Availability{TicketTypeID: ticketTypeID, Capacity: 100, Sold: 0, Remaining: 100}, nil
}

func testCodec() *scancode.Codec {
	return scancode.New("test-secret", "")
}

func onSaleTicketType() *domain.TicketType {
	now := time.Now()
	return &domain.TicketType{
		ID: "type-001",
		Sellable: domain.Sellable{
			Kind: domain.SellableKindEvent,
			ID:   "event-001",
		},
		OrganizerID: "org-001",
		Name:        "General Admission",
		Price:       50.00,
		Capacity:    100,
		Sold:        10,
		SaleStart:   now.Add(-time.Hour),
		SaleEnd:     now.Add(24 * time.Hour),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func paidTicket(codec *scancode.Codec) *domain.Ticket {
	now := time.Now()
	code, _ := codec.Encode("ticket-001", "serial-001", now)
	paidAt := now.Add(-time.Minute)
	return &domain.Ticket{
		ID:            "ticket-001",
		Serial:        "serial-001",
		ScanCode:      code,
		TicketTypeID:  "type-001",
		Sellable:      domain.Sellable{Kind: domain.SellableKindEvent, ID: "event-001"},
		OwnerID:       "user-001",
		Status:        domain.TicketStatusPaid,
		Price:         50.00,
		ValidFrom:     now.Add(-time.Hour),
		ValidUntil:    now.Add(time.Hour),
		ReservedAt:    now.Add(-10 * time.Minute),
		HoldExpiresAt: now.Add(5 * time.Minute),
		PaidAt:        &paidAt,
		CreatedAt:     now.Add(-10 * time.Minute),
		UpdatedAt:     now,
	}
}

func TestTicketService_Reserve(t *testing.T) {
	attendee := domain.Actor{UserID: "user-001", Role: domain.RoleAttendee}

	tests := []struct {
		name        string
		actor       domain.Actor
		req         *dto.ReserveTicketRequest
		setupMocks  func(*MockTicketRepository, *MockTicketTypeRepository, *MockLedger)
		wantErr     error
		wantCode    bool
		wantRelease bool
	}{
		{
			name:  "successful reservation",
			actor: attendee,
			req:   &dto.ReserveTicketRequest{TicketTypeID: "type-001"},
			setupMocks: func(tr *MockTicketRepository, tt *MockTicketTypeRepository, l *MockLedger) {
				tt.GetByIDFunc = func(ctx context.Context, id string) (*domain.TicketType, error) {
					return onSaleTicketType(), nil
				}
			},
			wantErr:  nil,
			wantCode: true,
		},
		{
			name:  "ticket type not found",
			actor: attendee,
			req:   &dto.ReserveTicketRequest{TicketTypeID: "missing"},
			setupMocks: func(tr *MockTicketRepository, tt *MockTicketTypeRepository, l *MockLedger) {
				tt.GetByIDFunc = func(ctx context.Context, id string) (*domain.TicketType, error) {
					return nil, domain.ErrTicketTypeNotFound
				}
			},
			wantErr: domain.ErrTicketTypeNotFound,
		},
		{
			name:  "sale window closed",
			actor: attendee,
			req:   &dto.ReserveTicketRequest{TicketTypeID: "type-001"},
			setupMocks: func(tr *MockTicketRepository, tt *MockTicketTypeRepository, l *MockLedger) {
				tt.GetByIDFunc = func(ctx context.Context, id string) (*domain.TicketType, error) {
					typ := onSaleTicketType()
					typ.SaleEnd = time.Now().Add(-time.Minute)
					return typ, nil
				}
			},
			wantErr: domain.ErrSaleWindowClosed,
		},
		{
			name:  "sold out",
			actor: attendee,
			req:   &dto.ReserveTicketRequest{TicketTypeID: "type-001"},
			setupMocks: func(tr *MockTicketRepository, tt *MockTicketTypeRepository, l *MockLedger) {
				tt.GetByIDFunc = func(ctx context.Context, id string) (*domain.TicketType, error) {
					return onSaleTicketType(), nil
				}
				l.TryReserveFunc = func(ctx context.Context, ticketTypeID string, qty int64) error {
					return domain.ErrUnavailable
				}
				tr.CreateFunc = func(ctx context.Context, ticket *domain.Ticket) error {
					t.Error("Create should not be called when the ledger rejects")
					return nil
				}
			},
			wantErr: domain.ErrUnavailable,
		},
		{
			name:  "insert failure releases the claimed unit",
			actor: attendee,
			req:   &dto.ReserveTicketRequest{TicketTypeID: "type-001"},
			setupMocks: func(tr *MockTicketRepository, tt *MockTicketTypeRepository, l *MockLedger) {
				tt.GetByIDFunc = func(ctx context.Context, id string) (*domain.TicketType, error) {
					return onSaleTicketType(), nil
				}
				tr.CreateFunc = func(ctx context.Context, ticket *domain.Ticket) error {
					return errors.New("insert failed")
				}
			},
			wantErr:     errors.New("insert failed"),
			wantRelease: true,
		},
		{
			name:    "missing ticket type id",
			actor:   attendee,
			req:     &dto.ReserveTicketRequest{},
			wantErr: domain.ErrInvalidTicketTypeID,
		},
		{
			name:    "missing user id",
			actor:   domain.Actor{Role: domain.RoleAttendee},
			req:     &dto.ReserveTicketRequest{TicketTypeID: "type-001"},
			wantErr: domain.ErrInvalidOwnerID,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ticketRepo := &MockTicketRepository{}
			typeRepo := &MockTicketTypeRepository{}
			ledger := &MockLedger{}
			released := 0
			baseRelease := func(ctx context.Context, ticketTypeID string, qty int64) error {
				released++
				return nil
			}
			ledger.ReleaseFunc = baseRelease
			if tc.setupMocks != nil {
				tc.setupMocks(ticketRepo, typeRepo, ledger)
			}

			svc := NewTicketService(ticketRepo, typeRepo, ledger, testCodec(), NewNoOpEventPublisher(), nil, nil)
			resp, err := svc.Reserve(context.Background(), tc.actor, tc.req)

			if tc.wantErr != nil {
				if err == nil {
					t.Fatalf("expected error %v, got nil", tc.wantErr)
				}
				if !errors.Is(err, tc.wantErr) && err.Error() != tc.wantErr.Error() {
					t.Fatalf("expected error %v, got %v", tc.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tc.wantCode {
				if resp == nil || resp.ScanCode == "" {
					t.Fatal("expected a scan code in the reservation response")
				}
				if resp.Status != string(domain.TicketStatusReserved) {
					t.Errorf("expected status reserved, got %s", resp.Status)
				}
				if !resp.HoldExpiresAt.After(time.Now()) {
					t.Error("expected hold_expires_at in the future")
				}
			}

			if tc.wantRelease && released == 0 {
				t.Error("expected the ledger unit to be released after insert failure")
			}
			if !tc.wantRelease && released > 0 {
				t.Errorf("unexpected ledger release, count=%d", released)
			}
		})
	}
}

func TestTicketService_ConfirmPayment(t *testing.T) {
	owner := domain.Actor{UserID: "user-001", Role: domain.RoleAttendee}
	stranger := domain.Actor{UserID: "user-999", Role: domain.RoleAttendee}
	codec := testCodec()

	reservedTicket := func() *domain.Ticket {
		tk := paidTicket(codec)
		tk.Status = domain.TicketStatusReserved
		tk.PaidAt = nil
		return tk
	}

	tests := []struct {
		name       string
		ticketID   string
		actor      domain.Actor
		setupMocks func(*MockTicketRepository)
		wantErr    error
	}{
		{
			name:     "successful confirmation",
			ticketID: "ticket-001",
			actor:    owner,
			setupMocks: func(tr *MockTicketRepository) {
				tr.GetByIDFunc = func(ctx context.Context, id string) (*domain.Ticket, error) {
					return reservedTicket(), nil
				}
			},
		},
		{
			name:     "ticket not found",
			ticketID: "missing",
			actor:    owner,
			setupMocks: func(tr *MockTicketRepository) {
				tr.GetByIDFunc = func(ctx context.Context, id string) (*domain.Ticket, error) {
					return nil, domain.ErrTicketNotFound
				}
			},
			wantErr: domain.ErrTicketNotFound,
		},
		{
			name:     "not the owner",
			ticketID: "ticket-001",
			actor:    stranger,
			setupMocks: func(tr *MockTicketRepository) {
				tr.GetByIDFunc = func(ctx context.Context, id string) (*domain.Ticket, error) {
					return reservedTicket(), nil
				}
			},
			wantErr: domain.ErrPermissionDenied,
		},
		{
			name:     "hold lapsed before confirmation",
			ticketID: "ticket-001",
			actor:    owner,
			setupMocks: func(tr *MockTicketRepository) {
				tr.GetByIDFunc = func(ctx context.Context, id string) (*domain.Ticket, error) {
					return reservedTicket(), nil
				}
				tr.ConfirmPaymentFunc = func(ctx context.Context, id, paymentRef string) error {
					return domain.ErrTicketExpired
				}
			},
			wantErr: domain.ErrTicketExpired,
		},
		{
			name:     "already paid",
			ticketID: "ticket-001",
			actor:    owner,
			setupMocks: func(tr *MockTicketRepository) {
				tr.GetByIDFunc = func(ctx context.Context, id string) (*domain.Ticket, error) {
					return paidTicket(codec), nil
				}
				tr.ConfirmPaymentFunc = func(ctx context.Context, id, paymentRef string) error {
					return domain.ErrAlreadyPaid
				}
			},
			wantErr: domain.ErrAlreadyPaid,
		},
		{
			name:     "missing ticket id",
			ticketID: "",
			actor:    owner,
			wantErr:  domain.ErrInvalidTicketID,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ticketRepo := &MockTicketRepository{}
			if tc.setupMocks != nil {
				tc.setupMocks(ticketRepo)
			}

			svc := NewTicketService(ticketRepo, &MockTicketTypeRepository{}, &MockLedger{}, codec, NewNoOpEventPublisher(), nil, nil)
			resp, err := svc.ConfirmPayment(context.Background(), tc.ticketID, tc.actor, &dto.ConfirmPaymentRequest{PaymentRef: "pay-123"})

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected error %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Status != string(domain.TicketStatusPaid) {
				t.Errorf("expected status paid, got %s", resp.Status)
			}
		})
	}
}

func TestTicketService_Cancel(t *testing.T) {
	owner := domain.Actor{UserID: "user-001", Role: domain.RoleAttendee}
	organizer := domain.Actor{UserID: "org-001", Role: domain.RoleOrganizer}
	otherOrganizer := domain.Actor{UserID: "org-999", Role: domain.RoleOrganizer}
	stranger := domain.Actor{UserID: "user-999", Role: domain.RoleAttendee}
	codec := testCodec()

	tests := []struct {
		name        string
		actor       domain.Actor
		setupMocks  func(*MockTicketRepository)
		wantErr     error
		wantRelease bool
	}{
		{
			name:  "owner cancels a paid ticket",
			actor: owner,
			setupMocks: func(tr *MockTicketRepository) {
				tr.GetByIDFunc = func(ctx context.Context, id string) (*domain.Ticket, error) {
					return paidTicket(codec), nil
				}
			},
			wantRelease: true,
		},
		{
			name:  "owning organizer cancels on behalf of the attendee",
			actor: organizer,
			setupMocks: func(tr *MockTicketRepository) {
				tr.GetByIDFunc = func(ctx context.Context, id string) (*domain.Ticket, error) {
					return paidTicket(codec), nil
				}
			},
			wantRelease: true,
		},
		{
			name:  "organizer of an unrelated type is denied",
			actor: otherOrganizer,
			setupMocks: func(tr *MockTicketRepository) {
				tr.GetByIDFunc = func(ctx context.Context, id string) (*domain.Ticket, error) {
					return paidTicket(codec), nil
				}
				tr.CancelFunc = func(ctx context.Context, id string, from domain.TicketStatus, reason string) error {
					t.Error("Cancel must not reach the repository for a foreign organizer")
					return nil
				}
			},
			wantErr: domain.ErrPermissionDenied,
		},
		{
			name:  "stranger is denied",
			actor: stranger,
			setupMocks: func(tr *MockTicketRepository) {
				tr.GetByIDFunc = func(ctx context.Context, id string) (*domain.Ticket, error) {
					return paidTicket(codec), nil
				}
			},
			wantErr: domain.ErrPermissionDenied,
		},
		{
			name:  "already redeemed",
			actor: owner,
			setupMocks: func(tr *MockTicketRepository) {
				tr.GetByIDFunc = func(ctx context.Context, id string) (*domain.Ticket, error) {
					tk := paidTicket(codec)
					tk.Status = domain.TicketStatusUsed
					return tk, nil
				}
			},
			wantErr: domain.ErrAlreadyRedeemed,
		},
		{
			name:  "expiry sweep wins the race",
			actor: owner,
			setupMocks: func(tr *MockTicketRepository) {
				tr.GetByIDFunc = func(ctx context.Context, id string) (*domain.Ticket, error) {
					tk := paidTicket(codec)
					tk.Status = domain.TicketStatusReserved
					tk.PaidAt = nil
					return tk, nil
				}
				tr.CancelFunc = func(ctx context.Context, id string, from domain.TicketStatus, reason string) error {
					return domain.ErrTicketExpired
				}
			},
			wantErr: domain.ErrTicketExpired,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ticketRepo := &MockTicketRepository{}
			if tc.setupMocks != nil {
				tc.setupMocks(ticketRepo)
			}

			released := 0
			ledger := &MockLedger{
				ReleaseFunc: func(ctx context.Context, ticketTypeID string, qty int64) error {
					released++
					return nil
				},
			}
			// org-001 owns the ticket's type; organizer access resolves
			// against this.
			typeRepo := &MockTicketTypeRepository{
				GetByIDFunc: func(ctx context.Context, id string) (*domain.TicketType, error) {
					return onSaleTicketType(), nil
				},
			}

			svc := NewTicketService(ticketRepo, typeRepo, ledger, codec, NewNoOpEventPublisher(), nil, nil)
			_, err := svc.Cancel(context.Background(), "ticket-001", tc.actor, &dto.CancelTicketRequest{Reason: "changed plans"})

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected error %v, got %v", tc.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tc.wantRelease && released != 1 {
				t.Errorf("expected exactly one ledger release, got %d", released)
			}
			if !tc.wantRelease && released != 0 {
				t.Errorf("expected no ledger release, got %d", released)
			}
		})
	}
}

func TestTicketService_Scan(t *testing.T) {
	operator := domain.Actor{UserID: "gate-001", Role: domain.RoleOrganizer}
	codec := testCodec()

	tests := []struct {
		name       string
		code       func() string
		setupMocks func(*MockTicketRepository)
		wantResult string
	}{
		{
			name: "valid paid ticket is admitted",
			code: func() string { return paidTicket(codec).ScanCode },
			setupMocks: func(tr *MockTicketRepository) {
				tr.GetBySerialFunc = func(ctx context.Context, serial string) (*domain.Ticket, error) {
					return paidTicket(codec), nil
				}
			},
			wantResult: dto.ScanResultAdmitted,
		},
		{
			name:       "garbage code is invalid",
			code:       func() string { return "not-a-real-code" },
			wantResult: dto.ScanResultInvalid,
		},
		{
			name: "signed code for an unknown ticket is invalid",
			code: func() string { return paidTicket(codec).ScanCode },
			setupMocks: func(tr *MockTicketRepository) {
				tr.GetBySerialFunc = func(ctx context.Context, serial string) (*domain.Ticket, error) {
					return nil, domain.ErrTicketNotFound
				}
			},
			wantResult: dto.ScanResultInvalid,
		},
		{
			name: "ticket not yet valid",
			code: func() string { return paidTicket(codec).ScanCode },
			setupMocks: func(tr *MockTicketRepository) {
				tr.GetBySerialFunc = func(ctx context.Context, serial string) (*domain.Ticket, error) {
					tk := paidTicket(codec)
					tk.ValidFrom = time.Now().Add(time.Hour)
					tk.ValidUntil = time.Now().Add(2 * time.Hour)
					return tk, nil
				}
			},
			wantResult: dto.ScanResultNotYetValid,
		},
		{
			name: "validity window passed",
			code: func() string { return paidTicket(codec).ScanCode },
			setupMocks: func(tr *MockTicketRepository) {
				tr.GetBySerialFunc = func(ctx context.Context, serial string) (*domain.Ticket, error) {
					tk := paidTicket(codec)
					tk.ValidFrom = time.Now().Add(-2 * time.Hour)
					tk.ValidUntil = time.Now().Add(-time.Hour)
					return tk, nil
				}
			},
			wantResult: dto.ScanResultExpired,
		},
		{
			name: "second scan reports already used",
			code: func() string { return paidTicket(codec).ScanCode },
			setupMocks: func(tr *MockTicketRepository) {
				tr.GetBySerialFunc = func(ctx context.Context, serial string) (*domain.Ticket, error) {
					return paidTicket(codec), nil
				}
				tr.RedeemFunc = func(ctx context.Context, id, operatorID string) error {
					return domain.ErrAlreadyRedeemed
				}
				tr.GetByIDFunc = func(ctx context.Context, id string) (*domain.Ticket, error) {
					tk := paidTicket(codec)
					tk.Status = domain.TicketStatusUsed
					redeemedAt := time.Now().Add(-time.Minute)
					tk.RedeemedAt = &redeemedAt
					return tk, nil
				}
			},
			wantResult: dto.ScanResultAlreadyUsed,
		},
		{
			name: "unpaid reservation does not admit",
			code: func() string { return paidTicket(codec).ScanCode },
			setupMocks: func(tr *MockTicketRepository) {
				tr.GetBySerialFunc = func(ctx context.Context, serial string) (*domain.Ticket, error) {
					tk := paidTicket(codec)
					tk.Status = domain.TicketStatusReserved
					tk.PaidAt = nil
					return tk, nil
				}
				tr.RedeemFunc = func(ctx context.Context, id, operatorID string) error {
					return domain.ErrInvalidTransition
				}
			},
			wantResult: dto.ScanResultInvalid,
		},
		{
			name: "cancelled ticket does not admit",
			code: func() string { return paidTicket(codec).ScanCode },
			setupMocks: func(tr *MockTicketRepository) {
				tr.GetBySerialFunc = func(ctx context.Context, serial string) (*domain.Ticket, error) {
					tk := paidTicket(codec)
					tk.Status = domain.TicketStatusCancelled
					return tk, nil
				}
				tr.RedeemFunc = func(ctx context.Context, id, operatorID string) error {
					return domain.ErrAlreadyCancelled
				}
			},
			wantResult: dto.ScanResultInvalid,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ticketRepo := &MockTicketRepository{}
			if tc.setupMocks != nil {
				tc.setupMocks(ticketRepo)
			}

			svc := NewTicketService(ticketRepo, &MockTicketTypeRepository{}, &MockLedger{}, codec, NewNoOpEventPublisher(), nil, nil)
			resp, err := svc.Scan(context.Background(), tc.code(), operator)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Result != tc.wantResult {
				t.Errorf("expected result %s, got %s", tc.wantResult, resp.Result)
			}
			if tc.wantResult == dto.ScanResultAdmitted && resp.RedeemedAt == nil {
				t.Error("expected redeemed_at on admission")
			}
		})
	}
}

func TestTicketService_GetTicket(t *testing.T) {
	codec := testCodec()

	newService := func() TicketService {
		ticketRepo := &MockTicketRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*domain.Ticket, error) {
				return paidTicket(codec), nil
			},
		}
		typeRepo := &MockTicketTypeRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*domain.TicketType, error) {
				return onSaleTicketType(), nil
			},
		}
		return NewTicketService(ticketRepo, typeRepo, &MockLedger{}, codec, NewNoOpEventPublisher(), nil, nil)
	}

	tests := []struct {
		name    string
		actor   domain.Actor
		wantErr error
	}{
		{"owner reads their ticket", domain.Actor{UserID: "user-001", Role: domain.RoleAttendee}, nil},
		{"owning organizer reads the ticket", domain.Actor{UserID: "org-001", Role: domain.RoleOrganizer}, nil},
		{"organizer of an unrelated type is denied", domain.Actor{UserID: "org-999", Role: domain.RoleOrganizer}, domain.ErrPermissionDenied},
		{"stranger is denied", domain.Actor{UserID: "user-999", Role: domain.RoleAttendee}, domain.ErrPermissionDenied},
		{"admin reads any ticket", domain.Actor{UserID: "admin-001", Role: domain.RoleAdmin}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := newService().GetTicket(context.Background(), "ticket-001", tc.actor)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected error %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.ID != "ticket-001" {
				t.Errorf("expected ticket-001, got %s", resp.ID)
			}
		})
	}
}

func TestTicketService_GetUserTickets(t *testing.T) {
	codec := testCodec()

	makeTickets := func(n int) []*domain.Ticket {
		out := make([]*domain.Ticket, n)
		for i := range out {
			out[i] = paidTicket(codec)
		}
		return out
	}

	t.Run("reports has_more when an extra row exists", func(t *testing.T) {
		ticketRepo := &MockTicketRepository{
			GetByOwnerFunc: func(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Ticket, error) {
				if limit != 21 {
					t.Errorf("expected limit 21, got %d", limit)
				}
				return makeTickets(21), nil
			},
		}

		svc := NewTicketService(ticketRepo, &MockTicketTypeRepository{}, &MockLedger{}, codec, NewNoOpEventPublisher(), nil, nil)
		resp, err := svc.GetUserTickets(context.Background(), "user-001", 1, 20)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !resp.HasMore {
			t.Error("expected has_more to be true")
		}
		if len(resp.Data) != 20 {
			t.Errorf("expected 20 tickets, got %d", len(resp.Data))
		}
	})

	t.Run("scan code is never echoed in listings", func(t *testing.T) {
		ticketRepo := &MockTicketRepository{
			GetByOwnerFunc: func(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Ticket, error) {
				return makeTickets(1), nil
			},
		}

		svc := NewTicketService(ticketRepo, &MockTicketTypeRepository{}, &MockLedger{}, codec, NewNoOpEventPublisher(), nil, nil)
		resp, err := svc.GetUserTickets(context.Background(), "user-001", 1, 20)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Data[0].Serial == "" {
			t.Error("expected the serial to be present")
		}
	})

	t.Run("missing user id", func(t *testing.T) {
		svc := NewTicketService(&MockTicketRepository{}, &MockTicketTypeRepository{}, &MockLedger{}, codec, NewNoOpEventPublisher(), nil, nil)
		if _, err := svc.GetUserTickets(context.Background(), "", 1, 20); !errors.Is(err, domain.ErrInvalidOwnerID) {
			t.Fatalf("expected ErrInvalidOwnerID, got %v", err)
		}
	})
}

func TestTicketService_ExpireStale(t *testing.T) {
	codec := testCodec()

	staleTicket := func(id string) *domain.Ticket {
		tk := paidTicket(codec)
		tk.ID = id
		tk.Status = domain.TicketStatusReserved
		tk.PaidAt = nil
		tk.HoldExpiresAt = time.Now().Add(-time.Minute)
		return tk
	}

	t.Run("expires stale holds and releases their units", func(t *testing.T) {
		released := 0
		ticketRepo := &MockTicketRepository{
			GetStaleReservationsFunc: func(ctx context.Context, limit int) ([]*domain.Ticket, error) {
				return []*domain.Ticket{staleTicket("t1"), staleTicket("t2")}, nil
			},
		}
		ledger := &MockLedger{
			ReleaseFunc: func(ctx context.Context, ticketTypeID string, qty int64) error {
				released++
				return nil
			},
		}

		svc := NewTicketService(ticketRepo, &MockTicketTypeRepository{}, ledger, codec, NewNoOpEventPublisher(), nil, nil)
		count, err := svc.ExpireStale(context.Background(), 100)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 expired, got %d", count)
		}
		if released != 2 {
			t.Errorf("expected 2 releases, got %d", released)
		}
	})

	t.Run("skips releases for tickets another writer claimed first", func(t *testing.T) {
		released := 0
		ticketRepo := &MockTicketRepository{
			GetStaleReservationsFunc: func(ctx context.Context, limit int) ([]*domain.Ticket, error) {
				return []*domain.Ticket{staleTicket("t1"), staleTicket("t2")}, nil
			},
			MarkExpiredFunc: func(ctx context.Context, id string) error {
				if id == "t1" {
					// A concurrent payment confirmation won this one.
					return domain.ErrAlreadyPaid
				}
				return nil
			},
		}
		ledger := &MockLedger{
			ReleaseFunc: func(ctx context.Context, ticketTypeID string, qty int64) error {
				released++
				return nil
			},
		}

		svc := NewTicketService(ticketRepo, &MockTicketTypeRepository{}, ledger, codec, NewNoOpEventPublisher(), nil, nil)
		count, err := svc.ExpireStale(context.Background(), 100)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 expired, got %d", count)
		}
		if released != 1 {
			t.Errorf("expected 1 release, got %d", released)
		}
	})
}

func TestTicketService_CheckAvailability(t *testing.T) {
	codec := testCodec()

	t.Run("returns the ledger snapshot", func(t *testing.T) {
		ledger := &MockLedger{
			CheckAvailabilityFunc: func(ctx context.Context, ticketTypeID string) (*inventory.Availability, error) {
				return &inventory.Availability{TicketTypeID: ticketTypeID, Capacity: 100, Sold: 40, Remaining: 60}, nil
			},
		}

		svc := NewTicketService(&MockTicketRepository{}, &MockTicketTypeRepository{}, ledger, codec, NewNoOpEventPublisher(), nil, nil)
		resp, err := svc.CheckAvailability(context.Background(), "type-001")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Remaining != 60 {
			t.Errorf("expected remaining 60, got %d", resp.Remaining)
		}
	})

	t.Run("unknown ticket type", func(t *testing.T) {
		ledger := &MockLedger{
			CheckAvailabilityFunc: func(ctx context.Context, ticketTypeID string) (*inventory.Availability, error) {
				return nil, domain.ErrTicketTypeNotFound
			},
		}

		svc := NewTicketService(&MockTicketRepository{}, &MockTicketTypeRepository{}, ledger, codec, NewNoOpEventPublisher(), nil, nil)
		if _, err := svc.CheckAvailability(context.Background(), "missing"); !errors.Is(err, domain.ErrTicketTypeNotFound) {
			t.Fatalf("expected ErrTicketTypeNotFound, got %v", err)
		}
	})
}
