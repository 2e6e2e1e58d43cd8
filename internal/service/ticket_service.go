package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/communa-labs/ticketing/internal/domain"
	"github.com/communa-labs/ticketing/internal/dto"
	"github.com/communa-labs/ticketing/internal/inventory"
	"github.com/communa-labs/ticketing/internal/metrics"
	"github.com/communa-labs/ticketing/internal/repository"
	"github.com/communa-labs/ticketing/internal/scancode"
	"github.com/communa-labs/ticketing/pkg/telemetry"
)

// TicketService defines the interface for ticket lifecycle business logic
type TicketService interface {
	// Reserve places a capacity hold and creates a ticket in reserved status
	Reserve(ctx context.Context, actor domain.Actor, req *dto.ReserveTicketRequest) (*dto.ReserveTicketResponse, error)

	// ConfirmPayment records payment against a reserved ticket
	ConfirmPayment(ctx context.Context, ticketID string, actor domain.Actor, req *dto.ConfirmPaymentRequest) (*dto.ConfirmPaymentResponse, error)

	// Cancel voids a reserved or paid ticket and returns its inventory unit
	Cancel(ctx context.Context, ticketID string, actor domain.Actor, req *dto.CancelTicketRequest) (*dto.CancelTicketResponse, error)

	// Scan verifies a raw admission code and attempts redemption
	Scan(ctx context.Context, code string, operator domain.Actor) (*dto.ScanResponse, error)

	// GetTicket retrieves a ticket visible to the actor
	GetTicket(ctx context.Context, ticketID string, actor domain.Actor) (*dto.TicketResponse, error)

	// GetUserTickets retrieves a page of the user's tickets
	GetUserTickets(ctx context.Context, userID string, page, pageSize int) (*dto.PaginatedTicketsResponse, error)

	// CheckAvailability reports the advisory availability snapshot
	CheckAvailability(ctx context.Context, ticketTypeID string) (*dto.AvailabilityResponse, error)

	// ExpireStale marks lapsed reservation holds as expired and releases
	// their inventory units. Returns the number of tickets expired.
	ExpireStale(ctx context.Context, limit int) (int, error)
}

// ticketService implements TicketService
type ticketService struct {
	ticketRepo     repository.TicketRepository
	ticketTypeRepo repository.TicketTypeRepository
	ledger         inventory.Ledger
	codec          *scancode.Codec
	eventPublisher EventPublisher
	schedules      ScheduleFetcher
	holdTTL        time.Duration
}

// TicketServiceConfig contains configuration for the ticket service
type TicketServiceConfig struct {
	HoldTTL time.Duration
}

// NewTicketService creates a new ticket service
func NewTicketService(
	ticketRepo repository.TicketRepository,
	ticketTypeRepo repository.TicketTypeRepository,
	ledger inventory.Ledger,
	codec *scancode.Codec,
	eventPublisher EventPublisher,
	schedules ScheduleFetcher,
	cfg *TicketServiceConfig,
) TicketService {
	holdTTL := 15 * time.Minute
	if cfg != nil && cfg.HoldTTL > 0 {
		holdTTL = cfg.HoldTTL
	}
	if eventPublisher == nil {
		eventPublisher = NewNoOpEventPublisher()
	}
	return &ticketService{
		ticketRepo:     ticketRepo,
		ticketTypeRepo: ticketTypeRepo,
		ledger:         ledger,
		codec:          codec,
		eventPublisher: eventPublisher,
		schedules:      schedules,
		holdTTL:        holdTTL,
	}
}

// canManage resolves ticket-level access. Owners and admins are decided
// from the ticket alone; an organizer must own the ticket's type.
func (s *ticketService) canManage(ctx context.Context, actor domain.Actor, ticket *domain.Ticket) bool {
	if actor.CanManage(ticket, "") {
		return true
	}
	if actor.Role != domain.RoleOrganizer {
		return false
	}
	tt, err := s.ticketTypeRepo.GetByID(ctx, ticket.TicketTypeID)
	if err != nil {
		return false
	}
	return actor.CanManage(ticket, tt.OrganizerID)
}

// Reserve places a capacity hold and creates a ticket in reserved status
func (s *ticketService) Reserve(ctx context.Context, actor domain.Actor, req *dto.ReserveTicketRequest) (*dto.ReserveTicketResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.reserve")
	defer span.End()

	if req == nil || req.TicketTypeID == "" {
		span.SetStatus(codes.Error, "invalid ticket_type_id")
		return nil, domain.ErrInvalidTicketTypeID
	}
	if actor.UserID == "" {
		span.SetStatus(codes.Error, "invalid owner_id")
		return nil, domain.ErrInvalidOwnerID
	}

	span.SetAttributes(
		attribute.String("user_id", actor.UserID),
		attribute.String("ticket_type_id", req.TicketTypeID),
	)

	tt, err := s.ticketTypeRepo.GetByID(ctx, req.TicketTypeID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := time.Now()
	if !tt.OnSaleAt(now) {
		metrics.ReservationsRejected.WithLabelValues("sale_window_closed").Inc()
		span.SetStatus(codes.Error, "sale window closed")
		return nil, domain.ErrSaleWindowClosed
	}

	// The validity window comes from the catalog schedule when one is
	// available, otherwise the sale window stands in for it.
	validFrom, validUntil := tt.SaleStart, tt.SaleEnd
	if s.schedules != nil {
		if schedule, fetchErr := s.schedules.FetchSchedule(ctx, tt.Sellable); fetchErr == nil {
			validFrom, validUntil = schedule.StartsAt, schedule.EndsAt
		}
	}

	// Claim the inventory unit before writing the ticket. The ledger is
	// the only gate against overselling.
	if err := s.ledger.TryReserve(ctx, tt.ID, 1); err != nil {
		if err == domain.ErrUnavailable {
			metrics.ReservationsRejected.WithLabelValues("sold_out").Inc()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ticketID := uuid.New().String()
	serial := uuid.New().String()

	code, err := s.codec.Encode(ticketID, serial, now)
	if err != nil {
		// Give the unit back; nothing was persisted yet.
		_ = s.ledger.Release(ctx, tt.ID, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ticket := &domain.Ticket{
		ID:            ticketID,
		Serial:        serial,
		ScanCode:      code,
		TicketTypeID:  tt.ID,
		Sellable:      tt.Sellable,
		OwnerID:       actor.UserID,
		Status:        domain.TicketStatusReserved,
		Price:         tt.Price,
		ValidFrom:     validFrom,
		ValidUntil:    validUntil,
		ReservedAt:    now,
		HoldExpiresAt: now.Add(s.holdTTL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.ticketRepo.Create(ctx, ticket); err != nil {
		// Compensate the ledger claim so the unit is not stranded.
		_ = s.ledger.Release(ctx, tt.ID, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	go func() {
		_ = s.eventPublisher.PublishTicketReserved(context.Background(), ticket)
	}()

	metrics.TicketsReserved.WithLabelValues(tt.ID).Inc()
	metrics.ActiveHolds.Inc()

	span.AddEvent("ticket_reserved", trace.WithAttributes(
		attribute.String("ticket_id", ticket.ID),
		attribute.String("serial", ticket.Serial),
		attribute.String("ticket_type_id", tt.ID),
	))
	span.SetStatus(codes.Ok, "")

	return &dto.ReserveTicketResponse{
		TicketID:      ticket.ID,
		Serial:        ticket.Serial,
		ScanCode:      ticket.ScanCode,
		Status:        string(ticket.Status),
		Price:         ticket.Price,
		HoldExpiresAt: ticket.HoldExpiresAt,
	}, nil
}

// ConfirmPayment records payment against a reserved ticket
func (s *ticketService) ConfirmPayment(ctx context.Context, ticketID string, actor domain.Actor, req *dto.ConfirmPaymentRequest) (*dto.ConfirmPaymentResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.confirm_payment")
	defer span.End()

	span.SetAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("user_id", actor.UserID),
	)

	if ticketID == "" {
		span.SetStatus(codes.Error, "invalid ticket_id")
		return nil, domain.ErrInvalidTicketID
	}

	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !s.canManage(ctx, actor, ticket) {
		span.SetStatus(codes.Error, "permission denied")
		return nil, domain.ErrPermissionDenied
	}

	paymentRef := ""
	if req != nil {
		paymentRef = req.PaymentRef
	}

	// The conditional update is the authority: it only succeeds while the
	// ticket is still reserved and the hold is live.
	if err := s.ticketRepo.ConfirmPayment(ctx, ticketID, paymentRef); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := time.Now()
	ticket.Status = domain.TicketStatusPaid
	ticket.PaymentRef = paymentRef
	ticket.PaidAt = &now

	go func() {
		_ = s.eventPublisher.PublishTicketPaid(context.Background(), ticket)
	}()

	metrics.TicketsPaid.WithLabelValues(ticket.TicketTypeID).Inc()
	metrics.ActiveHolds.Dec()
	metrics.HoldDuration.Observe(now.Sub(ticket.ReservedAt).Seconds())

	span.AddEvent("payment_confirmed", trace.WithAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("payment_ref", paymentRef),
	))
	span.SetStatus(codes.Ok, "")

	return &dto.ConfirmPaymentResponse{
		TicketID: ticketID,
		Status:   string(domain.TicketStatusPaid),
		PaidAt:   now,
	}, nil
}

// Cancel voids a reserved or paid ticket and returns its inventory unit
func (s *ticketService) Cancel(ctx context.Context, ticketID string, actor domain.Actor, req *dto.CancelTicketRequest) (*dto.CancelTicketResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.cancel")
	defer span.End()

	span.SetAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("user_id", actor.UserID),
	)

	if ticketID == "" {
		span.SetStatus(codes.Error, "invalid ticket_id")
		return nil, domain.ErrInvalidTicketID
	}

	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !s.canManage(ctx, actor, ticket) {
		span.SetStatus(codes.Error, "permission denied")
		return nil, domain.ErrPermissionDenied
	}

	if !ticket.CanCancel() {
		switch ticket.Status {
		case domain.TicketStatusUsed:
			span.SetStatus(codes.Error, "already redeemed")
			return nil, domain.ErrAlreadyRedeemed
		case domain.TicketStatusCancelled:
			span.SetStatus(codes.Error, "already cancelled")
			return nil, domain.ErrAlreadyCancelled
		default:
			span.SetStatus(codes.Error, "ticket expired")
			return nil, domain.ErrTicketExpired
		}
	}

	reason := ""
	if req != nil {
		reason = req.Reason
	}

	// The update is conditional on the status we observed. If the expiry
	// sweep wins the race the update affects zero rows and we surface the
	// resulting state instead of double releasing.
	from := ticket.Status
	if err := s.ticketRepo.Cancel(ctx, ticketID, from, reason); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.ledger.Release(ctx, ticket.TicketTypeID, 1); err != nil {
		span.RecordError(err)
	}

	now := time.Now()
	ticket.Status = domain.TicketStatusCancelled
	ticket.StatusReason = reason
	ticket.CancelledAt = &now

	go func() {
		_ = s.eventPublisher.PublishTicketCancelled(context.Background(), ticket)
	}()

	metrics.TicketsCancelled.WithLabelValues(ticket.TicketTypeID).Inc()
	if from == domain.TicketStatusReserved {
		metrics.ActiveHolds.Dec()
	}

	span.AddEvent("ticket_cancelled", trace.WithAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("from_status", string(from)),
	))
	span.SetStatus(codes.Ok, "")

	return &dto.CancelTicketResponse{
		TicketID: ticketID,
		Status:   string(domain.TicketStatusCancelled),
		Message:  "Ticket cancelled successfully",
	}, nil
}

// Scan verifies a raw admission code and attempts redemption. Every
// domain outcome maps to a structured response; an error return means
// the attempt itself could not be completed.
func (s *ticketService) Scan(ctx context.Context, code string, operator domain.Actor) (*dto.ScanResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.scan")
	defer span.End()

	span.SetAttributes(attribute.String("operator_id", operator.UserID))

	result, err := s.scan(ctx, code, operator)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.ScansTotal.WithLabelValues(result.Result).Inc()

	span.SetAttributes(attribute.String("result", result.Result))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (s *ticketService) scan(ctx context.Context, code string, operator domain.Actor) (*dto.ScanResponse, error) {
	claims, err := s.codec.Decode(code)
	if err != nil {
		return &dto.ScanResponse{
			Result:  dto.ScanResultInvalid,
			Message: "scan code is not recognized",
		}, nil
	}

	ticket, err := s.ticketRepo.GetBySerial(ctx, claims.Serial)
	if err != nil {
		if domain.IsNotFoundError(err) {
			// A validly signed code for a ticket we no longer know about
			// is reported the same way as a forged one.
			return &dto.ScanResponse{
				Result:  dto.ScanResultInvalid,
				Message: "scan code is not recognized",
			}, nil
		}
		return nil, err
	}

	if ticket.ID != claims.TicketID {
		return &dto.ScanResponse{
			Result:  dto.ScanResultInvalid,
			Message: "scan code is not recognized",
		}, nil
	}

	now := time.Now()
	switch ticket.AdmissibleAt(now) {
	case domain.ErrTicketNotYetValid:
		return &dto.ScanResponse{
			Result:    dto.ScanResultNotYetValid,
			Serial:    ticket.Serial,
			TicketID:  ticket.ID,
			ValidFrom: &ticket.ValidFrom,
			Message:   domain.ErrTicketNotYetValid.Error(),
		}, nil
	case domain.ErrTicketWindowPassed:
		return &dto.ScanResponse{
			Result:     dto.ScanResultExpired,
			Serial:     ticket.Serial,
			TicketID:   ticket.ID,
			ValidUntil: &ticket.ValidUntil,
			Message:    domain.ErrTicketWindowPassed.Error(),
		}, nil
	}

	// The conditional update decides the race between two concurrent
	// scans of the same code: exactly one transitions paid -> used.
	err = s.ticketRepo.Redeem(ctx, ticket.ID, operator.UserID)
	if err != nil {
		switch {
		case err == domain.ErrAlreadyRedeemed:
			fresh, getErr := s.ticketRepo.GetByID(ctx, ticket.ID)
			resp := &dto.ScanResponse{
				Result:   dto.ScanResultAlreadyUsed,
				Serial:   ticket.Serial,
				TicketID: ticket.ID,
				Message:  "ticket has already been used",
			}
			if getErr == nil {
				resp.RedeemedAt = fresh.RedeemedAt
			}
			return resp, nil
		case err == domain.ErrTicketExpired:
			return &dto.ScanResponse{
				Result:   dto.ScanResultExpired,
				Serial:   ticket.Serial,
				TicketID: ticket.ID,
				Message:  "ticket is expired",
			}, nil
		case err == domain.ErrAlreadyCancelled, err == domain.ErrInvalidTransition:
			// Cancelled or never paid: the code does not admit.
			return &dto.ScanResponse{
				Result:   dto.ScanResultInvalid,
				Serial:   ticket.Serial,
				TicketID: ticket.ID,
				Message:  "ticket is not admissible",
			}, nil
		default:
			return nil, err
		}
	}

	ticket.Status = domain.TicketStatusUsed
	ticket.RedeemedAt = &now
	ticket.RedeemedBy = operator.UserID

	go func() {
		_ = s.eventPublisher.PublishTicketRedeemed(context.Background(), ticket)
	}()

	return &dto.ScanResponse{
		Result:     dto.ScanResultAdmitted,
		Serial:     ticket.Serial,
		TicketID:   ticket.ID,
		RedeemedAt: &now,
		Message:    "admitted",
	}, nil
}

// GetTicket retrieves a ticket visible to the actor
func (s *ticketService) GetTicket(ctx context.Context, ticketID string, actor domain.Actor) (*dto.TicketResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.get")
	defer span.End()

	span.SetAttributes(
		attribute.String("ticket_id", ticketID),
		attribute.String("user_id", actor.UserID),
	)

	if ticketID == "" {
		span.SetStatus(codes.Error, "invalid ticket_id")
		return nil, domain.ErrInvalidTicketID
	}

	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !s.canManage(ctx, actor, ticket) {
		span.SetStatus(codes.Error, "permission denied")
		return nil, domain.ErrPermissionDenied
	}

	span.SetStatus(codes.Ok, "")
	return dto.FromDomain(ticket), nil
}

// GetUserTickets retrieves a page of the user's tickets
func (s *ticketService) GetUserTickets(ctx context.Context, userID string, page, pageSize int) (*dto.PaginatedTicketsResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.list_user")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)

	if userID == "" {
		span.SetStatus(codes.Error, "invalid owner_id")
		return nil, domain.ErrInvalidOwnerID
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	offset := (page - 1) * pageSize
	// Fetch one extra row to learn whether another page exists.
	tickets, err := s.ticketRepo.GetByOwner(ctx, userID, pageSize+1, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	hasMore := len(tickets) > pageSize
	if hasMore {
		tickets = tickets[:pageSize]
	}

	responses := make([]*dto.TicketResponse, len(tickets))
	for i, t := range tickets {
		responses[i] = dto.FromDomain(t)
	}

	span.SetAttributes(attribute.Int("count", len(responses)))
	span.SetStatus(codes.Ok, "")
	return &dto.PaginatedTicketsResponse{
		Data:     responses,
		Page:     page,
		PageSize: pageSize,
		HasMore:  hasMore,
	}, nil
}

// CheckAvailability reports the advisory availability snapshot
func (s *ticketService) CheckAvailability(ctx context.Context, ticketTypeID string) (*dto.AvailabilityResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.check_availability")
	defer span.End()

	span.SetAttributes(attribute.String("ticket_type_id", ticketTypeID))

	if ticketTypeID == "" {
		span.SetStatus(codes.Error, "invalid ticket_type_id")
		return nil, domain.ErrInvalidTicketTypeID
	}

	avail, err := s.ledger.CheckAvailability(ctx, ticketTypeID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return &dto.AvailabilityResponse{
		TicketTypeID: avail.TicketTypeID,
		Capacity:     avail.Capacity,
		Sold:         avail.Sold,
		Remaining:    avail.Remaining,
	}, nil
}

// ExpireStale marks lapsed reservation holds as expired and releases
// their inventory units
func (s *ticketService) ExpireStale(ctx context.Context, limit int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.expire_stale")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}

	span.SetAttributes(attribute.Int("limit", limit))

	tickets, err := s.ticketRepo.GetStaleReservations(ctx, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	expiredCount := 0
	for _, ticket := range tickets {
		// The conditional transition is the gate: if a concurrent confirm
		// or cancel won, zero rows were affected and we must not release.
		if err := s.ticketRepo.MarkExpired(ctx, ticket.ID); err != nil {
			continue
		}

		if err := s.ledger.Release(ctx, ticket.TicketTypeID, 1); err != nil {
			span.RecordError(err)
		}

		ticket.Status = domain.TicketStatusExpired
		ticket.StatusReason = "reservation hold expired"

		go func(t *domain.Ticket) {
			_ = s.eventPublisher.PublishTicketExpired(context.Background(), t)
		}(ticket)

		metrics.TicketsExpired.Inc()
		metrics.ActiveHolds.Dec()
		expiredCount++
	}

	span.SetAttributes(attribute.Int("expired_count", expiredCount))
	span.SetStatus(codes.Ok, "")
	return expiredCount, nil
}
