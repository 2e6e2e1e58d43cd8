package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/communa-labs/ticketing/internal/domain"
	"github.com/communa-labs/ticketing/internal/dto"
	"github.com/communa-labs/ticketing/internal/repository"
	"github.com/communa-labs/ticketing/pkg/telemetry"
)

// TicketTypeService defines the interface for ticket type administration
type TicketTypeService interface {
	// Create registers a new sellable admission class
	Create(ctx context.Context, actor domain.Actor, req *dto.CreateTicketTypeRequest) (*dto.TicketTypeResponse, error)

	// Get retrieves a live ticket type by ID
	Get(ctx context.Context, id string) (*dto.TicketTypeResponse, error)

	// ListByOrganizer retrieves the organizer's live ticket types
	ListByOrganizer(ctx context.Context, organizerID string) ([]*dto.TicketTypeResponse, error)

	// Archive soft deletes a ticket type so no further reservations land on it
	Archive(ctx context.Context, id string, actor domain.Actor) error
}

// ticketTypeService implements TicketTypeService
type ticketTypeService struct {
	ticketTypeRepo repository.TicketTypeRepository
}

// NewTicketTypeService creates a new ticket type service
func NewTicketTypeService(ticketTypeRepo repository.TicketTypeRepository) TicketTypeService {
	return &ticketTypeService{ticketTypeRepo: ticketTypeRepo}
}

// Create registers a new sellable admission class
func (s *ticketTypeService) Create(ctx context.Context, actor domain.Actor, req *dto.CreateTicketTypeRequest) (*dto.TicketTypeResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket_type.create")
	defer span.End()

	if !actor.IsStaff() {
		span.SetStatus(codes.Error, "permission denied")
		return nil, domain.ErrPermissionDenied
	}
	if req == nil {
		span.SetStatus(codes.Error, "invalid sellable")
		return nil, domain.ErrInvalidSellable
	}

	now := time.Now()
	tt := &domain.TicketType{
		ID: uuid.New().String(),
		Sellable: domain.Sellable{
			Kind: domain.SellableKind(req.SellableKind),
			ID:   req.SellableID,
		},
		OrganizerID: actor.UserID,
		Name:        req.Name,
		Price:       req.Price,
		Capacity:    req.Capacity,
		Sold:        0,
		SaleStart:   req.SaleStart,
		SaleEnd:     req.SaleEnd,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := tt.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("ticket_type_id", tt.ID),
		attribute.String("organizer_id", actor.UserID),
		attribute.Int64("capacity", tt.Capacity),
	)

	if err := s.ticketTypeRepo.Create(ctx, tt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return dto.TicketTypeFromDomain(tt), nil
}

// Get retrieves a live ticket type by ID
func (s *ticketTypeService) Get(ctx context.Context, id string) (*dto.TicketTypeResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket_type.get")
	defer span.End()

	span.SetAttributes(attribute.String("ticket_type_id", id))

	if id == "" {
		span.SetStatus(codes.Error, "invalid ticket_type_id")
		return nil, domain.ErrInvalidTicketTypeID
	}

	tt, err := s.ticketTypeRepo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return dto.TicketTypeFromDomain(tt), nil
}

// ListByOrganizer retrieves the organizer's live ticket types
func (s *ticketTypeService) ListByOrganizer(ctx context.Context, organizerID string) ([]*dto.TicketTypeResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket_type.list_organizer")
	defer span.End()

	span.SetAttributes(attribute.String("organizer_id", organizerID))

	if organizerID == "" {
		span.SetStatus(codes.Error, "invalid organizer_id")
		return nil, domain.ErrInvalidOwnerID
	}

	types, err := s.ticketTypeRepo.GetByOrganizer(ctx, organizerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	responses := make([]*dto.TicketTypeResponse, len(types))
	for i, tt := range types {
		responses[i] = dto.TicketTypeFromDomain(tt)
	}

	span.SetAttributes(attribute.Int("count", len(responses)))
	span.SetStatus(codes.Ok, "")
	return responses, nil
}

// Archive soft deletes a ticket type. Existing tickets keep their state;
// only new reservations are shut off.
func (s *ticketTypeService) Archive(ctx context.Context, id string, actor domain.Actor) error {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket_type.archive")
	defer span.End()

	span.SetAttributes(
		attribute.String("ticket_type_id", id),
		attribute.String("user_id", actor.UserID),
	)

	if id == "" {
		span.SetStatus(codes.Error, "invalid ticket_type_id")
		return domain.ErrInvalidTicketTypeID
	}

	tt, err := s.ticketTypeRepo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if tt.OrganizerID != actor.UserID && actor.Role != domain.RoleAdmin {
		span.SetStatus(codes.Error, "permission denied")
		return domain.ErrPermissionDenied
	}

	if err := s.ticketTypeRepo.Archive(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
