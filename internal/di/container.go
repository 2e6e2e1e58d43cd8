package di

import (
	"github.com/communa-labs/ticketing/internal/handler"
	"github.com/communa-labs/ticketing/internal/inventory"
	"github.com/communa-labs/ticketing/internal/repository"
	"github.com/communa-labs/ticketing/internal/scancode"
	"github.com/communa-labs/ticketing/internal/service"
	"github.com/communa-labs/ticketing/pkg/database"
	"github.com/communa-labs/ticketing/pkg/redis"
)

// Container holds all dependencies for the ticketing service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// Repositories
	TicketRepo     repository.TicketRepository
	TicketTypeRepo repository.TicketTypeRepository

	// Inventory
	Ledger inventory.Ledger

	// Codec
	Codec *scancode.Codec

	// Publishers
	EventPublisher service.EventPublisher

	// Services
	TicketService     service.TicketService
	TicketTypeService service.TicketTypeService

	// Handlers
	HealthHandler     *handler.HealthHandler
	TicketHandler     *handler.TicketHandler
	TicketTypeHandler *handler.TicketTypeHandler
	ScanHandler       *handler.ScanHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB             *database.PostgresDB
	Redis          *redis.Client
	TicketRepo     repository.TicketRepository
	TicketTypeRepo repository.TicketTypeRepository
	Ledger         inventory.Ledger
	Codec          *scancode.Codec
	EventPublisher service.EventPublisher
	Schedules      service.ScheduleFetcher
	ServiceConfig  *service.TicketServiceConfig
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:             cfg.DB,
		Redis:          cfg.Redis,
		TicketRepo:     cfg.TicketRepo,
		TicketTypeRepo: cfg.TicketTypeRepo,
		Ledger:         cfg.Ledger,
		Codec:          cfg.Codec,
		EventPublisher: cfg.EventPublisher,
	}

	// Initialize services
	c.TicketService = service.NewTicketService(
		c.TicketRepo,
		c.TicketTypeRepo,
		c.Ledger,
		c.Codec,
		c.EventPublisher,
		cfg.Schedules,
		cfg.ServiceConfig,
	)
	c.TicketTypeService = service.NewTicketTypeService(c.TicketTypeRepo)

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis)
	c.TicketHandler = handler.NewTicketHandler(c.TicketService)
	c.TicketTypeHandler = handler.NewTicketTypeHandler(c.TicketTypeService, c.TicketService)
	c.ScanHandler = handler.NewScanHandler(c.TicketService)

	return c
}
