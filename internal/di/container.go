package di

import (
	"github.com/teerapat-ch/eventhub/internal/handler"
	"github.com/teerapat-ch/eventhub/internal/repository"
	"github.com/teerapat-ch/eventhub/internal/service"
	"github.com/teerapat-ch/eventhub/pkg/database"
	"github.com/teerapat-ch/eventhub/pkg/redis"
)

// Container holds all dependencies for the eventhub service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// Repositories
	EventRepo repository.EventRepository
	UserRepo  repository.UserRepository
	Store     repository.MembershipStore

	// Publishers
	RSVPPublisher service.RSVPPublisher

	// Services
	EventService     service.EventService
	AdmissionService service.AdmissionService

	// Handlers
	HealthHandler *handler.HealthHandler
	EventHandler  *handler.EventHandler
	RSVPHandler   *handler.RSVPHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB            *database.PostgresDB
	Redis         *redis.Client
	EventRepo     repository.EventRepository
	UserRepo      repository.UserRepository
	Store         repository.MembershipStore
	RSVPPublisher service.RSVPPublisher
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:            cfg.DB,
		Redis:         cfg.Redis,
		EventRepo:     cfg.EventRepo,
		UserRepo:      cfg.UserRepo,
		Store:         cfg.Store,
		RSVPPublisher: cfg.RSVPPublisher,
	}

	// Initialize services
	c.EventService = service.NewEventService(
		c.EventRepo,
		c.UserRepo,
		c.Store,
	)
	c.AdmissionService = service.NewAdmissionService(
		c.Store,
		c.UserRepo,
		c.RSVPPublisher,
	)

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis)
	c.EventHandler = handler.NewEventHandler(c.EventService)
	c.RSVPHandler = handler.NewRSVPHandler(c.AdmissionService)

	return c
}
