/*
Package container provides dependency injection capabilities for the
rank tracking backend.

This package implements a simple dependency injection container that helps
manage service dependencies and reduces tight coupling between components.
*/
package container

import (
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/academy-ops/rank-tracking-backend/eventbus"
	"github.com/academy-ops/rank-tracking-backend/handlers"
	"github.com/academy-ops/rank-tracking-backend/handlers/health"
	"github.com/academy-ops/rank-tracking-backend/scheduler"
	"github.com/academy-ops/rank-tracking-backend/store"
	"github.com/academy-ops/rank-tracking-backend/tracker"
	"github.com/sirupsen/logrus"
)

// Settings carries the tuning knobs the container needs to assemble the
// service graph
type Settings struct {
	EventBufferSize      int
	SubscriberBufferSize int
	LogRingSize          int
	HeartbeatInterval    time.Duration
	ScraperBaseURL       string
	ScraperTimeout       time.Duration
	Scheduler            scheduler.Config
}

// Container holds all service dependencies
type Container struct {
	mu         sync.RWMutex
	services   map[string]interface{}
	factories  map[string]func() (interface{}, error)
	singletons map[string]interface{}
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		services:   make(map[string]interface{}),
		factories:  make(map[string]func() (interface{}, error)),
		singletons: make(map[string]interface{}),
	}
}

// Register registers a service instance
func (c *Container) Register(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

// RegisterFactory registers a factory function for lazy service creation
func (c *Container) RegisterFactory(name string, factory func() (interface{}, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

// RegisterSingleton registers a singleton service
func (c *Container) RegisterSingleton(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.singletons[name] = service
}

// Get retrieves a service by name
func (c *Container) Get(name string) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if service, exists := c.services[name]; exists {
		return service, nil
	}

	if singleton, exists := c.singletons[name]; exists {
		return singleton, nil
	}

	if factory, exists := c.factories[name]; exists {
		service, err := factory()
		if err != nil {
			return nil, fmt.Errorf("failed to create service %s: %v", name, err)
		}
		return service, nil
	}

	return nil, fmt.Errorf("service %s not found", name)
}

// GetLogger retrieves the logger service
func (c *Container) GetLogger() (*logrus.Logger, error) {
	service, err := c.Get("logger")
	if err != nil {
		return nil, err
	}
	logger, ok := service.(*logrus.Logger)
	if !ok {
		return nil, fmt.Errorf("logger service is not of expected type")
	}
	return logger, nil
}

// GetDatastoreClient retrieves the datastore client service; a nil
// client means archival is disabled
func (c *Container) GetDatastoreClient() (*datastore.Client, error) {
	service, err := c.Get("datastore")
	if err != nil {
		return nil, err
	}
	client, ok := service.(*datastore.Client)
	if !ok && service != nil {
		return nil, fmt.Errorf("datastore service is not of expected type")
	}
	return client, nil
}

// GetEventBus retrieves the event bus service
func (c *Container) GetEventBus() (*eventbus.Bus, error) {
	service, err := c.Get("eventbus")
	if err != nil {
		return nil, err
	}
	bus, ok := service.(*eventbus.Bus)
	if !ok {
		return nil, fmt.Errorf("eventbus service is not of expected type")
	}
	return bus, nil
}

// GetJobStore retrieves the job store service
func (c *Container) GetJobStore() (*store.JobStore, error) {
	service, err := c.Get("jobstore")
	if err != nil {
		return nil, err
	}
	jobs, ok := service.(*store.JobStore)
	if !ok {
		return nil, fmt.Errorf("jobstore service is not of expected type")
	}
	return jobs, nil
}

// GetLogRing retrieves the recent-logs ring service
func (c *Container) GetLogRing() (*store.LogRing, error) {
	service, err := c.Get("logring")
	if err != nil {
		return nil, err
	}
	logs, ok := service.(*store.LogRing)
	if !ok {
		return nil, fmt.Errorf("logring service is not of expected type")
	}
	return logs, nil
}

// GetScheduler retrieves the scheduler service
func (c *Container) GetScheduler() (*scheduler.Scheduler, error) {
	service, err := c.Get("scheduler")
	if err != nil {
		return nil, err
	}
	sched, ok := service.(*scheduler.Scheduler)
	if !ok {
		return nil, fmt.Errorf("scheduler service is not of expected type")
	}
	return sched, nil
}

// GetTracker retrieves the scraper client service
func (c *Container) GetTracker() (*tracker.Client, error) {
	service, err := c.Get("tracker")
	if err != nil {
		return nil, err
	}
	client, ok := service.(*tracker.Client)
	if !ok {
		return nil, fmt.Errorf("tracker service is not of expected type")
	}
	return client, nil
}

// GetHandler retrieves the handler service
func (c *Container) GetHandler() (*handlers.Handler, error) {
	service, err := c.Get("handler")
	if err != nil {
		return nil, err
	}
	handler, ok := service.(*handlers.Handler)
	if !ok {
		return nil, fmt.Errorf("handler service is not of expected type")
	}
	return handler, nil
}

// GetHealthHandler retrieves the health handler service
func (c *Container) GetHealthHandler() (*health.Handler, error) {
	service, err := c.Get("health")
	if err != nil {
		return nil, err
	}
	handler, ok := service.(*health.Handler)
	if !ok {
		return nil, fmt.Errorf("health service is not of expected type")
	}
	return handler, nil
}

// InitializeServices initializes all core services with proper
// dependencies. datastoreClient may be nil, which disables archival.
func (c *Container) InitializeServices(datastoreClient *datastore.Client, settings Settings, logger *logrus.Logger) error {
	c.RegisterSingleton("logger", logger)
	c.RegisterSingleton("datastore", datastoreClient)

	var archiver store.Archiver
	if datastoreClient != nil {
		archiver = store.NewDatastoreArchiver(datastoreClient, logger)
	}

	bus := eventbus.New(settings.EventBufferSize, settings.SubscriberBufferSize, logger)
	jobStore := store.NewJobStore(bus, archiver, logger)
	logRing := store.NewLogRing(settings.LogRingSize, bus, archiver, logger)
	trackerClient := tracker.NewClient(settings.ScraperBaseURL, settings.ScraperTimeout, logger)
	sched := scheduler.New(jobStore, logRing, trackerClient, settings.Scheduler, logger)

	c.RegisterSingleton("eventbus", bus)
	c.RegisterSingleton("jobstore", jobStore)
	c.RegisterSingleton("logring", logRing)
	c.RegisterSingleton("tracker", trackerClient)
	c.RegisterSingleton("scheduler", sched)

	c.RegisterFactory("handler", func() (interface{}, error) {
		return handlers.NewHandler(jobStore, sched, logRing, bus, settings.HeartbeatInterval, logger), nil
	})
	c.RegisterFactory("health", func() (interface{}, error) {
		return health.NewHandler(datastoreClient, sched, logger), nil
	})

	return nil
}

// Close gracefully closes all service connections
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if service, exists := c.singletons["datastore"]; exists {
		if client, ok := service.(*datastore.Client); ok && client != nil {
			if err := client.Close(); err != nil {
				return fmt.Errorf("failed to close datastore client: %v", err)
			}
		}
	}

	return nil
}
