package main

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/events"
	"github.com/ukydev/fleet-maintenance/internal/lock"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/service"
	"github.com/ukydev/fleet-maintenance/internal/workflow"
)

// systemActor is the identity fleetd uses for administrative commands.
var systemActor = workflow.Actor{ID: "fleetd", Name: "fleetd", Role: models.RoleAdmin}

// openStore opens the configured storage backend. SQLite databases are
// migrated on open; Mongo indexes are ensured.
func openStore(ctx context.Context, cfg config.StorageConfig) (db.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		store, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.WithField("path", cfg.SQLitePath).Info("Opened SQLite store")
		return store, nil
	default:
		client, err := db.ConnectMongo(cfg.MongoURI, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		store := db.NewMongoStore(client, cfg.MongoDB)
		ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		if err := store.EnsureIndexes(ctx); err != nil {
			store.Close()
			return nil, err
		}
		log.WithField("database", cfg.MongoDB).Info("Connected to MongoDB")
		return store, nil
	}
}

func newLocker(cfg config.LockConfig) (lock.Locker, error) {
	if cfg.Driver == "redis" {
		return lock.NewRedisLocker(cfg.RedisAddr, cfg.TTL)
	}
	return lock.NewLocalLocker(), nil
}

func newPublisher(cfg config.EventsConfig) (events.Publisher, error) {
	switch cfg.Driver {
	case "mqtt":
		return events.NewMQTTPublisher(events.MQTTConfig{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
			QoS:         1,
		})
	case "nats":
		return events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix)
	default:
		return events.NopPublisher{}, nil
	}
}

// app is a fully wired service plus the resources it owns.
type app struct {
	store   db.Store
	svc     *service.MaintenanceService
	closers []io.Closer
}

func (c *cli) openApp(ctx context.Context) (*app, error) {
	routes, err := config.LoadRouteTemplate(c.cfg.RoutesFile)
	if err != nil {
		return nil, err
	}
	store, err := openStore(ctx, c.cfg.Storage)
	if err != nil {
		return nil, err
	}
	a := &app{store: store}

	locker, err := newLocker(c.cfg.Lock)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("lock: %w", err)
	}
	if closer, ok := locker.(io.Closer); ok {
		a.closers = append(a.closers, closer)
	}

	publisher, err := newPublisher(c.cfg.Events)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("events: %w", err)
	}
	a.closers = append(a.closers, publisher)

	a.svc = service.New(service.Options{
		Store:     store,
		Locker:    locker,
		Publisher: publisher,
		Routes:    routes,
		Timeout:   c.cfg.Storage.Timeout,
	})
	return a, nil
}

// Close releases everything in reverse order of acquisition.
func (a *app) Close() error {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.WithError(err).Warn("Failed to close resource")
		}
	}
	return a.store.Close()
}
