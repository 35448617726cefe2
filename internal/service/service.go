// Package service runs workflow operations against storage. Every mutation
// holds the request lock, loads the request, applies one engine operation
// and saves the whole document with a version check, so a failed operation
// leaves nothing behind.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/events"
	"github.com/ukydev/fleet-maintenance/internal/lock"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/workflow"
)

const defaultTimeout = 10 * time.Second

// Options configures New. Store is required; the rest have defaults.
type Options struct {
	Store     db.Store
	Locker    lock.Locker
	Publisher events.Publisher
	Engine    *workflow.Engine
	Routes    workflow.RouteTemplate
	Timeout   time.Duration
}

// MaintenanceService is the entry point for every maintenance request
// operation. Actors are always passed in explicitly.
type MaintenanceService struct {
	store     db.Store
	locker    lock.Locker
	publisher events.Publisher
	engine    workflow.Engine
	routes    workflow.RouteTemplate
	timeout   time.Duration
}

// New builds a MaintenanceService.
func New(opts Options) *MaintenanceService {
	s := &MaintenanceService{
		store:     opts.Store,
		locker:    opts.Locker,
		publisher: opts.Publisher,
		routes:    opts.Routes,
		timeout:   opts.Timeout,
	}
	if opts.Engine != nil {
		s.engine = *opts.Engine
	} else {
		s.engine = workflow.New()
	}
	if s.locker == nil {
		s.locker = lock.NewLocalLocker()
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.routes == nil {
		s.routes = workflow.DefaultRouteTemplate()
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	return s
}

func (s *MaintenanceService) now() time.Time {
	if s.engine.Now != nil {
		return s.engine.Now().UTC()
	}
	return time.Now().UTC()
}

func requirePermission(op string, actor workflow.Actor, action string) error {
	if actor.ID == "" || !models.RoleHasPermission(actor.Role, action) {
		return workflow.Unauthorizedf(op, "user %q with role %q may not %s", actor.ID, actor.Role, action)
	}
	return nil
}

// load reads a request, translating storage misses into NotFound.
func (s *MaintenanceService) load(ctx context.Context, op, id string) (*models.MaintenanceRequest, error) {
	req, err := s.store.FindRequestByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, workflow.NotFoundf(op, "request %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return req, nil
}

// mutation applies one engine operation to a loaded request and returns the
// events to publish once it is saved.
type mutation func(req *models.MaintenanceRequest) ([]events.Event, error)

func (s *MaintenanceService) mutate(ctx context.Context, op, id string, actor workflow.Actor, apply mutation) (*models.MaintenanceRequest, error) {
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: lock request %s: %w", op, id, err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	evs, err := apply(req)
	if err != nil {
		log.WithFields(log.Fields{
			"op":         op,
			"request_id": id,
			"actor_id":   actor.ID,
			"error":      err,
		}).Debug("Operation refused")
		return nil, err
	}
	req.UpdatedAt = s.now()
	if err := s.store.SaveRequest(ctx, req); err != nil {
		if errors.Is(err, db.ErrVersionConflict) {
			return nil, workflow.Conflictf(op, "request %s was modified concurrently", id)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.WithFields(log.Fields{
		"op":           op,
		"request_id":   id,
		"actor_id":     actor.ID,
		"stage":        req.CurrentStage,
		"status":       req.Status,
		"version":      req.Version,
		"deliberation": workflow.DeliberationStatus(req.Deliberation),
	}).Info("Request updated")

	s.publish(ctx, evs)
	return req, nil
}

// publish delivers events after commit. Failures are logged and do not undo
// the operation.
func (s *MaintenanceService) publish(ctx context.Context, evs []events.Event) {
	for _, ev := range evs {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			log.WithFields(log.Fields{
				"event":      ev.Type,
				"request_id": ev.RequestID,
				"error":      err,
			}).Warn("Failed to publish event")
		}
	}
}

func (s *MaintenanceService) event(typ events.Type, req *models.MaintenanceRequest, actor workflow.Actor, payload map[string]any) events.Event {
	return events.New(typ, req.ID, actor.ID, s.now(), payload)
}

// Close releases the publisher.
func (s *MaintenanceService) Close() error {
	return s.publisher.Close()
}
