package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/workflow"
)

// RegisterMechanic adds a mechanic to the directory. The mechanic id must be
// the id of an active user holding the mechanic role.
func (s *MaintenanceService) RegisterMechanic(ctx context.Context, actor workflow.Actor, m models.Mechanic) (models.Mechanic, error) {
	const op = "register mechanic"
	if err := requirePermission(op, actor, models.ActionManageUsers); err != nil {
		return models.Mechanic{}, err
	}
	if strings.TrimSpace(m.ID) == "" {
		return models.Mechanic{}, workflow.InvalidArgumentf(op, "mechanic id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.store.FindUserByID(ctx, m.ID)
	if errors.Is(err, db.ErrNotFound) {
		return models.Mechanic{}, workflow.NotFoundf(op, "user %s not found", m.ID)
	}
	if err != nil {
		return models.Mechanic{}, fmt.Errorf("%s: %w", op, err)
	}
	if user.Role != models.RoleMechanic {
		return models.Mechanic{}, workflow.InvalidArgumentf(op, "user %s has role %s, not %s", m.ID, user.Role, models.RoleMechanic)
	}
	if m.Name == "" {
		m.Name = user.DisplayName()
	}
	if m.Email == "" {
		m.Email = user.Email
	}
	m.Active = user.IsActive
	m.CreatedAt = s.now()
	if err := s.store.InsertMechanic(ctx, m); err != nil {
		return models.Mechanic{}, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

// Mechanics lists the directory.
func (s *MaintenanceService) Mechanics(ctx context.Context, actor workflow.Actor, activeOnly bool) ([]models.Mechanic, error) {
	const op = "list mechanics"
	if err := requirePermission(op, actor, models.ActionViewMaintenance); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	out, err := s.store.FindMechanics(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
