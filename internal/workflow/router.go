package workflow

import (
	"fmt"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// CanAct reports whether userID is a required user of the request's current
// stage.
func CanAct(req *models.MaintenanceRequest, userID string) bool {
	if userID == "" {
		return false
	}
	step, ok := req.RouteFor(req.CurrentStage)
	if !ok {
		return false
	}
	for _, id := range step.RequiredUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ShouldAutoSkip reports whether the current step belongs to the requester,
// who may not approve their own request. The step passes through instead of
// failing.
func ShouldAutoSkip(req *models.MaintenanceRequest, userID string) bool {
	return userID == req.RequesterID && CanAct(req, userID)
}

// RouteTemplate names the role required on each acting stage.
type RouteTemplate []StageRole

// StageRole binds a stage to the role whose holders must act on it.
type StageRole struct {
	Stage models.Stage `yaml:"stage"`
	Role  models.Role  `yaml:"role"`
}

// DefaultRouteTemplate is used when no template is configured.
func DefaultRouteTemplate() RouteTemplate {
	return RouteTemplate{
		{Stage: models.StageComment, Role: models.RoleOperator},
		{Stage: models.StageReview, Role: models.RoleManager},
		{Stage: models.StageApprove, Role: models.RoleManager},
		{Stage: models.StageCommit, Role: models.RoleAdmin},
	}
}

// Validate checks that the template covers every acting stage once, in
// pipeline order.
func (t RouteTemplate) Validate() error {
	acting := models.Pipeline[:len(models.Pipeline)-1]
	if len(t) != len(acting) {
		return fmt.Errorf("route template must define %d stages, got %d", len(acting), len(t))
	}
	for i, sr := range t {
		if sr.Stage != acting[i] {
			return fmt.Errorf("route template position %d must be stage %s, got %s", i+1, acting[i], sr.Stage)
		}
		if !models.IsValidRole(sr.Role) {
			return fmt.Errorf("route template stage %s has invalid role %q", sr.Stage, sr.Role)
		}
	}
	return nil
}

// BuildRoute resolves role membership into required user ids. users is the
// set of candidate users; inactive ones are ignored.
func BuildRoute(t RouteTemplate, users []models.User) ([]models.RouteStep, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	route := make([]models.RouteStep, 0, len(t))
	for _, sr := range t {
		step := models.RouteStep{Stage: sr.Stage, RequiredRole: sr.Role, RequiredUserIDs: []string{}}
		for _, u := range users {
			if u.IsActive && u.Role == sr.Role {
				step.RequiredUserIDs = append(step.RequiredUserIDs, u.ID.Hex())
			}
		}
		if len(step.RequiredUserIDs) == 0 {
			return nil, fmt.Errorf("no active user holds role %s required by stage %s", sr.Role, sr.Stage)
		}
		route = append(route, step)
	}
	return route, nil
}
