package workflow

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

var (
	requester = Actor{ID: "u-req", Name: "Rita Requester", Role: models.RoleOperator}
	commenter = Actor{ID: "u-op", Name: "Omar Operator", Role: models.RoleOperator}
	reviewer  = Actor{ID: "u-rev", Name: "Maya Manager", Role: models.RoleManager}
	reviewer2 = Actor{ID: "u-rev2", Name: "Max Manager", Role: models.RoleManager}
	committer = Actor{ID: "u-adm", Name: "Ada Admin", Role: models.RoleAdmin}
	mechA     = Actor{ID: "m-a", Name: "Alex Mechanic", Role: models.RoleMechanic}
	mechB     = Actor{ID: "m-b", Name: "Bea Mechanic", Role: models.RoleMechanic}
	outsider  = Actor{ID: "u-view", Name: "Vic Viewer", Role: models.RoleViewer}
)

var (
	mechanicA = models.Mechanic{ID: mechA.ID, Name: mechA.Name, Active: true}
	mechanicB = models.Mechanic{ID: mechB.ID, Name: mechB.Name, Active: true}
)

// testEngine ticks its clock by one second per call and hands out
// sequential ids.
func testEngine() Engine {
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	ticks, ids := 0, 0
	return Engine{
		Now: func() time.Time {
			ticks++
			return base.Add(time.Duration(ticks) * time.Second)
		},
		NewID: func() string {
			ids++
			return fmt.Sprintf("id-%d", ids)
		},
	}
}

func testRoute() []models.RouteStep {
	return []models.RouteStep{
		{Stage: models.StageComment, RequiredRole: models.RoleOperator, RequiredUserIDs: []string{commenter.ID}},
		{Stage: models.StageReview, RequiredRole: models.RoleManager, RequiredUserIDs: []string{reviewer.ID, reviewer2.ID}},
		{Stage: models.StageApprove, RequiredRole: models.RoleManager, RequiredUserIDs: []string{reviewer.ID}},
		{Stage: models.StageCommit, RequiredRole: models.RoleAdmin, RequiredUserIDs: []string{committer.ID}},
	}
}

func newTestRequest(t *testing.T, e Engine) *models.MaintenanceRequest {
	t.Helper()
	req, err := e.CreateRequest(NewRequest{
		VehicleID:     "veh-1",
		Description:   "Brake pads worn",
		Priority:      models.PriorityHigh,
		EstimatedCost: 400,
	}, requester, testRoute())
	require.NoError(t, err)
	return req
}

// requestAtReview returns a request that passed Comment and waits on Review.
func requestAtReview(t *testing.T, e Engine) *models.MaintenanceRequest {
	t.Helper()
	req := newTestRequest(t, e)
	_, err := e.ProcessStage(req, commenter, "looks necessary")
	require.NoError(t, err)
	require.Equal(t, models.StageReview, req.CurrentStage)
	return req
}

func cloneRequest(t *testing.T, req *models.MaintenanceRequest) *models.MaintenanceRequest {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	var out models.MaintenanceRequest
	require.NoError(t, json.Unmarshal(data, &out))
	return &out
}

func proposalOf(t *testing.T, req *models.MaintenanceRequest, mechanicID string) *models.MechanicProposal {
	t.Helper()
	p := findByMechanic(req.Deliberation, mechanicID)
	require.NotNil(t, p, "no proposal for %s", mechanicID)
	return p
}
