package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "fleet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRequest(id string, created time.Time) *models.MaintenanceRequest {
	amount := 250.0
	return &models.MaintenanceRequest{
		ID:            id,
		VehicleID:     "veh-1",
		RequesterID:   "u-req",
		RequesterName: "Rita",
		Description:   "Replace tires",
		Priority:      models.PriorityMedium,
		CurrentStage:  models.StageReview,
		Status:        models.StatusPending,
		EstimatedCost: 300,
		Route: []models.RouteStep{
			{Stage: models.StageComment, RequiredRole: models.RoleOperator, RequiredUserIDs: []string{"u-op"}},
		},
		Deliberation: &models.CostDeliberation{
			SelectedMechanicIDs: []string{"m-1"},
			Proposals: []models.MechanicProposal{{
				ID:             "p-1",
				MechanicID:     "m-1",
				ProposedAmount: amount,
				Status:         models.ProposalProposed,
				Entries: []models.NegotiationEntry{{
					SequenceNumber:   1,
					NegotiationType:  models.NegotiationInitial,
					NegotiatedAmount: amount,
					NegotiatedDate:   created.Add(time.Minute),
				}},
			}},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store := openTestStore(t)

	v, err := Migrate(store.DB)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	var n int
	require.NoError(t, store.DB.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLiteStore_RequestRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	req := sampleRequest("req-1", created)
	require.NoError(t, store.InsertRequest(ctx, req))
	assert.Equal(t, int64(1), req.Version)

	got, err := store.FindRequestByID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, req, got)

	_, err = store.FindRequestByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.InsertRequest(ctx, sampleRequest("req-1", created))
	assert.Error(t, err, "duplicate id")
}

func TestSQLiteStore_SaveRequestVersioning(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	req := sampleRequest("req-1", time.Now().UTC())
	require.NoError(t, store.InsertRequest(ctx, req))

	first, err := store.FindRequestByID(ctx, "req-1")
	require.NoError(t, err)
	second, err := store.FindRequestByID(ctx, "req-1")
	require.NoError(t, err)

	first.CurrentStage = models.StageApprove
	require.NoError(t, store.SaveRequest(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Status = models.StatusRejected
	assert.ErrorIs(t, store.SaveRequest(ctx, second), ErrVersionConflict)

	got, err := store.FindRequestByID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.StageApprove, got.CurrentStage)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, int64(2), got.Version)

	ghost := sampleRequest("ghost", time.Now().UTC())
	assert.ErrorIs(t, store.SaveRequest(ctx, ghost), ErrNotFound)
}

func TestSQLiteStore_FindRequests(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		req := sampleRequest(id, base.Add(time.Duration(i)*time.Hour))
		if id == "c" {
			req.Status = models.StatusRejected
			req.VehicleID = "veh-2"
		}
		require.NoError(t, store.InsertRequest(ctx, req))
	}

	all, err := store.FindRequests(ctx, RequestFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)

	pending, err := store.FindRequests(ctx, RequestFilter{Status: models.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	byVehicle, err := store.FindRequests(ctx, RequestFilter{VehicleID: "veh-2"})
	require.NoError(t, err)
	require.Len(t, byVehicle, 1)
	assert.Equal(t, "c", byVehicle[0].ID)

	limited, err := store.FindRequests(ctx, RequestFilter{Stage: models.StageReview, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteStore_Mechanics(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertMechanic(ctx, models.Mechanic{ID: "m-2", Name: "Zed", Active: true}))
	require.NoError(t, store.InsertMechanic(ctx, models.Mechanic{ID: "m-1", Name: "Amy", Specialty: "brakes", Active: true}))
	require.NoError(t, store.InsertMechanic(ctx, models.Mechanic{ID: "m-3", Name: "Old", Active: false}))

	m, err := store.FindMechanicByID(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "brakes", m.Specialty)
	assert.True(t, m.Active)
	assert.False(t, m.CreatedAt.IsZero())

	_, err = store.FindMechanicByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	active, err := store.FindMechanics(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "Amy", active[0].Name)

	all, err := store.FindMechanics(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLiteStore_Users(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	mgr := &models.User{Username: "maya", Role: models.RoleManager, FirstName: "Maya", IsActive: true}
	require.NoError(t, store.InsertUser(ctx, mgr))
	assert.False(t, mgr.ID.IsZero())
	require.NoError(t, store.InsertUser(ctx, &models.User{Username: "max", Role: models.RoleManager, IsActive: false}))
	require.NoError(t, store.InsertUser(ctx, &models.User{Username: "omar", Role: models.RoleOperator, IsActive: true}))

	got, err := store.FindUserByID(ctx, mgr.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "maya", got.Username)
	assert.Equal(t, models.RoleManager, got.Role)
	assert.True(t, got.IsActive)

	_, err = store.FindUserByID(ctx, "0123456789abcdef01234567")
	assert.ErrorIs(t, err, ErrNotFound)

	managers, err := store.FindUsers(ctx, UserFilter{Role: models.RoleManager, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, managers, 1)
	assert.Equal(t, mgr.ID, managers[0].ID)

	everyone, err := store.FindUsers(ctx, UserFilter{})
	require.NoError(t, err)
	assert.Len(t, everyone, 3)

	assert.Error(t, store.InsertUser(ctx, &models.User{Username: "maya", Role: models.RoleViewer}), "duplicate username")
}
