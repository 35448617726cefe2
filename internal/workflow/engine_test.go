package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// agree runs a one-mechanic deliberation to Agreed at amount.
func agree(t *testing.T, e Engine, req *models.MaintenanceRequest, amount float64) {
	t.Helper()
	require.NoError(t, e.SelectMechanics(req, reviewer, []models.Mechanic{mechanicA}, ""))
	p, err := e.SubmitProposal(req, mechA, mechA.ID, amount, "")
	require.NoError(t, err)
	_, err = e.Accept(req, reviewer, p.ID, "")
	require.NoError(t, err)
	require.Equal(t, models.DeliberationAgreed, DeliberationStatus(req.Deliberation))
}

func TestCreateRequest(t *testing.T) {
	e := testEngine()

	req := newTestRequest(t, e)
	assert.Equal(t, "id-1", req.ID)
	assert.Equal(t, models.StageComment, req.CurrentStage)
	assert.Equal(t, models.StatusPending, req.Status)
	assert.Equal(t, requester.ID, req.RequesterID)
	assert.Equal(t, requester.Name, req.RequesterName)
	assert.Nil(t, req.Deliberation)
	assert.Nil(t, RequestDeliberationStatus(req))

	t.Run("defaults priority", func(t *testing.T) {
		r, err := e.CreateRequest(NewRequest{VehicleID: "v", Description: "d"}, requester, testRoute())
		require.NoError(t, err)
		assert.Equal(t, models.PriorityMedium, r.Priority)
	})

	invalid := []NewRequest{
		{Description: "d"},
		{VehicleID: "v"},
		{VehicleID: "v", Description: "d", Priority: "urgent"},
		{VehicleID: "v", Description: "d", EstimatedCost: -1},
	}
	for _, in := range invalid {
		_, err := e.CreateRequest(in, requester, testRoute())
		assert.ErrorIs(t, err, ErrInvalidArgument, "%+v", in)
	}

	_, err := e.CreateRequest(NewRequest{VehicleID: "v", Description: "d"}, Actor{}, testRoute())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestProcessStage_FullPipeline(t *testing.T) {
	e := testEngine()
	req := requestAtReview(t, e)
	agree(t, e, req, 420)

	tx, err := e.ProcessStage(req, reviewer2, "cost fine")
	require.NoError(t, err)
	assert.Equal(t, string(models.StageReview), tx.Action)
	assert.Equal(t, "cost fine", tx.Comments)
	assert.False(t, tx.AutoSkipped)
	assert.Equal(t, models.StageApprove, req.CurrentStage)

	_, err = e.ProcessStage(req, committer, "")
	assert.ErrorIs(t, err, ErrUnauthorized, "admin is not on the approve route")
	assert.Equal(t, models.StageApprove, req.CurrentStage)

	_, err = e.ProcessStage(req, reviewer, "approved")
	require.NoError(t, err)
	assert.Equal(t, models.StageCommit, req.CurrentStage)

	_, err = e.ProcessStage(req, committer, "committed")
	require.NoError(t, err)
	assert.Equal(t, models.StageComplete, req.CurrentStage)
	assert.Equal(t, models.StatusApproved, req.Status)
	assert.Len(t, req.Transactions, 4)

	_, err = e.ProcessStage(req, committer, "")
	assert.ErrorIs(t, err, ErrConflict)

	t.Run("work lifecycle", func(t *testing.T) {
		assert.ErrorIs(t, e.StartWork(req, commenter, ""), ErrUnauthorized)
		assert.ErrorIs(t, e.CompleteWork(req, reviewer, ""), ErrConflict)

		require.NoError(t, e.StartWork(req, reviewer, "parts ordered"))
		assert.Equal(t, models.StatusInProgress, req.Status)
		assert.ErrorIs(t, e.StartWork(req, reviewer, ""), ErrConflict)

		require.NoError(t, e.CompleteWork(req, committer, "done"))
		assert.Equal(t, models.StatusCompleted, req.Status)
		assert.True(t, req.IsTerminal())

		_, err := e.Reject(req, committer, "too late")
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func TestProcessStage_ReviewRequiresAgreedCost(t *testing.T) {
	e := testEngine()
	req := requestAtReview(t, e)

	_, err := e.ProcessStage(req, reviewer, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPreconditionFailed)
	assert.Contains(t, err.Error(), MsgDeliberationIncomplete)
	assert.Equal(t, models.StageReview, req.CurrentStage)

	require.NoError(t, e.SelectMechanics(req, reviewer, []models.Mechanic{mechanicA}, ""))
	p, err := e.SubmitProposal(req, mechA, mechA.ID, 500, "")
	require.NoError(t, err)

	_, err = e.ProcessStage(req, reviewer, "")
	assert.ErrorIs(t, err, ErrPreconditionFailed)
	assert.Equal(t, models.StageReview, req.CurrentStage)
	assert.Len(t, req.Transactions, 1)

	_, err = e.Accept(req, reviewer, p.ID, "")
	require.NoError(t, err)
	_, err = e.ProcessStage(req, reviewer, "")
	require.NoError(t, err)
	assert.Equal(t, models.StageApprove, req.CurrentStage)
}

func TestProcessStage_GateComesBeforeAuthorization(t *testing.T) {
	e := testEngine()
	req := requestAtReview(t, e)

	_, err := e.ProcessStage(req, outsider, "")
	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestProcessStage_AutoSkipsRequester(t *testing.T) {
	e := testEngine()
	route := testRoute()
	route[0].RequiredUserIDs = []string{requester.ID}
	req, err := e.CreateRequest(NewRequest{VehicleID: "veh-9", Description: "Oil change"}, requester, route)
	require.NoError(t, err)

	tx, err := e.ProcessStage(req, requester, "my own comment")
	require.NoError(t, err)
	assert.True(t, tx.AutoSkipped)
	assert.Equal(t, AutoSkipComment, tx.Comments)
	assert.Equal(t, "Automatically skipped", req.Transactions[0].Comments)
	assert.Equal(t, models.StageReview, req.CurrentStage)
	assert.Equal(t, models.StatusPending, req.Status)
}

func TestProcessStage_Unauthorized(t *testing.T) {
	e := testEngine()
	req := newTestRequest(t, e)

	for _, a := range []Actor{outsider, reviewer, requester, {}} {
		_, err := e.ProcessStage(req, a, "")
		assert.ErrorIs(t, err, ErrUnauthorized, "actor %q", a.ID)
	}
	assert.Equal(t, models.StageComment, req.CurrentStage)
	assert.Empty(t, req.Transactions)
}

func TestReject(t *testing.T) {
	e := testEngine()

	t.Run("requires reason", func(t *testing.T) {
		req := newTestRequest(t, e)
		_, err := e.Reject(req, commenter, "  ")
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Equal(t, models.StatusPending, req.Status)
	})

	t.Run("only stage actors", func(t *testing.T) {
		req := newTestRequest(t, e)
		_, err := e.Reject(req, reviewer, "no budget")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("rejects and ends the request", func(t *testing.T) {
		req := newTestRequest(t, e)
		tx, err := e.Reject(req, commenter, "duplicate request")
		require.NoError(t, err)
		assert.Equal(t, ActionReject, tx.Action)
		assert.Equal(t, models.StatusRejected, req.Status)
		assert.Equal(t, "duplicate request", req.RejectionReason)
		assert.Equal(t, models.StageComment, req.CurrentStage)

		_, err = e.ProcessStage(req, commenter, "")
		assert.ErrorIs(t, err, ErrConflict)
		_, err = e.Reject(req, commenter, "again")
		assert.ErrorIs(t, err, ErrConflict)
		err = e.SelectMechanics(req, reviewer, []models.Mechanic{mechanicA}, "")
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("at review", func(t *testing.T) {
		req := requestAtReview(t, e)
		_, err := e.Reject(req, reviewer2, "not worth it")
		require.NoError(t, err)
		assert.Equal(t, models.StatusRejected, req.Status)
	})
}

func TestErrorKinds(t *testing.T) {
	err := Conflictf("op", "busy %d", 1)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, "op: busy 1", err.Error())

	wrapped := errors.Join(errors.New("context"), NotFoundf("load", "missing"))
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
