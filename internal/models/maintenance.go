package models

import "time"

// Stage is one step of the fixed approval pipeline.
type Stage string

const (
	StageComment  Stage = "Comment"
	StageReview   Stage = "Review"
	StageApprove  Stage = "Approve"
	StageCommit   Stage = "Commit"
	StageComplete Stage = "Complete"
)

// Pipeline is the stage order. Complete is terminal and has no route step.
var Pipeline = []Stage{StageComment, StageReview, StageApprove, StageCommit, StageComplete}

// RequestStatus is the lifecycle status of a maintenance request.
type RequestStatus string

const (
	StatusPending    RequestStatus = "Pending"
	StatusApproved   RequestStatus = "Approved"
	StatusRejected   RequestStatus = "Rejected"
	StatusInProgress RequestStatus = "InProgress"
	StatusCompleted  RequestStatus = "Completed"
)

// Priority levels accepted on a request.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// IsValidPriority checks a request priority.
func IsValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// RouteStep names who must act on one stage.
type RouteStep struct {
	Stage           Stage    `bson:"stage" json:"stage"`
	RequiredRole    Role     `bson:"required_role" json:"required_role"`
	RequiredUserIDs []string `bson:"required_user_ids" json:"required_user_ids"`
}

// Transaction is one recorded stage action.
type Transaction struct {
	ID          string    `bson:"id" json:"id"`
	ActorID     string    `bson:"actor_id" json:"actor_id"`
	ActorName   string    `bson:"actor_name" json:"actor_name"`
	Action      string    `bson:"action" json:"action"`
	Comments    string    `bson:"comments" json:"comments"`
	AutoSkipped bool      `bson:"auto_skipped" json:"auto_skipped"`
	Timestamp   time.Time `bson:"timestamp" json:"timestamp"`
}

// MaintenanceRequest is a vehicle maintenance request and everything that
// mutates with it. The cost deliberation is embedded so one write commits
// the whole unit.
type MaintenanceRequest struct {
	ID              string            `bson:"_id" json:"id"`
	VehicleID       string            `bson:"vehicle_id" json:"vehicle_id"`
	RequesterID     string            `bson:"requester_id" json:"requester_id"`
	RequesterName   string            `bson:"requester_name" json:"requester_name"`
	Description     string            `bson:"description" json:"description"`
	Priority        string            `bson:"priority" json:"priority"` // "low", "medium", "high", "critical"
	CurrentStage    Stage             `bson:"current_stage" json:"current_stage"`
	Status          RequestStatus     `bson:"status" json:"status"`
	AdminComments   string            `bson:"admin_comments" json:"admin_comments"`
	RejectionReason string            `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`
	EstimatedCost   float64           `bson:"estimated_cost" json:"estimated_cost"` // in USD
	FinalCost       *float64          `bson:"final_cost,omitempty" json:"final_cost,omitempty"`
	Route           []RouteStep       `bson:"route" json:"route"`
	Transactions    []Transaction     `bson:"transactions" json:"transactions"`
	Deliberation    *CostDeliberation `bson:"deliberation,omitempty" json:"deliberation,omitempty"`
	Version         int64             `bson:"version" json:"version"`
	CreatedAt       time.Time         `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `bson:"updated_at" json:"updated_at"`
}

// IsTerminal reports whether no further transition is defined.
func (r *MaintenanceRequest) IsTerminal() bool {
	return r.Status == StatusRejected || r.Status == StatusCompleted
}

// RouteFor returns the route step of a stage, if any.
func (r *MaintenanceRequest) RouteFor(stage Stage) (RouteStep, bool) {
	for _, step := range r.Route {
		if step.Stage == stage {
			return step, true
		}
	}
	return RouteStep{}, false
}
