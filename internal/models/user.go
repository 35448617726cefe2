package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
	RoleMechanic Role = "mechanic"
)

// Actions checked by HasPermission.
const (
	ActionViewMaintenance   = "view_maintenance"
	ActionCreateMaintenance = "create_maintenance"
	ActionProcessStage      = "process_stage"
	ActionReviewCost        = "review_cost"
	ActionProposeCost       = "propose_cost"
	ActionManageWork        = "manage_work"
	ActionManageUsers       = "manage_users"
)

// User represents a user in the system
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username  string             `bson:"username" json:"username"`
	Email     string             `bson:"email" json:"email"`
	Role      Role               `bson:"role" json:"role"`
	FirstName string             `bson:"first_name" json:"first_name"`
	LastName  string             `bson:"last_name" json:"last_name"`
	IsActive  bool               `bson:"is_active" json:"is_active"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// DisplayName is the name shown in ledgers and accepted offers.
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleOperator, RoleViewer, RoleMechanic:
		return true
	default:
		return false
	}
}

// IsCostReviewer reports whether the role sits on the reviewer side of a
// cost negotiation.
func IsCostReviewer(role Role) bool {
	return role == RoleAdmin || role == RoleManager
}

// HasPermission checks if a user has permission for a specific action
func (u *User) HasPermission(action string) bool {
	return RoleHasPermission(u.Role, action)
}

// RoleHasPermission is HasPermission without a user document.
func RoleHasPermission(role Role, action string) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleManager:
		return action != ActionManageUsers
	case RoleOperator:
		return action == ActionViewMaintenance || action == ActionCreateMaintenance ||
			action == ActionProcessStage
	case RoleMechanic:
		return action == ActionViewMaintenance || action == ActionProposeCost
	case RoleViewer:
		return action == ActionViewMaintenance
	default:
		return false
	}
}
