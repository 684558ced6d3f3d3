package users

import (
	"time"

	"github.com/pentora/pentora/internal/auth"
)

// CreatedUser is a user row augmented with the plain password stored on the
// creator relationship, so creators can hand credentials to the people they
// onboard. Only ever returned to the creator.
type CreatedUser struct {
	auth.UserDTO
	PlainPassword string        `json:"plainPassword"`
	Children      []CreatedUser `json:"children,omitempty"`
}

// AssignedUser is a user visible through an assignment.
type AssignedUser struct {
	auth.UserDTO
	AssignedAt time.Time `json:"assignedAt"`
	AssignerID int64     `json:"assignerId"`
}

// Assignment links a supervised user to the person responsible for them.
type Assignment struct {
	ID             int64        `json:"id"`
	AssignedUserID int64        `json:"assignedUserId"`
	AssigneeID     int64        `json:"assigneeId"`
	AssignedUser   auth.UserDTO `json:"assignedUser"`
	AssignedAt     time.Time    `json:"assignedAt"`
}

// CreateUserInput carries the fields for onboarding a new account.
type CreateUserInput struct {
	Username  string `json:"username" validate:"required,min=3,max=150"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role" validate:"required"`
}

// UpdateUserInput carries the patchable user fields. Empty values are left
// unchanged.
type UpdateUserInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" validate:"omitempty,email"`
	Role      string `json:"role"`
}
