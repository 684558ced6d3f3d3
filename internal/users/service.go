package users

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/pentora/pentora/internal/activity"
	"github.com/pentora/pentora/internal/auth"
	"github.com/pentora/pentora/internal/policy"
)

// Service errors surfaced to handlers.
var (
	ErrRoleNotAllowed    = errors.New("users: not authorized to create this role")
	ErrUsernameTaken     = errors.New("users: username already exists")
	ErrEmailTaken        = errors.New("users: email already exists")
	ErrNotCreator        = errors.New("users: you can only manage users you created")
	ErrInvalidAssignment = errors.New("users: both users must have been created by you")
)

// Store is the persistence surface the service depends on.
type Store interface {
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateWithRelationship(ctx context.Context, creatorID int64, u auth.User, plainPassword string) (auth.UserDTO, error)
	CreatedBy(ctx context.Context, creatorID int64) ([]CreatedUser, error)
	CreatedByWithRole(ctx context.Context, creatorID int64, role policy.Role) ([]CreatedUser, error)
	IsCreator(ctx context.Context, creatorID, targetID int64) (bool, error)
	AssignedTo(ctx context.Context, assigneeID int64) ([]AssignedUser, error)
	AssignmentsBy(ctx context.Context, assignerID int64) ([]Assignment, error)
	UpsertAssignment(ctx context.Context, assignerID, assignedUserID, assigneeID int64) error
	DeleteAssignment(ctx context.Context, assignedUserID, assigneeID int64) error
	DeleteUserCascade(ctx context.Context, userID int64) error
	All(ctx context.Context) ([]auth.UserDTO, error)
	ActiveByRole(ctx context.Context, role policy.Role) ([]auth.UserDTO, error)
	ByIDs(ctx context.Context, ids []int64) ([]auth.UserDTO, error)
	ByID(ctx context.Context, id int64) (auth.UserDTO, error)
	Update(ctx context.Context, id int64, in UpdateUserInput) (auth.UserDTO, error)
	SetActive(ctx context.Context, id int64, active bool) (auth.UserDTO, error)
	SubordinateIDs(ctx context.Context, userID int64) ([]int64, error)
}

// ActivityRecorder logs user-management activity.
type ActivityRecorder interface {
	Log(ctx context.Context, e activity.Entry)
}

// SessionRevoker drops live tokens for a user. Satisfied by the auth service.
type SessionRevoker interface {
	RevokeSessions(ctx context.Context, userID int64) error
}

// Service implements user onboarding, hierarchy and access control rules.
type Service struct {
	store    Store
	recorder ActivityRecorder
	sessions SessionRevoker
}

// NewService constructs a Service.
func NewService(store Store, recorder ActivityRecorder, sessions SessionRevoker) *Service {
	return &Service{store: store, recorder: recorder, sessions: sessions}
}

// Create onboards a user, enforcing the role-creation matrix: superadmins
// create admins; admins create team leaders, testers and client admins; team
// leaders create testers; client admins create client users.
func (s *Service) Create(ctx context.Context, creator policy.Identity, in CreateUserInput, ip, ua string) (*CreatedUser, error) {
	targetRole, ok := policy.ParseRole(in.Role)
	if !ok || !policy.CanCreate(creator.Role, targetRole) {
		return nil, ErrRoleNotAllowed
	}
	if taken, err := s.store.UsernameExists(ctx, in.Username); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrUsernameTaken
	}
	if taken, err := s.store.EmailExists(ctx, in.Email); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	dto, err := s.store.CreateWithRelationship(ctx, creator.UserID, auth.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         targetRole,
	}, in.Password)
	if err != nil {
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.Log(ctx, activity.Entry{
			UserID:       creator.UserID,
			ActivityType: activity.TypeUserManagement,
			Action:       activity.ActionCreate,
			ResourceType: "user",
			ResourceID:   dto.ID,
			ResourceName: dto.FirstName + " " + dto.LastName + " (@" + dto.Username + ")",
			Details: map[string]any{
				"created_user_role":  dto.Role,
				"created_user_email": dto.Email,
			},
			IPAddress: ip,
			UserAgent: ua,
		})
	}
	return &CreatedUser{UserDTO: dto, PlainPassword: in.Password}, nil
}

// Created lists the users the creator onboarded.
func (s *Service) Created(ctx context.Context, creatorID int64) ([]CreatedUser, error) {
	return s.store.CreatedBy(ctx, creatorID)
}

// Hierarchy builds the creation tree under the user, depth first.
func (s *Service) Hierarchy(ctx context.Context, rootID int64) ([]CreatedUser, error) {
	return s.buildHierarchy(ctx, rootID, map[int64]bool{rootID: true})
}

func (s *Service) buildHierarchy(ctx context.Context, creatorID int64, seen map[int64]bool) ([]CreatedUser, error) {
	created, err := s.store.CreatedBy(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	for i := range created {
		if seen[created[i].ID] {
			continue
		}
		seen[created[i].ID] = true
		children, err := s.buildHierarchy(ctx, created[i].ID, seen)
		if err != nil {
			return nil, err
		}
		created[i].Children = children
	}
	return created, nil
}

// Assigned lists users assigned to the viewer.
func (s *Service) Assigned(ctx context.Context, assigneeID int64) ([]AssignedUser, error) {
	return s.store.AssignedTo(ctx, assigneeID)
}

// Assignable lists active users of the role the viewer created.
func (s *Service) Assignable(ctx context.Context, viewerID int64, role policy.Role) ([]CreatedUser, error) {
	return s.store.CreatedByWithRole(ctx, viewerID, role)
}

// Assignments lists the assignments the viewer made.
func (s *Service) Assignments(ctx context.Context, assignerID int64) ([]Assignment, error) {
	return s.store.AssignmentsBy(ctx, assignerID)
}

// Assign links a user to an assignee. Both must have been created by the
// caller.
func (s *Service) Assign(ctx context.Context, assigner policy.Identity, assignedUserID, assigneeID int64) error {
	canAssignUser, err := s.store.IsCreator(ctx, assigner.UserID, assignedUserID)
	if err != nil {
		return err
	}
	canAssignTo, err := s.store.IsCreator(ctx, assigner.UserID, assigneeID)
	if err != nil {
		return err
	}
	if !canAssignUser || !canAssignTo {
		return ErrInvalidAssignment
	}
	if err := s.store.UpsertAssignment(ctx, assigner.UserID, assignedUserID, assigneeID); err != nil {
		return err
	}
	if s.recorder != nil {
		s.recorder.Log(ctx, activity.Entry{
			UserID:       assigner.UserID,
			ActivityType: activity.TypeUserManagement,
			Action:       activity.ActionAssign,
			ResourceType: "user",
			ResourceID:   assignedUserID,
			Details:      map[string]any{"assigneeId": assigneeID},
		})
	}
	return nil
}

// Unassign removes the assignment link.
func (s *Service) Unassign(ctx context.Context, assigner policy.Identity, assignedUserID, assigneeID int64) error {
	return s.store.DeleteAssignment(ctx, assignedUserID, assigneeID)
}

// Delete removes a user the caller created, cascading relationships,
// assignments and sessions, and killing any live tokens.
func (s *Service) Delete(ctx context.Context, caller policy.Identity, userID int64) error {
	isCreator, err := s.store.IsCreator(ctx, caller.UserID, userID)
	if err != nil {
		return err
	}
	if !isCreator {
		return ErrNotCreator
	}
	if s.sessions != nil {
		if err := s.sessions.RevokeSessions(ctx, userID); err != nil {
			return err
		}
	}
	if err := s.store.DeleteUserCascade(ctx, userID); err != nil {
		return err
	}
	if s.recorder != nil {
		s.recorder.Log(ctx, activity.Entry{
			UserID:       caller.UserID,
			ActivityType: activity.TypeUserManagement,
			Action:       activity.ActionDelete,
			ResourceType: "user",
			ResourceID:   userID,
		})
	}
	return nil
}

// All lists every user. The admin-level guard runs before this.
func (s *Service) All(ctx context.Context) ([]auth.UserDTO, error) {
	return s.store.All(ctx)
}

// Update patches a user's fields.
func (s *Service) Update(ctx context.Context, id int64, in UpdateUserInput) (auth.UserDTO, error) {
	if in.Role != "" {
		if _, ok := policy.ParseRole(in.Role); !ok {
			return auth.UserDTO{}, ErrRoleNotAllowed
		}
	}
	return s.store.Update(ctx, id, in)
}

// AccessControlUsers lists the users the caller can revoke or restore:
// superadmins see everyone, admins only the users they created.
func (s *Service) AccessControlUsers(ctx context.Context, caller policy.Identity) ([]auth.UserDTO, error) {
	if caller.Role == policy.RoleSuperadmin {
		return s.store.All(ctx)
	}
	created, err := s.store.CreatedBy(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	dtos := make([]auth.UserDTO, 0, len(created))
	for _, cu := range created {
		dtos = append(dtos, cu.UserDTO)
	}
	return dtos, nil
}

// RevokeAccess deactivates the account and kills its live sessions. Admins
// may only revoke users they created.
func (s *Service) RevokeAccess(ctx context.Context, caller policy.Identity, userID int64, ip, ua string) error {
	if err := s.authorizeAccessChange(ctx, caller, userID); err != nil {
		return err
	}
	target, err := s.store.SetActive(ctx, userID, false)
	if err != nil {
		return err
	}
	if s.sessions != nil {
		if err := s.sessions.RevokeSessions(ctx, userID); err != nil {
			return err
		}
	}
	s.logAccessChange(ctx, caller, target, "access_revoked", ip, ua)
	return nil
}

// RestoreAccess reactivates the account. Admins may only restore users they
// created.
func (s *Service) RestoreAccess(ctx context.Context, caller policy.Identity, userID int64, ip, ua string) error {
	if err := s.authorizeAccessChange(ctx, caller, userID); err != nil {
		return err
	}
	target, err := s.store.SetActive(ctx, userID, true)
	if err != nil {
		return err
	}
	s.logAccessChange(ctx, caller, target, "access_restored", ip, ua)
	return nil
}

func (s *Service) authorizeAccessChange(ctx context.Context, caller policy.Identity, userID int64) error {
	if caller.Role == policy.RoleSuperadmin {
		return nil
	}
	isCreator, err := s.store.IsCreator(ctx, caller.UserID, userID)
	if err != nil {
		return err
	}
	if !isCreator {
		return ErrNotCreator
	}
	return nil
}

func (s *Service) logAccessChange(ctx context.Context, caller policy.Identity, target auth.UserDTO, change, ip, ua string) {
	if s.recorder == nil {
		return
	}
	s.recorder.Log(ctx, activity.Entry{
		UserID:       caller.UserID,
		ActivityType: activity.TypeUserManagement,
		Action:       activity.ActionUpdate,
		Details: map[string]any{
			"target":         change,
			"targetUserId":   target.ID,
			"targetUsername": target.Username,
		},
		IPAddress: ip,
		UserAgent: ua,
	})
}

// ByRole lists active users holding the role.
func (s *Service) ByRole(ctx context.Context, role policy.Role) ([]auth.UserDTO, error) {
	return s.store.ActiveByRole(ctx, role)
}

// Supervised lists users of the role the viewer created or had assigned to
// them, deduplicated. Backs the team-leader, tester and client-team lookups.
func (s *Service) Supervised(ctx context.Context, viewerID int64, role policy.Role) ([]auth.UserDTO, error) {
	created, err := s.store.CreatedByWithRole(ctx, viewerID, role)
	if err != nil {
		return nil, err
	}
	assigned, err := s.store.AssignedTo(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(created))
	combined := make([]auth.UserDTO, 0, len(created)+len(assigned))
	for _, cu := range created {
		seen[cu.ID] = true
		combined = append(combined, cu.UserDTO)
	}
	for _, au := range assigned {
		if au.Role == string(role) && au.IsActive && !seen[au.ID] {
			seen[au.ID] = true
			combined = append(combined, au.UserDTO)
		}
	}
	return combined, nil
}

// SubordinateIDs exposes hierarchy scoping for the activity and audit
// listings.
func (s *Service) SubordinateIDs(ctx context.Context, userID int64) ([]int64, error) {
	return s.store.SubordinateIDs(ctx, userID)
}
