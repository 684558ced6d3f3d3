package assets

import (
	"context"
	"errors"

	"github.com/pentora/pentora/internal/activity"
	"github.com/pentora/pentora/internal/policy"
)

// ErrNotAuthorized indicates the caller may not touch the asset.
var ErrNotAuthorized = errors.New("assets: not authorized")

// Store is the persistence surface the service depends on.
type Store interface {
	Create(ctx context.Context, a Asset, ownerID, createdByID int64) (*Asset, error)
	ByID(ctx context.Context, id int64) (*Asset, error)
	All(ctx context.Context) ([]Asset, error)
	OwnedOrCreatedBy(ctx context.Context, userID int64) ([]Asset, error)
	OwnedBy(ctx context.Context, userID int64) ([]Asset, error)
	AssignedToLeader(ctx context.Context, leaderID int64) ([]Asset, error)
	AssignedToTester(ctx context.Context, testerID int64) ([]Asset, error)
	Update(ctx context.Context, a *Asset) (*Asset, error)
	Delete(ctx context.Context, id int64) error
	AssignTeamLeader(ctx context.Context, assetID, leaderID, byID int64) error
	UnassignTeamLeader(ctx context.Context, assetID int64) error
	AssignTester(ctx context.Context, assetID, testerID, byID int64) error
	UnassignTester(ctx context.Context, assetID int64) error
	UpsertClientAssignment(ctx context.Context, assetID, memberID, byID int64) error
	DeactivateClientAssignment(ctx context.Context, assetID, memberID int64) error
	ClientAssetsFor(ctx context.Context, memberID int64) ([]ClientTeamAsset, error)
	ClientAssignmentsFor(ctx context.Context, assetID int64) ([]ClientTeamAssignment, error)
}

// AssetRecorder logs asset activity.
type AssetRecorder interface {
	LogAsset(ctx context.Context, e activity.AssetEntry)
}

// Service applies the asset visibility and assignment rules.
type Service struct {
	store    Store
	recorder AssetRecorder
}

// NewService constructs a Service.
func NewService(store Store, recorder AssetRecorder) *Service {
	return &Service{store: store, recorder: recorder}
}

// List returns the assets the caller may see: admins everything, client
// admins what they own or registered, everyone else nothing.
func (s *Service) List(ctx context.Context, caller policy.Identity) ([]Asset, error) {
	switch caller.Role {
	case policy.RoleAdmin, policy.RoleSuperadmin:
		return s.store.All(ctx)
	case policy.RoleClientAdmin:
		return s.store.OwnedOrCreatedBy(ctx, caller.UserID)
	default:
		return nil, ErrNotAuthorized
	}
}

// ListDetailed mirrors List but scopes client admins to owned assets only,
// matching the detailed asset register page.
func (s *Service) ListDetailed(ctx context.Context, caller policy.Identity) ([]Asset, error) {
	switch caller.Role {
	case policy.RoleAdmin, policy.RoleSuperadmin:
		return s.store.All(ctx)
	case policy.RoleClientAdmin:
		return s.store.OwnedBy(ctx, caller.UserID)
	default:
		return nil, ErrNotAuthorized
	}
}

// Create registers an asset. Client admins become the owner of assets they
// register.
func (s *Service) Create(ctx context.Context, caller policy.Identity, in AssetInput) (*Asset, error) {
	switch caller.Role {
	case policy.RoleAdmin, policy.RoleSuperadmin, policy.RoleClientAdmin:
	default:
		return nil, ErrNotAuthorized
	}
	var a Asset
	applyInput(&a, in)
	ownerID := int64(0)
	if in.ProjectOwnerID != nil {
		ownerID = *in.ProjectOwnerID
	}
	if caller.Role == policy.RoleClientAdmin {
		ownerID = caller.UserID
	}
	created, err := s.store.Create(ctx, a, ownerID, caller.UserID)
	if err != nil {
		return nil, err
	}
	s.logAsset(ctx, created.ID, caller.UserID, activity.ActionCreate, nil, map[string]any{
		"projectName": created.ProjectName,
		"assetName":   created.AssetName,
		"assetType":   created.AssetType,
	})
	return created, nil
}

// Get fetches an asset the caller may view.
func (s *Service) Get(ctx context.Context, caller policy.Identity, id int64) (*Asset, error) {
	a, err := s.store.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canTouch(caller, a) {
		return nil, ErrNotAuthorized
	}
	return a, nil
}

// Update patches an asset the caller may edit.
func (s *Service) Update(ctx context.Context, caller policy.Identity, id int64, in AssetInput) (*Asset, error) {
	a, err := s.store.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canTouch(caller, a) {
		return nil, ErrNotAuthorized
	}
	old := map[string]any{
		"projectName": a.ProjectName,
		"assetName":   a.AssetName,
		"environment": a.Environment,
	}
	applyInput(a, in)
	updated, err := s.store.Update(ctx, a)
	if err != nil {
		return nil, err
	}
	s.logAsset(ctx, id, caller.UserID, activity.ActionUpdate, old, map[string]any{
		"projectName": updated.ProjectName,
		"assetName":   updated.AssetName,
		"environment": updated.Environment,
	})
	return updated, nil
}

// Delete removes an asset the caller may edit.
func (s *Service) Delete(ctx context.Context, caller policy.Identity, id int64) error {
	a, err := s.store.ByID(ctx, id)
	if err != nil {
		return err
	}
	if !canTouch(caller, a) {
		return ErrNotAuthorized
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logAsset(ctx, id, caller.UserID, activity.ActionDelete, map[string]any{
		"projectName": a.ProjectName,
		"assetName":   a.AssetName,
	}, nil)
	return nil
}

// AssignTeamLeader hands the asset to a team leader. Admin level only.
func (s *Service) AssignTeamLeader(ctx context.Context, caller policy.Identity, assetID, leaderID int64) error {
	if !caller.Role.AtLeast(policy.RoleAdmin) {
		return ErrNotAuthorized
	}
	if err := s.store.AssignTeamLeader(ctx, assetID, leaderID, caller.UserID); err != nil {
		return err
	}
	s.logAsset(ctx, assetID, caller.UserID, activity.ActionAssign, nil, map[string]any{"teamLeaderId": leaderID})
	return nil
}

// UnassignTeamLeader clears the team-leader assignment. Admin level only.
func (s *Service) UnassignTeamLeader(ctx context.Context, caller policy.Identity, assetID int64) error {
	if !caller.Role.AtLeast(policy.RoleAdmin) {
		return ErrNotAuthorized
	}
	if err := s.store.UnassignTeamLeader(ctx, assetID); err != nil {
		return err
	}
	s.logAsset(ctx, assetID, caller.UserID, activity.ActionUnassign, nil, nil)
	return nil
}

// MyTasks lists the assets assigned to the team leader.
func (s *Service) MyTasks(ctx context.Context, caller policy.Identity) ([]Asset, error) {
	if caller.Role != policy.RoleTeamLeader {
		return nil, ErrNotAuthorized
	}
	return s.store.AssignedToLeader(ctx, caller.UserID)
}

// AssignTester hands the task to a tester. Team leaders only.
func (s *Service) AssignTester(ctx context.Context, caller policy.Identity, assetID, testerID int64) error {
	if caller.Role != policy.RoleTeamLeader {
		return ErrNotAuthorized
	}
	if err := s.store.AssignTester(ctx, assetID, testerID, caller.UserID); err != nil {
		return err
	}
	s.logAsset(ctx, assetID, caller.UserID, activity.ActionAssign, nil, map[string]any{"testerId": testerID})
	return nil
}

// UnassignTester clears the tester assignment. Team leaders only.
func (s *Service) UnassignTester(ctx context.Context, caller policy.Identity, assetID int64) error {
	if caller.Role != policy.RoleTeamLeader {
		return ErrNotAuthorized
	}
	if err := s.store.UnassignTester(ctx, assetID); err != nil {
		return err
	}
	s.logAsset(ctx, assetID, caller.UserID, activity.ActionUnassign, nil, nil)
	return nil
}

// MyAssignedTasks lists the assets assigned to the tester.
func (s *Service) MyAssignedTasks(ctx context.Context, caller policy.Identity) ([]Asset, error) {
	if caller.Role != policy.RoleTester {
		return nil, ErrNotAuthorized
	}
	return s.store.AssignedToTester(ctx, caller.UserID)
}

// AssignClientTeam shares the asset with a client team member. Client admins
// only.
func (s *Service) AssignClientTeam(ctx context.Context, caller policy.Identity, assetID, memberID int64) error {
	if caller.Role != policy.RoleClientAdmin {
		return ErrNotAuthorized
	}
	return s.store.UpsertClientAssignment(ctx, assetID, memberID, caller.UserID)
}

// UnassignClientTeam deactivates the client-team share. Client admins only.
func (s *Service) UnassignClientTeam(ctx context.Context, caller policy.Identity, assetID, memberID int64) error {
	if caller.Role != policy.RoleClientAdmin {
		return ErrNotAuthorized
	}
	return s.store.DeactivateClientAssignment(ctx, assetID, memberID)
}

// MyClientTeamAssets lists the assets shared with the client user.
func (s *Service) MyClientTeamAssets(ctx context.Context, caller policy.Identity) ([]ClientTeamAsset, error) {
	if caller.Role != policy.RoleClientUser {
		return nil, ErrNotAuthorized
	}
	return s.store.ClientAssetsFor(ctx, caller.UserID)
}

// ClientTeamAssignments lists the active shares on the asset. Client admins
// only.
func (s *Service) ClientTeamAssignments(ctx context.Context, caller policy.Identity, assetID int64) ([]ClientTeamAssignment, error) {
	if caller.Role != policy.RoleClientAdmin {
		return nil, ErrNotAuthorized
	}
	return s.store.ClientAssignmentsFor(ctx, assetID)
}

func canTouch(caller policy.Identity, a *Asset) bool {
	if caller.Role == policy.RoleAdmin || caller.Role == policy.RoleSuperadmin {
		return true
	}
	if a.ProjectOwner != nil && a.ProjectOwner.ID == caller.UserID {
		return true
	}
	if a.CreatedBy != nil && a.CreatedBy.ID == caller.UserID {
		return true
	}
	return false
}

func applyInput(a *Asset, in AssetInput) {
	setString(&a.ProjectName, in.ProjectName)
	setString(&a.ProjectDescription, in.ProjectDescription)
	setString(&a.AssetName, in.AssetName)
	setString(&a.AssetURL, in.AssetURL)
	setString(&a.AssetType, in.AssetType)
	setString(&a.Environment, in.Environment)
	setString(&a.AuthMethod, in.AuthMethod)
	setString(&a.ScanFrequency, in.ScanFrequency)
	setString(&a.PreferredWindow, in.PreferredWindow)
	setString(&a.ScopeInclusions, in.ScopeInclusions)
	setString(&a.ScopeExclusions, in.ScopeExclusions)
	setString(&a.PlanTier, in.PlanTier)
	if in.PrivateNetwork != nil {
		a.PrivateNetwork = *in.PrivateNetwork
	}
	if in.TechnologyStack != nil {
		a.TechnologyStack = in.TechnologyStack
	}
	if in.NotifyOn != nil {
		a.NotifyOn = in.NotifyOn
	}
	if in.NotificationEmails != nil {
		a.NotificationEmails = in.NotificationEmails
	}
	if in.Tags != nil {
		a.Tags = in.Tags
	}
	if in.SupportingDocs != nil {
		a.SupportingDocs = in.SupportingDocs
	}
	if in.TestsPerMonth != nil {
		a.TestsPerMonth = in.TestsPerMonth
	}
	if in.ContractExpiry != nil {
		a.ContractExpiry = in.ContractExpiry
	}
	if in.ProjectOwnerID != nil && *in.ProjectOwnerID != 0 {
		a.ProjectOwner = &UserRef{ID: *in.ProjectOwnerID}
	}
	ensureSlices(a)
}

func ensureSlices(a *Asset) {
	if a.TechnologyStack == nil {
		a.TechnologyStack = []string{}
	}
	if a.NotifyOn == nil {
		a.NotifyOn = []string{}
	}
	if a.NotificationEmails == nil {
		a.NotificationEmails = []string{}
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	if a.SupportingDocs == nil {
		a.SupportingDocs = []string{}
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func (s *Service) logAsset(ctx context.Context, assetID, userID int64, action string, old, next map[string]any) {
	if s.recorder == nil {
		return
	}
	s.recorder.LogAsset(ctx, activity.AssetEntry{
		AssetID:      assetID,
		UserID:       userID,
		ActivityType: activity.TypeAssetManagement,
		Action:       action,
		OldValues:    old,
		NewValues:    next,
	})
}
