package assets

import (
	"context"
	"testing"

	"github.com/pentora/pentora/internal/activity"
	"github.com/pentora/pentora/internal/policy"
	"github.com/pentora/pentora/internal/shared"

	_ "github.com/pentora/pentora/testing"
)

type memStore struct {
	nextID      int64
	assets      map[int64]*Asset
	assignments map[int64][]ClientTeamAssignment
}

func newMemStore() *memStore {
	return &memStore{
		nextID:      1,
		assets:      make(map[int64]*Asset),
		assignments: make(map[int64][]ClientTeamAssignment),
	}
}

func (m *memStore) Create(_ context.Context, a Asset, ownerID, createdByID int64) (*Asset, error) {
	a.ID = m.nextID
	m.nextID++
	if ownerID != 0 {
		a.ProjectOwner = &UserRef{ID: ownerID}
	}
	a.CreatedBy = &UserRef{ID: createdByID}
	ensureSlices(&a)
	m.assets[a.ID] = &a
	out := a
	return &out, nil
}

func (m *memStore) ByID(_ context.Context, id int64) (*Asset, error) {
	a, ok := m.assets[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (m *memStore) All(_ context.Context) ([]Asset, error) {
	out := make([]Asset, 0, len(m.assets))
	for _, a := range m.assets {
		out = append(out, *a)
	}
	return out, nil
}

func (m *memStore) OwnedOrCreatedBy(_ context.Context, userID int64) ([]Asset, error) {
	var out []Asset
	for _, a := range m.assets {
		owned := a.ProjectOwner != nil && a.ProjectOwner.ID == userID
		created := a.CreatedBy != nil && a.CreatedBy.ID == userID
		if owned || created {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) OwnedBy(_ context.Context, userID int64) ([]Asset, error) {
	var out []Asset
	for _, a := range m.assets {
		if a.ProjectOwner != nil && a.ProjectOwner.ID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) AssignedToLeader(_ context.Context, leaderID int64) ([]Asset, error) {
	var out []Asset
	for _, a := range m.assets {
		if a.AssignedTo != nil && a.AssignedTo.ID == leaderID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) AssignedToTester(_ context.Context, testerID int64) ([]Asset, error) {
	var out []Asset
	for _, a := range m.assets {
		if a.AssignedTester != nil && a.AssignedTester.ID == testerID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, a *Asset) (*Asset, error) {
	if _, ok := m.assets[a.ID]; !ok {
		return nil, shared.ErrNotFound
	}
	cp := *a
	m.assets[a.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	if _, ok := m.assets[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.assets, id)
	return nil
}

func (m *memStore) AssignTeamLeader(_ context.Context, assetID, leaderID, byID int64) error {
	a, ok := m.assets[assetID]
	if !ok {
		return shared.ErrNotFound
	}
	a.AssignedTo = &UserRef{ID: leaderID}
	a.AssignedBy = &UserRef{ID: byID}
	return nil
}

func (m *memStore) UnassignTeamLeader(_ context.Context, assetID int64) error {
	a, ok := m.assets[assetID]
	if !ok {
		return shared.ErrNotFound
	}
	a.AssignedTo = nil
	a.AssignedBy = nil
	return nil
}

func (m *memStore) AssignTester(_ context.Context, assetID, testerID, byID int64) error {
	a, ok := m.assets[assetID]
	if !ok {
		return shared.ErrNotFound
	}
	a.AssignedTester = &UserRef{ID: testerID}
	a.AssignedTesterBy = &UserRef{ID: byID}
	return nil
}

func (m *memStore) UnassignTester(_ context.Context, assetID int64) error {
	a, ok := m.assets[assetID]
	if !ok {
		return shared.ErrNotFound
	}
	a.AssignedTester = nil
	a.AssignedTesterBy = nil
	return nil
}

func (m *memStore) UpsertClientAssignment(_ context.Context, assetID, memberID, byID int64) error {
	for i, asg := range m.assignments[assetID] {
		if asg.ClientTeamMemberID == memberID {
			m.assignments[assetID][i].Status = "Active"
			m.assignments[assetID][i].AssignedByID = byID
			return nil
		}
	}
	m.assignments[assetID] = append(m.assignments[assetID], ClientTeamAssignment{
		ID:                 int64(len(m.assignments[assetID]) + 1),
		AssetID:            assetID,
		ClientTeamMemberID: memberID,
		AssignedByID:       byID,
		Status:             "Active",
	})
	return nil
}

func (m *memStore) DeactivateClientAssignment(_ context.Context, assetID, memberID int64) error {
	for i, asg := range m.assignments[assetID] {
		if asg.ClientTeamMemberID == memberID {
			m.assignments[assetID][i].Status = "Inactive"
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *memStore) ClientAssetsFor(_ context.Context, memberID int64) ([]ClientTeamAsset, error) {
	var out []ClientTeamAsset
	for assetID, asgs := range m.assignments {
		for _, asg := range asgs {
			if asg.ClientTeamMemberID != memberID || asg.Status != "Active" {
				continue
			}
			a, ok := m.assets[assetID]
			if !ok {
				continue
			}
			item := ClientTeamAsset{Asset: *a}
			item.Assignment.ID = asg.ID
			item.Assignment.Status = asg.Status
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memStore) ClientAssignmentsFor(_ context.Context, assetID int64) ([]ClientTeamAssignment, error) {
	var out []ClientTeamAssignment
	for _, asg := range m.assignments[assetID] {
		if asg.Status == "Active" {
			out = append(out, asg)
		}
	}
	return out, nil
}

type assetRecorderSpy struct {
	entries []activity.AssetEntry
}

func (r *assetRecorderSpy) LogAsset(_ context.Context, e activity.AssetEntry) {
	r.entries = append(r.entries, e)
}

func ident(id int64, role policy.Role) policy.Identity {
	return policy.Identity{UserID: id, Username: "u", Role: role}
}

func str(s string) *string { return &s }

func seedAsset(t *testing.T, svc *Service, caller policy.Identity, name string) *Asset {
	t.Helper()
	a, err := svc.Create(context.Background(), caller, AssetInput{
		ProjectName: str(name),
		AssetName:   str(name),
		AssetURL:    str("https://" + name + ".example.com"),
		AssetType:   str("web-app"),
	})
	if err != nil {
		t.Fatalf("seed asset: %v", err)
	}
	return a
}

func TestListScopedByRole(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil)
	admin := ident(1, policy.RoleAdmin)
	clientA := ident(10, policy.RoleClientAdmin)
	clientB := ident(11, policy.RoleClientAdmin)

	seedAsset(t, svc, admin, "internal-portal")
	seedAsset(t, svc, clientA, "client-a-shop")

	all, err := svc.List(context.Background(), admin)
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("admin sees %d assets, want 2", len(all))
	}

	mine, err := svc.List(context.Background(), clientA)
	if err != nil {
		t.Fatalf("client list: %v", err)
	}
	if len(mine) != 1 || mine[0].ProjectName != "client-a-shop" {
		t.Fatalf("client A sees %v, want only their asset", mine)
	}

	other, err := svc.List(context.Background(), clientB)
	if err != nil {
		t.Fatalf("client B list: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("client B sees %d assets, want 0", len(other))
	}

	if _, err := svc.List(context.Background(), ident(20, policy.RoleTester)); err != ErrNotAuthorized {
		t.Fatalf("tester list error = %v, want ErrNotAuthorized", err)
	}
}

func TestClientAdminBecomesOwnerOnCreate(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil)
	clientAdmin := ident(10, policy.RoleClientAdmin)

	owner := int64(99)
	a, err := svc.Create(context.Background(), clientAdmin, AssetInput{
		ProjectName:    str("shop"),
		AssetName:      str("shop"),
		AssetURL:       str("https://shop.example.com"),
		AssetType:      str("web-app"),
		ProjectOwnerID: &owner,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.ProjectOwner == nil || a.ProjectOwner.ID != clientAdmin.UserID {
		t.Fatalf("owner = %v, want the creating client admin", a.ProjectOwner)
	}
}

func TestUpdateRequiresOwnershipOrAdmin(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil)
	clientA := ident(10, policy.RoleClientAdmin)
	a := seedAsset(t, svc, clientA, "shop")

	_, err := svc.Update(context.Background(), ident(11, policy.RoleClientAdmin), a.ID, AssetInput{
		ProjectName: str("hijacked"),
	})
	if err != ErrNotAuthorized {
		t.Fatalf("stranger update error = %v, want ErrNotAuthorized", err)
	}

	updated, err := svc.Update(context.Background(), ident(1, policy.RoleAdmin), a.ID, AssetInput{
		Environment: str("prod"),
	})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.Environment != "prod" {
		t.Fatalf("environment = %q, want prod", updated.Environment)
	}
	if updated.ProjectName != "shop" {
		t.Fatalf("partial update clobbered projectName: %q", updated.ProjectName)
	}
}

func TestTeamLeaderTaskFlow(t *testing.T) {
	store := newMemStore()
	rec := &assetRecorderSpy{}
	svc := NewService(store, rec)
	admin := ident(1, policy.RoleAdmin)
	leader := ident(5, policy.RoleTeamLeader)
	tester := ident(6, policy.RoleTester)
	a := seedAsset(t, svc, admin, "api-gw")

	if err := svc.AssignTeamLeader(context.Background(), leader, a.ID, leader.UserID); err != ErrNotAuthorized {
		t.Fatalf("leader self-assign error = %v, want ErrNotAuthorized", err)
	}
	if err := svc.AssignTeamLeader(context.Background(), admin, a.ID, leader.UserID); err != nil {
		t.Fatalf("assign leader: %v", err)
	}

	tasks, err := svc.MyTasks(context.Background(), leader)
	if err != nil {
		t.Fatalf("my tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != a.ID {
		t.Fatalf("leader tasks = %v, want the assigned asset", tasks)
	}

	if err := svc.AssignTester(context.Background(), admin, a.ID, tester.UserID); err != ErrNotAuthorized {
		t.Fatalf("admin tester-assign error = %v, want ErrNotAuthorized", err)
	}
	if err := svc.AssignTester(context.Background(), leader, a.ID, tester.UserID); err != nil {
		t.Fatalf("assign tester: %v", err)
	}

	assigned, err := svc.MyAssignedTasks(context.Background(), tester)
	if err != nil {
		t.Fatalf("assigned tasks: %v", err)
	}
	if len(assigned) != 1 || assigned[0].ID != a.ID {
		t.Fatalf("tester tasks = %v, want the assigned asset", assigned)
	}

	if len(rec.entries) < 3 {
		t.Fatalf("recorded %d asset activities, want at least 3", len(rec.entries))
	}
}

func TestClientTeamAssignmentLifecycle(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil)
	clientAdmin := ident(10, policy.RoleClientAdmin)
	member := ident(20, policy.RoleClientUser)
	a := seedAsset(t, svc, clientAdmin, "shop")

	if err := svc.AssignClientTeam(context.Background(), member, a.ID, member.UserID); err != ErrNotAuthorized {
		t.Fatalf("member self-assign error = %v, want ErrNotAuthorized", err)
	}
	if err := svc.AssignClientTeam(context.Background(), clientAdmin, a.ID, member.UserID); err != nil {
		t.Fatalf("assign client team: %v", err)
	}

	sharedAssets, err := svc.MyClientTeamAssets(context.Background(), member)
	if err != nil {
		t.Fatalf("client team assets: %v", err)
	}
	if len(sharedAssets) != 1 || sharedAssets[0].ID != a.ID {
		t.Fatalf("shared assets = %v, want the assigned asset", sharedAssets)
	}

	if err := svc.UnassignClientTeam(context.Background(), clientAdmin, a.ID, member.UserID); err != nil {
		t.Fatalf("unassign client team: %v", err)
	}
	sharedAssets, err = svc.MyClientTeamAssets(context.Background(), member)
	if err != nil {
		t.Fatalf("client team assets after unassign: %v", err)
	}
	if len(sharedAssets) != 0 {
		t.Fatalf("shared assets after unassign = %v, want none", sharedAssets)
	}
}

func TestValidateInputEnums(t *testing.T) {
	base := AssetInput{
		ProjectName: str("p"),
		AssetName:   str("a"),
		AssetURL:    str("https://a.example.com"),
		AssetType:   str("web-app"),
	}
	if err := validateInput(base, true); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	bad := base
	bad.AssetType = str("mainframe")
	if err := validateInput(bad, true); err == nil {
		t.Fatal("unknown assetType accepted")
	}

	if err := validateInput(AssetInput{Environment: str("qa")}, false); err == nil {
		t.Fatal("unknown environment accepted on update")
	}
	if err := validateInput(AssetInput{}, true); err == nil {
		t.Fatal("empty create input accepted")
	}
}
