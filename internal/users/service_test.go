package users_test

import (
	"context"
	"testing"

	"github.com/pentora/pentora/internal/activity"
	"github.com/pentora/pentora/internal/auth"
	"github.com/pentora/pentora/internal/policy"
	"github.com/pentora/pentora/internal/shared"
	"github.com/pentora/pentora/internal/users"
	_ "github.com/pentora/pentora/testing"
)

type memStore struct {
	nextID        int64
	users         map[int64]auth.UserDTO
	relationships map[int64][]int64 // creator -> created
	passwords     map[int64]string
	assignments   map[[2]int64]int64 // (assignedUser, assignee) -> assigner
}

func newMemStore() *memStore {
	return &memStore{
		nextID:        1,
		users:         map[int64]auth.UserDTO{},
		relationships: map[int64][]int64{},
		passwords:     map[int64]string{},
		assignments:   map[[2]int64]int64{},
	}
}

func (m *memStore) addUser(username string, role policy.Role) auth.UserDTO {
	dto := auth.UserDTO{ID: m.nextID, Username: username, Email: username + "@test.local", Role: string(role), RoleLabel: role.Label(), IsActive: true}
	m.users[dto.ID] = dto
	m.nextID++
	return dto
}

func (m *memStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) EmailExists(ctx context.Context, email string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateWithRelationship(ctx context.Context, creatorID int64, u auth.User, plainPassword string) (auth.UserDTO, error) {
	dto := m.addUser(u.Username, u.Role)
	dto.Email = u.Email
	dto.FirstName = u.FirstName
	dto.LastName = u.LastName
	m.users[dto.ID] = dto
	m.relationships[creatorID] = append(m.relationships[creatorID], dto.ID)
	m.passwords[dto.ID] = plainPassword
	return dto, nil
}

func (m *memStore) CreatedBy(ctx context.Context, creatorID int64) ([]users.CreatedUser, error) {
	created := make([]users.CreatedUser, 0)
	for _, id := range m.relationships[creatorID] {
		created = append(created, users.CreatedUser{UserDTO: m.users[id], PlainPassword: m.passwords[id]})
	}
	return created, nil
}

func (m *memStore) CreatedByWithRole(ctx context.Context, creatorID int64, role policy.Role) ([]users.CreatedUser, error) {
	all, _ := m.CreatedBy(ctx, creatorID)
	filtered := make([]users.CreatedUser, 0)
	for _, cu := range all {
		if cu.Role == string(role) && cu.IsActive {
			filtered = append(filtered, cu)
		}
	}
	return filtered, nil
}

func (m *memStore) IsCreator(ctx context.Context, creatorID, targetID int64) (bool, error) {
	for _, id := range m.relationships[creatorID] {
		if id == targetID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) AssignedTo(ctx context.Context, assigneeID int64) ([]users.AssignedUser, error) {
	assigned := make([]users.AssignedUser, 0)
	for key, assigner := range m.assignments {
		if key[1] == assigneeID {
			assigned = append(assigned, users.AssignedUser{UserDTO: m.users[key[0]], AssignerID: assigner})
		}
	}
	return assigned, nil
}

func (m *memStore) AssignmentsBy(ctx context.Context, assignerID int64) ([]users.Assignment, error) {
	assignments := make([]users.Assignment, 0)
	for key, assigner := range m.assignments {
		if assigner == assignerID {
			assignments = append(assignments, users.Assignment{AssignedUserID: key[0], AssigneeID: key[1], AssignedUser: m.users[key[0]]})
		}
	}
	return assignments, nil
}

func (m *memStore) UpsertAssignment(ctx context.Context, assignerID, assignedUserID, assigneeID int64) error {
	m.assignments[[2]int64{assignedUserID, assigneeID}] = assignerID
	return nil
}

func (m *memStore) DeleteAssignment(ctx context.Context, assignedUserID, assigneeID int64) error {
	delete(m.assignments, [2]int64{assignedUserID, assigneeID})
	return nil
}

func (m *memStore) DeleteUserCascade(ctx context.Context, userID int64) error {
	if _, ok := m.users[userID]; !ok {
		return shared.ErrNotFound
	}
	delete(m.users, userID)
	for creator, ids := range m.relationships {
		kept := ids[:0]
		for _, id := range ids {
			if id != userID {
				kept = append(kept, id)
			}
		}
		m.relationships[creator] = kept
	}
	delete(m.relationships, userID)
	for key := range m.assignments {
		if key[0] == userID || key[1] == userID {
			delete(m.assignments, key)
		}
	}
	return nil
}

func (m *memStore) All(ctx context.Context) ([]auth.UserDTO, error) {
	all := make([]auth.UserDTO, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, u)
	}
	return all, nil
}

func (m *memStore) ActiveByRole(ctx context.Context, role policy.Role) ([]auth.UserDTO, error) {
	selected := make([]auth.UserDTO, 0)
	for _, u := range m.users {
		if u.Role == string(role) && u.IsActive {
			selected = append(selected, u)
		}
	}
	return selected, nil
}

func (m *memStore) ByIDs(ctx context.Context, ids []int64) ([]auth.UserDTO, error) {
	selected := make([]auth.UserDTO, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			selected = append(selected, u)
		}
	}
	return selected, nil
}

func (m *memStore) ByID(ctx context.Context, id int64) (auth.UserDTO, error) {
	u, ok := m.users[id]
	if !ok {
		return auth.UserDTO{}, shared.ErrNotFound
	}
	return u, nil
}

func (m *memStore) Update(ctx context.Context, id int64, in users.UpdateUserInput) (auth.UserDTO, error) {
	u, ok := m.users[id]
	if !ok {
		return auth.UserDTO{}, shared.ErrNotFound
	}
	if in.FirstName != "" {
		u.FirstName = in.FirstName
	}
	if in.LastName != "" {
		u.LastName = in.LastName
	}
	if in.Email != "" {
		u.Email = in.Email
	}
	if in.Role != "" {
		u.Role = in.Role
	}
	m.users[id] = u
	return u, nil
}

func (m *memStore) SetActive(ctx context.Context, id int64, active bool) (auth.UserDTO, error) {
	u, ok := m.users[id]
	if !ok {
		return auth.UserDTO{}, shared.ErrNotFound
	}
	u.IsActive = active
	m.users[id] = u
	return u, nil
}

func (m *memStore) SubordinateIDs(ctx context.Context, userID int64) ([]int64, error) {
	seen := map[int64]bool{}
	ids := make([]int64, 0)
	for _, id := range m.relationships[userID] {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for key := range m.assignments {
		if key[1] == userID && !seen[key[0]] {
			seen[key[0]] = true
			ids = append(ids, key[0])
		}
	}
	return ids, nil
}

type recorderSpy struct {
	entries []activity.Entry
}

func (r *recorderSpy) Log(ctx context.Context, e activity.Entry) {
	r.entries = append(r.entries, e)
}

type revokerSpy struct {
	revoked []int64
}

func (r *revokerSpy) RevokeSessions(ctx context.Context, userID int64) error {
	r.revoked = append(r.revoked, userID)
	return nil
}

func TestCreateEnforcesRoleMatrix(t *testing.T) {
	store := newMemStore()
	admin := store.addUser("admin1", policy.RoleAdmin)
	svc := users.NewService(store, &recorderSpy{}, &revokerSpy{})

	caller := policy.Identity{UserID: admin.ID, Role: policy.RoleAdmin}
	in := users.CreateUserInput{Username: "lead1", Email: "lead1@test.local", Password: "password123", Role: "team-leader"}
	created, err := svc.Create(context.Background(), caller, in, "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.PlainPassword != "password123" {
		t.Fatalf("expected plain password echoed to creator")
	}

	in.Username, in.Email, in.Role = "admin2", "admin2@test.local", "admin"
	if _, err := svc.Create(context.Background(), caller, in, "", ""); err != users.ErrRoleNotAllowed {
		t.Fatalf("admin creating admin: expected ErrRoleNotAllowed, got %v", err)
	}

	leadCaller := policy.Identity{UserID: created.ID, Role: policy.RoleTeamLeader}
	in = users.CreateUserInput{Username: "tester9", Email: "tester9@test.local", Password: "password123", Role: "tester"}
	if _, err := svc.Create(context.Background(), leadCaller, in, "", ""); err != nil {
		t.Fatalf("team leader creating tester: %v", err)
	}
}

func TestCreateRejectsDuplicates(t *testing.T) {
	store := newMemStore()
	admin := store.addUser("admin1", policy.RoleAdmin)
	svc := users.NewService(store, nil, nil)

	caller := policy.Identity{UserID: admin.ID, Role: policy.RoleAdmin}
	in := users.CreateUserInput{Username: "admin1", Email: "fresh@test.local", Password: "password123", Role: "tester"}
	if _, err := svc.Create(context.Background(), caller, in, "", ""); err != users.ErrUsernameTaken {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	in = users.CreateUserInput{Username: "fresh", Email: "admin1@test.local", Password: "password123", Role: "tester"}
	if _, err := svc.Create(context.Background(), caller, in, "", ""); err != users.ErrEmailTaken {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestHierarchyNestsCreatedUsers(t *testing.T) {
	store := newMemStore()
	admin := store.addUser("admin1", policy.RoleAdmin)
	svc := users.NewService(store, nil, nil)

	caller := policy.Identity{UserID: admin.ID, Role: policy.RoleAdmin}
	lead, err := svc.Create(context.Background(), caller, users.CreateUserInput{Username: "lead1", Email: "lead1@test.local", Password: "password123", Role: "team-leader"}, "", "")
	if err != nil {
		t.Fatalf("create lead: %v", err)
	}
	leadCaller := policy.Identity{UserID: lead.ID, Role: policy.RoleTeamLeader}
	if _, err := svc.Create(context.Background(), leadCaller, users.CreateUserInput{Username: "tester1", Email: "t1@test.local", Password: "password123", Role: "tester"}, "", ""); err != nil {
		t.Fatalf("create tester: %v", err)
	}

	tree, err := svc.Hierarchy(context.Background(), admin.ID)
	if err != nil {
		t.Fatalf("hierarchy: %v", err)
	}
	if len(tree) != 1 || tree[0].Username != "lead1" {
		t.Fatalf("unexpected root level: %+v", tree)
	}
	if len(tree[0].Children) != 1 || tree[0].Children[0].Username != "tester1" {
		t.Fatalf("unexpected children: %+v", tree[0].Children)
	}
}

func TestAssignRequiresCreatorOfBothSides(t *testing.T) {
	store := newMemStore()
	admin := store.addUser("admin1", policy.RoleAdmin)
	outsider := store.addUser("outsider", policy.RoleTester)
	svc := users.NewService(store, nil, nil)

	caller := policy.Identity{UserID: admin.ID, Role: policy.RoleAdmin}
	lead, _ := svc.Create(context.Background(), caller, users.CreateUserInput{Username: "lead1", Email: "lead1@test.local", Password: "password123", Role: "team-leader"}, "", "")
	tester, _ := svc.Create(context.Background(), caller, users.CreateUserInput{Username: "tester1", Email: "t1@test.local", Password: "password123", Role: "tester"}, "", "")

	if err := svc.Assign(context.Background(), caller, tester.ID, lead.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := svc.Assign(context.Background(), caller, outsider.ID, lead.ID); err != users.ErrInvalidAssignment {
		t.Fatalf("expected ErrInvalidAssignment, got %v", err)
	}
}

func TestDeleteOnlyByCreator(t *testing.T) {
	store := newMemStore()
	admin := store.addUser("admin1", policy.RoleAdmin)
	other := store.addUser("admin2", policy.RoleAdmin)
	revoker := &revokerSpy{}
	svc := users.NewService(store, nil, revoker)

	caller := policy.Identity{UserID: admin.ID, Role: policy.RoleAdmin}
	tester, _ := svc.Create(context.Background(), caller, users.CreateUserInput{Username: "tester1", Email: "t1@test.local", Password: "password123", Role: "tester"}, "", "")

	otherCaller := policy.Identity{UserID: other.ID, Role: policy.RoleAdmin}
	if err := svc.Delete(context.Background(), otherCaller, tester.ID); err != users.ErrNotCreator {
		t.Fatalf("expected ErrNotCreator, got %v", err)
	}
	if err := svc.Delete(context.Background(), caller, tester.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(revoker.revoked) != 1 || revoker.revoked[0] != tester.ID {
		t.Fatalf("expected sessions revoked for deleted user")
	}
	if _, err := store.ByID(context.Background(), tester.ID); err != shared.ErrNotFound {
		t.Fatalf("expected user gone, got %v", err)
	}
}

func TestRevokeAccessAdminLimitedToCreatedUsers(t *testing.T) {
	store := newMemStore()
	admin := store.addUser("admin1", policy.RoleAdmin)
	stranger := store.addUser("stranger", policy.RoleTester)
	revoker := &revokerSpy{}
	recorder := &recorderSpy{}
	svc := users.NewService(store, recorder, revoker)

	caller := policy.Identity{UserID: admin.ID, Role: policy.RoleAdmin}
	tester, _ := svc.Create(context.Background(), caller, users.CreateUserInput{Username: "tester1", Email: "t1@test.local", Password: "password123", Role: "tester"}, "", "")

	if err := svc.RevokeAccess(context.Background(), caller, stranger.ID, "", ""); err != users.ErrNotCreator {
		t.Fatalf("expected ErrNotCreator for stranger, got %v", err)
	}
	if err := svc.RevokeAccess(context.Background(), caller, tester.ID, "", ""); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	got, _ := store.ByID(context.Background(), tester.ID)
	if got.IsActive {
		t.Fatalf("expected account deactivated")
	}
	if len(revoker.revoked) == 0 {
		t.Fatalf("expected live sessions revoked")
	}

	super := policy.Identity{UserID: 999, Role: policy.RoleSuperadmin}
	if err := svc.RestoreAccess(context.Background(), super, tester.ID, "", ""); err != nil {
		t.Fatalf("superadmin restore: %v", err)
	}
	got, _ = store.ByID(context.Background(), tester.ID)
	if !got.IsActive {
		t.Fatalf("expected account restored")
	}
}

func TestSubordinateIDsCombinesCreatedAndAssigned(t *testing.T) {
	store := newMemStore()
	admin := store.addUser("admin1", policy.RoleAdmin)
	svc := users.NewService(store, nil, nil)

	caller := policy.Identity{UserID: admin.ID, Role: policy.RoleAdmin}
	lead, _ := svc.Create(context.Background(), caller, users.CreateUserInput{Username: "lead1", Email: "l1@test.local", Password: "password123", Role: "team-leader"}, "", "")
	tester, _ := svc.Create(context.Background(), caller, users.CreateUserInput{Username: "tester1", Email: "t1@test.local", Password: "password123", Role: "tester"}, "", "")
	if err := svc.Assign(context.Background(), caller, tester.ID, lead.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	ids, err := svc.SubordinateIDs(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("subordinates: %v", err)
	}
	if len(ids) != 1 || ids[0] != tester.ID {
		t.Fatalf("expected assigned tester as subordinate, got %v", ids)
	}
}
