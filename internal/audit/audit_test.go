package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pentora/pentora/internal/policy"

	_ "github.com/pentora/pentora/testing"
)

type memTrail struct {
	entries []Entry
}

func (m *memTrail) Insert(_ context.Context, e Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memTrail) List(_ context.Context, f Filters) ([]Entry, error) {
	out := []Entry{}
	for _, e := range m.entries {
		if f.Resource != "" && e.Resource != f.Resource {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.ScopeUserIDs != nil {
			keep := false
			for _, id := range f.ScopeUserIDs {
				if e.UserID != nil && *e.UserID == id {
					keep = true
					break
				}
			}
			if !keep {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}

type stubResolver struct {
	subs map[int64][]int64
}

func (s *stubResolver) SubordinateIDs(_ context.Context, userID int64) ([]int64, error) {
	return s.subs[userID], nil
}

func entryFor(userID int64, action, resource string) Entry {
	uid := userID
	return Entry{UserID: &uid, Action: action, Resource: resource}
}

func TestTrailScoping(t *testing.T) {
	trail := &memTrail{entries: []Entry{
		entryFor(2, "create", "users"),
		entryFor(3, "update", "assets"),
		entryFor(9, "delete", "reports"),
	}}
	svc := NewService(trail, &stubResolver{subs: map[int64][]int64{1: {2, 3}}})

	all, err := svc.Trail(context.Background(), policy.Identity{UserID: 99, Role: policy.RoleSuperadmin}, Filters{})
	if err != nil {
		t.Fatalf("superadmin trail: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("superadmin sees %d entries, want 3", len(all))
	}

	scoped, err := svc.Trail(context.Background(), policy.Identity{UserID: 1, Role: policy.RoleAdmin}, Filters{})
	if err != nil {
		t.Fatalf("admin trail: %v", err)
	}
	if len(scoped) != 2 {
		t.Fatalf("admin sees %d entries, want 2 subordinate entries", len(scoped))
	}

	// An admin with no subordinates falls back to their own entries.
	own, err := svc.Trail(context.Background(), policy.Identity{UserID: 9, Role: policy.RoleAdmin}, Filters{})
	if err != nil {
		t.Fatalf("lonely admin trail: %v", err)
	}
	if len(own) != 1 || own[0].Resource != "reports" {
		t.Fatalf("lonely admin sees %v, want only their own entry", own)
	}
}

func TestMiddlewareAuditsSuccessfulMutations(t *testing.T) {
	trail := &memTrail{}
	recorder := NewRecorder(nil, trail)

	var status int
	handler := Middleware(recorder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	do := func(method, path string, userID int64) {
		req := httptest.NewRequest(method, path, nil)
		if userID != 0 {
			req = req.WithContext(policy.ContextWithIdentity(req.Context(), policy.Identity{
				UserID: userID, Username: "u", Role: policy.RoleAdmin,
			}))
		}
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	status = http.StatusCreated
	do(http.MethodPost, "/api/assets", 7)
	status = http.StatusOK
	do(http.MethodGet, "/api/assets", 7) // reads skipped
	status = http.StatusForbidden
	do(http.MethodDelete, "/api/users/3", 7) // failures skipped
	status = http.StatusOK
	do(http.MethodPatch, "/api/users/3", 7)

	if len(trail.entries) != 2 {
		t.Fatalf("recorded %d entries, want 2", len(trail.entries))
	}
	first := trail.entries[0]
	if first.Resource != "assets" || first.Action != "create" {
		t.Fatalf("first entry = %s %s, want assets create", first.Resource, first.Action)
	}
	if first.UserID == nil || *first.UserID != 7 {
		t.Fatalf("first entry user = %v, want 7", first.UserID)
	}
	if trail.entries[1].Resource != "users" || trail.entries[1].Action != "update" {
		t.Fatalf("second entry = %s %s, want users update", trail.entries[1].Resource, trail.entries[1].Action)
	}
}
