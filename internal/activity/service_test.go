package activity_test

import (
	"context"
	"testing"
	"time"

	"github.com/pentora/pentora/internal/activity"
	"github.com/pentora/pentora/internal/policy"
	_ "github.com/pentora/pentora/testing"
)

type stubStore struct {
	lastFilter activity.Filter
	lastScope  []int64
	entries    []activity.Entry
	sessions   []activity.Session
	counts     []activity.TypeCount
	active     int64
}

func (s *stubStore) ListEntries(ctx context.Context, f activity.Filter) ([]activity.Entry, error) {
	s.lastFilter = f
	return s.entries, nil
}

func (s *stubStore) ListSessions(ctx context.Context, f activity.Filter) ([]activity.Session, error) {
	s.lastFilter = f
	return s.sessions, nil
}

func (s *stubStore) ListAssetEntries(ctx context.Context, f activity.Filter) ([]activity.AssetEntry, error) {
	s.lastFilter = f
	return nil, nil
}

func (s *stubStore) CountByType(ctx context.Context, f activity.Filter) ([]activity.TypeCount, error) {
	s.lastFilter = f
	return s.counts, nil
}

func (s *stubStore) CountActiveSessions(ctx context.Context, scope []int64) (int64, error) {
	s.lastScope = scope
	return s.active, nil
}

type stubResolver struct {
	ids map[int64][]int64
}

func (s *stubResolver) SubordinateIDs(ctx context.Context, userID int64) ([]int64, error) {
	return s.ids[userID], nil
}

func TestLogsSuperadminUnscoped(t *testing.T) {
	store := &stubStore{}
	svc := activity.NewService(store, &stubResolver{})

	viewer := policy.Identity{UserID: 1, Role: policy.RoleSuperadmin}
	if _, err := svc.Logs(context.Background(), viewer, activity.Filter{}); err != nil {
		t.Fatalf("logs: %v", err)
	}
	if store.lastFilter.ScopeUserIDs != nil {
		t.Fatalf("superadmin must not be scoped, got %v", store.lastFilter.ScopeUserIDs)
	}
}

func TestLogsAdminScopedToSubordinates(t *testing.T) {
	store := &stubStore{}
	svc := activity.NewService(store, &stubResolver{ids: map[int64][]int64{7: {21, 22}}})

	viewer := policy.Identity{UserID: 7, Role: policy.RoleAdmin}
	if _, err := svc.Logs(context.Background(), viewer, activity.Filter{}); err != nil {
		t.Fatalf("logs: %v", err)
	}
	got := store.lastFilter.ScopeUserIDs
	if len(got) != 2 || got[0] != 21 || got[1] != 22 {
		t.Fatalf("expected subordinate scope, got %v", got)
	}
}

func TestLogsWithoutSubordinatesFallsBackToSelf(t *testing.T) {
	store := &stubStore{}
	svc := activity.NewService(store, &stubResolver{})

	viewer := policy.Identity{UserID: 9, Role: policy.RoleAdmin}
	if _, err := svc.Sessions(context.Background(), viewer, activity.Filter{}); err != nil {
		t.Fatalf("sessions: %v", err)
	}
	got := store.lastFilter.ScopeUserIDs
	if len(got) != 1 || got[0] != 9 {
		t.Fatalf("expected self scope, got %v", got)
	}
}

func TestSummarizeDefaultsToLastDay(t *testing.T) {
	store := &stubStore{
		counts: []activity.TypeCount{{ActivityType: activity.TypeAuth, Count: 3}},
		active: 2,
	}
	svc := activity.NewService(store, &stubResolver{})

	viewer := policy.Identity{UserID: 1, Role: policy.RoleSuperadmin}
	summary, err := svc.Summarize(context.Background(), viewer, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	window := summary.DateRange.End.Sub(summary.DateRange.Start)
	if window != 24*time.Hour {
		t.Fatalf("expected 24h window, got %s", window)
	}
	if summary.ActiveSessions != 2 {
		t.Fatalf("expected 2 active sessions, got %d", summary.ActiveSessions)
	}
	if len(summary.ActivityCounts) != 1 || summary.ActivityCounts[0].Count != 3 {
		t.Fatalf("unexpected counts: %v", summary.ActivityCounts)
	}
}
