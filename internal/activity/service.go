package activity

import (
	"context"
	"time"

	"github.com/pentora/pentora/internal/policy"
)

// ListStore is the query surface the service reads through.
type ListStore interface {
	ListEntries(ctx context.Context, f Filter) ([]Entry, error)
	ListSessions(ctx context.Context, f Filter) ([]Session, error)
	ListAssetEntries(ctx context.Context, f Filter) ([]AssetEntry, error)
	CountByType(ctx context.Context, f Filter) ([]TypeCount, error)
	CountActiveSessions(ctx context.Context, scope []int64) (int64, error)
}

// SubordinateResolver reports the users a viewer supervises, combining the
// users they created and the users assigned to them.
type SubordinateResolver interface {
	SubordinateIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Service applies hierarchy scoping to activity listings. Superadmins see
// everything; everyone else sees their subordinates, or only themselves when
// they have none.
type Service struct {
	store        ListStore
	subordinates SubordinateResolver
}

// NewService constructs a Service.
func NewService(store ListStore, subordinates SubordinateResolver) *Service {
	return &Service{store: store, subordinates: subordinates}
}

func (s *Service) scopeFor(ctx context.Context, viewer policy.Identity) ([]int64, error) {
	if viewer.Role == policy.RoleSuperadmin {
		return nil, nil
	}
	ids, err := s.subordinates.SubordinateIDs(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []int64{viewer.UserID}, nil
	}
	return ids, nil
}

// Logs lists activity entries visible to the viewer.
func (s *Service) Logs(ctx context.Context, viewer policy.Identity, f Filter) ([]Entry, error) {
	scope, err := s.scopeFor(ctx, viewer)
	if err != nil {
		return nil, err
	}
	f.ScopeUserIDs = scope
	return s.store.ListEntries(ctx, f)
}

// Sessions lists user sessions visible to the viewer.
func (s *Service) Sessions(ctx context.Context, viewer policy.Identity, f Filter) ([]Session, error) {
	scope, err := s.scopeFor(ctx, viewer)
	if err != nil {
		return nil, err
	}
	f.ScopeUserIDs = scope
	return s.store.ListSessions(ctx, f)
}

// AssetLogs lists asset activity entries visible to the viewer.
func (s *Service) AssetLogs(ctx context.Context, viewer policy.Identity, f Filter) ([]AssetEntry, error) {
	scope, err := s.scopeFor(ctx, viewer)
	if err != nil {
		return nil, err
	}
	f.ScopeUserIDs = scope
	return s.store.ListAssetEntries(ctx, f)
}

// Summarize aggregates the last day of activity for the viewer. Explicit
// bounds override the default 24 hour window.
func (s *Service) Summarize(ctx context.Context, viewer policy.Identity, start, end time.Time) (*Summary, error) {
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if start.IsZero() {
		start = end.Add(-24 * time.Hour)
	}
	scope, err := s.scopeFor(ctx, viewer)
	if err != nil {
		return nil, err
	}

	window := Filter{Start: start, End: end, ScopeUserIDs: scope}
	counts, err := s.store.CountByType(ctx, window)
	if err != nil {
		return nil, err
	}
	active, err := s.store.CountActiveSessions(ctx, scope)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.ListEntries(ctx, Filter{Start: start, End: end, ScopeUserIDs: scope, Limit: 10})
	if err != nil {
		return nil, err
	}
	return &Summary{
		ActivityCounts:   counts,
		ActiveSessions:   active,
		RecentActivities: recent,
		DateRange:        DateRange{Start: start, End: end},
	}, nil
}
