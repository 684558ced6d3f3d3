package audit

import (
	"context"

	"github.com/pentora/pentora/internal/policy"
)

// ListStore is the slice of Repository the service needs.
type ListStore interface {
	List(ctx context.Context, f Filters) ([]Entry, error)
}

// SubordinateResolver reports which user IDs fall under a supervisor.
type SubordinateResolver interface {
	SubordinateIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Service scopes audit trail reads to the viewer's span of control.
type Service struct {
	store    ListStore
	resolver SubordinateResolver
}

// NewService constructs a Service.
func NewService(store ListStore, resolver SubordinateResolver) *Service {
	return &Service{store: store, resolver: resolver}
}

// Trail lists audit entries. Superadmins see everything; other viewers see
// their subordinates, or only themselves when they have none.
func (s *Service) Trail(ctx context.Context, viewer policy.Identity, f Filters) ([]Entry, error) {
	if viewer.Role != policy.RoleSuperadmin {
		ids, err := s.resolver.SubordinateIDs(ctx, viewer.UserID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			ids = []int64{viewer.UserID}
		}
		f.ScopeUserIDs = ids
	}
	return s.store.List(ctx, f)
}
