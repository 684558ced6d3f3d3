package dashboard

import (
	"context"
	"time"

	"github.com/pentora/pentora/internal/policy"
)

// Store is the persistence surface the service depends on.
type Store interface {
	TotalUsers(ctx context.Context) (int, error)
	UsersByRole(ctx context.Context) (map[string]int, error)
	ActiveUsers(ctx context.Context, since time.Time, scope []int64) (int, error)
	AssetCounts(ctx context.Context) (total, pending int, err error)
	ReportCounts(ctx context.Context) (total, drafts, critical int, err error)
	TesterReportCounts(ctx context.Context, testerID int64) (total, pentests, critical int, err error)
	HealthScore(ctx context.Context) (int, error)
	LeaderTaskCounts(ctx context.Context, leaderID int64) (TaskCounts, error)
	TesterTaskCounts(ctx context.Context, testerID int64) (TaskCounts, error)
	TesterTaskDetails(ctx context.Context, testerID int64) ([]TaskDetail, error)
	ClientAssetCounts(ctx context.Context, memberID int64) (TaskCounts, int, error)
	ClientAssetDetails(ctx context.Context, memberID int64) ([]TaskDetail, error)
	RecentActivityFeed(ctx context.Context, scope []int64, limit int) ([]RecentActivity, error)
	TeamMembers(ctx context.Context, ids []int64) ([]TeamMember, error)
}

// SubordinateResolver reports which user IDs fall under a supervisor.
type SubordinateResolver interface {
	SubordinateIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Service assembles the role dashboards.
type Service struct {
	store    Store
	resolver SubordinateResolver
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, resolver SubordinateResolver) *Service {
	return &Service{store: store, resolver: resolver, now: time.Now}
}

func (s *Service) activeSince() time.Time {
	return s.now().Add(-24 * time.Hour)
}

// Superadmin builds the platform-wide dashboard.
func (s *Service) Superadmin(ctx context.Context) (map[string]any, error) {
	totalUsers, err := s.store.TotalUsers(ctx)
	if err != nil {
		return nil, err
	}
	usersByRole, err := s.store.UsersByRole(ctx)
	if err != nil {
		return nil, err
	}
	activeUsers, err := s.store.ActiveUsers(ctx, s.activeSince(), nil)
	if err != nil {
		return nil, err
	}
	totalAssets, pendingTasks, err := s.store.AssetCounts(ctx)
	if err != nil {
		return nil, err
	}
	totalReports, pendingReports, securityAlerts, err := s.store.ReportCounts(ctx)
	if err != nil {
		return nil, err
	}
	healthScore, err := s.store.HealthScore(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.RecentActivityFeed(ctx, nil, 10)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"totalUsers":        totalUsers,
		"activeUsers":       activeUsers,
		"totalAssets":       totalAssets,
		"pendingTasks":      pendingTasks,
		"totalReports":      totalReports,
		"pendingReports":    pendingReports,
		"securityAlerts":    securityAlerts,
		"systemHealthScore": healthScore,
		"usersByRole":       usersByRole,
		"recentActivity":    recent,
	}, nil
}

// Admin builds the dashboard scoped to the admin's team.
func (s *Service) Admin(ctx context.Context, viewer policy.Identity) (map[string]any, error) {
	teamIDs, err := s.resolver.SubordinateIDs(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}
	if teamIDs == nil {
		teamIDs = []int64{}
	}
	activeUsers, err := s.store.ActiveUsers(ctx, s.activeSince(), teamIDs)
	if err != nil {
		return nil, err
	}
	totalAssets, pendingTasks, err := s.store.AssetCounts(ctx)
	if err != nil {
		return nil, err
	}
	totalReports, _, _, err := s.store.ReportCounts(ctx)
	if err != nil {
		return nil, err
	}
	healthScore, err := s.store.HealthScore(ctx)
	if err != nil {
		return nil, err
	}
	members, err := s.store.TeamMembers(ctx, teamIDs)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.RecentActivityFeed(ctx, teamIDs, 10)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"totalUsers":        len(members),
		"activeUsers":       activeUsers,
		"totalAssets":       totalAssets,
		"pendingTasks":      pendingTasks,
		"totalReports":      totalReports,
		"teamMembersCount":  len(members),
		"systemHealthScore": healthScore,
		"recentActivity":    recent,
		"teamMembers":       members,
	}, nil
}

// TeamLeader builds the dashboard around the leader's tasks and team.
func (s *Service) TeamLeader(ctx context.Context, viewer policy.Identity) (map[string]any, error) {
	teamIDs, err := s.resolver.SubordinateIDs(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}
	if teamIDs == nil {
		teamIDs = []int64{}
	}
	tasks, err := s.store.LeaderTaskCounts(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}
	totalReports, _, _, err := s.store.ReportCounts(ctx)
	if err != nil {
		return nil, err
	}
	activeMembers, err := s.store.ActiveUsers(ctx, s.activeSince(), teamIDs)
	if err != nil {
		return nil, err
	}
	members, err := s.store.TeamMembers(ctx, teamIDs)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.RecentActivityFeed(ctx, teamIDs, 10)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"teamSize":          len(members),
		"activeTeamMembers": activeMembers,
		"assignedTasks":     tasks.Assigned,
		"completedTasks":    tasks.Completed,
		"pendingTasks":      tasks.Pending,
		"totalReports":      totalReports,
		"recentActivity":    recent,
		"teamMembers":       members,
	}, nil
}

// Tester builds the dashboard around the tester's own work.
func (s *Service) Tester(ctx context.Context, viewer policy.Identity) (map[string]any, error) {
	tasks, err := s.store.TesterTaskCounts(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}
	totalReports, pentests, critical, err := s.store.TesterReportCounts(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}
	details, err := s.store.TesterTaskDetails(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.RecentActivityFeed(ctx, []int64{viewer.UserID}, 10)
	if err != nil {
		return nil, err
	}
	coverage := 0
	if tasks.Assigned > 0 {
		coverage = int(float64(tasks.Completed)/float64(tasks.Assigned)*100 + 0.5)
	}
	return map[string]any{
		"assignedTasks":        tasks.Assigned,
		"completedTasks":       tasks.Completed,
		"pendingTasks":         tasks.Pending,
		"totalReports":         totalReports,
		"testCasesRun":         pentests,
		"bugsFound":            critical,
		"testCoverage":         coverage,
		"recentActivity":       recent,
		"assignedTasksDetails": details,
	}, nil
}

// ClientUser builds the dashboard around assets shared with the member.
func (s *Service) ClientUser(ctx context.Context, viewer policy.Identity) (map[string]any, error) {
	counts, reports, err := s.store.ClientAssetCounts(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}
	details, err := s.store.ClientAssetDetails(ctx, viewer.UserID)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.RecentActivityFeed(ctx, []int64{viewer.UserID}, 10)
	if err != nil {
		return nil, err
	}
	completion := 0
	if counts.Assigned > 0 {
		completion = int(float64(counts.Completed)/float64(counts.Assigned)*100 + 0.5)
	}
	return map[string]any{
		"assignedAssets": counts.Assigned,
		"completedAssets": counts.Completed,
		"pendingAssets":  counts.Pending,
		"totalReports":   reports,
		"completionRate": completion,
		"recentActivity": recent,
		"myAssets":       details,
	}, nil
}
