package activity

import "time"

// Activity types recorded throughout the dashboard.
const (
	TypeAuth             = "auth"
	TypeUserManagement   = "user_management"
	TypeAssetManagement  = "asset_management"
	TypeReportManagement = "report_management"
	TypeSystem           = "system"
	TypeSession          = "session"
)

// Actions used across activity and audit records.
const (
	ActionLogin    = "login"
	ActionLogout   = "logout"
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionView     = "view"
	ActionAssign   = "assign"
	ActionUnassign = "unassign"
	ActionSubmit   = "submit"
	ActionApprove  = "approve"
	ActionReject   = "reject"
)

// Entry is one activity log record.
type Entry struct {
	ID           int64          `json:"id"`
	UserID       int64          `json:"userId"`
	Username     string         `json:"username"`
	ActivityType string         `json:"activityType"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resourceType,omitempty"`
	ResourceID   int64          `json:"resourceId,omitempty"`
	ResourceName string         `json:"resourceName,omitempty"`
	Details      map[string]any `json:"details"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	SessionID    string         `json:"sessionId,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Session is one user session record. SessionID holds the token key, never
// more secret material than the client already carries.
type Session struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"userId"`
	Username     string     `json:"username"`
	SessionID    string     `json:"sessionId"`
	LoginTime    time.Time  `json:"loginTime"`
	LogoutTime   *time.Time `json:"logoutTime,omitempty"`
	IPAddress    string     `json:"ipAddress,omitempty"`
	UserAgent    string     `json:"userAgent,omitempty"`
	IsActive     bool       `json:"isActive"`
	LastActivity time.Time  `json:"lastActivity"`
}

// AssetEntry is one asset-scoped activity record.
type AssetEntry struct {
	ID           int64          `json:"id"`
	AssetID      int64          `json:"assetId"`
	AssetName    string         `json:"assetName"`
	UserID       int64          `json:"userId"`
	Username     string         `json:"username"`
	ActivityType string         `json:"activityType"`
	Action       string         `json:"action"`
	OldValues    map[string]any `json:"oldValues"`
	NewValues    map[string]any `json:"newValues"`
	Details      map[string]any `json:"details"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Filter narrows activity listings. A nil ScopeUserIDs means no hierarchy
// scoping (superadmin); an empty non-nil slice scopes to nobody and callers
// substitute the viewer's own ID before querying.
type Filter struct {
	Start        time.Time
	End          time.Time
	UserID       int64
	AssetID      int64
	ActivityType string
	IsActive     *bool
	ScopeUserIDs []int64
	Limit        int
	Offset       int
}

// TypeCount is one activity-count bucket in the summary.
type TypeCount struct {
	ActivityType string `json:"activityType"`
	Count        int64  `json:"count"`
}

// Summary aggregates recent activity for the monitoring dashboard.
type Summary struct {
	ActivityCounts   []TypeCount `json:"activityCounts"`
	ActiveSessions   int64       `json:"activeSessions"`
	RecentActivities []Entry     `json:"recentActivities"`
	DateRange        DateRange   `json:"dateRange"`
}

// DateRange bounds a summary window.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
