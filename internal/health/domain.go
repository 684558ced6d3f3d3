// Package health tracks component status and serves the monitoring
// endpoints.
package health

import "time"

// Component statuses.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Endpoint describes one monitored API operation.
type Endpoint struct {
	Name        string `json:"name"`
	Path        string `json:"endpoint"`
	Method      string `json:"method"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Catalog is the monitored API surface, grouped for the dashboard.
var Catalog = []Endpoint{
	{"User Login", "/api/auth/login", "POST", "User authentication", "authentication"},
	{"User Info", "/api/auth/me", "GET", "Get current user info", "authentication"},
	{"User Logout", "/api/auth/logout", "POST", "User logout", "authentication"},
	{"Profile Update", "/api/auth/profile", "PATCH", "Update user profile", "authentication"},
	{"Password Change", "/api/auth/change-password", "POST", "Change user password", "authentication"},
	{"Super Admin Dashboard", "/api/dashboard/superadmin", "GET", "Super admin dashboard data", "dashboard"},
	{"Admin Dashboard", "/api/dashboard/admin", "GET", "Admin dashboard data", "dashboard"},
	{"Team Leader Dashboard", "/api/dashboard/team-leader", "GET", "Team leader dashboard data", "dashboard"},
	{"Tester Dashboard", "/api/dashboard/tester", "GET", "Tester dashboard data", "dashboard"},
	{"Client User Dashboard", "/api/dashboard/client-user", "GET", "Client user dashboard data", "dashboard"},
	{"User List", "/api/users", "GET", "Get all users", "user-management"},
	{"User Creation", "/api/users/create", "POST", "Create new user", "user-management"},
	{"User Update", "/api/users/:id", "PATCH", "Update user information", "user-management"},
	{"User Delete", "/api/users/:id", "DELETE", "Delete user account", "user-management"},
	{"User Hierarchy", "/api/users/hierarchy", "GET", "Get user hierarchy", "user-management"},
	{"User Assignments", "/api/users/assigned", "GET", "Get user assignments", "user-management"},
	{"Team Leaders", "/api/team-leaders", "GET", "Get team leaders", "user-management"},
	{"Testers", "/api/testers", "GET", "Get testers", "user-management"},
	{"Client Team Members", "/api/client-team-members", "GET", "Get client team members", "user-management"},
	{"Asset List", "/api/assets", "GET", "Get all assets", "assets"},
	{"Asset Creation", "/api/assets", "POST", "Create new asset", "assets"},
	{"Asset Update", "/api/assets/:id", "PUT", "Update asset information", "assets"},
	{"Asset Delete", "/api/assets/:id", "DELETE", "Delete asset", "assets"},
	{"Asset Assignment", "/api/assets/:id/assign", "POST", "Assign asset to team leader", "assets"},
	{"Task Assignment", "/api/tasks/:id/assign", "POST", "Assign task to tester", "assets"},
	{"My Tasks", "/api/my-tasks", "GET", "Get assigned tasks", "assets"},
	{"My Assigned Tasks", "/api/my-assigned-tasks", "GET", "Get tasks assigned to tester", "assets"},
	{"Assets Detailed", "/api/assets-detailed", "GET", "Get detailed asset information", "assets"},
	{"Report List", "/api/reports", "GET", "Get all reports", "reports"},
	{"Report Creation", "/api/reports", "POST", "Create new report", "reports"},
	{"Report Update", "/api/reports/:id", "PATCH", "Update report", "reports"},
	{"Report Delete", "/api/reports/:id", "DELETE", "Delete report", "reports"},
	{"Report Details", "/api/reports/:id", "GET", "Get report details", "reports"},
	{"Report Findings", "/api/reports/:id/findings", "GET", "Get report findings", "reports"},
	{"Finding Creation", "/api/reports/:id/findings", "POST", "Create new finding", "reports"},
	{"Finding Update", "/api/findings/:id", "PATCH", "Update finding", "reports"},
	{"Finding Delete", "/api/findings/:id", "DELETE", "Delete finding", "reports"},
	{"Report Notes", "/api/reports/:id/notes", "GET", "Get report notes", "reports"},
	{"System Health", "/api/health", "GET", "System health check", "system"},
	{"System Status", "/api/status", "GET", "Get system status", "system"},
	{"API Logs", "/api/logs", "GET", "Get API logs", "system"},
	{"Activity Logs", "/api/activity-logs", "GET", "Get activity logs", "system"},
	{"User Sessions", "/api/user-sessions", "GET", "Get user sessions", "system"},
	{"Asset Activity", "/api/asset-activity-logs", "GET", "Get asset activity logs", "system"},
	{"Activity Summary", "/api/activity-summary", "GET", "Get activity summary", "system"},
}

// ComponentStatus is one monitored component's current state.
type ComponentStatus struct {
	ID          int64     `json:"id"`
	Component   string    `json:"component"`
	Status      string    `json:"status"`
	Details     string    `json:"details"`
	LastChecked time.Time `json:"lastChecked"`
}

// APIStatus is a catalog endpoint joined with its stored status.
type APIStatus struct {
	Endpoint
	Component   string    `json:"component"`
	Status      string    `json:"status"`
	LastChecked time.Time `json:"lastChecked"`
}

// Overview is the system health dashboard payload.
type Overview struct {
	OverallHealth    int                    `json:"overallHealth"`
	TotalAPIs        int                    `json:"totalApis"`
	HealthyAPIs      int                    `json:"healthyApis"`
	UnhealthyAPIs    int                    `json:"unhealthyApis"`
	APIsByCategory   map[string][]APIStatus `json:"apisByCategory"`
	SystemComponents []ComponentStatus      `json:"systemComponents"`
	LastUpdated      time.Time              `json:"lastUpdated"`
}

// APILog is a single recorded API call.
type APILog struct {
	ID           int64     `json:"id"`
	Method       string    `json:"method"`
	Endpoint     string    `json:"endpoint"`
	StatusCode   int       `json:"statusCode"`
	ResponseTime int64     `json:"responseTime"`
	Timestamp    time.Time `json:"timestamp"`
}
