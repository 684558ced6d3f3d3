package assets

import "time"

// Asset type, environment, plan and scan frequency values accepted by the
// intake form.
var (
	AssetTypes      = []string{"web-app", "api", "mobile", "iot", "network", "other"}
	Environments    = []string{"dev", "staging", "prod", "other"}
	PlanTiers       = []string{"free", "basic", "advanced", "custom"}
	ScanFrequencies = []string{"one-time", "daily", "weekly", "monthly"}
)

// UserRef is the compact user shape embedded in asset payloads.
type UserRef struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// Asset is a client system registered for security testing.
type Asset struct {
	ID                 int64      `json:"id"`
	ProjectName        string     `json:"projectName"`
	ProjectOwner       *UserRef   `json:"projectOwner,omitempty"`
	ProjectDescription string     `json:"projectDescription"`
	AssetName          string     `json:"assetName"`
	AssetURL           string     `json:"assetUrl"`
	AssetType          string     `json:"assetType"`
	TechnologyStack    []string   `json:"technologyStack"`
	Environment        string     `json:"environment"`
	AuthMethod         string     `json:"authMethod"`
	PrivateNetwork     bool       `json:"privateNetwork"`
	ScanFrequency      string     `json:"scanFrequency"`
	PreferredWindow    string     `json:"preferredTestWindow"`
	ScopeInclusions    string     `json:"scopeInclusions"`
	ScopeExclusions    string     `json:"scopeExclusions"`
	NotifyOn           []string   `json:"notifyOn"`
	NotificationEmails []string   `json:"notificationEmails"`
	PlanTier           string     `json:"planTier"`
	TestsPerMonth      *int32     `json:"testsPerMonth,omitempty"`
	ContractExpiry     *time.Time `json:"contractExpiryDate,omitempty"`
	Tags               []string   `json:"tags"`
	SupportingDocs     []string   `json:"supportingDocs"`
	AssignedTo         *UserRef   `json:"assignedTo,omitempty"`
	AssignedAt         *time.Time `json:"assignedAt,omitempty"`
	AssignedBy         *UserRef   `json:"assignedBy,omitempty"`
	AssignedTester     *UserRef   `json:"assignedTester,omitempty"`
	AssignedTesterAt   *time.Time `json:"assignedTesterAt,omitempty"`
	AssignedTesterBy   *UserRef   `json:"assignedTesterBy,omitempty"`
	CreatedBy          *UserRef   `json:"createdBy,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// AssetInput carries the intake form fields. Pointer fields distinguish
// "not sent" from zero values on partial updates.
type AssetInput struct {
	ProjectName        *string    `json:"projectName"`
	ProjectOwnerID     *int64     `json:"projectOwnerId"`
	ProjectDescription *string    `json:"projectDescription"`
	AssetName          *string    `json:"assetName"`
	AssetURL           *string    `json:"assetUrl"`
	AssetType          *string    `json:"assetType"`
	TechnologyStack    []string   `json:"technologyStack"`
	Environment        *string    `json:"environment"`
	AuthMethod         *string    `json:"authMethod"`
	PrivateNetwork     *bool      `json:"privateNetwork"`
	ScanFrequency      *string    `json:"scanFrequency"`
	PreferredWindow    *string    `json:"preferredTestWindow"`
	ScopeInclusions    *string    `json:"scopeInclusions"`
	ScopeExclusions    *string    `json:"scopeExclusions"`
	NotifyOn           []string   `json:"notifyOn"`
	NotificationEmails []string   `json:"notificationEmails"`
	PlanTier           *string    `json:"planTier"`
	TestsPerMonth      *int32     `json:"testsPerMonth"`
	ContractExpiry     *time.Time `json:"contractExpiryDate"`
	Tags               []string   `json:"tags"`
	SupportingDocs     []string   `json:"supportingDocs"`
}

// ClientTeamAssignment links an asset to a client team member.
type ClientTeamAssignment struct {
	ID                 int64     `json:"id"`
	AssetID            int64     `json:"assetId"`
	ClientTeamMemberID int64     `json:"clientTeamMemberId"`
	AssignedByID       int64     `json:"assignedById"`
	AssignedAt         time.Time `json:"assignedAt"`
	Status             string    `json:"status"`
	Notes              string    `json:"notes"`
	ClientTeamMember   *UserRef  `json:"clientTeamMember,omitempty"`
	AssignedBy         *UserRef  `json:"assignedBy,omitempty"`
}

// ClientTeamAsset is an asset seen through an active client-team assignment.
type ClientTeamAsset struct {
	Asset
	Assignment struct {
		ID         int64     `json:"id"`
		AssignedAt time.Time `json:"assignedAt"`
		Status     string    `json:"status"`
		Notes      string    `json:"notes"`
	} `json:"assignment"`
}
