package reports

import "time"

// Report status values. Testers draft, team leaders finalize.
const (
	StatusDraft    = "Draft"
	StatusInReview = "In Review"
	StatusFinal    = "Final"
)

// Overall risk ratings derived from the findings rollup.
const (
	RatingGood     = "Good"
	RatingNotGood  = "Not Good"
	RatingCritical = "Critical"
)

// Finding severity values, highest first.
var Severities = []string{"Critical", "High", "Medium", "Low", "Info"}

// Finding lifecycle states.
var FindingStatuses = []string{"New", "Reopened", "Not Fixed", "Fixed"}

// Note classification values.
var (
	NoteTypes      = []string{"Review", "Feedback", "Question", "Concern"}
	NotePriorities = []string{"Low", "Medium", "High", "Critical"}
	NoteStatuses   = []string{"Open", "Addressed", "Closed"}
)

// UserRef is the compact author shape embedded in report payloads.
type UserRef struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// SeverityBreakdown counts findings per severity.
type SeverityBreakdown struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

// Report is a penetration test report tied to one asset.
type Report struct {
	ID                 int64             `json:"id"`
	ReportTitle        string            `json:"reportTitle"`
	AssociatedAssetID  int64             `json:"associatedAssetId"`
	AssetName          string            `json:"assetName"`
	TesterName         string            `json:"testerName"`
	TestStartDate      time.Time         `json:"testStartDate"`
	TestEndDate        time.Time         `json:"testEndDate"`
	TotalTestDuration  string            `json:"totalTestDuration"`
	ExecutiveSummary   string            `json:"executiveSummary"`
	TotalFindings      int               `json:"totalFindings"`
	SeverityBreakdown  SeverityBreakdown `json:"severityBreakdown"`
	OverallRiskRating  string            `json:"overallRiskRating"`
	CurrentStatus      string            `json:"currentStatus"`
	PreparedBy         string            `json:"preparedBy"`
	ReviewedBy         string            `json:"reviewedBy"`
	FinalizedDate      *time.Time        `json:"reportFinalizedDate,omitempty"`
	NextScheduledTest  *time.Time        `json:"nextScheduledTest,omitempty"`
	DistributionEmails []string          `json:"distributionEmails"`
	CreatedBy          *UserRef          `json:"createdBy,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// CreateInput carries the report intake fields.
type CreateInput struct {
	ReportTitle        string     `json:"reportTitle" validate:"required"`
	AssociatedAssetID  int64      `json:"associatedAssetId" validate:"required"`
	TestStartDate      time.Time  `json:"testStartDate" validate:"required"`
	TestEndDate        time.Time  `json:"testEndDate" validate:"required"`
	TotalTestDuration  string     `json:"totalTestDuration"`
	ExecutiveSummary   string     `json:"executiveSummary"`
	NextScheduledTest  *time.Time `json:"nextScheduledTest"`
	DistributionEmails []string   `json:"distributionEmails"`
}

// UpdateInput patches a report. Pointer fields distinguish absent from zero.
type UpdateInput struct {
	ReportTitle        *string    `json:"reportTitle"`
	TestStartDate      *time.Time `json:"testStartDate"`
	TestEndDate        *time.Time `json:"testEndDate"`
	TotalTestDuration  *string    `json:"totalTestDuration"`
	ExecutiveSummary   *string    `json:"executiveSummary"`
	CurrentStatus      *string    `json:"currentStatus"`
	ReviewedBy         *string    `json:"reviewedBy"`
	NextScheduledTest  *time.Time `json:"nextScheduledTest"`
	DistributionEmails []string   `json:"distributionEmails"`
}

// Finding is a single vulnerability documented in a report.
type Finding struct {
	ID              int64     `json:"id"`
	ReportID        int64     `json:"reportId"`
	FindingID       string    `json:"findingId"`
	Title           string    `json:"vulnerabilityTitle"`
	Severity        string    `json:"severity"`
	Impact          string    `json:"impact"`
	Likelihood      string    `json:"likelihood"`
	Category        string    `json:"category"`
	Status          string    `json:"vulnerabilityStatus"`
	Occurrences     int       `json:"numberOfOccurrences"`
	AffectedURLs    []string  `json:"affectedUrls"`
	Description     string    `json:"description"`
	ProofOfConcept  string    `json:"proofOfConcept"`
	Recommendation  string    `json:"recommendation"`
	References      []string  `json:"references"`
	AdditionalNotes string    `json:"additionalNotes"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// FindingInput carries finding create and patch fields.
type FindingInput struct {
	Title           *string  `json:"vulnerabilityTitle"`
	Severity        *string  `json:"severity"`
	Impact          *string  `json:"impact"`
	Likelihood      *string  `json:"likelihood"`
	Category        *string  `json:"category"`
	Status          *string  `json:"vulnerabilityStatus"`
	Occurrences     *int     `json:"numberOfOccurrences"`
	AffectedURLs    []string `json:"affectedUrls"`
	Description     *string  `json:"description"`
	ProofOfConcept  *string  `json:"proofOfConcept"`
	Recommendation  *string  `json:"recommendation"`
	References      []string `json:"references"`
	AdditionalNotes *string  `json:"additionalNotes"`
}

// Note is review feedback from a client team member on a report.
type Note struct {
	ID        int64     `json:"id"`
	ReportID  int64     `json:"reportId"`
	AssetID   int64     `json:"assetId"`
	Author    *UserRef  `json:"author,omitempty"`
	Content   string    `json:"noteContent"`
	NoteType  string    `json:"noteType"`
	Priority  string    `json:"priority"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// NoteInput carries note create and patch fields.
type NoteInput struct {
	AssetID  int64   `json:"assetId"`
	Content  string  `json:"noteContent"`
	NoteType *string `json:"noteType"`
	Priority *string `json:"priority"`
	Status   *string `json:"status"`
}

// AssetContext is the slice of asset state report authorization needs.
type AssetContext struct {
	AssetID            int64
	AssetName          string
	OwnerID            int64
	AssignedByID       int64
	AssignedTesterByID int64
	LeaderName         string
}
