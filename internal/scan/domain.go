// Package scan owns the compliance-scan lifecycle: it accepts scan requests,
// drives the evidence assembler in the background, and records progress and
// results in an injectable store.
package scan

import "time"

// Status is the lifecycle state of a scan.
type Status string

// Scan lifecycle states.
const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Request is an inbound scan request.
type Request struct {
	ProjectPath string   `json:"project_path" binding:"required"`
	Frameworks  []string `json:"frameworks"`
}

// Framework describes one supported compliance framework.
type Framework struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	ControlsCount int    `json:"controls_count"`
}

// Frameworks is the catalog of supported compliance frameworks.
var Frameworks = []Framework{
	{
		ID:            "soc2",
		Name:          "SOC2 Type II",
		Description:   "Trust Services Criteria - CC6, CC7, CC8, CC9, A1",
		ControlsCount: 15,
	},
	{
		ID:            "gdpr",
		Name:          "GDPR",
		Description:   "General Data Protection Regulation - Articles 5, 13, 17, 25, 32, 33",
		ControlsCount: 12,
	},
}

// defaultFrameworks is applied when a request names none.
var defaultFrameworks = []string{"soc2", "gdpr"}

// Summary is the scan-level bookkeeping extracted from an assembled
// snapshot, independent of any control evaluation.
type Summary struct {
	DefaultBranch   string `json:"default_branch"`
	FilesFetched    int    `json:"files_fetched"`
	FailedFetches   int    `json:"failed_fetches"`
	MergeRequests   int    `json:"merge_requests"`
	BranchProtected bool   `json:"branch_protected"`
	Incomplete      bool   `json:"incomplete"`
}

// Scan is one scan job and its outcome.
type Scan struct {
	ID          string     `json:"scan_id"`
	ProjectPath string     `json:"project_path"`
	Frameworks  []string   `json:"frameworks"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Summary     *Summary   `json:"summary,omitempty"`
	Result      *Result    `json:"result,omitempty"`
}

// ControlFinding is one control's verdict as produced by an evaluator.
type ControlFinding struct {
	ControlID   string   `json:"control_id"`
	ControlName string   `json:"control_name"`
	Framework   string   `json:"framework"`
	Severity    string   `json:"severity"` // HIGH, MEDIUM, LOW, INFO
	Status      string   `json:"status"`   // PASS, FAIL, PARTIAL, UNKNOWN
	Description string   `json:"description"`
	Evidence    []string `json:"evidence,omitempty"`
	Remediation string   `json:"remediation,omitempty"`
	Effort      string   `json:"effort,omitempty"`
}

// FrameworkResult is one framework's aggregate verdict.
type FrameworkResult struct {
	Framework     string           `json:"framework"`
	FrameworkName string           `json:"framework_name"`
	Score         float64          `json:"score"` // 0-100
	PassCount     int              `json:"pass_count"`
	FailCount     int              `json:"fail_count"`
	PartialCount  int              `json:"partial_count"`
	Findings      []ControlFinding `json:"findings"`
}

// Result is the full evaluator output for one scan.
type Result struct {
	OverallScore  float64           `json:"overall_score"`
	OverallRisk   string            `json:"overall_risk"` // LOW, MEDIUM, HIGH, CRITICAL
	Frameworks    []FrameworkResult `json:"frameworks"`
	TotalFindings int               `json:"total_findings"`
	CriticalCount int               `json:"critical_count"`
	HighCount     int               `json:"high_count"`
}
