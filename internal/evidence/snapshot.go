package evidence

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// CIStatus records what the snapshot knows about a merge request's pipeline
// outcome. The platform does not expose the pipeline result on merged-request
// listings, so the assembler records the approximation explicitly instead of
// passing it off as a measured boolean.
type CIStatus string

// CIStatusAssumedPassed marks a request that reached merged state, which
// implies the platform's required checks were satisfied at merge time.
const CIStatusAssumedPassed CIStatus = "assumed_passed"

// RepoFile is one retrieved artifact. Immutable once created.
type RepoFile struct {
	Path         string     `json:"path"`
	Content      string     `json:"content"`
	Size         int        `json:"size"` // bytes of content actually stored
	Truncated    bool       `json:"truncated"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// MergeRequestSummary is one merged change request with its approval record.
type MergeRequestSummary struct {
	ID            int        `json:"id"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	Approvers     []string   `json:"approvers"`
	ApproverCount int        `json:"approver_count"`
	MergedAt      *time.Time `json:"merged_at"`
	CIStatus      CIStatus   `json:"ci_status"`
	SourceBranch  string     `json:"source_branch"`
	TargetBranch  string     `json:"target_branch"`
}

// BranchRules captures the protection state of the default branch. When the
// protection lookup fails or the branch is unprotected, only Name and
// Protected=false are meaningful.
type BranchRules struct {
	Name                      string   `json:"name"`
	Protected                 bool     `json:"protected"`
	PushAccessLevels          []string `json:"push_access_levels,omitempty"`
	MergeAccessLevels         []string `json:"merge_access_levels,omitempty"`
	AllowForcePush            bool     `json:"allow_force_push"`
	CodeOwnerApprovalRequired bool     `json:"code_owner_approval_required"`
}

// ProjectSettings are the compliance-relevant switches of the project itself.
type ProjectSettings struct {
	Visibility                             string `json:"visibility"`
	MergeMethod                            string `json:"merge_method"`
	OnlyAllowMergeIfPipelineSucceeds       bool   `json:"only_allow_merge_if_pipeline_succeeds"`
	OnlyAllowMergeIfAllDiscussionsResolved bool   `json:"only_allow_merge_if_all_discussions_are_resolved"`
	ApprovalsBeforeMerge                   int    `json:"approvals_before_merge"`
	SecurityAndComplianceEnabled           bool   `json:"security_and_compliance_enabled"`
	ContainerRegistryEnabled               bool   `json:"container_registry_enabled"`
	PackagesEnabled                        bool   `json:"packages_enabled"`
}

// RepoSnapshot is the immutable evidence bundle produced by one assembly.
// The Assembler is its only writer; everything here is read-only once
// Assemble returns. One snapshot per scan, no cross-scan caching.
type RepoSnapshot struct {
	ProjectPath   string                         `json:"project_path"`
	DefaultBranch string                         `json:"default_branch"`
	Files         map[string]RepoFile            `json:"files"`
	CIConfig      map[string]any                 `json:"ci_config,omitempty"`
	RecentMRs     []MergeRequestSummary          `json:"recent_mrs"` // newest first
	BranchRules   BranchRules                    `json:"branch_rules"`
	Settings      ProjectSettings                `json:"project_settings"`

	// FailedFetches lists paths that were selected for retrieval but whose
	// fetch failed. Lets consumers distinguish "file never existed" from
	// "file existed but could not be read". Sorted lexically.
	FailedFetches []string `json:"failed_fetches,omitempty"`

	// Incomplete is set when assembly was cancelled before finishing. The
	// snapshot still holds everything gathered up to that point.
	Incomplete bool `json:"incomplete,omitempty"`

	ScannedAt time.Time `json:"scanned_at"`
}

// Match is one line matched by Search.
type Match struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Content returns a file's stored content by exact path.
func (s *RepoSnapshot) Content(path string) (string, bool) {
	f, ok := s.Files[path]
	if !ok {
		return "", false
	}
	return f.Content, true
}

// HasFile reports whether a file exists in the snapshot. The pattern is
// either an exact path, or — when it contains "*" — a prefix glob: the
// substring before the first "*" is matched as a path prefix. This is
// deliberately not full glob semantics; "docs/*nested*" matches the same
// set of paths as "docs/*".
func (s *RepoSnapshot) HasFile(pattern string) bool {
	if _, ok := s.Files[pattern]; ok {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return false
	}
	prefix := pattern[:strings.Index(pattern, "*")]
	for path := range s.Files {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Search scans stored file contents for a case-insensitive regular
// expression. When extensions is non-empty only paths ending in one of them
// are searched. Results are ordered by path (lexically, so iteration is
// reproducible) then ascending line number; each line appears at most once
// no matter how many times the pattern occurs on it.
func (s *RepoSnapshot) Search(pattern string, extensions []string) ([]Match, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, InvalidPatternError{Pattern: pattern, Err: err}
	}

	paths := make([]string, 0, len(s.Files))
	for path := range s.Files {
		if len(extensions) > 0 && !hasAnySuffix(path, extensions) {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var matches []Match
	for _, path := range paths {
		for i, line := range strings.Split(s.Files[path].Content, "\n") {
			if re.MatchString(line) {
				matches = append(matches, Match{
					Path: path,
					Line: i + 1,
					Text: strings.TrimSpace(line),
				})
			}
		}
	}
	return matches, nil
}

func hasAnySuffix(path string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
