// Package evidence builds bounded, queryable snapshots of a repository's
// compliance-relevant artifacts. The Assembler selects files by heuristic
// relevance under a fetch budget, retrieves them from a Remote despite
// partial platform failures, and freezes the result into a RepoSnapshot
// that control evaluators query read-only.
package evidence

import (
	"context"
	"fmt"
	"time"
)

// Remote is the port through which the assembler reaches a single hosted
// project. Implementations live in internal/platform (GitLab REST, go-github,
// in-memory mock); the core depends only on these fixed shapes and never on a
// platform SDK's loosely typed responses.
//
// Every method except GetProject may fail without consequence: the assembler
// absorbs the failure and degrades the snapshot instead of aborting.
type Remote interface {
	// GetProject resolves the project itself. This is the only call whose
	// failure is fatal to an assembly.
	GetProject(ctx context.Context) (*Project, error)

	// ListTree returns every entry of the repository tree at ref, recursively.
	ListTree(ctx context.Context, ref string) ([]TreeEntry, error)

	// GetFileContent returns one file's decoded content at ref.
	GetFileContent(ctx context.Context, path, ref string) (*FileBlob, error)

	// GetProtectedBranch returns the protection rules for the named branch.
	GetProtectedBranch(ctx context.Context, name string) (*ProtectedBranch, error)

	// ListMergedRequests returns up to limit merged change requests,
	// most recently updated first.
	ListMergedRequests(ctx context.Context, limit int) ([]MergeRequest, error)

	// GetApprovals returns the identities that approved the given request.
	GetApprovals(ctx context.Context, iid int) ([]string, error)
}

// Project is the platform's view of the scanned project, reduced to the
// settings that carry compliance signal.
type Project struct {
	Path          string
	DefaultBranch string
	Visibility    string
	MergeMethod   string

	OnlyAllowMergeIfPipelineSucceeds       bool
	OnlyAllowMergeIfAllDiscussionsResolved bool
	ApprovalsBeforeMerge                   int
	SecurityAndComplianceEnabled           bool
	ContainerRegistryEnabled               bool
	PackagesEnabled                        bool
}

// TreeEntry is one entry of a recursive tree listing.
type TreeEntry struct {
	Path string
	Type string // "blob" or "tree"
}

// FileBlob is one file as returned by the platform, already decoded.
type FileBlob struct {
	Path         string
	Content      []byte
	Size         int // size reported by the platform, not len(Content)
	LastModified *time.Time
}

// ProtectedBranch describes the protection rules of a single branch.
type ProtectedBranch struct {
	Name                      string
	PushAccessLevels          []string
	MergeAccessLevels         []string
	AllowForcePush            bool
	CodeOwnerApprovalRequired bool
}

// MergeRequest is one merged change request as listed by the platform.
// Approvals are fetched separately per request.
type MergeRequest struct {
	IID          int
	Title        string
	Author       string
	SourceBranch string
	TargetBranch string
	MergedAt     *time.Time
}

// RemoteUnavailableError is returned by Assemble when the project itself
// cannot be resolved. No snapshot is possible in that case.
type RemoteUnavailableError struct {
	ProjectPath string
	Err         error
}

// Error implements the error interface.
func (e RemoteUnavailableError) Error() string {
	return fmt.Sprintf("project %q unavailable: %v", e.ProjectPath, e.Err)
}

// Unwrap exposes the underlying platform error.
func (e RemoteUnavailableError) Unwrap() error { return e.Err }

// NotFoundError is returned by Remote implementations when the requested
// resource does not exist on the platform.
type NotFoundError struct {
	Resource string
}

// Error implements the error interface.
func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// UnauthorizedError is returned by Remote implementations when the platform
// rejects the configured credentials for a resource.
type UnauthorizedError struct {
	Resource string
}

// Error implements the error interface.
func (e UnauthorizedError) Error() string {
	return fmt.Sprintf("access to %s denied", e.Resource)
}

// InvalidPatternError is returned by RepoSnapshot.Search when the caller
// supplies a malformed regular expression.
type InvalidPatternError struct {
	Pattern string
	Err     error
}

// Error implements the error interface.
func (e InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid search pattern %q: %v", e.Pattern, e.Err)
}

// Unwrap exposes the regexp compilation error.
func (e InvalidPatternError) Unwrap() error { return e.Err }
