// Package mockremote provides an in-memory evidence.Remote for demo scans
// and unit tests. No credentials, no network.
package mockremote

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/complyops/autopilot/internal/evidence"
)

// Remote is an in-memory evidence.Remote. Seed it with SetFile and
// AddMergedRequest, or call Seeded for a ready-made demo project.
type Remote struct {
	mu        sync.Mutex
	project   evidence.Project
	protected *evidence.ProtectedBranch
	files     map[string]string
	merged    []mergedRequest
}

type mergedRequest struct {
	mr        evidence.MergeRequest
	approvers []string
}

// New creates an empty Remote for the given project path with branch "main".
func New(projectPath string) *Remote {
	return &Remote{
		project: evidence.Project{
			Path:          projectPath,
			DefaultBranch: "main",
			Visibility:    "private",
			MergeMethod:   "merge",
		},
		files: make(map[string]string),
	}
}

// SetFile seeds one file.
func (r *Remote) SetFile(path, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[path] = content
}

// SetProject replaces the project record returned by GetProject.
func (r *Remote) SetProject(p evidence.Project) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.project = p
}

// Protect marks the default branch as protected with the given rules.
func (r *Remote) Protect(rules evidence.ProtectedBranch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.protected = &rules
}

// AddMergedRequest appends a merged request and its approvers. Requests are
// returned by ListMergedRequests in reverse insertion order (newest first).
func (r *Remote) AddMergedRequest(mr evidence.MergeRequest, approvers []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.merged = append(r.merged, mergedRequest{mr: mr, approvers: approvers})
}

// GetProject returns the seeded project record.
func (r *Remote) GetProject(_ context.Context) (*evidence.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.project
	return &p, nil
}

// ListTree returns every seeded file as a blob entry, sorted by path.
func (r *Remote) ListTree(_ context.Context, _ string) ([]evidence.TreeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]evidence.TreeEntry, 0, len(r.files))
	for path := range r.files {
		entries = append(entries, evidence.TreeEntry{Path: path, Type: "blob"})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// GetFileContent returns one seeded file.
func (r *Remote) GetFileContent(_ context.Context, path, _ string) (*evidence.FileBlob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	content, ok := r.files[path]
	if !ok {
		return nil, evidence.NotFoundError{Resource: "file " + path}
	}
	return &evidence.FileBlob{Path: path, Content: []byte(content), Size: len(content)}, nil
}

// GetProtectedBranch returns the seeded protection rules, or NotFound when
// the branch was never protected.
func (r *Remote) GetProtectedBranch(_ context.Context, name string) (*evidence.ProtectedBranch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.protected == nil || r.protected.Name != name {
		return nil, evidence.NotFoundError{Resource: "protected branch " + name}
	}
	rules := *r.protected
	return &rules, nil
}

// ListMergedRequests returns seeded requests newest first, capped at limit.
func (r *Remote) ListMergedRequests(_ context.Context, limit int) ([]evidence.MergeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]evidence.MergeRequest, 0, len(r.merged))
	for i := len(r.merged) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.merged[i].mr)
	}
	return out, nil
}

// GetApprovals returns the approver set seeded for the given request.
func (r *Remote) GetApprovals(_ context.Context, iid int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.merged {
		if m.mr.IID == iid {
			return append([]string(nil), m.approvers...), nil
		}
	}
	return nil, evidence.NotFoundError{Resource: "approvals"}
}

// Opener satisfies the scan service's RemoteOpener port: every project path
// opens the same seeded demo repository.
type Opener struct{}

// Open returns a freshly seeded demo remote for the given project path.
func (Opener) Open(projectPath string) (evidence.Remote, error) {
	return Seeded(projectPath), nil
}

// Seeded returns a Remote populated with a small, compliance-flavored demo
// project: policy docs, CI config, infrastructure files, a protected default
// branch, and a few reviewed merge requests.
func Seeded(projectPath string) *Remote {
	r := New(projectPath)
	r.SetProject(evidence.Project{
		Path:                             projectPath,
		DefaultBranch:                    "main",
		Visibility:                       "private",
		MergeMethod:                      "merge",
		OnlyAllowMergeIfPipelineSucceeds: true,
		ApprovalsBeforeMerge:             1,
	})
	r.Protect(evidence.ProtectedBranch{
		Name:              "main",
		PushAccessLevels:  []string{"maintainer"},
		MergeAccessLevels: []string{"maintainer"},
	})

	r.SetFile("README.md", "# Example Project\n\nDemo repository for compliance scans.\n")
	r.SetFile("SECURITY.md", "# Security Policy\n\nReport vulnerabilities to security@example.com within 24h.\n")
	r.SetFile("CONTRIBUTING.md", "# Contributing\n\nAll changes go through merge requests with one approval.\n")
	r.SetFile("CHANGELOG.md", "# Changelog\n\n## 1.2.0\n- Rotate TLS certificates automatically.\n")
	r.SetFile(".gitlab-ci.yml", "stages:\n  - test\n  - security\n\nsast:\n  stage: security\n  script:\n    - run-sast\n")
	r.SetFile("Dockerfile", "FROM alpine:3.20\nUSER app\n")
	r.SetFile("renovate.json", "{\n  \"extends\": [\"config:base\"]\n}\n")
	r.SetFile("docs/privacy/data-retention.md", "Personal data is retained for 30 days.\n")
	r.SetFile("infrastructure/terraform/iam.tf", "resource \"aws_iam_role\" \"app\" {}\n")
	r.SetFile("src/app/main.go", "package main\n\nfunc main() {}\n")
	r.SetFile("assets/logo.png", "\x89PNG\r\n")

	day := 24 * time.Hour
	base := time.Now().UTC().Add(-30 * day)
	for i, mr := range []struct {
		title     string
		author    string
		approvers []string
	}{
		{"Add data retention policy", "dana", []string{"sam"}},
		{"Enforce TLS 1.3 in ingress", "lee", []string{"sam", "alex"}},
		{"Bump dependencies", "renovate-bot", []string{"dana"}},
	} {
		mergedAt := base.Add(time.Duration(i) * day)
		r.AddMergedRequest(evidence.MergeRequest{
			IID:          i + 1,
			Title:        mr.title,
			Author:       mr.author,
			SourceBranch: "change-" + mr.author,
			TargetBranch: "main",
			MergedAt:     &mergedAt,
		}, mr.approvers)
	}
	return r
}
