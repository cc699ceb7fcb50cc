package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFetchBudget caps how many files one assembly retrieves.
	DefaultFetchBudget = 200

	// DefaultMaxMergeRequests caps how many merged requests are summarized.
	DefaultMaxMergeRequests = 50

	// DefaultConcurrency bounds in-flight remote calls so one assembly
	// stays inside the platform's rate limits.
	DefaultConcurrency = 8

	// maxFileBytes is the largest content stored untruncated.
	maxFileBytes = 50_000

	// truncatedPreviewChars is how much of an oversized file survives
	// after the truncation marker.
	truncatedPreviewChars = 2000

	fallbackBranch = "main"
	ciConfigPath   = ".gitlab-ci.yml"
)

// Assembler builds a RepoSnapshot from a Remote. One assembly per scan
// request; the zero values of the tuning fields select the defaults above.
//
// Every sub-fetch except the initial project lookup degrades gracefully:
// a failed tree listing yields an evidence-poor but valid snapshot, a failed
// file fetch is recorded in FailedFetches, failed approvals yield an empty
// approver set. Nothing is ever retried here; retry policy belongs to the
// Remote implementation if anywhere.
type Assembler struct {
	Remote           Remote
	Log              *slog.Logger
	FetchBudget      int
	MaxMergeRequests int
	Concurrency      int
}

// Assemble fetches project settings, branch rules, the highest-relevance
// files under the fetch budget, and recent merged requests, and freezes them
// into an immutable snapshot. It fails only when the project itself cannot
// be resolved; a cancelled context stops further fetching and returns the
// partial snapshot with Incomplete set.
func (a *Assembler) Assemble(ctx context.Context, projectPath string) (*RepoSnapshot, error) {
	project, err := a.Remote.GetProject(ctx)
	if err != nil {
		return nil, RemoteUnavailableError{ProjectPath: projectPath, Err: err}
	}

	branch := project.DefaultBranch
	if branch == "" {
		branch = fallbackBranch
	}

	snapshot := &RepoSnapshot{
		ProjectPath:   projectPath,
		DefaultBranch: branch,
		Files:         make(map[string]RepoFile),
		Settings: ProjectSettings{
			Visibility:                             project.Visibility,
			MergeMethod:                            project.MergeMethod,
			OnlyAllowMergeIfPipelineSucceeds:       project.OnlyAllowMergeIfPipelineSucceeds,
			OnlyAllowMergeIfAllDiscussionsResolved: project.OnlyAllowMergeIfAllDiscussionsResolved,
			ApprovalsBeforeMerge:                   project.ApprovalsBeforeMerge,
			SecurityAndComplianceEnabled:           project.SecurityAndComplianceEnabled,
			ContainerRegistryEnabled:               project.ContainerRegistryEnabled,
			PackagesEnabled:                        project.PackagesEnabled,
		},
		ScannedAt: time.Now().UTC(),
	}

	snapshot.BranchRules = a.branchRules(ctx, branch)
	a.fetchFiles(ctx, snapshot)
	snapshot.CIConfig = parseCIConfig(snapshot)
	snapshot.RecentMRs = a.recentMergeRequests(ctx)

	if ctx.Err() != nil {
		snapshot.Incomplete = true
	}
	return snapshot, nil
}

// branchRules fetches protection rules for the default branch, degrading to
// an unprotected record on any failure.
func (a *Assembler) branchRules(ctx context.Context, branch string) BranchRules {
	protected, err := a.Remote.GetProtectedBranch(ctx, branch)
	if err != nil {
		a.Log.Debug("branch protection lookup failed, treating as unprotected",
			"branch", branch, "error", err)
		return BranchRules{Name: branch, Protected: false}
	}
	return BranchRules{
		Name:                      protected.Name,
		Protected:                 true,
		PushAccessLevels:          protected.PushAccessLevels,
		MergeAccessLevels:         protected.MergeAccessLevels,
		AllowForcePush:            protected.AllowForcePush,
		CodeOwnerApprovalRequired: protected.CodeOwnerApprovalRequired,
	}
}

// fetchFiles lists the tree, ranks blob entries by relevance, and fetches
// the top entries under the budget with bounded concurrency. Files land in
// the snapshot keyed by path, so the result never depends on completion order.
func (a *Assembler) fetchFiles(ctx context.Context, snapshot *RepoSnapshot) {
	entries, err := a.Remote.ListTree(ctx, snapshot.DefaultBranch)
	if err != nil {
		a.Log.Warn("tree listing failed, snapshot will hold no files", "error", err)
		return
	}

	selected := selectPaths(entries, a.fetchBudget())

	var (
		mu     sync.Mutex
		failed []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency())

	for _, path := range selected {
		g.Go(func() error {
			// A cancelled assembly stops issuing fetches; paths skipped
			// here are neither stored nor counted as fetch failures.
			if gctx.Err() != nil {
				return nil
			}
			blob, err := a.Remote.GetFileContent(gctx, path, snapshot.DefaultBranch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() == nil {
					a.Log.Debug("file fetch failed", "path", path, "error", err)
					failed = append(failed, path)
				}
				return nil
			}
			snapshot.Files[path] = newRepoFile(path, blob)
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors; failures degrade in place

	sort.Strings(failed)
	snapshot.FailedFetches = failed
}

// selectPaths scores blob entries, drops zero scores, and returns at most
// budget paths ordered by descending score then ascending path. The path
// tie-break keeps selection reproducible when scores collide.
func selectPaths(entries []TreeEntry, budget int) []string {
	type scored struct {
		score float64
		path  string
	}
	candidates := make([]scored, 0, len(entries))
	for _, entry := range entries {
		if entry.Type != "blob" {
			continue
		}
		if s := Score(entry.Path); s > 0 {
			candidates = append(candidates, scored{score: s, path: entry.Path})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].path < candidates[j].path
	})

	if len(candidates) > budget {
		candidates = candidates[:budget]
	}
	paths := make([]string, len(candidates))
	for i, c := range candidates {
		paths[i] = c.path
	}
	return paths
}

// newRepoFile converts a fetched blob into a stored file, truncating
// oversized content down to a marker plus a short preview so evidence stays
// bounded without disappearing entirely.
func newRepoFile(path string, blob *FileBlob) RepoFile {
	content := string(blob.Content)
	truncated := false
	if blob.Size > maxFileBytes || len(blob.Content) > maxFileBytes {
		content = truncate(content, blob.Size)
		truncated = true
	}
	return RepoFile{
		Path:         path,
		Content:      content,
		Size:         len(content),
		Truncated:    truncated,
		LastModified: blob.LastModified,
	}
}

// truncationMarker is the visible degradation flag prepended to oversized
// content. Keeping the original byte count in the marker preserves
// auditability of what was dropped.
func truncationMarker(originalSize int) string {
	return fmt.Sprintf("[File too large: %d bytes - truncated]\n", originalSize)
}

func truncate(content string, originalSize int) string {
	marker := truncationMarker(originalSize)
	runes := []rune(content)
	if len(runes) > truncatedPreviewChars {
		runes = runes[:truncatedPreviewChars]
	}
	return marker + string(runes)
}

// parseCIConfig decodes the fetched CI configuration, if any, into a generic
// mapping. A file that fails to parse simply leaves CIConfig nil — malformed
// CI config is itself evidence and stays available under Files.
func parseCIConfig(snapshot *RepoSnapshot) map[string]any {
	content, ok := snapshot.Content(ciConfigPath)
	if !ok {
		return nil
	}
	var config map[string]any
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return nil
	}
	return config
}

// recentMergeRequests lists recent merged requests and attaches approvals to
// each with bounded concurrency. Approval failures degrade to an empty set.
func (a *Assembler) recentMergeRequests(ctx context.Context) []MergeRequestSummary {
	requests, err := a.Remote.ListMergedRequests(ctx, a.maxMergeRequests())
	if err != nil {
		a.Log.Debug("merged request listing failed", "error", err)
		return nil
	}

	summaries := make([]MergeRequestSummary, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency())

	for i, mr := range requests {
		g.Go(func() error {
			approvers, err := a.Remote.GetApprovals(gctx, mr.IID)
			if err != nil {
				a.Log.Debug("approval fetch failed", "iid", mr.IID, "error", err)
				approvers = nil
			}
			// Each goroutine writes a distinct index; no lock needed.
			summaries[i] = MergeRequestSummary{
				ID:            mr.IID,
				Title:         mr.Title,
				Author:        mr.Author,
				Approvers:     approvers,
				ApproverCount: len(approvers),
				MergedAt:      mr.MergedAt,
				CIStatus:      CIStatusAssumedPassed,
				SourceBranch:  mr.SourceBranch,
				TargetBranch:  mr.TargetBranch,
			}
			return nil
		})
	}
	_ = g.Wait()

	return summaries
}

func (a *Assembler) fetchBudget() int {
	if a.FetchBudget > 0 {
		return a.FetchBudget
	}
	return DefaultFetchBudget
}

func (a *Assembler) maxMergeRequests() int {
	if a.MaxMergeRequests > 0 {
		return a.MaxMergeRequests
	}
	return DefaultMaxMergeRequests
}

func (a *Assembler) concurrency() int {
	if a.Concurrency > 0 {
		return a.Concurrency
	}
	return DefaultConcurrency
}
