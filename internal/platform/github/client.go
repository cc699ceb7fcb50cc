// Package github implements the evidence.Remote port using the official
// go-github library, so GitHub-hosted projects can be scanned with the same
// evidence engine as GitLab ones.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gogithub "github.com/google/go-github/v75/github"

	"github.com/complyops/autopilot/internal/evidence"
)

// Hub wraps an authenticated go-github client and opens per-project remotes.
// It satisfies the scan service's RemoteOpener port.
type Hub struct {
	gh *gogithub.Client
}

// NewHub creates a Hub from an authenticated *github.Client (see auth.go).
func NewHub(gh *gogithub.Client) *Hub {
	return &Hub{gh: gh}
}

// Open returns an evidence.Remote for "owner/repo".
func (h *Hub) Open(projectPath string) (evidence.Remote, error) {
	owner, repo, ok := strings.Cut(projectPath, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("project path %q: want owner/repo", projectPath)
	}
	return &Client{gh: h.gh, owner: owner, repo: repo}, nil
}

// Client scopes a go-github client to one repository. It implicitly
// satisfies evidence.Remote.
type Client struct {
	gh    *gogithub.Client
	owner string
	repo  string
}

// GetProject maps the repository record onto the fixed project shape.
// GitHub has no repo-level approval count or registry toggles; those fields
// stay at their zero values.
func (c *Client) GetProject(ctx context.Context) (*evidence.Project, error) {
	repo, _, err := c.gh.Repositories.Get(ctx, c.owner, c.repo)
	if err != nil {
		return nil, mapErr(fmt.Sprintf("repository %s/%s", c.owner, c.repo), err)
	}
	return &evidence.Project{
		Path:          repo.GetFullName(),
		DefaultBranch: repo.GetDefaultBranch(),
		Visibility:    repo.GetVisibility(),
		MergeMethod:   mergeMethod(repo),
		SecurityAndComplianceEnabled: repo.GetSecurityAndAnalysis().
			GetAdvancedSecurity().GetStatus() == "enabled",
	}, nil
}

// mergeMethod reduces GitHub's three allow-flags to the single method a
// control evaluator reasons about, preferring the strictest enabled one.
func mergeMethod(repo *gogithub.Repository) string {
	switch {
	case repo.GetAllowSquashMerge():
		return "squash"
	case repo.GetAllowRebaseMerge():
		return "rebase"
	case repo.GetAllowMergeCommit():
		return "merge"
	default:
		return ""
	}
}

// ListTree fetches the recursive git tree at ref.
func (c *Client) ListTree(ctx context.Context, ref string) ([]evidence.TreeEntry, error) {
	tree, _, err := c.gh.Git.GetTree(ctx, c.owner, c.repo, ref, true)
	if err != nil {
		return nil, mapErr("tree "+ref, err)
	}
	entries := make([]evidence.TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entries = append(entries, evidence.TreeEntry{Path: e.GetPath(), Type: e.GetType()})
	}
	return entries, nil
}

// GetFileContent fetches one file via the contents API and decodes it.
func (c *Client) GetFileContent(ctx context.Context, path, ref string) (*evidence.FileBlob, error) {
	fc, _, _, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, path,
		&gogithub.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, mapErr("file "+path, err)
	}
	if fc == nil {
		return nil, fmt.Errorf("path %s is a directory, not a file", path)
	}
	content, err := fc.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode content %s: %w", path, err)
	}
	return &evidence.FileBlob{Path: path, Content: []byte(content), Size: fc.GetSize()}, nil
}

// GetProtectedBranch maps GitHub branch protection onto the fixed shape.
// Push restrictions become push access levels; GitHub has no user-facing
// merge access levels, so that list stays empty.
func (c *Client) GetProtectedBranch(ctx context.Context, name string) (*evidence.ProtectedBranch, error) {
	protection, _, err := c.gh.Repositories.GetBranchProtection(ctx, c.owner, c.repo, name)
	if err != nil {
		return nil, mapErr("branch protection "+name, err)
	}

	out := &evidence.ProtectedBranch{Name: name}
	if force := protection.GetAllowForcePushes(); force != nil {
		out.AllowForcePush = force.Enabled
	}
	if reviews := protection.GetRequiredPullRequestReviews(); reviews != nil {
		out.CodeOwnerApprovalRequired = reviews.RequireCodeOwnerReviews
	}
	if restrictions := protection.GetRestrictions(); restrictions != nil {
		for _, u := range restrictions.Users {
			out.PushAccessLevels = append(out.PushAccessLevels, u.GetLogin())
		}
		for _, team := range restrictions.Teams {
			out.PushAccessLevels = append(out.PushAccessLevels, team.GetSlug())
		}
	}
	return out, nil
}

// ListMergedRequests lists recently updated closed pull requests and keeps
// only the merged ones, up to limit.
func (c *Client) ListMergedRequests(ctx context.Context, limit int) ([]evidence.MergeRequest, error) {
	prs, _, err := c.gh.PullRequests.List(ctx, c.owner, c.repo, &gogithub.PullRequestListOptions{
		State:       "closed",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gogithub.ListOptions{PerPage: limit},
	})
	if err != nil {
		return nil, mapErr("pull requests", err)
	}

	merged := make([]evidence.MergeRequest, 0, limit)
	for _, pr := range prs {
		if pr.MergedAt == nil {
			continue
		}
		mergedAt := pr.GetMergedAt().Time
		merged = append(merged, evidence.MergeRequest{
			IID:          pr.GetNumber(),
			Title:        pr.GetTitle(),
			Author:       pr.GetUser().GetLogin(),
			SourceBranch: pr.GetHead().GetRef(),
			TargetBranch: pr.GetBase().GetRef(),
			MergedAt:     &mergedAt,
		})
		if len(merged) == limit {
			break
		}
	}
	return merged, nil
}

// GetApprovals returns the logins whose latest review approved the PR.
func (c *Client) GetApprovals(ctx context.Context, number int) ([]string, error) {
	reviews, _, err := c.gh.PullRequests.ListReviews(ctx, c.owner, c.repo, number, nil)
	if err != nil {
		return nil, mapErr(fmt.Sprintf("reviews for #%d", number), err)
	}

	seen := make(map[string]bool)
	var approvers []string
	for _, review := range reviews {
		login := review.GetUser().GetLogin()
		if review.GetState() != "APPROVED" || login == "" || seen[login] {
			continue
		}
		seen[login] = true
		approvers = append(approvers, login)
	}
	return approvers, nil
}

// mapErr converts go-github error responses into the core error taxonomy.
func mapErr(resource string, err error) error {
	var ghErr *gogithub.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusNotFound:
			return evidence.NotFoundError{Resource: resource}
		case http.StatusUnauthorized, http.StatusForbidden:
			return evidence.UnauthorizedError{Resource: resource}
		}
	}
	return fmt.Errorf("%s: %w", resource, err)
}
