// Package gitlab implements the evidence.Remote port against the GitLab
// REST API (v4) using a personal or project access token.
package gitlab

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/complyops/autopilot/internal/evidence"
)

const treePageSize = 100

// Hub holds the instance-level connection settings and opens per-project
// clients. It satisfies the scan service's RemoteOpener port.
type Hub struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHub creates a Hub for a GitLab instance, e.g. "https://gitlab.com".
func NewHub(baseURL, token string) *Hub {
	return &Hub{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Open returns an evidence.Remote scoped to one project path.
func (h *Hub) Open(projectPath string) (evidence.Remote, error) {
	return &Client{hub: h, projectID: url.PathEscape(projectPath)}, nil
}

// Client talks to a single GitLab project. It implicitly satisfies
// evidence.Remote.
type Client struct {
	hub       *Hub
	projectID string // URL-encoded project path, usable as :id in API routes
}

type glProject struct {
	PathWithNamespace                      string `json:"path_with_namespace"`
	DefaultBranch                          string `json:"default_branch"`
	Visibility                             string `json:"visibility"`
	MergeMethod                            string `json:"merge_method"`
	OnlyAllowMergeIfPipelineSucceeds       bool   `json:"only_allow_merge_if_pipeline_succeeds"`
	OnlyAllowMergeIfAllDiscussionsResolved bool   `json:"only_allow_merge_if_all_discussions_are_resolved"`
	ApprovalsBeforeMerge                   int    `json:"approvals_before_merge"`
	SecurityAndComplianceEnabled           bool   `json:"security_and_compliance_enabled"`
	ContainerRegistryEnabled               bool   `json:"container_registry_enabled"`
	PackagesEnabled                        bool   `json:"packages_enabled"`
}

// GetProject fetches the project record and its compliance-relevant settings.
func (c *Client) GetProject(ctx context.Context) (*evidence.Project, error) {
	var p glProject
	u := fmt.Sprintf("%s/api/v4/projects/%s", c.hub.baseURL, c.projectID)
	if err := c.get(ctx, u, &p); err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &evidence.Project{
		Path:                                   p.PathWithNamespace,
		DefaultBranch:                          p.DefaultBranch,
		Visibility:                             p.Visibility,
		MergeMethod:                            p.MergeMethod,
		OnlyAllowMergeIfPipelineSucceeds:       p.OnlyAllowMergeIfPipelineSucceeds,
		OnlyAllowMergeIfAllDiscussionsResolved: p.OnlyAllowMergeIfAllDiscussionsResolved,
		ApprovalsBeforeMerge:                   p.ApprovalsBeforeMerge,
		SecurityAndComplianceEnabled:           p.SecurityAndComplianceEnabled,
		ContainerRegistryEnabled:               p.ContainerRegistryEnabled,
		PackagesEnabled:                        p.PackagesEnabled,
	}, nil
}

// ListTree walks the recursive repository tree, following X-Next-Page
// pagination until the listing is exhausted.
func (c *Client) ListTree(ctx context.Context, ref string) ([]evidence.TreeEntry, error) {
	var entries []evidence.TreeEntry
	page := "1"
	for page != "" {
		u := fmt.Sprintf("%s/api/v4/projects/%s/repository/tree?recursive=true&per_page=%d&ref=%s&page=%s",
			c.hub.baseURL, c.projectID, treePageSize, url.QueryEscape(ref), page)

		var batch []struct {
			Path string `json:"path"`
			Type string `json:"type"`
		}
		next, err := c.getPaged(ctx, u, &batch)
		if err != nil {
			return nil, fmt.Errorf("list tree page %s: %w", page, err)
		}
		for _, e := range batch {
			entries = append(entries, evidence.TreeEntry{Path: e.Path, Type: e.Type})
		}
		page = next
	}
	return entries, nil
}

// GetFileContent fetches one file and decodes its base64 payload.
func (c *Client) GetFileContent(ctx context.Context, path, ref string) (*evidence.FileBlob, error) {
	u := fmt.Sprintf("%s/api/v4/projects/%s/repository/files/%s?ref=%s",
		c.hub.baseURL, c.projectID, url.PathEscape(path), url.QueryEscape(ref))

	var f struct {
		FilePath string `json:"file_path"`
		Size     int    `json:"size"`
		Encoding string `json:"encoding"`
		Content  string `json:"content"`
	}
	if err := c.get(ctx, u, &f); err != nil {
		return nil, fmt.Errorf("get file %s: %w", path, err)
	}

	raw := []byte(f.Content)
	if f.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(f.Content)
		if err != nil {
			return nil, fmt.Errorf("decode base64 content for %s: %w", path, err)
		}
		raw = decoded
	}
	return &evidence.FileBlob{Path: f.FilePath, Content: raw, Size: f.Size}, nil
}

// GetProtectedBranch fetches protection rules for one branch.
func (c *Client) GetProtectedBranch(ctx context.Context, name string) (*evidence.ProtectedBranch, error) {
	u := fmt.Sprintf("%s/api/v4/projects/%s/protected_branches/%s",
		c.hub.baseURL, c.projectID, url.PathEscape(name))

	var pb struct {
		Name             string `json:"name"`
		PushAccessLevels []struct {
			Description string `json:"access_level_description"`
		} `json:"push_access_levels"`
		MergeAccessLevels []struct {
			Description string `json:"access_level_description"`
		} `json:"merge_access_levels"`
		AllowForcePush            bool `json:"allow_force_push"`
		CodeOwnerApprovalRequired bool `json:"code_owner_approval_required"`
	}
	if err := c.get(ctx, u, &pb); err != nil {
		return nil, fmt.Errorf("get protected branch %s: %w", name, err)
	}

	out := &evidence.ProtectedBranch{
		Name:                      pb.Name,
		AllowForcePush:            pb.AllowForcePush,
		CodeOwnerApprovalRequired: pb.CodeOwnerApprovalRequired,
	}
	for _, l := range pb.PushAccessLevels {
		out.PushAccessLevels = append(out.PushAccessLevels, l.Description)
	}
	for _, l := range pb.MergeAccessLevels {
		out.MergeAccessLevels = append(out.MergeAccessLevels, l.Description)
	}
	return out, nil
}

// ListMergedRequests returns up to limit merged MRs ordered by most recent update.
func (c *Client) ListMergedRequests(ctx context.Context, limit int) ([]evidence.MergeRequest, error) {
	u := fmt.Sprintf("%s/api/v4/projects/%s/merge_requests?state=merged&order_by=updated_at&sort=desc&per_page=%d",
		c.hub.baseURL, c.projectID, limit)

	var mrs []struct {
		IID    int    `json:"iid"`
		Title  string `json:"title"`
		Author struct {
			Username string `json:"username"`
		} `json:"author"`
		SourceBranch string     `json:"source_branch"`
		TargetBranch string     `json:"target_branch"`
		MergedAt     *time.Time `json:"merged_at"`
	}
	if err := c.get(ctx, u, &mrs); err != nil {
		return nil, fmt.Errorf("list merged requests: %w", err)
	}

	out := make([]evidence.MergeRequest, len(mrs))
	for i, mr := range mrs {
		out[i] = evidence.MergeRequest{
			IID:          mr.IID,
			Title:        mr.Title,
			Author:       mr.Author.Username,
			SourceBranch: mr.SourceBranch,
			TargetBranch: mr.TargetBranch,
			MergedAt:     mr.MergedAt,
		}
	}
	return out, nil
}

// GetApprovals returns the usernames that approved the given merge request.
func (c *Client) GetApprovals(ctx context.Context, iid int) ([]string, error) {
	u := fmt.Sprintf("%s/api/v4/projects/%s/merge_requests/%d/approvals",
		c.hub.baseURL, c.projectID, iid)

	var approvals struct {
		ApprovedBy []struct {
			User struct {
				Username string `json:"username"`
			} `json:"user"`
		} `json:"approved_by"`
	}
	if err := c.get(ctx, u, &approvals); err != nil {
		return nil, fmt.Errorf("get approvals for !%d: %w", iid, err)
	}

	approvers := make([]string, 0, len(approvals.ApprovedBy))
	for _, a := range approvals.ApprovedBy {
		approvers = append(approvers, a.User.Username)
	}
	return approvers, nil
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	_, err := c.getPaged(ctx, url, out)
	return err
}

// getPaged performs one authenticated GET, decodes the JSON body into out,
// and returns the X-Next-Page header for paginated endpoints (empty when
// there is no further page).
func (c *Client) getPaged(ctx context.Context, url string, out any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", c.hub.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.hub.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer func() { //nolint:errcheck // response body close errors are non-actionable after reading
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", evidence.NotFoundError{Resource: url}
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", evidence.UnauthorizedError{Resource: url}
	default:
		return "", fmt.Errorf("GET %s returned %d", url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return resp.Header.Get("X-Next-Page"), nil
}
