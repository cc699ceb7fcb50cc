package github_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyops/autopilot/internal/evidence"
	"github.com/complyops/autopilot/internal/platform/github"
)

// newRemote spins up a stub GitHub API and returns a Remote opened against it.
func newRemote(t *testing.T, handler http.HandlerFunc) evidence.Remote {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	remote, err := github.NewTokenHub("ghp-test", srv.URL).Open("acme/payments")
	require.NoError(t, err)
	return remote
}

func TestOpen_RejectsMalformedProjectPath(t *testing.T) {
	hub := github.NewTokenHub("ghp-test", "")

	_, err := hub.Open("just-a-name")
	require.Error(t, err)

	_, err = hub.Open("/payments")
	require.Error(t, err)
}

func TestGetProject(t *testing.T) {
	remote := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/payments", r.URL.Path)
		assert.Equal(t, "Bearer ghp-test", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{
			"full_name": "acme/payments",
			"default_branch": "main",
			"visibility": "private",
			"allow_squash_merge": true,
			"allow_merge_commit": true,
			"security_and_analysis": {"advanced_security": {"status": "enabled"}}
		}`)
	})

	p, err := remote.GetProject(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "acme/payments", p.Path)
	assert.Equal(t, "main", p.DefaultBranch)
	assert.Equal(t, "squash", p.MergeMethod) // strictest enabled method wins
	assert.True(t, p.SecurityAndComplianceEnabled)
}

func TestGetProject_NotFound(t *testing.T) {
	remote := newRemote(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})

	_, err := remote.GetProject(context.Background())
	var notFound evidence.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestListTree(t *testing.T) {
	remote := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/payments/git/trees/main", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("recursive"))
		fmt.Fprint(w, `{"tree": [
			{"path": "README.md", "type": "blob"},
			{"path": "docs", "type": "tree"},
			{"path": "docs/SECURITY.md", "type": "blob"}
		]}`)
	})

	entries, err := remote.ListTree(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, []evidence.TreeEntry{
		{Path: "README.md", Type: "blob"},
		{Path: "docs", Type: "tree"},
		{Path: "docs/SECURITY.md", Type: "blob"},
	}, entries)
}

func TestGetFileContent(t *testing.T) {
	remote := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/payments/contents/SECURITY.md", r.URL.Path)
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		fmt.Fprint(w, `{
			"type": "file",
			"name": "SECURITY.md",
			"path": "SECURITY.md",
			"size": 18,
			"encoding": "base64",
			"content": "IyBTZWN1cml0eSBQb2xpY3kK"
		}`)
	})

	blob, err := remote.GetFileContent(context.Background(), "SECURITY.md", "main")
	require.NoError(t, err)
	assert.Equal(t, "SECURITY.md", blob.Path)
	assert.Equal(t, 18, blob.Size)
	assert.Equal(t, "# Security Policy\n", string(blob.Content))
}

func TestGetProtectedBranch(t *testing.T) {
	remote := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/payments/branches/main/protection", r.URL.Path)
		fmt.Fprint(w, `{
			"allow_force_pushes": {"enabled": false},
			"required_pull_request_reviews": {"require_code_owner_reviews": true},
			"restrictions": {
				"users": [{"login": "release-bot"}],
				"teams": [{"slug": "platform"}],
				"apps": []
			}
		}`)
	})

	pb, err := remote.GetProtectedBranch(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, "main", pb.Name)
	assert.False(t, pb.AllowForcePush)
	assert.True(t, pb.CodeOwnerApprovalRequired)
	assert.Equal(t, []string{"release-bot", "platform"}, pb.PushAccessLevels)
}

func TestListMergedRequests_FiltersUnmerged(t *testing.T) {
	remote := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/payments/pulls", r.URL.Path)
		assert.Equal(t, "closed", r.URL.Query().Get("state"))
		assert.Equal(t, "updated", r.URL.Query().Get("sort"))
		fmt.Fprint(w, `[
			{
				"number": 7,
				"title": "Harden TLS config",
				"user": {"login": "dana"},
				"head": {"ref": "tls-hardening"},
				"base": {"ref": "main"},
				"merged_at": "2026-02-01T10:00:00Z"
			},
			{
				"number": 6,
				"title": "Abandoned experiment",
				"user": {"login": "lee"},
				"head": {"ref": "experiment"},
				"base": {"ref": "main"}
			}
		]`)
	})

	mrs, err := remote.ListMergedRequests(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, mrs, 1)
	assert.Equal(t, 7, mrs[0].IID)
	assert.Equal(t, "dana", mrs[0].Author)
	assert.Equal(t, "tls-hardening", mrs[0].SourceBranch)
	require.NotNil(t, mrs[0].MergedAt)
}

func TestGetApprovals_DedupesAndFiltersState(t *testing.T) {
	remote := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/payments/pulls/7/reviews", r.URL.Path)
		fmt.Fprint(w, `[
			{"user": {"login": "sam"}, "state": "APPROVED"},
			{"user": {"login": "alex"}, "state": "CHANGES_REQUESTED"},
			{"user": {"login": "sam"}, "state": "APPROVED"},
			{"user": {"login": "alex"}, "state": "APPROVED"}
		]`)
	})

	approvers, err := remote.GetApprovals(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"sam", "alex"}, approvers)
}
