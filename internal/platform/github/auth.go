package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gogithub "github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

const defaultAPIURL = "https://api.github.com"

// NewTokenHub builds a Hub authenticated with a personal access token.
// An empty baseURL targets the real GitHub API; anything else (e.g. an
// httptest server) overrides it.
func NewTokenHub(token, baseURL string) *Hub {
	var httpClient *http.Client
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), src)
	}
	gh := gogithub.NewClient(httpClient)
	applyBaseURL(gh, baseURL)
	return NewHub(gh)
}

// NewAppHub builds a Hub authenticated as a GitHub App installation.
// privateKeyPath points at the app's PEM key.
func NewAppHub(appID, installationID int64, privateKeyPath, baseURL string) (*Hub, error) {
	apiURL := baseURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	transport, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, appID, installationID, privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("github app auth: %w", err)
	}
	transport.BaseURL = apiURL

	gh := gogithub.NewClient(&http.Client{Transport: transport})
	applyBaseURL(gh, baseURL)
	return NewHub(gh), nil
}

func applyBaseURL(gh *gogithub.Client, baseURL string) {
	if baseURL == "" || baseURL == defaultAPIURL {
		return
	}
	u, err := url.Parse(baseURL + "/")
	if err != nil {
		return
	}
	gh.BaseURL = u
}
