package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// RepoRef identifies a GitHub repository.
type RepoRef struct {
	Host  string
	Owner string
	Name  string
}

var sshRemotePattern = regexp.MustCompile(`^(?:ssh://)?git@([^:/]+)[:/](.+?)(?:\.git)?/?$`)

// ParseRepoRef extracts owner and repository from an origin remote URL,
// accepting both SSH (git@host:owner/repo.git) and HTTPS forms.
func ParseRepoRef(remoteURL string) (RepoRef, error) {
	remoteURL = strings.TrimSpace(remoteURL)

	if m := sshRemotePattern.FindStringSubmatch(remoteURL); m != nil {
		owner, name, ok := splitOwnerRepo(m[2])
		if !ok {
			return RepoRef{}, fmt.Errorf("cannot parse owner/repo from remote %q", remoteURL)
		}
		return RepoRef{Host: m[1], Owner: owner, Name: name}, nil
	}

	if strings.HasPrefix(remoteURL, "https://") || strings.HasPrefix(remoteURL, "http://") {
		trimmed := strings.TrimPrefix(strings.TrimPrefix(remoteURL, "https://"), "http://")
		host, path, ok := strings.Cut(trimmed, "/")
		if !ok {
			return RepoRef{}, fmt.Errorf("cannot parse owner/repo from remote %q", remoteURL)
		}
		path = strings.TrimSuffix(strings.TrimSuffix(path, "/"), ".git")
		owner, name, ok := splitOwnerRepo(path)
		if !ok {
			return RepoRef{}, fmt.Errorf("cannot parse owner/repo from remote %q", remoteURL)
		}
		return RepoRef{Host: host, Owner: owner, Name: name}, nil
	}

	return RepoRef{}, fmt.Errorf("unsupported remote URL %q", remoteURL)
}

func splitOwnerRepo(path string) (owner, name string, ok bool) {
	parts := strings.Split(strings.TrimSuffix(path, ".git"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// PushURL returns the HTTPS push endpoint for the repository.
func (r RepoRef) PushURL() string {
	return fmt.Sprintf("https://%s/%s/%s.git", r.Host, r.Owner, r.Name)
}

func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

// PullRequest is the subset of pull request data the pipeline reports back.
type PullRequest struct {
	Number int
	URL    string
	NodeID string
}

// GitHubClient wraps the GitHub REST and GraphQL APIs behind the two calls
// the pipeline makes.
type GitHubClient struct {
	rest       *github.Client
	httpClient *http.Client
	graphqlURL string
}

// NewGitHubClient builds a token-authenticated client.
func NewGitHubClient(ctx context.Context, token string) *GitHubClient {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	hc := oauth2.NewClient(ctx, src)
	return &GitHubClient{
		rest:       github.NewClient(hc),
		httpClient: hc,
		graphqlURL: "https://api.github.com/graphql",
	}
}

// WithBaseURLs redirects API traffic, used by tests against a local server.
func (c *GitHubClient) WithBaseURLs(restBase, graphqlURL string) (*GitHubClient, error) {
	rest, err := c.rest.WithEnterpriseURLs(restBase, restBase)
	if err != nil {
		return nil, fmt.Errorf("configure REST base URL: %w", err)
	}
	return &GitHubClient{rest: rest, httpClient: c.httpClient, graphqlURL: graphqlURL}, nil
}

// CreatePullRequest opens a PR from head into base.
func (c *GitHubClient) CreatePullRequest(ctx context.Context, repo RepoRef, head, base, title, body string) (*PullRequest, error) {
	pr, _, err := c.rest.PullRequests.Create(ctx, repo.Owner, repo.Name, &github.NewPullRequest{
		Title: github.String(title),
		Head:  github.String(head),
		Base:  github.String(base),
		Body:  github.String(body),
	})
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) {
			status := 0
			if ghErr.Response != nil {
				status = ghErr.Response.StatusCode
			}
			return nil, &StatusError{
				Code: http.StatusBadGateway,
				Msg:  fmt.Sprintf("GitHub rejected the pull request (status %d): %s", status, ghErr.Message),
			}
		}
		return nil, fmt.Errorf("create pull request: %w", err)
	}
	return &PullRequest{
		Number: pr.GetNumber(),
		URL:    pr.GetHTMLURL(),
		NodeID: pr.GetNodeID(),
	}, nil
}

const enableAutoMergeMutation = `mutation($pullRequestId: ID!) {
  enablePullRequestAutoMerge(input: {pullRequestId: $pullRequestId, mergeMethod: SQUASH}) {
    pullRequest { number }
  }
}`

// EnableAutoMerge asks GitHub to auto-merge the pull request once its checks
// pass. The GraphQL API is the only surface that exposes this.
func (c *GitHubClient) EnableAutoMerge(ctx context.Context, prNodeID string) error {
	payload, err := json.Marshal(map[string]any{
		"query":     enableAutoMergeMutation,
		"variables": map[string]string{"pullRequestId": prNodeID},
	})
	if err != nil {
		return fmt.Errorf("marshal auto-merge request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build auto-merge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call GitHub GraphQL API: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read auto-merge response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GitHub GraphQL API returned status %d", resp.StatusCode)
	}

	var result struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("decode auto-merge response: %w", err)
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("enable auto-merge: %s", result.Errors[0].Message)
	}
	return nil
}

// BuildPullRequestBody renders the PR description for a submission.
func BuildPullRequestBody(sub *Submission) string {
	autoMerge := "no"
	if sub.AutoMerge {
		autoMerge = "yes"
	}
	return strings.Join([]string{
		"## Local Content Intake",
		"",
		fmt.Sprintf("- Type: %s", sub.Type),
		fmt.Sprintf("- Mode: %s", sub.Mode),
		fmt.Sprintf("- Slug: %s", sub.Slug()),
		fmt.Sprintf("- Auto-merge requested: %s", autoMerge),
	}, "\n")
}
