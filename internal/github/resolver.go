package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Fetch methods recorded per attempt.
const (
	MethodAPI = "api" // authenticated contents endpoint
	MethodRaw = "raw" // unauthenticated raw.githubusercontent.com
)

// Resolution is a successfully resolved file: its decoded content plus the
// branch and method that produced it.
type Resolution struct {
	Content string
	Branch  string
	Method  string
}

// Attempt records one branch/method combination that was tried and failed.
type Attempt struct {
	Branch string
	Method string
	Err    error
}

// NotFoundError means every branch in the fallback chain was exhausted,
// structured and raw alike. Branches lists each candidate exactly once, in
// attempt order.
type NotFoundError struct {
	Owner    string
	Repo     string
	Path     string
	Attempts []Attempt
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s/%s/%s not found on branches %s",
		e.Owner, e.Repo, e.Path, strings.Join(e.Branches(), ", "))
}

// Branches returns the deduplicated branch names in attempt order.
func (e *NotFoundError) Branches() []string {
	var out []string
	seen := make(map[string]bool)
	for _, a := range e.Attempts {
		if !seen[a.Branch] {
			seen[a.Branch] = true
			out = append(out, a.Branch)
		}
	}
	return out
}

// ResolveFile fetches a file's text content without knowing up front which
// branch holds it. Candidate branches are produced lazily and tried in
// order, each at most once: the caller's hint, then the repository's
// configured default branch (looked up only if the hint did not settle it),
// then "main", then "master". Every candidate is first tried through the
// authenticated contents API; only when all of those fail is the chain
// replayed against unauthenticated raw content, stopping at the first 200.
// Resolution never mutates anything and is safe to run concurrently.
func (c *Client) ResolveFile(ctx context.Context, owner, repo, path, branchHint string) (*Resolution, error) {
	if owner == "" || repo == "" || path == "" {
		return nil, fmt.Errorf("resolve: owner, repo and path are required")
	}

	// Each source yields one candidate branch name, or "" to skip. The
	// default-branch lookup is best-effort and deferred until the earlier
	// candidates have failed.
	sources := []func(context.Context) string{
		func(context.Context) string { return branchHint },
		func(ctx context.Context) string {
			info, err := c.GetRepo(ctx, owner, repo)
			if err != nil {
				return ""
			}
			return info.DefaultBranch
		},
		func(context.Context) string { return "main" },
		func(context.Context) string { return "master" },
	}

	var tried []string
	seen := make(map[string]bool)
	var attempts []Attempt
	for _, source := range sources {
		branch := source(ctx)
		if branch == "" || seen[branch] {
			continue
		}
		seen[branch] = true
		tried = append(tried, branch)
		content, err := c.GetFileText(ctx, owner, repo, path, branch)
		if err == nil {
			return &Resolution{Content: content, Branch: branch, Method: MethodAPI}, nil
		}
		attempts = append(attempts, Attempt{Branch: branch, Method: MethodAPI, Err: err})
	}
	for _, branch := range tried {
		content, err := c.fetchRaw(ctx, owner, repo, path, branch)
		if err == nil {
			return &Resolution{Content: content, Branch: branch, Method: MethodRaw}, nil
		}
		attempts = append(attempts, Attempt{Branch: branch, Method: MethodRaw, Err: err})
	}
	return nil, &NotFoundError{Owner: owner, Repo: repo, Path: path, Attempts: attempts}
}

// fetchRaw retrieves the file from raw.githubusercontent.com without
// authentication. Anything but a 200 eliminates the branch.
func (c *Client) fetchRaw(ctx context.Context, owner, repo, path, branch string) (string, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	url := fmt.Sprintf("%s/%s/%s/%s/%s", c.rawBase, owner, repo, branch, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	hc := c.hc
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("raw fetch %s@%s: %w", path, branch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("raw fetch %s@%s: status %d", path, branch, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("raw fetch %s@%s: %w", path, branch, err)
	}
	return string(body), nil
}
