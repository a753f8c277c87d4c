package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

// ErrRepoExists is returned by CreateRepo when a repository with the same
// name already exists for the authenticated user.
var ErrRepoExists = errors.New("repository already exists")

// Client wraps the GitHub REST API for a single personal access token.
// Every operation is one blocking request/response bounded by the configured
// per-call timeout; there are no retries beyond what the resolver enumerates.
type Client struct {
	token   string
	timeout time.Duration
	hc      *http.Client // optional; for tests
	rawBase string       // raw.githubusercontent.com, overridable in tests
}

func NewClient(token string, timeout time.Duration) *Client {
	return &Client{
		token:   token,
		timeout: timeout,
		rawBase: "https://raw.githubusercontent.com",
	}
}

// NewClientWithHTTPClient returns a client that uses the given http.Client
// for all API and raw-content calls (e.g. in tests).
func NewClientWithHTTPClient(token string, timeout time.Duration, hc *http.Client) *Client {
	c := NewClient(token, timeout)
	c.hc = hc
	return c
}

func (c *Client) api(ctx context.Context) *github.Client {
	if c.hc != nil {
		return github.NewClient(c.hc)
	}
	if c.token == "" {
		// Unauthenticated client for public endpoints.
		return github.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

func isConflict(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusConflict
}

// User describes the authenticated GitHub user.
type User struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// Repo is the subset of repository metadata the API surfaces.
type Repo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Description   string `json:"description"`
	Owner         string `json:"owner"`
	Private       bool   `json:"private"`
	DefaultBranch string `json:"default_branch"`
	Stars         int    `json:"stargazers_count"`
	Forks         int    `json:"forks_count"`
	OpenIssues    int    `json:"open_issues_count"`
	CreatedAt     string `json:"created_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

func repoFromGitHub(r *github.Repository) Repo {
	out := Repo{
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Description:   r.GetDescription(),
		Owner:         r.GetOwner().GetLogin(),
		Private:       r.GetPrivate(),
		DefaultBranch: r.GetDefaultBranch(),
		Stars:         r.GetStargazersCount(),
		Forks:         r.GetForksCount(),
		OpenIssues:    r.GetOpenIssuesCount(),
	}
	if ts := r.GetCreatedAt(); !ts.IsZero() {
		out.CreatedAt = ts.Format(time.RFC3339)
	}
	if ts := r.GetUpdatedAt(); !ts.IsZero() {
		out.UpdatedAt = ts.Format(time.RFC3339)
	}
	return out
}

// User looks up the user the token belongs to. An invalid or expired token
// surfaces here as an error, so login handlers use this as token validation.
func (c *Client) User(ctx context.Context) (*User, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	u, _, err := c.api(ctx).Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &User{Login: u.GetLogin(), Name: u.GetName(), AvatarURL: u.GetAvatarURL()}, nil
}

// ListRepos returns every repository of the authenticated user, following
// pagination at 100 per page.
func (c *Client) ListRepos(ctx context.Context) ([]Repo, error) {
	api := c.api(ctx)
	opts := &github.RepositoryListByAuthenticatedUserOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var out []Repo
	for {
		pageCtx, cancel := c.callCtx(ctx)
		repos, resp, err := api.Repositories.ListByAuthenticatedUser(pageCtx, opts)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("list repos: %w", err)
		}
		for _, r := range repos {
			out = append(out, repoFromGitHub(r))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (c *Client) GetRepo(ctx context.Context, owner, repo string) (*Repo, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	r, _, err := c.api(ctx).Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("get repo %s/%s: %w", owner, repo, err)
	}
	out := repoFromGitHub(r)
	return &out, nil
}

// CreateRepo creates a repository under the authenticated user with
// auto-init enabled. If a repository with that name already exists the
// result is ErrRepoExists and no creation request is issued.
func (c *Client) CreateRepo(ctx context.Context, owner, name, description string, private bool) (*Repo, error) {
	if _, err := c.GetRepo(ctx, owner, name); err == nil {
		return nil, fmt.Errorf("%s/%s: %w", owner, name, ErrRepoExists)
	} else if !isNotFound(err) {
		return nil, err
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	r, _, err := c.api(ctx).Repositories.Create(ctx, "", &github.Repository{
		Name:        github.String(name),
		Description: github.String(description),
		Private:     github.Bool(private),
		AutoInit:    github.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create repo %s: %w", name, err)
	}
	out := repoFromGitHub(r)
	return &out, nil
}

func (c *Client) DeleteRepo(ctx context.Context, owner, repo string) error {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	if _, err := c.api(ctx).Repositories.Delete(ctx, owner, repo); err != nil {
		return fmt.Errorf("delete repo %s/%s: %w", owner, repo, err)
	}
	return nil
}

// TreeEntry is one file or directory in a repository listing.
type TreeEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"` // "file" or "dir"
	DownloadURL string `json:"download_url,omitempty"`
}

// ListTree lists a repository's files on the given branch (empty means the
// repository default). It asks for the recursive git tree first and falls
// back to a non-recursive root contents listing when the tree call fails.
func (c *Client) ListTree(ctx context.Context, owner, repo, branch string) ([]TreeEntry, error) {
	if branch == "" {
		branch = "main"
		if info, err := c.GetRepo(ctx, owner, repo); err == nil && info.DefaultBranch != "" {
			branch = info.DefaultBranch
		}
	}

	treeCtx, cancel := c.callCtx(ctx)
	tree, _, err := c.api(ctx).Git.GetTree(treeCtx, owner, repo, branch, true)
	cancel()
	if err == nil {
		out := make([]TreeEntry, 0, len(tree.Entries))
		for _, e := range tree.Entries {
			path := e.GetPath()
			if path == "" {
				continue
			}
			entry := TreeEntry{Name: lastSegment(path), Path: path, Type: "dir"}
			if e.GetType() == "blob" {
				entry.Type = "file"
				entry.DownloadURL = fmt.Sprintf("%s/%s/%s/%s/%s", c.rawBase, owner, repo, branch, path)
			}
			out = append(out, entry)
		}
		return out, nil
	}

	rootCtx, cancel := c.callCtx(ctx)
	defer cancel()
	_, dir, _, err2 := c.api(ctx).Repositories.GetContents(rootCtx, owner, repo, "", nil)
	if err2 != nil {
		return nil, fmt.Errorf("list files %s/%s: %w", owner, repo, err)
	}
	out := make([]TreeEntry, 0, len(dir))
	for _, e := range dir {
		out = append(out, TreeEntry{
			Name:        e.GetName(),
			Path:        e.GetPath(),
			Type:        e.GetType(),
			DownloadURL: e.GetDownloadURL(),
		})
	}
	return out, nil
}

func lastSegment(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// GetFileText fetches a file's decoded text content at the given ref
// (empty ref means the repository default).
func (c *Client) GetFileText(ctx context.Context, owner, repo, path, ref string) (string, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	var opts *github.RepositoryContentGetOptions
	if ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: ref}
	}
	file, _, _, err := c.api(ctx).Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return "", fmt.Errorf("get %s/%s/%s: %w", owner, repo, path, err)
	}
	if file == nil {
		return "", fmt.Errorf("get %s/%s/%s: path is a directory", owner, repo, path)
	}
	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode %s/%s/%s: %w", owner, repo, path, err)
	}
	return content, nil
}

func (c *Client) FileExists(ctx context.Context, owner, repo, path string) bool {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	file, _, _, err := c.api(ctx).Repositories.GetContents(ctx, owner, repo, path, nil)
	return err == nil && file != nil
}

// UploadFile creates or updates a single file. The current blob SHA is
// looked up first; a 404 means create, anything found means update with that
// SHA. A mid-flight conflict is retried once with a fresh SHA.
func (c *Client) UploadFile(ctx context.Context, owner, repo, path string, content []byte, message string) error {
	api := c.api(ctx)
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: content,
	}

	getCtx, cancel := c.callCtx(ctx)
	existing, _, _, err := api.Repositories.GetContents(getCtx, owner, repo, path, nil)
	cancel()
	if err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("lookup %s/%s/%s: %w", owner, repo, path, err)
		}
		putCtx, cancel := c.callCtx(ctx)
		defer cancel()
		if _, _, err := api.Repositories.CreateFile(putCtx, owner, repo, path, opts); err != nil {
			return fmt.Errorf("create %s/%s/%s: %w", owner, repo, path, err)
		}
		return nil
	}
	if existing == nil {
		return fmt.Errorf("upload %s/%s/%s: path is a directory", owner, repo, path)
	}

	opts.SHA = existing.SHA
	putCtx, cancel := c.callCtx(ctx)
	_, _, err = api.Repositories.UpdateFile(putCtx, owner, repo, path, opts)
	cancel()
	if err != nil && isConflict(err) {
		// Race: file changed since the lookup. Re-fetch SHA and retry once.
		getCtx, cancel := c.callCtx(ctx)
		existing, _, _, err2 := api.Repositories.GetContents(getCtx, owner, repo, path, nil)
		cancel()
		if err2 != nil {
			return fmt.Errorf("update %s/%s/%s: %w", owner, repo, path, err)
		}
		opts.SHA = existing.SHA
		retryCtx, retryCancel := c.callCtx(ctx)
		_, _, err = api.Repositories.UpdateFile(retryCtx, owner, repo, path, opts)
		retryCancel()
	}
	if err != nil {
		return fmt.Errorf("update %s/%s/%s: %w", owner, repo, path, err)
	}
	return nil
}

// DeleteFile removes a file from the repository default branch. The blob SHA
// is looked up first; a missing file is an error.
func (c *Client) DeleteFile(ctx context.Context, owner, repo, path, message string) error {
	api := c.api(ctx)
	getCtx, cancel := c.callCtx(ctx)
	existing, _, _, err := api.Repositories.GetContents(getCtx, owner, repo, path, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("lookup %s/%s/%s: %w", owner, repo, path, err)
	}
	if existing == nil {
		return fmt.Errorf("delete %s/%s/%s: path is a directory", owner, repo, path)
	}
	delCtx, cancel := c.callCtx(ctx)
	defer cancel()
	_, _, err = api.Repositories.DeleteFile(delCtx, owner, repo, path, &github.RepositoryContentFileOptions{
		Message: github.String(message),
		SHA:     existing.SHA,
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s/%s: %w", owner, repo, path, err)
	}
	return nil
}

// UploadItem is one file in a bulk upload.
type UploadItem struct {
	Path    string
	Content []byte
}

// UploadResult is the per-file outcome of a bulk upload.
type UploadResult struct {
	Path  string `json:"path"`
	Error string `json:"error,omitempty"`
}

// BulkUpload uploads files strictly in order, one request each. A failure on
// one file never aborts the rest; the caller gets one result per input file
// in the same order.
func (c *Client) BulkUpload(ctx context.Context, owner, repo string, items []UploadItem) []UploadResult {
	results := make([]UploadResult, 0, len(items))
	for _, item := range items {
		res := UploadResult{Path: item.Path}
		if err := c.UploadFile(ctx, owner, repo, item.Path, item.Content, "Upload "+item.Path); err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results
}

// DownloadZip fetches the zipball archive of a branch. Archives can be large,
// so the deadline is three regular call timeouts.
func (c *Client) DownloadZip(ctx context.Context, owner, repo, branch string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*c.timeout)
	defer cancel()
	api := c.api(ctx)
	url, _, err := api.Repositories.GetArchiveLink(ctx, owner, repo, github.Zipball,
		&github.RepositoryContentGetOptions{Ref: branch}, 3)
	if err != nil {
		return nil, fmt.Errorf("archive link %s/%s@%s: %w", owner, repo, branch, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := api.Client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s/%s@%s: %w", owner, repo, branch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s/%s@%s: status %d", owner, repo, branch, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// SearchRepos queries public repositories, sorted by stars descending.
func (c *Client) SearchRepos(ctx context.Context, query string, perPage int) ([]Repo, error) {
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	res, _, err := c.api(ctx).Search.Repositories(ctx, query, &github.SearchOptions{
		Sort:        "stars",
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	})
	if err != nil {
		return nil, fmt.Errorf("search repos: %w", err)
	}
	out := make([]Repo, 0, len(res.Repositories))
	for _, r := range res.Repositories {
		out = append(out, repoFromGitHub(r))
	}
	return out, nil
}
