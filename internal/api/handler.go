package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/gitsmart/gitsmart/internal/archive"
	"github.com/gitsmart/gitsmart/internal/config"
	gh "github.com/gitsmart/gitsmart/internal/github"
	"github.com/gitsmart/gitsmart/internal/metrics"
	"github.com/gitsmart/gitsmart/internal/piston"
	"github.com/gitsmart/gitsmart/internal/session"
)

const maxUploadBytes = 32 << 20

// GitHub is the slice of the GitHub client the handlers need. Implemented by
// *github.Client; inject a fake in tests.
type GitHub interface {
	User(ctx context.Context) (*gh.User, error)
	ListRepos(ctx context.Context) ([]gh.Repo, error)
	CreateRepo(ctx context.Context, owner, name, description string, private bool) (*gh.Repo, error)
	DeleteRepo(ctx context.Context, owner, repo string) error
	ListTree(ctx context.Context, owner, repo, branch string) ([]gh.TreeEntry, error)
	ResolveFile(ctx context.Context, owner, repo, path, branchHint string) (*gh.Resolution, error)
	DeleteFile(ctx context.Context, owner, repo, path, message string) error
	BulkUpload(ctx context.Context, owner, repo string, items []gh.UploadItem) []gh.UploadResult
	DownloadZip(ctx context.Context, owner, repo, branch string) ([]byte, error)
	SearchRepos(ctx context.Context, query string, perPage int) ([]gh.Repo, error)
	EnsureReadme(ctx context.Context, owner, repo string) error
	EnsureLicense(ctx context.Context, owner, repo string) error
	EnsureWorkflow(ctx context.Context, owner, repo string) (bool, error)
}

// Executor runs code remotely. Implemented by *piston.Client.
type Executor interface {
	Execute(ctx context.Context, language string, files []piston.File, stdin string) (*piston.Result, error)
}

type Handler struct {
	sessions  *session.Store
	newGitHub func(token string) GitHub
	exec      Executor
	metrics   *metrics.Collector
}

func NewHandler(cfg *config.Config, sessions *session.Store, col *metrics.Collector) *Handler {
	return &Handler{
		sessions: sessions,
		newGitHub: func(token string) GitHub {
			return gh.NewClient(token, cfg.GitHubTimeout)
		},
		exec:    piston.NewClient(cfg.PistonEndpoints, cfg.PistonTimeout),
		metrics: col,
	}
}

// NewHandlerWithClients builds a handler with custom GitHub and executor
// factories (e.g. for tests).
func NewHandlerWithClients(sessions *session.Store, newGitHub func(token string) GitHub, exec Executor) *Handler {
	return &Handler{sessions: sessions, newGitHub: newGitHub, exec: exec}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondOK wraps the payload in the success envelope.
func respondOK(w http.ResponseWriter, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["success"] = true
	respondJSON(w, http.StatusOK, payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]any{"success": false, "error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// github returns a client bound to the request's session token, or an
// unauthenticated client when no session is present.
func (h *Handler) github(r *http.Request) GitHub {
	if sess := SessionFromContext(r.Context()); sess != nil {
		return h.newGitHub(sess.Token)
	}
	return h.newGitHub("")
}

func (h *Handler) recordGitHub(operation string, err error) {
	if h.metrics != nil {
		h.metrics.RecordGitHubCall(operation, err)
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Login validates the submitted token against the user endpoint and opens a
// session. The token itself never leaves the server afterwards.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		respondError(w, http.StatusBadRequest, "token required")
		return
	}
	user, err := h.newGitHub(token).User(r.Context())
	h.recordGitHub("get_user", err)
	if err != nil {
		log.Warn().Err(err).Msg("login rejected")
		respondError(w, http.StatusUnauthorized, "invalid token or missing repo scopes")
		return
	}
	sess := h.sessions.Create(token, user.Login)
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
	respondOK(w, map[string]any{"username": user.Login})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(session.CookieName); err == nil {
		h.sessions.Delete(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	respondOK(w, map[string]any{"message": "Logged out"})
}

func (h *Handler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	respondOK(w, map[string]any{"username": sess.Username})
}

// Settings reports session state on GET and accepts a logout action on POST.
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		sess := SessionFromContext(r.Context())
		payload := map[string]any{"authenticated": sess != nil}
		if sess != nil {
			payload["username"] = sess.Username
		}
		respondOK(w, payload)
		return
	}
	var req SettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Action != "logout" {
		respondError(w, http.StatusBadRequest, "unknown action")
		return
	}
	h.Logout(w, r)
}

func (h *Handler) Repos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.github(r).ListRepos(r.Context())
	h.recordGitHub("list_repos", err)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if repos == nil {
		repos = []gh.Repo{}
	}
	respondOK(w, map[string]any{"repos": repos})
}

func (h *Handler) PublicRepos(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		query = "stars:>20000"
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	repos, err := h.github(r).SearchRepos(r.Context(), query, perPage)
	h.recordGitHub("search_repos", err)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondOK(w, map[string]any{"repos": repos})
}

func (h *Handler) CreateRepo(w http.ResponseWriter, r *http.Request) {
	var req CreateRepoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "name required")
		return
	}
	description := req.Description
	if description == "" {
		description = "Repository created with GitSmart"
	}
	sess := SessionFromContext(r.Context())
	client := h.github(r)
	_, err := client.CreateRepo(r.Context(), sess.Username, name, description, req.Private)
	h.recordGitHub("create_repo", err)
	if err != nil {
		if errors.Is(err, gh.ErrRepoExists) {
			respondError(w, http.StatusConflict, fmt.Sprintf("repository %q already exists", name))
			return
		}
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	// Boilerplate provisioning is best-effort; a failure here must not fail
	// the creation that already happened.
	for _, ensure := range []func(context.Context, string, string) error{
		client.EnsureReadme, client.EnsureLicense,
	} {
		if err := ensure(r.Context(), sess.Username, name); err != nil {
			log.Warn().Err(err).Str("repo", name).Msg("boilerplate provisioning failed")
		}
	}
	if _, err := client.EnsureWorkflow(r.Context(), sess.Username, name); err != nil {
		log.Warn().Err(err).Str("repo", name).Msg("workflow provisioning failed")
	}
	respondOK(w, map[string]any{"message": fmt.Sprintf("Repository %s created successfully!", name)})
}

func (h *Handler) DeleteRepo(w http.ResponseWriter, r *http.Request) {
	var req DeleteRepoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	repo := strings.TrimSpace(req.Repo)
	if repo == "" {
		respondError(w, http.StatusBadRequest, "repo required")
		return
	}
	sess := SessionFromContext(r.Context())
	err := h.github(r).DeleteRepo(r.Context(), sess.Username, repo)
	h.recordGitHub("delete_repo", err)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondOK(w, map[string]any{"message": fmt.Sprintf("Repository %s deleted successfully!", repo)})
}

// ownerParam resolves the owner query parameter, defaulting to the session
// user when authenticated.
func ownerParam(r *http.Request) string {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	if owner == "" {
		if sess := SessionFromContext(r.Context()); sess != nil {
			owner = sess.Username
		}
	}
	return owner
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	owner := ownerParam(r)
	repo := strings.TrimSpace(r.URL.Query().Get("repo"))
	if owner == "" || repo == "" {
		respondError(w, http.StatusBadRequest, "owner and repo required")
		return
	}
	branch := strings.TrimSpace(r.URL.Query().Get("branch"))
	entries, err := h.github(r).ListTree(r.Context(), owner, repo, branch)
	h.recordGitHub("list_tree", err)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if entries == nil {
		entries = []gh.TreeEntry{}
	}
	respondOK(w, map[string]any{"files": entries})
}

func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	owner := ownerParam(r)
	repo := strings.TrimSpace(r.URL.Query().Get("repo"))
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	branch := strings.TrimSpace(r.URL.Query().Get("branch"))
	if owner == "" || repo == "" || path == "" {
		respondError(w, http.StatusBadRequest, "owner, repo, path required")
		return
	}
	res, err := h.github(r).ResolveFile(r.Context(), owner, repo, path, branch)
	h.recordGitHub("resolve_file", err)
	if err != nil {
		var nf *gh.NotFoundError
		if errors.As(err, &nf) {
			respondJSON(w, http.StatusNotFound, map[string]any{
				"success": false,
				"error":   "file not found on branches tried",
				"tried":   nf.Branches(),
			})
			return
		}
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if h.metrics != nil {
		h.metrics.RecordResolverAttempt(res.Method)
	}
	respondOK(w, map[string]any{"path": path, "branch": res.Branch, "content": res.Content})
}

func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	var req DeleteFileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	repo := strings.TrimSpace(req.Repo)
	path := strings.TrimSpace(req.Path)
	if repo == "" || path == "" {
		respondError(w, http.StatusBadRequest, "repo and path required")
		return
	}
	sess := SessionFromContext(r.Context())
	err := h.github(r).DeleteFile(r.Context(), sess.Username, repo, path, "Delete "+path)
	h.recordGitHub("delete_file", err)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondOK(w, map[string]any{"message": fmt.Sprintf("File %s deleted from %s", path, repo)})
}

// UploadFiles accepts a multipart form with a repo field and one or more
// files. Zip archives are expanded into their entries before upload. The
// response carries one result per uploaded file; individual failures never
// abort the batch.
func (h *Handler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	repo := strings.TrimSpace(r.FormValue("repo"))
	if repo == "" {
		respondError(w, http.StatusBadRequest, "repo required")
		return
	}
	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		respondError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	var items []gh.UploadItem
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("read %s: %v", fh.Filename, err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("read %s: %v", fh.Filename, err))
			return
		}
		name := filepath.Base(fh.Filename)
		if strings.EqualFold(filepath.Ext(name), ".zip") {
			entries, err := archive.ExtractZip(data)
			if err != nil {
				respondError(w, http.StatusBadRequest, fmt.Sprintf("extract %s: %v", name, err))
				return
			}
			for _, e := range entries {
				items = append(items, gh.UploadItem{Path: e.Path, Content: e.Content})
			}
			continue
		}
		items = append(items, gh.UploadItem{Path: name, Content: data})
	}

	sess := SessionFromContext(r.Context())
	results := h.github(r).BulkUpload(r.Context(), sess.Username, repo, items)
	failures := 0
	for _, res := range results {
		if res.Error != "" {
			failures++
		}
	}
	h.recordGitHub("bulk_upload", nil)
	respondOK(w, map[string]any{
		"message":  fmt.Sprintf("Uploaded %d files (%d failed)", len(results)-failures, failures),
		"files":    results,
		"failures": failures,
	})
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	repo := chi.URLParam(r, "repo")
	branch := strings.TrimSpace(r.URL.Query().Get("branch"))
	if branch == "" {
		branch = "main"
	}

	client := h.github(r)
	var data []byte
	var err error
	seen := make(map[string]bool)
	for _, b := range []string{branch, "main", "master"} {
		if seen[b] {
			continue
		}
		seen[b] = true
		data, err = client.DownloadZip(r.Context(), owner, repo, b)
		h.recordGitHub("download_zip", err)
		if err == nil {
			branch = b
			break
		}
	}
	if err != nil {
		respondError(w, http.StatusNotFound, "could not find branch zip")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s-%s.zip", repo, branch)))
	w.Write(data)
}

func (h *Handler) AddCICD(w http.ResponseWriter, r *http.Request) {
	var req AddCICDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	repo := strings.TrimSpace(req.Repo)
	if repo == "" {
		respondError(w, http.StatusBadRequest, "repo required")
		return
	}
	sess := SessionFromContext(r.Context())
	existed, err := h.github(r).EnsureWorkflow(r.Context(), sess.Username, repo)
	h.recordGitHub("ensure_workflow", err)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	msg := "CI/CD workflow added"
	if existed {
		msg = "CI/CD workflow already present"
	}
	respondOK(w, map[string]any{"message": msg})
}

// Run fetches the file through the resolver and executes it remotely.
// HTML and CSS are returned as a preview payload instead of being executed.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess := SessionFromContext(r.Context())
	owner := strings.TrimSpace(req.Owner)
	if owner == "" {
		owner = sess.Username
	}
	repo := strings.TrimSpace(req.Repo)
	path := strings.TrimSpace(req.Path)
	if owner == "" || repo == "" || path == "" {
		respondError(w, http.StatusBadRequest, "owner, repo, path required")
		return
	}

	res, err := h.github(r).ResolveFile(r.Context(), owner, repo, path, "")
	h.recordGitHub("resolve_file", err)
	if err != nil {
		var nf *gh.NotFoundError
		if errors.As(err, &nf) {
			respondJSON(w, http.StatusNotFound, map[string]any{
				"success": false,
				"error":   "could not fetch file content",
				"tried":   nf.Branches(),
			})
			return
		}
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".css") {
		respondOK(w, map[string]any{"preview": true, "content": res.Content, "path": path})
		return
	}
	if strings.HasSuffix(lower, ".jsx") || strings.HasSuffix(lower, ".tsx") {
		respondError(w, http.StatusBadRequest, "React/JSX requires a build step; preview HTML instead")
		return
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = piston.DetectLanguage(path)
	}
	if language == "" {
		respondError(w, http.StatusBadRequest, "could not detect language")
		return
	}

	result, err := h.exec.Execute(r.Context(), language, []piston.File{
		{Name: filepath.Base(path), Content: res.Content},
	}, req.Stdin)
	if err != nil {
		respondError(w, http.StatusBadGateway, "execution service failed")
		return
	}
	respondOK(w, map[string]any{
		"stdout":    result.Stdout,
		"stderr":    result.Stderr,
		"exit_code": result.ExitCode,
		"language":  language,
		"file":      path,
	})
}
