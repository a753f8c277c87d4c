package api

// LoginRequest carries the personal access token used to authenticate.
type LoginRequest struct {
	Token string `json:"token"`
}

type CreateRepoRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
}

type DeleteRepoRequest struct {
	Repo string `json:"repo"`
}

type DeleteFileRequest struct {
	Repo string `json:"repo"`
	Path string `json:"path"`
}

type AddCICDRequest struct {
	Repo string `json:"repo"`
}

type RunRequest struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	Path     string `json:"path"`
	Stdin    string `json:"stdin"`
	Language string `json:"language"`
}

type SettingsRequest struct {
	Action string `json:"action"`
}
