package models

import "time"

// Identity is the signed-in GitHub user as returned by GET /user.
type Identity struct {
	Login       string  `json:"login"`
	Name        *string `json:"name"`
	Bio         *string `json:"bio"`
	Followers   int     `json:"followers"`
	Following   int     `json:"following"`
	PublicRepos int     `json:"public_repos"`
	Email       *string `json:"email"`
	AvatarURL   string  `json:"avatar_url"`
	HTMLURL     string  `json:"html_url,omitempty"`
}

// DisplayName returns the profile name, falling back to the login.
func (i Identity) DisplayName() string {
	if i.Name != nil && *i.Name != "" {
		return *i.Name
	}
	return i.Login
}

type RepoOwner struct {
	Login string `json:"login"`
}

// RepositorySummary is one entry of GET /users/{login}/repos.
type RepositorySummary struct {
	Name        string    `json:"name"`
	FullName    string    `json:"full_name"`
	Description *string   `json:"description"`
	Language    *string   `json:"language"`
	HTMLURL     string    `json:"html_url"`
	Stars       int       `json:"stargazers_count"`
	Forks       int       `json:"forks_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Topics      []string  `json:"topics"`
	Owner       RepoOwner `json:"owner"`
}

// ReadmeResult is the outcome of a README lookup. Absence is a valid
// result, not an error.
type ReadmeResult struct {
	Content     *string `json:"content"`
	HasReadme   bool    `json:"hasReadme"`
	DownloadURL string  `json:"downloadUrl,omitempty"`
}

// NoReadme is the result used for a missing README and for any
// per-repository fetch failure during aggregation.
func NoReadme() ReadmeResult {
	return ReadmeResult{Content: nil, HasReadme: false}
}
