package models

import "time"

// PayloadEntry is one repository flattened together with its README.
type PayloadEntry struct {
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Language    *string   `json:"language"`
	Stars       int       `json:"stars"`
	Forks       int       `json:"forks"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Topics      []string  `json:"topics"`
	Owner       string    `json:"owner"`
	URL         string    `json:"url,omitempty"`
	Readme      *string   `json:"readme"`
	HasReadme   bool      `json:"hasReadme"`
}

// NewPayloadEntry merges a repository with its README result.
func NewPayloadEntry(repo RepositorySummary, readme ReadmeResult) PayloadEntry {
	topics := repo.Topics
	if topics == nil {
		topics = []string{}
	}
	return PayloadEntry{
		Name:        repo.Name,
		Description: repo.Description,
		Language:    repo.Language,
		Stars:       repo.Stars,
		Forks:       repo.Forks,
		CreatedAt:   repo.CreatedAt,
		UpdatedAt:   repo.UpdatedAt,
		Topics:      topics,
		Owner:       repo.Owner.Login,
		URL:         repo.HTMLURL,
		Readme:      readme.Content,
		HasReadme:   readme.HasReadme,
	}
}

// Payload is the unit passed from aggregation to generation. Repositories
// keep the order in which they were listed upstream.
type Payload struct {
	User         Identity       `json:"user"`
	Repositories []PayloadEntry `json:"repositories"`
}

// GeneratedPortfolio is the response of a generation backend. Portfolio is
// returned verbatim.
type GeneratedPortfolio struct {
	Success      bool     `json:"success"`
	Portfolio    string   `json:"portfolio"`
	User         Identity `json:"user"`
	ProjectCount int      `json:"projectCount"`
	AIModel      string   `json:"aiModel,omitempty"`
}

// GenerationRecord is audit metadata for one generation attempt.
type GenerationRecord struct {
	ID           string        `json:"id"`
	Login        string        `json:"login"`
	Backend      string        `json:"backend"`
	Model        string        `json:"model"`
	ProjectCount int           `json:"project_count"`
	Success      bool          `json:"success"`
	Duration     time.Duration `json:"duration"`
	CreatedAt    time.Time     `json:"created_at"`
}
