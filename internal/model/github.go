package model

// GitHubScrapeRequest is the payload for scraping a public repository.
type GitHubScrapeRequest struct {
	URL string `json:"url" binding:"required,url,max=300"`
}

// GitHubRepo is the summary of a public repository.
type GitHubRepo struct {
	URL            string   `json:"url"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	TechStack      []string `json:"techStack"`
	Stars          int      `json:"stars"`
	Language       string   `json:"language"`
	LastCommit     string   `json:"lastCommit"`
	GeminiAnalysis string   `json:"geminiAnalysis,omitempty"`
	ScrapedAt      string   `json:"scrapedAt"`
}
