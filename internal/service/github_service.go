package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sitskillbridge/skillbridge-backend/internal/github"
	"github.com/sitskillbridge/skillbridge-backend/internal/model"
)

// RepoScraper summarises a public repository.
type RepoScraper interface {
	Scrape(ctx context.Context, url string) (*model.GitHubRepo, error)
}

// GitHubResult is a scraped repository and whether it was persisted.
type GitHubResult struct {
	Repo    *model.GitHubRepo `json:"repo"`
	SavedOK bool              `json:"saved_ok"`
}

// GitHubService scrapes repositories for a user's project portfolio.
type GitHubService struct {
	scraper RepoScraper
	docs    *DocumentService
	log     zerolog.Logger
}

// NewGitHubService creates a new GitHubService.
func NewGitHubService(scraper RepoScraper, docs *DocumentService, log zerolog.Logger) *GitHubService {
	return &GitHubService{
		scraper: scraper,
		docs:    docs,
		log:     log.With().Str("component", "github_service").Logger(),
	}
}

// Scrape summarises the repository at url and merges it into the user's
// github_scrapes document under "owner/repo". Scraping the same repository
// again replaces its entry and leaves the others.
func (s *GitHubService) Scrape(ctx context.Context, userID, url string) (*GitHubResult, error) {
	owner, name, err := github.ParseRepoURL(url)
	if err != nil {
		return nil, err
	}

	repo, err := s.scraper.Scrape(ctx, url)
	if err != nil {
		return nil, err
	}

	key := strings.ToLower(owner + "/" + name)
	saved := s.docs.Save(ctx, model.CollectionGitHubScrapes, userID, map[string]any{key: repo})

	s.log.Info().
		Str("user_id", userID).
		Str("repo", key).
		Int("stars", repo.Stars).
		Bool("saved", saved).
		Msg("Repository scraped")

	return &GitHubResult{Repo: repo, SavedOK: saved}, nil
}
