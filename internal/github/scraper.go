package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sitskillbridge/skillbridge-backend/internal/model"
)

const (
	defaultAPIBase = "https://api.github.com"
	userAgent      = "SkillBridge/1.0"

	maxLanguages   = 6
	maxTopics      = 4
	maxReadmeChars = 3000
	maxReadmeBytes = 256 << 10
)

// ErrInvalidURL is returned when a URL does not name a repository.
var ErrInvalidURL = errors.New("github: cannot parse repository URL")

var ownerRepoRe = regexp.MustCompile(`(?i)github\.com/([A-Za-z0-9._-]+)/([A-Za-z0-9._-]+)`)

// ParseRepoURL extracts owner and repository name from a github.com URL.
func ParseRepoURL(raw string) (owner, repo string, err error) {
	m := ownerRepoRe.FindStringSubmatch(strings.TrimRight(strings.TrimSpace(raw), "/"))
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	owner, repo = m[1], strings.TrimSuffix(m[2], ".git")
	if repo == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return owner, repo, nil
}

// Summarizer produces a short analysis of a repository from its context.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithAPIBase points the scraper at another API host.
func WithAPIBase(base string) Option {
	return func(s *Scraper) { s.apiBase = strings.TrimRight(base, "/") }
}

// WithSummarizer enables AI summaries.
func WithSummarizer(sum Summarizer) Option {
	return func(s *Scraper) { s.summarizer = sum }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) { s.http = c }
}

// Scraper fetches public repository metadata from the GitHub REST API.
type Scraper struct {
	apiBase    string
	token      string
	http       *http.Client
	limiter    *rate.Limiter
	summarizer Summarizer
	log        zerolog.Logger
	now        func() time.Time
}

// NewScraper creates a scraper that issues at most rps API requests per second.
func NewScraper(token string, rps float64, log zerolog.Logger, opts ...Option) *Scraper {
	if rps <= 0 {
		rps = 1
	}
	s := &Scraper{
		apiBase: defaultAPIBase,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 3),
		log:     log.With().Str("component", "github_scraper").Logger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type repoResponse struct {
	FullName    string   `json:"full_name"`
	Description *string  `json:"description"`
	Stars       int      `json:"stargazers_count"`
	Language    *string  `json:"language"`
	PushedAt    string   `json:"pushed_at"`
	Topics      []string `json:"topics"`
}

// apiError carries the HTTP status of a failed API call.
type apiError struct {
	code int
}

func (e *apiError) Error() string { return fmt.Sprintf("github API status %d", e.code) }

// Scrape returns the summary of the repository at rawURL. API failures
// produce a partial result whose description explains the failure; only an
// unparseable URL is an error.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*model.GitHubRepo, error) {
	owner, repo, err := ParseRepoURL(rawURL)
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(strings.TrimSpace(rawURL), "/")
	base := fmt.Sprintf("%s/repos/%s/%s", s.apiBase, owner, repo)

	var meta repoResponse
	if err := s.getJSON(ctx, base, &meta); err != nil {
		return s.partial(url, owner, repo, err), nil
	}

	var langs map[string]int64
	if err := s.getJSON(ctx, base+"/languages", &langs); err != nil {
		return s.partial(url, owner, repo, err), nil
	}

	names := languageNames(langs)
	stack := techStack(names, meta.Topics)

	out := &model.GitHubRepo{
		URL:         url,
		Name:        meta.FullName,
		Description: "No description provided",
		TechStack:   stack,
		Stars:       meta.Stars,
		Language:    "Unknown",
		LastCommit:  meta.PushedAt,
		ScrapedAt:   s.now().UTC().Format(time.RFC3339),
	}
	if out.Name == "" {
		out.Name = owner + "/" + repo
	}
	if meta.Description != nil && *meta.Description != "" {
		out.Description = *meta.Description
	}
	if meta.Language != nil && *meta.Language != "" {
		out.Language = *meta.Language
	}

	if s.summarizer != nil {
		readme, err := s.getRaw(ctx, base+"/readme")
		if err != nil {
			s.log.Debug().Err(err).Str("repo", out.Name).Msg("README unavailable")
		}
		prompt := buildPrompt(out.Name, out.Description, meta.Topics, names, readme)
		summary, err := s.summarizer.Summarize(ctx, prompt)
		if err != nil {
			out.GeminiAnalysis = "Gemini Analysis Failed: " + err.Error()
		} else {
			out.GeminiAnalysis = strings.TrimSpace(summary)
		}
	}

	return out, nil
}

func (s *Scraper) partial(url, owner, repo string, err error) *model.GitHubRepo {
	desc := "Error fetching repo: " + err.Error()
	var ae *apiError
	if errors.As(err, &ae) {
		switch ae.code {
		case http.StatusNotFound:
			desc = "Repository Not Found. Ensure the repo is PUBLIC and the URL is correct."
		case http.StatusForbidden, http.StatusTooManyRequests:
			desc = "API Rate limit exceeded or access denied. Please try again later."
		default:
			desc = fmt.Sprintf("Could not fetch repo details (HTTP %d)", ae.code)
		}
	}
	s.log.Warn().Err(err).Str("repo", owner+"/"+repo).Msg("Partial scrape result")

	return &model.GitHubRepo{
		URL:         url,
		Name:        owner + "/" + repo,
		Description: desc,
		TechStack:   []string{},
		Language:    "Unknown",
		ScrapedAt:   s.now().UTC().Format(time.RFC3339),
	}
}

func (s *Scraper) newRequest(ctx context.Context, url, accept string) (*http.Request, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	return req, nil
}

func (s *Scraper) getJSON(ctx context.Context, url string, v any) error {
	req, err := s.newRequest(ctx, url, "application/vnd.github.v3+json")
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &apiError{code: resp.StatusCode}
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (s *Scraper) getRaw(ctx context.Context, url string) (string, error) {
	req, err := s.newRequest(ctx, url, "application/vnd.github.v3.raw")
	if err != nil {
		return "", err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &apiError{code: resp.StatusCode}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxReadmeBytes))
	return string(b), err
}

// languageNames orders languages by byte count, largest first, which is the
// order GitHub reports them in.
func languageNames(langs map[string]int64) []string {
	names := make([]string, 0, len(langs))
	for name := range langs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if langs[names[i]] != langs[names[j]] {
			return langs[names[i]] > langs[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// techStack takes the leading languages and appends up to maxTopics topics
// not already present.
func techStack(languages, topics []string) []string {
	n := len(languages)
	if n > maxLanguages {
		n = maxLanguages
	}
	stack := append([]string{}, languages[:n]...)

	if len(topics) > maxTopics {
		topics = topics[:maxTopics]
	}
	for _, t := range topics {
		dup := false
		for _, have := range stack {
			if have == t {
				dup = true
				break
			}
		}
		if !dup {
			stack = append(stack, t)
		}
	}
	return stack
}

func buildPrompt(name, description string, topics, languages []string, readme string) string {
	if len(readme) > maxReadmeChars {
		readme = readme[:maxReadmeChars]
	}
	var b strings.Builder
	b.WriteString("You are a senior technical screener. Analyze this GitHub repository context and provide a concise, ")
	b.WriteString("distinct summary of its exact purpose, the main frameworks/libraries used, and what skills this ")
	b.WriteString("project demonstrates. Max 3 sentences. Provide only your analysis, no markdown styling.\n\n")
	fmt.Fprintf(&b, "Repo Name: %s\nDescription: %s\nTopics: %s\nLanguages: %s\n\nREADME Preview:\n%s",
		name, description, strings.Join(topics, ", "), strings.Join(languages, ", "), readme)
	return b.String()
}
