package github

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		in        string
		owner     string
		repo      string
		shouldErr bool
	}{
		{"https://github.com/golang/go", "golang", "go", false},
		{"https://github.com/golang/go/", "golang", "go", false},
		{"https://github.com/rs/zerolog.git", "rs", "zerolog", false},
		{"github.com/gin-gonic/gin/tree/master/binding", "gin-gonic", "gin", false},
		{"https://GitHub.com/Owner/Repo", "Owner", "Repo", false},
		{"https://gitlab.com/a/b", "", "", true},
		{"https://github.com/onlyowner", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			owner, repo, err := ParseRepoURL(tt.in)
			if tt.shouldErr {
				require.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
		})
	}
}

type stubSummarizer struct {
	prompt string
	out    string
	err    error
}

func (s *stubSummarizer) Summarize(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.out, s.err
}

func fakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widget", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SkillBridge/1.0", r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, `{"full_name":"acme/widget","description":null,"stargazers_count":42,
			"language":"Go","pushed_at":"2024-05-01T10:00:00Z","topics":["go","cli","docker","k8s","extra"]}`)
	})
	mux.HandleFunc("/repos/acme/widget/languages", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"Go":9000,"Shell":50,"Makefile":10,"Dockerfile":20,"HTML":300,"CSS":200,"JavaScript":100}`)
	})
	mux.HandleFunc("/repos/acme/widget/readme", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "# Widget\nA tool.")
	})
	mux.HandleFunc("/repos/acme/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/repos/acme/limited", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestScrape_FullResult(t *testing.T) {
	srv := fakeGitHub(t)
	sum := &stubSummarizer{out: "  A CLI tool in Go.  "}
	s := NewScraper("", 100, zerolog.Nop(), WithAPIBase(srv.URL), WithSummarizer(sum))
	s.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	got, err := s.Scrape(context.Background(), "https://github.com/acme/widget/")
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/acme/widget", got.URL)
	assert.Equal(t, "acme/widget", got.Name)
	assert.Equal(t, "No description provided", got.Description)
	assert.Equal(t, 42, got.Stars)
	assert.Equal(t, "Go", got.Language)
	assert.Equal(t, "2024-05-01T10:00:00Z", got.LastCommit)
	assert.Equal(t, "2024-06-01T00:00:00Z", got.ScrapedAt)
	assert.Equal(t,
		[]string{"Go", "HTML", "CSS", "JavaScript", "Shell", "Dockerfile", "go", "cli", "docker", "k8s"},
		got.TechStack)
	assert.Equal(t, "A CLI tool in Go.", got.GeminiAnalysis)
	assert.Contains(t, sum.prompt, "Repo Name: acme/widget")
	assert.Contains(t, sum.prompt, "# Widget")
}

func TestScrape_PartialResults(t *testing.T) {
	srv := fakeGitHub(t)
	s := NewScraper("", 100, zerolog.Nop(), WithAPIBase(srv.URL))

	got, err := s.Scrape(context.Background(), "https://github.com/acme/missing")
	require.NoError(t, err)
	assert.Equal(t, "acme/missing", got.Name)
	assert.True(t, strings.HasPrefix(got.Description, "Repository Not Found"))
	assert.Empty(t, got.TechStack)
	assert.Equal(t, "Unknown", got.Language)

	got, err = s.Scrape(context.Background(), "https://github.com/acme/limited")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got.Description, "API Rate limit exceeded"))
}

func TestScrape_SummarizerFailureIsRecorded(t *testing.T) {
	srv := fakeGitHub(t)
	s := NewScraper("", 100, zerolog.Nop(), WithAPIBase(srv.URL),
		WithSummarizer(&stubSummarizer{err: errors.New("quota")}))

	got, err := s.Scrape(context.Background(), "https://github.com/acme/widget")
	require.NoError(t, err)
	assert.Equal(t, "Gemini Analysis Failed: quota", got.GeminiAnalysis)
}

func TestScrape_InvalidURL(t *testing.T) {
	s := NewScraper("", 1, zerolog.Nop())
	_, err := s.Scrape(context.Background(), "not a url")
	require.ErrorIs(t, err, ErrInvalidURL)
}
