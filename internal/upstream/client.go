package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sitskillbridge/skillbridge-backend/internal/model"
)

var (
	// ErrUnavailable wraps every failure to obtain a usable upstream response.
	ErrUnavailable = errors.New("upstream: unavailable")
	// ErrEmptyQuestionSet is returned when the question source answers with no questions.
	ErrEmptyQuestionSet = errors.New("upstream: empty question set")
)

// maxErrorBody bounds how much of a failed response is read for the error message.
const maxErrorBody = 4 << 10

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream %s: status %d: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("upstream %s: status %d", e.Path, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrUnavailable }

// Client talks to the analysis backend that owns question generation and
// the career, skill-gap, SWOT and roadmap models.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a client for baseURL. timeout bounds each request.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "upstream_client").Logger(),
	}
}

// FetchUserTest fetches a personalised question set.
func (c *Client) FetchUserTest(ctx context.Context, domain string, skills []string) ([]model.Question, error) {
	params := url.Values{}
	params.Set("domain", domain)
	params.Set("skills", strings.Join(skills, ","))

	path := "/api/mcq/user-test"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, path)
	if err != nil {
		return nil, err
	}

	var questions []model.Question
	if err := json.Unmarshal(body, &questions); err != nil {
		return nil, fmt.Errorf("%w: decode question set: %v", ErrUnavailable, err)
	}
	if len(questions) == 0 {
		return nil, ErrEmptyQuestionSet
	}

	c.log.Debug().
		Str("domain", domain).
		Int("skills", len(skills)).
		Int("questions", len(questions)).
		Msg("Question set fetched")

	return questions, nil
}

// PostJSON posts an opaque JSON body to path and returns the opaque JSON
// response. A response that is not valid JSON is an error.
func (c *Client) PostJSON(ctx context.Context, path string, body json.RawMessage) (json.RawMessage, error) {
	if len(body) == 0 {
		body = json.RawMessage("{}")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	out, err := c.do(req, path)
	if err != nil {
		return nil, err
	}
	if !json.Valid(out) {
		return nil, fmt.Errorf("%w: %s returned invalid JSON", ErrUnavailable, path)
	}
	return json.RawMessage(out), nil
}

func (c *Client) do(req *http.Request, path string) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.log.Warn().
			Str("path", path).
			Int("status", resp.StatusCode).
			Dur("elapsed", time.Since(start)).
			Msg("Upstream returned error status")
		return nil, &StatusError{Path: path, Code: resp.StatusCode, Message: errorMessage(raw)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, path, err)
	}
	return body, nil
}

// errorMessage extracts {"error": "..."} from an error body, falling back to
// the trimmed text.
func errorMessage(raw []byte) string {
	var env struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &env) == nil && env.Error != "" {
		return env.Error
	}
	return strings.TrimSpace(string(raw))
}
