package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sitskillbridge/skillbridge-backend/internal/metrics"
	"github.com/sitskillbridge/skillbridge-backend/internal/model"
	"github.com/sitskillbridge/skillbridge-backend/internal/repository"
)

var (
	ErrUnknownAnalysis = errors.New("unknown analysis kind")
	ErrInvalidPayload  = errors.New("analysis payload must be a JSON object")
)

// JSONPoster posts opaque JSON bodies to the analysis backend.
type JSONPoster interface {
	PostJSON(ctx context.Context, path string, body json.RawMessage) (json.RawMessage, error)
}

// AnalysisResult is the upstream answer and whether it was persisted.
type AnalysisResult struct {
	Result  json.RawMessage `json:"result"`
	SavedOK bool            `json:"saved_ok"`
}

// AnalysisService proxies the career, skill-gap, SWOT and roadmap analyses
// and keeps the latest result of each in the user's documents.
type AnalysisService struct {
	upstream JSONPoster
	docs     *DocumentService
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time
}

// NewAnalysisService creates a new AnalysisService.
func NewAnalysisService(upstream JSONPoster, docs *DocumentService, m *metrics.Metrics, log zerolog.Logger) *AnalysisService {
	return &AnalysisService{
		upstream: upstream,
		docs:     docs,
		metrics:  m,
		log:      log.With().Str("component", "analysis_service").Logger(),
		now:      time.Now,
	}
}

// Run posts body to the endpoint of kind and merges the result into the
// kind's collection.
func (s *AnalysisService) Run(ctx context.Context, kind model.AnalysisKind, userID string, body json.RawMessage) (*AnalysisResult, error) {
	path := kind.Path()
	if path == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAnalysis, kind)
	}

	payload := map[string]json.RawMessage{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
			return nil, ErrInvalidPayload
		}
	}
	s.enrich(ctx, kind, userID, payload)

	req, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	out, err := s.upstream.PostJSON(ctx, path, req)
	if err != nil {
		s.metrics.UpstreamErrors.WithLabelValues(string(kind)).Inc()
		return nil, err
	}

	doc, err := s.document(ctx, kind, userID, payload, out)
	if err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Msg("Build analysis document failed")
		return &AnalysisResult{Result: out}, nil
	}

	saved := s.docs.Save(ctx, kind.Collection(), userID, doc)
	s.log.Info().
		Str("kind", string(kind)).
		Str("user_id", userID).
		Bool("saved", saved).
		Msg("Analysis completed")

	return &AnalysisResult{Result: out, SavedOK: saved}, nil
}

// enrich fills inputs the caller left out from earlier results, the way
// the dashboard assembles them.
func (s *AnalysisService) enrich(ctx context.Context, kind model.AnalysisKind, userID string, payload map[string]json.RawMessage) {
	switch kind {
	case model.AnalysisCareerMatch:
		s.fill(ctx, payload, "test_scores", model.CollectionTestScores, userID, "scores")
	case model.AnalysisRoadmap:
		s.fill(ctx, payload, "test_scores", model.CollectionTestScores, userID, "scores")
		s.fill(ctx, payload, "skill_results", model.CollectionSkillGaps, userID, "skill_results")
		s.fill(ctx, payload, "totals", model.CollectionSkillGaps, userID, "totals")
		s.fill(ctx, payload, "swot", model.CollectionSWOTAnalyses, userID, "")
	}
}

// fill sets payload[key] from field of the stored document, or the whole
// document when field is empty. Missing documents yield {}.
func (s *AnalysisService) fill(ctx context.Context, payload map[string]json.RawMessage, key string, c model.Collection, userID, field string) {
	if _, ok := payload[key]; ok {
		return
	}
	payload[key] = json.RawMessage("{}")

	raw, err := s.docs.Get(ctx, c, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrDocumentNotFound) {
			s.log.Warn().Err(err).Str("collection", string(c)).Msg("Read stored document failed")
		}
		return
	}
	if field == "" {
		payload[key] = raw
		return
	}

	var stored map[string]json.RawMessage
	if json.Unmarshal(raw, &stored) != nil {
		return
	}
	if v, ok := stored[field]; ok && string(v) != "null" {
		payload[key] = v
	}
}

// document shapes the upstream result for persistence. Object results are
// merged as they are; roadmaps accumulate per role.
func (s *AnalysisService) document(ctx context.Context, kind model.AnalysisKind, userID string, payload map[string]json.RawMessage, out json.RawMessage) (map[string]any, error) {
	doc := map[string]any{
		"uid":       userID,
		"updatedAt": s.now().UTC().Format(time.RFC3339),
	}

	if kind == model.AnalysisRoadmap {
		var role string
		_ = json.Unmarshal(payload["role"], &role)
		if role == "" {
			role = "default"
		}

		roadmaps := map[string]json.RawMessage{}
		if raw, err := s.docs.Get(ctx, model.CollectionRoadmaps, userID); err == nil {
			var stored struct {
				Roadmaps map[string]json.RawMessage `json:"roadmaps"`
			}
			if json.Unmarshal(raw, &stored) == nil && stored.Roadmaps != nil {
				roadmaps = stored.Roadmaps
			}
		}
		roadmaps[role] = out
		doc["roadmaps"] = roadmaps
		return doc, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(out, &fields); err != nil || fields == nil {
		doc["result"] = out
		return doc, nil
	}
	for k, v := range fields {
		doc[k] = v
	}
	return doc, nil
}
