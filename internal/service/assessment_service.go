package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sitskillbridge/skillbridge-backend/internal/assessment"
	"github.com/sitskillbridge/skillbridge-backend/internal/config"
	"github.com/sitskillbridge/skillbridge-backend/internal/events"
	"github.com/sitskillbridge/skillbridge-backend/internal/metrics"
	"github.com/sitskillbridge/skillbridge-backend/internal/model"
	"github.com/sitskillbridge/skillbridge-backend/internal/scoring"
)

// ActiveTestTTL is how long a fetched question set stays available.
const ActiveTestTTL = 2 * time.Hour

var (
	ErrNoActiveTest       = errors.New("no active test")
	ErrInvalidQuestionSet = errors.New("question set failed validation")
)

// QuestionSource supplies personalised question sets.
type QuestionSource interface {
	FetchUserTest(ctx context.Context, domain string, skills []string) ([]model.Question, error)
}

// AssessmentService owns the server side of a skill assessment: fetching
// and caching the question set, autosaving answers, and grading.
type AssessmentService struct {
	questions QuestionSource
	rdb       *redis.Client
	docs      *DocumentService
	metrics   *metrics.Metrics
	publisher events.Publisher
	log       zerolog.Logger
	now       func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewAssessmentService creates a new AssessmentService.
func NewAssessmentService(
	questions QuestionSource,
	rdb *redis.Client,
	docs *DocumentService,
	m *metrics.Metrics,
	publisher events.Publisher,
	log zerolog.Logger,
) *AssessmentService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &AssessmentService{
		questions: questions,
		rdb:       rdb,
		docs:      docs,
		metrics:   m,
		publisher: publisher,
		log:       log.With().Str("component", "assessment_service").Logger(),
		now:       time.Now,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
	}
}

// LoadTest fetches a fresh question set, shuffles its options and caches it
// as the user's active test. Any autosaved answers of an earlier test are
// discarded.
func (s *AssessmentService) LoadTest(ctx context.Context, userID, domain string, skills []string) (*model.ActiveTest, error) {
	questions, err := s.questions.FetchUserTest(ctx, domain, skills)
	if err != nil {
		s.metrics.UpstreamErrors.WithLabelValues("user_test").Inc()
		return nil, err
	}
	if err := assessment.Validate(questions); err != nil {
		s.metrics.UpstreamErrors.WithLabelValues("user_test").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuestionSet, err)
	}

	s.rngMu.Lock()
	shuffled := assessment.ShuffleOptions(questions, s.rng)
	s.rngMu.Unlock()

	test := &model.ActiveTest{
		Domain:    domain,
		Skills:    skills,
		Questions: shuffled,
		FetchedAt: s.now().Unix(),
	}
	raw, err := json.Marshal(test)
	if err != nil {
		return nil, fmt.Errorf("encode active test: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.ActiveTestKey(userID), raw, ActiveTestTTL)
	pipe.Del(ctx, config.CacheKey.TestAnswersKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("cache active test: %w", err)
	}

	s.log.Info().
		Str("user_id", userID).
		Str("domain", domain).
		Int("questions", len(shuffled)).
		Msg("Active test loaded")

	return test, nil
}

// ActiveTest returns the cached question set of the user.
func (s *AssessmentService) ActiveTest(ctx context.Context, userID string) (*model.ActiveTest, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.ActiveTestKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoActiveTest
		}
		return nil, fmt.Errorf("get active test: %w", err)
	}

	var test model.ActiveTest
	if err := json.Unmarshal(raw, &test); err != nil {
		return nil, fmt.Errorf("decode active test: %w", err)
	}
	if len(test.Questions) == 0 {
		return nil, ErrNoActiveTest
	}
	return &test, nil
}

// SaveAnswer autosaves one answer.
func (s *AssessmentService) SaveAnswer(ctx context.Context, userID string, index int, option string) error {
	key := config.CacheKey.TestAnswersKey(userID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, strconv.Itoa(index), option)
	pipe.Expire(ctx, key, ActiveTestTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// SavedAnswers returns the autosaved answers. Malformed fields are skipped.
func (s *AssessmentService) SavedAnswers(ctx context.Context, userID string) (model.AnswerSet, error) {
	fields, err := s.rdb.HGetAll(ctx, config.CacheKey.TestAnswersKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	answers := make(model.AnswerSet, len(fields))
	for k, v := range fields {
		i, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		answers[i] = v
	}
	return answers, nil
}

// ClearAnswers drops the autosaved answers.
func (s *AssessmentService) ClearAnswers(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, config.CacheKey.TestAnswersKey(userID)).Err()
}

// Submit grades answers against the active test and persists the result to
// test_scores. A persistence failure only clears SavedOK.
func (s *AssessmentService) Submit(ctx context.Context, userID string, test *model.ActiveTest, answers model.AnswerSet) (model.SessionResult, error) {
	result, err := scoring.ComputeResults(test.Questions, answers)
	if err != nil {
		return model.SessionResult{}, err
	}

	doc := model.TestScoreDocument{
		Scores:      result.Scores,
		TotalScore:  result.TotalScore,
		Domain:      test.Domain,
		Skills:      test.Skills,
		SubmittedAt: s.now().UTC().Format(time.RFC3339),
	}
	result.SavedOK = s.docs.Save(ctx, model.CollectionTestScores, userID, doc)

	s.metrics.RecordSubmission(result.TotalScore, result.SavedOK)
	s.Publish(ctx, events.New(events.TypeGraded, userID, result))

	if err := s.ClearAnswers(ctx, userID); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("Clear autosaved answers failed")
	}

	s.log.Info().
		Str("user_id", userID).
		Float64("total_score", result.TotalScore).
		Int("answered", len(answers)).
		Int("questions", len(test.Questions)).
		Bool("saved", result.SavedOK).
		Msg("Assessment submitted and graded")

	return result, nil
}

// SubmitAnswers grades a full answer set sent in one request. Every answer
// must name a valid index and one of that question's options.
func (s *AssessmentService) SubmitAnswers(ctx context.Context, userID string, answers map[int]string) (model.SessionResult, error) {
	test, err := s.ActiveTest(ctx, userID)
	if err != nil {
		return model.SessionResult{}, err
	}

	state, err := assessment.NewState(test.Questions)
	if err != nil {
		return model.SessionResult{}, err
	}
	for i, opt := range answers {
		if err := state.Record(i, opt); err != nil {
			return model.SessionResult{}, err
		}
	}

	return s.Submit(ctx, userID, test, state.Answers())
}

// Publish fans an assessment event out. Failures are logged only.
func (s *AssessmentService) Publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("type", string(ev.Type)).Msg("Publish assessment event failed")
	}
}
