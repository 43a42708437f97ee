package assessment

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/sitskillbridge/skillbridge-backend/internal/model"
)

var (
	ErrNoQuestions     = errors.New("assessment: question set is empty")
	ErrIndexOutOfRange = errors.New("assessment: question index out of range")
	ErrUnknownOption   = errors.New("assessment: option is not one of the question's options")
)

// State holds the question set of one session and the answers given so far.
// The question set is fixed for the lifetime of the State; answers grow until
// Reset.
type State struct {
	mu        sync.RWMutex
	questions []model.Question
	answers   model.AnswerSet
}

// NewState wraps a fetched question set.
func NewState(questions []model.Question) (*State, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	return &State{
		questions: questions,
		answers:   make(model.AnswerSet, len(questions)),
	}, nil
}

// Record sets the answer for question index, replacing any earlier answer.
func (s *State) Record(index int, option string) error {
	if index < 0 || index >= len(s.questions) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	if !hasOption(s.questions[index].Options, option) {
		return fmt.Errorf("%w: question %d", ErrUnknownOption, index)
	}

	s.mu.Lock()
	s.answers[index] = option
	s.mu.Unlock()
	return nil
}

// Restore loads previously autosaved answers, skipping any that no longer
// validate against the question set. It returns how many were kept.
func (s *State) Restore(saved model.AnswerSet) int {
	kept := 0
	for i, opt := range saved {
		if s.Record(i, opt) == nil {
			kept++
		}
	}
	return kept
}

// Answers returns a copy of the current answer set.
func (s *State) Answers() model.AnswerSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(model.AnswerSet, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// Answered reports how many questions have an answer.
func (s *State) Answered() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.answers)
}

// Questions returns the question set. Callers must not modify it.
func (s *State) Questions() []model.Question {
	return s.questions
}

// Reset clears every answer.
func (s *State) Reset() {
	s.mu.Lock()
	s.answers = make(model.AnswerSet, len(s.questions))
	s.mu.Unlock()
}

func hasOption(options []string, option string) bool {
	for _, o := range options {
		if o == option {
			return true
		}
	}
	return false
}

// ShuffleOptions returns a copy of questions with each question's options
// permuted. Answers are untouched, so the correct option is still present
// verbatim.
func ShuffleOptions(questions []model.Question, rng *rand.Rand) []model.Question {
	out := make([]model.Question, len(questions))
	for i, q := range questions {
		opts := append([]string(nil), q.Options...)
		rng.Shuffle(len(opts), func(a, b int) { opts[a], opts[b] = opts[b], opts[a] })
		q.Options = opts
		out[i] = q
	}
	return out
}

// Validate checks that a question set is usable. Every question needs a
// skill label, at least two options and its answer among them.
func Validate(questions []model.Question) error {
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	for i, q := range questions {
		if strings.TrimSpace(q.Skill) == "" {
			return fmt.Errorf("question %d: empty skill", i)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("question %d: fewer than two options", i)
		}
		if !hasOption(q.Options, q.Answer) {
			return fmt.Errorf("question %d: answer not among options", i)
		}
	}
	return nil
}
