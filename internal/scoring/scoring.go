// Package scoring converts a completed answer set into per-skill and
// aggregate scores.
package scoring

import (
	"errors"
	"math"

	"github.com/sitskillbridge/skillbridge-backend/internal/model"
)

// ErrEmptyQuestionSet is returned when there is nothing to average over.
var ErrEmptyQuestionSet = errors.New("scoring: empty question set")

type tally struct {
	correct int
	total   int
}

// ComputeResults scores answers against questions.
//
// Each skill scores correct/total for its own questions, rounded to two
// decimals. The total is the mean of the per-skill scores, not of raw
// per-question accuracy, so skills weigh equally regardless of how many
// questions they contributed. Answers for indices the set does not contain
// are ignored. SavedOK is left false; persistence is the caller's concern.
func ComputeResults(questions []model.Question, answers model.AnswerSet) (model.SessionResult, error) {
	if len(questions) == 0 {
		return model.SessionResult{}, ErrEmptyQuestionSet
	}

	bySkill := make(map[string]*tally)
	for i, q := range questions {
		t, ok := bySkill[q.Skill]
		if !ok {
			t = &tally{}
			bySkill[q.Skill] = t
		}
		t.total++
		if picked, answered := answers[i]; answered && picked == q.Answer {
			t.correct++
		}
	}

	scores := make(model.SkillScore, len(bySkill))
	var sum float64
	for skill, t := range bySkill {
		s := Round2(float64(t.correct) / float64(t.total))
		scores[skill] = s
		sum += s
	}

	return model.SessionResult{
		Scores:     scores,
		TotalScore: Round2(sum / float64(len(scores))),
	}, nil
}

// Round2 rounds to two decimal places, halves away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
