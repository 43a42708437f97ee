package model

// Question is a single multiple-choice assessment item as supplied by the
// upstream question service. It is immutable for the duration of a session.
type Question struct {
	Skill    string   `json:"skill"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// PublicQuestion is the projection of a Question sent to the browser.
// The answer never leaves the server.
type PublicQuestion struct {
	Index    int      `json:"index"`
	Skill    string   `json:"skill"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// AnswerSet maps a 0-based question index to the selected option.
type AnswerSet map[int]string

// UserTestQuery is the query for fetching a personalised question set.
type UserTestQuery struct {
	Domain string   `form:"domain" binding:"required,min=1,max=100"`
	Skills []string `form:"-"`
}

// ActiveTest is the cached question set of a user's in-progress assessment.
type ActiveTest struct {
	Domain    string     `json:"domain"`
	Skills    []string   `json:"skills"`
	Questions []Question `json:"questions"`
	FetchedAt int64      `json:"fetched_at"`
}

// Public returns the browser-safe view of every question in the test.
func (t *ActiveTest) Public() []PublicQuestion {
	out := make([]PublicQuestion, len(t.Questions))
	for i, q := range t.Questions {
		out[i] = PublicQuestion{
			Index:    i,
			Skill:    q.Skill,
			Question: q.Question,
			Options:  append([]string(nil), q.Options...),
		}
	}
	return out
}

// SubmitAnswersRequest is the REST submission payload. Keys are question
// indices encoded as JSON object keys.
type SubmitAnswersRequest struct {
	Answers map[int]string `json:"answers" binding:"required"`
}
