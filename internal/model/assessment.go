package model

// SkillScore maps a skill to its share of correct answers in [0,1].
type SkillScore map[string]float64

// SessionResult is produced once, at submission.
type SessionResult struct {
	Scores     SkillScore `json:"scores"`
	TotalScore float64    `json:"total_score"`
	SavedOK    bool       `json:"saved_ok"`
}

// TestScoreDocument is the shape merged into the test_scores collection.
type TestScoreDocument struct {
	Scores      SkillScore `json:"scores"`
	TotalScore  float64    `json:"total_score"`
	Domain      string     `json:"domain"`
	Skills      []string   `json:"skills"`
	SubmittedAt string     `json:"submittedAt"`
}
