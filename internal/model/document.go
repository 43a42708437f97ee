package model

import "encoding/json"

// Collection names a document-store collection. Documents are keyed by user id.
type Collection string

const (
	CollectionTestScores    Collection = "test_scores"
	CollectionSkillGaps     Collection = "skill_gaps"
	CollectionCareerMatches Collection = "career_matches"
	CollectionSWOTAnalyses  Collection = "swot_analyses"
	CollectionRoadmaps      Collection = "roadmaps"
	CollectionResumes       Collection = "resumes"
	CollectionGitHubScrapes Collection = "github_scrapes"
)

var collections = map[Collection]struct{}{
	CollectionTestScores:    {},
	CollectionSkillGaps:     {},
	CollectionCareerMatches: {},
	CollectionSWOTAnalyses:  {},
	CollectionRoadmaps:      {},
	CollectionResumes:       {},
	CollectionGitHubScrapes: {},
}

// Valid reports whether c is one of the known collections.
func (c Collection) Valid() bool {
	_, ok := collections[c]
	return ok
}

// DocumentWrite is a queued set-with-merge awaiting retry.
type DocumentWrite struct {
	Collection Collection      `json:"collection"`
	UserID     string          `json:"user_id"`
	Data       json.RawMessage `json:"data"`
	Attempts   int             `json:"attempts"`
}
