package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitskillbridge/skillbridge-backend/internal/metrics"
	"github.com/sitskillbridge/skillbridge-backend/internal/model"
	"github.com/sitskillbridge/skillbridge-backend/internal/upstream"
)

type fakePoster struct {
	paths  []string
	bodies []map[string]json.RawMessage
	reply  json.RawMessage
	err    error
}

func (f *fakePoster) PostJSON(_ context.Context, path string, body json.RawMessage) (json.RawMessage, error) {
	var decoded map[string]json.RawMessage
	_ = json.Unmarshal(body, &decoded)
	f.paths = append(f.paths, path)
	f.bodies = append(f.bodies, decoded)
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func newAnalysisFixture(t *testing.T) (*AnalysisService, *fakePoster, *memStore) {
	t.Helper()
	_, rdb := newTestRedis(t)
	docs, store := newTestDocs(t, rdb)
	poster := &fakePoster{reply: json.RawMessage(`{"top_matches":[{"role":"Data Analyst","match_pct":81}]}`)}
	return NewAnalysisService(poster, docs, metrics.New(), zerolog.Nop()), poster, store
}

func TestAnalysisService_CareerMatchUsesStoredScores(t *testing.T) {
	svc, poster, store := newAnalysisFixture(t)
	ctx := context.Background()

	require.NoError(t, store.SetMerge(ctx, model.CollectionTestScores, "u1",
		json.RawMessage(`{"scores":{"sql":0.5},"total_score":0.5}`)))

	res, err := svc.Run(ctx, model.AnalysisCareerMatch, "u1", json.RawMessage(`{"skills":["sql"],"interests":[]}`))
	require.NoError(t, err)
	assert.True(t, res.SavedOK)
	assert.JSONEq(t, string(poster.reply), string(res.Result))

	require.Equal(t, []string{"/api/career/match"}, poster.paths)
	assert.JSONEq(t, `{"sql":0.5}`, string(poster.bodies[0]["test_scores"]))
	assert.JSONEq(t, `["sql"]`, string(poster.bodies[0]["skills"]))

	raw, err := store.Get(ctx, model.CollectionCareerMatches, "u1")
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "top_matches")
	assert.JSONEq(t, `"u1"`, string(doc["uid"]))
}

func TestAnalysisService_CallerScoresWin(t *testing.T) {
	svc, poster, store := newAnalysisFixture(t)
	ctx := context.Background()

	require.NoError(t, store.SetMerge(ctx, model.CollectionTestScores, "u1", json.RawMessage(`{"scores":{"sql":0.5}}`)))

	_, err := svc.Run(ctx, model.AnalysisCareerMatch, "u1", json.RawMessage(`{"test_scores":{"go":1}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"go":1}`, string(poster.bodies[0]["test_scores"]))
}

func TestAnalysisService_MissingScoresDefaultToEmpty(t *testing.T) {
	svc, poster, _ := newAnalysisFixture(t)

	_, err := svc.Run(context.Background(), model.AnalysisCareerMatch, "u1", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(poster.bodies[0]["test_scores"]))
}

func TestAnalysisService_RoadmapsAccumulatePerRole(t *testing.T) {
	svc, poster, store := newAnalysisFixture(t)
	ctx := context.Background()

	require.NoError(t, store.SetMerge(ctx, model.CollectionSkillGaps, "u1",
		json.RawMessage(`{"skill_results":{"sql":{"gap":0.2}},"totals":{"avg":0.8}}`)))

	poster.reply = json.RawMessage(`{"phases":[1]}`)
	_, err := svc.Run(ctx, model.AnalysisRoadmap, "u1", json.RawMessage(`{"role":"Data Analyst"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"sql":{"gap":0.2}}`, string(poster.bodies[0]["skill_results"]))
	assert.JSONEq(t, `{"avg":0.8}`, string(poster.bodies[0]["totals"]))
	assert.JSONEq(t, `{}`, string(poster.bodies[0]["swot"]))

	poster.reply = json.RawMessage(`{"phases":[2]}`)
	_, err = svc.Run(ctx, model.AnalysisRoadmap, "u1", json.RawMessage(`{"role":"ML Engineer"}`))
	require.NoError(t, err)

	raw, err := store.Get(ctx, model.CollectionRoadmaps, "u1")
	require.NoError(t, err)
	var doc struct {
		Roadmaps map[string]json.RawMessage `json:"roadmaps"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Len(t, doc.Roadmaps, 2)
	assert.JSONEq(t, `{"phases":[1]}`, string(doc.Roadmaps["Data Analyst"]))
	assert.JSONEq(t, `{"phases":[2]}`, string(doc.Roadmaps["ML Engineer"]))
}

func TestAnalysisService_NonObjectResultIsWrapped(t *testing.T) {
	svc, poster, store := newAnalysisFixture(t)
	ctx := context.Background()
	poster.reply = json.RawMessage(`["a","b"]`)

	_, err := svc.Run(ctx, model.AnalysisSWOT, "u1", json.RawMessage(`{}`))
	require.NoError(t, err)

	raw, err := store.Get(ctx, model.CollectionSWOTAnalyses, "u1")
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.JSONEq(t, `["a","b"]`, string(doc["result"]))
}

func TestAnalysisService_Errors(t *testing.T) {
	svc, poster, store := newAnalysisFixture(t)
	ctx := context.Background()

	_, err := svc.Run(ctx, model.AnalysisKind("horoscope"), "u1", nil)
	assert.ErrorIs(t, err, ErrUnknownAnalysis)

	_, err = svc.Run(ctx, model.AnalysisSkillGap, "u1", json.RawMessage(`[1,2]`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	poster.err = &upstream.StatusError{Path: "/api/skill-gap/calculate", Code: 500}
	_, err = svc.Run(ctx, model.AnalysisSkillGap, "u1", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, upstream.ErrUnavailable)

	_, err = store.Get(ctx, model.CollectionSkillGaps, "u1")
	assert.Error(t, err, "nothing is stored when the upstream fails")
}

func TestAnalysisService_StoreDownStillReturnsResult(t *testing.T) {
	svc, _, store := newAnalysisFixture(t)
	store.setFail(errStoreDown)

	res, err := svc.Run(context.Background(), model.AnalysisSkillGap, "u1", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.False(t, res.SavedOK)
	assert.NotEmpty(t, res.Result)
}
