package model

// AnalysisKind selects one of the upstream AI analyses.
type AnalysisKind string

const (
	AnalysisCareerMatch AnalysisKind = "career_match"
	AnalysisSkillGap    AnalysisKind = "skill_gap"
	AnalysisSWOT        AnalysisKind = "swot"
	AnalysisRoadmap     AnalysisKind = "roadmap"
)

// Path returns the upstream endpoint for the analysis.
func (k AnalysisKind) Path() string {
	switch k {
	case AnalysisCareerMatch:
		return "/api/career/match"
	case AnalysisSkillGap:
		return "/api/skill-gap/calculate"
	case AnalysisSWOT:
		return "/api/swot/analyze"
	case AnalysisRoadmap:
		return "/api/roadmap/generate"
	default:
		return ""
	}
}

// Collection returns where the analysis result is persisted.
func (k AnalysisKind) Collection() Collection {
	switch k {
	case AnalysisCareerMatch:
		return CollectionCareerMatches
	case AnalysisSkillGap:
		return CollectionSkillGaps
	case AnalysisSWOT:
		return CollectionSWOTAnalyses
	case AnalysisRoadmap:
		return CollectionRoadmaps
	default:
		return ""
	}
}
