package analyses

import "encoding/json"

// CanonicalAnalysis is a validated standalone review. The typed fields are a
// best-effort view; Document holds the normalized object with nested content
// exactly as the model returned it.
type CanonicalAnalysis struct {
	Score           int             `json:"score"`
	FreeFeedback    FreeFeedback    `json:"free_feedback"`
	PremiumFeedback PremiumFeedback `json:"premium_feedback"`
	DetectedField   DetectedField   `json:"detected_field"`
	Document        map[string]any  `json:"-"`
}

// MarshalJSON writes the normalized document when there is one.
func (a CanonicalAnalysis) MarshalJSON() ([]byte, error) {
	if a.Document == nil {
		type plain CanonicalAnalysis
		return json.Marshal(plain(a))
	}
	doc := cloneMap(a.Document)
	doc["score"] = a.Score
	doc["detected_field"] = a.DetectedField
	return json.Marshal(doc)
}

type FreeFeedback struct {
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Summary      string   `json:"summary"`
}

type PremiumFeedback struct {
	DetailedSuggestions []string `json:"detailed_suggestions"`
	Rewrites            []string `json:"rewrites"`
	PortfolioTips       []string `json:"portfolio_tips"`
	Keywords            []string `json:"keywords"`
	ProfessionalLevel   string   `json:"professional_level"`
}

// CanonicalMatchAnalysis is a validated resume-to-job comparison.
// MatchScore always equals PremiumFeedback.RoleFitBreakdown.OverallFit.
type CanonicalMatchAnalysis struct {
	MatchScore      int                  `json:"match_score"`
	MatchLevel      string               `json:"match_level"`
	FreeFeedback    MatchFreeFeedback    `json:"free_feedback"`
	PremiumFeedback MatchPremiumFeedback `json:"premium_feedback"`
	DetectedField   DetectedField        `json:"detected_field"`
	Document        map[string]any       `json:"-"`
}

// MarshalJSON writes the normalized document when there is one.
func (a CanonicalMatchAnalysis) MarshalJSON() ([]byte, error) {
	if a.Document == nil {
		type plain CanonicalMatchAnalysis
		return json.Marshal(plain(a))
	}
	doc := cloneMap(a.Document)
	doc["match_score"] = a.MatchScore
	doc["match_level"] = a.MatchLevel
	doc["detected_field"] = a.DetectedField
	return json.Marshal(doc)
}

type MatchFreeFeedback struct {
	MatchScore int      `json:"match_score"`
	MatchLevel string   `json:"match_level"`
	Summary    string   `json:"summary"`
	Strengths  []string `json:"strengths"`
	Gaps       []string `json:"gaps"`
}

type MatchPremiumFeedback struct {
	KeywordAnalysis   KeywordAnalysis    `json:"keyword_analysis"`
	RoleFitBreakdown  RoleFitBreakdown   `json:"role_fit_breakdown"`
	Recommendations   []string           `json:"recommendations"`
	SuggestedRewrites []SuggestedRewrite `json:"suggested_rewrites"`
}

type KeywordAnalysis struct {
	TotalKeywordsInJD int      `json:"total_keywords_in_jd"`
	MatchedKeywords   int      `json:"matched_keywords"`
	MissingKeywords   []string `json:"missing_keywords"`
}

// RoleFitBreakdown sub-scores are nil when the model omitted them.
type RoleFitBreakdown struct {
	TechnicalSkillsFit *int `json:"technical_skills_fit,omitempty"`
	ExperienceFit      *int `json:"experience_fit,omitempty"`
	EducationFit       *int `json:"education_fit,omitempty"`
	SoftSkillsFit      *int `json:"soft_skills_fit,omitempty"`
	OverallFit         int  `json:"overall_fit"`
}

type SuggestedRewrite struct {
	Original   string `json:"original"`
	Suggestion string `json:"suggestion"`
}
