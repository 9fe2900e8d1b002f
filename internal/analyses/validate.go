package analyses

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

var decimalPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var (
	matchFreeRequired    = []string{"match_level", "summary", "strengths", "gaps"}
	matchFreeLists       = []string{"strengths", "gaps"}
	matchPremiumRequired = []string{"keyword_analysis", "role_fit_breakdown", "recommendations", "suggested_rewrites"}
	roleFitSubScores     = []string{"technical_skills_fit", "experience_fit", "education_fit", "soft_skills_fit"}
)

// ValidateStandalone checks a decoded model object against the standalone
// contract and promotes it to a CanonicalAnalysis. DetectedField is left for the caller.
func ValidateStandalone(candidate map[string]any) (CanonicalAnalysis, error) {
	score, ok := coerceScore(candidate["score"])
	if !ok {
		return CanonicalAnalysis{}, validationErr(ReasonInvalidScore, "score")
	}
	free, err := requireObject(candidate, "free_feedback")
	if err != nil {
		return CanonicalAnalysis{}, err
	}
	premium, err := requireObject(candidate, "premium_feedback")
	if err != nil {
		return CanonicalAnalysis{}, err
	}

	doc := map[string]any{
		"score":            score,
		"free_feedback":    cloneMap(free),
		"premium_feedback": cloneMap(premium),
	}
	var out CanonicalAnalysis
	if err := promote(doc, &out); err != nil {
		return CanonicalAnalysis{}, err
	}
	out.Document = doc
	return out, nil
}

// ValidateMatch checks a decoded model object against the job-match contract.
// Sub-scores present in role_fit_breakdown are coerced and rounded, and
// overall_fit is replaced by the validated match_score.
func ValidateMatch(candidate map[string]any) (CanonicalMatchAnalysis, error) {
	free, err := requireObject(candidate, "free_feedback")
	if err != nil {
		return CanonicalMatchAnalysis{}, err
	}
	premium, err := requireObject(candidate, "premium_feedback")
	if err != nil {
		return CanonicalMatchAnalysis{}, err
	}

	score, ok := coerceScore(free["match_score"])
	if !ok {
		return CanonicalMatchAnalysis{}, validationErr(ReasonInvalidScore, "match_score")
	}
	for _, key := range matchFreeRequired {
		if _, ok := free[key]; !ok {
			return CanonicalMatchAnalysis{}, validationErr(ReasonMissingKey, key)
		}
	}
	for _, key := range matchFreeLists {
		if n, ok := listLen(free[key]); !ok || n == 0 {
			return CanonicalMatchAnalysis{}, validationErr(ReasonEmptyList, key)
		}
	}
	for _, key := range matchPremiumRequired {
		if _, ok := premium[key]; !ok {
			return CanonicalMatchAnalysis{}, validationErr(ReasonMissingKey, key)
		}
	}
	breakdown, ok := premium["role_fit_breakdown"].(map[string]any)
	if !ok {
		return CanonicalMatchAnalysis{}, validationErr(ReasonIncompleteFeedback, "role_fit_breakdown")
	}

	fit := cloneMap(breakdown)
	for _, key := range roleFitSubScores {
		raw, present := fit[key]
		if !present {
			continue
		}
		n, ok := coerceScore(raw)
		if !ok {
			return CanonicalMatchAnalysis{}, validationErr(ReasonInvalidScore, key)
		}
		fit[key] = n
	}
	fit["overall_fit"] = score

	freeOut := cloneMap(free)
	freeOut["match_score"] = score
	premiumOut := cloneMap(premium)
	premiumOut["role_fit_breakdown"] = fit

	doc := map[string]any{
		"match_score":      score,
		"match_level":      free["match_level"],
		"free_feedback":    freeOut,
		"premium_feedback": premiumOut,
	}
	var out CanonicalMatchAnalysis
	if err := promote(doc, &out); err != nil {
		return CanonicalMatchAnalysis{}, err
	}
	out.Document = doc
	return out, nil
}

// coerceScore accepts a JSON number or a decimal string in [0,100] and rounds
// it to the nearest integer after the range check.
func coerceScore(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || f < 0 || f > 100 {
		return 0, false
	}
	return int(math.Round(f)), true
}

// toFloat accepts a numeric primitive or a decimal string.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		return toFloat(string(n))
	case string:
		s := strings.TrimSpace(n)
		if !decimalPattern.MatchString(s) {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func requireObject(m map[string]any, key string) (map[string]any, error) {
	raw, ok := m[key]
	if !ok {
		return nil, validationErr(ReasonMissingKey, key)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, validationErr(ReasonIncompleteFeedback, key)
	}
	return obj, nil
}

func listLen(v any) (int, bool) {
	switch list := v.(type) {
	case []any:
		return len(list), true
	case []string:
		return len(list), true
	default:
		return 0, false
	}
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// promote fills the typed view of a validated object. Nested content is not
// part of the contract, so values that do not fit a typed field leave it at
// its zero value and stay available in the document.
func promote(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       fitNested,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("promote result: %w", err)
	}
	return nil
}

func fitNested(from, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.Struct:
		if from.Kind() == reflect.Map {
			return data, nil
		}
		return map[string]any{}, nil
	case reflect.Map:
		if from.Kind() == reflect.Map {
			return data, nil
		}
		return reflect.MakeMap(to).Interface(), nil
	case reflect.String:
		switch v := data.(type) {
		case string:
			return v, nil
		case json.Number:
			return string(v), nil
		case bool, float64, float32, int, int64:
			return data, nil
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return "", nil
		}
		return string(raw), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f, ok := toFloat(data)
		if !ok {
			return reflect.Zero(to).Interface(), nil
		}
		return math.Round(f), nil
	case reflect.Float32, reflect.Float64:
		f, ok := toFloat(data)
		if !ok {
			return reflect.Zero(to).Interface(), nil
		}
		return f, nil
	case reflect.Bool:
		if from.Kind() == reflect.Bool {
			return data, nil
		}
		return false, nil
	}
	return data, nil
}
