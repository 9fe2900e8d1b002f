package analyses

import (
	"regexp"
	"strings"
)

var (
	codeFencePattern = regexp.MustCompile("```[A-Za-z0-9_+.-]*")
	reasoningSpans   = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<think\b[^>]*>.*?</think\s*>`),
		regexp.MustCompile(`(?is)<thinking\b[^>]*>.*?</thinking\s*>`),
		regexp.MustCompile(`(?is)<reasoning\b[^>]*>.*?</reasoning\s*>`),
	}
)

// ExtractJSON strips code fences and reasoning spans from raw model output and
// returns the text from the first '{' to the last '}' inclusive. Nested braces
// are not balanced; whatever lies between the outermost delimiters is returned.
func ExtractJSON(raw string) (string, error) {
	cleaned := codeFencePattern.ReplaceAllString(raw, "")
	for _, re := range reasoningSpans {
		cleaned = re.ReplaceAllString(cleaned, "")
	}

	start := strings.IndexByte(cleaned, '{')
	if start < 0 {
		return "", &ExtractionError{Reason: "no JSON object found in model output"}
	}
	end := strings.LastIndexByte(cleaned, '}')
	if end < start {
		return "", &ExtractionError{Reason: "unterminated JSON object in model output"}
	}
	return cleaned[start : end+1], nil
}
