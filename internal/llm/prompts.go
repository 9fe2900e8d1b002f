package llm

import (
	_ "embed"
	"strings"
)

// SystemMessage is sent ahead of every analysis prompt.
const SystemMessage = "You are a professional resume reviewer."

var (
	//go:embed prompts/standalone.txt
	standaloneTemplate string
	//go:embed prompts/match.txt
	matchTemplate string
)

// BuildStandalonePrompt renders the standalone scoring instruction for text.
// The output depends only on its inputs.
func BuildStandalonePrompt(text, field string) string {
	return strings.NewReplacer(
		"{{FIELD}}", fieldOrDefault(field),
		"{{RESUME_TEXT}}", text,
	).Replace(standaloneTemplate)
}

// BuildMatchPrompt renders the resume-to-job comparison instruction.
func BuildMatchPrompt(resumeText, jobText, field string) string {
	return strings.NewReplacer(
		"{{FIELD}}", fieldOrDefault(field),
		"{{JOB_TEXT}}", jobText,
		"{{RESUME_TEXT}}", resumeText,
	).Replace(matchTemplate)
}

func fieldOrDefault(field string) string {
	field = strings.TrimSpace(field)
	if field == "" {
		return "General"
	}
	return field
}
