package analyses

import "regexp"

// DetectedField is the professional domain inferred from free text.
type DetectedField string

const (
	FieldSales               DetectedField = "Sales"
	FieldSoftwareEngineering DetectedField = "Software Engineering"
	FieldMarketing           DetectedField = "Marketing"
	FieldDesign              DetectedField = "Design"
	FieldFinance             DetectedField = "Finance"
	FieldHumanResources      DetectedField = "Human Resources"
	FieldOperations          DetectedField = "Operations"
	FieldDataAnalytics       DetectedField = "Data/Analytics"
	FieldGeneral             DetectedField = "General"
)

type fieldRule struct {
	pattern *regexp.Regexp
	field   DetectedField
}

// Evaluated top to bottom; the first matching rule wins.
var fieldRules = []fieldRule{
	{regexp.MustCompile(`(?i)\b(data (analyst|analysis|analytics|scientist|science|engineer)|analytics|machine learning|tableau|power bi|statistics|business intelligence)\b`), FieldDataAnalytics},
	{regexp.MustCompile(`(?i)\b(software (engineer|developer|development)|developer|programmer|full[- ]?stack|back[- ]?end|front[- ]?end|golang|javascript|typescript|java|python|kubernetes|microservices|react|node\.js|devops)\b`), FieldSoftwareEngineering},
	{regexp.MustCompile(`(?i)\b(ui/ux|ux|user experience|figma|sketch|adobe (xd|photoshop|illustrator)|graphic design(er)?|product design(er)?|wireframes?|prototyping)\b`), FieldDesign},
	{regexp.MustCompile(`(?i)\b(marketing|seo|sem|content strategy|brand(ing)?|social media|campaigns?|growth hacking|copywriting)\b`), FieldMarketing},
	{regexp.MustCompile(`(?i)\b(sales|account executive|business development|quota attainment|lead generation|cold call(ing|s)?|pipeline management|inside sales|closing deals)\b`), FieldSales},
	{regexp.MustCompile(`(?i)\b(finance|financial|accounting|accountant|cpa|audit(ing|or)?|bookkeeping|tax|investment banking|fp&a|ledger)\b`), FieldFinance},
	{regexp.MustCompile(`(?i)\b(human resources|hr|recruit(er|ing|ment)|talent acquisition|onboarding|payroll|employee relations|hris)\b`), FieldHumanResources},
	{regexp.MustCompile(`(?i)\b(operations|supply chain|logistics|procurement|inventory|process improvement|lean|six sigma|warehouse)\b`), FieldOperations},
}

// Classify labels text with the first matching domain, or FieldGeneral.
func Classify(text string) DetectedField {
	for _, rule := range fieldRules {
		if rule.pattern.MatchString(text) {
			return rule.field
		}
	}
	return FieldGeneral
}
