package summary

import "fmt"

// Categories a session can be tagged with. Unknown categories are
// normalized to CategoryGeneral at the boundary.
const (
	CategoryGeneral       = "general"
	CategorySports        = "sports"
	CategoryEconomics     = "economics"
	CategoryTechnology    = "technology"
	CategoryEducation     = "education"
	CategoryBusiness      = "business"
	CategoryMedical       = "medical"
	CategoryLegal         = "legal"
	CategoryEntertainment = "entertainment"
	CategoryScience       = "science"
)

// promptHeader is shared by every category prompt. The transcript comes
// from live speech recognition, so the model is told to expect filler and
// recognition noise.
const promptHeader = `You are summarizing a live presentation transcript. The text comes from speech recognition and may contain filler words and minor errors. Write a concise summary of 3-5 sentences capturing the key points. Reply with only the summary.`

// categoryPrompts gives each category a domain-specific instruction that
// is appended to the shared header.
var categoryPrompts = map[string]string{
	CategoryGeneral:       "",
	CategorySports:        "Focus on results, standout performances, and what they mean for upcoming events.",
	CategoryEconomics:     "Focus on figures, trends, and forecasts; keep numbers exact as stated.",
	CategoryTechnology:    "Focus on the technology presented, its capabilities, and concrete specifications.",
	CategoryEducation:     "Focus on the learning objectives and the main concepts explained.",
	CategoryBusiness:      "Focus on decisions, action items, and business outcomes discussed.",
	CategoryMedical:       "Focus on findings, treatments, and recommendations; preserve medical terminology.",
	CategoryLegal:         "Focus on the legal issues, arguments, and conclusions presented.",
	CategoryEntertainment: "Focus on the works, artists, and announcements covered.",
	CategoryScience:       "Focus on the research question, methods, and findings presented.",
}

// NormalizeCategory maps unknown or empty categories to general.
func NormalizeCategory(category string) string {
	if _, ok := categoryPrompts[category]; !ok {
		return CategoryGeneral
	}
	return category
}

// buildPrompt composes the full generation prompt for a category and
// transcript.
func buildPrompt(category, transcript string) string {
	extra := categoryPrompts[NormalizeCategory(category)]
	if extra == "" {
		return fmt.Sprintf("%s\n\nTranscript:\n%s", promptHeader, transcript)
	}
	return fmt.Sprintf("%s %s\n\nTranscript:\n%s", promptHeader, extra, transcript)
}
