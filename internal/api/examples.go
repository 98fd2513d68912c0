package api

import "unicode/utf8"

// Example is a canned research question offered to new visitors.
type Example struct {
	Title       string
	Description string
	Question    string
}

// exampleLabelLimit is the number of characters of a question shown on a chip.
const exampleLabelLimit = 40

var exampleQuestions = []Example{
	{
		Title:       "Relationship analysis",
		Description: "Correlation between variables",
		Question:    "I'm studying the relationship between hours of sleep and reaction time. Sleep is measured in hours and reaction time in milliseconds.",
	},
	{
		Title:       "Compare test scores",
		Description: "Group differences analysis",
		Question:    "I want to compare test scores between three different teaching methods. Each student was randomly assigned to one method and took the same test.",
	},
	{
		Title:       "Marketing strategy comparison",
		Description: "A/B testing analysis",
		Question:    "I'm comparing conversion rates between two marketing strategies. I have the number of conversions and total visitors for each strategy over a 30-day period.",
	},
}

// Label is the question cut to exampleLabelLimit runes plus "..." when longer.
func (e Example) Label() string {
	return truncateLabel(e.Question, exampleLabelLimit)
}

func truncateLabel(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}

// exampleAt returns the example at index i, if any.
func exampleAt(i int) (Example, bool) {
	if i < 0 || i >= len(exampleQuestions) {
		return Example{}, false
	}
	return exampleQuestions[i], true
}
