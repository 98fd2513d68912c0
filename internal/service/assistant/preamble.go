package assistant

// PreambleVariant selects the fixed system instructions sent with a question.
type PreambleVariant int

const (
	// PreambleChat is used by the conversational page and may ask the user
	// for clarification.
	PreambleChat PreambleVariant = iota
	// PreambleRecommendation frames the answer as a one-shot recommendation.
	PreambleRecommendation
)

func (v PreambleVariant) String() string {
	switch v {
	case PreambleChat:
		return "chat"
	case PreambleRecommendation:
		return "recommendation"
	default:
		return "unknown"
	}
}

const preambleIntro = `You are StatWizard, an AI-powered statistical consultant for researchers and data analysts.
Your task is to provide expert guidance on statistical methods, research design, and data analysis.

When responding to queries:
1. Identify the type of variables involved (categorical, continuous, etc.)
2. Suggest specific statistical tests or methods that would be appropriate
3. Explain why these methods are appropriate for the research question
4. Recommend visualizations that would help interpret the data
5. Format your response in a clear, structured way using markdown headings (###)

Be precise, technical, and helpful. Use proper statistical terminology while ensuring explanations are accessible.`

const preambleClarify = `
If the user's question is unclear, ask for clarification on specific details that would help you provide better advice.`

const preambleSections = `

For recommendations, structure your response with these sections (using ### for headings):
- Variables Identification
- Recommended Statistical Approach
- Explanation & Justification
- Visualization Recommendations
- Important Considerations`

var preambles = map[PreambleVariant]string{
	PreambleChat:           preambleIntro + preambleClarify + preambleSections,
	PreambleRecommendation: preambleIntro + preambleSections,
}

// Preamble returns the system text for the variant.
func Preamble(v PreambleVariant) string {
	if p, ok := preambles[v]; ok {
		return p
	}
	return preambles[PreambleChat]
}
