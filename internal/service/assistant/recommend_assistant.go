package assistant

import (
	"context"
	"net/url"
)

// ResearchQuestionField is the form field read by the recommendation entry point.
const ResearchQuestionField = "researchQuestion"

// RecommendationResponse is the payload of the single-shot recommendation form.
type RecommendationResponse struct {
	Recommendation string `json:"recommendation"`
	Error          *Error `json:"error"`
}

// GetStatisticalRecommendation reads the research question from a submitted
// form and runs it with the recommendation preamble.
func (s *Service) GetStatisticalRecommendation(ctx context.Context, form url.Values) RecommendationResponse {
	res := s.Orchestrate(ctx, form.Get(ResearchQuestionField), PreambleRecommendation)
	return RecommendationResponse{
		Recommendation: res.Text,
		Error:          newError(PreambleRecommendation, res.Kind),
	}
}
