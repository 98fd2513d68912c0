package assistant

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"statwizard/internal/config"
	"statwizard/internal/metrics"
	"statwizard/internal/service/ai"
)

// Service is the stateless chat orchestrator.
type Service struct {
	completer       ai.Completer
	provider        string
	maxOutputTokens int
	log             zerolog.Logger
}

// Result is the outcome of one orchestrated call. Text is empty whenever
// Kind is set.
type Result struct {
	Text string
	Kind ErrorKind
}

// ChatResponse is the payload of one chat answer.
type ChatResponse struct {
	Response string `json:"response"`
	Error    *Error `json:"error"`
}

// NewService builds the orchestrator around a completion capability.
func NewService(completer ai.Completer, provider string, maxOutputTokens int, log zerolog.Logger) *Service {
	if maxOutputTokens <= 0 {
		maxOutputTokens = config.DefaultMaxOutputTokens
	}
	return &Service{
		completer:       completer,
		provider:        provider,
		maxOutputTokens: maxOutputTokens,
		log:             log.With().Str("component", "assistant").Logger(),
	}
}

// Orchestrate pairs the input with the variant's preamble and calls the
// completion capability exactly once. Blank input never reaches the provider.
func (s *Service) Orchestrate(ctx context.Context, inputText string, variant PreambleVariant) Result {
	if strings.TrimSpace(inputText) == "" {
		metrics.CompletionsTotal.WithLabelValues(variant.String(), string(ErrorKindEmptyInput)).Inc()
		return Result{Kind: ErrorKindEmptyInput}
	}

	req := ai.Request{
		Prompt:          inputText,
		System:          Preamble(variant),
		MaxOutputTokens: s.maxOutputTokens,
	}
	start := time.Now()
	text, err := s.completer.Complete(ctx, req)
	elapsed := time.Since(start)
	metrics.CompletionDuration.WithLabelValues(s.provider).Observe(elapsed.Seconds())
	if err != nil {
		s.log.Error().
			Err(err).
			Str("variant", variant.String()).
			Str("provider", s.provider).
			Dur("duration", elapsed).
			Msg("completion failed")
		metrics.CompletionsTotal.WithLabelValues(variant.String(), string(ErrorKindCompletionFailed)).Inc()
		return Result{Kind: ErrorKindCompletionFailed}
	}

	s.log.Debug().
		Str("variant", variant.String()).
		Dur("duration", elapsed).
		Int("chars", len(text)).
		Msg("completion succeeded")
	metrics.CompletionsTotal.WithLabelValues(variant.String(), "success").Inc()
	return Result{Text: text}
}

// SendChatMessage answers one chat message.
func (s *Service) SendChatMessage(ctx context.Context, message string) ChatResponse {
	res := s.Orchestrate(ctx, message, PreambleChat)
	return ChatResponse{
		Response: res.Text,
		Error:    newError(PreambleChat, res.Kind),
	}
}
