package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"statwizard/internal/config"
)

// ErrMissingAPIKey is returned on first use when no credential is configured.
var ErrMissingAPIKey = errors.New("provider api key not configured")

// Request is a single completion call.
type Request struct {
	Prompt          string
	System          string
	MaxOutputTokens int
}

// Completer turns a prompt plus system preamble into model text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ModelBuilder constructs the underlying chat model. Swapped out in tests.
type ModelBuilder func(ctx context.Context, provider string, cfg config.ProviderConfig) (model.BaseChatModel, error)

type aiService struct {
	provider string
	cfg      config.ProviderConfig
	build    ModelBuilder

	mu        sync.Mutex
	chatModel model.BaseChatModel
}

// NewAiService returns a completer for the given provider. The chat model is
// built lazily so a missing key only surfaces when a question is asked.
func NewAiService(provider string, cfg config.ProviderConfig) (*aiService, error) {
	return newAiService(provider, cfg, NewChatModel)
}

func newAiService(provider string, cfg config.ProviderConfig, build ModelBuilder) (*aiService, error) {
	switch provider {
	case "openai", "claude", "gemini":
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if build == nil {
		build = NewChatModel
	}
	return &aiService{provider: provider, cfg: cfg, build: build}, nil
}

func (s *aiService) Provider() string { return s.provider }

func (s *aiService) Model() string { return s.cfg.Model }

// Complete sends the system preamble and prompt as one non-streaming call.
func (s *aiService) Complete(ctx context.Context, req Request) (string, error) {
	chatModel, err := s.model(ctx)
	if err != nil {
		return "", err
	}
	messages := []*schema.Message{
		schema.SystemMessage(req.System),
		schema.UserMessage(req.Prompt),
	}
	var opts []model.Option
	if req.MaxOutputTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxOutputTokens))
	}
	resp, err := chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("generate completion: %w", err)
	}
	if resp == nil {
		return "", errors.New("generate completion: empty response")
	}
	return resp.Content, nil
}

func (s *aiService) model(ctx context.Context) (model.BaseChatModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chatModel != nil {
		return s.chatModel, nil
	}
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	m, err := s.build(ctx, s.provider, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", s.provider, err)
	}
	s.chatModel = m
	return m, nil
}

// NewChatModel builds the eino chat model for a provider.
func NewChatModel(ctx context.Context, provider string, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	switch provider {
	case "openai":
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		})
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("new gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  cfg.Model,
		})
	case "claude":
		var baseURLPtr *string
		if cfg.BaseURL != "" {
			baseURLPtr = &cfg.BaseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: config.DefaultMaxOutputTokens,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
}
