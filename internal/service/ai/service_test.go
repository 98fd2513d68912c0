package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"statwizard/internal/config"
)

type fakeChatModel struct {
	reply     string
	err       error
	gotInput  []*schema.Message
	maxTokens int
	calls     int
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.calls++
	f.gotInput = input
	if o := model.GetCommonOptions(nil, opts...); o.MaxTokens != nil {
		f.maxTokens = *o.MaxTokens
	}
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestCompleteSendsSystemAndPrompt(t *testing.T) {
	fake := &fakeChatModel{reply: "### Variables Identification\n- sleep"}
	builds := 0
	svc, err := newAiService("openai", config.ProviderConfig{Model: "gpt-4o", APIKey: "k"},
		func(ctx context.Context, provider string, cfg config.ProviderConfig) (model.BaseChatModel, error) {
			builds++
			return fake, nil
		})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	for i := 0; i < 2; i++ {
		got, err := svc.Complete(context.Background(), Request{Prompt: "q", System: "sys", MaxOutputTokens: 1000})
		if err != nil {
			t.Fatalf("complete: %v", err)
		}
		if got != fake.reply {
			t.Fatalf("unexpected reply %q", got)
		}
	}
	if builds != 1 {
		t.Fatalf("expected model to be built once, got %d", builds)
	}
	if len(fake.gotInput) != 2 || fake.gotInput[0].Role != schema.System || fake.gotInput[1].Role != schema.User {
		t.Fatalf("unexpected messages: %#v", fake.gotInput)
	}
	if fake.gotInput[0].Content != "sys" || fake.gotInput[1].Content != "q" {
		t.Fatalf("unexpected message content: %#v", fake.gotInput)
	}
	if fake.maxTokens != 1000 {
		t.Fatalf("expected max tokens 1000, got %d", fake.maxTokens)
	}
}

func TestCompleteMissingKeyFailsOnUse(t *testing.T) {
	svc, err := newAiService("claude", config.ProviderConfig{Model: "m"},
		func(ctx context.Context, provider string, cfg config.ProviderConfig) (model.BaseChatModel, error) {
			t.Fatalf("builder must not run without a key")
			return nil, nil
		})
	if err != nil {
		t.Fatalf("construction should not fail without key: %v", err)
	}
	if _, err := svc.Complete(context.Background(), Request{Prompt: "q"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestCompleteWrapsProviderError(t *testing.T) {
	cause := errors.New("quota exceeded")
	fake := &fakeChatModel{err: cause}
	svc, _ := newAiService("gemini", config.ProviderConfig{APIKey: "k"},
		func(ctx context.Context, provider string, cfg config.ProviderConfig) (model.BaseChatModel, error) {
			return fake, nil
		})
	_, err := svc.Complete(context.Background(), Request{Prompt: "q"})
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestNewAiServiceRejectsUnknownProvider(t *testing.T) {
	if _, err := NewAiService("mistral", config.ProviderConfig{}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
