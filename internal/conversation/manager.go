package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"statwizard/internal/config"
	"statwizard/internal/metrics"
	"statwizard/internal/models"
	"statwizard/internal/service/assistant"
)

var (
	// ErrEmptyInput is returned for blank submissions. Nothing is appended.
	ErrEmptyInput = errors.New("empty input")
	// ErrPending is returned while another submission for the same
	// conversation is outstanding.
	ErrPending = errors.New("submission already pending")
)

// leaseSlack is added to the completion timeout so the lease outlives the
// call it guards.
const leaseSlack = 30 * time.Second

// Orchestrator answers one input with the given preamble variant.
type Orchestrator interface {
	Orchestrate(ctx context.Context, inputText string, variant assistant.PreambleVariant) assistant.Result
}

// Exchange is the outcome of one submission. Exactly one of Assistant and
// Failure is set.
type Exchange struct {
	User      models.Message  `json:"user"`
	Assistant *models.Message `json:"assistant,omitempty"`
	Failure   *models.Failure `json:"failure,omitempty"`
}

// Manager serializes submissions per conversation and records their outcome.
type Manager struct {
	store   Store
	orch    Orchestrator
	timeout time.Duration
	log     zerolog.Logger
}

func NewManager(store Store, orch Orchestrator, timeout time.Duration, log zerolog.Logger) *Manager {
	if timeout <= 0 {
		timeout = config.DefaultCompletionTimeout
	}
	return &Manager{
		store:   store,
		orch:    orch,
		timeout: timeout,
		log:     log.With().Str("component", "conversation").Logger(),
	}
}

// Conversation returns a handle for sessionID.
func (m *Manager) Conversation(sessionID string) *Conversation {
	return Open(m.store, sessionID)
}

// Submit appends text as a user turn, asks the orchestrator for a reply and
// appends the reply or records the failure.
func (m *Manager) Submit(ctx context.Context, sessionID, text string) (*Exchange, error) {
	conv := m.Conversation(sessionID)
	if strings.TrimSpace(text) == "" {
		if _, err := conv.AppendError(ctx, string(assistant.ErrorKindEmptyInput),
			assistant.UserMessage(assistant.PreambleChat, assistant.ErrorKindEmptyInput), ""); err != nil {
			m.log.Error().Err(err).Str("session", sessionID).Msg("record empty input")
		}
		return nil, ErrEmptyInput
	}

	token := uuid.NewString()
	ok, err := m.store.Acquire(ctx, sessionID, token, m.leaseTTL())
	if err != nil {
		return nil, fmt.Errorf("acquire pending lease: %w", err)
	}
	if !ok {
		metrics.PendingRejections.Inc()
		return nil, ErrPending
	}

	// The browser may go away mid-call; the exchange still completes.
	bg := context.WithoutCancel(ctx)
	defer func() {
		if err := m.store.Release(bg, sessionID, token); err != nil {
			m.log.Error().Err(err).Str("session", sessionID).Msg("release pending lease")
		}
	}()

	userMsg, err := conv.AppendUser(bg, text)
	if err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}
	ex := &Exchange{User: userMsg}

	callCtx, cancel := context.WithTimeout(bg, m.timeout)
	res := m.orch.Orchestrate(callCtx, text, assistant.PreambleChat)
	cancel()

	if res.Kind != assistant.ErrorKindNone {
		f, err := conv.AppendError(bg, string(res.Kind), assistant.UserMessage(assistant.PreambleChat, res.Kind), text)
		if err != nil {
			return nil, fmt.Errorf("record failure: %w", err)
		}
		ex.Failure = f
		return ex, nil
	}

	reply, err := conv.AppendAssistant(bg, res.Text)
	if err != nil {
		return nil, fmt.Errorf("append assistant message: %w", err)
	}
	ex.Assistant = &reply
	return ex, nil
}

func (m *Manager) leaseTTL() time.Duration {
	return m.timeout + leaseSlack
}
