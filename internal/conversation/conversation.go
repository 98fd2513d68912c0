package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"statwizard/internal/models"
)

// Conversation is a handle on one page session's log.
type Conversation struct {
	id    string
	store Store
	now   func() time.Time
}

// Open returns a handle for id backed by store.
func Open(store Store, id string) *Conversation {
	return &Conversation{id: id, store: store, now: time.Now}
}

func (c *Conversation) ID() string { return c.id }

// AppendUser records a user turn.
func (c *Conversation) AppendUser(ctx context.Context, text string) (models.Message, error) {
	return c.append(ctx, models.RoleUser, text)
}

// AppendAssistant records an assistant turn.
func (c *Conversation) AppendAssistant(ctx context.Context, text string) (models.Message, error) {
	return c.append(ctx, models.RoleAssistant, text)
}

// AppendError records a failed submission. The log itself is untouched.
func (c *Conversation) AppendError(ctx context.Context, kind, message, draft string) (*models.Failure, error) {
	f := &models.Failure{Kind: kind, Message: message, Draft: draft}
	if err := c.store.SetFailure(ctx, c.id, f); err != nil {
		return nil, err
	}
	return f, nil
}

// CurrentLog returns the messages in submission order.
func (c *Conversation) CurrentLog(ctx context.Context) ([]models.Message, error) {
	conv, err := c.store.Load(ctx, c.id)
	if err != nil {
		return nil, err
	}
	return conv.Messages, nil
}

// Snapshot returns the full conversation state, including failure and
// pending flags.
func (c *Conversation) Snapshot(ctx context.Context) (*models.Conversation, error) {
	return c.store.Load(ctx, c.id)
}

func (c *Conversation) append(ctx context.Context, role models.Role, text string) (models.Message, error) {
	msg := models.Message{
		ID:        newID(),
		Role:      role,
		Content:   text,
		CreatedAt: c.now().UTC(),
	}
	if err := c.store.Append(ctx, c.id, msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// newID returns a time-ordered id.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
