package conversation

import (
	"context"
	"time"

	"statwizard/internal/models"
)

// Store keeps conversation logs for the lifetime of a page session.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns the conversation. Unknown or expired ids yield an empty
	// conversation, not an error.
	Load(ctx context.Context, id string) (*models.Conversation, error)
	// Append adds msg to the end of the log and clears any recorded failure.
	Append(ctx context.Context, id string, msg models.Message) error
	// SetFailure records (or with nil, clears) the last failed submission.
	SetFailure(ctx context.Context, id string, f *models.Failure) error
	// Acquire takes the pending lease for id. It reports false while another
	// unexpired lease is held.
	Acquire(ctx context.Context, id, token string, ttl time.Duration) (bool, error)
	// Release drops the lease if token still holds it.
	Release(ctx context.Context, id, token string) error
}
