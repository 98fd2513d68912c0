package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"statwizard/internal/models"
)

// SQLStore keeps conversations in the sqlite or mysql tables created by
// storage.Migrate. Lease and expiry deadlines are stored as unix milliseconds.
type SQLStore struct {
	db     *sql.DB
	driver string
	ttl    time.Duration
	now    func() time.Time
}

func NewSQLStore(db *sql.DB, driver string, ttl time.Duration) *SQLStore {
	return &SQLStore{
		db:     db,
		driver: strings.ToLower(driver),
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *SQLStore) expiresAt(now time.Time) int64 {
	if s.ttl <= 0 {
		return now.Add(100 * 365 * 24 * time.Hour).UnixMilli()
	}
	return now.Add(s.ttl).UnixMilli()
}

func (s *SQLStore) insertIgnore() string {
	if s.driver == "mysql" {
		return "INSERT IGNORE"
	}
	return "INSERT OR IGNORE"
}

// ensure creates the conversation row, replacing an expired one.
func (s *SQLStore) ensure(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM conversations WHERE id = ? AND expires_at <= ? AND pending_until <= ?`,
		id, now.UnixMilli(), now.UnixMilli(),
	); err != nil {
		return fmt.Errorf("drop expired conversation: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		s.insertIgnore()+` INTO conversations (id, pending_until, expires_at, created_at, updated_at) VALUES (?, 0, ?, ?, ?)`,
		id, s.expiresAt(now), now, now,
	); err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, id string) (*models.Conversation, error) {
	conv := &models.Conversation{ID: id, Messages: []models.Message{}}
	now := s.now()

	var (
		kind, message, draft sql.NullString
		pendingUntil         int64
		expiresAt            int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT failure_kind, failure_message, failure_draft, pending_until, expires_at, updated_at FROM conversations WHERE id = ?`,
		id,
	).Scan(&kind, &message, &draft, &pendingUntil, &expiresAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return conv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	nowMs := now.UnixMilli()
	conv.Pending = pendingUntil > nowMs
	if expiresAt <= nowMs && !conv.Pending {
		return &models.Conversation{ID: id, Messages: []models.Message{}}, nil
	}
	if kind.Valid && kind.String != "" {
		conv.Failure = &models.Failure{Kind: kind.String, Message: message.String, Draft: draft.String}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY seq ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		conv.Messages = append(conv.Messages, m)
	}
	return conv, rows.Err()
}

func (s *SQLStore) Append(ctx context.Context, id string, msg models.Message) (err error) {
	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = s.ensure(ctx, tx, id, now); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, id, string(msg.Role), msg.Content, msg.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE conversations SET failure_kind = NULL, failure_message = NULL, failure_draft = NULL, expires_at = ?, updated_at = ? WHERE id = ?`,
		s.expiresAt(now), now, id,
	); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (s *SQLStore) SetFailure(ctx context.Context, id string, f *models.Failure) (err error) {
	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = s.ensure(ctx, tx, id, now); err != nil {
		return err
	}
	var kind, message, draft interface{}
	if f != nil {
		kind, message, draft = f.Kind, f.Message, f.Draft
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE conversations SET failure_kind = ?, failure_message = ?, failure_draft = ?, expires_at = ?, updated_at = ? WHERE id = ?`,
		kind, message, draft, s.expiresAt(now), now, id,
	); err != nil {
		return fmt.Errorf("store failure: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit failure: %w", err)
	}
	return nil
}

func (s *SQLStore) Acquire(ctx context.Context, id, token string, ttl time.Duration) (ok bool, err error) {
	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = s.ensure(ctx, tx, id, now); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET pending_token = ?, pending_until = ? WHERE id = ? AND pending_until <= ?`,
		token, now.Add(ttl).UnixMilli(), id, now.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("lease rows affected: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit lease: %w", err)
	}
	return affected == 1, nil
}

func (s *SQLStore) Release(ctx context.Context, id, token string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET pending_token = NULL, pending_until = 0 WHERE id = ? AND pending_token = ?`,
		id, token,
	); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// StartCleaner deletes expired conversations every interval until ctx is done.
func (s *SQLStore) StartCleaner(ctx context.Context, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.purgeExpired(ctx)
				if err != nil {
					log.Error().Err(err).Msg("cleanup expired conversations")
					continue
				}
				if n > 0 {
					log.Debug().Int64("count", n).Msg("purged expired conversations")
				}
			}
		}
	}()
}

func (s *SQLStore) purgeExpired(ctx context.Context) (int64, error) {
	nowMs := s.now().UnixMilli()
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id IN (SELECT id FROM conversations WHERE expires_at <= ? AND pending_until <= ?)`,
		nowMs, nowMs,
	); err != nil {
		return 0, fmt.Errorf("delete expired messages: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE expires_at <= ? AND pending_until <= ?`,
		nowMs, nowMs,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired conversations: %w", err)
	}
	return res.RowsAffected()
}
