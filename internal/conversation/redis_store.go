package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"statwizard/internal/models"
	"statwizard/internal/redis"
)

const redisKeyPrefix = "statwizard:conv:"

// RedisStore keeps each conversation as a message list plus failure and lease
// keys. Every write refreshes the TTL so idle conversations expire on their own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func messagesKey(id string) string { return redisKeyPrefix + id + ":messages" }
func failureKey(id string) string  { return redisKeyPrefix + id + ":failure" }
func leaseKey(id string) string    { return redisKeyPrefix + id + ":lease" }

func (s *RedisStore) Load(ctx context.Context, id string) (*models.Conversation, error) {
	conv := &models.Conversation{ID: id, Messages: []models.Message{}}

	raw, err := s.client.List(ctx, messagesKey(id))
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	for _, item := range raw {
		var msg models.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		conv.Messages = append(conv.Messages, msg)
		conv.UpdatedAt = msg.CreatedAt
	}

	failure, err := s.client.Get(ctx, failureKey(id))
	switch {
	case errors.Is(err, redis.ErrCacheMiss):
	case err != nil:
		return nil, fmt.Errorf("load failure: %w", err)
	default:
		var f models.Failure
		if err := json.Unmarshal([]byte(failure), &f); err != nil {
			return nil, fmt.Errorf("decode failure: %w", err)
		}
		conv.Failure = &f
	}

	_, err = s.client.Get(ctx, leaseKey(id))
	switch {
	case errors.Is(err, redis.ErrCacheMiss):
	case err != nil:
		return nil, fmt.Errorf("load lease: %w", err)
	default:
		conv.Pending = true
	}
	return conv, nil
}

func (s *RedisStore) Append(ctx context.Context, id string, msg models.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := s.client.AppendList(ctx, messagesKey(id), s.ttl, payload); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if err := s.client.Del(ctx, failureKey(id)); err != nil {
		return fmt.Errorf("clear failure: %w", err)
	}
	return nil
}

func (s *RedisStore) SetFailure(ctx context.Context, id string, f *models.Failure) error {
	if f == nil {
		return s.client.Del(ctx, failureKey(id))
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode failure: %w", err)
	}
	if err := s.client.Set(ctx, failureKey(id), payload, s.ttl); err != nil {
		return fmt.Errorf("store failure: %w", err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, s.ttl, messagesKey(id)); err != nil {
			return fmt.Errorf("refresh ttl: %w", err)
		}
	}
	return nil
}

func (s *RedisStore) Acquire(ctx context.Context, id, token string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, leaseKey(id), token, ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, id, token string) error {
	if err := s.client.DelIfEquals(ctx, leaseKey(id), token); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}
