package conversation

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"

	"statwizard/internal/config"
	"statwizard/internal/models"
	"statwizard/internal/redis"
	"statwizard/internal/storage"
)

func newSQLiteStore(t *testing.T, ttl time.Duration) *SQLStore {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQLStore(db, "sqlite3", ttl)
}

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed conversation tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	db := 0
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		}
	}
	client, err := redis.NewRedisClient(&config.Config{
		Redis: config.RedisConfig{Host: host, Port: port, DB: db},
	})
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, time.Minute)
}

func storeBackends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore(time.Hour) },
		"sqlite": func(t *testing.T) Store { return newSQLiteStore(t, time.Hour) },
		"redis":  func(t *testing.T) Store { return newRedisStore(t) },
	}
}

func TestStoreAppendOrder(t *testing.T) {
	for name, mk := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := mk(t)
			ctx := context.Background()
			conv := Open(store, uuid.NewString())

			want := []string{"first", "reply one", "second", "reply two"}
			for i, text := range want {
				var err error
				if i%2 == 0 {
					_, err = conv.AppendUser(ctx, text)
				} else {
					_, err = conv.AppendAssistant(ctx, text)
				}
				if err != nil {
					t.Fatalf("append %d: %v", i, err)
				}
			}

			log, err := conv.CurrentLog(ctx)
			if err != nil {
				t.Fatalf("current log: %v", err)
			}
			if len(log) != len(want) {
				t.Fatalf("log length mismatch: want %d got %d", len(want), len(log))
			}
			for i, msg := range log {
				if msg.Content != want[i] {
					t.Fatalf("message %d: want %q got %q", i, want[i], msg.Content)
				}
				wantRole := models.RoleUser
				if i%2 == 1 {
					wantRole = models.RoleAssistant
				}
				if msg.Role != wantRole {
					t.Fatalf("message %d: want role %s got %s", i, wantRole, msg.Role)
				}
				if msg.ID == "" {
					t.Fatalf("message %d has no id", i)
				}
			}
		})
	}
}

func TestStoreUnknownConversationIsEmpty(t *testing.T) {
	for name, mk := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := mk(t)
			conv, err := store.Load(context.Background(), uuid.NewString())
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(conv.Messages) != 0 || conv.Failure != nil || conv.Pending {
				t.Fatalf("expected empty conversation, got %#v", conv)
			}
		})
	}
}

func TestStoreFailureClearedByAppend(t *testing.T) {
	for name, mk := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := mk(t)
			ctx := context.Background()
			conv := Open(store, uuid.NewString())

			if _, err := conv.AppendUser(ctx, "question"); err != nil {
				t.Fatalf("append user: %v", err)
			}
			if _, err := conv.AppendError(ctx, "completion_failed", "try again", "question"); err != nil {
				t.Fatalf("append error: %v", err)
			}
			snap, err := conv.Snapshot(ctx)
			if err != nil {
				t.Fatalf("snapshot: %v", err)
			}
			if snap.Failure == nil || snap.Failure.Draft != "question" {
				t.Fatalf("failure not recorded: %#v", snap.Failure)
			}
			if len(snap.Messages) != 1 {
				t.Fatalf("failure must not touch the log, got %d messages", len(snap.Messages))
			}

			if _, err := conv.AppendUser(ctx, "question"); err != nil {
				t.Fatalf("append user: %v", err)
			}
			snap, err = conv.Snapshot(ctx)
			if err != nil {
				t.Fatalf("snapshot: %v", err)
			}
			if snap.Failure != nil {
				t.Fatalf("append should clear failure, got %#v", snap.Failure)
			}
		})
	}
}

func TestStoreLeaseExclusion(t *testing.T) {
	for name, mk := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := mk(t)
			ctx := context.Background()
			id := uuid.NewString()

			ok, err := store.Acquire(ctx, id, "a", time.Minute)
			if err != nil || !ok {
				t.Fatalf("first acquire: ok=%v err=%v", ok, err)
			}
			ok, err = store.Acquire(ctx, id, "b", time.Minute)
			if err != nil {
				t.Fatalf("second acquire: %v", err)
			}
			if ok {
				t.Fatalf("second acquire should be rejected while lease is held")
			}
			conv, err := store.Load(ctx, id)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if !conv.Pending {
				t.Fatalf("conversation should report pending")
			}

			if err := store.Release(ctx, id, "b"); err != nil {
				t.Fatalf("release with foreign token: %v", err)
			}
			if ok, _ := store.Acquire(ctx, id, "c", time.Minute); ok {
				t.Fatalf("foreign token must not release the lease")
			}

			if err := store.Release(ctx, id, "a"); err != nil {
				t.Fatalf("release: %v", err)
			}
			ok, err = store.Acquire(ctx, id, "d", time.Minute)
			if err != nil || !ok {
				t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
			}
			store.Release(ctx, id, "d")
		})
	}
}

func TestMemoryStoreLeaseExpires(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if ok, _ := store.Acquire(ctx, "s", "a", time.Minute); !ok {
		t.Fatalf("expected first acquire to succeed")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := store.Acquire(ctx, "s", "b", time.Minute); !ok {
		t.Fatalf("expired lease should not block a new submission")
	}
}

func TestMemoryStoreIdleConversationExpires(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Append(ctx, "s", models.Message{ID: "1", Role: models.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	now = now.Add(2 * time.Hour)
	if n := store.purgeExpired(); n != 1 {
		t.Fatalf("expected one purged conversation, got %d", n)
	}
	conv, _ := store.Load(ctx, "s")
	if len(conv.Messages) != 0 {
		t.Fatalf("expired conversation should load empty")
	}
}

func TestSQLStorePurgeExpired(t *testing.T) {
	store := newSQLiteStore(t, time.Hour)
	now := time.Now().UTC()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	conv := Open(store, "old")
	if _, err := conv.AppendUser(ctx, "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}
	now = now.Add(2 * time.Hour)
	n, err := store.purgeExpired(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one purged conversation, got %d", n)
	}
	var count int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected messages purged, got %d", count)
	}
}

func TestRedisStoreWritesRefreshTTL(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	id := uuid.NewString()
	t.Cleanup(func() { store.client.Del(ctx, messagesKey(id), failureKey(id), leaseKey(id)) })

	conv := Open(store, id)
	if _, err := conv.AppendUser(ctx, "question"); err != nil {
		t.Fatalf("append: %v", err)
	}
	ttl, err := store.client.TTL(ctx, messagesKey(id))
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("append should set the conversation ttl, got %v", ttl)
	}

	if err := store.client.Expire(ctx, 5*time.Second, messagesKey(id)); err != nil {
		t.Fatalf("shorten ttl: %v", err)
	}
	if _, err := conv.AppendError(ctx, "completion_failed", "try again", "question"); err != nil {
		t.Fatalf("append error: %v", err)
	}
	for _, key := range []string{messagesKey(id), failureKey(id)} {
		ttl, err := store.client.TTL(ctx, key)
		if err != nil {
			t.Fatalf("ttl %s: %v", key, err)
		}
		if ttl <= 5*time.Second {
			t.Fatalf("failure write should refresh ttl of %s, got %v", key, ttl)
		}
	}
}
