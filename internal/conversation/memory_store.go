package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"statwizard/internal/models"
)

type memoryEntry struct {
	messages   []models.Message
	failure    *models.Failure
	updatedAt  time.Time
	leaseToken string
	leaseUntil time.Time
}

// MemoryStore keeps conversations in process memory. Idle conversations are
// dropped after ttl.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := &models.Conversation{ID: id, Messages: []models.Message{}}
	e := s.liveEntryLocked(id)
	if e == nil {
		return conv, nil
	}
	conv.Messages = append(conv.Messages, e.messages...)
	if e.failure != nil {
		f := *e.failure
		conv.Failure = &f
	}
	conv.Pending = e.leaseToken != "" && s.now().Before(e.leaseUntil)
	conv.UpdatedAt = e.updatedAt
	return conv, nil
}

func (s *MemoryStore) Append(ctx context.Context, id string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entryLocked(id)
	e.messages = append(e.messages, msg)
	e.failure = nil
	e.updatedAt = s.now()
	return nil
}

func (s *MemoryStore) SetFailure(ctx context.Context, id string, f *models.Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entryLocked(id)
	if f == nil {
		e.failure = nil
	} else {
		copyF := *f
		e.failure = &copyF
	}
	e.updatedAt = s.now()
	return nil
}

func (s *MemoryStore) Acquire(ctx context.Context, id, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entryLocked(id)
	now := s.now()
	if e.leaseToken != "" && now.Before(e.leaseUntil) {
		return false, nil
	}
	e.leaseToken = token
	e.leaseUntil = now.Add(ttl)
	e.updatedAt = now
	return true, nil
}

func (s *MemoryStore) Release(ctx context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok && e.leaseToken == token {
		e.leaseToken = ""
		e.leaseUntil = time.Time{}
	}
	return nil
}

// StartCleaner drops idle conversations every interval until ctx is done.
func (s *MemoryStore) StartCleaner(ctx context.Context, interval time.Duration, log zerolog.Logger) {
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
				if n := s.purgeExpired(); n > 0 {
					log.Debug().Int("count", n).Msg("purged idle conversations")
				}
			}
		}
	}()
}

func (s *MemoryStore) purgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.entries {
		if s.expiredLocked(e) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

func (s *MemoryStore) expiredLocked(e *memoryEntry) bool {
	if s.ttl <= 0 {
		return false
	}
	now := s.now()
	if e.leaseToken != "" && now.Before(e.leaseUntil) {
		return false
	}
	return now.Sub(e.updatedAt) > s.ttl
}

// liveEntryLocked returns the entry for id, dropping it when expired.
func (s *MemoryStore) liveEntryLocked(id string) *memoryEntry {
	e, ok := s.entries[id]
	if !ok {
		return nil
	}
	if s.expiredLocked(e) {
		delete(s.entries, id)
		return nil
	}
	return e
}

func (s *MemoryStore) entryLocked(id string) *memoryEntry {
	if e := s.liveEntryLocked(id); e != nil {
		return e
	}
	e := &memoryEntry{updatedAt: s.now()}
	s.entries[id] = e
	return e
}
