// Package memory holds per-thread conversation history.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BerkeliumLabs/berkelium/internal/llm"
)

// ThreadInfo summarizes a stored thread.
type ThreadInfo struct {
	ID           string
	MessageCount int
	UpdatedAt    time.Time
}

// Store is the thread-keyed checkpoint store. Get returns an empty slice for
// unknown threads. Replace swaps a thread's history atomically.
type Store interface {
	Get(ctx context.Context, threadID string) ([]llm.Message, error)
	Append(ctx context.Context, threadID string, msgs ...llm.Message) error
	Replace(ctx context.Context, threadID string, msgs []llm.Message) error
	Clear(ctx context.Context, threadID string) error
	Threads(ctx context.Context) ([]ThreadInfo, error)
	Close() error
}

type thread struct {
	messages  []llm.Message
	updatedAt time.Time
}

// InMemoryStore keeps threads in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*thread
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string]*thread)}
}

// Get returns a copy of the thread's messages.
func (s *InMemoryStore) Get(_ context.Context, threadID string) ([]llm.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.threads[threadID]
	if !ok {
		return []llm.Message{}, nil
	}
	return llm.CloneMessages(t.messages), nil
}

// Append adds messages to the end of the thread.
func (s *InMemoryStore) Append(_ context.Context, threadID string, msgs ...llm.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		t = &thread{}
		s.threads[threadID] = t
	}
	t.messages = append(t.messages, llm.CloneMessages(msgs)...)
	t.updatedAt = time.Now()
	return nil
}

// Replace swaps the thread's history under a single lock.
func (s *InMemoryStore) Replace(_ context.Context, threadID string, msgs []llm.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.threads[threadID] = &thread{
		messages:  llm.CloneMessages(msgs),
		updatedAt: time.Now(),
	}
	return nil
}

// Clear deletes the thread. Clearing an unknown thread is not an error.
func (s *InMemoryStore) Clear(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

// Threads lists threads, most recently updated first.
func (s *InMemoryStore) Threads(_ context.Context) ([]ThreadInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ThreadInfo, 0, len(s.threads))
	for id, t := range s.threads {
		out = append(out, ThreadInfo{ID: id, MessageCount: len(t.messages), UpdatedAt: t.updatedAt})
	}
	sortThreads(out)
	return out, nil
}

// Close is a no-op.
func (s *InMemoryStore) Close() error {
	return nil
}

func sortThreads(out []ThreadInfo) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
}
