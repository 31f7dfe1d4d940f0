package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var ErrStateNotFound = errors.New("conversation state not found")

// Store is the checkpoint persistence contract. Implementations must support
// concurrent turns on different threads without interference; turns on the
// same thread are serialized by the workflow engine, so a store only needs
// atomic whole-state writes.
type Store interface {
	Load(ctx context.Context, threadID string) (*ConversationState, error)
	Save(ctx context.Context, st *ConversationState) error
	Delete(ctx context.Context, threadID string) error
}

// MemoryStore keeps serialized snapshots in a mutex-guarded map. Each Save
// replaces the whole record; each Load hands back an independent copy.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (m *MemoryStore) Load(ctx context.Context, threadID string) (*ConversationState, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, ErrInvalidThread
	}

	m.mu.RLock()
	raw, ok := m.records[threadID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrStateNotFound
	}

	var st ConversationState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("unmarshal conversation state: %w", err)
	}
	return &st, nil
}

func (m *MemoryStore) Save(ctx context.Context, st *ConversationState) error {
	if st == nil {
		return ErrNilState
	}
	if strings.TrimSpace(st.ThreadID) == "" {
		return ErrInvalidThread
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}

	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal conversation state: %w", err)
	}

	m.mu.Lock()
	m.records[st.ThreadID] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, threadID string) error {
	if strings.TrimSpace(threadID) == "" {
		return ErrInvalidThread
	}
	m.mu.Lock()
	delete(m.records, threadID)
	m.mu.Unlock()
	return nil
}
