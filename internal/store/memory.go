package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/StreamAgent/internal/models"
)

// InMemoryStore is a process-local Store used when no database is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	memories map[string]models.Memory
	cycles   []models.CycleRecord
	inbound  map[string]DedupRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		memories: make(map[string]models.Memory),
		inbound:  make(map[string]DedupRecord),
	}
}

// CreateMemory implements MemoryStore.
func (s *InMemoryStore) CreateMemory(ctx context.Context, m models.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memories[m.ID]; ok {
		return nil
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.memories[m.ID] = m
	return nil
}

// GetMemories implements MemoryStore.
func (s *InMemoryStore) GetMemories(ctx context.Context, f models.MemoryFilter) ([]models.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Memory
	for _, m := range s.memories {
		if f.AgentID != "" && m.AgentID != f.AgentID {
			continue
		}
		if f.RoomID != "" && m.RoomID != f.RoomID {
			continue
		}
		if f.UserID != "" && m.UserID != f.UserID {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// SaveCycle implements CycleStore. Saving an existing id replaces it.
func (s *InMemoryStore) SaveCycle(ctx context.Context, c models.CycleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cycles {
		if s.cycles[i].ID == c.ID {
			s.cycles[i] = c.Clone()
			return nil
		}
	}
	s.cycles = append(s.cycles, c.Clone())
	return nil
}

// ListCycles implements CycleStore.
func (s *InMemoryStore) ListCycles(ctx context.Context, agentID string, limit int) ([]models.CycleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.CycleRecord
	for _, c := range s.cycles {
		if agentID != "" && c.AgentID != agentID {
			continue
		}
		out = append(out, c.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// RecordInbound implements DedupRepo.
func (s *InMemoryStore) RecordInbound(ctx context.Context, messageID, agentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inbound[messageID]; ok {
		return false, nil
	}
	s.inbound[messageID] = DedupRecord{MessageID: messageID, AgentID: agentID, ReceivedAt: time.Now()}
	return true, nil
}

// MarkProcessed implements DedupRepo.
func (s *InMemoryStore) MarkProcessed(ctx context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.inbound[messageID]; ok {
		now := time.Now()
		rec.ProcessedAt = &now
		s.inbound[messageID] = rec
	}
	return nil
}

// Close implements Store.
func (s *InMemoryStore) Close() error { return nil }
