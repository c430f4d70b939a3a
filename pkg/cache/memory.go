package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
)

type memoryEntry struct {
	definitions []models.FieldDefinition
	expiresAt   time.Time
}

// Memory is an in-process TTL cache for single instance deployments.
type Memory struct {
	mu          sync.RWMutex
	entries     map[string]memoryEntry
	generations map[string]uint64
	ttl         time.Duration
	now         func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries:     map[string]memoryEntry{},
		generations: map[string]uint64{},
		ttl:         ttl,
		now:         time.Now,
	}
}

func (m *Memory) Get(_ context.Context, tenantID string, kind models.EntityKind) ([]models.FieldDefinition, uint64, bool) {
	key := definitionsKey(tenantID, kind)

	m.mu.RLock()
	entry, ok := m.entries[key]
	generation := m.generations[key]
	m.mu.RUnlock()

	if ok && m.now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		ok = false
	}

	metrics.RecordCacheLookup("memory", ok)
	if !ok {
		return nil, generation, false
	}
	return clone(entry.definitions), generation, true
}

func (m *Memory) Set(_ context.Context, tenantID string, kind models.EntityKind, generation uint64, definitions []models.FieldDefinition) {
	key := definitionsKey(tenantID, kind)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generations[key] != generation {
		return
	}
	m.entries[key] = memoryEntry{
		definitions: clone(definitions),
		expiresAt:   m.now().Add(m.ttl),
	}
}

func (m *Memory) Invalidate(_ context.Context, tenantID string, kind models.EntityKind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := definitionsKey(tenantID, kind)
	delete(m.entries, key)
	m.generations[key]++
}

// clone copies the slice so callers cannot mutate cached entries.
func clone(definitions []models.FieldDefinition) []models.FieldDefinition {
	if definitions == nil {
		return nil
	}
	out := make([]models.FieldDefinition, len(definitions))
	copy(out, definitions)
	return out
}
