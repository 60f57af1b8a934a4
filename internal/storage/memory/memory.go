// Package memory provides an in-memory EntityStore. It backs unit and e2e
// tests; the configurable page size lets tests place pagination boundaries
// anywhere in a scan.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/clickwise/shortener/internal/storage"
)

const defaultPageSize = 100

// keySeparator joins partition and row keys into a sortable composite key.
// It never appears in stored keys.
const keySeparator = "\x00"

type Option func(*Store)

// WithPageSize overrides the number of entities returned per scan segment.
func WithPageSize(n int) Option {
	return func(s *Store) {
		s.pageSize = n
	}
}

// Store is a mutex-guarded map-backed EntityStore. Scans iterate keys in
// composite-key order, which gives deterministic pagination.
type Store struct {
	mu       sync.RWMutex
	pageSize int
	tables   map[string]map[string]storage.Entity
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		pageSize: defaultPageSize,
		tables:   make(map[string]map[string]storage.Entity),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, table, partitionKey, rowKey string) (*storage.Entity, error) {
	const op = "memory.Store.Get"

	s.mu.RLock()
	defer s.mu.RUnlock()

	entity, ok := s.tables[table][compositeKey(partitionKey, rowKey)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrEntityNotFound)
	}

	copied := entity
	copied.Attrs = copyAttrs(entity.Attrs)
	return &copied, nil
}

func (s *Store) InsertOrMerge(ctx context.Context, table string, entity storage.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.tables[table]
	if !ok {
		rows = make(map[string]storage.Entity)
		s.tables[table] = rows
	}

	key := compositeKey(entity.PartitionKey, entity.RowKey)
	stored, ok := rows[key]
	if !ok {
		stored = storage.Entity{
			PartitionKey: entity.PartitionKey,
			RowKey:       entity.RowKey,
			Attrs:        make(map[string]any),
		}
	}

	for k, v := range entity.Attrs {
		stored.Attrs[k] = v
	}
	rows[key] = stored

	return nil
}

func (s *Store) Scan(ctx context.Context, table, partition, token string) (*storage.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.tables[table]))
	for key, entity := range s.tables[table] {
		if partition != "" && entity.PartitionKey != partition {
			continue
		}
		if key > token {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	page := &storage.Page{}
	for i, key := range keys {
		if i == s.pageSize {
			page.NextToken = keys[i-1]
			break
		}
		entity := s.tables[table][key]
		entity.Attrs = copyAttrs(entity.Attrs)
		page.Entities = append(page.Entities, entity)
	}

	return page, nil
}

func compositeKey(partitionKey, rowKey string) string {
	return partitionKey + keySeparator + rowKey
}

func copyAttrs(attrs map[string]any) map[string]any {
	copied := make(map[string]any, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	return copied
}

var _ storage.EntityStore = (*Store)(nil)
