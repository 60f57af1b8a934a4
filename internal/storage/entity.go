// Package storage is the gateway between the domain and an eventually
// consistent, partitioned entity store. The low-level EntityStore contract
// mirrors a paginated table store: point lookups, insert-or-merge upserts,
// and segmented scans that hand back continuation tokens. The Gateway built
// on top owns the domain-level guarantees: at most one record per code, a
// globally increasing counter, and complete (never partial) listings.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
)

// Logical table names. Each EntityStore implementation maps them to its own
// physical layout.
const (
	TableURLs   = "url_entities"
	TableClicks = "click_entities"
)

// The counter lives in the URLs table under a reserved key and is filtered
// out of listings by row key.
const (
	counterPartitionKey = "1"
	counterRowKey       = "KEY"
	counterSeed         = 1024
)

// Entity is one row of a logical table: a composite (partition, row) key and
// a bag of attributes.
type Entity struct {
	PartitionKey string
	RowKey       string
	Attrs        map[string]any
}

// Page is one segment of a scan. An empty NextToken means the scan is
// exhausted.
type Page struct {
	Entities  []Entity
	NextToken string
}

// EntityStore is the opaque partitioned store the gateway runs on.
//
// InsertOrMerge upserts: attributes present in the entity overwrite stored
// ones, attributes absent from the entity survive untouched. Scan returns one
// segment per call; partition narrows the scan to a single partition when
// non-empty. Neither ordering across partitions nor read isolation is
// guaranteed.
type EntityStore interface {
	Get(ctx context.Context, table, partitionKey, rowKey string) (*Entity, error)
	InsertOrMerge(ctx context.Context, table string, entity Entity) error
	Scan(ctx context.Context, table, partition, token string) (*Page, error)
}

// entityAttrs flattens a struct into the attribute bag an EntityStore
// persists, going through JSON so the stored field names stay the stable
// contract the json tags declare.
func entityAttrs(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity attrs: %w", err)
	}

	var attrs map[string]any
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity attrs: %w", err)
	}

	return attrs, nil
}

// decodeAttrs is the inverse of entityAttrs.
func decodeAttrs(attrs map[string]any, v any) error {
	raw, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to marshal entity attrs: %w", err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode entity attrs: %w", err)
	}

	return nil
}
