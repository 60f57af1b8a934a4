package postgres

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/clickwise/shortener/internal/storage"
	"github.com/jmoiron/sqlx"
)

const defaultPageSize = 1000

// tableNames whitelists the physical tables a logical table name may resolve
// to; table names cannot travel as query parameters.
var tableNames = map[string]string{
	storage.TableURLs:   "url_entities",
	storage.TableClicks: "click_entities",
}

type entityRow struct {
	PartitionKey string `db:"partition_key"`
	RowKey       string `db:"row_key"`
	Attrs        []byte `db:"attrs"`
}

type Option func(*EntityStore)

// WithPageSize overrides the scan segment size.
func WithPageSize(n int) Option {
	return func(s *EntityStore) {
		s.pageSize = n
	}
}

// EntityStore is the PostgreSQL-backed entity store.
type EntityStore struct {
	db       *sqlx.DB
	pageSize int
}

// NewEntityStore wraps an open database handle.
func NewEntityStore(db *sqlx.DB, opts ...Option) *EntityStore {
	s := &EntityStore{
		db:       db,
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *EntityStore) Get(ctx context.Context, table, partitionKey, rowKey string) (*storage.Entity, error) {
	const op = "storage.postgres.EntityStore.Get"

	name, err := physicalTable(table)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	row := new(entityRow)
	query := fmt.Sprintf(`SELECT partition_key, row_key, attrs FROM %s
		WHERE partition_key = $1 AND row_key = $2`, name)

	err = s.db.GetContext(ctx, row, query, partitionKey, rowKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrEntityNotFound)
		}
		return nil, fmt.Errorf("%s: failed to get entity: %w", op, classify(err))
	}

	return row.toEntity()
}

func (s *EntityStore) InsertOrMerge(ctx context.Context, table string, entity storage.Entity) error {
	const op = "storage.postgres.EntityStore.InsertOrMerge"

	name, err := physicalTable(table)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	attrs, err := json.Marshal(entity.Attrs)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal attrs: %w", op, err)
	}

	query := fmt.Sprintf(`INSERT INTO %s AS t (partition_key, row_key, attrs)
		VALUES ($1, $2, $3)
		ON CONFLICT (partition_key, row_key)
		DO UPDATE SET attrs = t.attrs || EXCLUDED.attrs`, name)

	if _, err := s.db.ExecContext(ctx, query, entity.PartitionKey, entity.RowKey, attrs); err != nil {
		return fmt.Errorf("%s: failed to upsert entity: %w", op, classify(err))
	}

	return nil
}

func (s *EntityStore) Scan(ctx context.Context, table, partition, token string) (*storage.Page, error) {
	const op = "storage.postgres.EntityStore.Scan"

	name, err := physicalTable(table)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	afterPartition, afterRow, err := decodeToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var rows []entityRow
	query := fmt.Sprintf(`SELECT partition_key, row_key, attrs FROM %s
		WHERE ($1 = '' OR partition_key = $1)
		  AND (partition_key, row_key) > ($2, $3)
		ORDER BY partition_key, row_key
		LIMIT $4`, name)

	// One row past the page size tells us whether a continuation token is
	// needed without a second query.
	err = s.db.SelectContext(ctx, &rows, query, partition, afterPartition, afterRow, s.pageSize+1)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to scan entities: %w", op, classify(err))
	}

	page := &storage.Page{}
	for i, row := range rows {
		if i == s.pageSize {
			last := rows[i-1]
			page.NextToken = encodeToken(last.PartitionKey, last.RowKey)
			break
		}
		entity, err := row.toEntity()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		page.Entities = append(page.Entities, *entity)
	}

	return page, nil
}

func (r *entityRow) toEntity() (*storage.Entity, error) {
	entity := &storage.Entity{
		PartitionKey: r.PartitionKey,
		RowKey:       r.RowKey,
	}
	if err := json.Unmarshal(r.Attrs, &entity.Attrs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attrs: %w", err)
	}
	return entity, nil
}

func physicalTable(table string) (string, error) {
	name, ok := tableNames[table]
	if !ok {
		return "", fmt.Errorf("unknown table %q", table)
	}
	return name, nil
}

func classify(err error) error {
	if isConnectionError(err) {
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return err
}

// scanToken is the continuation token's wire shape.
type scanToken struct {
	PartitionKey string `json:"pk"`
	RowKey       string `json:"rk"`
}

func encodeToken(partitionKey, rowKey string) string {
	raw, _ := json.Marshal(scanToken{PartitionKey: partitionKey, RowKey: rowKey})
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeToken(token string) (string, string, error) {
	if token == "" {
		return "", "", nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", fmt.Errorf("malformed scan token: %w", err)
	}

	var tok scanToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return "", "", fmt.Errorf("malformed scan token: %w", err)
	}

	return tok.PartitionKey, tok.RowKey, nil
}

var _ storage.EntityStore = (*EntityStore)(nil)
