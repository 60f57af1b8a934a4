// Package postgres implements the EntityStore contract on PostgreSQL. Each
// logical table maps to a physical table keyed by (partition_key, row_key)
// with the attributes in a jsonb column, so insert-or-merge and segmented
// scans translate to native upserts and keyset pagination.
package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Class 08 SQLSTATEs are connection exceptions: transient by nature.
const connectionExceptionClass = "08"

func isConnectionError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && len(pgErr.SQLState()) >= 2 &&
		pgErr.SQLState()[:2] == connectionExceptionClass
}

// New connects to PostgreSQL over the pgx stdlib driver.
func New(dsn string) (*sqlx.DB, error) {
	const op = "storage.postgres.New"

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	return db, nil
}
