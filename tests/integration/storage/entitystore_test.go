package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/clickwise/shortener/internal/config"
	"github.com/clickwise/shortener/internal/models"
	"github.com/clickwise/shortener/internal/storage"
	storagepg "github.com/clickwise/shortener/internal/storage/postgres"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func setupPostgres(t testing.TB) config.Postgres {
	t.Helper()

	ctx := context.Background()

	pgUser := "test"
	pgPassword := "test"
	pgDB := "shortener"

	pgCont, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "postgres:16-alpine",
			Env: map[string]string{
				"POSTGRES_USER":     pgUser,
				"POSTGRES_PASSWORD": pgPassword,
				"POSTGRES_DB":       pgDB,
			},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor:   wait.ForExposedPort(),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgCont.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate postgres container: %v", err)
		}
	})

	pgHost, err := pgCont.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	pgPort, err := pgCont.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return config.Postgres{
		User:     pgUser,
		Password: pgPassword,
		Host:     pgHost,
		Port:     pgPort.Int(),
		DB:       pgDB,
		SSLMode:  "disable",
	}
}

func runMigrations(t testing.TB, cfg config.Postgres) {
	t.Helper()

	migrationPath := "file://../../../migrations"

	m, err := migrate.New(migrationPath, cfg.DSN())
	if err != nil {
		t.Fatalf("Failed to initialize migrations: %v", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			t.Fatalf("Failed to rollback migrations: %v", err)
		}
	})
}

func setupEntityStore(t testing.TB, opts ...storagepg.Option) (*storagepg.EntityStore, *sqlx.DB) {
	t.Helper()

	cfg := setupPostgres(t)
	runMigrations(t, cfg)

	db, err := storagepg.New(cfg.DSN())
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("Failed to close database: %v", err)
		}
	})

	return storagepg.NewEntityStore(db, opts...), db
}

func TestEntityStore_Get(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	t.Run("entity not found", func(t *testing.T) {
		ctx := context.Background()
		store, _ := setupEntityStore(t)

		entity, err := store.Get(ctx, storage.TableURLs, "a", "abc123")

		assert.ErrorIs(t, err, storage.ErrEntityNotFound)
		assert.Nil(t, entity)
	})

	t.Run("success", func(t *testing.T) {
		ctx := context.Background()
		store, _ := setupEntityStore(t)

		err := store.InsertOrMerge(ctx, storage.TableURLs, storage.Entity{
			PartitionKey: "a",
			RowKey:       "abc123",
			Attrs:        map[string]any{"Url": "https://example.com"},
		})
		require.NoError(t, err)

		entity, err := store.Get(ctx, storage.TableURLs, "a", "abc123")

		assert.NoError(t, err)
		require.NotNil(t, entity)
		assert.Equal(t, "abc123", entity.RowKey)
		assert.Equal(t, "https://example.com", entity.Attrs["Url"])
	})
}

func TestEntityStore_InsertOrMerge(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	t.Run("merge keeps untouched attributes", func(t *testing.T) {
		ctx := context.Background()
		store, _ := setupEntityStore(t)

		err := store.InsertOrMerge(ctx, storage.TableURLs, storage.Entity{
			PartitionKey: "a",
			RowKey:       "abc123",
			Attrs:        map[string]any{"Url": "https://example.com", "Title": "Example"},
		})
		require.NoError(t, err)

		err = store.InsertOrMerge(ctx, storage.TableURLs, storage.Entity{
			PartitionKey: "a",
			RowKey:       "abc123",
			Attrs:        map[string]any{"Url": "https://new.example.com"},
		})
		require.NoError(t, err)

		entity, err := store.Get(ctx, storage.TableURLs, "a", "abc123")

		require.NoError(t, err)
		assert.Equal(t, "https://new.example.com", entity.Attrs["Url"])
		assert.Equal(t, "Example", entity.Attrs["Title"])
	})
}

func TestEntityStore_Scan(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	t.Run("pages through a partition in key order", func(t *testing.T) {
		ctx := context.Background()
		store, _ := setupEntityStore(t, storagepg.WithPageSize(2))

		for _, rk := range []string{"a1", "a2", "a3"} {
			err := store.InsertOrMerge(ctx, storage.TableClicks, storage.Entity{
				PartitionKey: "a",
				RowKey:       rk,
				Attrs:        map[string]any{"Url": "a"},
			})
			require.NoError(t, err)
		}
		err := store.InsertOrMerge(ctx, storage.TableClicks, storage.Entity{
			PartitionKey: "b",
			RowKey:       "b1",
			Attrs:        map[string]any{"Url": "b"},
		})
		require.NoError(t, err)

		page, err := store.Scan(ctx, storage.TableClicks, "a", "")
		require.NoError(t, err)
		require.Len(t, page.Entities, 2)
		assert.Equal(t, "a1", page.Entities[0].RowKey)
		assert.Equal(t, "a2", page.Entities[1].RowKey)
		require.NotEmpty(t, page.NextToken)

		page, err = store.Scan(ctx, storage.TableClicks, "a", page.NextToken)
		require.NoError(t, err)
		require.Len(t, page.Entities, 1)
		assert.Equal(t, "a3", page.Entities[0].RowKey)
		assert.Empty(t, page.NextToken)
	})

	t.Run("empty partition filter scans the whole table", func(t *testing.T) {
		ctx := context.Background()
		store, _ := setupEntityStore(t)

		for _, e := range []storage.Entity{
			{PartitionKey: "a", RowKey: "a1", Attrs: map[string]any{}},
			{PartitionKey: "b", RowKey: "b1", Attrs: map[string]any{}},
		} {
			require.NoError(t, store.InsertOrMerge(ctx, storage.TableURLs, e))
		}

		page, err := store.Scan(ctx, storage.TableURLs, "", "")

		require.NoError(t, err)
		assert.Len(t, page.Entities, 2)
		assert.Empty(t, page.NextToken)
	})
}

func TestGateway(t *testing.T) {
	if testing.Short() {
		t.SkipNow()
	}

	t.Run("save and get round trip", func(t *testing.T) {
		ctx := context.Background()
		store, _ := setupEntityStore(t)
		gw := storage.NewGateway(store)

		saved, err := gw.Save(ctx, &models.ShortURL{
			Code:        "abc123",
			Destination: "https://example.com",
			Title:       "Example",
			Schedules: []models.Schedule{
				{
					Start:           time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
					End:             time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
					AlternativeURL:  "https://alt.example.com",
					Cron:            "0 9 * * *",
					DurationMinutes: 30,
				},
			},
		})
		require.NoError(t, err)
		require.NotNil(t, saved)

		got, err := gw.Get(ctx, "abc123")

		require.NoError(t, err)
		assert.Equal(t, "abc123", got.Code)
		assert.Equal(t, "https://example.com", got.Destination)
		assert.Equal(t, "Example", got.Title)
		require.Len(t, got.Schedules, 1)
		assert.Equal(t, "https://alt.example.com", got.Schedules[0].AlternativeURL)
		assert.Equal(t, 30, got.Schedules[0].DurationMinutes)
	})

	t.Run("unknown code", func(t *testing.T) {
		ctx := context.Background()
		store, _ := setupEntityStore(t)
		gw := storage.NewGateway(store)

		got, err := gw.Get(ctx, "missing")

		assert.ErrorIs(t, err, storage.ErrURLNotFound)
		assert.Nil(t, got)
	})

	t.Run("counter starts past the seed and advances", func(t *testing.T) {
		ctx := context.Background()
		store, _ := setupEntityStore(t)
		gw := storage.NewGateway(store)

		n, err := gw.NextCounterValue(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1025), n)

		n, err = gw.NextCounterValue(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1026), n)
	})

	t.Run("counter row stays out of listings", func(t *testing.T) {
		ctx := context.Background()
		store, _ := setupEntityStore(t)
		gw := storage.NewGateway(store)

		_, err := gw.NextCounterValue(ctx)
		require.NoError(t, err)

		_, err = gw.Save(ctx, &models.ShortURL{Code: "abc123", Destination: "https://example.com"})
		require.NoError(t, err)

		urls, err := gw.ListAll(ctx)

		require.NoError(t, err)
		require.Len(t, urls, 1)
		assert.Equal(t, "abc123", urls[0].Code)
	})

	t.Run("clicks are recorded per code", func(t *testing.T) {
		ctx := context.Background()
		store, _ := setupEntityStore(t)
		gw := storage.NewGateway(store)

		now := time.Date(2024, 5, 15, 10, 30, 0, 0, time.UTC)
		require.NoError(t, gw.RecordClick(ctx, "abc123", now))
		require.NoError(t, gw.RecordClick(ctx, "abc123", now.Add(time.Minute)))
		require.NoError(t, gw.RecordClick(ctx, "other", now))

		clicks, err := gw.ListClicksByCode(ctx, "abc123")

		require.NoError(t, err)
		require.Len(t, clicks, 2)
		timestamps := make([]string, 0, len(clicks))
		for _, c := range clicks {
			assert.Equal(t, "abc123", c.Code)
			assert.NotEmpty(t, c.ID)
			timestamps = append(timestamps, c.Timestamp)
		}
		assert.ElementsMatch(t, []string{"2024-05-15 10:30", "2024-05-15 10:31"}, timestamps)
	})
}
