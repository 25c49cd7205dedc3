// Package testutil provides shared helpers for tests that need real
// infrastructure: a throwaway PostgreSQL instance with pgvector, and small
// fakes for the embedding and analysis dependencies.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/corvid-labs/corpus/db"
	"github.com/corvid-labs/corpus/internal/knowledge"
)

// pgvector ships in the pgvector/pgvector images; the plain postgres image
// lacks the extension.
const postgresImage = "pgvector/pgvector:pg17"

// SetupTestDB starts a disposable PostgreSQL container, runs all
// migrations, and returns a connected pool. The container and pool are torn
// down via t.Cleanup. Tests that call this should be skipped under -short.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	ctr, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("corpus_test"),
		postgres.WithUsername("corpus"),
		postgres.WithPassword("corpus"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	connURL, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("container connection string: %v", err)
	}

	if err := db.Migrate(connURL); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pool, err := knowledge.Connect(ctx, connURL)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}
