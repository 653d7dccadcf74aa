//go:build integration

package schema

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	pgContainer testcontainers.Container
	testPool    *pgxpool.Pool
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgC, err := postgres.Run(ctx, "postgres:17",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to start PostgreSQL container: %v", err))
	}
	pgContainer = pgC

	host, err := pgC.Host(ctx)
	if err != nil {
		panic(fmt.Sprintf("failed to get PostgreSQL host: %v", err))
	}
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	if err != nil {
		panic(fmt.Sprintf("failed to get PostgreSQL port: %v", err))
	}
	connString := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		panic(fmt.Sprintf("failed to create pool: %v", err))
	}
	for i := 0; i < 10; i++ {
		if err = pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	if err != nil {
		panic(fmt.Sprintf("failed to ping PostgreSQL: %v", err))
	}
	testPool = pool

	code := m.Run()

	testPool.Close()
	if err := pgContainer.Terminate(ctx); err != nil {
		fmt.Printf("failed to terminate PostgreSQL container: %v\n", err)
	}

	os.Exit(code)
}

func TestLoaderDiscoversSchema(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := testPool.Exec(ctx, `
		CREATE TABLE orders (
			order_id BIGINT,
			attempt_id INT,
			status TEXT NOT NULL,
			tags TEXT[],
			note TEXT,
			PRIMARY KEY (order_id, attempt_id)
		)
	`)
	require.NoError(t, err)

	var loader Loader
	sch, err := loader.Load(ctx, testPool, "orders")
	require.NoError(t, err)

	assert.Equal(t, "orders", sch.Table)
	assert.Equal(t, []string{"order_id", "attempt_id", "status", "tags", "note"}, sch.ColumnNames())
	assert.Equal(t, []string{"order_id", "attempt_id"}, sch.PrimaryKey)

	status, ok := sch.Column("status")
	require.True(t, ok)
	assert.False(t, status.Nullable)
	note, ok := sch.Column("note")
	require.True(t, ok)
	assert.True(t, note.Nullable)
	tags, ok := sch.Column("tags")
	require.True(t, ok)
	assert.Equal(t, "text[]", tags.Type)
}

func TestLoaderCachesUntilInvalidated(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := testPool.Exec(ctx, `CREATE TABLE cached_table (id BIGINT PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)

	var loader Loader
	before, err := loader.Load(ctx, testPool, "cached_table")
	require.NoError(t, err)

	_, err = testPool.Exec(ctx, `ALTER TABLE cached_table ADD COLUMN extra TEXT`)
	require.NoError(t, err)

	// Still served from cache.
	cachedAgain, err := loader.Load(ctx, testPool, "cached_table")
	require.NoError(t, err)
	assert.Equal(t, before.ColumnNames(), cachedAgain.ColumnNames())

	loader.Invalidate("cached_table")
	refreshed, err := loader.Load(ctx, testPool, "cached_table")
	require.NoError(t, err)
	assert.Contains(t, refreshed.ColumnNames(), "extra")
}

func TestLoaderUnknownTable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var loader Loader
	_, err := loader.Load(ctx, testPool, "does_not_exist")
	require.Error(t, err)

	_, err = loader.Load(ctx, testPool, "")
	require.ErrorIs(t, err, ErrInvalidTableName)
}
