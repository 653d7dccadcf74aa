package schema

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of the pgx API needed for metadata discovery.
// *pgx.Conn, pgx.Tx and *pgxpool.Pool all satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// DefaultCacheExpiration is the metadata cache TTL used when none is set.
const DefaultCacheExpiration = 5 * time.Minute

type cacheEntry struct {
	schema    *Schema
	expiresAt time.Time
}

// Loader discovers table schemas from the PostgreSQL information_schema,
// including primary key membership. Discovered schemas are cached per table
// name with a TTL to avoid repeated catalog queries.
// A Loader is safe for concurrent use.
type Loader struct {
	// Expiration overrides DefaultCacheExpiration when positive.
	Expiration time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// Load returns the schema of the given table, from cache when fresh.
// If the table name is empty, ErrInvalidTableName is returned.
func (l *Loader) Load(ctx context.Context, db Querier, tableName string) (*Schema, error) {
	if tableName == "" {
		return nil, ErrInvalidTableName
	}

	now := time.Now()
	if s, ok := l.cached(tableName, now); ok {
		return s, nil
	}

	s, err := fetchTableSchema(ctx, db, tableName)
	if err != nil {
		return nil, err
	}

	ttl := l.Expiration
	if ttl <= 0 {
		ttl = DefaultCacheExpiration
	}

	l.mu.Lock()
	if l.cache == nil {
		l.cache = make(map[string]cacheEntry)
	}
	l.cache[tableName] = cacheEntry{schema: s, expiresAt: now.Add(ttl)}
	l.mu.Unlock()

	return s, nil
}

// Invalidate drops the cached schema for a table, forcing a refresh on the
// next Load.
func (l *Loader) Invalidate(tableName string) {
	l.mu.Lock()
	delete(l.cache, tableName)
	l.mu.Unlock()
}

func (l *Loader) cached(tableName string, now time.Time) (*Schema, bool) {
	l.mu.RLock()
	entry, found := l.cache[tableName]
	l.mu.RUnlock()
	if found && now.Before(entry.expiresAt) {
		return entry.schema, true
	}
	return nil, false
}

// fetchTableSchema queries the catalog for column metadata and primary key
// membership, in ordinal position order.
func fetchTableSchema(ctx context.Context, db Querier, tableName string) (*Schema, error) {
	query := `
		SELECT c.column_name, c.data_type, c.is_nullable, c.udt_name, (
			SELECT tc.constraint_type
			 FROM information_schema.key_column_usage kcu
			 JOIN information_schema.table_constraints tc
			   ON tc.constraint_name = kcu.constraint_name
			  AND tc.table_name = c.table_name
			WHERE kcu.column_name = c.column_name
			  AND kcu.table_name = c.table_name
			  AND tc.constraint_type = 'PRIMARY KEY'
			LIMIT 1
		) as column_key
		FROM information_schema.columns c
		WHERE c.table_name = $1
		ORDER BY c.ordinal_position
	`
	rows, err := db.Query(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to query table columns: %w", err)
	}
	defer rows.Close()

	var columns []Column
	var primaryKey []string
	for rows.Next() {
		var col Column
		var isNullable, udtName, columnKey *string
		if err := rows.Scan(&col.Name, &col.Type, &isNullable, &udtName, &columnKey); err != nil {
			return nil, fmt.Errorf("failed to scan column data: %w", err)
		}
		col.Nullable = (isNullable != nil && *isNullable == "YES")
		if udtName != nil && strings.HasPrefix(*udtName, "_") {
			col.Type = fmt.Sprintf("%s[]", strings.TrimPrefix(*udtName, "_"))
		} else if col.Type == "USER-DEFINED" && udtName != nil {
			// Enums and domains report USER-DEFINED; the udt name is castable.
			col.Type = *udtName
		}
		if columnKey != nil && *columnKey == "PRIMARY KEY" {
			primaryKey = append(primaryKey, col.Name)
		}
		columns = append(columns, col)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", tableName)
	}

	return New(tableName, columns, primaryKey)
}
