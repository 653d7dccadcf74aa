// Package updater turns a batch of N entities into a single
// UPDATE ... FROM (VALUES ...) statement, so that N rows, each with its own
// distinct new values, are updated in one round trip.
package updater

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sandrolain/pg-bulk-updater/src/common"
	"github.com/sandrolain/pg-bulk-updater/src/entity"
	"github.com/sandrolain/pg-bulk-updater/src/schema"
)

// Session is the subset of the pgx API the updater executes through.
// *pgx.Conn, pgx.Tx and *pgxpool.Pool all satisfy it. The session is owned
// and scoped by the caller; the updater never opens, commits or closes
// anything.
type Session interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Config defines the construction options of an Updater.
type Config struct {
	// Key columns used to correlate entities with table rows.
	// When set, it overrides the schema-declared primary key entirely (e.g.
	// composite business keys on tables without a declared primary key).
	PrimaryFields []string `mapstructure:"primaryFields"`

	// Columns to update. Defaults to every non-key column shared between the
	// schema and the entity type.
	Fields []string `mapstructure:"fields"`

	// Enable strict identifier validation (recommended: true)
	StrictValidation bool `mapstructure:"strictValidation" default:"true"`
}

// Updater updates many rows of one table from entities of type E with a
// single statement. All schema/entity validation happens at construction;
// a constructed Updater is immutable and safe for concurrent use, each
// invocation receiving its own session and batch.
type Updater[E any] struct {
	cfg    *Config
	schema *schema.Schema
	mapper *entity.Mapper

	keyCols   []string // join key, schema column order
	setCols   []string // SET clause columns, schema column order
	valueCols []string // VALUES relation columns: keyCols then setCols

	slog *slog.Logger
}

// New builds an Updater for entity type E against the given table schema.
// Recognized options: primaryFields, fields, strictValidation.
func New[E any](sch *schema.Schema, opts map[string]any) (*Updater[E], error) {
	if sch == nil {
		return nil, fmt.Errorf("schema is required")
	}
	cfg, err := common.ParseConfig[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("invalid updater options: %w", err)
	}

	mapper, err := entity.For[E]()
	if err != nil {
		return nil, err
	}

	u := &Updater[E]{
		cfg:    cfg,
		schema: sch,
		mapper: mapper,
		slog:   slog.Default().With("context", "BulkUpdater", "table", sch.Table),
	}

	if err := u.resolveColumns(); err != nil {
		return nil, err
	}
	return u, nil
}

// resolveColumns computes the key columns, the shared field set and the SET
// clause columns once per (schema, entity type) pair.
func (u *Updater[E]) resolveColumns() error {
	keys := u.cfg.PrimaryFields
	if len(keys) == 0 {
		keys = u.schema.PrimaryKey
	}
	if len(keys) == 0 {
		return ErrNoKeyDefined
	}

	isKey := make(map[string]bool, len(keys))
	for _, key := range keys {
		if err := schema.ValidateIdentifier(key, u.cfg.StrictValidation); err != nil {
			return fmt.Errorf("invalid key column name: %w", err)
		}
		if err := u.requireShared(key); err != nil {
			return err
		}
		isKey[key] = true
	}

	// Shared field set and SET columns, both normalized to schema column
	// order so that the statement text is stable.
	var setCols []string
	for _, col := range u.schema.ColumnNames() {
		if isKey[col] || !u.mapper.Has(col) {
			continue
		}
		setCols = append(setCols, col)
	}

	if len(u.cfg.Fields) > 0 {
		requested := make(map[string]bool, len(u.cfg.Fields))
		for _, col := range u.cfg.Fields {
			if err := schema.ValidateIdentifier(col, u.cfg.StrictValidation); err != nil {
				return fmt.Errorf("invalid field name: %w", err)
			}
			if isKey[col] {
				return fmt.Errorf("field %s is a key column and cannot be updated", col)
			}
			if err := u.requireShared(col); err != nil {
				return err
			}
			requested[col] = true
		}
		filtered := setCols[:0]
		for _, col := range setCols {
			if requested[col] {
				filtered = append(filtered, col)
			}
		}
		setCols = filtered
	}

	if len(setCols) == 0 {
		return ErrNothingToUpdate
	}

	u.keyCols = orderBySchema(u.schema, keys)
	u.setCols = setCols
	u.valueCols = append(append([]string(nil), u.keyCols...), u.setCols...)
	return nil
}

// requireShared fails when a column needed by the operation is not present on
// both the schema and the entity type.
func (u *Updater[E]) requireShared(col string) error {
	if !u.schema.HasColumn(col) || !u.mapper.Has(col) {
		return &SchemaMismatchError{
			Table:      u.schema.Table,
			Column:     col,
			EntityType: u.mapper.Type().String(),
		}
	}
	return nil
}

func orderBySchema(sch *schema.Schema, cols []string) []string {
	member := make(map[string]bool, len(cols))
	for _, col := range cols {
		member[col] = true
	}
	ordered := make([]string, 0, len(cols))
	for _, col := range sch.ColumnNames() {
		if member[col] {
			ordered = append(ordered, col)
		}
	}
	return ordered
}

// WithFields derives an Updater restricted to the given subset of update
// columns. The schema/entity mapping is shared with the receiver. An unknown
// or key column is an error rather than being silently dropped.
func (u *Updater[E]) WithFields(fields ...string) (*Updater[E], error) {
	cfg := *u.cfg
	cfg.Fields = fields
	derived := &Updater[E]{
		cfg:    &cfg,
		schema: u.schema,
		mapper: u.mapper,
		slog:   u.slog,
	}
	if err := derived.resolveColumns(); err != nil {
		return nil, err
	}
	return derived, nil
}

// KeyColumns returns the resolved join key columns in schema order.
func (u *Updater[E]) KeyColumns() []string {
	return append([]string(nil), u.keyCols...)
}

// UpdateColumns returns the resolved SET clause columns in schema order.
func (u *Updater[E]) UpdateColumns() []string {
	return append([]string(nil), u.setCols...)
}
