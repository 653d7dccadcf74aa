package updater

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Update runs the bulk update without requesting a result set. The statement
// is still executed and its effects are visible to subsequent reads on the
// same session scope.
func (u *Updater[E]) Update(ctx context.Context, sess Session, entities []E) error {
	if len(entities) == 0 {
		return ErrEmptyBatch
	}
	if _, err := u.keyIndex(entities); err != nil {
		return err
	}

	stmt := u.buildBulkStatement(len(entities), false)
	args, err := u.buildParams(entities)
	if err != nil {
		return err
	}

	u.slog.Debug("executing bulk update", "rows", len(entities), "params", len(args))
	tag, err := sess.Exec(ctx, stmt, args...)
	if err != nil {
		return &ExecutionError{Table: u.schema.Table, Err: err}
	}
	u.slog.Debug("bulk update executed", "affected", tag.RowsAffected())
	return nil
}

// UpdateReturning runs the bulk update and reconstructs the updated entities
// from the RETURNING result set. Returned rows are matched back to the input
// entities by key column values, not by position, because the database does
// not guarantee that output order follows the VALUES order. The result is in
// input order; entities whose row was not updated are omitted.
func (u *Updater[E]) UpdateReturning(ctx context.Context, sess Session, entities []E) ([]E, error) {
	if len(entities) == 0 {
		return nil, ErrEmptyBatch
	}
	index, err := u.keyIndex(entities)
	if err != nil {
		return nil, err
	}

	stmt := u.buildBulkStatement(len(entities), true)
	args, err := u.buildParams(entities)
	if err != nil {
		return nil, err
	}

	u.slog.Debug("executing bulk update", "rows", len(entities), "params", len(args), "returning", true)
	rows, err := sess.Query(ctx, stmt, args...)
	if err != nil {
		return nil, &ExecutionError{Table: u.schema.Table, Err: err}
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var returned []map[string]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, &ExecutionError{Table: u.schema.Table, Err: err}
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = vals[i]
		}
		returned = append(returned, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{Table: u.schema.Table, Err: err}
	}

	u.slog.Debug("bulk update executed", "returned", len(returned))
	return u.remap(entities, index, returned)
}

// UpdateOne updates a single row from one entity with a plain UPDATE.
func (u *Updater[E]) UpdateOne(ctx context.Context, sess Session, ent E) error {
	stmt := u.buildSingleStatement()

	args := make([]any, 0, len(u.setCols)+len(u.keyCols))
	setVals, err := u.mapper.Row(ent, u.setCols)
	if err != nil {
		return err
	}
	keyVals, err := u.mapper.Row(ent, u.keyCols)
	if err != nil {
		return err
	}
	args = append(append(args, setVals...), keyVals...)

	u.slog.Debug("executing single update")
	if _, err := sess.Exec(ctx, stmt, args...); err != nil {
		return &ExecutionError{Table: u.schema.Table, Err: err}
	}
	return nil
}

// keyIndex maps each entity's key to its batch position. Two entities with
// the same key would both join the same target row, so the batch is rejected
// before any statement is sent.
func (u *Updater[E]) keyIndex(entities []E) (map[string]int, error) {
	index := make(map[string]int, len(entities))
	for i := range entities {
		key, err := u.keyOf(entities[i])
		if err != nil {
			return nil, err
		}
		if prev, dup := index[key]; dup {
			return nil, fmt.Errorf("entities %d and %d: %w", prev, i, ErrDuplicateKey)
		}
		index[key] = i
	}
	return index, nil
}

// remap reorders the returned rows to input order by re-matching on key
// column values. Each matched output entity starts as a copy of its input
// entity with the returned columns applied, so entity fields outside the
// returned column set keep their input values.
func (u *Updater[E]) remap(entities []E, index map[string]int, returned []map[string]any) ([]E, error) {
	matched := make([]*E, len(entities))
	for _, row := range returned {
		// Run the returned values through the entity field types first, so
		// that driver representations (int32, [16]byte uuid, ...) compare
		// equal to the input values.
		var decoded E
		if err := u.mapper.Apply(row, &decoded); err != nil {
			return nil, fmt.Errorf("failed to map returned row: %w", err)
		}
		key, err := u.keyOf(decoded)
		if err != nil {
			return nil, err
		}
		idx, ok := index[key]
		if !ok {
			u.slog.Debug("returned row does not match any input entity", "key", key)
			continue
		}
		ent := entities[idx]
		if err := u.mapper.Apply(row, &ent); err != nil {
			return nil, fmt.Errorf("failed to map returned row: %w", err)
		}
		matched[idx] = &ent
	}

	result := make([]E, 0, len(entities))
	for _, ent := range matched {
		if ent != nil {
			result = append(result, *ent)
		}
	}
	return result, nil
}

// keyOf renders the key column values of an entity as a comparable string.
// Timestamps are normalized to UTC so the same instant compares equal
// regardless of the location the driver or the caller attached to it.
func (u *Updater[E]) keyOf(ent E) (string, error) {
	vals, err := u.mapper.Row(ent, u.keyCols)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i, v := range vals {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		switch t := v.(type) {
		case time.Time:
			b.WriteString(t.UTC().Format(time.RFC3339Nano))
		case *time.Time:
			if t != nil {
				b.WriteString(t.UTC().Format(time.RFC3339Nano))
			} else {
				b.WriteString("<nil>")
			}
		default:
			fmt.Fprintf(&b, "%v", v)
		}
	}
	return b.String(), nil
}
