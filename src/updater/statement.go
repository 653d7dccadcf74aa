package updater

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Table alias names used in the synthesized statement.
const (
	targetAlias = "t"
	valuesAlias = "v"
)

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// buildBulkStatement synthesizes the UPDATE ... FROM (VALUES ...) statement
// for the given row count. The text depends only on (table, key columns, SET
// columns, row count, returning), never on values, so identical call shapes
// produce identical statements and driver-side prepared statement caching
// works.
func (u *Updater[E]) buildBulkStatement(rowCount int, returning bool) string {
	var b strings.Builder

	b.WriteString("UPDATE ")
	b.WriteString(quoteIdent(u.schema.Table))
	b.WriteString(" AS " + targetAlias + " SET ")
	for i, col := range u.setCols {
		if i > 0 {
			b.WriteString(", ")
		}
		q := quoteIdent(col)
		b.WriteString(q)
		b.WriteString(" = " + valuesAlias + ".")
		b.WriteString(q)
	}

	b.WriteString(" FROM (VALUES ")
	param := 1
	for row := 0; row < rowCount; row++ {
		if row > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for i, col := range u.valueCols {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(param))
			param++
			// Typed casts on the first row fix the column types of the whole
			// VALUES relation; without them an all-NULL column would come out
			// as text and break the key join.
			if row == 0 {
				if colType, ok := u.schema.Column(col); ok && colType.Type != "" {
					b.WriteString("::")
					b.WriteString(colType.Type)
				}
			}
		}
		b.WriteByte(')')
	}

	b.WriteString(") AS " + valuesAlias + " (")
	for i, col := range u.valueCols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(col))
	}
	b.WriteString(") WHERE ")
	// Key IN lists narrow the target scan to the batch before the join
	// predicates against the VALUES relation run.
	for _, key := range u.keyCols {
		b.WriteString(targetAlias + "." + quoteIdent(key) + " IN (")
		for row := 0; row < rowCount; row++ {
			if row > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(param))
			param++
		}
		b.WriteString(") AND ")
	}
	for i, key := range u.keyCols {
		if i > 0 {
			b.WriteString(" AND ")
		}
		q := quoteIdent(key)
		b.WriteString(targetAlias + "." + q + " = " + valuesAlias + "." + q)
	}

	if returning {
		b.WriteString(" RETURNING ")
		for i, col := range u.valueCols {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(targetAlias + ".")
			b.WriteString(quoteIdent(col))
		}
	}

	return b.String()
}

// buildSingleStatement synthesizes the plain UPDATE used for one entity.
func (u *Updater[E]) buildSingleStatement() string {
	var b strings.Builder

	b.WriteString("UPDATE ")
	b.WriteString(quoteIdent(u.schema.Table))
	b.WriteString(" SET ")
	param := 1
	for i, col := range u.setCols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(col))
		b.WriteString(" = $")
		b.WriteString(strconv.Itoa(param))
		param++
	}
	b.WriteString(" WHERE ")
	for i, key := range u.keyCols {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString(quoteIdent(key))
		b.WriteString(" = $")
		b.WriteString(strconv.Itoa(param))
		param++
	}

	return b.String()
}

// buildParams extracts the bound parameter list: one ordered group per
// entity for the VALUES relation, input order preserved, followed by the
// key values that feed the IN lists, one column at a time.
func (u *Updater[E]) buildParams(entities []E) ([]any, error) {
	args := make([]any, 0, len(entities)*(len(u.valueCols)+len(u.keyCols)))
	for i := range entities {
		row, err := u.mapper.Row(entities[i], u.valueCols)
		if err != nil {
			return nil, fmt.Errorf("entity %d: %w", i, err)
		}
		args = append(args, row...)
	}
	for _, key := range u.keyCols {
		for i := range entities {
			val, err := u.mapper.Value(entities[i], key)
			if err != nil {
				return nil, fmt.Errorf("entity %d: %w", i, err)
			}
			args = append(args, val)
		}
	}
	return args, nil
}
