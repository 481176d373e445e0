package storage

import (
	"strconv"
	"strings"
)

// Dialect selects the SQL backend flavour.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) Valid() bool {
	return d == DialectSQLite || d == DialectPostgres
}

// rebind rewrites ? placeholders to the $N form Postgres drivers expect.
// Queries are written once with ? and rebound per dialect.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
