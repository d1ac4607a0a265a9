package database

import "strings"

// Rebind rewrites PostgreSQL-style $n placeholders into the ? placeholders
// SQLite expects. Ledger SQL is written once in $n form; only the SQLite
// driver rewrites it. Positional arguments must therefore appear in order,
// which all queries in this repo do.
func Rebind(query string) string {
	if !strings.ContainsRune(query, '$') {
		return query
	}

	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c != '$' || i+1 >= len(query) || !isDigit(query[i+1]) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('?')
		for i+1 < len(query) && isDigit(query[i+1]) {
			i++
		}
	}
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
