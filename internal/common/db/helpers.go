package db

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"
)

// IsNoRows checks if the error is sql.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// UniqueViolation reports a duplicate key error from either driver and the
// key or constraint it hit.
func UniqueViolation(err error) (string, bool) {
	if key, ok := mysqlUniqueViolation(err); ok {
		return key, true
	}
	return postgresUniqueViolation(err)
}

// Rebind rewrites '?' placeholders into the numbered form Postgres expects.
// Queries must not contain literal question marks.
func Rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
