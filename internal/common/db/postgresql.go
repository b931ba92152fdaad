package db

import (
	"errors"

	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

func openPostgres(cfg Config) (Database, error) {
	pool, err := openPool(DriverPostgres, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithDB(DriverPostgres, pool), nil
}

func postgresUniqueViolation(err error) (string, bool) {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.Constraint, true
	}
	return "", false
}
