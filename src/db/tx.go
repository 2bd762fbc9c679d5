package db

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"ticketing/src/metrics"
	"ticketing/src/types"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// Store runs units of work against the database. Every call to Atomic is a
// single transaction: either all of its writes land or none do.
type Store struct {
	db         *gorm.DB
	isolation  sql.IsolationLevel
	maxRetries int
}

type Option func(*Store)

func WithIsolation(level sql.IsolationLevel) Option {
	return func(s *Store) {
		s.isolation = level
	}
}

// WithMaxRetries sets how many times a transaction that lost a
// serialization race is re-run before giving up.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:         db,
		isolation:  sql.LevelDefault,
		maxRetries: 3,
	}
	if db.Dialector.Name() == "postgres" {
		s.isolation = sql.LevelSerializable
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// Atomic runs fn in a transaction. fn may be called more than once, so it
// must not keep side effects outside tx between attempts.
func (s *Store) Atomic(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var txOpts *sql.TxOptions
	if s.isolation != sql.LevelDefault {
		txOpts = &sql.TxOptions{Isolation: s.isolation}
	}

	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.WithContext(ctx).Transaction(fn, txOpts)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt < s.maxRetries {
			metrics.TxRetries.Inc()
			log.Printf("[store] retrying transaction (attempt %d): %s\n", attempt+1, err.Error())
		}
	}
	log.Printf("[store] giving up after %d retries: %s\n", s.maxRetries, err.Error())
	return types.ErrTransactionConflict
}

func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
