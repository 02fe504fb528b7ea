// Package storage holds every query DeskTown runs against PostgreSQL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrConflict          = errors.New("record already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicateEvent    = errors.New("webhook event already processed")
	ErrForbidden         = errors.New("not allowed")
)

const uniqueViolation = "23505"

// Storage wraps a gorm connection. Methods are safe for concurrent use.
type Storage struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Storage {
	return &Storage{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock returns a copy that reads the current time from now
func (s *Storage) WithClock(now func() time.Time) *Storage {
	return &Storage{db: s.db, now: now}
}

// DB exposes the underlying connection for health checks and search fallback
func (s *Storage) DB() *gorm.DB {
	return s.db
}

// Now is the clock used for expiry predicates
func (s *Storage) Now() time.Time {
	return s.now()
}

func (s *Storage) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// Transaction runs fn against a Storage bound to a single transaction
func (s *Storage) Transaction(ctx context.Context, fn func(tx *Storage) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Storage{db: tx, now: s.now})
	})
}

// Ping verifies the database is reachable
func (s *Storage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// translate maps driver errors onto the package sentinels
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrConflict, constraintName(err))
	}
	return err
}

// IsUniqueViolation reports whether err is a PostgreSQL unique_violation
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// affected returns ErrNotFound when a targeted write touched no rows
func affected(result *gorm.DB) error {
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
