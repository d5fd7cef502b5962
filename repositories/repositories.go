package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when the addressed row does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicatePending is returned when a record already has an open delete request
	ErrDuplicatePending = errors.New("pending request already exists")
	// ErrStaleState is returned when a conditional write matched no row
	ErrStaleState = errors.New("row is no longer in the expected state")
	// ErrUnknownTable is returned for tables outside the soft-delete schema
	ErrUnknownTable = errors.New("unknown table")
	// ErrReferenced is returned when a foreign key still points at the row
	ErrReferenced = errors.New("row is still referenced")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Repositories struct holds all repository interfaces
type Repositories struct {
	db *sql.DB

	DeleteRequests DeleteRequestRepository
	Audit          AuditRepository
	Records        RecordRepository
}

// NewRepositories creates and initializes all repositories
func NewRepositories(db *sql.DB) *Repositories {
	repos := bind(db)
	repos.db = db
	return repos
}

func bind(conn DBTX) *Repositories {
	return &Repositories{
		DeleteRequests: NewDeleteRequestRepository(conn),
		Audit:          NewAuditRepository(conn),
		Records:        NewRecordRepository(conn),
	}
}

// WithTx runs fn against repositories bound to a single transaction.
// The transaction commits only if fn returns nil. Calling WithTx on
// repositories that are already transactional runs fn in the same transaction.
func (r *Repositories) WithTx(ctx context.Context, fn func(tx *Repositories) error) (err error) {
	if r.db == nil {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
		}
	}()

	if err = fn(bind(tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// IsBusy reports whether err is SQLite giving up on a lock held by another connection
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
