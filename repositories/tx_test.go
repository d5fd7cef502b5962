package repositories

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mattn/go-sqlite3"

	"github.com/blogem/hard-delete-gate/models"
)

func newMockRepositories(t *testing.T) (*Repositories, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewRepositories(db), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet sqlmock expectations: %v", err)
	}
}

func TestWithTx_RollsBackWhenFnFails(t *testing.T) {
	repos, mock := newMockRepositories(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE delete_requests").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := repos.WithTx(context.Background(), func(tx *Repositories) error {
		if err := tx.DeleteRequests.MarkExecuted(context.Background(), "req-1", time.Now()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected fn error, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestWithTx_ReportsRollbackFailure(t *testing.T) {
	repos, mock := newMockRepositories(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("connection lost"))

	err := repos.WithTx(context.Background(), func(tx *Repositories) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Expected fn error to stay wrapped, got %v", err)
	}
	if got := err.Error(); got != "boom (rollback failed: connection lost)" {
		t.Errorf("Unexpected error text: %q", got)
	}
	expectationsMet(t, mock)
}

func TestWithTx_CommitFailure(t *testing.T) {
	repos, mock := newMockRepositories(t)
	diskErr := errors.New("disk I/O error")

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(diskErr)

	err := repos.WithTx(context.Background(), func(tx *Repositories) error { return nil })
	if !errors.Is(err, diskErr) {
		t.Fatalf("Expected commit error, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestWithTx_BeginFailure(t *testing.T) {
	repos, mock := newMockRepositories(t)

	mock.ExpectBegin().WillReturnError(context.DeadlineExceeded)

	called := false
	err := repos.WithTx(context.Background(), func(tx *Repositories) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline error, got %v", err)
	}
	if called {
		t.Error("fn must not run without a transaction")
	}
	expectationsMet(t, mock)
}

func TestWithTx_NestedCallJoinsOuterTransaction(t *testing.T) {
	repos, mock := newMockRepositories(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	inner := 0
	err := repos.WithTx(context.Background(), func(tx *Repositories) error {
		return tx.WithTx(context.Background(), func(nested *Repositories) error {
			inner++
			return nil
		})
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}
	if inner != 1 {
		t.Errorf("Expected nested fn to run once, ran %d times", inner)
	}
	expectationsMet(t, mock)
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	repos, mock := newMockRepositories(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	defer func() {
		if recover() == nil {
			t.Error("Expected panic to propagate")
		}
		expectationsMet(t, mock)
	}()

	_ = repos.WithTx(context.Background(), func(tx *Repositories) error {
		panic("unexpected")
	})
}

func TestResolve_NoMatchingRowIsStale(t *testing.T) {
	repos, mock := newMockRepositories(t)
	now := time.Now().UTC()
	approver := "admin-2"

	mock.ExpectExec("UPDATE delete_requests").
		WithArgs(models.StatusApproved, approver, sqlmock.AnyArg(), now, "", now, "req-1", models.StatusPendingApproval).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repos.DeleteRequests.Resolve(context.Background(), &models.DeleteRequest{
		ID:         "req-1",
		Status:     models.StatusApproved,
		ApproverID: &approver,
		ApprovedAt: &now,
		UpdatedAt:  now,
	})
	if !errors.Is(err, ErrStaleState) {
		t.Fatalf("Expected ErrStaleState, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestCreate_OtherUniqueViolationIsNotDuplicate(t *testing.T) {
	repos, mock := newMockRepositories(t)
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO delete_requests").
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique})

	err := repos.DeleteRequests.Create(context.Background(), newPendingRequest("req-1", "brands", "b1", now))
	if err == nil {
		t.Fatal("Expected error")
	}
	if errors.Is(err, ErrDuplicatePending) {
		t.Errorf("Unique violation outside the pending index must not report a duplicate: %v", err)
	}
	expectationsMet(t, mock)
}

func TestMarkExecuted_DriverErrorIsWrapped(t *testing.T) {
	repos, mock := newMockRepositories(t)
	busy := sqlite3.Error{Code: sqlite3.ErrBusy}

	mock.ExpectExec("UPDATE delete_requests").WillReturnError(busy)

	err := repos.DeleteRequests.MarkExecuted(context.Background(), "req-1", time.Now())
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrBusy {
		t.Fatalf("Expected wrapped SQLITE_BUSY, got %v", err)
	}
	if errors.Is(err, ErrStaleState) {
		t.Error("Driver errors must not be reported as stale state")
	}
	expectationsMet(t, mock)
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"locked", sqlite3.Error{Code: sqlite3.ErrLocked}, true},
		{"wrapped busy", fmt.Errorf("failed to begin transaction: %w", sqlite3.Error{Code: sqlite3.ErrBusy}), true},
		{"constraint", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, false},
		{"other", errors.New("disk I/O error"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBusy(tt.err); got != tt.want {
				t.Errorf("IsBusy(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
