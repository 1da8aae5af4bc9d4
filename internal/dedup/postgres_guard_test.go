package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestPostgresGuardAcquireReserves(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	clock := newFakeClock()
	guard := newPostgresGuardWithDB(mock, Options{Cooldown: 24 * time.Hour, Now: clock.Now})

	mock.ExpectQuery("INSERT INTO booking_marks").
		WithArgs("fp_1", "bk-1", clock.Now(), clock.Now().Add(-24*time.Hour)).
		WillReturnRows(pgxmock.NewRows([]string{"booking_id"}).AddRow("bk-1"))

	if err := guard.Acquire(context.Background(), "fp_1", "bk-1"); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresGuardAcquireDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	clock := newFakeClock()
	guard := newPostgresGuardWithDB(mock, Options{Cooldown: 24 * time.Hour, Now: clock.Now})
	prior := clock.Now().Add(-2 * time.Hour)

	mock.ExpectQuery("INSERT INTO booking_marks").
		WithArgs("fp_1", "bk-2", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT booking_id, last_booking_at FROM booking_marks").
		WithArgs("fp_1").
		WillReturnRows(pgxmock.NewRows([]string{"booking_id", "last_booking_at"}).AddRow("bk-1", prior))

	err = guard.Acquire(context.Background(), "fp_1", "bk-2")
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if dup.Existing.BookingID != "bk-1" || dup.Existing.Age != 2*time.Hour {
		t.Fatalf("unexpected existing mark: %+v", dup.Existing)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresGuardCheckClearsStaleMark(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	clock := newFakeClock()
	guard := newPostgresGuardWithDB(mock, Options{Cooldown: 24 * time.Hour, Now: clock.Now})

	mock.ExpectQuery("SELECT booking_id, last_booking_at FROM booking_marks").
		WithArgs("fp_1").
		WillReturnRows(pgxmock.NewRows([]string{"booking_id", "last_booking_at"}).AddRow("bk-1", clock.Now().Add(-25*time.Hour)))
	mock.ExpectExec("DELETE FROM booking_marks").
		WithArgs("fp_1", "bk-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	existing, err := guard.CheckExisting(context.Background(), "fp_1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if existing.Exists {
		t.Fatalf("expected stale mark to be cleared, got %+v", existing)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresGuardCheckMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	guard := newPostgresGuardWithDB(mock, Options{})
	mock.ExpectQuery("SELECT booking_id, last_booking_at FROM booking_marks").
		WithArgs("fp_none").
		WillReturnError(pgx.ErrNoRows)

	existing, err := guard.CheckExisting(context.Background(), "fp_none")
	if err != nil || existing.Exists {
		t.Fatalf("expected no mark, got %+v err=%v", existing, err)
	}
}

func TestPostgresGuardAcquireRetriesWhenMarkReleased(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	clock := newFakeClock()
	guard := newPostgresGuardWithDB(mock, Options{Cooldown: 24 * time.Hour, Now: clock.Now})

	mock.ExpectQuery("INSERT INTO booking_marks").
		WithArgs("fp_1", "bk-2", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT booking_id, last_booking_at FROM booking_marks").
		WithArgs("fp_1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO booking_marks").
		WithArgs("fp_1", "bk-2", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"booking_id"}).AddRow("bk-2"))

	if err := guard.Acquire(context.Background(), "fp_1", "bk-2"); err != nil {
		t.Fatalf("expected retry to reserve, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
