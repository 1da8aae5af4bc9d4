package bookings

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/studio-booking-platform/internal/domain"
	"github.com/wolfman30/studio-booking-platform/pkg/logging"
)

func sampleBooking(id string, at time.Time, status domain.BookingStatus) *domain.Booking {
	price := 8000.0
	return &domain.Booking{
		ID: id, SessionID: "s-" + id, Fingerprint: "fp_" + id, Name: "Ravi", Phone: "9123456780",
		HasBooking: true, Package: "Corporate Headshots", PackageID: "corporate-headshots",
		Status: status, Value: &price, CreatedAt: at, UpdatedAt: at,
	}
}

func TestMemoryRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.Create(ctx, sampleBooking("b1", builtAt, domain.BookingPending)))
	require.NoError(t, repo.Create(ctx, sampleBooking("b2", builtAt.Add(time.Minute), domain.BookingPending)))
	require.ErrorIs(t, repo.Create(ctx, sampleBooking("b1", builtAt, domain.BookingPending)), ErrAlreadyExists)

	list, total, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "b2", list[0].ID)

	contacted := domain.BookingContacted
	value := 9500.0
	updated, err := repo.Update(ctx, "b1", Update{Status: &contacted, Value: &value}, builtAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.BookingContacted, updated.Status)
	assert.Equal(t, 9500.0, *updated.Value)

	list, total, err = repo.List(ctx, ListFilter{Status: domain.BookingContacted})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "b1", list[0].ID)

	require.NoError(t, repo.SoftDelete(ctx, "b1", builtAt.Add(2*time.Hour)))
	_, err = repo.Get(ctx, "b1")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, repo.SoftDelete(ctx, "b1", builtAt), ErrNotFound)
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, sampleBooking("b1", builtAt, domain.BookingPending)))

	got, err := repo.Get(ctx, "b1")
	require.NoError(t, err)
	*got.Value = 1

	again, err := repo.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 8000.0, *again.Value)
}

func TestServiceRejectsInvalidStatus(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	bad := domain.BookingStatus("archived")
	_, err := svc.Update(context.Background(), "b1", Update{Status: &bad})
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, _, err = svc.List(context.Background(), ListFilter{Status: bad})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestServiceRecordAndUpdate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), logging.Discard())
	require.NoError(t, svc.Record(ctx, sampleBooking("b1", builtAt, domain.BookingPending)))

	confirmed := domain.BookingConfirmed
	bk, err := svc.Update(ctx, "b1", Update{Status: &confirmed})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, bk.Status)

	require.NoError(t, svc.Delete(ctx, "b1"))
	_, err = svc.Get(ctx, "b1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepositoryCreateConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepositoryWithDB(mock)
	bk := sampleBooking("b1", builtAt, domain.BookingPending)

	mock.ExpectExec("INSERT INTO bookings").
		WithArgs("b1", "s-b1", "fp_b1", "Ravi", "9123456780", true, "Corporate Headshots", "corporate-headshots",
			pgxmock.AnyArg(), "pending", pgxmock.AnyArg(), builtAt, builtAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	if err := repo.Create(context.Background(), bk); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepositorySoftDeleteMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepositoryWithDB(mock)
	mock.ExpectExec("UPDATE bookings SET deleted_at").
		WithArgs("missing", builtAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.SoftDelete(context.Background(), "missing", builtAt); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresRepositoryGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepositoryWithDB(mock)
	value := 15000.0
	rows := pgxmock.NewRows([]string{"id", "session_id", "fingerprint", "name", "phone", "has_booking", "package",
		"package_id", "special_requests", "status", "value", "created_at", "updated_at", "deleted_at"}).
		AddRow("b1", "s1", "fp_1", "Meera", "9988776655", true, "Birthday", "birthday",
			(*string)(nil), "confirmed", &value, builtAt, builtAt, (*time.Time)(nil))
	mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id").WithArgs("b1").WillReturnRows(rows)

	bk, err := repo.Get(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, bk.Status)
	assert.Equal(t, "Birthday", bk.Package)
	require.NotNil(t, bk.Value)
	assert.Equal(t, 15000.0, *bk.Value)
	assert.Nil(t, bk.DeletedAt)
}
