package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/studio-booking-platform/internal/domain"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const bookingColumns = `id, session_id, fingerprint, name, phone, has_booking, package, package_id,
	special_requests, status, value, created_at, updated_at, deleted_at`

// PostgresRepository stores bookings in the bookings table.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository creates a repository backed by pgx pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting mocks for tests.
func NewPostgresRepositoryWithDB(db querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, bk *domain.Booking) error {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULL)
		ON CONFLICT (id) DO NOTHING
	`, bk.ID, bk.SessionID, bk.Fingerprint, bk.Name, bk.Phone, bk.HasBooking, bk.Package, bk.PackageID,
		bk.SpecialRequests, string(bk.Status), bk.Value, bk.CreatedAt, bk.UpdatedAt)
	if err != nil {
		return fmt.Errorf("bookings: insert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 AND deleted_at IS NULL`, id)
	bk, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: load: %w", err)
	}
	return bk, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*domain.Booking, int, error) {
	filter = filter.normalized()
	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE deleted_at IS NULL AND ($1 = '' OR status = $1)
	`, string(filter.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("bookings: count: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE deleted_at IS NULL AND ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("bookings: list: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Booking, 0, filter.Limit)
	for rows.Next() {
		bk, err := scanBooking(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("bookings: scan: %w", err)
		}
		out = append(out, bk)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("bookings: list rows: %w", err)
	}
	return out, total, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, upd Update, now time.Time) (*domain.Booking, error) {
	var status *string
	if upd.Status != nil {
		s := string(*upd.Status)
		status = &s
	}
	row := r.db.QueryRow(ctx, `
		UPDATE bookings
		SET status = COALESCE($2, status), value = COALESCE($3, value), updated_at = $4
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+bookingColumns, id, status, upd.Value, now)
	bk, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: update: %w", err)
	}
	return bk, nil
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, id string, now time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, now)
	if err != nil {
		return fmt.Errorf("bookings: soft delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		bk     domain.Booking
		status string
	)
	if err := row.Scan(&bk.ID, &bk.SessionID, &bk.Fingerprint, &bk.Name, &bk.Phone, &bk.HasBooking,
		&bk.Package, &bk.PackageID, &bk.SpecialRequests, &status, &bk.Value, &bk.CreatedAt, &bk.UpdatedAt,
		&bk.DeletedAt); err != nil {
		return nil, err
	}
	bk.Status = domain.BookingStatus(status)
	return &bk, nil
}

var _ Repository = (*PostgresRepository)(nil)
