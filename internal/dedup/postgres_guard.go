package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresGuard stores one mark row per fingerprint. The conditional upsert
// takes the row lock, so concurrent acquires for one fingerprint serialize.
type PostgresGuard struct {
	db   rowQuerier
	opts Options
}

// NewPostgresGuard builds a guard on pgxpool.
func NewPostgresGuard(pool *pgxpool.Pool, opts Options) *PostgresGuard {
	if pool == nil {
		panic("dedup: pgx pool required")
	}
	return &PostgresGuard{db: pool, opts: opts.withDefaults()}
}

func newPostgresGuardWithDB(db rowQuerier, opts Options) *PostgresGuard {
	return &PostgresGuard{db: db, opts: opts.withDefaults()}
}

func (g *PostgresGuard) CheckExisting(ctx context.Context, fingerprint string) (Existing, error) {
	if fingerprint == "" {
		return Existing{}, ErrMissingFingerprint
	}
	existing, err := g.lookup(ctx, fingerprint)
	if err != nil || !existing.Exists {
		return Existing{}, err
	}
	if existing.Age >= g.opts.Cooldown {
		if err := g.Release(ctx, fingerprint, existing.BookingID); err != nil {
			return Existing{}, err
		}
		return Existing{}, nil
	}
	return existing, nil
}

// reserveAttempts bounds retries when a competing release removes the mark
// between the conditional upsert and the lookup.
const reserveAttempts = 2

func (g *PostgresGuard) Acquire(ctx context.Context, fingerprint, bookingID string) error {
	if fingerprint == "" {
		return ErrMissingFingerprint
	}
	for attempt := 0; attempt < reserveAttempts; attempt++ {
		ok, err := g.reserve(ctx, fingerprint, bookingID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		existing, err := g.lookup(ctx, fingerprint)
		if err != nil {
			return err
		}
		if existing.Exists {
			return &DuplicateError{Existing: existing}
		}
	}
	return fmt.Errorf("dedup: mark for %s kept vanishing during reserve", fingerprint)
}

// reserve upserts the mark unless a fresh one is held. It reports false when
// the existing mark is still inside the cooldown.
func (g *PostgresGuard) reserve(ctx context.Context, fingerprint, bookingID string) (bool, error) {
	now := g.opts.Now()
	var reserved string
	err := g.db.QueryRow(ctx, `
		INSERT INTO booking_marks (fingerprint, booking_id, last_booking_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (fingerprint) DO UPDATE
		SET booking_id = EXCLUDED.booking_id, last_booking_at = EXCLUDED.last_booking_at
		WHERE booking_marks.last_booking_at <= $4
		RETURNING booking_id
	`, fingerprint, bookingID, now, now.Add(-g.opts.Cooldown)).Scan(&reserved)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("dedup: reserve failed: %w", err)
	}
}

func (g *PostgresGuard) Release(ctx context.Context, fingerprint, bookingID string) error {
	if _, err := g.db.Exec(ctx, `DELETE FROM booking_marks WHERE fingerprint = $1 AND booking_id = $2`, fingerprint, bookingID); err != nil {
		return fmt.Errorf("dedup: release failed: %w", err)
	}
	return nil
}

func (g *PostgresGuard) lookup(ctx context.Context, fingerprint string) (Existing, error) {
	var (
		bookingID string
		at        time.Time
	)
	err := g.db.QueryRow(ctx, `SELECT booking_id, last_booking_at FROM booking_marks WHERE fingerprint = $1`, fingerprint).
		Scan(&bookingID, &at)
	if errors.Is(err, pgx.ErrNoRows) {
		return Existing{}, nil
	}
	if err != nil {
		return Existing{}, fmt.Errorf("dedup: lookup failed: %w", err)
	}
	return Existing{Exists: true, BookingID: bookingID, LastBookingAt: at, Age: g.opts.Now().Sub(at)}, nil
}

var _ Guard = (*PostgresGuard)(nil)
