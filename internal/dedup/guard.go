// Package dedup enforces at most one booking per device fingerprint within a
// cooldown window. Check-and-reserve is a single atomic step per fingerprint.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultCooldown is one booking per device per day.
const DefaultCooldown = 24 * time.Hour

var (
	// ErrDuplicateBooking is matched by *DuplicateError.
	ErrDuplicateBooking = errors.New("dedup: duplicate booking")

	// ErrMissingFingerprint is returned when no fingerprint was supplied.
	ErrMissingFingerprint = errors.New("dedup: fingerprint required")
)

// Existing describes the active mark for a fingerprint.
type Existing struct {
	Exists        bool
	BookingID     string
	LastBookingAt time.Time
	Age           time.Duration
}

// DuplicateError carries the booking that blocked a new one.
type DuplicateError struct {
	Existing Existing
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("dedup: booking %s already exists (age %s)", e.Existing.BookingID, e.Existing.Age.Truncate(time.Second))
}

// Is lets errors.Is(err, ErrDuplicateBooking) match.
func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicateBooking }

// Guard is implemented by every backend.
//
// CheckExisting reports the active mark; stale marks are cleared and reported
// as absent. Acquire reserves the fingerprint for bookingID or fails with
// *DuplicateError. Release drops a reservation only if it still belongs to
// bookingID, so a failed commit can give the slot back.
type Guard interface {
	CheckExisting(ctx context.Context, fingerprint string) (Existing, error)
	Acquire(ctx context.Context, fingerprint, bookingID string) error
	Release(ctx context.Context, fingerprint, bookingID string) error
}

// Options are shared by all guard backends.
type Options struct {
	Cooldown time.Duration
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Cooldown <= 0 {
		o.Cooldown = DefaultCooldown
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

type mark struct {
	bookingID string
	at        time.Time
}

// MemoryGuard is an in-process guard.
type MemoryGuard struct {
	opts  Options
	mu    sync.Mutex
	marks map[string]mark
}

// NewMemoryGuard creates an empty guard.
func NewMemoryGuard(opts Options) *MemoryGuard {
	return &MemoryGuard{opts: opts.withDefaults(), marks: make(map[string]mark)}
}

func (g *MemoryGuard) CheckExisting(ctx context.Context, fingerprint string) (Existing, error) {
	if fingerprint == "" {
		return Existing{}, ErrMissingFingerprint
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.activeLocked(fingerprint), nil
}

func (g *MemoryGuard) Acquire(ctx context.Context, fingerprint, bookingID string) error {
	if fingerprint == "" {
		return ErrMissingFingerprint
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if existing := g.activeLocked(fingerprint); existing.Exists {
		return &DuplicateError{Existing: existing}
	}
	g.marks[fingerprint] = mark{bookingID: bookingID, at: g.opts.Now()}
	return nil
}

func (g *MemoryGuard) Release(ctx context.Context, fingerprint, bookingID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.marks[fingerprint]; ok && m.bookingID == bookingID {
		delete(g.marks, fingerprint)
	}
	return nil
}

func (g *MemoryGuard) activeLocked(fingerprint string) Existing {
	m, ok := g.marks[fingerprint]
	if !ok {
		return Existing{}
	}
	age := g.opts.Now().Sub(m.at)
	if age >= g.opts.Cooldown {
		delete(g.marks, fingerprint)
		return Existing{}
	}
	return Existing{Exists: true, BookingID: m.bookingID, LastBookingAt: m.at, Age: age}
}

var _ Guard = (*MemoryGuard)(nil)
