package bookings

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wolfman30/studio-booking-platform/internal/domain"
)

var (
	// ErrNotFound is returned for unknown or soft-deleted bookings.
	ErrNotFound = errors.New("bookings: not found")
	// ErrAlreadyExists is returned when a booking id is reused.
	ErrAlreadyExists = errors.New("bookings: already exists")
)

// ListFilter narrows admin listings.
type ListFilter struct {
	Status domain.BookingStatus
	Limit  int
	Offset int
}

func (f ListFilter) normalized() ListFilter {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Update carries the admin-editable fields; nil means unchanged.
type Update struct {
	Status *domain.BookingStatus
	Value  *float64
}

// Repository persists bookings.
type Repository interface {
	Create(ctx context.Context, bk *domain.Booking) error
	Get(ctx context.Context, id string) (*domain.Booking, error)
	List(ctx context.Context, filter ListFilter) ([]*domain.Booking, int, error)
	Update(ctx context.Context, id string, upd Update, now time.Time) (*domain.Booking, error)
	SoftDelete(ctx context.Context, id string, now time.Time) error
}

// MemoryRepository keeps bookings in process.
type MemoryRepository struct {
	mu       sync.RWMutex
	bookings map[string]*domain.Booking
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{bookings: make(map[string]*domain.Booking)}
}

func (r *MemoryRepository) Create(ctx context.Context, bk *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[bk.ID]; ok {
		return ErrAlreadyExists
	}
	r.bookings[bk.ID] = bk.Clone()
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bk, ok := r.bookings[id]
	if !ok || bk.DeletedAt != nil {
		return nil, ErrNotFound
	}
	return bk.Clone(), nil
}

func (r *MemoryRepository) List(ctx context.Context, filter ListFilter) ([]*domain.Booking, int, error) {
	filter = filter.normalized()
	r.mu.RLock()
	matched := make([]*domain.Booking, 0, len(r.bookings))
	for _, bk := range r.bookings {
		if bk.DeletedAt != nil {
			continue
		}
		if filter.Status != "" && bk.Status != filter.Status {
			continue
		}
		matched = append(matched, bk.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if filter.Offset >= total {
		return []*domain.Booking{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id string, upd Update, now time.Time) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bk, ok := r.bookings[id]
	if !ok || bk.DeletedAt != nil {
		return nil, ErrNotFound
	}
	if upd.Status != nil {
		bk.Status = *upd.Status
	}
	if upd.Value != nil {
		v := *upd.Value
		bk.Value = &v
	}
	bk.UpdatedAt = now
	return bk.Clone(), nil
}

func (r *MemoryRepository) SoftDelete(ctx context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	bk, ok := r.bookings[id]
	if !ok || bk.DeletedAt != nil {
		return ErrNotFound
	}
	bk.DeletedAt = &now
	bk.UpdatedAt = now
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
