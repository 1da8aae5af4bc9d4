package conversation

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/wolfman30/studio-booking-platform/internal/domain"
)

var (
	// ErrNotFound is returned when no conversation exists for a session.
	ErrNotFound = errors.New("conversation: not found")

	// ErrAlreadyExists is returned by Create for a taken session id.
	ErrAlreadyExists = errors.New("conversation: already exists")

	// ErrVersionConflict means another writer saved the conversation first.
	ErrVersionConflict = errors.New("conversation: version conflict")
)

// Store persists conversations. Update is a compare-and-set on Version: it
// succeeds only when the stored version equals conv.Version, and bumps it.
type Store interface {
	Get(ctx context.Context, sessionID string) (*domain.Conversation, error)
	Create(ctx context.Context, conv *domain.Conversation) error
	Update(ctx context.Context, conv *domain.Conversation, appended []domain.Message) error
	List(ctx context.Context, filter ListFilter) ([]*domain.Conversation, int, error)
}

// ListFilter narrows admin listings.
type ListFilter struct {
	State          domain.State
	Fingerprint    string
	IncludeDeleted bool
	Limit          int
	Offset         int
}

func (f ListFilter) normalized() ListFilter {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// MemoryStore keeps conversations in process. Suitable for tests and single
// instance development.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string]*domain.Conversation
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string]*domain.Conversation)}
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return conv.Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[conv.SessionID]; ok {
		return ErrAlreadyExists
	}
	conv.Version = 1
	s.convs[conv.SessionID] = conv.Clone()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, conv *domain.Conversation, _ []domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.convs[conv.SessionID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != conv.Version {
		return ErrVersionConflict
	}
	conv.Version++
	s.convs[conv.SessionID] = conv.Clone()
	return nil
}

func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]*domain.Conversation, int, error) {
	filter = filter.normalized()
	s.mu.RLock()
	matched := make([]*domain.Conversation, 0, len(s.convs))
	for _, conv := range s.convs {
		if !filter.IncludeDeleted && conv.Deleted() {
			continue
		}
		if filter.State != "" && conv.State != filter.State {
			continue
		}
		if filter.Fingerprint != "" && conv.Visitor.Fingerprint != filter.Fingerprint {
			continue
		}
		matched = append(matched, conv.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].SessionID < matched[j].SessionID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	if filter.Offset >= total {
		return []*domain.Conversation{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

var _ Store = (*MemoryStore)(nil)
