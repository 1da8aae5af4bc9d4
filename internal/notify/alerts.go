package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	alertHistoryKey = "studio:alerts:history"
	alertChannel    = "studio:alerts"

	// DefaultAlertHistory is how many alerts are kept for the dashboard.
	DefaultAlertHistory = 200
)

// Alert kinds.
const (
	AlertNewBooking   = "new_booking"
	AlertWhatsAppLink = "whatsapp_link"
)

// Alert is an in-app notification for studio admins.
type Alert struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	BookingID string    `json:"bookingId"`
	SessionID string    `json:"sessionId"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AlertStore keeps recent alerts and fans new ones out to live subscribers.
type AlertStore interface {
	Publish(ctx context.Context, alert Alert) error
	Recent(ctx context.Context, limit int) ([]Alert, error)
	// Subscribe streams alerts published after the call until cancel is
	// invoked or ctx ends.
	Subscribe(ctx context.Context) (alerts <-chan Alert, cancel func(), err error)
}

// RedisAlertStore keeps history in a capped list and broadcasts on pub/sub.
type RedisAlertStore struct {
	rdb     *redis.Client
	history int64
}

func NewRedisAlertStore(rdb *redis.Client, history int) *RedisAlertStore {
	if rdb == nil {
		panic("notify: redis client required")
	}
	if history <= 0 {
		history = DefaultAlertHistory
	}
	return &RedisAlertStore{rdb: rdb, history: int64(history)}
}

func (s *RedisAlertStore) Publish(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("notify: encode alert: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, alertHistoryKey, payload)
		pipe.LTrim(ctx, alertHistoryKey, 0, s.history-1)
		pipe.Publish(ctx, alertChannel, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("notify: publish alert: %w", err)
	}
	return nil
}

func (s *RedisAlertStore) Recent(ctx context.Context, limit int) ([]Alert, error) {
	if limit <= 0 || int64(limit) > s.history {
		limit = int(s.history)
	}
	raw, err := s.rdb.LRange(ctx, alertHistoryKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("notify: read alerts: %w", err)
	}
	out := make([]Alert, 0, len(raw))
	for _, item := range raw {
		var a Alert
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *RedisAlertStore) Subscribe(ctx context.Context) (<-chan Alert, func(), error) {
	ps := s.rdb.Subscribe(ctx, alertChannel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("notify: subscribe alerts: %w", err)
	}

	out := make(chan Alert, 16)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var a Alert
				if err := json.Unmarshal([]byte(msg.Payload), &a); err != nil {
					continue
				}
				select {
				case out <- a:
				case <-done:
					return
				case <-ctx.Done():
					cancel()
					return
				}
			}
		}
	}()
	return out, cancel, nil
}

// MemoryAlertStore is an in-process AlertStore.
type MemoryAlertStore struct {
	mu      sync.Mutex
	history int
	alerts  []Alert
	subs    map[int]chan Alert
	nextSub int
}

func NewMemoryAlertStore(history int) *MemoryAlertStore {
	if history <= 0 {
		history = DefaultAlertHistory
	}
	return &MemoryAlertStore{history: history, subs: make(map[int]chan Alert)}
}

func (s *MemoryAlertStore) Publish(ctx context.Context, alert Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append([]Alert{alert}, s.alerts...)
	if len(s.alerts) > s.history {
		s.alerts = s.alerts[:s.history]
	}
	for _, ch := range s.subs {
		select {
		case ch <- alert:
		default:
			// slow subscriber; drop rather than block publishers
		}
	}
	return nil
}

func (s *MemoryAlertStore) Recent(ctx context.Context, limit int) ([]Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.alerts) {
		limit = len(s.alerts)
	}
	out := make([]Alert, limit)
	copy(out, s.alerts[:limit])
	return out, nil
}

func (s *MemoryAlertStore) Subscribe(ctx context.Context) (<-chan Alert, func(), error) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Alert, 16)
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, cancel)
	return ch, func() {
		stop()
		cancel()
	}, nil
}

var (
	_ AlertStore = (*RedisAlertStore)(nil)
	_ AlertStore = (*MemoryAlertStore)(nil)
)
