package bootstrap

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/studio-booking-platform/internal/bookings"
	appconfig "github.com/wolfman30/studio-booking-platform/internal/config"
	"github.com/wolfman30/studio-booking-platform/internal/conversation"
	"github.com/wolfman30/studio-booking-platform/internal/dedup"
	"github.com/wolfman30/studio-booking-platform/internal/intake"
	"github.com/wolfman30/studio-booking-platform/pkg/logging"
)

// Dedup backends accepted by DEDUP_BACKEND.
const (
	DedupAuto     = "auto"
	DedupMemory   = "memory"
	DedupRedis    = "redis"
	DedupPostgres = "postgres"
)

// Storage is the persistence layer behind intake.Service.
type Storage struct {
	Conversations conversation.Store
	Bookings      bookings.Repository
	Guard         dedup.Guard
	Locker        intake.SessionLocker
	DedupBackend  string
}

// BuildStorage picks Postgres for conversations and bookings when a pool is
// available, Redis for session locks when a client is available, and the
// dedup guard per cfg.DedupBackend. Anything unavailable falls back to memory.
func BuildStorage(cfg *appconfig.Config, pool *pgxpool.Pool, rdb *redis.Client, logger *logging.Logger) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	st := &Storage{}
	if pool != nil {
		st.Conversations = conversation.NewPostgresStore(pool)
		st.Bookings = bookings.NewPostgresRepository(pool)
	} else {
		logger.Warn("no database configured; conversations and bookings are kept in memory")
		st.Conversations = conversation.NewMemoryStore()
		st.Bookings = bookings.NewMemoryRepository()
	}

	if rdb != nil {
		st.Locker = intake.NewRedisLocker(rdb, cfg.SessionLockTTL)
	} else {
		st.Locker = intake.NewMemoryLocker()
	}

	backend, err := resolveDedupBackend(cfg.DedupBackend, pool != nil, rdb != nil)
	if err != nil {
		return nil, err
	}
	opts := dedup.Options{Cooldown: cfg.BookingCooldown}
	switch backend {
	case DedupRedis:
		st.Guard = dedup.NewRedisGuard(rdb, opts)
	case DedupPostgres:
		st.Guard = dedup.NewPostgresGuard(pool, opts)
	default:
		st.Guard = dedup.NewMemoryGuard(opts)
	}
	st.DedupBackend = backend
	logger.Info("storage configured",
		"database", pool != nil,
		"redis", rdb != nil,
		"dedup_backend", backend,
		"booking_cooldown", opts.Cooldown.String(),
	)
	return st, nil
}

// resolveDedupBackend maps the configured backend to one that can run.
// auto prefers Redis, then Postgres, then memory. An explicit backend whose
// dependency is missing is an error.
func resolveDedupBackend(want string, havePostgres, haveRedis bool) (string, error) {
	switch want {
	case "", DedupAuto:
		switch {
		case haveRedis:
			return DedupRedis, nil
		case havePostgres:
			return DedupPostgres, nil
		}
		return DedupMemory, nil
	case DedupMemory:
		return DedupMemory, nil
	case DedupRedis:
		if !haveRedis {
			return "", fmt.Errorf("bootstrap: DEDUP_BACKEND=redis requires REDIS_ADDR")
		}
		return DedupRedis, nil
	case DedupPostgres:
		if !havePostgres {
			return "", fmt.Errorf("bootstrap: DEDUP_BACKEND=postgres requires DATABASE_URL")
		}
		return DedupPostgres, nil
	}
	return "", fmt.Errorf("bootstrap: unknown DEDUP_BACKEND %q", want)
}
