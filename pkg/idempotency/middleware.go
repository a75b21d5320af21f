// Package idempotency deduplicates order submissions. A client that retries a
// POST after a network timeout should not place the order twice; the
// Idempotency-Key header it sends is remembered in redis for the TTL.
package idempotency

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) key(method, path, key string) string {
	return fmt.Sprintf("idem:%s:%s:%s", method, path, key)
}

// Seen records the key and reports whether it was already present.
func (s *Store) Seen(r *http.Request, key string) (bool, error) {
	ok, err := s.rdb.SetNX(r.Context(), s.key(r.Method, r.URL.Path, key), "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Middleware rejects requests replaying an Idempotency-Key with 409. Requests
// without the header pass through; a redis outage fails open, since a
// duplicate order is recoverable and a rejected first attempt is not.
func Middleware(store *Store, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if store == nil || key == "" {
				next.ServeHTTP(w, r)
				return
			}
			seen, err := store.Seen(r, key)
			if err != nil {
				log.Warn("idempotency check failed, letting request through", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if seen {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"error":"duplicate request"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
