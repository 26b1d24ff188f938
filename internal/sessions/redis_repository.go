package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// takeFlowRetries bounds optimistic retries when another writer touches the
// session between WATCH and EXEC.
const takeFlowRetries = 5

var errFlowContended = errors.New("session flow marker contended")

// RedisRepository implements Repository using Redis as the backing store.
// Sessions are stored as JSON under key "<prefix><session id>" with TTL = expiresAt - now.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a Redis-based session repository. Prefix may be empty.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "portal:session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(id string) string {
	return r.prefix + id
}

func (r *RedisRepository) Save(ctx context.Context, s *Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	exp := time.Until(s.ExpiresAt)
	if exp <= 0 {
		exp = time.Second
	}
	return r.client.Set(ctx, r.key(s.ID), b, exp).Err()
}

func (r *RedisRepository) Get(ctx context.Context, id string) (*Session, error) {
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	if time.Now().UTC().After(s.ExpiresAt) {
		_ = r.client.Del(ctx, r.key(id)).Err()
		return nil, nil
	}
	return &s, nil
}

func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id)).Err()
}

// TakeFlow clears the marker under WATCH so that of two concurrent callbacks on
// one session only one receives it.
func (r *RedisRepository) TakeFlow(ctx context.Context, id string) (FlowState, error) {
	key := r.key(id)
	var taken FlowState
	txf := func(tx *redis.Tx) error {
		taken = NoFlow()
		b, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil
			}
			return err
		}
		var s Session
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s.Flow.Kind == FlowNone || time.Now().UTC().After(s.ExpiresAt) {
			return nil
		}
		f := s.Flow
		s.Flow = NoFlow()
		nb, err := json.Marshal(&s)
		if err != nil {
			return err
		}
		exp := time.Until(s.ExpiresAt)
		if exp <= 0 {
			exp = time.Second
		}
		if _, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, nb, exp)
			return nil
		}); err != nil {
			return err
		}
		taken = f
		return nil
	}
	for i := 0; i < takeFlowRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return NoFlow(), err
		}
		return taken, nil
	}
	return NoFlow(), errFlowContended
}
