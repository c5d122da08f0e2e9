package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// RedisStore keeps each document as a JSON string under "doc:{path}" and the
// set of child keys of every parent under "idx:{parent}". Transaction uses
// WATCH/MULTI, so a concurrent write to the document fails the EXEC and the
// update function is re-run against the fresh value.
type RedisStore struct {
	client  redis.UniversalClient
	retries int
}

func NewRedisStore(config *RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return NewRedisStoreWithClient(client), nil
}

func NewRedisStoreWithClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, retries: DefaultTxRetries}
}

func docKey(p string) string { return "doc:" + p }
func idxKey(p string) string { return "idx:" + p }

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Get(ctx context.Context, p string, v interface{}) (bool, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return false, err
	}
	raw, err := r.client.Get(ctx, docKey(clean)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	node := RawNode{Raw: raw}
	if !node.Exists() {
		return false, nil
	}
	return true, node.Unmarshal(v)
}

func (r *RedisStore) write(ctx context.Context, pipe redis.Pipeliner, clean string, raw []byte) {
	pipe.Set(ctx, docKey(clean), raw, 0)
	if parent := path.Dir(clean); parent != "." {
		pipe.SAdd(ctx, idxKey(parent), path.Base(clean))
	}
}

func (r *RedisStore) Set(ctx context.Context, p string, v interface{}) error {
	clean, err := CleanPath(p)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		r.write(ctx, pipe, clean, raw)
		return nil
	})
	return err
}

// Update has no native merge in Redis, so it runs as an optimistic transaction.
func (r *RedisStore) Update(ctx context.Context, p string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return errors.New("store: update requires at least one field")
	}
	_, err := r.Transaction(ctx, p, func(current Node) (interface{}, error) {
		raw, err := mergeFields(current.(RawNode).Raw, fields)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(raw), nil
	})
	return err
}

func (r *RedisStore) Push(ctx context.Context, p string, v interface{}) (string, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return "", err
	}
	key := uuid.Must(uuid.NewV7()).String()
	if err := r.Set(ctx, Join(clean, key), v); err != nil {
		return "", err
	}
	return key, nil
}

func (r *RedisStore) Children(ctx context.Context, p string) (map[string]Node, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	keys, err := r.client.SMembers(ctx, idxKey(clean)).Result()
	if err != nil {
		return nil, fmt.Errorf("could not list children of %s: %w", clean, err)
	}
	if len(keys) == 0 {
		return map[string]Node{}, nil
	}

	docKeys := make([]string, len(keys))
	for i, k := range keys {
		docKeys[i] = docKey(Join(clean, k))
	}
	values, err := r.client.MGet(ctx, docKeys...).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]Node, len(keys))
	for i, val := range values {
		s, ok := val.(string)
		if !ok {
			continue
		}
		node := RawNode{Raw: []byte(s)}
		if node.Exists() {
			out[keys[i]] = node
		}
	}
	return out, nil
}

func (r *RedisStore) Transaction(ctx context.Context, p string, fn UpdateFunc) (TxResult, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return TxResult{}, err
	}
	key := docKey(clean)

	var last, written []byte
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		last = current

		next, err := runUpdate(fn, current)
		if err != nil {
			return err
		}
		written = next

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			r.write(ctx, pipe, clean, next)
			return nil
		})
		return err
	}

	for i := 0; i < r.retries; i++ {
		err := r.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return TxResult{Committed: true, Value: RawNode{Raw: written}}, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrAbort):
			return TxResult{Committed: false, Value: RawNode{Raw: last}}, nil
		default:
			return TxResult{}, err
		}
	}
	return TxResult{}, ErrTooManyRetries
}

// SetRetries changes how many times Transaction re-runs its callback after losing a race.
func (r *RedisStore) SetRetries(n int) {
	if n > 0 {
		r.retries = n
	}
}
