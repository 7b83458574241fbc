package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/funniceguy/web-minigame-factory/internal/config"
	"github.com/funniceguy/web-minigame-factory/internal/domain"
)

const stateKey = "leaderboard:state"

// RedisPersister is an alternative backend keeping the serialized state in
// a single Redis key. Ownership semantics are the same as the file backend:
// one process writes, the whole state is the unit of persistence.
type RedisPersister struct {
	client *redis.Client
}

// NewRedisPersister connects and verifies the connection.
func NewRedisPersister(cfg *config.RedisConfig) (*RedisPersister, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisPersister{client: client}, nil
}

// Load reads and decodes the persisted state.
func (r *RedisPersister) Load(ctx context.Context) (*domain.StoreState, error) {
	data, err := r.client.Get(ctx, stateKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading state from redis: %w", err)
	}

	var state domain.StoreState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decoding state from redis: %w", err)
	}
	if state.Players == nil {
		state.Players = make(map[string]*domain.PlayerRecord)
	}
	return &state, nil
}

// Save overwrites the state key.
func (r *RedisPersister) Save(ctx context.Context, state *domain.StoreState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := r.client.Set(ctx, stateKey, data, 0).Err(); err != nil {
		return fmt.Errorf("writing state to redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisPersister) Close() error {
	return r.client.Close()
}
