// internal/common/database/store.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"carepath/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// Key layout. Care plans, sessions and the cached risk assessment are plain
// values; check-ins and escalations are append-only lists.
func PatientKey(patientID string) string     { return "patient:" + patientID }
func CarePlanKey(patientID string) string    { return "careplan:" + patientID }
func RiskKey(patientID string) string        { return "risk:" + patientID }
func SessionKey(sessionID string) string     { return "session:" + sessionID }
func CheckInsKey(patientID string) string    { return "checkins:" + patientID }
func EscalationsKey(patientID string) string { return "escalations:" + patientID }

// Store is the key-value persistence collaborator used by both pipelines.
// It guarantees read-your-writes per key; cross-key atomicity is not
// provided and not required.
type Store struct {
	Client *redis.Client
}

// New creates a Store backed by Redis.
func New(cfg config.RedisConfig) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	return &Store{Client: rdb}
}

// NewFromClient wraps an existing client. Used by tests with miniredis.
func NewFromClient(c *redis.Client) *Store {
	return &Store{Client: c}
}

// Ping tests the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	if s.Client != nil {
		return s.Client.Close()
	}
	return nil
}

// GetJSON retrieves a value by key into dest. Returns false when the key is
// absent.
func (s *Store) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores a value by key, overwriting any previous value.
func (s *Store) SetJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Append pushes a value onto the end of the list at listKey.
func (s *Store) Append(ctx context.Context, listKey string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", listKey, err)
	}
	if err := s.Client.RPush(ctx, listKey, data).Err(); err != nil {
		return fmt.Errorf("append %s: %w", listKey, err)
	}
	return nil
}

// timestamped is the minimal shape needed to window list entries.
type timestamped struct {
	Timestamp time.Time `json:"timestamp"`
}

// GetRecent returns the list entries at listKey whose timestamp falls within
// the trailing window, oldest first. Entries without a parseable timestamp
// are skipped.
func (s *Store) GetRecent(ctx context.Context, listKey string, windowDays int) ([]json.RawMessage, error) {
	items, err := s.Client.LRange(ctx, listKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("range %s: %w", listKey, err)
	}

	cutoff := time.Now().AddDate(0, 0, -windowDays)
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		var ts timestamped
		if err := json.Unmarshal([]byte(item), &ts); err != nil {
			continue
		}
		if ts.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, json.RawMessage(item))
	}
	return out, nil
}
