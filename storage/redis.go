package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"court-desk/types"
)

const (
	catalogTTL = 5 * time.Minute
	summaryTTL = 24 * time.Hour

	subscribersKey = "dashboard:subs"
)

type Storage struct {
	client *redis.Client
}

func New(addr, password string, db int) *Storage {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Storage{client: rdb}
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// getJSON returns false when the key does not exist.
func (s *Storage) getJSON(ctx context.Context, key string, out any) (bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, out); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

// ===== Sessions =====

func sessionKey(chatID int64) string {
	return fmt.Sprintf("session:%d", chatID)
}

// SaveSession stores the session until its token expires.
func (s *Storage) SaveSession(ctx context.Context, sess types.Session, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("session for chat %d already expired", sess.ChatID)
	}
	return s.setJSON(ctx, sessionKey(sess.ChatID), sess, ttl)
}

// GetSession returns nil, nil when the chat has no session.
func (s *Storage) GetSession(ctx context.Context, chatID int64) (*types.Session, error) {
	var sess types.Session
	ok, err := s.getJSON(ctx, sessionKey(chatID), &sess)
	if err != nil || !ok {
		return nil, err
	}
	return &sess, nil
}

func (s *Storage) DeleteSession(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, sessionKey(chatID)).Err()
}

// ===== Catalog cache =====

func catalogKey(name string) string {
	return "cache:" + name
}

func (s *Storage) GetCatalog(ctx context.Context, name string, out any) (bool, error) {
	return s.getJSON(ctx, catalogKey(name), out)
}

// SaveCatalog caches a catalog list for five minutes.
func (s *Storage) SaveCatalog(ctx context.Context, name string, v any) error {
	return s.setJSON(ctx, catalogKey(name), v, catalogTTL)
}

func (s *Storage) InvalidateCatalog(ctx context.Context, name string) error {
	return s.client.Del(ctx, catalogKey(name)).Err()
}

// ===== Dashboard subscriptions =====

func (s *Storage) Subscribe(ctx context.Context, chatID int64) error {
	return s.client.SAdd(ctx, subscribersKey, chatID).Err()
}

func (s *Storage) Unsubscribe(ctx context.Context, chatID int64) error {
	pipe := s.client.TxPipeline()
	pipe.SRem(ctx, subscribersKey, chatID)
	pipe.Del(ctx, summaryKey(chatID))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) IsSubscribed(ctx context.Context, chatID int64) (bool, error) {
	return s.client.SIsMember(ctx, subscribersKey, chatID).Result()
}

// Subscribers lists chat IDs subscribed to the dashboard push.
func (s *Storage) Subscribers(ctx context.Context) ([]int64, error) {
	members, err := s.client.SMembers(ctx, subscribersKey).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ===== Last pushed summary =====

func summaryKey(chatID int64) string {
	return fmt.Sprintf("dashboard:last:%d", chatID)
}

// SaveLastSummary keeps the last pushed summary for 24 hours.
func (s *Storage) SaveLastSummary(ctx context.Context, chatID int64, summary any) error {
	return s.setJSON(ctx, summaryKey(chatID), summary, summaryTTL)
}

// GetLastSummary returns nil, nil when nothing was pushed yet.
func (s *Storage) GetLastSummary(ctx context.Context, chatID int64) ([]byte, error) {
	val, err := s.client.Get(ctx, summaryKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}
