package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"enrolld/internal/registration/models"
	id "enrolld/pkg/domain"
	"enrolld/pkg/platform/sentinel"
)

const (
	// Redis key prefix for registration sessions
	sessionKeyPrefix = "reg:session:"

	// casRetries bounds optimistic-lock retries against unrelated writers.
	// The caller still sees ErrConflict when the version itself is stale.
	casRetries = 3
)

// RedisSessionStore is the production session store. Sessions are stored as
// JSON with a retention TTL; Update runs a WATCH-based transaction so the
// version check-and-set holds across instances.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionKey(sessionID id.SessionID) string {
	return sessionKeyPrefix + sessionID.String()
}

func (s *RedisSessionStore) Put(ctx context.Context, session *models.RegistrationSession, ttl time.Duration) error {
	session.Version = 1
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(session.ID), payload, ttl*retentionFactor).Err(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionID id.SessionID) (*models.RegistrationSession, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session models.RegistrationSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Update(ctx context.Context, session *models.RegistrationSession) error {
	key := sessionKey(session.ID)

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return err
		}

		var stored models.RegistrationSession
		if err := json.Unmarshal(raw, &stored); err != nil {
			return fmt.Errorf("unmarshal session: %w", err)
		}
		if stored.Version != session.Version {
			return sentinel.ErrConflict
		}

		next := session.Clone()
		next.Version = session.Version + 1
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}
		session.Version = next.Version
		return nil
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			// Key changed between WATCH and EXEC; reload and re-check.
			continue
		}
		return err
	}
	return sentinel.ErrConflict
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID id.SessionID) error {
	removed, err := s.client.Del(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if removed == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RedisSessionStore) List(ctx context.Context, filter models.SessionFilter) ([]*models.RegistrationSession, error) {
	var (
		out    []*models.RegistrationSession
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan sessions: %w", err)
		}
		for _, key := range keys {
			raw, err := s.client.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("get session: %w", err)
			}
			var session models.RegistrationSession
			if err := json.Unmarshal(raw, &session); err != nil {
				return nil, fmt.Errorf("unmarshal session: %w", err)
			}
			if filter.Matches(&session) {
				out = append(out, &session)
			}
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}
