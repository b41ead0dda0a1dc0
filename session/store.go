package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no live record exists for a session ID.
var ErrNotFound = errors.New("session not found")

// ErrRedisUnavailable wraps transport and server failures from Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Session is one authenticated signin. Records expire from Redis on their
// own; ExpiresAt is also checked on read so a clock-skewed record cannot
// outlive its lifetime.
type Session struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	Role      int       `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// deleteLua removes the record and its index entry in one round trip.
const deleteLua = `
redis.call("SREM", KEYS[2], ARGV[1])
return redis.call("DEL", KEYS[1])
`

var deleteScript = redis.NewScript(deleteLua)

// Store is a Redis-backed session store. Each account carries a set of its
// live session IDs so logout-all can find them without scanning.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// NewStore creates a Store namespaced under prefix.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "ag"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) sessionKey(id string) string {
	return s.prefix + ":s:" + id
}

func (s *Store) accountKey(accountID string) string {
	return s.prefix + ":a:" + accountID
}

// Save writes sess with a TTL running to sess.ExpiresAt and records the
// session ID in the account's index. Both writes land in one transaction.
func (s *Store) Save(ctx context.Context, sess Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", sess.ID)
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(sess.ID), data, ttl)
		pipe.SAdd(ctx, s.accountKey(sess.AccountID), sess.ID)
		pipe.ExpireNX(ctx, s.accountKey(sess.AccountID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get returns the live session for id, or ErrNotFound. A record whose
// ExpiresAt has passed is treated as gone and removed.
func (s *Store) Get(ctx context.Context, id string, now time.Time) (Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}

	if !now.Before(sess.ExpiresAt) {
		_ = s.Delete(ctx, id, sess.AccountID)
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// Delete removes one session and its index entry. Deleting a session that
// no longer exists is not an error.
func (s *Store) Delete(ctx context.Context, id, accountID string) error {
	keys := []string{s.sessionKey(id), s.accountKey(accountID)}
	if err := deleteScript.Run(ctx, s.client, keys, id).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllForAccount removes every live session belonging to accountID.
// A session created concurrently with this call may survive; callers that
// care re-invoke after the triggering state change commits.
func (s *Store) DeleteAllForAccount(ctx context.Context, accountID string) error {
	accountKey := s.accountKey(accountID)

	ids, err := s.client.SMembers(ctx, accountKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, s.sessionKey(id))
		}
		pipe.Del(ctx, accountKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ActiveSessionIDs returns the indexed session IDs for an account. Entries
// whose records already expired may still appear until the next delete.
func (s *Store) ActiveSessionIDs(ctx context.Context, accountID string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// Ping reports Redis availability.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
