package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultChallengePrefix = "otp"

var (
	errChallengeRecordNotFound = errors.New("challenge record not found")
	errChallengeStoreFailure   = errors.New("challenge store unavailable")
)

// ChallengeStore persists at most one OTP digest per account. Records carry
// a TTL so stale challenges expire at the storage layer without any
// application level sweep.
type ChallengeStore interface {
	Save(ctx context.Context, userID, digest string, ttl time.Duration) error
	Get(ctx context.Context, userID string) (string, error)
	Delete(ctx context.Context, userID string) error
	Exists(ctx context.Context, userID string) (bool, error)
}

type redisChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewChallengeStore returns a redis backed ChallengeStore.
func NewChallengeStore(client redis.UniversalClient, prefix string) ChallengeStore {
	if prefix == "" {
		prefix = defaultChallengePrefix
	}
	return &redisChallengeStore{
		redis:  client,
		prefix: prefix,
	}
}

func (s *redisChallengeStore) key(userID string) string {
	return s.prefix + ":" + userID
}

// Save deletes any previous record before writing the new one, so a single
// live challenge per account holds without a uniqueness constraint.
// Concurrent saves race last-writer-wins; a previously delivered plaintext
// simply stops validating.
func (s *redisChallengeStore) Save(ctx context.Context, userID, digest string, ttl time.Duration) error {
	key := s.key(userID)

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, key)
	pipe.Set(ctx, key, digest, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", errChallengeStoreFailure, err)
	}

	return nil
}

func (s *redisChallengeStore) Get(ctx context.Context, userID string) (string, error) {
	digest, err := s.redis.Get(ctx, s.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", errChallengeRecordNotFound
		}
		return "", fmt.Errorf("%w: %v", errChallengeStoreFailure, err)
	}

	return digest, nil
}

func (s *redisChallengeStore) Delete(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errChallengeStoreFailure, err)
	}
	return nil
}

func (s *redisChallengeStore) Exists(ctx context.Context, userID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", errChallengeStoreFailure, err)
	}
	return n > 0, nil
}
