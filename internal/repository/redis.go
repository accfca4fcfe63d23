package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/example/contest-reminder-bot/internal/model"
)

// Key layout of the shared store. The hash/set names predate this
// implementation; keeping them means an existing deployment's data stays
// usable.
const (
	prefsKey          = "user_prefs"
	subscribersKey    = "subscribed_users"
	tokensKey         = "user_tokens"
	remindedKeyPrefix = "reminded_contests:"
	pendingKeyPrefix  = "pending_auth:"
)

// RedisStore implements Store on a Redis backend. Preference lists and
// credential records live in hashes keyed by user id; reminded contests and
// pending-auth entries are standalone keys so they can carry a TTL.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Preferences(ctx context.Context, userID int64) ([]string, error) {
	raw, err := s.client.HGet(ctx, prefsKey, strconv.FormatInt(userID, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var divisions []string
	if err := json.Unmarshal([]byte(raw), &divisions); err != nil {
		return nil, err
	}
	return divisions, nil
}

func (s *RedisStore) SetPreferences(ctx context.Context, userID int64, divisions []string) error {
	raw, err := json.Marshal(divisions)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, prefsKey, strconv.FormatInt(userID, 10), raw).Err()
}

func (s *RedisStore) AddSubscriber(ctx context.Context, userID int64) error {
	return s.client.SAdd(ctx, subscribersKey, strconv.FormatInt(userID, 10)).Err()
}

func (s *RedisStore) Subscribers(ctx context.Context) ([]int64, error) {
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

func (s *RedisStore) IsReminded(ctx context.Context, contestID int64) (bool, error) {
	n, err := s.client.Exists(ctx, remindedKeyPrefix+strconv.FormatInt(contestID, 10)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) MarkReminded(ctx context.Context, contestID int64) error {
	return s.client.Set(ctx, remindedKeyPrefix+strconv.FormatInt(contestID, 10), "1", RemindedTTL).Err()
}

func (s *RedisStore) SaveCredential(ctx context.Context, userID int64, cred *model.Credential) error {
	raw, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, tokensKey, strconv.FormatInt(userID, 10), raw).Err()
}

func (s *RedisStore) Credential(ctx context.Context, userID int64) (*model.Credential, error) {
	raw, err := s.client.HGet(ctx, tokensKey, strconv.FormatInt(userID, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cred model.Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

func (s *RedisStore) PutPendingAuth(ctx context.Context, token string, userID int64) error {
	return s.client.Set(ctx, pendingKeyPrefix+token, strconv.FormatInt(userID, 10), PendingAuthTTL).Err()
}

func (s *RedisStore) ClaimPendingAuth(ctx context.Context, token string) (int64, error) {
	// GETDEL makes the read-then-delete a single atomic step, which is what
	// keeps the token single-use even if two callbacks race.
	raw, err := s.client.GetDel(ctx, pendingKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

var _ Store = (*RedisStore)(nil)
