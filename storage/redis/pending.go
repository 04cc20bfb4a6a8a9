// Package redisstore keeps the pending second factor state in Redis, expired by key TTLs.
package redisstore

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
)

const (
	loginPrefix      = "darasa:pending:login:"
	enrollmentPrefix = "darasa:pending:enrollment:"
)

// Open connects to the configured Redis server.
func Open(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Address,
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

type pendingStore struct {
	client redis.UniversalClient
}

var _ account.PendingStore = (*pendingStore)(nil)

func NewPendingStore(client redis.UniversalClient) account.PendingStore {
	vala.BeginValidation().Validate(vala.IsNotNil(client, "client")).CheckAndPanic()
	return &pendingStore{client: client}
}

func loginKey(challenge string) string { return loginPrefix + challenge }

func enrollmentKey(accountID int64) string {
	return enrollmentPrefix + strconv.FormatInt(accountID, 10)
}

func (s *pendingStore) PutLogin(ctx context.Context, challenge string, pl account.PendingLogin, ttl time.Duration) error {
	data, err := json.Marshal(pl)
	if err != nil {
		return errors.Wrap(err, "marshalling pending login")
	}
	return errors.Wrap(s.client.Set(ctx, loginKey(challenge), data, ttl).Err(), "setting pending login")
}

func (s *pendingStore) GetLogin(ctx context.Context, challenge string) (account.PendingLogin, error) {
	data, err := s.client.Get(ctx, loginKey(challenge)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return account.PendingLogin{}, account.ErrPendingExpired
		}
		return account.PendingLogin{}, errors.Wrap(err, "getting pending login")
	}

	var pl account.PendingLogin
	if err = json.Unmarshal(data, &pl); err != nil {
		return account.PendingLogin{}, errors.Wrap(err, "unmarshalling pending login")
	}
	return pl, nil
}

func (s *pendingStore) DeleteLogin(ctx context.Context, challenge string) error {
	return errors.Wrap(s.client.Del(ctx, loginKey(challenge)).Err(), "deleting pending login")
}

func (s *pendingStore) PutEnrollment(ctx context.Context, accountID int64, secret string, ttl time.Duration) error {
	err := s.client.Set(ctx, enrollmentKey(accountID), secret, ttl).Err()
	return errors.Wrap(err, "setting pending enrollment")
}

func (s *pendingStore) GetEnrollment(ctx context.Context, accountID int64) (string, error) {
	secret, err := s.client.Get(ctx, enrollmentKey(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", account.ErrPendingExpired
		}
		return "", errors.Wrap(err, "getting pending enrollment")
	}
	return secret, nil
}

func (s *pendingStore) DeleteEnrollment(ctx context.Context, accountID int64) error {
	return errors.Wrap(s.client.Del(ctx, enrollmentKey(accountID)).Err(), "deleting pending enrollment")
}
