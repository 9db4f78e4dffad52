package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/careline/roompool-bot/internal/model"
	"github.com/careline/roompool-bot/internal/redis"
)

// TokenRepository stores access tokens in Redis. Expiry is delegated to key
// TTLs, so expired tokens disappear without a sweep.
type TokenRepository interface {
	Create(ctx context.Context, value string, role model.Role, hashedOrigin string, ttl time.Duration) (*model.AccessToken, error)
	Find(ctx context.Context, value string) (*model.AccessToken, error)
	Bind(ctx context.Context, value, ownerID string) error
	Assign(ctx context.Context, value, roomJID string) error
	Delete(ctx context.Context, value string) error
}

type tokenRepo struct {
	client *redis.Client
}

func NewTokenRepository(client *redis.Client) TokenRepository {
	return &tokenRepo{client: client}
}

func (r *tokenRepo) Create(ctx context.Context, value string, role model.Role, hashedOrigin string, ttl time.Duration) (*model.AccessToken, error) {
	token := &model.AccessToken{
		Value:        value,
		Role:         role,
		HashedOrigin: hashedOrigin,
		ExpiresAt:    time.Now().Add(ttl),
	}

	data, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("marshal token: %w", err)
	}

	if err := r.client.Set(ctx, redis.TokenKey(value), data, ttl).Err(); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	return token, nil
}

func (r *tokenRepo) Find(ctx context.Context, value string) (*model.AccessToken, error) {
	data, err := r.client.Get(ctx, redis.TokenKey(value)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var token model.AccessToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	token.Value = value
	return &token, nil
}

func (r *tokenRepo) Bind(ctx context.Context, value, ownerID string) error {
	return r.update(ctx, value, func(t *model.AccessToken) {
		t.OwnerID = ownerID
	})
}

func (r *tokenRepo) Assign(ctx context.Context, value, roomJID string) error {
	return r.update(ctx, value, func(t *model.AccessToken) {
		t.RoomJID = roomJID
	})
}

func (r *tokenRepo) Delete(ctx context.Context, value string) error {
	return r.client.Del(ctx, redis.TokenKey(value)).Err()
}

func (r *tokenRepo) update(ctx context.Context, value string, mutate func(*model.AccessToken)) error {
	token, err := r.Find(ctx, value)
	if err != nil {
		return err
	}
	if token == nil {
		return fmt.Errorf("token %s not found", value)
	}

	mutate(token)

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return r.Delete(ctx, value)
	}
	return r.client.Set(ctx, redis.TokenKey(value), data, ttl).Err()
}
