package tokenstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/redis/go-redis/v9"
)

// RedisBackend stores each record as a hash under <prefix>rt:<hash> and
// indexes them per owner in the set <prefix>owner:<subject>. Records carry
// no TTL so revoked and expired tokens remain inspectable. Timestamps are
// unix milliseconds.
//
// The scripts touch keys of more than one record, so the backend expects a
// single Redis primary rather than a cluster.
type RedisBackend struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisBackend(client redis.UniversalClient, keyPrefix string) *RedisBackend {
	return &RedisBackend{client: client, keyPrefix: keyPrefix}
}

func (b *RedisBackend) recordKey(hash string) string { return b.keyPrefix + "rt:" + hash }
func (b *RedisBackend) ownerKey(owner string) string { return b.keyPrefix + "owner:" + owner }

// insertScript writes a record unless its key already exists.
// KEYS: record, owner set. ARGV: id, owner, created, expires, hash.
var insertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'owner', ARGV[2], 'revoked', '0', 'created_at', ARGV[3], 'expires_at', ARGV[4])
redis.call('SADD', KEYS[2], ARGV[5])
return 1
`)

// revokeScript flips revoked 0 -> 1. Returns -1 for a missing record.
// KEYS: record. ARGV: now.
var revokeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
if redis.call('HGET', KEYS[1], 'revoked') == '1' then
  return 0
end
redis.call('HSET', KEYS[1], 'revoked', '1', 'revoked_at', ARGV[1])
return 1
`)

// rotateScript consumes the old record and writes its successor.
// KEYS: old record, new record, owner set.
// ARGV: now, new id, owner, created, expires, new hash.
var rotateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 'not_found'
end
if redis.call('HGET', KEYS[1], 'revoked') == '1' then
  return 'revoked'
end
if tonumber(redis.call('HGET', KEYS[1], 'expires_at')) <= tonumber(ARGV[1]) then
  return 'expired'
end
if redis.call('EXISTS', KEYS[2]) == 1 then
  return 'conflict'
end
redis.call('HSET', KEYS[1], 'revoked', '1', 'revoked_at', ARGV[1])
redis.call('HSET', KEYS[2], 'id', ARGV[2], 'owner', ARGV[3], 'revoked', '0', 'created_at', ARGV[4], 'expires_at', ARGV[5])
redis.call('SADD', KEYS[3], ARGV[6])
return 'ok'
`)

// revokeAllScript revokes every unrevoked record listed in the owner set.
// KEYS: owner set. ARGV: now, record key prefix.
var revokeAllScript = redis.NewScript(`
local n = 0
for _, h in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  local k = ARGV[2] .. h
  if redis.call('HGET', k, 'revoked') == '0' then
    redis.call('HSET', k, 'revoked', '1', 'revoked_at', ARGV[1])
    n = n + 1
  end
end
return n
`)

func (b *RedisBackend) Insert(ctx context.Context, rec *models.RefreshToken) error {
	ok, err := insertScript.Run(ctx, b.client,
		[]string{b.recordKey(rec.Hash), b.ownerKey(rec.OwnerSubject)},
		rec.ID, rec.OwnerSubject, rec.CreatedAt.UnixMilli(), rec.ExpiresAt.UnixMilli(), rec.Hash,
	).Int()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if ok == 0 {
		return fmt.Errorf("refresh token %s already exists", rec.HashPrefix())
	}
	return nil
}

func (b *RedisBackend) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	fields, err := b.client.HGetAll(ctx, b.recordKey(hash)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(fields) == 0 {
		return nil, common.ErrorNotFound
	}
	return decodeRecord(hash, fields)
}

func (b *RedisBackend) Revoke(ctx context.Context, hash string, now time.Time) (bool, error) {
	res, err := revokeScript.Run(ctx, b.client, []string{b.recordKey(hash)}, now.UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return res == 1, nil
}

func (b *RedisBackend) Rotate(ctx context.Context, oldHash string, now time.Time, next *models.RefreshToken) error {
	res, err := rotateScript.Run(ctx, b.client,
		[]string{b.recordKey(oldHash), b.recordKey(next.Hash), b.ownerKey(next.OwnerSubject)},
		now.UnixMilli(), next.ID, next.OwnerSubject, next.CreatedAt.UnixMilli(), next.ExpiresAt.UnixMilli(), next.Hash,
	).Text()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}

	switch res {
	case "ok":
		return nil
	case "not_found":
		return common.ErrRefreshTokenNotFound
	case "revoked":
		return common.ErrRefreshTokenRevoked
	case "expired":
		return common.ErrRefreshTokenExpired
	default:
		return fmt.Errorf("rotate refresh token: unexpected script result %q", res)
	}
}

func (b *RedisBackend) RevokeAllForOwner(ctx context.Context, owner string, now time.Time) (int64, error) {
	n, err := revokeAllScript.Run(ctx, b.client, []string{b.ownerKey(owner)}, now.UnixMilli(), b.recordKey("")).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}
	return n, nil
}

func (b *RedisBackend) ListActiveForOwner(ctx context.Context, owner string, now time.Time) ([]models.RefreshToken, error) {
	hashes, err := b.client.SMembers(ctx, b.ownerKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	pipe := b.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(hashes))
	for i, h := range hashes {
		cmds[i] = pipe.HGetAll(ctx, b.recordKey(h))
	}
	if len(hashes) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("redis error: %w", err)
		}
	}

	var out []models.RefreshToken
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		rec, err := decodeRecord(hashes[i], fields)
		if err != nil {
			return nil, err
		}
		if rec.Revoked || rec.ExpiredAt(now) {
			continue
		}
		out = append(out, *rec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func decodeRecord(hash string, f map[string]string) (*models.RefreshToken, error) {
	created, err := strconv.ParseInt(f["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode refresh token %.8s: created_at: %w", hash, err)
	}
	expires, err := strconv.ParseInt(f["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode refresh token %.8s: expires_at: %w", hash, err)
	}

	rec := &models.RefreshToken{
		ID:           f["id"],
		Hash:         hash,
		OwnerSubject: f["owner"],
		Revoked:      f["revoked"] == "1",
		CreatedAt:    time.UnixMilli(created).UTC(),
		ExpiresAt:    time.UnixMilli(expires).UTC(),
	}
	if v, ok := f["revoked_at"]; ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode refresh token %.8s: revoked_at: %w", hash, err)
		}
		ts := time.UnixMilli(ms).UTC()
		rec.RevokedAt = &ts
	}
	return rec, nil
}
