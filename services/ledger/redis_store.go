package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Token records are hashes under <prefix>token:<lookup hash>. Each account has a set
// <prefix>account:<id> holding the hashes of its unconsumed tokens. Keys expire at the
// token expiry plus the sweep grace, so redis does the reaping.
var replaceScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
  return 0
end
local hashes = redis.call('SMEMBERS', KEYS[1])
for _, h in ipairs(hashes) do
  local k = ARGV[6] .. 'token:' .. h
  if redis.call('HGET', k, 'consumed') == '0' then
    redis.call('HSET', k, 'consumed', '1', 'superseded', '1', 'consumed_at', ARGV[3])
  end
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[2],
  'account_id', ARGV[2],
  'issued_at', ARGV[3],
  'expires_at', ARGV[4],
  'consumed', '0',
  'superseded', '0',
  'request_ip', ARGV[7],
  'request_agent', ARGV[8])
redis.call('PEXPIREAT', KEYS[2], ARGV[5])
redis.call('SADD', KEYS[1], ARGV[1])
redis.call('PEXPIREAT', KEYS[1], ARGV[5])
return 1
`)

var consumeScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'consumed', 'expires_at', 'account_id')
if not v[1] or v[1] ~= '0' then
  return 0
end
if tonumber(v[2]) <= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'consumed', '1', 'consumed_at', ARGV[1])
redis.call('SREM', ARGV[2] .. 'account:' .. v[3], ARGV[3])
return 1
`)

var invalidateScript = redis.NewScript(`
local hashes = redis.call('SMEMBERS', KEYS[1])
local n = 0
for _, h in ipairs(hashes) do
  local k = ARGV[1] .. 'token:' .. h
  if redis.call('HGET', k, 'consumed') == '0' then
    redis.call('HSET', k, 'consumed', '1', 'superseded', '1', 'consumed_at', ARGV[2])
    n = n + 1
  end
end
redis.call('DEL', KEYS[1])
return n
`)

// RedisStore needs a single redis node: the scripts reach token keys named by the account
// index, which a cluster would not route.
type RedisStore struct {
	client *redis.Client
	prefix string
	grace  time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, grace time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, grace: grace}
}

func (s *RedisStore) tokenKey(hash string) string {
	return s.prefix + "token:" + hash
}

func (s *RedisStore) accountKey(accountID string) string {
	return s.prefix + "account:" + accountID
}

func (s *RedisStore) Replace(ctx context.Context, token *ResetToken) error {
	keys := []string{s.accountKey(token.AccountID), s.tokenKey(token.LookupHash)}
	args := []any{
		token.LookupHash,
		token.AccountID,
		token.IssuedAt.UnixMilli(),
		token.ExpiresAt.UnixMilli(),
		token.ExpiresAt.Add(s.grace).UnixMilli(),
		s.prefix,
		token.RequestIP,
		token.RequestAgent,
	}

	inserted, err := replaceScript.Run(ctx, s.client, keys, args...).Int()
	if err != nil {
		return storageError("replace", err)
	}
	if inserted == 0 {
		return errIssueConflict
	}
	return nil
}

func (s *RedisStore) FindByLookupHash(ctx context.Context, hash string) (*ResetToken, error) {
	fields, err := s.client.HGetAll(ctx, s.tokenKey(hash)).Result()
	if err != nil {
		return nil, storageError("find", err)
	}
	if len(fields) == 0 {
		return nil, ErrTokenNotFound
	}

	token, err := decodeToken(hash, fields)
	if err != nil {
		return nil, storageError("find", err)
	}
	return token, nil
}

func (s *RedisStore) MarkConsumed(ctx context.Context, hash string, now time.Time) (bool, error) {
	claimed, err := consumeScript.Run(ctx, s.client, []string{s.tokenKey(hash)}, now.UnixMilli(), s.prefix, hash).Int()
	if err != nil {
		return false, storageError("consume", err)
	}
	return claimed == 1, nil
}

func (s *RedisStore) InvalidateAccount(ctx context.Context, accountID string, now time.Time) (int64, error) {
	n, err := invalidateScript.Run(ctx, s.client, []string{s.accountKey(accountID)}, s.prefix, now.UnixMilli()).Int64()
	if err != nil {
		return 0, storageError("invalidate", err)
	}
	return n, nil
}

// DeleteExpired is a no-op: every key carries an absolute expiry.
func (s *RedisStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func decodeToken(hash string, fields map[string]string) (*ResetToken, error) {
	issued, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return nil, errors.New("malformed issued_at")
	}
	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, errors.New("malformed expires_at")
	}

	token := &ResetToken{
		LookupHash:   hash,
		AccountID:    fields["account_id"],
		IssuedAt:     time.UnixMilli(issued).UTC(),
		ExpiresAt:    time.UnixMilli(expires).UTC(),
		Consumed:     fields["consumed"] == "1",
		Superseded:   fields["superseded"] == "1",
		RequestIP:    fields["request_ip"],
		RequestAgent: fields["request_agent"],
	}

	if raw, ok := fields["consumed_at"]; ok {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.New("malformed consumed_at")
		}
		consumedAt := time.UnixMilli(ms).UTC()
		token.ConsumedAt = &consumedAt
	}

	if !token.Consumed {
		active := token.AccountID
		token.ActiveAccountID = &active
	}

	return token, nil
}
