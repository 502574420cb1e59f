package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/resetkit/testutils"
)

func TestRedisStore_KeyLayout(t *testing.T) {
	client, server := testutils.SetupTestRedis(t)
	store := NewRedisStore(client, "test:reset:", 5*time.Minute)
	start := testStart()
	l := newTestLedger(t, store, testutils.NewClock(start))

	issued, err := l.Issue(context.Background(), "A123", IssueMeta{IP: "203.0.113.7"})
	require.NoError(t, err)

	tokenKey := "test:reset:token:" + issued.LookupHash
	accountKey := "test:reset:account:A123"

	assert.True(t, server.Exists(tokenKey))
	assert.Equal(t, "A123", server.HGet(tokenKey, "account_id"))
	assert.Equal(t, "0", server.HGet(tokenKey, "consumed"))
	assert.Equal(t, "203.0.113.7", server.HGet(tokenKey, "request_ip"))

	members, err := server.SMembers(accountKey)
	require.NoError(t, err)
	assert.Equal(t, []string{issued.LookupHash}, members)

	for _, key := range server.Keys() {
		assert.NotContains(t, key, issued.Token)
	}

	assert.Greater(t, server.TTL(tokenKey), time.Duration(0))
	assert.Greater(t, server.TTL(accountKey), time.Duration(0))
}

func TestRedisStore_ConsumeRemovesAccountIndex(t *testing.T) {
	client, server := testutils.SetupTestRedis(t)
	store := NewRedisStore(client, "test:reset:", 5*time.Minute)
	l := newTestLedger(t, store, testutils.NewClock(testStart()))
	ctx := context.Background()

	issued, err := l.Issue(ctx, "A123", IssueMeta{})
	require.NoError(t, err)
	_, err = l.ValidateAndConsume(ctx, issued.Token)
	require.NoError(t, err)

	tokenKey := "test:reset:token:" + issued.LookupHash
	assert.Equal(t, "1", server.HGet(tokenKey, "consumed"))
	assert.NotEmpty(t, server.HGet(tokenKey, "consumed_at"))

	members, _ := server.SMembers("test:reset:account:A123")
	assert.Empty(t, members)

	record, err := store.FindByLookupHash(ctx, issued.LookupHash)
	require.NoError(t, err)
	assert.True(t, record.Consumed)
	assert.Nil(t, record.ActiveAccountID)
	require.NotNil(t, record.ConsumedAt)
}

func TestRedisStore_KeysExpireAfterGrace(t *testing.T) {
	client, server := testutils.SetupTestRedis(t)
	store := NewRedisStore(client, "test:reset:", 5*time.Minute)
	l := newTestLedger(t, store, testutils.NewClock(time.Now().UTC()))
	ctx := context.Background()

	issued, err := l.Issue(ctx, "A123", IssueMeta{})
	require.NoError(t, err)

	server.FastForward(20*time.Minute + 4*time.Minute)
	_, err = store.FindByLookupHash(ctx, issued.LookupHash)
	require.NoError(t, err)

	server.FastForward(2 * time.Minute)
	_, err = store.FindByLookupHash(ctx, issued.LookupHash)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestRedisStore_DeleteExpiredIsNoop(t *testing.T) {
	client, _ := testutils.SetupTestRedis(t)
	store := NewRedisStore(client, "test:reset:", time.Minute)

	n, err := store.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestRedisStore_ReplaceRejectsExistingHash(t *testing.T) {
	client, _ := testutils.SetupTestRedis(t)
	store := NewRedisStore(client, "test:reset:", time.Minute)
	now := testStart()
	active := "A123"

	token := &ResetToken{
		LookupHash:      "deadbeef",
		AccountID:       "A123",
		ActiveAccountID: &active,
		IssuedAt:        now,
		ExpiresAt:       now.Add(time.Hour),
	}

	require.NoError(t, store.Replace(context.Background(), token))
	assert.ErrorIs(t, store.Replace(context.Background(), token), errIssueConflict)
}

func TestDecodeToken_Malformed(t *testing.T) {
	_, err := decodeToken("h", map[string]string{"issued_at": "x", "expires_at": "1"})
	assert.Error(t, err)

	_, err = decodeToken("h", map[string]string{"issued_at": "1", "expires_at": "1", "consumed_at": "nope"})
	assert.Error(t, err)

	token, err := decodeToken("h", map[string]string{"account_id": "A123", "issued_at": "1000", "expires_at": "2000", "consumed": "0"})
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(2000).UTC(), token.ExpiresAt)
	require.NotNil(t, token.ActiveAccountID)
	assert.Equal(t, "A123", *token.ActiveAccountID)
}
