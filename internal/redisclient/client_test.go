package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"tnf-api/internal/ikas"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "lock:sync:products", lockName("sync:products"))
	assert.Equal(t, "idempotency:cb:INV-1", idempotencyKey("cb:INV-1"))
	assert.Equal(t, "ikas:variant-type:color", variantTypeKey("color"))
}

func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Integration test - requires redis")
	}
	c, err := NewClient(addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLock_Exclusive(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	lock, ok, err := c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, lock))

	again, ok, err := c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, c.ReleaseLock(ctx, again))
}

func TestCredentialStore_RoundTrip(t *testing.T) {
	c := testClient(t)
	store := NewCredentialStore(c)
	ctx := context.Background()

	cred := ikas.Credential{Token: "tok", ValidUntil: time.Now().Add(time.Minute).Truncate(time.Second)}
	require.NoError(t, store.Save(ctx, cred))

	got, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, "tok", got.Token)
	assert.True(t, cred.ValidUntil.Equal(got.ValidUntil))
}

func TestIdempotencyKey_Release(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	first, err := c.SetIdempotencyKey(ctx, key, "customer/customer.created", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = c.SetIdempotencyKey(ctx, key, "customer/customer.created", time.Minute)
	require.NoError(t, err)
	assert.False(t, first)

	require.NoError(t, c.ReleaseIdempotencyKey(ctx, key))
	first, err = c.SetIdempotencyKey(ctx, key, "customer/customer.created", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)
	require.NoError(t, c.ReleaseIdempotencyKey(ctx, key))
}
