package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/account"
	redisstore "github.com/trezcool/darasa/storage/redis"
)

func setup(t *testing.T) (account.PendingStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisstore.NewPendingStore(client), mr
}

func TestPendingStore_Login(t *testing.T) {
	ctx := context.Background()
	store, mr := setup(t)
	pl := account.PendingLogin{AccountID: 42, Role: account.RoleTeacher}

	require.NoError(t, store.PutLogin(ctx, "abc", pl, 5*time.Minute))
	assert.True(t, mr.Exists("darasa:pending:login:abc"))

	got, err := store.GetLogin(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, pl, got)

	_, err = store.GetLogin(ctx, "other")
	assert.Equal(t, account.ErrPendingExpired, err)

	mr.FastForward(5 * time.Minute)
	_, err = store.GetLogin(ctx, "abc")
	assert.Equal(t, account.ErrPendingExpired, err)

	require.NoError(t, store.PutLogin(ctx, "def", pl, time.Minute))
	require.NoError(t, store.DeleteLogin(ctx, "def"))
	_, err = store.GetLogin(ctx, "def")
	assert.Equal(t, account.ErrPendingExpired, err)
}

func TestPendingStore_Enrollment(t *testing.T) {
	ctx := context.Background()
	store, mr := setup(t)

	require.NoError(t, store.PutEnrollment(ctx, 7, "FIRST", 10*time.Minute))
	require.NoError(t, store.PutEnrollment(ctx, 7, "SECOND", 10*time.Minute))

	secret, err := store.GetEnrollment(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "SECOND", secret)

	mr.FastForward(9 * time.Minute)
	_, err = store.GetEnrollment(ctx, 7)
	assert.NoError(t, err)

	mr.FastForward(time.Minute)
	_, err = store.GetEnrollment(ctx, 7)
	assert.Equal(t, account.ErrPendingExpired, err)

	// deleting a missing entry is fine
	assert.NoError(t, store.DeleteEnrollment(ctx, 7))
}

func TestPendingStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	store, mr := setup(t)
	mr.SetError("ERR server unavailable")

	_, err := store.GetEnrollment(ctx, 7)
	require.Error(t, err)
	assert.NotEqual(t, account.ErrPendingExpired, err)
}
