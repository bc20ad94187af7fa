package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cached struct {
	ID     string `json:"id"`
	Active bool   `json:"active"`
}

func TestCache_SetGetDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	require.NoError(t, SetCacheData(ctx, rdb, "conf:1", &cached{ID: "1", Active: true}, time.Minute))
	assert.True(t, mr.Exists("conf:1"))

	got, appErr := GetCacheData[cached](ctx, rdb, "conf:1")
	require.Nil(t, appErr)
	require.NotNil(t, got)
	assert.Equal(t, "1", got.ID)
	assert.True(t, got.Active)

	require.NoError(t, DeleteCacheData(ctx, rdb, "conf:1"))
	got, appErr = GetCacheData[cached](ctx, rdb, "conf:1")
	assert.Nil(t, appErr)
	assert.Nil(t, got)
}

func TestCache_Expires(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	require.NoError(t, SetCacheData(ctx, rdb, "conf:2", &cached{ID: "2"}, time.Second))
	mr.FastForward(2 * time.Second)

	got, appErr := GetCacheData[cached](ctx, rdb, "conf:2")
	assert.Nil(t, appErr)
	assert.Nil(t, got)
}

func TestCache_NilClientIsNoop(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, SetCacheData(ctx, nil, "k", &cached{}, time.Minute))
	got, appErr := GetCacheData[cached](ctx, nil, "k")
	assert.Nil(t, appErr)
	assert.Nil(t, got)
	assert.NoError(t, DeleteCacheData(ctx, nil, "k"))
}

func TestCache_CorruptValue(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	require.NoError(t, mr.Set("conf:3", "{not json"))

	_, appErr := GetCacheData[cached](context.Background(), rdb, "conf:3")
	require.NotNil(t, appErr)
	assert.Equal(t, "json", appErr.Field)
}
