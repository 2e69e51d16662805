package cachesvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), 0)

	got, ok := c.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), got)

	now = now.Add(time.Minute)
	_, ok = c.Get(ctx, "a")
	assert.False(t, ok, "expired")

	got, ok = c.Get(ctx, "b")
	assert.True(t, ok, "no ttl")
	assert.Equal(t, []byte("2"), got)

	c.Delete(ctx, "b", "missing")
	_, ok = c.Get(ctx, "b")
	assert.False(t, ok)
}

func TestMemoryCache_CopiesData(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	data := []byte("abc")
	c.Set(ctx, "k", data, 0)
	data[0] = 'x'

	got, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
	got[1] = 'y'

	again, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}
