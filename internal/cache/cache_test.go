package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, m.Set(ctx, "forever", []byte("x"), 0))

	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	now = now.Add(time.Minute)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
	_, ok, _ = m.Get(ctx, "forever")
	assert.True(t, ok)
}

func TestNew_DefaultsToMemory(t *testing.T) {
	c, err := New(context.Background(), "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)
}

func TestRedis(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	r, err := NewRedis(ctx, url)
	require.NoError(t, err)
	defer r.Close()

	key := "staytrack:test:" + uuid.NewString()
	_, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, key, []byte("payload"), time.Minute))
	v, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("payload"), v)
}

func TestMemory_SetSweepsExpired(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		require.NoError(t, m.Set(ctx, fmt.Sprintf("snapshot:%d", i), []byte("x"), time.Hour))
	}
	require.NoError(t, m.Set(ctx, "forever", []byte("x"), 0))
	assert.Len(t, m.items, 101)

	now = now.Add(48 * time.Hour)
	require.NoError(t, m.Set(ctx, "snapshot:latest", []byte("y"), time.Hour))
	assert.Len(t, m.items, 2)
	_, ok, _ := m.Get(ctx, "forever")
	assert.True(t, ok)
}
