package cachemanager

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sandrolain/httpengine"
)

func TestNewRejectsBothNilTiers(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)
}

func TestGetPrefersL1OverL2(t *testing.T) {
	l1 := NewMemoryTier(0)
	l2 := NewMemoryTier(0)
	mgr, err := New(l1, l2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, l1.Put(ctx, "k", httpengine.Metadata{StatusCode: 1}, []byte("from-l1")))
	require.NoError(t, l2.Put(ctx, "k", httpengine.Metadata{StatusCode: 2}, []byte("from-l2")))

	meta, ok, err := mgr.GetMetadata(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, meta.StatusCode)

	body, err := mgr.GetBody(ctx, "k")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	require.Equal(t, "from-l1", string(data))
}

func TestGetFallsBackToL2OnL1Miss(t *testing.T) {
	l1 := NewMemoryTier(0)
	l2 := NewMemoryTier(0)
	mgr, err := New(l1, l2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, l2.Put(ctx, "k", httpengine.Metadata{StatusCode: 200}, []byte("only-l2")))

	meta, ok, err := mgr.GetMetadata(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 200, meta.StatusCode)
}

func TestPutSucceedsIfAtLeastOneTierSucceeds(t *testing.T) {
	l1 := NewMemoryTier(0)
	mgr, err := New(l1, nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, mgr.Put(ctx, "k", httpengine.Metadata{}, []byte("v")))

	_, ok, err := mgr.GetMetadata(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRemoveRequiresBothTiersWhenBothPresent(t *testing.T) {
	l1 := NewMemoryTier(0)
	l2 := NewMemoryTier(0)
	mgr, err := New(l1, l2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, mgr.Put(ctx, "k", httpengine.Metadata{}, []byte("v")))
	require.NoError(t, mgr.Remove(ctx, "k"))

	_, ok, _ := l1.GetMetadata(ctx, "k")
	require.False(t, ok)
	_, ok, _ = l2.GetMetadata(ctx, "k")
	require.False(t, ok)
}

func TestPurgeFansOutToBothTiers(t *testing.T) {
	l1 := NewMemoryTier(0)
	l2 := NewMemoryTier(0)
	mgr, err := New(l1, l2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, mgr.Put(ctx, "k", httpengine.Metadata{}, []byte("v")))
	clean, err := mgr.Purge(true)
	require.NoError(t, err)
	require.True(t, clean)

	_, ok, _ := l1.GetMetadata(ctx, "k")
	require.False(t, ok)
	_, ok, _ = l2.GetMetadata(ctx, "k")
	require.False(t, ok)
}

func TestMemoryTierEvictsOldestWhenMaxEntriesExceeded(t *testing.T) {
	tier := NewMemoryTier(2)
	ctx := context.Background()

	require.NoError(t, tier.Put(ctx, "a", httpengine.Metadata{}, []byte("1")))
	require.NoError(t, tier.Put(ctx, "b", httpengine.Metadata{}, []byte("2")))
	require.NoError(t, tier.Put(ctx, "c", httpengine.Metadata{}, []byte("3")))

	_, ok, _ := tier.GetMetadata(ctx, "a")
	require.False(t, ok, "oldest entry should have been evicted")
	_, ok, _ = tier.GetMetadata(ctx, "c")
	require.True(t, ok)
}
