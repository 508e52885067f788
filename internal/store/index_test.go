package store_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nidoapp/nido-api/internal/store"
	"github.com/nidoapp/nido-api/internal/store/storetest"
)

func TestOwnedIndex_ListByResourceType(t *testing.T) {
	client := storetest.NewFakeClient()
	owned := store.NewOwnedIndex(zap.NewNop(), client)
	ctx := context.Background()

	require.NoError(t, owned.Add(ctx, "alice", "posts", "posts/p1"))
	require.NoError(t, owned.Add(ctx, "alice", "posts", "posts/p2"))
	require.NoError(t, owned.Add(ctx, "alice", "events", "events/e1"))
	require.NoError(t, owned.Add(ctx, "bob", "posts", "posts/p3"))

	page, err := owned.List(ctx, "alice", "posts", 10, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"posts/p1", "posts/p2"}, page.Paths)
	assert.False(t, page.More)
}

func TestOwnedIndex_ListPaginates(t *testing.T) {
	client := storetest.NewFakeClient()
	owned := store.NewOwnedIndex(zap.NewNop(), client)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, owned.Add(ctx, "alice", "posts", fmt.Sprintf("posts/p%d", i)))
	}

	var paths []string
	from := ""
	for {
		page, err := owned.List(ctx, "alice", "posts", 2, from)
		require.NoError(t, err)
		paths = append(paths, page.Paths...)
		if !page.More {
			break
		}
		from = page.Next
	}
	assert.Len(t, paths, 5)
}

func TestOwnedIndex_DeleteAll(t *testing.T) {
	client := storetest.NewFakeClient()
	owned := store.NewOwnedIndex(zap.NewNop(), client)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, owned.Add(ctx, "alice", "posts", fmt.Sprintf("posts/p%d", i)))
	}
	require.NoError(t, owned.Add(ctx, "bob", "posts", "posts/px"))

	require.NoError(t, owned.DeleteAll(ctx, "alice", 2))

	assert.Empty(t, client.Keys(store.OwnedIndexPrefix("alice")))
	assert.Len(t, client.Keys(store.OwnedIndexPrefix("bob")), 1)
}

func TestReferenceIndex_ListTargets(t *testing.T) {
	client := storetest.NewFakeClient()
	refs := store.NewReferenceIndex(zap.NewNop(), client)
	ctx := context.Background()

	require.NoError(t, refs.Add(ctx, "posts/p1", "users/bob/saved_posts/p1"))
	require.NoError(t, refs.Add(ctx, "posts/p1", "users/carol/saved_posts/p1"))
	require.NoError(t, refs.Add(ctx, "posts/p2", "users/bob/saved_posts/p2"))

	page, err := refs.List(ctx, "posts/p1", 10, "")
	require.NoError(t, err)

	var referencing []string
	for _, entry := range page.Entries {
		referencing = append(referencing, entry.ReferencingPath)
	}
	assert.ElementsMatch(t, []string{
		"users/bob/saved_posts/p1", "users/carol/saved_posts/p1",
	}, referencing)
}

func TestReferenceIndex_Remove(t *testing.T) {
	client := storetest.NewFakeClient()
	refs := store.NewReferenceIndex(zap.NewNop(), client)
	ctx := context.Background()

	require.NoError(t, refs.Add(ctx, "posts/p1", "users/bob/saved_posts/p1"))
	require.NoError(t, refs.Remove(ctx, "posts/p1", "users/bob/saved_posts/p1"))
	require.NoError(t, refs.Remove(ctx, "posts/p1", "users/bob/saved_posts/p1"))

	page, err := refs.List(ctx, "posts/p1", 10, "")
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
}
