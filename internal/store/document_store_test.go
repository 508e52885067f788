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

func newDocumentStore() (*store.DocumentStore, *storetest.FakeClient) {
	client := storetest.NewFakeClient()
	return store.NewDocumentStore(zap.NewNop(), client), client
}

func TestDocumentStore_PutGet(t *testing.T) {
	docs, _ := newDocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.Put(ctx, "posts/p1", store.Document{"authorId": "alice"}))

	doc, err := docs.Get(ctx, "posts/p1")
	require.NoError(t, err)
	assert.Equal(t, "alice", doc["authorId"])
}

func TestDocumentStore_GetMissing(t *testing.T) {
	docs, _ := newDocumentStore()

	_, err := docs.Get(context.Background(), "posts/nope")
	assert.True(t, store.IsNotFoundError(err))
}

func TestDocumentStore_DeleteIsIdempotent(t *testing.T) {
	docs, _ := newDocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.Put(ctx, "posts/p1", store.Document{}))
	require.NoError(t, docs.Delete(ctx, "posts/p1"))
	require.NoError(t, docs.Delete(ctx, "posts/p1"))
	require.NoError(t, docs.DeletePaths(ctx, []string{"posts/p1", "posts/p2"}))
}

func TestDocumentStore_ScanPaginates(t *testing.T) {
	docs, _ := newDocumentStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		path := fmt.Sprintf("posts/p1/comments/c%d", i)
		require.NoError(t, docs.Put(ctx, path, store.Document{"n": float64(i)}))
	}
	// sibling collections must not leak into the scan
	require.NoError(t, docs.Put(ctx, "posts/p1/likes/l1", store.Document{}))
	require.NoError(t, docs.Put(ctx, "posts/p10/comments/other", store.Document{}))

	var paths []string
	from := ""
	for {
		page, err := docs.Scan(ctx, "posts/p1/comments", 2, from)
		require.NoError(t, err)
		for _, item := range page.Items {
			paths = append(paths, item.Path)
		}
		if !page.More {
			break
		}
		from = page.Next
	}

	assert.Equal(t, []string{
		"posts/p1/comments/c0", "posts/p1/comments/c1", "posts/p1/comments/c2",
		"posts/p1/comments/c3", "posts/p1/comments/c4",
	}, paths)
}

func TestDocumentStore_ScanRejectsBadContent(t *testing.T) {
	docs, client := newDocumentStore()
	ctx := context.Background()

	require.NoError(t, client.Put(ctx, store.DocKey("posts/p1/comments/c1"), "{not json"))

	_, err := docs.Scan(ctx, "posts/p1/comments", 10, "")
	assert.Error(t, err)
}
