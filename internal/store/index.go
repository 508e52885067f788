package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// The idea of the reverse indexes is to quickly find an account's top-level
// resources, and foreign documents pointing at a resource, without scanning
// whole collections. The write paths maintain them alongside the documents;
// the deletion worker consumes them and they are wiped together with the
// account.

const (
	ownedIndexPrefix = "/index/owned/"
	refsIndexPrefix  = "/index/refs/"

	// refs index keys hold two slash-separated paths, split by this marker
	refsKeySeparator = "|"
)

// IndexPage is one bounded page of index entries (document paths).
type IndexPage struct {
	Paths []string
	More  bool
	Next  string
}

// OwnedIndex maps an owner and resource type to the paths of the documents
// that account owns.
type OwnedIndex struct {
	logger *zap.Logger
	client ClientWrapper
}

func NewOwnedIndex(logger *zap.Logger, client ClientWrapper) *OwnedIndex {
	return &OwnedIndex{
		logger: logger,
		client: client,
	}
}

func ownedIndexKey(ownerID, resourceType, docPath string) string {
	return fmt.Sprintf("%s%s/%s/%s", ownedIndexPrefix, ownerID, resourceType, docPath)
}

// OwnedIndexPrefix is the key range holding every owned-index entry of one
// account; it is removed with the account's root documents.
func OwnedIndexPrefix(ownerID string) string {
	return ownedIndexPrefix + ownerID + "/"
}

func (i *OwnedIndex) Add(ctx context.Context, ownerID, resourceType, docPath string) error {
	return i.client.Put(ctx, ownedIndexKey(ownerID, resourceType, docPath), "")
}

func (i *OwnedIndex) Remove(ctx context.Context, ownerID, resourceType, docPath string) error {
	return i.client.Delete(ctx, ownedIndexKey(ownerID, resourceType, docPath))
}

// List returns one page of the document paths an account owns for a
// resource type.
func (i *OwnedIndex) List(ctx context.Context, ownerID, resourceType string, pageSize int, from string) (*IndexPage, error) {
	prefix := fmt.Sprintf("%s%s/%s/", ownedIndexPrefix, ownerID, resourceType)

	batch, err := i.client.List(ctx, Paging{Prefix: prefix, From: from, Limit: pageSize})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list owned index")
	}

	page := &IndexPage{More: batch.More}
	for _, kv := range batch.KVs {
		page.Paths = append(page.Paths, strings.TrimPrefix(kv.Key, prefix))
		page.Next = kv.Key
	}

	return page, nil
}

// DeleteAll wipes every owned-index entry of one account in bounded batches.
func (i *OwnedIndex) DeleteAll(ctx context.Context, ownerID string, pageSize int) error {
	prefix := OwnedIndexPrefix(ownerID)

	for {
		batch, err := i.client.List(ctx, Paging{Prefix: prefix, Limit: pageSize})
		if err != nil {
			return errors.Wrap(err, "failed to list owned index for wipe")
		}
		if len(batch.KVs) == 0 {
			return nil
		}

		keys := make([]string, 0, len(batch.KVs))
		for _, kv := range batch.KVs {
			keys = append(keys, kv.Key)
		}
		if err := i.client.DeleteBatch(ctx, keys); err != nil {
			return errors.Wrap(err, "failed to delete owned index batch")
		}
		if !batch.More {
			return nil
		}
	}
}

// ReferenceIndex maps a document to the foreign documents referencing it
// (e.g. a peer's saved-post entry pointing at a post).
type ReferenceIndex struct {
	logger *zap.Logger
	client ClientWrapper
}

func NewReferenceIndex(logger *zap.Logger, client ClientWrapper) *ReferenceIndex {
	return &ReferenceIndex{
		logger: logger,
		client: client,
	}
}

func refsIndexKey(targetPath, referencingPath string) string {
	return refsIndexPrefix + targetPath + refsKeySeparator + referencingPath
}

func (i *ReferenceIndex) Add(ctx context.Context, targetPath, referencingPath string) error {
	return i.client.Put(ctx, refsIndexKey(targetPath, referencingPath), "")
}

func (i *ReferenceIndex) Remove(ctx context.Context, targetPath, referencingPath string) error {
	return i.client.Delete(ctx, refsIndexKey(targetPath, referencingPath))
}

// ReferenceEntry locates one referencing document and its index key.
type ReferenceEntry struct {
	ReferencingPath string
	IndexKey        string
}

// ReferencePage is one bounded page of reference entries.
type ReferencePage struct {
	Entries []ReferenceEntry
	More    bool
	Next    string
}

// List returns one page of foreign documents referencing targetPath.
func (i *ReferenceIndex) List(ctx context.Context, targetPath string, pageSize int, from string) (*ReferencePage, error) {
	prefix := refsIndexPrefix + targetPath + refsKeySeparator

	batch, err := i.client.List(ctx, Paging{Prefix: prefix, From: from, Limit: pageSize})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list reference index")
	}

	page := &ReferencePage{More: batch.More}
	for _, kv := range batch.KVs {
		page.Entries = append(page.Entries, ReferenceEntry{
			ReferencingPath: strings.TrimPrefix(kv.Key, prefix),
			IndexKey:        kv.Key,
		})
		page.Next = kv.Key
	}

	return page, nil
}
