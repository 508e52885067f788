package store

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	internalerrors "github.com/nidoapp/nido-api/internal/errors"
)

// Document is one JSON document as stored under a slash-separated path,
// e.g. posts/{postId} or conversations/{convId}/messages/{msgId}.
type Document map[string]interface{}

const docKeyPrefix = "/docs/"

// DocumentEntry pairs a document with its path for scan results.
type DocumentEntry struct {
	Path string
	Doc  Document
}

// DocumentPage is one bounded page of a collection scan. Next carries the
// continuation token for the following page.
type DocumentPage struct {
	Items []DocumentEntry
	More  bool
	Next  string
}

// DocumentStore stores JSON documents in etcd. Deletes are idempotent:
// removing an absent document is success.
type DocumentStore struct {
	logger *zap.Logger
	client ClientWrapper
}

func NewDocumentStore(logger *zap.Logger, client ClientWrapper) *DocumentStore {
	return &DocumentStore{
		logger: logger,
		client: client,
	}
}

func DocKey(path string) string {
	return docKeyPrefix + path
}

func docPathFromKey(key string) string {
	return strings.TrimPrefix(key, docKeyPrefix)
}

func (s *DocumentStore) Get(ctx context.Context, path string) (Document, error) {
	data, _, err := s.client.Get(ctx, DocKey(path))
	if err != nil {
		return nil, err
	}
	return s.unmarshalDocument(data)
}

func (s *DocumentStore) Put(ctx context.Context, path string, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return internalerrors.NewMarshalingError("failed to marshal document")
	}
	return s.client.Put(ctx, DocKey(path), string(data))
}

func (s *DocumentStore) Delete(ctx context.Context, path string) error {
	return s.client.Delete(ctx, DocKey(path))
}

// DeletePaths removes a bounded set of documents in one atomic write.
func (s *DocumentStore) DeletePaths(ctx context.Context, paths []string) error {
	keys := make([]string, 0, len(paths))
	for _, path := range paths {
		keys = append(keys, DocKey(path))
	}
	return s.client.DeleteBatch(ctx, keys)
}

// Scan lists one page of the documents under a collection path. The from
// token is the Next value of the previous page.
func (s *DocumentStore) Scan(ctx context.Context, collectionPath string, pageSize int, from string) (*DocumentPage, error) {
	prefix := DocKey(collectionPath)
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	batch, err := s.client.List(ctx, Paging{Prefix: prefix, From: from, Limit: pageSize})
	if err != nil {
		return nil, err
	}

	page := &DocumentPage{More: batch.More}
	for _, kv := range batch.KVs {
		doc, err := s.unmarshalDocument(kv.Value)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, DocumentEntry{
			Path: docPathFromKey(kv.Key),
			Doc:  doc,
		})
		page.Next = kv.Key
	}

	return page, nil
}

func (s *DocumentStore) unmarshalDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, internalerrors.NewMarshalingError("failed to unmarshal document")
	}
	return doc, nil
}
