package store

import (
	"context"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	internalerrors "github.com/nidoapp/nido-api/internal/errors"
)

// KeyValue represents a key-value pair from etcd
type KeyValue struct {
	Key   string
	Value []byte
}

// Paging describes one bounded page of a prefix scan. From is the raw key
// of the last element of the previous page; empty means start of the prefix.
type Paging struct {
	Prefix string
	From   string
	Limit  int
}

// Batch is one page of scan results. More indicates further pages exist.
type Batch struct {
	KVs  []KeyValue
	More bool
}

// ClientWrapper provides a thin generic wrapper over etcd client.
// Every RPC failure is classified transient; content-level problems are the
// caller's to classify.
type ClientWrapper interface {
	Put(ctx context.Context, key string, value string) error
	// Get returns the value and its mod revision, or NotFoundError.
	Get(ctx context.Context, key string) ([]byte, int64, error)
	Delete(ctx context.Context, key string) error
	// DeleteBatch removes all given keys in a single transaction. Absent
	// keys are not an error.
	DeleteBatch(ctx context.Context, keys []string) error
	List(ctx context.Context, paging Paging) (*Batch, error)

	// PutIfAbsent writes only when the key does not exist yet.
	PutIfAbsent(ctx context.Context, key string, value string) (bool, error)
	// PutIfRevision writes only when the key's mod revision still matches;
	// this is the transactional read-modify-write primitive.
	PutIfRevision(ctx context.Context, key string, value string, modRevision int64) (bool, error)

	// Watch streams key changes under a prefix until ctx is cancelled.
	Watch(ctx context.Context, prefix string) (<-chan WatchEvent, error)
}

// WatchEvent is one observed key change.
type WatchEvent struct {
	Key     string
	Value   []byte
	Deleted bool
}

type clientWrapper struct {
	logger *zap.Logger
	client *clientv3.Client
}

func NewClientWrapper(logger *zap.Logger, client *clientv3.Client) ClientWrapper {
	return &clientWrapper{
		logger: logger,
		client: client,
	}
}

func (c *clientWrapper) Put(ctx context.Context, key string, value string) error {
	_, err := c.client.Put(ctx, key, value)
	if err != nil {
		return internalerrors.NewTransientError("etcd put", err)
	}
	return nil
}

func (c *clientWrapper) Get(ctx context.Context, key string) ([]byte, int64, error) {
	resp, err := c.client.Get(ctx, key)
	if err != nil {
		return nil, 0, internalerrors.NewTransientError("etcd get", err)
	}

	if len(resp.Kvs) == 0 {
		return nil, 0, NewNotFoundError(key)
	}

	return resp.Kvs[0].Value, resp.Kvs[0].ModRevision, nil
}

func (c *clientWrapper) Delete(ctx context.Context, key string) error {
	_, err := c.client.Delete(ctx, key)
	if err != nil {
		return internalerrors.NewTransientError("etcd delete", err)
	}
	return nil
}

func (c *clientWrapper) DeleteBatch(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	ops := make([]clientv3.Op, 0, len(keys))
	for _, key := range keys {
		ops = append(ops, clientv3.OpDelete(key))
	}

	txnResp, err := c.client.Txn(ctx).Then(ops...).Commit()
	if err != nil {
		return internalerrors.NewTransientError("etcd batch delete", err)
	}
	if !txnResp.Succeeded {
		return internalerrors.NewTransientError("etcd batch delete", errTxnFailed)
	}

	return nil
}

func (c *clientWrapper) List(ctx context.Context, paging Paging) (*Batch, error) {
	opts := []clientv3.OpOption{
		clientv3.WithRange(clientv3.GetPrefixRangeEnd(paging.Prefix)),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend),
	}
	if paging.Limit > 0 {
		opts = append(opts, clientv3.WithLimit(int64(paging.Limit)))
	}

	start := paging.Prefix
	if paging.From != "" {
		// resume strictly after the last key of the previous page
		start = paging.From + "\x00"
	}

	resp, err := c.client.Get(ctx, start, opts...)
	if err != nil {
		return nil, internalerrors.NewTransientError("etcd list", err)
	}

	batch := &Batch{More: resp.More}
	for _, kv := range resp.Kvs {
		batch.KVs = append(batch.KVs, KeyValue{
			Key:   string(kv.Key),
			Value: kv.Value,
		})
	}

	return batch, nil
}

func (c *clientWrapper) PutIfAbsent(ctx context.Context, key string, value string) (bool, error) {
	txnResp, err := c.client.Txn(ctx).
		If(clientv3.Compare(clientv3.Version(key), "=", 0)).
		Then(clientv3.OpPut(key, value)).
		Commit()
	if err != nil {
		return false, internalerrors.NewTransientError("etcd conditional put", err)
	}

	return txnResp.Succeeded, nil
}

func (c *clientWrapper) PutIfRevision(ctx context.Context, key string, value string, modRevision int64) (bool, error) {
	txnResp, err := c.client.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(key), "=", modRevision)).
		Then(clientv3.OpPut(key, value)).
		Commit()
	if err != nil {
		return false, internalerrors.NewTransientError("etcd conditional put", err)
	}

	return txnResp.Succeeded, nil
}

func (c *clientWrapper) Watch(ctx context.Context, prefix string) (<-chan WatchEvent, error) {
	eventChan := make(chan WatchEvent, 64)
	watchChan := c.client.Watch(ctx, prefix, clientv3.WithPrefix())

	go func() {
		defer close(eventChan)

		for {
			select {
			case <-ctx.Done():
				return

			case watchResp, ok := <-watchChan:
				if !ok {
					return
				}

				if watchResp.Err() != nil {
					c.logger.Error("Watch error occurred",
						zap.String("prefix", prefix),
						zap.Error(watchResp.Err()))
					continue
				}

				for _, ev := range watchResp.Events {
					event := WatchEvent{
						Key:     string(ev.Kv.Key),
						Value:   ev.Kv.Value,
						Deleted: ev.Type == clientv3.EventTypeDelete,
					}

					select {
					case eventChan <- event:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return eventChan, nil
}

type txnFailedError struct{}

func (txnFailedError) Error() string { return "transaction failed" }

var errTxnFailed = txnFailedError{}
