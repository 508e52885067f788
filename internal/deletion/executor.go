package deletion

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nidoapp/nido-api/internal/blob"
	"github.com/nidoapp/nido-api/internal/config"
	"github.com/nidoapp/nido-api/internal/deletion/graph"
	"github.com/nidoapp/nido-api/internal/identity"
	"github.com/nidoapp/nido-api/internal/lib"
	"github.com/nidoapp/nido-api/internal/store"
)

// ExtendFunc renews the caller's lease; executors invoke it between pages
// so long phases never outlive the claim. It returns ErrLeaseLost when the
// lease is gone.
type ExtendFunc func(ctx context.Context) error

// Executor runs the per-resource deletion strategies. Every delete is
// idempotent (absence is success) and every locator is recomputed from the
// owner id, so a phase can be repeated after a crash without persisted step
// state. Each page fits one atomic multi-document write.
type Executor struct {
	logger    *zap.Logger
	docs      *store.DocumentStore
	owned     *store.OwnedIndex
	refs      *store.ReferenceIndex
	blobs     blob.Store
	identity  identity.Client
	pageSize  int
	opTimeout time.Duration
	opRetries int
}

func NewExecutor(
	logger *zap.Logger,
	cfg *config.Config,
	docs *store.DocumentStore,
	owned *store.OwnedIndex,
	refs *store.ReferenceIndex,
	blobs blob.Store,
	identityClient identity.Client,
) *Executor {
	return &Executor{
		logger:    logger,
		docs:      docs,
		owned:     owned,
		refs:      refs,
		blobs:     blobs,
		identity:  identityClient,
		pageSize:  cfg.Deletion.PageSize,
		opTimeout: cfg.Deletion.OpTimeout,
		opRetries: cfg.Deletion.OpRetries,
	}
}

// retry gives one store operation its own short timeout and bounded
// backoff, independent of the job-level attempt counter.
func (e *Executor) retry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := lib.NewBackoffManager(lib.DefaultBackoffConfig())
	return lib.Retry(ctx, e.opRetries, e.opTimeout, backoff, op)
}

func (e *Executor) RunPhase(ctx context.Context, ownerID string, phase graph.Phase, extend ExtendFunc) error {
	for _, descriptor := range phase {
		if err := e.runResource(ctx, ownerID, descriptor, extend); err != nil {
			return errors.Wrapf(err, "resource %s", descriptor.Type)
		}
		e.logger.Debug("Cleared resource",
			zap.String("ownerID", ownerID),
			zap.String("resource", string(descriptor.Type)))
	}
	return nil
}

func (e *Executor) runResource(ctx context.Context, ownerID string, d graph.ResourceDescriptor, extend ExtendFunc) error {
	switch d.Strategy {
	case graph.StrategyCollectionScan:
		return e.clearChildCollections(ctx, ownerID, d, extend)
	case graph.StrategySingleDoc:
		return e.deleteOwnedDocs(ctx, ownerID, d.Type, extend)
	case graph.StrategyConversation:
		return e.cleanupConversations(ctx, ownerID, extend)
	case graph.StrategyRefIndex:
		return e.cleanupReferences(ctx, ownerID, d.Parent, extend)
	case graph.StrategyBlobPrefix:
		return e.deleteBlobPrefix(ctx, ownerID, d.Type, extend)
	case graph.StrategyAccountDocs:
		return e.deleteAccountDocs(ctx, ownerID, extend)
	case graph.StrategyIdentity:
		return e.deleteIdentity(ctx, ownerID, extend)
	default:
		return errors.Errorf("unknown deletion strategy %q", d.Strategy)
	}
}

// clearChildCollections empties one child collection under every owned
// parent document (comments and likes under posts, attendees under owned
// events). Parents are located through the owned index, which survives
// until the account-docs phase so reruns always find them again.
func (e *Executor) clearChildCollections(ctx context.Context, ownerID string, d graph.ResourceDescriptor, extend ExtendFunc) error {
	from := ""
	for {
		if err := extend(ctx); err != nil {
			return err
		}

		var page *store.IndexPage
		err := e.retry(ctx, func(ctx context.Context) error {
			var err error
			page, err = e.owned.List(ctx, ownerID, string(d.Parent), e.pageSize, from)
			return err
		})
		if err != nil {
			return err
		}

		for _, parentPath := range page.Paths {
			if err := e.clearCollection(ctx, parentPath+"/"+d.Collection, extend); err != nil {
				return err
			}
		}

		if !page.More {
			return nil
		}
		from = page.Next
	}
}

// clearCollection deletes every document under a collection path, one
// bounded page per atomic write. It always scans from the start: the
// previous page is gone by then.
func (e *Executor) clearCollection(ctx context.Context, collectionPath string, extend ExtendFunc) error {
	for {
		if err := extend(ctx); err != nil {
			return err
		}

		var page *store.DocumentPage
		err := e.retry(ctx, func(ctx context.Context) error {
			var err error
			page, err = e.docs.Scan(ctx, collectionPath, e.pageSize, "")
			return err
		})
		if err != nil {
			return err
		}
		if len(page.Items) == 0 {
			return nil
		}

		paths := make([]string, 0, len(page.Items))
		for _, item := range page.Items {
			paths = append(paths, item.Path)
		}
		if err := e.retry(ctx, func(ctx context.Context) error {
			return e.docs.DeletePaths(ctx, paths)
		}); err != nil {
			return err
		}
		documentsDeleted.Add(float64(len(paths)))
	}
}

// deleteOwnedDocs removes every document the owned index lists for a
// resource type. Index entries are kept (the account-docs phase wipes
// them), so pagination advances through the index.
func (e *Executor) deleteOwnedDocs(ctx context.Context, ownerID string, resourceType graph.ResourceType, extend ExtendFunc) error {
	from := ""
	for {
		if err := extend(ctx); err != nil {
			return err
		}

		var page *store.IndexPage
		err := e.retry(ctx, func(ctx context.Context) error {
			var err error
			page, err = e.owned.List(ctx, ownerID, string(resourceType), e.pageSize, from)
			return err
		})
		if err != nil {
			return err
		}
		if len(page.Paths) == 0 {
			return nil
		}

		if err := e.retry(ctx, func(ctx context.Context) error {
			return e.docs.DeletePaths(ctx, page.Paths)
		}); err != nil {
			return err
		}
		documentsDeleted.Add(float64(len(page.Paths)))

		if !page.More {
			return nil
		}
		from = page.Next
	}
}

// cleanupConversations removes the account's membership documents and the
// messages it authored. A conversation left with zero members is retired
// entirely, remaining messages included; otherwise the peers' messages stay
// untouched.
func (e *Executor) cleanupConversations(ctx context.Context, ownerID string, extend ExtendFunc) error {
	from := ""
	for {
		if err := extend(ctx); err != nil {
			return err
		}

		var page *store.IndexPage
		err := e.retry(ctx, func(ctx context.Context) error {
			var err error
			page, err = e.owned.List(ctx, ownerID, string(graph.ResourceConversations), e.pageSize, from)
			return err
		})
		if err != nil {
			return err
		}

		for _, memberPath := range page.Paths {
			convID, err := conversationIDFromMemberDoc(memberPath)
			if err != nil {
				return err
			}
			if err := e.cleanupConversation(ctx, ownerID, convID, memberPath, extend); err != nil {
				return err
			}
		}

		if !page.More {
			return nil
		}
		from = page.Next
	}
}

func (e *Executor) cleanupConversation(ctx context.Context, ownerID, convID, memberPath string, extend ExtendFunc) error {
	if err := e.retry(ctx, func(ctx context.Context) error {
		return e.docs.Delete(ctx, memberPath)
	}); err != nil {
		return err
	}
	documentsDeleted.Inc()

	// authored messages
	messagesPath := ConversationMessagesPath(convID)
	from := ""
	for {
		if err := extend(ctx); err != nil {
			return err
		}

		var page *store.DocumentPage
		err := e.retry(ctx, func(ctx context.Context) error {
			var err error
			page, err = e.docs.Scan(ctx, messagesPath, e.pageSize, from)
			return err
		})
		if err != nil {
			return err
		}

		var authored []string
		for _, item := range page.Items {
			if author, _ := item.Doc["authorId"].(string); author == ownerID {
				authored = append(authored, item.Path)
			}
		}
		if len(authored) > 0 {
			if err := e.retry(ctx, func(ctx context.Context) error {
				return e.docs.DeletePaths(ctx, authored)
			}); err != nil {
				return err
			}
			documentsDeleted.Add(float64(len(authored)))
		}

		if !page.More {
			break
		}
		from = page.Next
	}

	// a conversation nobody is left in is retired together with the
	// peers-no-longer-present message history
	var members *store.DocumentPage
	err := e.retry(ctx, func(ctx context.Context) error {
		var err error
		members, err = e.docs.Scan(ctx, ConversationMembersPath(convID), 1, "")
		return err
	})
	if err != nil {
		return err
	}
	if len(members.Items) > 0 {
		return nil
	}

	if err := e.clearCollection(ctx, messagesPath, extend); err != nil {
		return err
	}
	if err := e.retry(ctx, func(ctx context.Context) error {
		return e.docs.Delete(ctx, ConversationDocPath(convID))
	}); err != nil {
		return err
	}
	documentsDeleted.Inc()

	return nil
}

// cleanupReferences removes foreign documents that point at the account's
// now-deleted resources (a peer's saved-post entry), located through the
// reference index. Both the referencing document and the index entry go.
func (e *Executor) cleanupReferences(ctx context.Context, ownerID string, targetType graph.ResourceType, extend ExtendFunc) error {
	from := ""
	for {
		if err := extend(ctx); err != nil {
			return err
		}

		var page *store.IndexPage
		err := e.retry(ctx, func(ctx context.Context) error {
			var err error
			page, err = e.owned.List(ctx, ownerID, string(targetType), e.pageSize, from)
			return err
		})
		if err != nil {
			return err
		}

		for _, targetPath := range page.Paths {
			if err := e.cleanupReferencesTo(ctx, targetPath, extend); err != nil {
				return err
			}
		}

		if !page.More {
			return nil
		}
		from = page.Next
	}
}

func (e *Executor) cleanupReferencesTo(ctx context.Context, targetPath string, extend ExtendFunc) error {
	for {
		if err := extend(ctx); err != nil {
			return err
		}

		var page *store.ReferencePage
		err := e.retry(ctx, func(ctx context.Context) error {
			var err error
			page, err = e.refs.List(ctx, targetPath, e.pageSize, "")
			return err
		})
		if err != nil {
			return err
		}
		if len(page.Entries) == 0 {
			return nil
		}

		for _, entry := range page.Entries {
			referencing := entry.ReferencingPath
			if err := e.retry(ctx, func(ctx context.Context) error {
				return e.docs.Delete(ctx, referencing)
			}); err != nil {
				return err
			}
			if err := e.retry(ctx, func(ctx context.Context) error {
				return e.refs.Remove(ctx, targetPath, referencing)
			}); err != nil {
				return err
			}
			documentsDeleted.Inc()
		}
	}
}

// deleteBlobPrefix removes the blobs behind documents deleted in earlier
// phases. Prefixes derive from the owner id, and running after the metadata
// documents means a crash mid-phase leaves at worst an orphan blob.
func (e *Executor) deleteBlobPrefix(ctx context.Context, ownerID string, resourceType graph.ResourceType, extend ExtendFunc) error {
	var prefix string
	switch resourceType {
	case graph.ResourceStoryBlobs:
		prefix = StoryBlobPrefix(ownerID)
	case graph.ResourceContributionBlobs:
		prefix = ContributionBlobPrefix(ownerID)
	case graph.ResourceMessageBlobs:
		prefix = ChatBlobPrefix(ownerID)
	default:
		return errors.Errorf("no blob prefix for resource %s", resourceType)
	}

	if err := extend(ctx); err != nil {
		return err
	}

	var removed int
	err := e.retry(ctx, func(ctx context.Context) error {
		var err error
		removed, err = e.blobs.DeletePrefix(ctx, prefix)
		return err
	})
	if err != nil {
		return err
	}
	blobsDeleted.Add(float64(removed))

	return nil
}

// deleteAccountDocs removes the account root documents, the private
// subcollections under users/{id}, and the account's owned index.
func (e *Executor) deleteAccountDocs(ctx context.Context, ownerID string, extend ExtendFunc) error {
	if err := e.clearCollection(ctx, UserSubtree(ownerID), extend); err != nil {
		return err
	}

	for _, path := range []string{UserDocPath(ownerID), UserPublicDocPath(ownerID)} {
		docPath := path
		if err := e.retry(ctx, func(ctx context.Context) error {
			return e.docs.Delete(ctx, docPath)
		}); err != nil {
			return err
		}
		documentsDeleted.Inc()
	}

	if err := extend(ctx); err != nil {
		return err
	}
	return e.retry(ctx, func(ctx context.Context) error {
		return e.owned.DeleteAll(ctx, ownerID, e.pageSize)
	})
}

// deleteIdentity removes the authentication identity, strictly last:
// earlier phases may still need to resolve the account's existence.
func (e *Executor) deleteIdentity(ctx context.Context, ownerID string, extend ExtendFunc) error {
	if err := extend(ctx); err != nil {
		return err
	}
	return e.retry(ctx, func(ctx context.Context) error {
		return e.identity.DeleteIdentity(ctx, ownerID)
	})
}
