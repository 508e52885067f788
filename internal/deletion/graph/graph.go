// Package graph declares the static resource-dependency graph of an
// account's data and turns it into ordered deletion phases.
//
// The graph is a declared set of typed resource descriptors with explicit
// dependsOn edges, resolved by topological sort at planning time. Within a
// phase resources may be processed in any order; phase order is strict.
package graph

import (
	"github.com/pkg/errors"
)

type Strategy string

const (
	// StrategyCollectionScan clears a child collection under every owned
	// parent document (comments under a post, attendees under an event).
	StrategyCollectionScan Strategy = "collectionScan"
	// StrategySingleDoc deletes every document the owned index lists for
	// the resource type.
	StrategySingleDoc Strategy = "singleDoc"
	// StrategyConversation runs the membership-aware conversation cleanup.
	StrategyConversation Strategy = "conversation"
	// StrategyRefIndex removes foreign documents that reference the
	// account's resources, located through the reference index.
	StrategyRefIndex Strategy = "refIndex"
	// StrategyBlobPrefix removes blobs under an owner-derived prefix.
	StrategyBlobPrefix Strategy = "blobPrefix"
	// StrategyAccountDocs removes the account root documents and indexes.
	StrategyAccountDocs Strategy = "accountDocs"
	// StrategyIdentity removes the authentication identity.
	StrategyIdentity Strategy = "identity"
)

type ResourceType string

const (
	ResourcePostComments      ResourceType = "post_comments"
	ResourcePostLikes         ResourceType = "post_likes"
	ResourceEventAttendees    ResourceType = "event_attendees"
	ResourceEventAttendance   ResourceType = "event_attendance"
	ResourceGroupMemberships  ResourceType = "group_memberships"
	ResourceSupportTickets    ResourceType = "support_tickets"
	ResourceStories           ResourceType = "stories"
	ResourceContributions     ResourceType = "contributions"
	ResourcePosts             ResourceType = "posts"
	ResourceEvents            ResourceType = "events"
	ResourceConversations     ResourceType = "conversations"
	ResourceSavedPostRefs     ResourceType = "saved_post_refs"
	ResourceStoryBlobs        ResourceType = "story_blobs"
	ResourceContributionBlobs ResourceType = "contribution_blobs"
	ResourceMessageBlobs      ResourceType = "message_blobs"
	ResourceAccountDocs       ResourceType = "account_docs"
	ResourceIdentity          ResourceType = "identity"
)

// ResourceDescriptor is one node of the static deletion graph. Parent and
// Collection locate child collections for the collectionScan strategy;
// DependsOn edges encode both data dependencies (children before parents,
// documents before their blobs) and ordering policy (cross-references after
// conversations, identity last).
type ResourceDescriptor struct {
	Type       ResourceType
	Strategy   Strategy
	Parent     ResourceType
	Collection string
	DependsOn  []ResourceType
}

// Phase is an ordered group of resource deletions that must complete before
// the next group begins.
type Phase []ResourceDescriptor

func Descriptors() []ResourceDescriptor {
	return []ResourceDescriptor{
		{Type: ResourcePostComments, Strategy: StrategyCollectionScan, Parent: ResourcePosts, Collection: "comments"},
		{Type: ResourcePostLikes, Strategy: StrategyCollectionScan, Parent: ResourcePosts, Collection: "likes"},
		{Type: ResourceEventAttendees, Strategy: StrategyCollectionScan, Parent: ResourceEvents, Collection: "attendees"},
		{Type: ResourceEventAttendance, Strategy: StrategySingleDoc},
		{Type: ResourceGroupMemberships, Strategy: StrategySingleDoc},
		{Type: ResourceSupportTickets, Strategy: StrategySingleDoc},
		{Type: ResourceStories, Strategy: StrategySingleDoc},
		{Type: ResourceContributions, Strategy: StrategySingleDoc},

		{Type: ResourcePosts, Strategy: StrategySingleDoc,
			DependsOn: []ResourceType{ResourcePostComments, ResourcePostLikes}},
		{Type: ResourceEvents, Strategy: StrategySingleDoc,
			DependsOn: []ResourceType{ResourceEventAttendees}},

		{Type: ResourceConversations, Strategy: StrategyConversation,
			DependsOn: []ResourceType{ResourcePosts, ResourceEvents}},

		{Type: ResourceSavedPostRefs, Strategy: StrategyRefIndex, Parent: ResourcePosts,
			DependsOn: []ResourceType{ResourcePosts, ResourceConversations}},

		{Type: ResourceStoryBlobs, Strategy: StrategyBlobPrefix,
			DependsOn: []ResourceType{ResourceStories, ResourceSavedPostRefs}},
		{Type: ResourceContributionBlobs, Strategy: StrategyBlobPrefix,
			DependsOn: []ResourceType{ResourceContributions, ResourceSavedPostRefs}},
		{Type: ResourceMessageBlobs, Strategy: StrategyBlobPrefix,
			DependsOn: []ResourceType{ResourceConversations, ResourceSavedPostRefs}},

		{Type: ResourceAccountDocs, Strategy: StrategyAccountDocs,
			DependsOn: []ResourceType{
				ResourceStoryBlobs, ResourceContributionBlobs, ResourceMessageBlobs,
				ResourceGroupMemberships, ResourceSupportTickets, ResourceEventAttendance,
			}},

		{Type: ResourceIdentity, Strategy: StrategyIdentity,
			DependsOn: []ResourceType{ResourceAccountDocs}},
	}
}

// Plan layers the descriptor set with Kahn's algorithm: a descriptor joins
// the earliest phase strictly after every descriptor it depends on. A cycle
// in the declared graph is a programming error.
func Plan() ([]Phase, error) {
	return plan(Descriptors())
}

func plan(descriptors []ResourceDescriptor) ([]Phase, error) {
	remaining := make(map[ResourceType]ResourceDescriptor, len(descriptors))
	for _, d := range descriptors {
		remaining[d.Type] = d
	}

	for _, d := range descriptors {
		for _, dep := range d.DependsOn {
			if _, ok := remaining[dep]; !ok {
				return nil, errors.Errorf("resource %s depends on undeclared resource %s", d.Type, dep)
			}
		}
	}

	placed := make(map[ResourceType]bool, len(descriptors))
	var phases []Phase

	for len(remaining) > 0 {
		var phase Phase
		for _, d := range descriptors {
			if _, ok := remaining[d.Type]; !ok {
				continue
			}
			ready := true
			for _, dep := range d.DependsOn {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				phase = append(phase, d)
			}
		}

		if len(phase) == 0 {
			return nil, errors.New("dependency cycle in resource graph")
		}

		for _, d := range phase {
			placed[d.Type] = true
			delete(remaining, d.Type)
		}
		phases = append(phases, phase)
	}

	return phases, nil
}
