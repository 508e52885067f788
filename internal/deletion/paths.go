package deletion

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Document path conventions of the application data model. The deletion
// executors derive every locator from these and the owner id, so a worker
// pass can always be recomputed from scratch.

func UserDocPath(ownerID string) string {
	return "users/" + ownerID
}

func UserPublicDocPath(ownerID string) string {
	return "users_public/" + ownerID
}

// UserSubtree is the collection root holding the account's private
// subcollections (saved posts, conversation index, settings).
func UserSubtree(ownerID string) string {
	return "users/" + ownerID
}

func ConversationDocPath(convID string) string {
	return "conversations/" + convID
}

func ConversationMembersPath(convID string) string {
	return "conversations/" + convID + "/members"
}

func ConversationMessagesPath(convID string) string {
	return "conversations/" + convID + "/messages"
}

// conversationIDFromMemberDoc extracts the conversation id from a member
// document path, conversations/{convId}/members/{userId}.
func conversationIDFromMemberDoc(path string) (string, error) {
	parts := strings.Split(path, "/")
	if len(parts) != 4 || parts[0] != "conversations" || parts[2] != "members" {
		return "", errors.Errorf("unexpected conversation member path %q", path)
	}
	return parts[1], nil
}

// Blob key prefixes, keyed by the uploading account so blob phases need no
// persisted step state.

func StoryBlobPrefix(ownerID string) string {
	return fmt.Sprintf("stories/%s/", ownerID)
}

func ContributionBlobPrefix(ownerID string) string {
	return fmt.Sprintf("contributions/%s/", ownerID)
}

func ChatBlobPrefix(ownerID string) string {
	return fmt.Sprintf("chat/%s/", ownerID)
}
