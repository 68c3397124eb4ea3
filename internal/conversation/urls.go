package conversation

import "fmt"

// Attachment and avatar references are exposed as stable relative URLs
// rather than storage keys or presigned URLs, so clients never hold an
// expiring or backend-specific address.

func AttachmentURL(conversationID, messageID uint) string {
	return fmt.Sprintf("/conversations/%d/messages/%d/file", conversationID, messageID)
}

func AvatarURL(conversationID uint) string {
	return fmt.Sprintf("/conversations/%d/avatar", conversationID)
}
