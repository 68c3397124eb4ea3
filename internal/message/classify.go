package message

import "strings"

// Classify derives the message type from the attachment MIME type and
// the presence of accompanying text.
func Classify(mimeType, content string) Type {
	hasText := strings.TrimSpace(content) != ""
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		if hasText {
			return TypeTextWithFile
		}
		return TypeImage
	case strings.HasPrefix(mimeType, "audio/"):
		return TypeVoice
	default:
		if hasText {
			return TypeTextWithFile
		}
		return TypeFile
	}
}

// inlineDisposition reports whether a MIME category renders in the
// browser rather than downloading.
func inlineDisposition(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") ||
		strings.HasPrefix(mimeType, "audio/") ||
		strings.HasPrefix(mimeType, "video/") ||
		mimeType == "application/pdf"
}
