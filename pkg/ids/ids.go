// Package ids generates the prefixed opaque identifiers used across the
// content and chat data models.
package ids

import (
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// idAlphabet is the URL-safe alphabet used for the random id suffix.
const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz-"

// idLength is the length of the random suffix after the prefix.
const idLength = 21

const (
	// ContentPrefix is the id prefix for content items.
	ContentPrefix = "content_"
	// SessionPrefix is the id prefix for chat sessions.
	SessionPrefix = "sess_"
	// MessagePrefix is the id prefix for chat messages.
	MessagePrefix = "msg_"
	// HistoryPrefix is the id prefix for content history entries.
	HistoryPrefix = "hist_"
)

func newID(prefix string) string {
	suffix, err := gonanoid.Generate(idAlphabet, idLength)
	if err != nil {
		// gonanoid only fails when the platform RNG is broken; there is no
		// sensible recovery at this level.
		panic(err)
	}
	return prefix + suffix
}

// NewContentID returns a fresh content item id (content_<21 url-safe chars>).
func NewContentID() string { return newID(ContentPrefix) }

// NewSessionID returns a fresh chat session id (sess_<21 url-safe chars>).
func NewSessionID() string { return newID(SessionPrefix) }

// NewMessageID returns a fresh chat message id (msg_<21 url-safe chars>).
func NewMessageID() string { return newID(MessagePrefix) }

// NewHistoryID returns a fresh content history id (hist_<21 url-safe chars>).
func NewHistoryID() string { return newID(HistoryPrefix) }

// IsContentID reports whether s has the shape of a content item id.
func IsContentID(s string) bool { return hasShape(s, ContentPrefix) }

// IsSessionID reports whether s has the shape of a chat session id.
func IsSessionID(s string) bool { return hasShape(s, SessionPrefix) }

func hasShape(s, prefix string) bool {
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	suffix := s[len(prefix):]
	if len(suffix) != idLength {
		return false
	}
	for _, r := range suffix {
		if !strings.ContainsRune(idAlphabet, r) {
			return false
		}
	}
	return true
}
