// Package chat implements WhatsApp export parsing, search and chat analysis.
package chat

import (
	"strings"
	"time"
)

// MessageType classifies a chat message by its content.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeVideo    MessageType = "video"
	TypeAudio    MessageType = "audio"
	TypeFile     MessageType = "file"
	TypeContact  MessageType = "contact"
	TypeLocation MessageType = "location"
	TypeSticker  MessageType = "sticker"
	TypeSystem   MessageType = "system"
)

// Message is a single chat message.
type Message struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Sender    string      `json:"sender"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
}

const mediaOmitted = "<media omitted>"

// DetectType infers the message type from its content.
func DetectType(content string) MessageType {
	lower := strings.ToLower(content)

	switch {
	case strings.Contains(lower, mediaOmitted):
		switch {
		case containsAny(lower, "image", "photo", "picture"):
			return TypeImage
		case containsAny(lower, "video", "movie", "clip"):
			return TypeVideo
		case containsAny(lower, "audio", "voice", "sound"):
			return TypeAudio
		default:
			return TypeFile
		}
	case strings.Contains(lower, "sticker omitted"):
		return TypeSticker
	case strings.HasPrefix(content, "https://") || strings.HasPrefix(content, "http://"):
		return TypeText
	case containsAny(lower, "location", "latitude", "longitude"):
		return TypeLocation
	case strings.Contains(lower, "contact") && strings.Contains(lower, "card"):
		return TypeContact
	default:
		return TypeText
	}
}

// Senders returns the distinct senders in order of first appearance.
func Senders(messages []Message) []string {
	seen := make(map[string]struct{}, len(messages))
	out := make([]string, 0)
	for _, m := range messages {
		if m.Sender == "" {
			continue
		}
		if _, ok := seen[m.Sender]; ok {
			continue
		}
		seen[m.Sender] = struct{}{}
		out = append(out, m.Sender)
	}
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
