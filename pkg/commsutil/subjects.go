package commsutil

import "strings"

// Default COMMS subjects for the worker.
const (
	SubjectWorker = "chat.worker.v1"
	SubjectEvents = "chat.worker.events"
	QueueGroup    = "chat-worker"
)

// BuildEventSubject returns the subject a dispatch event for action is published on.
// The action becomes a single subject token so wildcard subscribers on base.* see it.
func BuildEventSubject(base, action string) string {
	return base + "." + subjectToken(action)
}

func subjectToken(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
