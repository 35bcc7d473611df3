package db

import "time"

// JournalEntry represents a row in the dispatch_journal table. Request payloads and
// results are never stored.
type JournalEntry struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"requestId"`
	Action     string    `json:"action"`
	OK         bool      `json:"ok"`
	Code       string    `json:"code,omitempty"`
	DurationMs int64     `json:"durationMs"`
	Created    time.Time `json:"created"`
}

// ActionSummary aggregates journal rows for one action.
type ActionSummary struct {
	Action string  `json:"action"`
	Total  int64   `json:"total"`
	Failed int64   `json:"failed"`
	AvgMs  float64 `json:"avgMs"`
}
