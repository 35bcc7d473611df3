package chat

import (
	"sort"
	"time"
)

const dayLayout = "2006-01-02"

// Statistics summarises activity in a chat.
type Statistics struct {
	TotalMessages         int         `json:"totalMessages"`
	DateRange             DateRange   `json:"dateRange"`
	MessageCountByUser    []UserCount `json:"messageCountByUser"`
	MessageCountByDay     []DayCount  `json:"messageCountByDay"`
	MessageCountByHour    []HourCount `json:"messageCountByHour"`
	AverageMessagesPerDay float64     `json:"averageMessagesPerDay"`
	BusiestDay            string      `json:"busiestDay"`
	QuietestDay           string      `json:"quietestDay"`
	BusiestHour           int         `json:"busiestHour"`
}

// DateRange holds the first and last message dates (YYYY-MM-DD).
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// UserCount is the number of messages sent by one participant.
type UserCount struct {
	User       string  `json:"user"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// DayCount is the number of messages sent on one weekday.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// HourCount is the number of messages sent in one hour of the day.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// CalculateStatistics computes chat statistics. Empty input yields zero values.
func CalculateStatistics(messages []Message) *Statistics {
	stats := &Statistics{
		MessageCountByUser: []UserCount{},
		MessageCountByDay:  []DayCount{},
		MessageCountByHour: []HourCount{},
	}
	if len(messages) == 0 {
		return stats
	}

	total := len(messages)
	stats.TotalMessages = total

	first, last := messages[0].Timestamp, messages[0].Timestamp
	users := newCounter[string]()
	days := newCounter[time.Weekday]()
	hours := newCounter[int]()
	activeDays := make(map[string]struct{})

	for _, m := range messages {
		ts := m.Timestamp
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
		users.add(m.Sender)
		days.add(ts.Weekday())
		hours.add(ts.Hour())
		activeDays[ts.Format(dayLayout)] = struct{}{}
	}
	stats.DateRange = DateRange{Start: first.Format(dayLayout), End: last.Format(dayLayout)}

	for _, e := range users.mostCommon() {
		stats.MessageCountByUser = append(stats.MessageCountByUser, UserCount{
			User:       e.key,
			Count:      e.count,
			Percentage: float64(e.count) / float64(total) * 100,
		})
	}

	byDay := days.mostCommon()
	for _, e := range byDay {
		stats.MessageCountByDay = append(stats.MessageCountByDay, DayCount{Day: e.key.String(), Count: e.count})
	}
	stats.BusiestDay = byDay[0].key.String()
	stats.QuietestDay = byDay[len(byDay)-1].key.String()

	byHour := hours.mostCommon()
	stats.BusiestHour = byHour[0].key
	sort.Slice(byHour, func(i, j int) bool { return byHour[i].key < byHour[j].key })
	for _, e := range byHour {
		stats.MessageCountByHour = append(stats.MessageCountByHour, HourCount{Hour: e.key, Count: e.count})
	}

	stats.AverageMessagesPerDay = float64(total) / float64(len(activeDays))
	return stats
}

type counterEntry[K comparable] struct {
	key   K
	count int
	order int
}

// counter counts keys and remembers first-seen order for stable tie-breaking.
type counter[K comparable] struct {
	entries map[K]*counterEntry[K]
}

func newCounter[K comparable]() *counter[K] {
	return &counter[K]{entries: make(map[K]*counterEntry[K])}
}

func (c *counter[K]) add(k K) {
	e, ok := c.entries[k]
	if !ok {
		e = &counterEntry[K]{key: k, order: len(c.entries)}
		c.entries[k] = e
	}
	e.count++
}

// mostCommon returns entries by descending count; ties keep first-seen order.
func (c *counter[K]) mostCommon() []counterEntry[K] {
	out := make([]counterEntry[K], 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].order < out[j].order
	})
	return out
}
