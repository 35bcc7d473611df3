package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/morezero/chat-worker/pkg/db"
	"github.com/morezero/chat-worker/pkg/dispatcher"
	"github.com/morezero/chat-worker/pkg/events"
)

const observeLogPrefix = "server:observe"

// observe publishes the dispatch event, journals it and updates the in-memory counters.
// Failures are logged and never reach the requester.
func (s *Server) observe(ctx context.Context, req *dispatcher.WorkRequest, resp *dispatcher.WorkResponse, elapsed time.Duration) {
	ev := events.NewDispatchEvent(req, resp, elapsed, time.Now())
	s.stats.add(ev.Action, ev.OK, elapsed)

	if err := s.publisher.PublishDispatched(ctx, ev); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish event %s: %v", observeLogPrefix, ev.EventID, err))
	}

	if s.journal == nil {
		return
	}
	// The request deadline may already be spent; the journal gets its own.
	jctx, cancel := context.WithTimeout(context.Background(), s.cfg.HealthCheckTimeout)
	defer cancel()
	entry := &db.JournalEntry{
		ID:         ev.EventID,
		RequestID:  requestIDText(ev.RequestID),
		Action:     ev.Action,
		OK:         ev.OK,
		Code:       ev.Code,
		DurationMs: ev.DurationMs,
	}
	if err := s.journal.Record(jctx, entry); err != nil {
		slog.Warn(fmt.Sprintf("%s - %v", observeLogPrefix, err))
	}
}

// requestIDText renders an id for storage: strings unquoted, other JSON kept verbatim,
// null as "".
func requestIDText(id json.RawMessage) string {
	if len(id) == 0 || string(id) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(id, &s); err == nil {
		return s
	}
	return string(id)
}

// actionStats counts dispatches per action since start.
type actionStats struct {
	mu     sync.Mutex
	counts map[string]*actionCount
}

type actionCount struct {
	Action  string
	Total   int64
	Failed  int64
	TotalMs int64
}

func (c actionCount) AvgMs() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.TotalMs) / float64(c.Total)
}

func newActionStats() *actionStats {
	return &actionStats{counts: make(map[string]*actionCount)}
}

func (a *actionStats) add(action string, ok bool, elapsed time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, found := a.counts[action]
	if !found {
		c = &actionCount{Action: action}
		a.counts[action] = c
	}
	c.Total++
	if !ok {
		c.Failed++
	}
	c.TotalMs += elapsed.Milliseconds()
}

// snapshot returns a copy of the counters sorted by action.
func (a *actionStats) snapshot() []actionCount {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]actionCount, 0, len(a.counts))
	for _, c := range a.counts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out
}
