package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/morezero/chat-worker/pkg/db"
)

const (
	checkOK       = "ok"
	checkFailed   = "failed"
	checkDisabled = "disabled"

	homeRecentLimit   = 25
	homeSummaryWindow = 24 * time.Hour
)

// HealthOutput is the /health response body.
type HealthOutput struct {
	Status    string       `json:"status"`
	Checks    HealthChecks `json:"checks"`
	Uptime    string       `json:"uptime"`
	Timestamp string       `json:"timestamp"`
}

// HealthChecks reports each dependency as ok, failed or disabled.
type HealthChecks struct {
	Comms    string `json:"comms"`
	Database string `json:"database"`
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome())
	mux.HandleFunc("/health", s.handleHealth())
	mux.HandleFunc("/ready", s.handleReady())
	mux.HandleFunc("/actions", s.handleActions())
	mux.HandleFunc("/ws", s.handleWS())
	return mux
}

// Health checks COMMS and, when the journal is enabled, the database.
func (s *Server) Health(ctx context.Context) *HealthOutput {
	h := &HealthOutput{
		Status:    "healthy",
		Checks:    HealthChecks{Comms: checkDisabled, Database: checkDisabled},
		Uptime:    time.Since(s.started).Truncate(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if s.nc != nil {
		h.Checks.Comms = checkOK
		if !s.nc.IsConnected() {
			h.Checks.Comms = checkFailed
		}
	}
	if s.journal != nil {
		h.Checks.Database = checkOK
		if err := s.journal.Ping(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - database health check: %v", logPrefix, err))
			h.Checks.Database = checkFailed
		}
	}
	if h.Checks.Comms == checkFailed || h.Checks.Database == checkFailed {
		h.Status = "unhealthy"
	}
	return h
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()
		h := s.Health(ctx)
		status := http.StatusOK
		if h.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, h)
	}
}

// handleReady reports ready once the worker subscription is live.
func (s *Server) handleReady() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleActions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"subject": s.cfg.WorkerSubject,
			"actions": s.disp.Actions(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - json encode: %v", logPrefix, err))
	}
}

// homePageTemplate is the HTML for the worker status page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Chat Worker</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; }
    section { margin-bottom: 2rem; }
    .error { color: #cc0000; }
  </style>
</head>
<body>
  <h1>Chat Worker</h1>
  <p class="meta">Subject <code>{{.Subject}}</code>, actions: {{range $i, $a := .Actions}}{{if $i}}, {{end}}<code>{{$a}}</code>{{end}}</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span> (up {{.Health.Uptime}})</p>
    <p>COMMS: {{.Health.Checks.Comms}}. Database: {{.Health.Checks.Database}}.</p>
  </section>

  <section>
    <h2>Since start</h2>
    {{if not .Stats}}
    <p>No requests handled yet.</p>
    {{else}}
    <table>
      <thead><tr><th>Action</th><th>Total</th><th>Failed</th><th>Avg ms</th></tr></thead>
      <tbody>
        {{range .Stats}}
        <tr><td>{{.Action}}</td><td>{{.Total}}</td><td>{{.Failed}}</td><td>{{printf "%.1f" .AvgMs}}</td></tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>

  {{if .Summary}}
  <section>
    <h2>Last 24 hours</h2>
    <table>
      <thead><tr><th>Action</th><th>Total</th><th>Failed</th><th>Avg ms</th></tr></thead>
      <tbody>
        {{range .Summary}}
        <tr><td>{{.Action}}</td><td>{{.Total}}</td><td>{{.Failed}}</td><td>{{printf "%.1f" .AvgMs}}</td></tr>
        {{end}}
      </tbody>
    </table>
  </section>
  {{end}}

  <section>
    <h2>Recent dispatches</h2>
    {{if not .JournalEnabled}}
    <p>Journal disabled (DATABASE_URL not set).</p>
    {{else if .JournalError}}
    <p class="error">Could not load journal: {{.JournalError}}</p>
    {{else if not .Recent}}
    <p>No journal entries.</p>
    {{else}}
    <table>
      <thead><tr><th>Time</th><th>Request</th><th>Action</th><th>Outcome</th><th>ms</th></tr></thead>
      <tbody>
        {{range .Recent}}
        <tr>
          <td>{{.Created.Format "2006-01-02 15:04:05"}}</td>
          <td>{{.RequestID}}</td>
          <td>{{.Action}}</td>
          <td>{{if .OK}}ok{{else}}<span class="error">{{.Code}}</span>{{end}}</td>
          <td>{{.DurationMs}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>
</body>
</html>
`

// homeData is the data passed to the home page template.
type homeData struct {
	Subject        string
	Actions        []string
	Health         *HealthOutput
	Stats          []actionCount
	JournalEnabled bool
	Recent         []db.JournalEntry
	Summary        []db.ActionSummary
	JournalError   string
}

func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()

		data := homeData{
			Subject:        s.cfg.WorkerSubject,
			Actions:        s.disp.Actions(),
			Health:         s.Health(ctx),
			Stats:          s.stats.snapshot(),
			JournalEnabled: s.journal != nil,
		}
		if s.journal != nil {
			recent, err := s.journal.Recent(ctx, homeRecentLimit)
			if err == nil {
				data.Recent = recent
				data.Summary, err = s.journal.Summary(ctx, time.Now().Add(-homeSummaryWindow))
			}
			if err != nil {
				data.JournalError = err.Error()
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
