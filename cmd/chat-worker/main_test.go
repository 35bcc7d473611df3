package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/chat-worker/internal/config"
	"github.com/morezero/chat-worker/internal/server"
)

const mainTestPrefix = "cmd/chat-worker:main_test"

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestHelp_ListsCommands(t *testing.T) {
	out, err := execute(t, "", "--help")
	if err != nil {
		t.Fatalf("%s - help: %v", mainTestPrefix, err)
	}
	for _, word := range []string{"serve", "dispatch", "parse", "migrate", "journal", "request", "DATABASE_URL"} {
		if !strings.Contains(out, word) {
			t.Errorf("%s - help should contain %q", mainTestPrefix, word)
		}
	}
}

func TestDispatch_Stream(t *testing.T) {
	stdin := `{"id":"1","action":"process","data":[1,2]}
{"id":"2","action":"search","data":{"messages":[{"content":"Hello World"}],"query":"WORLD"}}
{"id":"3","action":"unknown_tag"}
{"id":"4","action":false}
[]`
	out, err := execute(t, stdin, "dispatch")
	if err != nil {
		t.Fatalf("%s - dispatch: %v", mainTestPrefix, err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	want := []string{
		`{"id":"1","result":[1,2]}`,
		`{"id":"2","result":[{"content":"Hello World"}]}`,
		`{"id":"3","error":"Unknown action: unknown_tag","code":"UNRECOGNIZED_ACTION"}`,
	}
	if len(lines) != 5 {
		t.Fatalf("%s - expected 5 responses, got %d: %q", mainTestPrefix, len(lines), out)
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("%s - line %d = %s, want %s", mainTestPrefix, i, lines[i], w)
		}
	}
	for i, wantID := range map[int]string{3: `"4"`, 4: "null"} {
		var resp struct {
			ID   json.RawMessage `json:"id"`
			Code string          `json:"code"`
		}
		if err := json.Unmarshal([]byte(lines[i]), &resp); err != nil {
			t.Fatalf("%s - line %d: %v", mainTestPrefix, i, err)
		}
		if string(resp.ID) != wantID || resp.Code != "INVALID_REQUEST" {
			t.Errorf("%s - line %d = %s, want INVALID_REQUEST with id %s", mainTestPrefix, i, lines[i], wantID)
		}
	}
}

func TestDispatch_UnreadableInput(t *testing.T) {
	out, err := execute(t, `{"id":"1","action":"process"} not-json`, "dispatch")
	if err == nil {
		t.Fatalf("%s - expected error for non-JSON input", mainTestPrefix)
	}
	if !strings.Contains(out, `"id":"1"`) {
		t.Errorf("%s - expected the first request to be answered, got %q", mainTestPrefix, out)
	}
}

func TestParse_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.txt")
	export := "[18/05/2023, 08:39:07] Ann: Pizza tonight?\n[18/05/2023, 08:40:15] Bob: Pizza sounds great\nsee you\n"
	if err := os.WriteFile(path, []byte(export), 0644); err != nil {
		t.Fatalf("%s - write: %v", mainTestPrefix, err)
	}

	out, err := execute(t, "", "parse", path, "--stats", "--keywords", "3")
	if err != nil {
		t.Fatalf("%s - parse: %v", mainTestPrefix, err)
	}

	var report struct {
		Messages []struct {
			Sender  string `json:"sender"`
			Content string `json:"content"`
		} `json:"messages"`
		Senders    []string `json:"senders"`
		Statistics struct {
			TotalMessages int `json:"totalMessages"`
		} `json:"statistics"`
		Keywords struct {
			Keywords []struct {
				Word  string `json:"word"`
				Count int    `json:"count"`
			} `json:"keywords"`
		} `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("%s - decode output: %v\n%s", mainTestPrefix, err, out)
	}
	if len(report.Messages) != 2 || report.Messages[1].Content != "Pizza sounds great\nsee you" {
		t.Errorf("%s - messages = %+v", mainTestPrefix, report.Messages)
	}
	if strings.Join(report.Senders, ",") != "Ann,Bob" {
		t.Errorf("%s - senders = %v", mainTestPrefix, report.Senders)
	}
	if report.Statistics.TotalMessages != 2 {
		t.Errorf("%s - totalMessages = %d", mainTestPrefix, report.Statistics.TotalMessages)
	}
	if len(report.Keywords.Keywords) == 0 || report.Keywords.Keywords[0].Word != "pizza" || report.Keywords.Keywords[0].Count != 2 {
		t.Errorf("%s - keywords = %+v", mainTestPrefix, report.Keywords.Keywords)
	}
}

func TestParse_StdinSummary(t *testing.T) {
	out, err := execute(t, "12/31/22, 11:59 PM - Ann: Happy new year\n", "parse", "-", "--summary")
	if err != nil {
		t.Fatalf("%s - parse: %v", mainTestPrefix, err)
	}
	if strings.Contains(out, `"messages"`) {
		t.Errorf("%s - --summary should omit messages: %s", mainTestPrefix, out)
	}
	if !strings.Contains(out, `"Ann"`) {
		t.Errorf("%s - expected sender Ann: %s", mainTestPrefix, out)
	}
}

func TestParse_Sentiment(t *testing.T) {
	export := "18/05/2023, 08:39 - Ann: This is wonderful, I love it!\n18/05/2023, 08:40 - Bob: <Media omitted>\n"
	out, err := execute(t, export, "parse", "-", "--summary", "--sentiment")
	if err != nil {
		t.Fatalf("%s - parse: %v", mainTestPrefix, err)
	}
	var report struct {
		Sentiment struct {
			Overall struct {
				Label string `json:"label"`
			} `json:"overall"`
			Daily []struct {
				MessageCount int `json:"messageCount"`
			} `json:"daily"`
		} `json:"sentiment"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("%s - decode output: %v\n%s", mainTestPrefix, err, out)
	}
	if report.Sentiment.Overall.Label != "positive" {
		t.Errorf("%s - overall label = %q", mainTestPrefix, report.Sentiment.Overall.Label)
	}
	if len(report.Sentiment.Daily) != 1 || report.Sentiment.Daily[0].MessageCount != 1 {
		t.Errorf("%s - daily = %+v", mainTestPrefix, report.Sentiment.Daily)
	}
}

func TestParse_MissingFile(t *testing.T) {
	if _, err := execute(t, "", "parse", filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Errorf("%s - expected error for missing file", mainTestPrefix)
	}
}

func TestDatabaseCommands_RequireDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")

	for _, args := range [][]string{{"migrate", "status"}, {"migrate", "up"}, {"journal", "recent"}, {"journal", "prune"}} {
		_, err := execute(t, "", args...)
		if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
			t.Errorf("%s - %v: expected DATABASE_URL error, got %v", mainTestPrefix, args, err)
		}
	}
}

// startWorker runs an embedded NATS server with a worker subscribed on subject and points
// the CLI's COMMS_URL at it.
func startWorker(t *testing.T, subject string) {
	t.Helper()
	ns, err := commsserver.NewServer(&commsserver.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", mainTestPrefix, err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", mainTestPrefix)
	}
	nc, err := comms.Connect(ns.ClientURL())
	if err != nil {
		ns.Shutdown()
		t.Fatalf("%s - failed to connect: %v", mainTestPrefix, err)
	}
	t.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	s := server.New(&config.Config{
		WorkerSubject:  subject,
		QueueGroup:     "chat-worker-cli-test",
		RequestTimeout: 5 * time.Second,
		BufferSize:     4,
	}, server.Options{Conn: nc})
	if _, err := s.Subscribe(); err != nil {
		t.Fatalf("%s - subscribe: %v", mainTestPrefix, err)
	}

	t.Setenv("COMMS_URL", ns.ClientURL())
	t.Setenv("WORKER_SUBJECT", subject)
}

func TestRequest_RoundTrip(t *testing.T) {
	startWorker(t, "chat.cli.test")

	out, err := execute(t, "", "request", "search", `{"messages":[{"content":"Hi there"},{"content":"bye"}],"query":"HI"}`, "--id", "cli-1")
	if err != nil {
		t.Fatalf("%s - request: %v", mainTestPrefix, err)
	}
	var resp struct {
		ID     string            `json:"id"`
		Result []json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("%s - decode: %v\n%s", mainTestPrefix, err, out)
	}
	if resp.ID != "cli-1" || len(resp.Result) != 1 {
		t.Errorf("%s - unexpected response %s", mainTestPrefix, out)
	}
}

func TestRequest_UnknownActionFails(t *testing.T) {
	startWorker(t, "chat.cli.test")

	out, err := execute(t, "", "request", "unknown_tag")
	if err == nil || !strings.Contains(err.Error(), "UNRECOGNIZED_ACTION") {
		t.Errorf("%s - expected UNRECOGNIZED_ACTION error, got %v", mainTestPrefix, err)
	}
	if !strings.Contains(out, "unknown_tag") {
		t.Errorf("%s - response should be printed: %s", mainTestPrefix, out)
	}
}

func TestRequest_InvalidData(t *testing.T) {
	if _, err := execute(t, "", "request", "process", "{not json"); err == nil {
		t.Errorf("%s - expected error for invalid data", mainTestPrefix)
	}
}
