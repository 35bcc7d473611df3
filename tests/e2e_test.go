// Package tests contains end-to-end tests for the chat worker.
// These tests start an embedded NATS server and drive the full request/response
// flow through the server's subscription, websocket endpoint and event publisher.
package tests

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/chat-worker/internal/config"
	"github.com/morezero/chat-worker/internal/server"
	"github.com/morezero/chat-worker/pkg/dispatcher"
	"github.com/morezero/chat-worker/pkg/events"
)

const (
	testWorkerSubject = "chat.test.worker.v1"
	testEventSubject  = "chat.test.worker.events"
)

// testEnv holds the test environment for E2E tests.
type testEnv struct {
	nc     *comms.Conn
	srv    *server.Server
	events chan *events.DispatchEvent
}

// setupE2E starts an embedded NATS server, a worker server subscribed to it, and a
// subscriber collecting the dispatch events it publishes.
func setupE2E(t *testing.T) *testEnv {
	t.Helper()

	ns, err := commsserver.NewServer(&commsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("e2e_test - failed to create NATS server: %v", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("e2e_test - NATS server failed to start")
	}

	nc, err := comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		ns.Shutdown()
		t.Fatalf("e2e_test - failed to connect: %v", err)
	}

	t.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	env := &testEnv{nc: nc, events: make(chan *events.DispatchEvent, 256)}

	_, err = nc.Subscribe(testEventSubject+".*", func(msg *comms.Msg) {
		var ev events.DispatchEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			t.Errorf("e2e_test - bad event on %s: %v", msg.Subject, err)
			return
		}
		env.events <- &ev
	})
	if err != nil {
		t.Fatalf("e2e_test - failed to subscribe to events: %v", err)
	}

	cfg := &config.Config{
		WorkerSubject:      testWorkerSubject,
		QueueGroup:         "chat-worker-e2e",
		EventSubject:       testEventSubject,
		RequestTimeout:     10 * time.Second,
		BufferSize:         8,
		HealthCheckTimeout: 5 * time.Second,
		WSReadLimit:        1 << 20,
	}
	env.srv = server.New(cfg, server.Options{
		Conn:      nc,
		Publisher: events.NewCommsPublisher(nc, &events.CommsPublisherOpts{EventSubject: testEventSubject}),
	})

	sub, err := env.srv.Subscribe()
	if err != nil {
		t.Fatalf("e2e_test - failed to subscribe worker: %v", err)
	}
	t.Cleanup(func() { _ = sub.Unsubscribe() })

	return env
}

// sendFrame sends a raw frame over NATS and returns the decoded response.
func sendFrame(t *testing.T, nc *comms.Conn, frame string) *dispatcher.WorkResponse {
	t.Helper()

	msg, err := nc.Request(testWorkerSubject, []byte(frame), 10*time.Second)
	if err != nil {
		t.Fatalf("e2e_test - request failed: %v", err)
	}

	var resp dispatcher.WorkResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		t.Fatalf("e2e_test - failed to unmarshal response: %v", err)
	}
	return &resp
}

func TestE2E_UnknownAction(t *testing.T) {
	env := setupE2E(t)

	resp := sendFrame(t, env.nc, `{"id":"e2e-1","action":"unknown_tag","data":{}}`)

	if !resp.Failed() {
		t.Error("e2e_test - expected failure for unknown action")
	}
	if string(resp.ID) != `"e2e-1"` {
		t.Errorf("e2e_test - ID = %s, want \"e2e-1\"", resp.ID)
	}
	if resp.Code != dispatcher.CodeUnrecognizedAction {
		t.Errorf("e2e_test - code = %q, want %q", resp.Code, dispatcher.CodeUnrecognizedAction)
	}
	if !strings.Contains(resp.Error, "unknown_tag") {
		t.Errorf("e2e_test - error %q should contain the action", resp.Error)
	}
}

func TestE2E_Process(t *testing.T) {
	env := setupE2E(t)

	resp := sendFrame(t, env.nc, `{"id":"e2e-2","action":"process","data":{"a":1,"b":[true,null]}}`)

	if resp.Failed() {
		t.Fatalf("e2e_test - unexpected error: %s", resp.Error)
	}
	if string(resp.Result) != `{"a":1,"b":[true,null]}` {
		t.Errorf("e2e_test - result = %s", resp.Result)
	}
}

func TestE2E_Search(t *testing.T) {
	env := setupE2E(t)

	tests := []struct {
		name string
		data string
		want string
	}{
		{"case insensitive", `{"messages":[{"content":"Hello World"}],"query":"hello"}`, `[{"content":"Hello World"}]`},
		{"all terms", `{"messages":[{"content":"alpha beta"},{"content":"alpha"}],"query":"alpha beta"}`, `[{"content":"alpha beta"}]`},
		{"missing content", `{"messages":[{"id":"1"},{"id":"2","content":"x"}],"query":"x"}`, `[{"id":"2","content":"x"}]`},
		{"empty query", `{"messages":[{"content":"Hello"}],"query":""}`, `[]`},
		{"no messages", `{"messages":[],"query":"hello"}`, `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := sendFrame(t, env.nc, fmt.Sprintf(`{"id":"s","action":"search","data":%s}`, tt.data))
			if resp.Failed() {
				t.Fatalf("e2e_test - unexpected error: %s", resp.Error)
			}
			if string(resp.Result) != tt.want {
				t.Errorf("e2e_test - result = %s, want %s", resp.Result, tt.want)
			}
		})
	}
}

func TestE2E_InvalidJSON(t *testing.T) {
	env := setupE2E(t)

	resp := sendFrame(t, env.nc, `{invalid json`)

	if resp.Code != dispatcher.CodeInvalidRequest {
		t.Errorf("e2e_test - code = %q, want %q", resp.Code, dispatcher.CodeInvalidRequest)
	}
	if string(resp.ID) != "null" {
		t.Errorf("e2e_test - ID = %s, want null", resp.ID)
	}
}

func TestE2E_RequestIDPreservation(t *testing.T) {
	env := setupE2E(t)

	ids := []string{`"req-001"`, `"unique-xyz-789"`, `""`, `42`, `null`}
	for _, id := range ids {
		resp := sendFrame(t, env.nc, fmt.Sprintf(`{"id":%s,"action":"nonexistent"}`, id))
		if string(resp.ID) != id {
			t.Errorf("e2e_test - ID = %s, want %s", resp.ID, id)
		}
	}
}

func TestE2E_ResponsesInSubmissionOrder(t *testing.T) {
	env := setupE2E(t)

	const numRequests = 30
	inbox := comms.NewInbox()
	replies := make(chan *comms.Msg, numRequests)
	sub, err := env.nc.ChanSubscribe(inbox, replies)
	if err != nil {
		t.Fatalf("e2e_test - failed to subscribe to inbox: %v", err)
	}
	defer sub.Unsubscribe()

	for i := 0; i < numRequests; i++ {
		action := "process"
		if i%3 == 0 {
			action = "search"
		}
		frame := fmt.Sprintf(`{"id":%d,"action":%q,"data":{"messages":[{"content":"n %d"}],"query":"n"}}`, i, action, i)
		if err := env.nc.PublishRequest(testWorkerSubject, inbox, []byte(frame)); err != nil {
			t.Fatalf("e2e_test - publish %d: %v", i, err)
		}
	}

	for i := 0; i < numRequests; i++ {
		select {
		case msg := <-replies:
			var resp dispatcher.WorkResponse
			if err := json.Unmarshal(msg.Data, &resp); err != nil {
				t.Fatalf("e2e_test - decode reply %d: %v", i, err)
			}
			if string(resp.ID) != fmt.Sprint(i) {
				t.Fatalf("e2e_test - reply %d has ID %s", i, resp.ID)
			}
		case <-time.After(10 * time.Second):
			t.Fatalf("e2e_test - timed out waiting for reply %d", i)
		}
	}
}

func TestE2E_PublishesDispatchEvents(t *testing.T) {
	env := setupE2E(t)

	sendFrame(t, env.nc, `{"id":"ev-1","action":"search","data":{"messages":[],"query":"x"}}`)
	sendFrame(t, env.nc, `{"id":"ev-2","action":"bogus"}`)

	want := map[string]bool{"search": true, "bogus": false}
	for len(want) > 0 {
		select {
		case ev := <-env.events:
			ok, expected := want[ev.Action]
			if !expected {
				t.Fatalf("e2e_test - unexpected event %+v", ev)
			}
			if ev.OK != ok {
				t.Errorf("e2e_test - event %s OK = %v, want %v", ev.Action, ev.OK, ok)
			}
			if ev.EventID == "" || ev.Timestamp == "" {
				t.Errorf("e2e_test - incomplete event %+v", ev)
			}
			delete(want, ev.Action)
		case <-time.After(5 * time.Second):
			t.Fatalf("e2e_test - timed out waiting for events %v", want)
		}
	}
}

func TestE2E_WebSocketAndComms(t *testing.T) {
	env := setupE2E(t)

	hs := httptest.NewServer(env.srv.Handler())
	defer hs.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("e2e_test - dial: %v", err)
	}
	defer conn.Close()

	frames := []string{
		`{"id":"w1","action":"search","data":{"messages":[{"content":"Lunch at noon"}],"query":"LUNCH"}}`,
		`{"id":"w2","action":"process","data":"ok"}`,
		`{"id":"w3","action":"nope"}`,
	}
	for _, f := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Fatalf("e2e_test - write: %v", err)
		}
	}

	// A NATS request in the middle of the websocket stream is answered independently.
	if resp := sendFrame(t, env.nc, `{"id":"n1","action":"process","data":1}`); string(resp.Result) != "1" {
		t.Errorf("e2e_test - comms result = %s", resp.Result)
	}

	wantIDs := []string{`"w1"`, `"w2"`, `"w3"`}
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for i, id := range wantIDs {
		var resp dispatcher.WorkResponse
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatalf("e2e_test - read %d: %v", i, err)
		}
		if string(resp.ID) != id {
			t.Errorf("e2e_test - response %d ID = %s, want %s", i, resp.ID, id)
		}
	}
}
