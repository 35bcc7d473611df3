package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/morezero/chat-worker/pkg/commsutil"
	"github.com/morezero/chat-worker/pkg/dispatcher"
	"github.com/morezero/chat-worker/pkg/worker"
)

const wsLogPrefix = "server:ws"

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The viewer is served from its own origin; the worker holds no user data.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWS upgrades the connection and gives it its own worker instance, so responses on
// one socket come back in the order its requests were sent.
func (s *Server) handleWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - upgrade failed: %v", wsLogPrefix, err))
			return
		}
		s.serveWS(conn)
	}
}

// wsConn serializes data frame writes; gorilla allows only one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) write(resp *dispatcher.WorkResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(resp)
}

func (s *Server) serveWS(conn *websocket.Conn) {
	remote := conn.RemoteAddr().String()
	slog.Debug(fmt.Sprintf("%s - client connected from %s", wsLogPrefix, remote))

	c := &wsConn{conn: conn}
	defer conn.Close()

	conn.SetReadLimit(s.cfg.WSReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	wk := worker.New(s.disp, worker.Options{BufferSize: s.cfg.BufferSize, Observe: s.observe})
	writerDone := make(chan struct{})
	go s.wsWriteLoop(c, wk, writerDone)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn(fmt.Sprintf("%s - read from %s: %v", wsLogPrefix, remote, err))
			}
			break
		}
		// Any traffic proves the peer is alive.
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		req, err := commsutil.DecodeRequest(data)
		if err != nil {
			resp := commsutil.InvalidRequestResponse(req, err)
			s.observe(ctx, req, resp, 0)
			if err := c.write(resp); err != nil {
				break
			}
			continue
		}
		if err := wk.Send(ctx, req); err != nil {
			slog.Warn(fmt.Sprintf("%s - enqueue for %s: %v", wsLogPrefix, remote, err))
			break
		}
	}

	wk.Close()
	<-writerDone
	slog.Debug(fmt.Sprintf("%s - client %s disconnected", wsLogPrefix, remote))
}

// wsWriteLoop forwards worker responses to the socket and keeps it alive with pings. It
// keeps draining the worker after a write failure so Close can finish.
func (s *Server) wsWriteLoop(c *wsConn, wk *worker.Worker, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	failed := false
	for {
		select {
		case resp, ok := <-wk.Responses():
			if !ok {
				return
			}
			if failed {
				continue
			}
			if err := c.write(resp); err != nil {
				slog.Warn(fmt.Sprintf("%s - write response %s: %v", wsLogPrefix, resp.ID, err))
				failed = true
				// Unblocks the reader.
				_ = c.conn.Close()
			}
		case <-ticker.C:
			if failed {
				continue
			}
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				failed = true
				_ = c.conn.Close()
			}
		}
	}
}
