package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/chat-worker/pkg/commsutil"
	"github.com/morezero/chat-worker/pkg/dispatcher"
)

const commsLogPrefix = "server:comms"

// Subscribe joins the worker queue group on WORKER_SUBJECT. Messages of one subscription
// are handled sequentially, so each worker process answers in arrival order.
func (s *Server) Subscribe() (*comms.Subscription, error) {
	if s.nc == nil {
		return nil, fmt.Errorf("%s - no COMMS connection", commsLogPrefix)
	}
	sub, err := s.nc.QueueSubscribe(s.cfg.WorkerSubject, s.cfg.QueueGroup, s.handleCommsMsg)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", commsLogPrefix, s.cfg.WorkerSubject, err)
	}
	if err := s.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("%s - flush after subscribe: %w", commsLogPrefix, err)
	}
	s.ready.Store(true)
	slog.Info(fmt.Sprintf("%s - Subscribed to %s (queue %s)", commsLogPrefix, s.cfg.WorkerSubject, s.cfg.QueueGroup))
	return sub, nil
}

func (s *Server) handleCommsMsg(msg *comms.Msg) {
	start := time.Now()

	req, err := commsutil.DecodeRequest(msg.Data)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - rejecting frame on %s: %v", commsLogPrefix, msg.Subject, err))
		resp := commsutil.InvalidRequestResponse(req, err)
		s.reply(msg, resp)
		s.observe(context.Background(), req, resp, time.Since(start))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer cancel()

	resp := s.disp.Dispatch(ctx, req)
	s.reply(msg, resp)
	s.observe(ctx, req, resp, time.Since(start))
}

func (s *Server) reply(msg *comms.Msg, resp *dispatcher.WorkResponse) {
	if msg.Reply == "" {
		slog.Debug(fmt.Sprintf("%s - no reply subject for %s, dropping response", commsLogPrefix, resp.ID))
		return
	}
	data, err := commsutil.EncodePayload(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", commsLogPrefix, err))
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to respond: %v", commsLogPrefix, err))
	}
}
