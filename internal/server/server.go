// Package server wires the dispatcher to its transports (COMMS request/reply and
// WebSocket) and serves the HTTP status endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	comms "github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/morezero/chat-worker/internal/config"
	"github.com/morezero/chat-worker/pkg/commsutil"
	"github.com/morezero/chat-worker/pkg/db"
	"github.com/morezero/chat-worker/pkg/dispatcher"
	"github.com/morezero/chat-worker/pkg/events"
)

const logPrefix = "server:server"

const (
	shutdownTimeout    = 10 * time.Second
	journalPrunePeriod = time.Hour
)

// JournalStore is the subset of db.Journal the server uses.
type JournalStore interface {
	Record(ctx context.Context, entry *db.JournalEntry) error
	Recent(ctx context.Context, limit int) ([]db.JournalEntry, error)
	Summary(ctx context.Context, since time.Time) ([]db.ActionSummary, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Ping(ctx context.Context) error
}

// Options carries the server's collaborators. Nil Journal disables the journal; nil
// Publisher disables dispatch events.
type Options struct {
	Dispatcher *dispatcher.Dispatcher
	Conn       *comms.Conn
	Journal    JournalStore
	Publisher  events.EventPublisher
}

// Server is the chat-worker orchestrator.
type Server struct {
	cfg       *config.Config
	disp      *dispatcher.Dispatcher
	nc        *comms.Conn
	journal   JournalStore
	publisher events.EventPublisher
	stats     *actionStats
	started   time.Time
	ready     atomic.Bool
}

// New creates a Server. A nil opts.Dispatcher gets the default action set.
func New(cfg *config.Config, opts Options) *Server {
	disp := opts.Dispatcher
	if disp == nil {
		disp = dispatcher.NewDispatcher()
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.NoOpPublisher{}
	}
	return &Server{
		cfg:       cfg,
		disp:      disp,
		nc:        opts.Conn,
		journal:   opts.Journal,
		publisher: publisher,
		stats:     newActionStats(),
		started:   time.Now(),
	}
}

// Run loads configuration, connects to COMMS (and the database when configured), serves
// until SIGINT/SIGTERM, then shuts down.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	slog.Info(fmt.Sprintf("%s - Starting chat-worker", logPrefix))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
	}
	defer commsutil.Drain(nc, shutdownTimeout)

	opts := Options{
		Dispatcher: dispatcher.NewDispatcher(),
		Conn:       nc,
		Publisher:  events.NewCommsPublisher(nc, &events.CommsPublisherOpts{EventSubject: cfg.EventSubject}),
	}

	if cfg.JournalEnabled() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
		}
		defer pool.Close()

		if cfg.RunMigrations {
			migrations, err := db.LoadMigrations(cfg.MigrationPath)
			if err != nil {
				return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
			}
			if _, err := db.RunMigrations(ctx, pool, migrations); err != nil {
				return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
			}
		}
		opts.Journal = db.NewJournal(pool)
	} else {
		slog.Info(fmt.Sprintf("%s - DATABASE_URL not set, dispatch journal disabled", logPrefix))
	}

	s := New(cfg, opts)
	if _, err := s.Subscribe(); err != nil {
		return err
	}

	err = s.Serve(ctx)
	// Drain before the deferred pool.Close so in-flight requests can still be journaled.
	commsutil.Drain(nc, shutdownTimeout)
	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return err
}

// Serve runs the HTTP server (and journal pruning, when enabled) until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.ListenAddr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s - HTTP server error: %w", logPrefix, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info(fmt.Sprintf("%s - Shutting down HTTP server", logPrefix))
		s.ready.Store(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	if s.journal != nil && s.cfg.JournalRetention > 0 {
		g.Go(func() error {
			s.pruneLoop(gctx)
			return nil
		})
	}

	slog.Info(fmt.Sprintf("%s - chat-worker is ready", logPrefix))
	return g.Wait()
}

// pruneLoop deletes journal entries older than the retention window, once at start and
// then every journalPrunePeriod.
func (s *Server) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(journalPrunePeriod)
	defer ticker.Stop()
	for {
		if _, err := s.journal.Prune(ctx, time.Now().Add(-s.cfg.JournalRetention)); err != nil && ctx.Err() == nil {
			slog.Warn(fmt.Sprintf("%s - journal prune failed: %v", logPrefix, err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
