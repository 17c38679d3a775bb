package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"infiya.app/relay/common/logger"
	"infiya.app/relay/core/config"
)

var (
	ErrShuttingDown = errors.New("supervisor shutting down")

	errFinalizedElsewhere = errors.New("workflow finalized by another consumer")
	errAbandoned          = errors.New("workflow abandoned")
	errWorkflowTimeout    = errors.New("workflow exceeded its maximum lifetime")
)

type Config struct {
	MaxReadFailures int
	WorkflowTimeout time.Duration
	MalformedPolicy string
	RetryInitial    time.Duration // first backoff after a failed read
	RetryMax        time.Duration
	ReclaimMinIdle  time.Duration // idle time after which an unacked entry is taken over
	ReclaimInterval time.Duration
	ReclaimRounds   int // max pages per reclaim sweep
}

func ConfigFrom(c config.RelayConfig) Config {
	return Config{
		MaxReadFailures: c.MaxReadFailures,
		WorkflowTimeout: c.WorkflowTimeout,
		MalformedPolicy: c.MalformedPolicy,
		RetryInitial:    500 * time.Millisecond,
		RetryMax:        10 * time.Second,
		ReclaimMinIdle:  c.ReclaimMinIdle,
		ReclaimInterval: c.ReclaimInterval,
		ReclaimRounds:   10,
	}
}

type run struct {
	userID string
	cancel context.CancelCauseFunc
}

// Supervisor owns the per-workflow consumers. It guarantees a workflow is
// finalized at most once even when several consumers of one user share the
// group and any of them may read the terminal entry.
type Supervisor struct {
	newLog    LogFactory
	publisher Publisher
	stats     StatsResolver
	finalizer Finalizer
	cfg       Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	running   map[string]*run
	finalized map[string]time.Time
}

func NewSupervisor(newLog LogFactory, publisher Publisher, stats StatsResolver, finalizer Finalizer, cfg Config) *Supervisor {
	if cfg.MaxReadFailures <= 0 {
		cfg.MaxReadFailures = 5
	}
	if cfg.WorkflowTimeout <= 0 {
		cfg.WorkflowTimeout = 10 * time.Minute
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = 500 * time.Millisecond
	}
	if cfg.RetryMax < cfg.RetryInitial {
		cfg.RetryMax = cfg.RetryInitial
	}
	if cfg.ReclaimMinIdle <= 0 {
		cfg.ReclaimMinIdle = 30 * time.Second
	}
	if cfg.ReclaimInterval <= 0 {
		cfg.ReclaimInterval = 15 * time.Second
	}
	if cfg.ReclaimRounds <= 0 {
		cfg.ReclaimRounds = 10
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		newLog:    newLog,
		publisher: publisher,
		stats:     stats,
		finalizer: finalizer,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		running:   make(map[string]*run),
		finalized: make(map[string]time.Time),
	}
}

// Start launches a consumer for workflowID. The consumer outlives ctx; only its
// log fields and trace link are carried over. Starting a running workflow is a no-op.
func (s *Supervisor) Start(ctx context.Context, userID, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrShuttingDown
	}
	if _, ok := s.running[workflowID]; ok {
		return nil
	}

	runCtx := logger.WithLogFields(s.ctx, logger.GetLogFields(ctx))
	runCtx = logger.WithLogFields(runCtx, logger.LogFields{
		UserID:     logger.Ptr(userID),
		WorkflowID: logger.Ptr(workflowID),
		Component:  "relay.worker.consumer",
	})
	runCtx, cancel := context.WithCancelCause(runCtx)

	r := &run{userID: userID, cancel: cancel}
	s.running[workflowID] = r

	c := &consumer{
		sup:        s,
		userID:     userID,
		workflowID: workflowID,
		log:        s.newLog(userID),
		link:       trace.LinkFromContext(ctx),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.remove(workflowID, r)
		c.run(runCtx)
	}()

	return nil
}

// Claim reports whether the caller is the first to finalize workflowID.
func (s *Supervisor) Claim(workflowID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, at := range s.finalized {
		if now.Sub(at) > s.cfg.WorkflowTimeout {
			delete(s.finalized, id)
		}
	}

	if _, done := s.finalized[workflowID]; done {
		return false
	}
	s.finalized[workflowID] = now
	return true
}

// finished reports whether workflowID was already finalized.
func (s *Supervisor) finished(workflowID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, done := s.finalized[workflowID]
	return done
}

// release stops the consumer of a workflow that another consumer finalized.
func (s *Supervisor) release(workflowID string) {
	s.mu.Lock()
	r, ok := s.running[workflowID]
	s.mu.Unlock()

	if ok {
		r.cancel(errFinalizedElsewhere)
	}
}

// Abandon stops the consumer of a workflow that will never produce updates,
// e.g. because the pipeline rejected it.
func (s *Supervisor) Abandon(workflowID string) {
	s.mu.Lock()
	r, ok := s.running[workflowID]
	s.mu.Unlock()

	if ok {
		r.cancel(errAbandoned)
	}
}

func (s *Supervisor) remove(workflowID string, r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[workflowID] == r {
		delete(s.running, workflowID)
	}
}

// Running returns the number of live consumers.
func (s *Supervisor) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// Shutdown stops every consumer and waits for them to exit or ctx to end.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	n := len(s.running)
	s.mu.Unlock()

	slog.InfoContext(ctx, "stopping workflow consumers", "running", n)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
