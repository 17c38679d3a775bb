package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"infiya.app/relay/common/logger"
	"infiya.app/relay/core/config"
	"infiya.app/relay/internal/model"
	"infiya.app/relay/internal/queue"
	"infiya.app/relay/internal/relay"
)

const (
	readFailureReason = "Lost connection to workflow updates"
	timeoutReason     = "Timed out waiting for workflow updates"
)

// consumer follows one workflow on its user's durable log:
// started -> polling -> terminal -> stopped, or polling -> stopped when
// reads keep failing or the workflow outlives its maximum lifetime.
type consumer struct {
	sup        *Supervisor
	userID     string
	workflowID string
	log        EventLog
	link       trace.Link

	failures int
	backoff  *backoff.ExponentialBackOff
}

func (c *consumer) run(ctx context.Context) {
	ctx, cancel := context.WithTimeoutCause(ctx, c.sup.cfg.WorkflowTimeout, errWorkflowTimeout)
	defer cancel()

	sc := logger.StartSpan(ctx, "worker.consume_workflow",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithNewRoot(),
		trace.WithLinks(c.link))
	defer sc.End()
	ctx = sc.Context()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.sup.cfg.RetryInitial
	b.MaxInterval = c.sup.cfg.RetryMax
	c.backoff = b

	start := time.Now()
	slog.InfoContext(ctx, "workflow consumer started")

	outcome := c.loop(ctx)

	sc.SetAttributes(attribute.String("workflow.outcome", outcome))
	slog.InfoContext(ctx, "workflow consumer stopped",
		"outcome", outcome,
		"duration_ms", time.Since(start).Milliseconds())
}

func (c *consumer) loop(ctx context.Context) string {
	for {
		err := c.log.EnsureGroup(ctx)
		if err == nil {
			break
		}
		if outcome, stop := c.readFailed(ctx, fmt.Errorf("ensuring group: %w", err)); stop {
			return outcome
		}
	}

	if c.reclaim(ctx) {
		return "terminal"
	}
	lastSweep := time.Now()

	for {
		if ctx.Err() != nil {
			return c.cancelled(ctx)
		}

		if time.Since(lastSweep) >= c.sup.cfg.ReclaimInterval {
			lastSweep = time.Now()
			if c.reclaim(ctx) {
				return "terminal"
			}
		}

		entries, err := c.log.Read(ctx)
		if err != nil {
			if outcome, stop := c.readFailed(ctx, err); stop {
				return outcome
			}
			continue
		}
		c.failures = 0
		c.backoff.Reset()

		if c.handleBatch(ctx, entries) {
			return "terminal"
		}
	}
}

// handleBatch processes every entry of a batch, also past this workflow's
// terminal entry: the consumer name is shared by all workflows of the user,
// so the rest of the batch may be a sibling's and nobody else will read it.
// Entries skipped on cancellation stay pending for the reclaim sweep.
func (c *consumer) handleBatch(ctx context.Context, entries []queue.Entry) bool {
	done := false
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		if c.handle(ctx, e) {
			done = true
		}
	}
	return done
}

// reclaim takes over entries left unacknowledged for at least ReclaimMinIdle,
// whoever read them: a consumer cancelled mid-batch or a process that died
// before acking. Entries a live sibling is still handling are younger and
// left alone.
func (c *consumer) reclaim(ctx context.Context) bool {
	cursor := "0-0"
	for range c.sup.cfg.ReclaimRounds {
		entries, next, err := c.log.Reclaim(ctx, cursor, c.sup.cfg.ReclaimMinIdle)
		if err != nil {
			slog.WarnContext(ctx, "reclaiming stale entries failed", "error", err)
			return false
		}
		if len(entries) > 0 {
			slog.InfoContext(ctx, "recovering unacknowledged entries", "count", len(entries))
		}
		if c.handleBatch(ctx, entries) {
			return true
		}
		if next == "" || next == "0-0" {
			return false
		}
		cursor = next
	}
	return false
}

// readFailed accounts a failed read and waits out the backoff.
// It reports stop=true once the consumer must give up.
func (c *consumer) readFailed(ctx context.Context, err error) (string, bool) {
	if ctx.Err() != nil {
		return c.cancelled(ctx), true
	}

	c.failures++
	slog.WarnContext(ctx, "reading workflow updates failed",
		"error", err,
		"consecutive_failures", c.failures,
		"max_failures", c.sup.cfg.MaxReadFailures)

	if c.failures >= c.sup.cfg.MaxReadFailures {
		slog.ErrorContext(ctx, "giving up on workflow updates", "error", err)
		c.sup.publisher.Publish(ctx, c.userID, relay.PollingError(c.workflowID, readFailureReason))
		return "read_failures", true
	}

	timer := time.NewTimer(c.backoff.NextBackOff())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return c.cancelled(ctx), true
	case <-timer.C:
		return "", false
	}
}

func (c *consumer) cancelled(ctx context.Context) string {
	switch cause := context.Cause(ctx); {
	case errors.Is(cause, errWorkflowTimeout):
		slog.WarnContext(ctx, "workflow did not finish within its lifetime",
			"timeout", c.sup.cfg.WorkflowTimeout)
		// ctx is done, publish on a detached one.
		c.sup.publisher.Publish(context.WithoutCancel(ctx), c.userID, relay.PollingError(c.workflowID, timeoutReason))
		return "timeout"
	case errors.Is(cause, errFinalizedElsewhere):
		return "finalized_elsewhere"
	case errors.Is(cause, errAbandoned):
		return "abandoned"
	default:
		return "shutdown"
	}
}

// handle processes one entry: translate, enrich, publish, ack, then persist.
// It reports whether this consumer's own workflow reached a terminal state.
func (c *consumer) handle(ctx context.Context, e queue.Entry) bool {
	ctx = logger.WithLogFields(ctx, logger.LogFields{EntryID: logger.Ptr(e.ID)})

	if e.Err != nil {
		c.handleMalformed(ctx, e)
		return false
	}

	ev := e.Event
	frame, terr := relay.Translate(ev)
	switch {
	case errors.Is(terr, relay.ErrNotClientRelevant):
		slog.DebugContext(ctx, "skipping event", "agent_name", ev.AgentName)
	case errors.Is(terr, relay.ErrIncompleteEvent):
		slog.WarnContext(ctx, "dropping incomplete event",
			"agent_name", ev.AgentName,
			"status", ev.Status,
			"event_workflow_id", ev.WorkflowID)
	}

	terminal := ev.IsTerminal()
	finalize := terminal && c.sup.Claim(ev.WorkflowID)

	var stats *model.WorkflowStats
	if finalize && ev.Kind() == model.StageCompleted {
		stats = c.resolveStats(ctx, ev.WorkflowID)
		frame.WorkflowStats = stats
	}

	switch {
	case terminal && !finalize:
		slog.InfoContext(ctx, "terminal event already finalized, not republished",
			"event_workflow_id", ev.WorkflowID)
	case !terminal && c.sup.finished(ev.WorkflowID):
		slog.DebugContext(ctx, "update for a finished workflow, not forwarded",
			"event_workflow_id", ev.WorkflowID)
	case terr == nil:
		c.sup.publisher.Publish(ctx, c.userID, frame)
	}

	// Only acknowledged after local processing so a crash leaves it pending.
	if err := c.log.Ack(ctx, e.ID); err != nil {
		slog.ErrorContext(ctx, "acknowledging entry failed", "error", err)
	}

	if finalize {
		c.finalize(ctx, ev, stats)
		if ev.WorkflowID != c.workflowID {
			c.sup.release(ev.WorkflowID)
		}
	}

	return terminal && ev.WorkflowID == c.workflowID
}

func (c *consumer) handleMalformed(ctx context.Context, e queue.Entry) {
	slog.WarnContext(ctx, "malformed entry",
		"error", e.Err,
		"policy", c.sup.cfg.MalformedPolicy)

	if c.sup.cfg.MalformedPolicy == config.MalformedPolicyDeadLetter {
		err := c.log.DeadLetter(ctx, e, e.Err.Error())
		if err == nil {
			return
		}
		slog.ErrorContext(ctx, "dead-lettering entry failed, acknowledging instead", "error", err)
	}

	if err := c.log.Ack(ctx, e.ID); err != nil {
		slog.ErrorContext(ctx, "acknowledging malformed entry failed", "error", err)
	}
}

func (c *consumer) resolveStats(ctx context.Context, workflowID string) *model.WorkflowStats {
	stats, err := c.sup.stats.Resolve(ctx, workflowID)
	if err != nil {
		slog.WarnContext(ctx, "resolving workflow stats failed, continuing without",
			"error", err,
			"event_workflow_id", workflowID)
		return nil
	}
	return stats
}

func (c *consumer) finalize(ctx context.Context, ev model.ProgressEvent, stats *model.WorkflowStats) {
	if ev.Kind() != model.StageCompleted {
		slog.InfoContext(ctx, "workflow failed",
			"event_workflow_id", ev.WorkflowID,
			"reason", logger.Truncate(ev.Message, 200))
		return
	}

	text := relay.FinalResponse(ev)
	if text == "" {
		slog.InfoContext(ctx, "workflow completed without answer text, nothing persisted",
			"event_workflow_id", ev.WorkflowID)
		return
	}

	msg, err := c.sup.finalizer.AppendAssistantMessage(ctx, c.userID, ev.WorkflowID, text, stats)
	if err != nil {
		slog.ErrorContext(ctx, "persisting assistant message failed",
			"error", err,
			"event_workflow_id", ev.WorkflowID)
		return
	}

	slog.InfoContext(ctx, "workflow completed",
		"event_workflow_id", ev.WorkflowID,
		"message_id", msg.ID,
		"has_stats", stats != nil)
}
