package worker_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"infiya.app/relay/internal/model"
	"infiya.app/relay/internal/queue"
	"infiya.app/relay/internal/relay"
)

// fakeLog behaves like a consumer group: each entry is handed to one reader
// and stays in the pending list, with its delivery time, until acknowledged.
type fakeLog struct {
	mu        sync.Mutex
	entries   []queue.Entry
	pending   []pendingEntry
	readErr   error
	groupErr  error
	acked     []string
	dead      []string
	deadErr   error
	batchSize int
}

type pendingEntry struct {
	entry     queue.Entry
	delivered time.Time
}

func (f *fakeLog) add(entries ...queue.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entries...)
}

// deliver marks entries as read but unacknowledged, idle for the given duration.
func (f *fakeLog) deliver(idle time.Duration, entries ...queue.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		f.pending = append(f.pending, pendingEntry{entry: e, delivered: time.Now().Add(-idle)})
	}
}

func (f *fakeLog) EnsureGroup(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groupErr
}

func (f *fakeLog) Reclaim(_ context.Context, _ string, minIdle time.Duration) ([]queue.Entry, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var out []queue.Entry
	for i := range f.pending {
		if now.Sub(f.pending[i].delivered) >= minIdle {
			f.pending[i].delivered = now
			out = append(out, f.pending[i].entry)
		}
	}
	return out, "0-0", nil
}

func (f *fakeLog) Read(ctx context.Context) ([]queue.Entry, error) {
	f.mu.Lock()
	if f.readErr != nil {
		err := f.readErr
		f.mu.Unlock()
		return nil, err
	}
	if len(f.entries) > 0 {
		n := len(f.entries)
		if f.batchSize > 0 && n > f.batchSize {
			n = f.batchSize
		}
		batch := f.entries[:n]
		f.entries = f.entries[n:]
		now := time.Now()
		for _, e := range batch {
			f.pending = append(f.pending, pendingEntry{entry: e, delivered: now})
		}
		f.mu.Unlock()
		return batch, nil
	}
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, nil
	}
}

func (f *fakeLog) Ack(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ack(id)
	return nil
}

func (f *fakeLog) ack(id string) {
	f.acked = append(f.acked, id)
	for i, p := range f.pending {
		if p.entry.ID == id {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return
		}
	}
}

func (f *fakeLog) DeadLetter(_ context.Context, e queue.Entry, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deadErr != nil {
		return f.deadErr
	}
	f.dead = append(f.dead, e.ID)
	f.ack(e.ID)
	return nil
}

func (f *fakeLog) ackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

func (f *fakeLog) pendingIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, p := range f.pending {
		out = append(out, p.entry.ID)
	}
	return out
}

// quietLog shares a fakeLog's pending list but never wins a read, so the
// other consumer of the user deterministically gets every new batch.
type quietLog struct {
	*fakeLog
}

func (q quietLog) Read(ctx context.Context) ([]queue.Entry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return nil, nil
	}
}

func (f *fakeLog) deadIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dead...)
}

type fakePublisher struct {
	mu     sync.Mutex
	frames []relay.Frame
}

func (p *fakePublisher) Publish(_ context.Context, _ string, f relay.Frame) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, f)
	return true
}

func (p *fakePublisher) all() []relay.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]relay.Frame(nil), p.frames...)
}

func (p *fakePublisher) types() []relay.FrameType {
	var out []relay.FrameType
	for _, f := range p.all() {
		out = append(out, f.Type)
	}
	return out
}

type mockStats struct {
	mu        sync.Mutex
	calls     []string
	resolveFn func(ctx context.Context, workflowID string) (*model.WorkflowStats, error)
}

func (m *mockStats) Resolve(ctx context.Context, workflowID string) (*model.WorkflowStats, error) {
	m.mu.Lock()
	m.calls = append(m.calls, workflowID)
	m.mu.Unlock()
	if m.resolveFn != nil {
		return m.resolveFn(ctx, workflowID)
	}
	return nil, nil
}

func (m *mockStats) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type appended struct {
	userID, workflowID, text string
	stats                    *model.WorkflowStats
}

type mockFinalizer struct {
	mu    sync.Mutex
	calls []appended
	err   error
}

func (m *mockFinalizer) AppendAssistantMessage(_ context.Context, userID, workflowID, text string, stats *model.WorkflowStats) (*model.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, appended{userID, workflowID, text, stats})
	if m.err != nil {
		return nil, m.err
	}
	return &model.ChatMessage{ID: int64(len(m.calls)), Role: model.RoleAssistant, Content: text}, nil
}

func (m *mockFinalizer) all() []appended {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]appended(nil), m.calls...)
}

var errRedisDown = errors.New("redis: connection refused")

func entry(id, workflowID, agent, status, msg string) queue.Entry {
	return queue.Entry{
		ID: id,
		Event: model.ProgressEvent{
			EntryID:    id,
			WorkflowID: workflowID,
			Type:       "agent_update",
			AgentName:  agent,
			Status:     status,
			Message:    msg,
		},
	}
}
