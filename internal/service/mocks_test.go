package service_test

import (
	"context"
	"sync"

	"infiya.app/relay/internal/model"
	"infiya.app/relay/internal/pipeline"
	"infiya.app/relay/internal/relay"
	"infiya.app/relay/internal/service"
	"infiya.app/relay/internal/store"
)

type mockChatStore struct {
	appendFn  func(ctx context.Context, msg *model.ChatMessage) error
	historyFn func(ctx context.Context, userID string, limit *int) ([]model.ChatMessage, error)
	clearFn   func(ctx context.Context, userID string) (int64, error)
	statsFn   func(ctx context.Context, userID string) (*model.ChatStats, error)
}

func (m *mockChatStore) Append(ctx context.Context, msg *model.ChatMessage) error {
	if m.appendFn != nil {
		return m.appendFn(ctx, msg)
	}
	return nil
}

func (m *mockChatStore) History(ctx context.Context, userID string, limit *int) ([]model.ChatMessage, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, userID, limit)
	}
	return nil, nil
}

func (m *mockChatStore) Clear(ctx context.Context, userID string) (int64, error) {
	if m.clearFn != nil {
		return m.clearFn(ctx, userID)
	}
	return 0, nil
}

func (m *mockChatStore) Stats(ctx context.Context, userID string) (*model.ChatStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, userID)
	}
	return &model.ChatStats{}, nil
}

// memoryChatStore keeps messages in append order.
type memoryChatStore struct {
	mu   sync.Mutex
	msgs []model.ChatMessage
}

func (m *memoryChatStore) Append(_ context.Context, msg *model.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, *msg)
	return nil
}

func (m *memoryChatStore) History(_ context.Context, userID string, limit *int) ([]model.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ChatMessage
	for _, msg := range m.msgs {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	if limit != nil && len(out) > *limit {
		out = out[len(out)-*limit:]
	}
	return out, nil
}

func (m *memoryChatStore) Clear(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.msgs[:0]
	var n int64
	for _, msg := range m.msgs {
		if msg.UserID == userID {
			n++
			continue
		}
		kept = append(kept, msg)
	}
	m.msgs = kept
	return n, nil
}

func (m *memoryChatStore) Stats(_ context.Context, _ string) (*model.ChatStats, error) {
	return &model.ChatStats{}, nil
}

type mockPreferencesStore struct {
	getFn func(ctx context.Context, userID string) (*model.Preferences, error)
}

func (m *mockPreferencesStore) Get(ctx context.Context, userID string) (*model.Preferences, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return nil, store.ErrNotFound
}

type mockStoreProvider struct {
	chat  store.ChatStore
	prefs store.PreferencesStore
}

func (m *mockStoreProvider) Chat() store.ChatStore               { return m.chat }
func (m *mockStoreProvider) Preferences() store.PreferencesStore { return m.prefs }

type mockTxRunner struct {
	stores service.StoreProvider
}

func (m *mockTxRunner) WithTx(_ context.Context, fn func(stores service.StoreProvider) error) error {
	return fn(m.stores)
}

type mockPublisher struct {
	mu     sync.Mutex
	frames []relay.Frame
}

func (m *mockPublisher) Publish(_ context.Context, _ string, f relay.Frame) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, f)
	return true
}

func (m *mockPublisher) all() []relay.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]relay.Frame(nil), m.frames...)
}

type mockStarter struct {
	mu        sync.Mutex
	startFn   func(ctx context.Context, userID, workflowID string) error
	started   []string
	abandoned []string
}

func (m *mockStarter) Start(ctx context.Context, userID, workflowID string) error {
	m.mu.Lock()
	m.started = append(m.started, workflowID)
	m.mu.Unlock()
	if m.startFn != nil {
		return m.startFn(ctx, userID, workflowID)
	}
	return nil
}

func (m *mockStarter) Abandon(workflowID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abandoned = append(m.abandoned, workflowID)
}

func (m *mockStarter) abandonedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.abandoned...)
}

type mockSubmitter struct {
	mu       sync.Mutex
	submitFn func(ctx context.Context, req pipeline.SubmitRequest) error
	requests []pipeline.SubmitRequest
}

func (m *mockSubmitter) Submit(ctx context.Context, req pipeline.SubmitRequest) error {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.submitFn != nil {
		return m.submitFn(ctx, req)
	}
	return nil
}

func (m *mockSubmitter) all() []pipeline.SubmitRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pipeline.SubmitRequest(nil), m.requests...)
}
