package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"

	"infiya.app/relay/common/logger"
)

const shardCount = 32

// Registry maps a user identity to its single live delivery channel.
// Each identity hashes to a shard with its own lock, so publishes for
// different users do not contend.
type Registry struct {
	capacity int
	shards   [shardCount]shard
}

type shard struct {
	mu       sync.Mutex
	channels map[string]*Channel
}

func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = 256
	}
	r := &Registry{capacity: capacity}
	for i := range r.shards {
		r.shards[i].channels = make(map[string]*Channel)
	}
	return r
}

func (r *Registry) shardFor(identity string) *shard {
	return &r.shards[xxhash.Sum64String(identity)%shardCount]
}

// Register creates a fresh channel for identity. A previous channel is closed
// and its undelivered frames are abandoned.
func (r *Registry) Register(identity string) *Channel {
	ch := newChannel(identity, r.capacity)

	s := r.shardFor(identity)
	s.mu.Lock()
	prev := s.channels[identity]
	s.channels[identity] = ch
	s.mu.Unlock()

	if prev != nil {
		prev.close()
	}
	return ch
}

// Unregister removes whatever channel identity currently has.
func (r *Registry) Unregister(identity string) {
	s := r.shardFor(identity)
	s.mu.Lock()
	ch := s.channels[identity]
	delete(s.channels, identity)
	s.mu.Unlock()

	if ch != nil {
		ch.close()
	}
}

// Detach removes ch only if it is still the current channel for its identity.
// A superseded session calling Detach leaves its successor untouched.
func (r *Registry) Detach(ch *Channel) {
	s := r.shardFor(ch.identity)
	s.mu.Lock()
	if s.channels[ch.identity] == ch {
		delete(s.channels, ch.identity)
	}
	s.mu.Unlock()

	ch.close()
}

// Publish enqueues f on identity's channel. It never blocks on the client and
// reports false when nobody is connected.
func (r *Registry) Publish(ctx context.Context, identity string, f Frame) bool {
	s := r.shardFor(identity)
	s.mu.Lock()
	ch := s.channels[identity]
	var dropped, ok bool
	if ch != nil {
		dropped, ok = ch.push(f)
	}
	s.mu.Unlock()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    logger.Ptr(identity),
		Component: "relay.registry",
	})
	if !ok {
		slog.DebugContext(ctx, "no live channel for user, frame not delivered",
			"frame_type", f.Type)
		return false
	}
	if dropped {
		slog.WarnContext(ctx, "live channel full, dropped oldest frame",
			"frame_type", f.Type,
			"dropped_total", ch.Dropped())
	}
	return true
}

// Count returns the number of registered channels.
func (r *Registry) Count() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		n += len(s.channels)
		s.mu.Unlock()
	}
	return n
}
