package relay

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrIdle is returned by Next when no frame arrived within the timeout.
	ErrIdle = errors.New("no frame within timeout")
	// ErrChannelClosed is returned once the channel was replaced or unregistered.
	ErrChannelClosed = errors.New("channel closed")
)

// Channel is a bounded FIFO of frames for one connected session.
// When full, the oldest frame is dropped to make room.
type Channel struct {
	identity string
	capacity int

	mu      sync.Mutex
	frames  []Frame
	closed  bool
	dropped uint64

	notify chan struct{}
	done   chan struct{}
}

func newChannel(identity string, capacity int) *Channel {
	return &Channel{
		identity: identity,
		capacity: capacity,
		frames:   make([]Frame, 0, capacity),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (c *Channel) Identity() string {
	return c.identity
}

// Dropped reports how many frames were discarded due to overflow.
func (c *Channel) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// push enqueues f and reports whether an older frame had to be dropped.
// Pushing to a closed channel is a no-op.
func (c *Channel) push(f Frame) (dropped bool, ok bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, false
	}
	if len(c.frames) >= c.capacity {
		copy(c.frames, c.frames[1:])
		c.frames[len(c.frames)-1] = f
		c.dropped++
		dropped = true
	} else {
		c.frames = append(c.frames, f)
	}
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return dropped, true
}

// Next blocks until a frame is available, the timeout elapses (ErrIdle),
// the channel is closed (ErrChannelClosed) or ctx is done.
func (c *Channel) Next(ctx context.Context, timeout time.Duration) (Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return Frame{}, ErrChannelClosed
		}
		if len(c.frames) > 0 {
			f := c.frames[0]
			copy(c.frames, c.frames[1:])
			c.frames[len(c.frames)-1] = Frame{}
			c.frames = c.frames[:len(c.frames)-1]
			c.mu.Unlock()
			return f, nil
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-c.done:
			return Frame{}, ErrChannelClosed
		case <-timer.C:
			return Frame{}, ErrIdle
		case <-c.notify:
		}
	}
}

// close abandons any queued frames. Safe to call more than once.
func (c *Channel) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.frames = nil
	close(c.done)
}
