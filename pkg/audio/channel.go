package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// defaultQueueDepth is the default capacity of the frame queue: ~3 s of audio
// at 30 ms per frame, enough to absorb a slow consumer during a provider call.
const defaultQueueDepth = 100

var (
	// ErrReadTimeout is returned by [Channel.Read] when no frame arrives
	// within the timeout.
	ErrReadTimeout = errors.New("audio: read timed out")

	// ErrChannelClosed is returned by [Channel.Read] after [Channel.Stop]
	// once the queue is drained.
	ErrChannelClosed = errors.New("audio: channel is closed")
)

// Channel owns the microphone device and exposes its frames as a bounded,
// backpressured queue. The device callback never blocks: when the queue is
// full the oldest frame is dropped so the stream continues with an isolated
// gap rather than stalling the capture schedule.
//
// Channel is safe for concurrent use, but by construction only one consumer
// goroutine calls Read.
type Channel struct {
	dev Device

	frames  chan Frame
	dropped atomic.Int64
	onDrop  func()

	mu      sync.Mutex
	started bool
	done    chan struct{}
}

// ChannelOption configures a [Channel] during construction.
type ChannelOption func(*Channel)

// WithQueueDepth sets the capacity of the frame queue. Default is 100 frames.
func WithQueueDepth(n int) ChannelOption {
	return func(c *Channel) {
		if n > 0 {
			c.frames = make(chan Frame, n)
		}
	}
}

// WithDropHook registers fn to be called whenever a frame is dropped on
// overflow. Used to feed the frames-dropped metric.
func WithDropHook(fn func()) ChannelOption {
	return func(c *Channel) { c.onDrop = fn }
}

// NewChannel creates a Channel over dev. The capture device is not opened
// until [Channel.Start] is called.
func NewChannel(dev Device, opts ...ChannelOption) *Channel {
	c := &Channel{
		dev:    dev,
		frames: make(chan Frame, defaultQueueDepth),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start opens the capture device and begins queueing frames. Calling Start
// on an already-started channel is an error.
func (c *Channel) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.New("audio: channel already started")
	}
	if err := c.dev.Start(c.push); err != nil {
		return fmt.Errorf("audio: open capture device: %w", err)
	}
	c.started = true
	return nil
}

// push is the device callback. It must never block: on overflow it evicts
// the oldest queued frame and retries once.
func (c *Channel) push(f Frame) {
	select {
	case c.frames <- f:
		return
	default:
	}
	select {
	case <-c.frames:
		c.dropped.Add(1)
		if c.onDrop != nil {
			c.onDrop()
		}
	default:
	}
	select {
	case c.frames <- f:
	default:
	}
}

// Read returns the next captured frame, blocking up to timeout. Returns
// [ErrReadTimeout] if no frame arrives in time and [ErrChannelClosed] once
// the channel is stopped and drained.
func (c *Channel) Read(timeout time.Duration) (Frame, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case f := <-c.frames:
		return f, nil
	case <-c.done:
		// Drain anything queued before the stop.
		select {
		case f := <-c.frames:
			return f, nil
		default:
			return Frame{}, ErrChannelClosed
		}
	case <-t.C:
		return Frame{}, ErrReadTimeout
	}
}

// Dropped reports the total number of frames evicted on overflow.
func (c *Channel) Dropped() int64 {
	return c.dropped.Load()
}

// Stop closes the capture device. Queued frames remain readable until
// drained; subsequent reads return [ErrChannelClosed]. Safe to call more
// than once.
func (c *Channel) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	c.started = false
	err := c.dev.Stop()
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	if err != nil {
		return fmt.Errorf("audio: close capture device: %w", err)
	}
	return nil
}
