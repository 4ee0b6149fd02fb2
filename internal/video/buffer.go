package video

import (
	"context"
	"sync"

	"github.com/framepulse/framepulse-core/internal/imaging"
	"github.com/framepulse/framepulse-core/internal/metrics"
	"github.com/framepulse/framepulse-core/internal/models"
)

// FrameBuffer is the bounded queue between the sampling producer and the
// detection workers. A full buffer blocks the producer, which in turn
// back-pressures the decoder.
type FrameBuffer struct {
	ch            chan *imaging.Frame
	maxFrameBytes int
	name          string

	mu     sync.Mutex
	closed bool
}

// NewFrameBuffer sizes the queue at max(8, 2*workers). maxFrameBytes caps
// the size of a single frame; 0 disables the check.
func NewFrameBuffer(workers, maxFrameBytes int, name string) *FrameBuffer {
	capacity := 2 * workers
	if capacity < 8 {
		capacity = 8
	}
	return &FrameBuffer{
		ch:            make(chan *imaging.Frame, capacity),
		maxFrameBytes: maxFrameBytes,
		name:          name,
	}
}

// Cap returns the configured capacity.
func (b *FrameBuffer) Cap() int { return cap(b.ch) }

// Len returns the current queue depth.
func (b *FrameBuffer) Len() int { return len(b.ch) }

// Push blocks until space is available or ctx is done.
func (b *FrameBuffer) Push(ctx context.Context, f *imaging.Frame) error {
	if b.maxFrameBytes > 0 && f.Bytes() > b.maxFrameBytes {
		return models.E(models.KindResourceExhausted, "video.FrameBuffer.Push", "frame exceeds memory ceiling")
	}
	select {
	case b.ch <- f:
		metrics.FrameBufferDepth.WithLabelValues(b.name).Set(float64(len(b.ch)))
		return nil
	case <-ctx.Done():
		return models.E(models.KindTimeout, "video.FrameBuffer.Push", ctx.Err())
	}
}

// Pop returns the next frame. A nil frame with nil error means the buffer
// was closed and drained.
func (b *FrameBuffer) Pop(ctx context.Context) (*imaging.Frame, error) {
	select {
	case f, ok := <-b.ch:
		if !ok {
			return nil, nil
		}
		metrics.FrameBufferDepth.WithLabelValues(b.name).Set(float64(len(b.ch)))
		return f, nil
	case <-ctx.Done():
		return nil, models.E(models.KindTimeout, "video.FrameBuffer.Pop", ctx.Err())
	}
}

// Close stops accepting frames. Safe to call more than once.
func (b *FrameBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
}
