package output

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep"
)

// Buffer is one chunk of interleaved PCM as pushed by the producer.
type Buffer []byte

// Sink consumes the buffers of one endpoint. Open is called once before the
// branch is linked, Write only from the branch worker, Close once after the
// branch has been unlinked.
type Sink interface {
	Open(format beep.Format) error
	Write(buf Buffer) error
	Close() error
}

// DiscardSink accepts and drops every buffer. It backs the drain endpoint.
type DiscardSink struct {
	written atomic.Uint64
}

func (s *DiscardSink) Open(beep.Format) error { return nil }

func (s *DiscardSink) Write(buf Buffer) error {
	s.written.Add(uint64(len(buf)))
	return nil
}

func (s *DiscardSink) Close() error { return nil }

// Written reports the bytes swallowed so far.
func (s *DiscardSink) Written() uint64 { return s.written.Load() }

var errSinkClosed = errors.New("output: sink closed")

// StreamerSink exposes an endpoint as a beep.Streamer. Buffers are decoded
// with the router format and handed out to whoever pulls the stream; while
// nothing is buffered the streamer plays silence. The oldest samples are
// discarded once MaxSamples are pending.
type StreamerSink struct {
	MaxSamples int

	mu      sync.Mutex
	format  beep.Format
	samples [][2]float64
	closed  bool
	opened  bool
	dropped uint64
}

const defaultStreamerSamples = 1 << 16

// NewStreamerSink returns a sink holding at most maxSamples decoded samples.
func NewStreamerSink(maxSamples int) *StreamerSink {
	return &StreamerSink{MaxSamples: maxSamples}
}

func (s *StreamerSink) Open(format beep.Format) error {
	if format.Width() <= 0 {
		return errors.New("output: invalid sink format")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.format = format
	s.opened = true
	return nil
}

func (s *StreamerSink) Write(buf Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.opened {
		return errSinkClosed
	}

	width := s.format.Width()
	for p := []byte(buf); len(p) >= width; {
		sample, n := s.format.DecodeSigned(p)
		s.samples = append(s.samples, sample)
		p = p[n:]
	}

	limit := s.MaxSamples
	if limit <= 0 {
		limit = defaultStreamerSamples
	}
	if over := len(s.samples) - limit; over > 0 {
		s.samples = append(s.samples[:0], s.samples[over:]...)
		s.dropped += uint64(over)
	}
	return nil
}

func (s *StreamerSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Stream implements beep.Streamer.
func (s *StreamerSink) Stream(samples [][2]float64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := copy(samples, s.samples)
	s.samples = s.samples[n:]
	if s.closed {
		return n, n > 0
	}
	for i := n; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (s *StreamerSink) Err() error { return nil }

// Pending reports decoded samples not yet streamed.
func (s *StreamerSink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

// Dropped reports samples discarded because the reader fell behind.
func (s *StreamerSink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

var _ beep.Streamer = (*StreamerSink)(nil)
