package output

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/smallnest/ringbuffer"
)

const frameHeader = 4

// branch is the per-endpoint leg of the fan-out: an input pad, a byte queue
// and a worker feeding the sink.
type branch struct {
	id     string
	sink   Sink
	input  *pad
	logger zerolog.Logger

	qmu   sync.Mutex
	queue *ringbuffer.RingBuffer
	wake  chan struct{}

	state   atomic.Int32
	dropped atomic.Uint64
	written atomic.Uint64
	errors  atomic.Uint64

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newBranch(id string, sink Sink, queueBytes int, logger zerolog.Logger) *branch {
	return &branch{
		id:     id,
		sink:   sink,
		input:  newPad(),
		logger: logger.With().Str("endpoint", id).Logger(),
		queue:  ringbuffer.New(queueBytes).SetBlocking(false),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (b *branch) start() {
	go b.run()
}

func (b *branch) setState(s State) {
	b.state.Store(int32(s))
	b.signal()
}

func (b *branch) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// enqueue copies buf into the branch queue unless the input pad is blocked.
// It never waits on the sink.
func (b *branch) enqueue(buf Buffer) {
	if !b.input.tryEnter() {
		return
	}
	defer b.input.leave()

	need := len(buf) + frameHeader
	b.qmu.Lock()
	if need > b.queue.Capacity() {
		b.qmu.Unlock()
		b.drop("oversized")
		return
	}
	for b.queue.Free() < need {
		if !b.discardOldest() {
			b.queue.Reset()
			break
		}
		b.drop("overflow")
	}
	var header [frameHeader]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(buf)))
	_, err := b.queue.Write(header[:])
	if err == nil {
		_, err = b.queue.Write(buf)
	}
	if err != nil {
		b.queue.Reset()
	}
	b.qmu.Unlock()

	if err != nil {
		b.drop("write")
		return
	}
	b.signal()
}

func (b *branch) drop(reason string) {
	b.dropped.Add(1)
	droppedBuffersTotal.WithLabelValues(reason).Inc()
}

// discardOldest removes one frame. Callers hold qmu.
func (b *branch) discardOldest() bool {
	size, ok := b.readHeader()
	if !ok {
		return false
	}
	if size == 0 {
		return true
	}
	skip := make([]byte, size)
	n, err := b.queue.Read(skip)
	return err == nil && n == size
}

func (b *branch) readHeader() (int, bool) {
	if b.queue.IsEmpty() {
		return 0, false
	}
	var header [frameHeader]byte
	n, err := b.queue.Read(header[:])
	if err != nil || n != frameHeader {
		return 0, false
	}
	return int(binary.LittleEndian.Uint32(header[:])), true
}

// dequeue pops the next frame.
func (b *branch) dequeue() (Buffer, bool) {
	b.qmu.Lock()
	defer b.qmu.Unlock()
	size, ok := b.readHeader()
	if !ok {
		return nil, false
	}
	buf := make(Buffer, size)
	if size == 0 {
		return buf, true
	}
	n, err := b.queue.Read(buf)
	if err != nil || n != size {
		b.queue.Reset()
		return nil, false
	}
	return buf, true
}

func (b *branch) flush() {
	b.qmu.Lock()
	b.queue.Reset()
	b.qmu.Unlock()
}

func (b *branch) queued() int {
	b.qmu.Lock()
	defer b.qmu.Unlock()
	return b.queue.Length()
}

func (b *branch) run() {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			return
		case <-b.wake:
		}

		switch State(b.state.Load()) {
		case StateStopped:
			b.flush()
		case StatePaused:
			// Keep queued buffers for when playback resumes.
		case StatePlaying:
			b.pump()
		}
	}
}

func (b *branch) pump() {
	for {
		select {
		case <-b.stop:
			return
		default:
		}
		if State(b.state.Load()) != StatePlaying {
			return
		}
		buf, ok := b.dequeue()
		if !ok {
			return
		}
		if err := b.sink.Write(buf); err != nil {
			if b.errors.Add(1) == 1 {
				b.logger.Warn().Err(err).Msg("sink write failed")
			}
			continue
		}
		b.written.Add(uint64(len(buf)))
	}
}

// shutdown stops the worker and closes the sink. The input pad stays blocked.
func (b *branch) shutdown() error {
	var err error
	b.stopOnce.Do(func() {
		b.input.block()
		close(b.stop)
		<-b.done
		b.flush()
		err = b.sink.Close()
	})
	return err
}
