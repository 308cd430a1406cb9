package output

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep"
	"github.com/rs/zerolog"
)

// DrainID identifies the synthetic endpoint that consumes the stream while
// no real endpoint is attached. Callers can neither attach nor detach it.
const DrainID = "_drain"

const defaultQueueBytes = 256 * 1024

// DefaultFormat is 16-bit stereo PCM at 44.1kHz.
var DefaultFormat = beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}

// Options configures a Router.
type Options struct {
	// Format describes the PCM pushed into the router.
	Format beep.Format
	// QueueBytes bounds every endpoint queue.
	QueueBytes int
	Logger     zerolog.Logger
}

// EndpointStats is a point-in-time view of one endpoint.
type EndpointStats struct {
	ID          string
	QueuedBytes int
	Written     uint64
	Dropped     uint64
	WriteErrors uint64
}

// Router fans one producer stream out to a dynamic set of endpoints. The
// topology can change while buffers flow; the fan-out always has at least
// one consumer because a drain endpoint stands in whenever no real endpoint
// is attached.
type Router struct {
	format     beep.Format
	queueBytes int
	logger     zerolog.Logger

	upstream *pad
	linked   atomic.Pointer[[]*branch]
	state    atomic.Int32

	mu        sync.Mutex
	endpoints map[string]*branch
	drain     *branch
	closed    bool
}

// New creates a stopped router with the drain endpoint linked.
func New(opts Options) *Router {
	format := opts.Format
	if format.Width() <= 0 || format.SampleRate <= 0 {
		format = DefaultFormat
	}
	queueBytes := opts.QueueBytes
	if queueBytes <= 0 {
		queueBytes = defaultQueueBytes
	}

	r := &Router{
		format:     format,
		queueBytes: queueBytes,
		logger:     opts.Logger,
		upstream:   newPad(),
		endpoints:  make(map[string]*branch),
	}
	r.linked.Store(&[]*branch{})
	r.mu.Lock()
	r.attachDrainLocked()
	r.mu.Unlock()
	return r
}

// Format returns the PCM format of the stream.
func (r *Router) Format() beep.Format { return r.format }

// State returns the current run state.
func (r *Router) State() State { return State(r.state.Load()) }

func (r *Router) flowing() bool { return r.State() == StatePlaying }

// SetState propagates s to the router and every branch.
func (r *Router) SetState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	prev := State(r.state.Swap(int32(s)))
	for _, b := range *r.linked.Load() {
		b.setState(s)
	}
	if prev != s {
		r.logger.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("router state changed")
	}
}

// Attach links a new endpoint. While buffers are flowing the upstream pad is
// blocked for the duration of the splice.
func (r *Router) Attach(id string, sink Sink) error {
	if id == "" {
		return ErrInvalidIdentifier
	}
	if id == DrainID {
		return fmt.Errorf("%w: %s", ErrReservedIdentifier, id)
	}
	if sink == nil {
		return fmt.Errorf("output: nil sink for %q", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if _, exists := r.endpoints[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateIdentifier, id)
	}
	if err := sink.Open(r.format); err != nil {
		return fmt.Errorf("output: open sink %q: %w", id, err)
	}

	b := r.newBranchLocked(id, sink)
	r.endpoints[id] = b
	r.link(b)
	endpointsGauge.Inc()
	attachTotal.Inc()
	r.logger.Info().Str("endpoint", id).Int("endpoints", len(r.endpoints)).Msg("endpoint attached")

	if r.drain != nil {
		r.detachDrainLocked()
	}
	return nil
}

// Detach unlinks and closes an endpoint. Detaching the last real endpoint
// links the drain first. The sink is closed after the topology lock is
// released, so a sink stuck in Write only delays this call.
func (r *Router) Detach(id string) error {
	b, err := r.unlinkEndpoint(id)
	if err != nil {
		return err
	}
	if err := b.shutdown(); err != nil {
		r.logger.Warn().Err(err).Str("endpoint", id).Msg("closing sink failed")
	}
	return nil
}

func (r *Router) unlinkEndpoint(id string) (*branch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.endpoints[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentifier, id)
	}

	if len(r.endpoints) == 1 && r.drain == nil {
		r.attachDrainLocked()
	}

	delete(r.endpoints, id)
	r.unlink(b)
	endpointsGauge.Dec()
	detachTotal.Inc()
	r.logger.Info().Str("endpoint", id).Int("endpoints", len(r.endpoints)).Msg("endpoint detached")
	return b, nil
}

// Push hands one buffer to every linked endpoint. It waits only while the
// upstream pad is blocked for a topology change.
func (r *Router) Push(ctx context.Context, buf Buffer) error {
	if !r.flowing() {
		return ErrNotFlowing
	}
	if err := r.upstream.enter(ctx); err != nil {
		return err
	}
	defer r.upstream.leave()

	for _, b := range *r.linked.Load() {
		b.enqueue(buf)
	}
	pushedBytesTotal.Add(float64(len(buf)))
	return nil
}

// Endpoints returns the real endpoint identifiers in sorted order.
func (r *Router) Endpoints() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.endpoints))
	for id := range r.endpoints {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// HasDrain reports whether the drain endpoint is linked.
func (r *Router) HasDrain() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drain != nil
}

// Consumers returns the number of linked branches, drain included.
func (r *Router) Consumers() int {
	return len(*r.linked.Load())
}

// Stats reports per-endpoint counters ordered like Endpoints, with the drain
// last when present.
func (r *Router) Stats() []EndpointStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.endpoints))
	for id := range r.endpoints {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	branches := make([]*branch, 0, len(ids)+1)
	for _, id := range ids {
		branches = append(branches, r.endpoints[id])
	}
	if r.drain != nil {
		branches = append(branches, r.drain)
	}

	stats := make([]EndpointStats, 0, len(branches))
	for _, b := range branches {
		stats = append(stats, EndpointStats{
			ID:          b.id,
			QueuedBytes: b.queued(),
			Written:     b.written.Load(),
			Dropped:     b.dropped.Load(),
			WriteErrors: b.errors.Load(),
		})
	}
	return stats
}

// Close stops the router and every branch, closing all sinks.
func (r *Router) Close() error {
	branches := r.unlinkAll()

	var firstErr error
	for _, b := range branches {
		if err := b.shutdown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) unlinkAll() []*branch {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.state.Store(int32(StateStopped))

	r.upstream.block()
	branches := *r.linked.Load()
	r.linked.Store(&[]*branch{})
	r.upstream.unblock()

	endpointsGauge.Sub(float64(len(r.endpoints)))
	if r.drain != nil {
		drainGauge.Dec()
	}
	r.endpoints = map[string]*branch{}
	r.drain = nil
	return branches
}

func (r *Router) newBranchLocked(id string, sink Sink) *branch {
	b := newBranch(id, sink, r.queueBytes, r.logger)
	b.setState(r.State())
	b.start()
	return b
}

// link splices b into the fan-out. Callers hold r.mu.
func (r *Router) link(b *branch) {
	flowing := r.flowing()
	if flowing {
		r.upstream.block()
	}
	cur := *r.linked.Load()
	next := make([]*branch, 0, len(cur)+1)
	next = append(next, cur...)
	next = append(next, b)
	r.linked.Store(&next)
	if flowing {
		r.upstream.unblock()
	}
}

// unlink removes b from the fan-out. Only b's input pad is blocked, so the
// other endpoints keep receiving. Callers hold r.mu.
func (r *Router) unlink(b *branch) {
	b.input.block()
	cur := *r.linked.Load()
	next := make([]*branch, 0, len(cur))
	for _, other := range cur {
		if other != b {
			next = append(next, other)
		}
	}
	r.linked.Store(&next)
}

func (r *Router) attachDrainLocked() {
	d := r.newBranchLocked(DrainID, &DiscardSink{})
	r.link(d)
	r.drain = d
	drainGauge.Inc()
	r.logger.Debug().Msg("drain endpoint attached")
}

func (r *Router) detachDrainLocked() {
	d := r.drain
	r.drain = nil
	r.unlink(d)
	_ = d.shutdown()
	drainGauge.Dec()
	r.logger.Debug().Msg("drain endpoint detached")
}
