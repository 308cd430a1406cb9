package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ErrStopped is returned when a message is sent to a mailbox that is no longer running.
var ErrStopped = errors.New("actor: mailbox stopped")

const defaultMailboxSize = 64

// Mailbox runs submitted messages one at a time on a dedicated goroutine.
// Messages from a single sender are processed in the order they were sent.
type Mailbox struct {
	ref    Ref
	logger zerolog.Logger
	queue  chan message

	mu      sync.RWMutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	exited  atomic.Bool
	exiting chan struct{}
	done    chan struct{}
}

// message is one queued unit of work. reject, when set, is called instead of
// run if the mailbox stops before the message is processed.
type message struct {
	run    func()
	reject func(error)
}

// MailboxOption customises a mailbox.
type MailboxOption func(*Mailbox)

// WithQueueSize overrides the number of messages buffered before Tell blocks.
func WithQueueSize(size int) MailboxOption {
	return func(m *Mailbox) {
		if size > 0 {
			m.queue = make(chan message, size)
		}
	}
}

// WithLogger sets the logger used for handler panics.
func WithLogger(logger zerolog.Logger) MailboxOption {
	return func(m *Mailbox) {
		m.logger = logger
	}
}

// NewMailbox creates a stopped mailbox owned by ref.
func NewMailbox(ref Ref, opts ...MailboxOption) *Mailbox {
	m := &Mailbox{
		ref:     ref,
		logger:  zerolog.Nop(),
		queue:   make(chan message, defaultMailboxSize),
		exiting: make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ref returns the identity of the actor owning the mailbox.
func (m *Mailbox) Ref() Ref {
	return m.ref
}

// Start launches the processing goroutine. Calling Start twice is a no-op.
func (m *Mailbox) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return
	}
	m.started = true

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.run(runCtx)
}

func (m *Mailbox) run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			m.drain()
			return
		case msg := <-m.queue:
			if ctx.Err() != nil {
				m.reject(msg)
				m.drain()
				return
			}
			m.invoke(msg.run)
		}
	}
}

// drain rejects every message still queued once the run loop has exited.
// Holding the write lock waits out senders that already passed the liveness
// check in send.
func (m *Mailbox) drain() {
	m.exited.Store(true)
	close(m.exiting)

	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		select {
		case msg := <-m.queue:
			m.reject(msg)
		default:
			return
		}
	}
}

func (m *Mailbox) reject(msg message) {
	if msg.reject != nil {
		msg.reject(fmt.Errorf("%w: %s", ErrStopped, m.ref))
	}
}

func (m *Mailbox) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Str("actor", m.ref.String()).Interface("panic", r).Msg("message handler panicked")
		}
	}()
	fn()
}

// Tell enqueues fn without waiting for it to run.
func (m *Mailbox) Tell(fn func()) error {
	return m.send(message{run: fn})
}

func (m *Mailbox) send(msg message) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.started || m.stopped || m.exited.Load() {
		return fmt.Errorf("%w: %s", ErrStopped, m.ref)
	}
	select {
	case m.queue <- msg:
		return nil
	case <-m.exiting:
		return fmt.Errorf("%w: %s", ErrStopped, m.ref)
	}
}

// Stop halts processing. Futures of messages still queued fail with
// ErrStopped.
func (m *Mailbox) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	if m.cancel != nil {
		m.cancel()
	}
	started := m.started
	m.mu.Unlock()

	if started {
		<-m.done
	}
}

// Ask runs fn on the mailbox and returns a future for its result.
// A panic inside fn resolves the future with ErrHandlerPanic. If the mailbox
// stops before fn runs the future fails with ErrStopped.
func Ask[T any](m *Mailbox, fn func() (T, error)) *Future[T] {
	f, resolve := NewFuture[T]()
	reject := func(err error) {
		var zero T
		resolve(zero, err)
	}
	err := m.send(message{reject: reject, run: func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				resolve(zero, fmt.Errorf("%w: %s: %v", ErrHandlerPanic, m.ref, r))
				panic(r)
			}
		}()
		resolve(fn())
	}})
	if err != nil {
		reject(err)
	}
	return f
}

// Do runs fn on the mailbox and acknowledges completion through the returned future.
func Do(m *Mailbox, fn func() error) *Future[Ack] {
	return Ask(m, func() (Ack, error) {
		return Ack{}, fn()
	})
}
