package eventbus

import (
	"context"
	"sync"
)

// Closer is anything that can be detached from the bus.
type Closer interface {
	Close()
}

// SubscriptionGroup closes a set of subscriptions and attachments together.
type SubscriptionGroup struct {
	mu      sync.Mutex
	closers []Closer
}

// Add tracks closers for bulk shutdown. Nil entries are ignored.
func (g *SubscriptionGroup) Add(closers ...Closer) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range closers {
		if isNilCloser(c) {
			continue
		}
		g.closers = append(g.closers, c)
	}
}

// Len reports how many closers are tracked.
func (g *SubscriptionGroup) Len() int {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.closers)
}

// CloseAll closes tracked closers in reverse registration order and empties the group.
func (g *SubscriptionGroup) CloseAll() {
	if g == nil {
		return
	}
	g.mu.Lock()
	closers := g.closers
	g.closers = nil
	g.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i].Close()
	}
}

func isNilCloser(c Closer) bool {
	switch v := c.(type) {
	case nil:
		return true
	case *Subscription:
		return v == nil
	case *Attachment:
		return v == nil
	case *TypedSubscription[Event]:
		return v == nil
	default:
		return false
	}
}

// ServiceLifecycle bundles the plumbing shared by bus-attached services:
// a cancellable context, tracked attachments, and worker goroutines.
type ServiceLifecycle struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  SubscriptionGroup
	wg     sync.WaitGroup
}

// Start derives the service context from ctx.
func (l *ServiceLifecycle) Start(ctx context.Context) {
	l.ctx, l.cancel = context.WithCancel(ctx)
}

// Context returns the service context, or context.Background before Start.
func (l *ServiceLifecycle) Context() context.Context {
	if l.ctx == nil {
		return context.Background()
	}
	return l.ctx
}

// Track registers closers released on Stop.
func (l *ServiceLifecycle) Track(closers ...Closer) {
	l.group.Add(closers...)
}

// Go runs worker on its own goroutine with the service context.
func (l *ServiceLifecycle) Go(worker func(ctx context.Context)) {
	if worker == nil {
		return
	}
	ctx := l.Context()
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		worker(ctx)
	}()
}

// Stop cancels the context and closes every tracked closer.
func (l *ServiceLifecycle) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	l.group.CloseAll()
}

// Shutdown stops the lifecycle and waits for workers until ctx is done.
func (l *ServiceLifecycle) Shutdown(ctx context.Context) error {
	l.Stop()
	return WaitForWorkers(ctx, &l.wg)
}

// WaitForWorkers waits for wg or returns ctx.Err() when ctx is done first.
func WaitForWorkers(ctx context.Context, wg *sync.WaitGroup) error {
	if wg == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
