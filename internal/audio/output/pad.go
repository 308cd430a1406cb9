package output

import (
	"context"
	"sync"
)

// pad is a gate buffers pass through. Blocking a pad waits for buffers already
// past the gate to finish and holds new ones back until unblock. Blocking an
// idle pad returns immediately.
type pad struct {
	mu      sync.Mutex
	idle    *sync.Cond
	blocked bool
	busy    int
	open    chan struct{}
}

func newPad() *pad {
	p := &pad{open: make(chan struct{})}
	p.idle = sync.NewCond(&p.mu)
	close(p.open)
	return p
}

// enter waits while the pad is blocked.
func (p *pad) enter(ctx context.Context) error {
	for {
		p.mu.Lock()
		if !p.blocked {
			p.busy++
			p.mu.Unlock()
			return nil
		}
		open := p.open
		p.mu.Unlock()

		select {
		case <-open:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// tryEnter passes the pad only when it is not blocked.
func (p *pad) tryEnter() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.blocked {
		return false
	}
	p.busy++
	return true
}

func (p *pad) leave() {
	p.mu.Lock()
	p.busy--
	if p.busy == 0 {
		p.idle.Broadcast()
	}
	p.mu.Unlock()
}

func (p *pad) block() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.blocked {
		p.blocked = true
		p.open = make(chan struct{})
	}
	for p.busy > 0 {
		p.idle.Wait()
	}
}

func (p *pad) unblock() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.blocked {
		return
	}
	p.blocked = false
	close(p.open)
}

func (p *pad) isBlocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blocked
}
