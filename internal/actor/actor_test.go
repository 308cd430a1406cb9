package actor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedMailbox(t *testing.T, kind string) *Mailbox {
	t.Helper()
	m := NewMailbox(NewRef(kind))
	m.Start(context.Background())
	t.Cleanup(m.Stop)
	return m
}

func TestFutureResolvesOnce(t *testing.T) {
	f, resolve := NewFuture[int]()
	resolve(1, nil)
	resolve(2, errors.New("ignored"))

	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFutureGetHonoursContext(t *testing.T) {
	f, _ := NewFuture[string]()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetAllPreservesInputOrder(t *testing.T) {
	first, resolveFirst := NewFuture[string]()
	second, resolveSecond := NewFuture[string]()

	go func() {
		resolveSecond("b", nil)
		time.Sleep(5 * time.Millisecond)
		resolveFirst("a", nil)
	}()

	got, err := GetAll(context.Background(), []*Future[string]{first, second})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestGetAllReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	_, err := GetAll(context.Background(), []*Future[int]{Resolved(1), Failed[int](boom)})
	assert.ErrorIs(t, err, boom)
}

func TestMailboxProcessesInSendOrder(t *testing.T) {
	m := startedMailbox(t, "ordered")

	var mu sync.Mutex
	var seen []int
	var last *Future[Ack]
	for i := 0; i < 50; i++ {
		i := i
		last = Do(m, func() error {
			mu.Lock()
			seen = append(seen, i)
			mu.Unlock()
			return nil
		})
	}

	_, err := last.Get(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 50)
	for i, v := range seen {
		assert.Equal(t, i, v)
	}
}

func TestAskPropagatesHandlerError(t *testing.T) {
	m := startedMailbox(t, "failing")
	boom := errors.New("boom")

	_, err := Ask(m, func() (int, error) { return 0, boom }).Get(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestAskRecoversPanic(t *testing.T) {
	m := startedMailbox(t, "panicky")

	_, err := Ask(m, func() (int, error) { panic("kaboom") }).Get(context.Background())
	assert.ErrorIs(t, err, ErrHandlerPanic)

	v, err := Ask(m, func() (int, error) { return 7, nil }).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v, "mailbox keeps running after a panic")
}

func TestTellAfterStopFails(t *testing.T) {
	m := NewMailbox(NewRef("stopped"))
	assert.ErrorIs(t, m.Tell(func() {}), ErrStopped, "not started")

	m.Start(context.Background())
	m.Stop()
	m.Stop()

	_, err := Ask(m, func() (int, error) { return 1, nil }).Get(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

// blockMailbox occupies the mailbox with a handler that waits on release and
// queues an Ask behind it.
func blockMailbox(t *testing.T, m *Mailbox) (*Future[int], chan struct{}) {
	t.Helper()
	running := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, m.Tell(func() {
		close(running)
		<-release
	}))
	<-running
	return Ask(m, func() (int, error) { return 1, nil }), release
}

func TestStopFailsQueuedAsks(t *testing.T) {
	m := NewMailbox(NewRef("stopping"))
	m.Start(context.Background())

	pending, release := blockMailbox(t, m)

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	require.Eventually(t, func() bool {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.stopped
	}, time.Second, time.Millisecond)
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := pending.Get(ctx)
	assert.ErrorIs(t, err, ErrStopped)
	<-stopped
}

func TestCancelledContextFailsQueuedAsks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMailbox(NewRef("cancelled"))
	m.Start(ctx)
	t.Cleanup(m.Stop)

	pending, release := blockMailbox(t, m)
	queued := Do(m, func() error { return nil })
	cancel()
	close(release)

	getCtx, getCancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer getCancel()
	_, err := pending.Get(getCtx)
	assert.ErrorIs(t, err, ErrStopped)
	_, err = queued.Get(getCtx)
	assert.ErrorIs(t, err, ErrStopped)

	assert.ErrorIs(t, m.Tell(func() {}), ErrStopped)
}

func TestRefString(t *testing.T) {
	ref := NewRef("dummy")
	assert.Contains(t, ref.String(), "dummy#")
	assert.NotEqual(t, ref, NewRef("dummy"))
	assert.Equal(t, "actor", Ref{}.String())
}
