package eventbus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nupi-ai/chorus/internal/eventbus"
)

type orderCloser struct {
	id    int
	order *[]int
}

func (c orderCloser) Close() { *c.order = append(*c.order, c.id) }

func TestSubscriptionGroupClosesInReverseOrder(t *testing.T) {
	var order []int
	var group eventbus.SubscriptionGroup
	var nilSub *eventbus.Subscription

	group.Add(orderCloser{1, &order}, nilSub, orderCloser{2, &order})
	assert.Equal(t, 2, group.Len())

	group.CloseAll()
	group.CloseAll()
	assert.Equal(t, []int{2, 1}, order)
	assert.Zero(t, group.Len())
}

func TestServiceLifecycleShutdownWaitsForWorkers(t *testing.T) {
	bus := eventbus.New()
	var lc eventbus.ServiceLifecycle
	lc.Start(context.Background())
	lc.Track(bus.Subscribe(eventbus.TopicCore))

	var stopped sync.WaitGroup
	stopped.Add(1)
	lc.Go(func(ctx context.Context) {
		<-ctx.Done()
		stopped.Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, lc.Shutdown(ctx))
	stopped.Wait()
	assert.Equal(t, 0, bus.Metrics().Subscribers)
}

func TestWaitForWorkersHonoursContext(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	defer wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, eventbus.WaitForWorkers(ctx, &wg), context.DeadlineExceeded)
}
