package observability

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nupi-ai/chorus/internal/eventbus"
)

var eventsDesc = prometheus.NewDesc(
	"chorus_eventbus_events_total",
	"Total number of published events per topic.",
	[]string{"topic"}, nil,
)

// EventCounter counts published events grouped by topic. It is registered
// as a bus observer and exported as a Prometheus collector.
type EventCounter struct {
	counts sync.Map // map[eventbus.Topic]*atomic.Uint64
}

// NewEventCounter creates a counter that can be registered as an event bus observer.
func NewEventCounter() *EventCounter {
	return &EventCounter{}
}

// OnPublish implements eventbus.Observer by tracking published events per topic.
func (c *EventCounter) OnPublish(env eventbus.Envelope) {
	if env.Topic == "" {
		return
	}
	c.counterFor(env.Topic).Add(1)
}

// Snapshot exposes a stable copy of the current counts.
func (c *EventCounter) Snapshot() map[eventbus.Topic]uint64 {
	out := make(map[eventbus.Topic]uint64)
	c.counts.Range(func(key, value any) bool {
		topic, ok := key.(eventbus.Topic)
		if !ok {
			return true
		}
		counter, ok := value.(*atomic.Uint64)
		if !ok || counter == nil {
			return true
		}
		out[topic] = counter.Load()
		return true
	})
	return out
}

// Describe implements prometheus.Collector.
func (c *EventCounter) Describe(ch chan<- *prometheus.Desc) {
	ch <- eventsDesc
}

// Collect implements prometheus.Collector.
func (c *EventCounter) Collect(ch chan<- prometheus.Metric) {
	counts := c.Snapshot()
	topics := make([]string, 0, len(counts))
	for topic := range counts {
		topics = append(topics, string(topic))
	}
	sort.Strings(topics)
	for _, topic := range topics {
		ch <- prometheus.MustNewConstMetric(eventsDesc, prometheus.CounterValue, float64(counts[eventbus.Topic(topic)]), topic)
	}
}

func (c *EventCounter) counterFor(topic eventbus.Topic) *atomic.Uint64 {
	if counter, ok := c.counts.Load(topic); ok {
		if typed, ok := counter.(*atomic.Uint64); ok && typed != nil {
			return typed
		}
	}
	newCounter := &atomic.Uint64{}
	actual, _ := c.counts.LoadOrStore(topic, newCounter)
	if typed, ok := actual.(*atomic.Uint64); ok && typed != nil {
		return typed
	}
	return newCounter
}
