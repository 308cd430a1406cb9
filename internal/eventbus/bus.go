package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Bus orchestrates topic-based publish/subscribe messaging.
type Bus struct {
	logger        zerolog.Logger
	mu            sync.RWMutex
	subscribers   map[Topic]map[uint64]*Subscription
	topicBuffers  map[Topic]int
	topicPolicies map[Topic]DeliveryPolicy
	observers     []Observer
	nextID        uint64

	publishTotal atomic.Uint64
	droppedTotal atomic.Uint64
}

// Observer is notified of every envelope published on the bus.
type Observer interface {
	OnPublish(env Envelope)
}

// Metrics is a snapshot of bus-wide counters.
type Metrics struct {
	PublishTotal uint64
	DroppedTotal uint64
	Subscribers  int
}

// New constructs a bus with default topic buffer sizes.
func New(opts ...BusOption) *Bus {
	defaults := map[Topic]int{
		TopicAudio:   128,
		TopicBackend: 32,
		TopicMixer:   64,
		TopicDevice:  128,
		TopicService: 64,
		TopicCore:    256,
	}

	bus := &Bus{
		logger:        zerolog.Nop(),
		subscribers:   make(map[Topic]map[uint64]*Subscription),
		topicBuffers:  defaults,
		topicPolicies: make(map[Topic]DeliveryPolicy),
	}

	for _, opt := range opts {
		opt(bus)
	}

	return bus
}

// BusOption customises bus behaviour.
type BusOption func(*Bus)

// WithLogger overrides the logger used for drop warnings.
func WithLogger(logger zerolog.Logger) BusOption {
	return func(b *Bus) {
		b.logger = logger
	}
}

// WithTopicBuffer sets the buffer size for a given topic.
func WithTopicBuffer(topic Topic, size int) BusOption {
	return func(b *Bus) {
		if size <= 0 {
			size = 1
		}
		b.topicBuffers[topic] = size
	}
}

// WithTopicPolicy overrides the delivery policy for a specific topic.
func WithTopicPolicy(topic Topic, policy DeliveryPolicy) BusOption {
	return func(b *Bus) {
		b.topicPolicies[topic] = policy
	}
}

// WithObserver registers an observer invoked synchronously on every publish.
// Observers must not block.
func WithObserver(obs Observer) BusOption {
	return func(b *Bus) {
		if obs != nil {
			b.observers = append(b.observers, obs)
		}
	}
}

// Publish sends an untyped envelope. Prefer the TopicDef based helpers.
// If b is nil the call is a no-op.
func (b *Bus) Publish(ctx context.Context, env Envelope) {
	if b == nil {
		return
	}
	b.publish(ctx, env)
}

// publish sends the envelope to all subscribers of the topic without blocking
// on any of them.
func (b *Bus) publish(ctx context.Context, env Envelope) {
	if env.Topic == "" {
		return
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	if env.Source == "" {
		env.Source = SourceUnknown
	}

	b.publishTotal.Add(1)
	for _, obs := range b.observers {
		obs.OnPublish(env)
	}

	b.mu.RLock()
	subs := b.subscribers[env.Topic]
	for _, sub := range subs {
		sub.deliver(ctx, env)
	}
	b.mu.RUnlock()
}

// Subscribe registers a subscriber for the given topic.
// If b is nil the returned Subscription has a closed channel and Close is a no-op.
func (b *Bus) Subscribe(topic Topic, opts ...SubscriptionOption) *Subscription {
	if b == nil {
		ch := make(chan Envelope)
		close(ch)
		done := make(chan struct{})
		close(done)
		sub := &Subscription{ch: ch, done: done}
		sub.closed.Store(true)
		return sub
	}
	cfg := subscriptionConfig{
		bufferSize: b.topicBuffers[topic],
	}
	if cfg.bufferSize <= 0 {
		cfg.bufferSize = 1
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	policy := policyFor(topic, b.topicPolicies)

	id := atomic.AddUint64(&b.nextID, 1)
	sub := &Subscription{
		topic:  topic,
		id:     id,
		name:   cfg.name,
		ch:     make(chan Envelope, cfg.bufferSize),
		done:   make(chan struct{}),
		bus:    b,
		policy: policy,
	}

	if policy.Strategy == StrategySpill {
		sub.spill = newSpillQueue(policy.MaxSpill)
		spillCtx, cancel := context.WithCancel(context.Background())
		sub.spillCancel = cancel
		go sub.spill.pump(spillCtx, sub.ch)
	}

	b.mu.Lock()
	if _, exists := b.subscribers[topic]; !exists {
		b.subscribers[topic] = make(map[uint64]*Subscription)
	}
	b.subscribers[topic][id] = sub
	b.mu.Unlock()

	if cfg.ctx != nil {
		go func() {
			select {
			case <-cfg.ctx.Done():
				sub.Close()
			case <-sub.done:
			}
		}()
	}

	return sub
}

// Metrics returns a snapshot of publish and drop counters.
func (b *Bus) Metrics() Metrics {
	if b == nil {
		return Metrics{}
	}
	b.mu.RLock()
	count := 0
	for _, subs := range b.subscribers {
		count += len(subs)
	}
	b.mu.RUnlock()
	return Metrics{
		PublishTotal: b.publishTotal.Load(),
		DroppedTotal: b.droppedTotal.Load(),
		Subscribers:  count,
	}
}

// Shutdown closes all subscriptions and empties routing tables.
// If b is nil the call is a no-op.
func (b *Bus) Shutdown() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.subscribers {
		for id, sub := range subs {
			sub.closeLocked()
			delete(subs, id)
		}
		delete(b.subscribers, topic)
	}
}

// SubscriptionOption customises individual subscriptions.
type SubscriptionOption func(*subscriptionConfig)

type subscriptionConfig struct {
	bufferSize int
	name       string
	ctx        context.Context
}

// WithSubscriptionBuffer overrides the channel buffer for a subscription.
func WithSubscriptionBuffer(size int) SubscriptionOption {
	return func(cfg *subscriptionConfig) {
		if size > 0 {
			cfg.bufferSize = size
		}
	}
}

// WithSubscriptionName records a human friendly identifier used in logs.
func WithSubscriptionName(name string) SubscriptionOption {
	return func(cfg *subscriptionConfig) {
		cfg.name = name
	}
}

// WithContext ties the subscription lifecycle to a context.
// A nil context is ignored.
func WithContext(ctx context.Context) SubscriptionOption {
	return func(cfg *subscriptionConfig) {
		if ctx != nil {
			cfg.ctx = ctx
		}
	}
}

// Subscription represents a consumer listening to a topic.
type Subscription struct {
	topic Topic
	id    uint64
	name  string
	ch    chan Envelope
	done  chan struct{}

	bus         *Bus
	closed      atomic.Bool
	dropped     atomic.Uint64
	policy      DeliveryPolicy
	spill       *spillQueue
	spillCancel context.CancelFunc
}

// C exposes the event channel.
func (s *Subscription) C() <-chan Envelope {
	return s.ch
}

// Dropped returns how many envelopes this subscription lost to backpressure.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Pending reports envelopes waiting in the spill queue.
func (s *Subscription) Pending() int {
	if s.spill == nil {
		return 0
	}
	return s.spill.len()
}

// Close removes the subscription and closes the channel.
func (s *Subscription) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.stopSpill()
	close(s.done)

	if s.bus == nil {
		close(s.ch)
		return
	}

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if subs, ok := s.bus.subscribers[s.topic]; ok {
		delete(subs, s.id)
	}
	close(s.ch)
}

func (s *Subscription) closeLocked() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.stopSpill()
	close(s.done)
	close(s.ch)
}

func (s *Subscription) stopSpill() {
	if s.spillCancel != nil {
		s.spillCancel()
	}
	if s.spill != nil {
		<-s.spill.done
	}
}

func (s *Subscription) deliver(ctx context.Context, env Envelope) {
	if s.closed.Load() {
		return
	}

	select {
	case <-ctx.Done():
		return
	default:
	}

	// Spilled topics always go through the queue so the pump keeps FIFO order.
	if s.policy.Strategy == StrategySpill && s.spill != nil {
		if !s.spill.push(env) {
			s.recordDrop("spill-full")
		}
		return
	}

	select {
	case s.ch <- env:
		return
	default:
	}

	switch s.policy.Strategy {
	case StrategyDropNewest:
		s.recordDrop("drop-newest")
	default:
		s.dropOldestAndEnqueue(env)
	}
}

func (s *Subscription) dropOldestAndEnqueue(env Envelope) {
	select {
	case <-s.ch:
		s.recordDrop("drop-oldest")
	default:
	}

	select {
	case s.ch <- env:
	default:
		s.recordDrop("drop-current")
	}
}

func (s *Subscription) recordDrop(reason string) {
	count := s.dropped.Add(1)
	if s.bus == nil {
		return
	}
	s.bus.droppedTotal.Add(1)
	name := s.name
	if name == "" {
		name = "subscription"
	}
	s.bus.logger.Warn().
		Uint64("count", count).
		Str("subscriber", name).
		Str("topic", string(s.topic)).
		Str("reason", reason).
		Msg("dropped event")
}

func zerologFor(b *Bus) zerolog.Logger {
	if b == nil {
		return zerolog.Nop()
	}
	return b.logger
}
