package eventbus

import "fmt"

// DeliveryStrategy determines behaviour when a subscriber's channel is full.
type DeliveryStrategy string

const (
	// StrategyDropOldest removes the oldest event from the channel and enqueues the new one.
	StrategyDropOldest DeliveryStrategy = "drop-oldest"
	// StrategyDropNewest discards the incoming event when the channel is full.
	StrategyDropNewest DeliveryStrategy = "drop-newest"
	// StrategySpill queues events in publish order behind the channel. Once the
	// spill queue is full incoming events are dropped.
	StrategySpill DeliveryStrategy = "spill"
)

// DeliveryPolicy controls how a topic handles backpressure.
type DeliveryPolicy struct {
	Strategy DeliveryStrategy
	MaxSpill int // queue cap for StrategySpill (0 = defaultMaxSpill)
}

const defaultMaxSpill = 4096

var defaultPolicy = DeliveryPolicy{Strategy: StrategyDropOldest}

// Upstream topics carry state transitions the core reconciles, so they spill
// rather than drop. Frontends on the core topic only need the latest state and
// may lag.
var defaultPolicies = map[Topic]DeliveryPolicy{
	TopicAudio:   {Strategy: StrategySpill},
	TopicBackend: {Strategy: StrategySpill},
	TopicDevice:  {Strategy: StrategySpill},
	TopicService: {Strategy: StrategySpill},
	TopicMixer:   {Strategy: StrategySpill},
	TopicCore:    {Strategy: StrategyDropOldest},
}

// ParseStrategy maps a configured strategy name onto a DeliveryStrategy.
func ParseStrategy(name string) (DeliveryStrategy, error) {
	switch s := DeliveryStrategy(name); s {
	case StrategyDropOldest, StrategyDropNewest, StrategySpill:
		return s, nil
	default:
		return "", fmt.Errorf("eventbus: unknown delivery strategy %q", name)
	}
}

// policyFor returns the delivery policy for a topic, falling back to defaultPolicy.
func policyFor(topic Topic, overrides map[Topic]DeliveryPolicy) DeliveryPolicy {
	if p, ok := overrides[topic]; ok {
		return p
	}
	if p, ok := defaultPolicies[topic]; ok {
		return p
	}
	return defaultPolicy
}
