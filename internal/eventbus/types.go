package eventbus

import (
	"time"
)

// Topic identifies a logical channel on the bus.
type Topic string

// Upstream topics carry events from collaborators to the core; TopicCore
// carries the core's own events and relays to frontends.
const (
	TopicAudio   Topic = "audio"
	TopicBackend Topic = "backend"
	TopicMixer   Topic = "mixer"
	TopicDevice  Topic = "device"
	TopicService Topic = "service"
	TopicCore    Topic = "core"
)

// Source describes which component produced an event.
type Source string

const (
	SourceAudio         Source = "audio"
	SourceBackend       Source = "backend"
	SourceMixer         Source = "mixer"
	SourceDeviceManager Source = "device_manager"
	SourceService       Source = "service"
	SourceRegistry      Source = "registry"
	SourceCore          Source = "core"
	SourceUnknown       Source = "unknown"
)

// Envelope wraps every message published on the bus.
type Envelope struct {
	Topic     Topic
	Timestamp time.Time
	Source    Source
	Payload   any
}

// Event is implemented by every payload published on a listener topic.
type Event interface {
	EventName() string
}

// Listeners groups the typed descriptors of the listener topics.
var Listeners = struct {
	Audio   TopicDef[Event]
	Backend TopicDef[Event]
	Mixer   TopicDef[Event]
	Device  TopicDef[Event]
	Service TopicDef[Event]
	Core    TopicDef[Event]
}{
	Audio:   NewTopicDef[Event](TopicAudio),
	Backend: NewTopicDef[Event](TopicBackend),
	Mixer:   NewTopicDef[Event](TopicMixer),
	Device:  NewTopicDef[Event](TopicDevice),
	Service: NewTopicDef[Event](TopicService),
	Core:    NewTopicDef[Event](TopicCore),
}
