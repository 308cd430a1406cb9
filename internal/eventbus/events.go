package eventbus

import (
	"context"
	"time"

	"github.com/nupi-ai/chorus/internal/models"
)

// ReachedEndOfStream is emitted by the audio subsystem when the current
// stream has been fully rendered.
type ReachedEndOfStream struct{}

// PlaybackStateChanged reports a playback transition. Target is the state
// the audio subsystem was asked to reach; it is empty when the transition
// was not requested by the core (for example a sink pausing on its own).
type PlaybackStateChanged struct {
	Old    models.PlaybackState
	New    models.PlaybackState
	Target models.PlaybackState
}

// PlaylistsLoaded is emitted by a backend once its playlists are available.
type PlaylistsLoaded struct {
	Backend string
}

type VolumeChanged struct {
	Volume int
}

type MuteChanged struct {
	Mute bool
}

// DeviceFound is emitted when a scan discovers a device.
type DeviceFound struct {
	Device models.Device
}

// DeviceDisappeared is emitted when a previously found device is gone.
type DeviceDisappeared struct {
	Device models.Device
}

type DeviceConnected struct {
	Device models.Device
}

type DeviceDisconnected struct {
	Device models.Device
}

// DeviceCreated is emitted once a device has been paired.
type DeviceCreated struct {
	Device models.Device
}

// DeviceRemoved is emitted once a paired device has been forgotten.
type DeviceRemoved struct {
	Device models.Device
}

type DevicePropertyChanged struct {
	Device     models.Device
	Properties map[string]any
}

// DevicePinCodeRequested asks a frontend to confirm or display a pairing PIN.
type DevicePinCodeRequested struct {
	Device  models.Device
	PinCode string
}

// DevicePassKeyConfirmation asks a frontend to confirm a numeric pass key.
type DevicePassKeyConfirmation struct {
	Device  models.Device
	PassKey uint32
}

type ServiceStarting struct {
	Service string
}

type ServiceStarted struct {
	Service string
}

type ServiceStopped struct {
	Service string
}

// ServicePropertyChanged carries the changed properties only. A nil value
// means the property was cleared.
type ServicePropertyChanged struct {
	Service    string
	Properties map[string]any
}

// ServiceRegistered is emitted when a service is added to a running core.
type ServiceRegistered struct {
	Service string
	Public  bool
}

// TrackPlaybackPaused is emitted on the core topic when playback pauses.
type TrackPlaybackPaused struct {
	Track        string
	TimePosition time.Duration
}

// TrackPlaybackEnded is emitted on the core topic when a track finishes.
type TrackPlaybackEnded struct {
	Track        string
	TimePosition time.Duration
}

func (ReachedEndOfStream) EventName() string        { return "reached_end_of_stream" }
func (PlaybackStateChanged) EventName() string      { return "playback_state_changed" }
func (PlaylistsLoaded) EventName() string           { return "playlists_loaded" }
func (VolumeChanged) EventName() string             { return "volume_changed" }
func (MuteChanged) EventName() string               { return "mute_changed" }
func (DeviceFound) EventName() string               { return "device_found" }
func (DeviceDisappeared) EventName() string         { return "device_disappeared" }
func (DeviceConnected) EventName() string           { return "device_connected" }
func (DeviceDisconnected) EventName() string        { return "device_disconnected" }
func (DeviceCreated) EventName() string             { return "device_created" }
func (DeviceRemoved) EventName() string             { return "device_removed" }
func (DevicePropertyChanged) EventName() string     { return "device_property_changed" }
func (DevicePinCodeRequested) EventName() string    { return "device_pin_code_requested" }
func (DevicePassKeyConfirmation) EventName() string { return "device_pass_key_confirmation" }
func (ServiceStarting) EventName() string           { return "service_starting" }
func (ServiceStarted) EventName() string            { return "service_started" }
func (ServiceStopped) EventName() string            { return "service_stopped" }
func (ServicePropertyChanged) EventName() string    { return "service_property_changed" }
func (ServiceRegistered) EventName() string         { return "service_registered" }
func (TrackPlaybackPaused) EventName() string       { return "track_playback_paused" }
func (TrackPlaybackEnded) EventName() string        { return "track_playback_ended" }

// Send publishes ev on a listener topic. It never waits for listeners.
func Send(ctx context.Context, bus *Bus, td TopicDef[Event], source Source, ev Event) {
	if ev == nil {
		return
	}
	Publish(ctx, bus, td, source, ev)
}
