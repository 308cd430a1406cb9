package eventbus

import (
	"context"
	"sync"
)

// EventHandler receives every event of the categories a listener is attached
// to. A listener implementing it bypasses the per-event methods.
type EventHandler interface {
	OnEvent(ev Event)
}

// AudioListener receives events from the audio subsystem.
type AudioListener interface {
	OnReachedEndOfStream(ev ReachedEndOfStream)
	OnPlaybackStateChanged(ev PlaybackStateChanged)
}

// BackendListener receives events from backends.
type BackendListener interface {
	OnPlaylistsLoaded(ev PlaylistsLoaded)
}

// MixerListener receives events from the mixer.
type MixerListener interface {
	OnVolumeChanged(ev VolumeChanged)
	OnMuteChanged(ev MuteChanged)
}

// DeviceListener receives events from device managers.
type DeviceListener interface {
	OnDeviceFound(ev DeviceFound)
	OnDeviceDisappeared(ev DeviceDisappeared)
	OnDeviceConnected(ev DeviceConnected)
	OnDeviceDisconnected(ev DeviceDisconnected)
	OnDeviceCreated(ev DeviceCreated)
	OnDeviceRemoved(ev DeviceRemoved)
	OnDevicePropertyChanged(ev DevicePropertyChanged)
	OnDevicePinCodeRequested(ev DevicePinCodeRequested)
	OnDevicePassKeyConfirmation(ev DevicePassKeyConfirmation)
}

// ServiceListener receives service lifecycle and property events.
type ServiceListener interface {
	OnServiceStarting(ev ServiceStarting)
	OnServiceStarted(ev ServiceStarted)
	OnServiceStopped(ev ServiceStopped)
	OnServicePropertyChanged(ev ServicePropertyChanged)
	OnServiceRegistered(ev ServiceRegistered)
}

// CoreListener receives what the core publishes: its own playback events and
// the events it relays from the upstream categories.
type CoreListener interface {
	BackendListener
	MixerListener
	DeviceListener
	ServiceListener
	OnTrackPlaybackPaused(ev TrackPlaybackPaused)
	OnTrackPlaybackEnded(ev TrackPlaybackEnded)
	OnPlaybackStateChanged(ev PlaybackStateChanged)
}

// BaseAudioListener implements AudioListener with no-ops.
type BaseAudioListener struct{}

func (BaseAudioListener) OnReachedEndOfStream(ReachedEndOfStream)     {}
func (BaseAudioListener) OnPlaybackStateChanged(PlaybackStateChanged) {}

// BaseBackendListener implements BackendListener with no-ops.
type BaseBackendListener struct{}

func (BaseBackendListener) OnPlaylistsLoaded(PlaylistsLoaded) {}

// BaseMixerListener implements MixerListener with no-ops.
type BaseMixerListener struct{}

func (BaseMixerListener) OnVolumeChanged(VolumeChanged) {}
func (BaseMixerListener) OnMuteChanged(MuteChanged)     {}

// BaseDeviceListener implements DeviceListener with no-ops.
type BaseDeviceListener struct{}

func (BaseDeviceListener) OnDeviceFound(DeviceFound)                             {}
func (BaseDeviceListener) OnDeviceDisappeared(DeviceDisappeared)                 {}
func (BaseDeviceListener) OnDeviceConnected(DeviceConnected)                     {}
func (BaseDeviceListener) OnDeviceDisconnected(DeviceDisconnected)               {}
func (BaseDeviceListener) OnDeviceCreated(DeviceCreated)                         {}
func (BaseDeviceListener) OnDeviceRemoved(DeviceRemoved)                         {}
func (BaseDeviceListener) OnDevicePropertyChanged(DevicePropertyChanged)         {}
func (BaseDeviceListener) OnDevicePinCodeRequested(DevicePinCodeRequested)       {}
func (BaseDeviceListener) OnDevicePassKeyConfirmation(DevicePassKeyConfirmation) {}

// BaseServiceListener implements ServiceListener with no-ops.
type BaseServiceListener struct{}

func (BaseServiceListener) OnServiceStarting(ServiceStarting)               {}
func (BaseServiceListener) OnServiceStarted(ServiceStarted)                 {}
func (BaseServiceListener) OnServiceStopped(ServiceStopped)                 {}
func (BaseServiceListener) OnServicePropertyChanged(ServicePropertyChanged) {}
func (BaseServiceListener) OnServiceRegistered(ServiceRegistered)           {}

// BaseCoreListener implements CoreListener with no-ops.
type BaseCoreListener struct {
	BaseBackendListener
	BaseMixerListener
	BaseDeviceListener
	BaseServiceListener
}

func (BaseCoreListener) OnTrackPlaybackPaused(TrackPlaybackPaused)   {}
func (BaseCoreListener) OnTrackPlaybackEnded(TrackPlaybackEnded)     {}
func (BaseCoreListener) OnPlaybackStateChanged(PlaybackStateChanged) {}

// DispatchAudio forwards ev to l. It reports whether ev belongs to the category.
func DispatchAudio(l AudioListener, ev Event) bool {
	if h, ok := l.(EventHandler); ok {
		h.OnEvent(ev)
		return true
	}
	switch e := ev.(type) {
	case ReachedEndOfStream:
		l.OnReachedEndOfStream(e)
	case PlaybackStateChanged:
		l.OnPlaybackStateChanged(e)
	default:
		return false
	}
	return true
}

func DispatchBackend(l BackendListener, ev Event) bool {
	if h, ok := l.(EventHandler); ok {
		h.OnEvent(ev)
		return true
	}
	switch e := ev.(type) {
	case PlaylistsLoaded:
		l.OnPlaylistsLoaded(e)
	default:
		return false
	}
	return true
}

func DispatchMixer(l MixerListener, ev Event) bool {
	if h, ok := l.(EventHandler); ok {
		h.OnEvent(ev)
		return true
	}
	switch e := ev.(type) {
	case VolumeChanged:
		l.OnVolumeChanged(e)
	case MuteChanged:
		l.OnMuteChanged(e)
	default:
		return false
	}
	return true
}

func DispatchDevice(l DeviceListener, ev Event) bool {
	if h, ok := l.(EventHandler); ok {
		h.OnEvent(ev)
		return true
	}
	return dispatchDevice(l, ev)
}

func dispatchDevice(l DeviceListener, ev Event) bool {
	switch e := ev.(type) {
	case DeviceFound:
		l.OnDeviceFound(e)
	case DeviceDisappeared:
		l.OnDeviceDisappeared(e)
	case DeviceConnected:
		l.OnDeviceConnected(e)
	case DeviceDisconnected:
		l.OnDeviceDisconnected(e)
	case DeviceCreated:
		l.OnDeviceCreated(e)
	case DeviceRemoved:
		l.OnDeviceRemoved(e)
	case DevicePropertyChanged:
		l.OnDevicePropertyChanged(e)
	case DevicePinCodeRequested:
		l.OnDevicePinCodeRequested(e)
	case DevicePassKeyConfirmation:
		l.OnDevicePassKeyConfirmation(e)
	default:
		return false
	}
	return true
}

func DispatchService(l ServiceListener, ev Event) bool {
	if h, ok := l.(EventHandler); ok {
		h.OnEvent(ev)
		return true
	}
	return dispatchService(l, ev)
}

func dispatchService(l ServiceListener, ev Event) bool {
	switch e := ev.(type) {
	case ServiceStarting:
		l.OnServiceStarting(e)
	case ServiceStarted:
		l.OnServiceStarted(e)
	case ServiceStopped:
		l.OnServiceStopped(e)
	case ServicePropertyChanged:
		l.OnServicePropertyChanged(e)
	case ServiceRegistered:
		l.OnServiceRegistered(e)
	default:
		return false
	}
	return true
}

func DispatchCore(l CoreListener, ev Event) bool {
	if h, ok := l.(EventHandler); ok {
		h.OnEvent(ev)
		return true
	}
	switch e := ev.(type) {
	case TrackPlaybackPaused:
		l.OnTrackPlaybackPaused(e)
	case TrackPlaybackEnded:
		l.OnTrackPlaybackEnded(e)
	case PlaybackStateChanged:
		l.OnPlaybackStateChanged(e)
	case PlaylistsLoaded:
		l.OnPlaylistsLoaded(e)
	case VolumeChanged:
		l.OnVolumeChanged(e)
	case MuteChanged:
		l.OnMuteChanged(e)
	default:
		if dispatchDevice(l, ev) {
			return true
		}
		return dispatchService(l, ev)
	}
	return true
}

// Attachment is a listener bound to one topic. Events are handed to the
// listener on a single goroutine, in publish order.
type Attachment struct {
	sub  *TypedSubscription[Event]
	wg   sync.WaitGroup
	once sync.Once
}

// Listen attaches dispatch to td. The attachment ends when ctx is done or
// Close is called.
func Listen(ctx context.Context, bus *Bus, td TopicDef[Event], name string, dispatch func(Event)) *Attachment {
	a := &Attachment{
		sub: SubscribeTo(bus, td, WithSubscriptionName(name), WithContext(ctx)),
	}
	logger := zerologFor(bus)
	a.wg.Add(1)
	go Consume(ctx, a.sub, &a.wg, func(ev Event) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Str("listener", name).
					Str("event", ev.EventName()).
					Interface("panic", r).
					Msg("listener panicked")
			}
		}()
		dispatch(ev)
	})
	return a
}

// Close detaches the listener and waits for its goroutine to finish.
func (a *Attachment) Close() {
	if a == nil {
		return
	}
	a.once.Do(func() {
		a.sub.Close()
		a.wg.Wait()
	})
}

func ListenAudio(ctx context.Context, bus *Bus, l AudioListener) *Attachment {
	return Listen(ctx, bus, Listeners.Audio, "audio_listener", func(ev Event) { DispatchAudio(l, ev) })
}

func ListenBackend(ctx context.Context, bus *Bus, l BackendListener) *Attachment {
	return Listen(ctx, bus, Listeners.Backend, "backend_listener", func(ev Event) { DispatchBackend(l, ev) })
}

func ListenMixer(ctx context.Context, bus *Bus, l MixerListener) *Attachment {
	return Listen(ctx, bus, Listeners.Mixer, "mixer_listener", func(ev Event) { DispatchMixer(l, ev) })
}

func ListenDevice(ctx context.Context, bus *Bus, l DeviceListener) *Attachment {
	return Listen(ctx, bus, Listeners.Device, "device_listener", func(ev Event) { DispatchDevice(l, ev) })
}

func ListenService(ctx context.Context, bus *Bus, l ServiceListener) *Attachment {
	return Listen(ctx, bus, Listeners.Service, "service_listener", func(ev Event) { DispatchService(l, ev) })
}

func ListenCore(ctx context.Context, bus *Bus, l CoreListener) *Attachment {
	return Listen(ctx, bus, Listeners.Core, "core_listener", func(ev Event) { DispatchCore(l, ev) })
}
