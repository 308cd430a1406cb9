package models

// ServiceState is the lifecycle state reported by a service.
type ServiceState string

const (
	ServiceStarting ServiceState = "Starting"
	ServiceStarted  ServiceState = "Started"
	ServiceStopped  ServiceState = "Stopped"
)

// PlaybackState mirrors the audio pipeline playback state.
type PlaybackState string

const (
	PlaybackStopped PlaybackState = "stopped"
	PlaybackPlaying PlaybackState = "playing"
	PlaybackPaused  PlaybackState = "paused"
)
