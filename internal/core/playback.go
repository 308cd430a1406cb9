package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nupi-ai/chorus/internal/actor"
	"github.com/nupi-ai/chorus/internal/eventbus"
	"github.com/nupi-ai/chorus/internal/models"
)

// PlaybackController caches the playback state as seen by the core and
// publishes playback events for frontends. All mutations run on the core
// mailbox.
type PlaybackController struct {
	core *Core

	mu    sync.RWMutex
	state models.PlaybackState
	track string
}

// State returns the cached playback state.
func (p *PlaybackController) State() *actor.Future[models.PlaybackState] {
	return actor.Ask(p.core.mailbox, func() (models.PlaybackState, error) {
		return p.cached(), nil
	})
}

// CurrentTrack returns the URI of the track last handed to SetTrack.
func (p *PlaybackController) CurrentTrack() *actor.Future[string] {
	return actor.Ask(p.core.mailbox, func() (string, error) {
		p.mu.RLock()
		defer p.mu.RUnlock()
		return p.track, nil
	})
}

// SetTrack records the track subsequent playback events refer to.
func (p *PlaybackController) SetTrack(uri string) *actor.Future[actor.Ack] {
	return actor.Do(p.core.mailbox, func() error {
		p.mu.Lock()
		p.track = uri
		p.mu.Unlock()
		return nil
	})
}

// SetState drives the audio subsystem to target and publishes the change on
// the core topic. Pausing a playing track also publishes track_playback_paused.
func (p *PlaybackController) SetState(ctx context.Context, target models.PlaybackState) *actor.Future[actor.Ack] {
	return actor.Do(p.core.mailbox, func() error {
		old := p.cached()
		if a := p.core.audio; a != nil {
			if err := a.SetState(ctx, target); err != nil {
				return fmt.Errorf("core: set playback state %s: %w", target, err)
			}
		}
		if old == target {
			return nil
		}
		p.store(target)
		if target == models.PlaybackPaused && old == models.PlaybackPlaying {
			p.core.publish(eventbus.TrackPlaybackPaused{Track: p.currentTrack(), TimePosition: p.position()})
		}
		p.core.publish(eventbus.PlaybackStateChanged{Old: old, New: target, Target: target})
		return nil
	})
}

// onAudioStateChanged handles a pause the audio subsystem went through on its
// own, without a request from the core. Such a transition arrives with an
// empty Target.
func (p *PlaybackController) onAudioStateChanged(ev eventbus.PlaybackStateChanged) {
	if ev.New != models.PlaybackPaused || ev.Target != "" {
		return
	}
	old := p.cached()
	if old == models.PlaybackPaused {
		return
	}
	p.store(models.PlaybackPaused)
	p.core.logger.Info().Str("old", string(old)).Msg("audio paused without request, reconciling")
	p.core.publish(eventbus.TrackPlaybackPaused{Track: p.currentTrack(), TimePosition: p.position()})
	p.core.publish(eventbus.PlaybackStateChanged{Old: old, New: models.PlaybackPaused})
}

func (p *PlaybackController) onEndOfTrack() {
	position := p.position()
	if a := p.core.audio; a != nil {
		if err := a.SetState(p.core.lifecycle.Context(), models.PlaybackStopped); err != nil {
			p.core.logger.Warn().Err(err).Msg("stop audio at end of stream")
		}
	}
	old := p.cached()
	p.store(models.PlaybackStopped)
	p.core.publish(eventbus.TrackPlaybackEnded{Track: p.currentTrack(), TimePosition: position})
	p.core.publish(eventbus.PlaybackStateChanged{Old: old, New: models.PlaybackStopped})
}

func (p *PlaybackController) cached() models.PlaybackState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *PlaybackController) store(s models.PlaybackState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *PlaybackController) currentTrack() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.track
}

func (p *PlaybackController) position() time.Duration {
	if p.core.audio == nil {
		return 0
	}
	return p.core.audio.Position()
}
