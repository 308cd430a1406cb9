// Package pipeline is the reference audio subsystem. It owns the output
// router, drives its run state and reports playback transitions on the
// audio topic.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/rs/zerolog"

	"github.com/nupi-ai/chorus/internal/audio/audiofmt"
	"github.com/nupi-ai/chorus/internal/audio/output"
	"github.com/nupi-ai/chorus/internal/eventbus"
	"github.com/nupi-ai/chorus/internal/models"
)

const defaultChunk = 20 * time.Millisecond

// ErrUnknownState is returned by SetState for values outside PlaybackState.
var ErrUnknownState = errors.New("pipeline: unknown playback state")

// Options configures a Pipeline.
type Options struct {
	Router *output.Router
	Bus    *eventbus.Bus
	// Silence keeps the graph fed with silent chunks while playing and no
	// producer writes.
	Silence bool
	Chunk   time.Duration
	Logger  zerolog.Logger
}

// Pipeline is the producer side of the output router.
type Pipeline struct {
	router  *output.Router
	bus     *eventbus.Bus
	logger  zerolog.Logger
	silence bool
	chunk   time.Duration

	mu        sync.Mutex
	state     models.PlaybackState
	position  time.Duration
	lastWrite time.Time

	lifecycle eventbus.ServiceLifecycle
}

// New creates a stopped pipeline around opts.Router.
func New(opts Options) *Pipeline {
	router := opts.Router
	if router == nil {
		router = output.New(output.Options{Logger: opts.Logger})
	}
	chunk := opts.Chunk
	if chunk <= 0 {
		chunk = defaultChunk
	}
	return &Pipeline{
		router:  router,
		bus:     opts.Bus,
		logger:  opts.Logger,
		silence: opts.Silence,
		chunk:   chunk,
		state:   models.PlaybackStopped,
	}
}

// Router exposes the fan-out node so components can attach endpoints.
func (p *Pipeline) Router() *output.Router { return p.router }

// State returns the current playback state.
func (p *Pipeline) State() models.PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Position returns the time rendered since the stream started.
func (p *Pipeline) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// SetState moves the router to target and reports the transition with
// target recorded as the requested state.
func (p *Pipeline) SetState(ctx context.Context, target models.PlaybackState) error {
	return p.transition(ctx, target, target)
}

// Suspend pauses playback without a request from the core, the way a sink
// losing its device or a backend losing its stream would.
func (p *Pipeline) Suspend(ctx context.Context) error {
	return p.transition(ctx, models.PlaybackPaused, "")
}

func (p *Pipeline) transition(ctx context.Context, next, target models.PlaybackState) error {
	routerState, err := routerStateFor(next)
	if err != nil {
		return err
	}

	// Publishing under p.mu keeps events in transition order; Send never
	// waits for listeners.
	p.mu.Lock()
	defer p.mu.Unlock()
	old := p.state
	p.state = next
	if next == models.PlaybackStopped {
		p.position = 0
	}
	p.router.SetState(routerState)

	if old == next {
		return nil
	}
	p.logger.Debug().Str("from", string(old)).Str("to", string(next)).Str("target", string(target)).Msg("playback state changed")
	eventbus.Send(ctx, p.bus, eventbus.Listeners.Audio, eventbus.SourceAudio, eventbus.PlaybackStateChanged{
		Old:    old,
		New:    next,
		Target: target,
	})
	return nil
}

func routerStateFor(s models.PlaybackState) (output.State, error) {
	switch s {
	case models.PlaybackStopped:
		return output.StateStopped, nil
	case models.PlaybackPaused:
		return output.StatePaused, nil
	case models.PlaybackPlaying:
		return output.StatePlaying, nil
	default:
		return output.StateStopped, fmt.Errorf("%w: %q", ErrUnknownState, s)
	}
}

// Write pushes PCM into the router and advances the position.
func (p *Pipeline) Write(ctx context.Context, data []byte) error {
	if err := p.router.Push(ctx, output.Buffer(data)); err != nil {
		return err
	}
	p.mu.Lock()
	p.position += audiofmt.Duration(p.router.Format(), len(data))
	p.lastWrite = time.Now()
	p.mu.Unlock()
	return nil
}

// EndOfStream reports that the current stream has been fully rendered.
func (p *Pipeline) EndOfStream(ctx context.Context) {
	eventbus.Send(ctx, p.bus, eventbus.Listeners.Audio, eventbus.SourceAudio, eventbus.ReachedEndOfStream{})
}

// Start launches the silence generator when enabled.
func (p *Pipeline) Start(ctx context.Context) error {
	p.lifecycle.Start(ctx)
	if p.silence {
		p.lifecycle.Go(p.feedSilence)
	}
	return nil
}

// Shutdown stops background work and closes the router.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	err := p.lifecycle.Shutdown(ctx)
	if cerr := p.router.Close(); err == nil {
		err = cerr
	}
	return err
}

func (p *Pipeline) feedSilence(ctx context.Context) {
	format := p.router.Format()
	chunk := silentChunk(format, p.chunk)
	ticker := time.NewTicker(p.chunk)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		p.mu.Lock()
		idle := time.Since(p.lastWrite) >= p.chunk
		p.mu.Unlock()
		if !idle {
			continue
		}
		if err := p.router.Push(ctx, chunk); err != nil && !errors.Is(err, output.ErrNotFlowing) && ctx.Err() == nil {
			p.logger.Warn().Err(err).Msg("silence push failed")
		}
	}
}

// silentChunk renders d of beep silence in format.
func silentChunk(format beep.Format, d time.Duration) output.Buffer {
	samples := make([][2]float64, format.SampleRate.N(d))
	n, _ := beep.Silence(len(samples)).Stream(samples)
	buf := make(output.Buffer, 0, audiofmt.ChunkBytes(format, d))
	frame := make([]byte, format.Width())
	for _, s := range samples[:n] {
		format.EncodeSigned(frame, s)
		buf = append(buf, frame...)
	}
	return buf
}
