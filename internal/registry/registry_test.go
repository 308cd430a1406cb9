package registry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nupi-ai/chorus/internal/actor"
	"github.com/nupi-ai/chorus/internal/backend"
	"github.com/nupi-ai/chorus/internal/device"
	devicedummy "github.com/nupi-ai/chorus/internal/device/dummy"
	"github.com/nupi-ai/chorus/internal/eventbus"
	"github.com/nupi-ai/chorus/internal/registry"
	"github.com/nupi-ai/chorus/internal/service"
	servicedummy "github.com/nupi-ai/chorus/internal/service/dummy"
)

type fakeBackend struct {
	ref     actor.Ref
	schemes *actor.Future[[]string]
	caps    *actor.Future[backend.Capabilities]
}

func newFakeBackend(name string, caps backend.Capabilities, schemes ...string) *fakeBackend {
	return &fakeBackend{
		ref:     actor.NewRef("backend/" + name),
		schemes: actor.Resolved(schemes),
		caps:    actor.Resolved(caps),
	}
}

func (b *fakeBackend) Ref() actor.Ref                                    { return b.ref }
func (b *fakeBackend) URISchemes() *actor.Future[[]string]               { return b.schemes }
func (b *fakeBackend) Capabilities() *actor.Future[backend.Capabilities] { return b.caps }

func TestBuildBackendsIndexesByCapability(t *testing.T) {
	local := newFakeBackend("local", backend.Capabilities{Library: true, Playback: true}, "file", "local")
	stream := newFakeBackend("stream", backend.Capabilities{Playback: true, Playlists: true}, "http")

	r, err := registry.BuildBackends(context.Background(), []backend.Backend{local, stream})
	require.NoError(t, err)

	assert.Equal(t, []string{"file", "local", "http"}, r.WithPlayback().Keys())
	assert.Equal(t, []string{"file", "local"}, r.WithLibrary().Keys())
	assert.Equal(t, 0, r.WithLibraryBrowse().Len())
	assert.Equal(t, []string{"http"}, r.WithPlaylists().Keys())

	got, ok := r.ByScheme("http")
	require.True(t, ok)
	assert.Same(t, stream, got)
	assert.Len(t, r.All(), 2)

	var visited []string
	r.WithPlayback().Range(func(key string, _ backend.Backend) bool {
		visited = append(visited, key)
		return len(visited) < 2
	})
	assert.Equal(t, []string{"file", "local"}, visited)
}

func TestBuildBackendsRejectsDuplicateScheme(t *testing.T) {
	first := newFakeBackend("first", backend.Capabilities{}, "a")
	second := newFakeBackend("second", backend.Capabilities{}, "b", "a")

	_, err := registry.BuildBackends(context.Background(), []backend.Backend{first, second})
	require.ErrorIs(t, err, registry.ErrDuplicateKey)

	var dup *registry.DuplicateKeyError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "a", dup.Key)
	assert.Equal(t, first.Ref(), dup.Existing)
	assert.Equal(t, second.Ref(), dup.Conflicting)
	assert.Contains(t, err.Error(), first.Ref().String())
	assert.Contains(t, err.Error(), second.Ref().String())
}

func TestBuildBackendsResolvesDistinctKeys(t *testing.T) {
	var backends []backend.Backend
	for i := 0; i < 20; i++ {
		backends = append(backends, newFakeBackend(fmt.Sprint(i), backend.Capabilities{Playback: true}, fmt.Sprintf("s%d", i)))
	}
	r, err := registry.BuildBackends(context.Background(), backends)
	require.NoError(t, err)
	for i, b := range backends {
		got, ok := r.ByScheme(fmt.Sprintf("s%d", i))
		require.True(t, ok)
		assert.Same(t, b, got)
	}
}

func TestBuildBackendsPropagatesFailedFutures(t *testing.T) {
	boom := errors.New("boom")
	b := &fakeBackend{
		ref:     actor.NewRef("backend/broken"),
		schemes: actor.Failed[[]string](boom),
		caps:    actor.Resolved(backend.Capabilities{}),
	}
	_, err := registry.BuildBackends(context.Background(), []backend.Backend{b})
	require.ErrorIs(t, err, boom)
}

func startService(t *testing.T, name string, public bool, bus *eventbus.Bus) *servicedummy.Service {
	t.Helper()
	svc := servicedummy.New(servicedummy.Options{Name: name, Public: public, Bus: bus})
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc
}

func TestServicesRegistry(t *testing.T) {
	bus := eventbus.New()
	sub := eventbus.SubscribeTo(bus, eventbus.Listeners.Service)
	defer sub.Close()

	ctx := context.Background()
	upnp := startService(t, "upnp", true, bus)
	mpd := startService(t, "mpd", false, bus)

	r, err := registry.BuildServices(ctx, []service.Service{upnp, mpd}, bus)
	require.NoError(t, err)
	assert.Equal(t, []string{"upnp", "mpd"}, r.Names())
	assert.Equal(t, []string{"upnp"}, r.Public())

	got, ok := r.Lookup("mpd")
	require.True(t, ok)
	assert.Same(t, service.Service(mpd), got)

	require.NoError(t, r.Add(ctx, startService(t, "airplay", true, bus)))
	assert.Equal(t, 3, r.Len())
	select {
	case env := <-sub.C():
		assert.Equal(t, eventbus.ServiceRegistered{Service: "airplay", Public: true}, env.Payload)
		assert.Equal(t, eventbus.SourceRegistry, env.Source)
	case <-time.After(time.Second):
		t.Fatal("service_registered not published")
	}

	err = r.Add(ctx, startService(t, "upnp", false, bus))
	require.ErrorIs(t, err, registry.ErrDuplicateKey)
	assert.Equal(t, 3, r.Len())
}

func TestBuildServicesRejectsDuplicateName(t *testing.T) {
	a := startService(t, "upnp", true, nil)
	b := startService(t, "upnp", false, nil)
	_, err := registry.BuildServices(context.Background(), []service.Service{a, b}, nil)
	require.ErrorIs(t, err, registry.ErrDuplicateKey)
}

func startManager(t *testing.T, types ...string) *devicedummy.Manager {
	t.Helper()
	m := devicedummy.New(devicedummy.Options{Types: types})
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func TestDeviceManagersRegistry(t *testing.T) {
	bt := startManager(t, "bluetooth", "ble")
	usb := startManager(t, "usb")

	r, err := registry.BuildDeviceManagers(context.Background(), []device.Manager{bt, usb})
	require.NoError(t, err)
	assert.Equal(t, []string{"bluetooth", "ble", "usb"}, r.Types())
	assert.Len(t, r.Managers(), 2)

	got, ok := r.ForType("ble")
	require.True(t, ok)
	assert.Same(t, device.Manager(bt), got)
	_, ok = r.ForType("hdmi")
	assert.False(t, ok)
}

func TestDeviceManagersRejectDuplicateType(t *testing.T) {
	_, err := registry.BuildDeviceManagers(context.Background(), []device.Manager{
		startManager(t, "bluetooth"),
		startManager(t, "usb", "bluetooth"),
	})
	var dup *registry.DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "device type", dup.Kind)
	assert.Equal(t, "bluetooth", dup.Key)
}
