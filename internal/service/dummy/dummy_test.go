package dummy_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nupi-ai/chorus/internal/eventbus"
	"github.com/nupi-ai/chorus/internal/models"
	"github.com/nupi-ai/chorus/internal/service"
	"github.com/nupi-ai/chorus/internal/service/dummy"
)

func startService(t *testing.T, opts dummy.Options) *dummy.Service {
	t.Helper()
	svc := dummy.New(opts)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc
}

func get[T any](t *testing.T, f interface {
	Get(context.Context) (T, error)
}) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := f.Get(ctx)
	require.NoError(t, err)
	return v
}

func TestServiceDescribesItself(t *testing.T) {
	svc := startService(t, dummy.Options{Name: "spotify", Public: true})
	desc := get[service.Description](t, svc.Describe())
	assert.Equal(t, service.Description{Name: "spotify", Public: true}, desc)
	assert.Equal(t, models.ServiceStopped, get[models.ServiceState](t, svc.State()))
}

func TestServiceWaitsForRequiredProperties(t *testing.T) {
	svc := startService(t, dummy.Options{Name: "spotify", Required: []string{"token"}, Enabled: true})
	assert.Equal(t, models.ServiceStarting, get[models.ServiceState](t, svc.State()))

	get[struct{}](t, svc.SetProperty("token", "abc"))
	assert.Equal(t, models.ServiceStarted, get[models.ServiceState](t, svc.State()))

	get[struct{}](t, svc.ClearProperty("token"))
	assert.Equal(t, models.ServiceStarting, get[models.ServiceState](t, svc.State()))
	assert.True(t, get[bool](t, svc.HasProperty("token")))
	assert.Nil(t, get[any](t, svc.GetProperty("token")))

	get[struct{}](t, svc.Disable())
	assert.Equal(t, models.ServiceStopped, get[models.ServiceState](t, svc.State()))
}

func TestServicePropertyAccess(t *testing.T) {
	svc := startService(t, dummy.Options{Name: "dlna", Properties: map[string]any{"port": 8200}})

	assert.Equal(t, 8200, get[any](t, svc.GetProperty("port")))
	assert.False(t, get[bool](t, svc.HasProperty("name")))

	_, err := svc.GetProperty("name").Get(context.Background())
	require.ErrorIs(t, err, service.ErrUnknownProperty)

	get[struct{}](t, svc.SetProperty("name", "living room"))
	assert.Equal(t, map[string]any{"port": 8200, "name": "living room"}, get[map[string]any](t, svc.Properties()))
}

func TestServicePublishesPropertyChanges(t *testing.T) {
	bus := eventbus.New()
	sub := eventbus.SubscribeTo(bus, eventbus.Listeners.Service)
	defer sub.Close()

	svc := startService(t, dummy.Options{Name: "dlna", Bus: bus})
	get[struct{}](t, svc.SetProperty("port", 9000))

	select {
	case env := <-sub.C():
		assert.Equal(t, eventbus.ServicePropertyChanged{Service: "dlna", Properties: map[string]any{"port": 9000}}, env.Payload)
	case <-time.After(time.Second):
		t.Fatal("service_property_changed not published")
	}
}
