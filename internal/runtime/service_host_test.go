package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type serviceTracker struct {
	name          string
	startErr      error
	shutdownErr   error
	errCh         chan error
	mu            sync.Mutex
	startCount    int
	shutdownCount int
}

func (tr *serviceTracker) factory(recordStarts, recordStops *[]string, recordMu *sync.Mutex) ServiceFactory {
	return func(ctx context.Context) (Service, error) {
		return &trackedService{
			tracker:      tr,
			recordStarts: recordStarts,
			recordStops:  recordStops,
			recordMu:     recordMu,
		}, nil
	}
}

type trackedService struct {
	tracker      *serviceTracker
	recordStarts *[]string
	recordStops  *[]string
	recordMu     *sync.Mutex
}

func (s *trackedService) Start(ctx context.Context) error {
	s.tracker.mu.Lock()
	s.tracker.startCount++
	s.tracker.mu.Unlock()

	if s.recordStarts != nil && s.recordMu != nil {
		s.recordMu.Lock()
		*s.recordStarts = append(*s.recordStarts, s.tracker.name)
		s.recordMu.Unlock()
	}
	return s.tracker.startErr
}

func (s *trackedService) Shutdown(ctx context.Context) error {
	s.tracker.mu.Lock()
	s.tracker.shutdownCount++
	s.tracker.mu.Unlock()

	if s.recordStops != nil && s.recordMu != nil {
		s.recordMu.Lock()
		*s.recordStops = append(*s.recordStops, s.tracker.name)
		s.recordMu.Unlock()
	}
	return s.tracker.shutdownErr
}

func (s *trackedService) Errors() <-chan error {
	return s.tracker.errCh
}

func TestServiceHostStartStopOrder(t *testing.T) {
	host := NewServiceHost()

	var mu sync.Mutex
	var starts, stops []string

	alpha := &serviceTracker{name: "alpha"}
	beta := &serviceTracker{name: "beta"}

	if err := host.Register("alpha", alpha.factory(&starts, &stops, &mu)); err != nil {
		t.Fatalf("register alpha: %v", err)
	}
	if err := host.Register("beta", beta.factory(&starts, &stops, &mu)); err != nil {
		t.Fatalf("register beta: %v", err)
	}

	if err := host.Start(context.Background()); err != nil {
		t.Fatalf("start host: %v", err)
	}

	if want := []string{"alpha", "beta"}; !slicesEqual(starts, want) {
		t.Fatalf("start order mismatch, want %v got %v", want, starts)
	}

	if err := host.Stop(context.Background()); err != nil {
		t.Fatalf("stop host: %v", err)
	}

	if want := []string{"beta", "alpha"}; !slicesEqual(stops, want) {
		t.Fatalf("stop order mismatch, want %v got %v", want, stops)
	}
}

func TestServiceHostRegisterGuards(t *testing.T) {
	host := NewServiceHost()
	tracker := &serviceTracker{name: "svc"}

	if err := host.Register("svc", tracker.factory(nil, nil, nil)); err != nil {
		t.Fatalf("register svc: %v", err)
	}

	if err := host.Register("svc", tracker.factory(nil, nil, nil)); err == nil {
		t.Fatalf("expected duplicate registration error")
	}

	if err := host.Start(context.Background()); err != nil {
		t.Fatalf("start host: %v", err)
	}
	defer host.Stop(context.Background())

	if err := host.Register("late", tracker.factory(nil, nil, nil)); err == nil {
		t.Fatalf("expected registration after start to fail")
	}
}

func TestServiceHostStartRollbackOnFailure(t *testing.T) {
	host := NewServiceHost()

	alpha := &serviceTracker{name: "alpha"}
	beta := &serviceTracker{name: "beta", startErr: errors.New("boom")}

	if err := host.Register("alpha", alpha.factory(nil, nil, nil)); err != nil {
		t.Fatalf("register alpha: %v", err)
	}
	if err := host.Register("beta", beta.factory(nil, nil, nil)); err != nil {
		t.Fatalf("register beta: %v", err)
	}

	if err := host.Start(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}

	if alpha.shutdownCount != 1 {
		t.Fatalf("expected alpha shutdown during rollback, got %d", alpha.shutdownCount)
	}
	if beta.startCount != 1 {
		t.Fatalf("expected beta start attempt, got %d", beta.startCount)
	}
}

func TestServiceHostPropagatesServiceErrors(t *testing.T) {
	host := NewServiceHost()
	tracker := &serviceTracker{name: "observable", errCh: make(chan error, 1)}

	if err := host.Register("observable", tracker.factory(nil, nil, nil)); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := host.Start(context.Background()); err != nil {
		t.Fatalf("start host: %v", err)
	}
	defer host.Stop(context.Background())

	wantErr := errors.New("service failure")
	tracker.errCh <- wantErr

	select {
	case err := <-host.Errors():
		if err == nil || !errors.Is(err, wantErr) {
			t.Fatalf("unexpected error propagated: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for propagated error")
	}
}

func TestServiceHostNamesAndPrebuiltServices(t *testing.T) {
	host := NewServiceHost()
	var mu sync.Mutex
	var starts []string

	first := &trackedService{tracker: &serviceTracker{name: "pipeline"}, recordStarts: &starts, recordMu: &mu}
	second := &trackedService{tracker: &serviceTracker{name: "core"}, recordStarts: &starts, recordMu: &mu}
	if err := host.RegisterService("pipeline", first); err != nil {
		t.Fatalf("register pipeline: %v", err)
	}
	if err := host.RegisterService("core", second, WithShutdownTimeout(time.Second)); err != nil {
		t.Fatalf("register core: %v", err)
	}

	if want := []string{"pipeline", "core"}; !slicesEqual(host.Names(), want) {
		t.Fatalf("names mismatch, want %v got %v", want, host.Names())
	}

	if err := host.Start(context.Background()); err != nil {
		t.Fatalf("start host: %v", err)
	}
	if err := host.Stop(context.Background()); err != nil {
		t.Fatalf("stop host: %v", err)
	}
	if want := []string{"pipeline", "core"}; !slicesEqual(starts, want) {
		t.Fatalf("start order mismatch, want %v got %v", want, starts)
	}
}

func TestServiceHostStopReportsEveryFailure(t *testing.T) {
	host := NewServiceHost()
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	a := &serviceTracker{name: "a", shutdownErr: errA}
	b := &serviceTracker{name: "b", shutdownErr: errB}

	if err := host.Register("a", a.factory(nil, nil, nil)); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := host.Register("b", b.factory(nil, nil, nil)); err != nil {
		t.Fatalf("register b: %v", err)
	}
	if err := host.Start(context.Background()); err != nil {
		t.Fatalf("start host: %v", err)
	}

	err := host.Stop(context.Background())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected both shutdown errors, got %v", err)
	}
	if a.shutdownCount != 1 || b.shutdownCount != 1 {
		t.Fatalf("expected one shutdown each, got a=%d b=%d", a.shutdownCount, b.shutdownCount)
	}

	// A stopped host can be stopped again without touching services.
	if err := host.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestServiceHostCanStartAfterFailedStart(t *testing.T) {
	host := NewServiceHost()
	flaky := &serviceTracker{name: "flaky", startErr: errors.New("not yet")}
	if err := host.Register("flaky", flaky.factory(nil, nil, nil)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := host.Start(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}

	flaky.startErr = nil
	if err := host.Start(context.Background()); err != nil {
		t.Fatalf("second start: %v", err)
	}
	defer host.Stop(context.Background())
	if flaky.startCount != 2 {
		t.Fatalf("expected two start attempts, got %d", flaky.startCount)
	}
}

func TestPIDFileLifecycle(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "chorusd.pid")

	if err := WritePIDFile(pidPath, 1234); err != nil {
		t.Fatalf("write pid: %v", err)
	}

	info, err := os.Stat(pidPath)
	if err != nil {
		t.Fatalf("stat pid: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 perms, got %o", perm)
	}

	data, err := os.ReadFile(pidPath)
	if err != nil {
		t.Fatalf("read pid: %v", err)
	}
	if string(data) != "1234" {
		t.Fatalf("expected pid 1234, got %s", string(data))
	}

	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if pid != 1234 {
		t.Fatalf("expected pid 1234 from ReadPIDFile, got %d", pid)
	}

	RemovePIDFile(pidPath)
	if _, err := os.Stat(pidPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected pid file removed, got err=%v", err)
	}
	if _, err := ReadPIDFile(pidPath); err == nil {
		t.Fatalf("expected error reading removed pid file")
	}
}

func slicesEqual[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
