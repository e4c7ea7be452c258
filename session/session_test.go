package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voiceflow/audio"
	"voiceflow/source"
)

// testSource is a hand-driven transcript source for session tests.
type testSource struct {
	name      string
	failStart error
	events    chan source.Event

	mu      sync.Mutex
	started int
	stopped bool
	fed     int
}

func newTestSource(name string) *testSource {
	return &testSource{name: name, events: make(chan source.Event, 8)}
}

func (s *testSource) Name() string { return s.name }

func (s *testSource) Start(context.Context) error {
	if s.failStart != nil {
		return s.failStart
	}
	s.mu.Lock()
	s.started++
	s.mu.Unlock()
	return nil
}

func (s *testSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		close(s.events)
	}
	return nil
}

func (s *testSource) Feed(pcm []byte) {
	s.mu.Lock()
	s.fed += len(pcm)
	s.mu.Unlock()
}

func (s *testSource) Events() <-chan source.Event { return s.events }

func (s *testSource) fedBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fed
}

func (s *testSource) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func testConfig(factory SourceFactory) Config {
	return Config{
		Audio:   audio.NewFakeContext(make([]byte, 4096), 16000),
		Capture: audio.CaptureConfig{SampleRate: 16000, Channels: 1},
		Sources: factory,
	}
}

func TestStateTransitions(t *testing.T) {
	s := New(testConfig(nil))
	if got := s.State(); got != Idle {
		t.Fatalf("initial state = %s", got)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := s.State(); got != Recording {
		t.Fatalf("state after start = %s", got)
	}
	s.Pause()
	if got := s.State(); got != Paused {
		t.Fatalf("state after pause = %s", got)
	}
	if err := s.Resume(); err != nil {
		t.Fatal(err)
	}
	if got := s.State(); got != Recording {
		t.Fatalf("state after resume = %s", got)
	}
	s.Stop()
	if got := s.State(); got != Stopped {
		t.Fatalf("state after stop = %s", got)
	}
}

func TestStartFromNonIdleFails(t *testing.T) {
	s := New(testConfig(nil))
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("second start should fail")
	}
}

func TestStartPermissionDenied(t *testing.T) {
	cfg := testConfig(nil)
	cfg.Audio = audio.NewFailingContext(audio.ErrPermissionDenied)
	s := New(cfg)
	err := s.Start(context.Background())
	if !errors.Is(err, audio.ErrPermissionDenied) {
		t.Fatalf("err = %v", err)
	}
	if got := s.State(); got != Idle {
		t.Fatalf("failed start should leave session idle, got %s", got)
	}
	s.Stop()
}

func TestStopIdempotent(t *testing.T) {
	s := New(testConfig(nil))
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.Stop()
	s.Stop()
	if got := s.State(); got != Stopped {
		t.Fatalf("state = %s", got)
	}
}

func TestPauseResumeWrongStateNoops(t *testing.T) {
	s := New(testConfig(nil))
	s.Pause()
	if got := s.State(); got != Idle {
		t.Fatalf("pause from idle moved state to %s", got)
	}
	if err := s.Resume(); err != nil {
		t.Fatalf("resume from idle: %v", err)
	}
	if got := s.State(); got != Idle {
		t.Fatalf("resume from idle moved state to %s", got)
	}
	s.Stop()
}

func TestEventsForwarded(t *testing.T) {
	src := newTestSource("test")
	s := New(testConfig(func() ([]source.Source, error) {
		return []source.Source{src}, nil
	}))
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	want := source.Event{Text: "hello", Final: true, Confidence: 0.9, Source: "test"}
	src.events <- want

	select {
	case got := <-s.Events():
		if got != want {
			t.Fatalf("event = %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("event not forwarded")
	}
}

func TestEventsChannelClosesAfterStop(t *testing.T) {
	src := newTestSource("test")
	s := New(testConfig(func() ([]source.Source, error) {
		return []source.Source{src}, nil
	}))
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.Stop()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-s.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events channel did not close")
		}
	}
}

func TestPauseRebuildsSourcesOnResume(t *testing.T) {
	var built []*testSource
	s := New(testConfig(func() ([]source.Source, error) {
		src := newTestSource("test")
		built = append(built, src)
		return []source.Source{src}, nil
	}))
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	s.Pause()
	if len(built) != 1 {
		t.Fatalf("built %d sources, want 1", len(built))
	}
	built[0].mu.Lock()
	stopped := built[0].stopped
	built[0].mu.Unlock()
	if !stopped {
		t.Fatal("pause should deactivate sources")
	}

	if err := s.Resume(); err != nil {
		t.Fatal(err)
	}
	if len(built) != 2 {
		t.Fatalf("resume should build a fresh source set, built %d", len(built))
	}
	if built[1].startCount() != 1 {
		t.Fatalf("second source started %d times", built[1].startCount())
	}
}

func TestSourceStartFailureIsSkipped(t *testing.T) {
	bad := newTestSource("bad")
	bad.failStart = errors.New("engine missing")
	good := newTestSource("good")

	var noticed error
	cfg := testConfig(func() ([]source.Source, error) {
		return []source.Source{bad, good}, nil
	})
	cfg.Hooks.OnNotice = func(err error) { noticed = err }

	s := New(cfg)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	if got := s.State(); got != Recording {
		t.Fatalf("state = %s; one bad source must not stop the session", got)
	}
	if noticed == nil {
		t.Fatal("start failure not surfaced via OnNotice")
	}
	if good.startCount() != 1 {
		t.Fatal("remaining source should still be started")
	}
}

func TestCapturedAudioFeedsSources(t *testing.T) {
	src := newTestSource("test")
	s := New(testConfig(func() ([]source.Source, error) {
		return []source.Source{src}, nil
	}))
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	deadline := time.Now().Add(time.Second)
	for src.fedBytes() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no audio reached the source")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLevelHookFires(t *testing.T) {
	var mu sync.Mutex
	levels := 0
	cfg := testConfig(nil)
	cfg.Hooks.OnLevel = func(float64) {
		mu.Lock()
		levels++
		mu.Unlock()
	}
	s := New(cfg)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := levels
		mu.Unlock()
		if n > 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("level hook never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
