// Package session owns the microphone capture lifecycle and the
// activation of transcript sources around it.
package session

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"voiceflow/audio"
	"voiceflow/log"
	"voiceflow/source"
)

type State int

const (
	Idle State = iota
	Recording
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

const tickInterval = 100 * time.Millisecond

// Hooks deliver session-side telemetry to the UI. All fields are
// optional.
type Hooks struct {
	OnTick   func(elapsed time.Duration)
	OnLevel  func(rms float64)
	OnPCM    func(data []byte)
	OnNotice func(err error)
}

func (h Hooks) notice(err error) {
	if h.OnNotice != nil && err != nil {
		h.OnNotice(err)
	}
}

// SourceFactory builds a fresh set of transcript sources. It is called
// on every transition into Recording, so sources always see the
// settings that were current when the session (re)activated them.
type SourceFactory func() ([]source.Source, error)

type Config struct {
	Audio   audio.Context
	Device  *audio.DeviceInfo
	Capture audio.CaptureConfig
	Sources SourceFactory
	Hooks   Hooks
}

// Session is a single recording session: Idle → Recording ⇄ Paused →
// Stopped. Exactly one capture device instance exists per session and
// is released on Stop.
type Session struct {
	cfg Config

	mu          sync.Mutex
	state       State
	capture     audio.CaptureDevice
	sources     []source.Source
	cancel      context.CancelFunc
	runCtx      context.Context
	accumulated time.Duration
	resumedAt   time.Time

	events   chan source.Event
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(cfg Config) *Session {
	s := &Session{
		cfg:    cfg,
		events: make(chan source.Event, 64),
		stopCh: make(chan struct{}),
	}
	go s.closeEventsWhenDone()
	return s
}

// Events is the merged transcript event stream from all active
// sources, in arrival order, consumed by the reconciler in one loop.
// No ordering is guaranteed across sources in hybrid mode, and
// duplicates between them are not removed. The channel closes after
// Stop once all sources have drained.
func (s *Session) Events() <-chan source.Event { return s.events }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Elapsed is the recorded duration, excluding paused spans.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

func (s *Session) elapsedLocked() time.Duration {
	if s.state == Recording {
		return s.accumulated + time.Since(s.resumedAt)
	}
	return s.accumulated
}

// Start acquires the capture device and activates the configured
// sources. On failure the session stays Idle and the error reports
// either a permission refusal or an unavailable device.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return fmt.Errorf("start from %s state", s.state)
	}
	s.mu.Unlock()

	capture, err := s.cfg.Audio.NewCapture(s.cfg.Device, s.cfg.Capture)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	sources := s.activateSources(runCtx)

	capture.SetCallback(s.onPCM)
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		s.deactivateSources(sources)
		cancel()
		return err
	}

	s.mu.Lock()
	s.runCtx = runCtx
	s.cancel = cancel
	s.capture = capture
	s.sources = sources
	s.state = Recording
	s.resumedAt = time.Now()
	s.mu.Unlock()

	s.wg.Add(1)
	go s.tickLoop()

	log.Infof("session started on %q with %d source(s)", capture.DeviceName(), len(sources))
	return nil
}

// activateSources builds and starts a fresh source set. A source that
// fails to start is reported and skipped; the session records
// regardless so the remaining sources keep captioning.
func (s *Session) activateSources(ctx context.Context) []source.Source {
	if s.cfg.Sources == nil {
		return nil
	}
	built, err := s.cfg.Sources()
	if err != nil {
		s.cfg.Hooks.notice(err)
		log.Errorf("source construction: %v", err)
		return nil
	}

	var active []source.Source
	for _, src := range built {
		if err := src.Start(ctx); err != nil {
			s.cfg.Hooks.notice(err)
			log.Errorf("source %s start: %v", src.Name(), err)
			continue
		}
		active = append(active, src)
		s.wg.Add(1)
		go s.forward(src)
	}
	return active
}

func (s *Session) deactivateSources(sources []source.Source) {
	for _, src := range sources {
		if err := src.Stop(); err != nil {
			log.Warnf("source %s stop: %v", src.Name(), err)
		}
	}
}

// forward relays one source's events onto the merged stream. Events
// arriving once the session has stopped are discarded.
func (s *Session) forward(src source.Source) {
	defer s.wg.Done()
	for ev := range src.Events() {
		select {
		case <-s.stopCh:
			continue // drain and discard
		default:
		}
		select {
		case s.events <- ev:
			log.SourceEvent(ev.Source, ev.Final, ev.Confidence, len(ev.Text))
		case <-s.stopCh:
		}
	}
}

func (s *Session) onPCM(data []byte, _ uint32) {
	s.mu.Lock()
	if s.state != Recording {
		s.mu.Unlock()
		return
	}
	sources := s.sources
	s.mu.Unlock()

	if len(data) == 0 {
		return
	}
	pcm := make([]byte, len(data))
	copy(pcm, data)
	for _, src := range sources {
		src.Feed(pcm)
	}
	if s.cfg.Hooks.OnPCM != nil {
		s.cfg.Hooks.OnPCM(pcm)
	}
	if s.cfg.Hooks.OnLevel != nil {
		s.cfg.Hooks.OnLevel(rmsLevel(pcm))
	}
}

func rmsLevel(data []byte) float64 {
	if len(data) < 2 {
		return 0
	}
	var sumSquares float64
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(len(data)/2))
}

func (s *Session) tickLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			state := s.state
			elapsed := s.elapsedLocked()
			s.mu.Unlock()
			if state == Recording && s.cfg.Hooks.OnTick != nil {
				s.cfg.Hooks.OnTick(elapsed)
			}
		}
	}
}

func (s *Session) closeEventsWhenDone() {
	<-s.stopCh
	s.wg.Wait()
	close(s.events)
}

// Pause suspends capture and deactivates sources. No-op unless
// Recording.
func (s *Session) Pause() {
	s.mu.Lock()
	if s.state != Recording {
		s.mu.Unlock()
		return
	}
	s.accumulated += time.Since(s.resumedAt)
	s.state = Paused
	capture := s.capture
	sources := s.sources
	s.sources = nil
	s.mu.Unlock()

	capture.Stop()
	s.deactivateSources(sources)
	log.Info("session paused")
}

// Resume reactivates a fresh source set and restarts capture. No-op
// unless Paused.
func (s *Session) Resume() error {
	s.mu.Lock()
	if s.state != Paused {
		s.mu.Unlock()
		return nil
	}
	capture := s.capture
	runCtx := s.runCtx
	s.mu.Unlock()

	sources := s.activateSources(runCtx)
	if err := capture.Start(); err != nil {
		s.deactivateSources(sources)
		return err
	}

	s.mu.Lock()
	s.sources = sources
	s.state = Recording
	s.resumedAt = time.Now()
	s.mu.Unlock()
	log.Info("session resumed")
	return nil
}

// Stop releases the capture device unconditionally and deactivates all
// sources. Always succeeds and is idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return
	}
	if s.state == Recording {
		s.accumulated += time.Since(s.resumedAt)
	}
	s.state = Stopped
	capture := s.capture
	s.capture = nil
	sources := s.sources
	s.sources = nil
	cancel := s.cancel
	s.mu.Unlock()

	if capture != nil {
		capture.Stop()
		capture.ClearCallback()
		capture.Close()
	}
	s.deactivateSources(sources)
	if cancel != nil {
		cancel()
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	log.Info("session stopped")
}
