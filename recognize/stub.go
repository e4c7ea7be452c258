package recognize

import (
	"context"
	"fmt"
	"sync"
)

// StubEngine produces deterministic results without a real recognizer.
// With a script it replays one result per Feed call, which is how the
// source and session tests drive exact event sequences. Without a
// script it emits a placeholder transcript per second of audio so the
// app remains demonstrable on unprovisioned machines.
type StubEngine struct {
	script []Result
}

func NewStub(script []Result) *StubEngine {
	return &StubEngine{script: script}
}

func (e *StubEngine) Name() string { return "stub" }

func (e *StubEngine) Start(_ context.Context, cfg Config) (Stream, error) {
	var script []Result
	if e.script != nil {
		script = make([]Result, len(e.script))
		copy(script, e.script)
	}
	return &stubStream{
		script:     script,
		scripted:   e.script != nil,
		interim:    cfg.InterimResults,
		sampleRate: cfg.SampleRate,
		results:    make(chan Result, 16),
	}, nil
}

type stubStream struct {
	script     []Result
	scripted   bool
	interim    bool
	sampleRate int
	results    chan Result

	mu        sync.Mutex
	pos       int
	fedBytes  int
	emitted   int
	closed    bool
	exhausted bool
}

func (s *stubStream) Feed(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.exhausted {
		return
	}

	if s.scripted {
		if s.pos >= len(s.script) {
			return
		}
		res := s.script[s.pos]
		s.pos++
		s.emit(res)
		return
	}

	// Placeholder mode: one synthetic final per second of fed PCM.
	s.fedBytes += len(pcm)
	if s.sampleRate <= 0 {
		return
	}
	bytesPerSecond := s.sampleRate * 2
	for s.fedBytes >= bytesPerSecond {
		s.fedBytes -= bytesPerSecond
		s.emitted++
		if s.interim {
			s.emit(Result{Text: fmt.Sprintf("stub transcript %d", s.emitted)})
		}
		s.emit(Result{Text: fmt.Sprintf("stub transcript %d", s.emitted), Final: true, Confidence: 0.42})
	}
}

// emit is non-blocking; a slow consumer loses stub results rather than
// stalling the capture callback. An error result ends the stream even
// when its delivery is dropped, so the consumer always sees the channel
// close. Caller holds mu.
func (s *stubStream) emit(res Result) {
	select {
	case s.results <- res:
	default:
	}
	if res.Err != nil {
		s.exhausted = true
		s.closeResults()
	}
}

func (s *stubStream) closeResults() {
	if !s.closed {
		s.closed = true
		close(s.results)
	}
}

func (s *stubStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeResults()
	return nil
}

func (s *stubStream) Results() <-chan Result { return s.results }
