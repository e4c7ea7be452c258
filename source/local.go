package source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"voiceflow/log"
	"voiceflow/recognize"
)

// Local wraps a continuous recognition engine. When the engine reports
// a no-speech timeout the source restarts it transparently, as long as
// the session is still recording.
type Local struct {
	engine        recognize.Engine
	cfg           recognize.Config
	minConfidence float64
	notify        NotifyFunc

	events chan Event

	mu      sync.Mutex
	active  bool
	stream  recognize.Stream
	cancel  context.CancelFunc
	stopped chan struct{}
	done    chan struct{}
}

type LocalConfig struct {
	Language        string
	SampleRate      int
	InterimResults  bool
	MaxAlternatives int
	// ConfidenceThreshold is the settings slider value (0-100); engine
	// finals below it are dropped.
	ConfidenceThreshold int
}

func NewLocal(engine recognize.Engine, cfg LocalConfig, notify NotifyFunc) *Local {
	return &Local{
		engine: engine,
		cfg: recognize.Config{
			Language:        cfg.Language,
			SampleRate:      cfg.SampleRate,
			InterimResults:  cfg.InterimResults,
			MaxAlternatives: cfg.MaxAlternatives,
		},
		minConfidence: float64(cfg.ConfidenceThreshold) / 100,
		notify:        notify,
		events:        make(chan Event, 32),
		stopped:       make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (l *Local) Name() string { return SourceLocal }

func (l *Local) Events() <-chan Event { return l.events }

func (l *Local) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	stream, err := l.engine.Start(runCtx, l.cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("local recognizer start: %w", err)
	}

	l.active = true
	l.cancel = cancel
	l.stream = stream
	go l.run(runCtx, stream)
	return nil
}

// run consumes one engine stream and restarts the engine after
// transient no-speech endings until the source is stopped.
func (l *Local) run(ctx context.Context, stream recognize.Stream) {
	defer close(l.done)
	for {
		for res := range stream.Results() {
			if res.Err != nil {
				if errors.Is(res.Err, recognize.ErrNoSpeech) {
					l.notify.notify(res.Err)
					log.Info("local recognizer restart after no-speech")
					break
				}
				l.notify.notify(res.Err)
				log.Errorf("local recognizer: %v", res.Err)
				return
			}
			if res.Final && res.Confidence < l.minConfidence {
				log.Infof("dropped low-confidence final (%.2f)", res.Confidence)
				continue
			}
			if !l.emit(Event{
				Text:       res.Text,
				Final:      res.Final,
				Confidence: res.Confidence,
				Source:     SourceLocal,
			}) {
				return
			}
		}

		stream.Close()
		select {
		case <-l.stopped:
			return
		case <-ctx.Done():
			return
		default:
		}

		next, err := l.engine.Start(ctx, l.cfg)
		if err != nil {
			l.notify.notify(err)
			log.Errorf("local recognizer restart: %v", err)
			return
		}
		l.mu.Lock()
		l.stream = next
		l.mu.Unlock()
		stream = next
	}
}

// emit delivers an event unless the source has been deactivated, in
// which case the event is discarded. Reports whether delivery may
// continue.
func (l *Local) emit(ev Event) bool {
	select {
	case <-l.stopped:
		return false
	default:
	}
	select {
	case l.events <- ev:
		return true
	case <-l.stopped:
		return false
	}
}

func (l *Local) Feed(pcm []byte) {
	l.mu.Lock()
	stream := l.stream
	active := l.active
	l.mu.Unlock()
	if active && stream != nil {
		stream.Feed(pcm)
	}
}

func (l *Local) Stop() error {
	l.mu.Lock()
	if !l.active {
		l.mu.Unlock()
		return nil
	}
	l.active = false
	stream := l.stream
	cancel := l.cancel
	l.mu.Unlock()

	close(l.stopped)
	if stream != nil {
		stream.Close()
	}
	cancel()
	<-l.done
	close(l.events)
	return nil
}
