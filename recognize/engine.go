// Package recognize abstracts continuous, interim-capable speech
// recognition engines used by the local transcript source.
package recognize

import (
	"context"
	"errors"

	"voiceflow/log"
)

// ErrNoSpeech ends a stream when the engine gave up waiting for voice.
// The local source treats it as transient and restarts the engine while
// the session is still recording.
var ErrNoSpeech = errors.New("no speech detected")

type Config struct {
	Language        string
	SampleRate      int
	InterimResults  bool
	MaxAlternatives int
}

// Result is one recognition update. A terminal failure is delivered as
// the last result with Err set, after which the stream's channel closes.
type Result struct {
	Text       string
	Final      bool
	Confidence float64
	Err        error
}

// Stream is a single continuous recognition run over fed PCM.
type Stream interface {
	Feed(pcm []byte)
	Results() <-chan Result
	Close() error
}

type Engine interface {
	Name() string
	Start(ctx context.Context, cfg Config) (Stream, error)
}

// New picks the engine for the configured command line. An empty
// command falls back to the stub engine so the rest of the app stays
// usable on machines without a local recognizer installed.
func New(command string) (Engine, error) {
	if command == "" {
		log.Warn("no local engine configured; using stub recognizer")
		return NewStub(nil), nil
	}
	return NewCommand(command)
}
