// Package source defines the transcript source capability and its two
// variants: a local recognition engine and a remote streaming service.
package source

import (
	"context"
	"errors"
)

const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// ErrTransport reports a failed or dropped remote connection. The
// session is not stopped on it; the remote source just goes quiet until
// the user starts a new session.
var ErrTransport = errors.New("transcription service connection lost")

// Event is a single transcript update, consumed exactly once by the
// reconciler.
type Event struct {
	Text       string
	Final      bool
	Confidence float64 // 0..1
	Source     string
}

// Source produces transcript events while active. Feed hands it
// captured PCM; sources that do not consume audio ignore it. Events
// closes once the source has fully stopped, and nothing is emitted
// after Stop returns.
type Source interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Feed(pcm []byte)
	Events() <-chan Event
}

// NotifyFunc surfaces user-visible source conditions (transient
// recognition errors, transport drops). A nil NotifyFunc is valid.
type NotifyFunc func(err error)

func (f NotifyFunc) notify(err error) {
	if f != nil && err != nil {
		f(err)
	}
}
