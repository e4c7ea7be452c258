// Package reconcile merges interim and final transcript events from
// whichever sources are active into a single committed-text-plus-live-
// preview model.
package reconcile

import (
	"strings"
	"sync"
	"time"

	"voiceflow/source"
)

// Finals shorter than this many words are committed as heard;
// punctuation normalization only touches sentence-length text.
const minPunctuationWords = 3

// Segment is one committed transcript entry.
type Segment struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

type Config struct {
	// AutoPunctuation appends a terminal period to unpunctuated finals.
	AutoPunctuation bool
	// RealTime enables the live preview; when off, interim events are
	// discarded entirely.
	RealTime bool
}

// Reconciler holds the committed transcript and the single live
// preview for a session. Events from concurrent sources are applied in
// arrival order; duplicate text from overlapping sources is not
// removed.
type Reconciler struct {
	cfg Config
	now func() time.Time

	mu            sync.Mutex
	committed     strings.Builder
	preview       string
	history       []Segment
	maxConfidence float64
}

func New(cfg Config) *Reconciler {
	return &Reconciler{cfg: cfg, now: time.Now}
}

// Update reports what changed after applying one event.
type Update struct {
	Committed        bool
	Preview          bool
	CommittedSegment string
}

// Apply consumes one transcript event. Interim events replace the live
// preview wholesale; final events commit and clear it.
func (r *Reconciler) Apply(ev source.Event) Update {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !ev.Final {
		if !r.cfg.RealTime {
			return Update{}
		}
		r.preview = ev.Text
		return Update{Preview: true}
	}

	text := r.normalize(ev.Text)
	if text == "" {
		changed := r.preview != ""
		r.preview = ""
		return Update{Preview: changed}
	}

	if r.committed.Len() > 0 && !endsWithSpace(r.committed.String()) {
		r.committed.WriteByte(' ')
	}
	r.committed.WriteString(text)

	if ev.Confidence > r.maxConfidence {
		r.maxConfidence = ev.Confidence
	}
	r.history = append(r.history, Segment{
		Text:       text,
		Confidence: ev.Confidence,
		Timestamp:  r.now(),
	})
	r.preview = ""
	return Update{Committed: true, Preview: true, CommittedSegment: text}
}

func (r *Reconciler) normalize(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if !r.cfg.AutoPunctuation {
		return text
	}
	if len(strings.Fields(text)) < minPunctuationWords {
		return text
	}
	switch text[len(text)-1] {
	case '.', '!', '?':
		return text
	}
	return text + "."
}

// Append joins a committed segment onto existing document text with
// the single-separating-space rule. The document may have been edited
// or undone since the last commit; new segments always attach to what
// the user currently sees, not to the reconciler's own record.
func Append(text, segment string) string {
	if segment == "" {
		return text
	}
	if text == "" || endsWithSpace(text) {
		return text + segment
	}
	return text + " " + segment
}

func endsWithSpace(s string) bool {
	if s == "" {
		return false
	}
	last := s[len(s)-1]
	return last == ' ' || last == '\n' || last == '\t'
}

// Committed returns the full committed transcript text.
func (r *Reconciler) Committed() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed.String()
}

// Preview returns the current not-yet-finalized text.
func (r *Reconciler) Preview() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.preview
}

// Confidence is the maximum confidence seen among final events this
// session.
func (r *Reconciler) Confidence() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxConfidence
}

// History returns a copy of the committed segments.
func (r *Reconciler) History() []Segment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Segment, len(r.history))
	copy(out, r.history)
	return out
}

// WordCount counts words in the committed transcript.
func (r *Reconciler) WordCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(strings.Fields(r.committed.String()))
}

// Clear drops the committed transcript, preview and history. Explicit
// user action only; nothing else shrinks the transcript.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed.Reset()
	r.preview = ""
	r.history = nil
	r.maxConfidence = 0
}
