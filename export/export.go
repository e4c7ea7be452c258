// Package export renders the committed transcript into downloadable
// TXT, JSON and SRT payloads. Pure formatting: exporting never mutates
// the document.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"voiceflow/reconcile"
	"voiceflow/settings"
)

// ErrNoContent aborts an export when there is nothing to format; no
// partial file is produced.
var ErrNoContent = errors.New("no transcription content to export")

// Cues carry a fixed synthetic duration because segment timestamps are
// wall-clock capture times, not audio-relative offsets.
const srtCueDuration = 3 * time.Second

// Document is the export view of a finished (or in-progress) session.
type Document struct {
	Text       string              `json:"text"`
	Language   string              `json:"language"`
	Confidence float64             `json:"confidence"`
	WordCount  int                 `json:"wordCount"`
	Timestamp  time.Time           `json:"timestamp"`
	Settings   map[string]any      `json:"settings"`
	History    []reconcile.Segment `json:"history"`
}

// MIMEType returns the content type for a format.
func MIMEType(f settings.Format) string {
	if f == settings.FormatJSON {
		return "application/json"
	}
	return "text/plain"
}

// Filename derives the download name from the export time, with colons
// replaced so the ISO timestamp survives as a file name.
func Filename(f settings.Format, t time.Time) string {
	stamp := strings.ReplaceAll(t.UTC().Format("2006-01-02T15:04:05.000Z"), ":", "-")
	return fmt.Sprintf("transcript-%s.%s", stamp, f)
}

// Render formats the document in the requested format.
func Render(f settings.Format, doc Document, includeHeader bool) ([]byte, error) {
	switch f {
	case settings.FormatJSON:
		return JSON(doc)
	case settings.FormatSRT:
		return SRT(doc)
	default:
		return TXT(doc, includeHeader)
	}
}

// TXT renders plain text, optionally prefixed with a metadata header.
func TXT(doc Document, includeHeader bool) ([]byte, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, ErrNoContent
	}
	if !includeHeader {
		return []byte(doc.Text + "\n"), nil
	}

	var b strings.Builder
	b.WriteString("Voice Transcription\n")
	fmt.Fprintf(&b, "Generated: %s\n", doc.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Language: %s\n", doc.Language)
	fmt.Fprintf(&b, "Confidence: %.0f%%\n", doc.Confidence*100)
	fmt.Fprintf(&b, "Words: %d\n", doc.WordCount)
	b.WriteString(strings.Repeat("-", 40))
	b.WriteString("\n\n")
	b.WriteString(doc.Text)
	b.WriteString("\n")
	return []byte(b.String()), nil
}

// JSON serializes the whole document.
func JSON(doc Document) ([]byte, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, ErrNoContent
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// SRT emits one numbered cue per history entry. Cue times are the
// wall-clock capture times of the segments, so subtitles line up with
// when words were spoken during the session, not with an audio track.
func SRT(doc Document) ([]byte, error) {
	if len(doc.History) == 0 {
		return nil, ErrNoContent
	}

	var b strings.Builder
	for i, seg := range doc.History {
		start := seg.Timestamp
		end := start.Add(srtCueDuration)
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", srtTime(start), srtTime(end))
		b.WriteString(seg.Text)
		b.WriteString("\n\n")
	}
	return []byte(b.String()), nil
}

func srtTime(t time.Time) string {
	return fmt.Sprintf("%s,%03d", t.Format("15:04:05"), t.Nanosecond()/1e6)
}
