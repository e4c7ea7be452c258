package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"voiceflow/reconcile"
	"voiceflow/settings"
)

func testDoc() Document {
	stamp := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	return Document{
		Text:       "Hello world. This is a test.",
		Language:   "en-US",
		Confidence: 0.92,
		WordCount:  6,
		Timestamp:  stamp,
		Settings:   settings.Default().Map(),
		History: []reconcile.Segment{
			{Text: "Hello world.", Confidence: 0.92, Timestamp: stamp},
			{Text: "This is a test.", Confidence: 0.88, Timestamp: stamp.Add(5 * time.Second)},
		},
	}
}

func TestFilename(t *testing.T) {
	stamp := time.Date(2026, 3, 14, 10, 30, 45, 123e6, time.UTC)
	got := Filename(settings.FormatTXT, stamp)
	want := "transcript-2026-03-14T10-30-45.123Z.txt"
	if got != want {
		t.Fatalf("filename = %q, want %q", got, want)
	}
	if strings.Contains(got, ":") {
		t.Fatal("filename must not contain colons")
	}
}

func TestMIMEType(t *testing.T) {
	if got := MIMEType(settings.FormatJSON); got != "application/json" {
		t.Fatalf("json mime = %q", got)
	}
	if got := MIMEType(settings.FormatTXT); got != "text/plain" {
		t.Fatalf("txt mime = %q", got)
	}
	if got := MIMEType(settings.FormatSRT); got != "text/plain" {
		t.Fatalf("srt mime = %q", got)
	}
}

func TestTXTWithHeader(t *testing.T) {
	data, err := TXT(testDoc(), true)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		"Voice Transcription",
		"Language: en-US",
		"Confidence: 92%",
		"Words: 6",
		strings.Repeat("-", 40),
		"Hello world. This is a test.",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("txt output missing %q:\n%s", want, out)
		}
	}
}

func TestTXTWithoutHeader(t *testing.T) {
	data, err := TXT(testDoc(), false)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "Hello world. This is a test.\n" {
		t.Fatalf("txt output = %q", got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	data, err := JSON(testDoc())
	if err != nil {
		t.Fatal(err)
	}
	var got Document
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Text != "Hello world. This is a test." || got.Language != "en-US" || got.WordCount != 6 {
		t.Fatalf("decoded doc = %+v", got)
	}
	if len(got.History) != 2 {
		t.Fatalf("history length = %d", len(got.History))
	}
	if got.Settings["processingMode"] != "local" {
		t.Fatalf("settings not embedded: %v", got.Settings)
	}
}

func TestSRTCues(t *testing.T) {
	data, err := SRT(testDoc())
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	// Each segment becomes one numbered cue with a fixed 3s duration.
	for _, want := range []string{
		"1\n10:30:00,000 --> 10:30:03,000\nHello world.\n",
		"2\n10:30:05,000 --> 10:30:08,000\nThis is a test.\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("srt output missing %q:\n%s", want, out)
		}
	}
}

func TestEmptyDocumentFailsEveryFormat(t *testing.T) {
	empty := Document{Text: "   "}
	for _, f := range []settings.Format{settings.FormatTXT, settings.FormatJSON, settings.FormatSRT} {
		if _, err := Render(f, empty, true); err != ErrNoContent {
			t.Fatalf("%s: err = %v, want ErrNoContent", f, err)
		}
	}
}

func TestRenderDispatch(t *testing.T) {
	doc := testDoc()
	txt, err := Render(settings.FormatTXT, doc, false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(txt), "Hello world.") {
		t.Fatalf("txt = %q", txt)
	}
	j, err := Render(settings.FormatJSON, doc, false)
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(j) {
		t.Fatal("json output invalid")
	}
	srt, err := Render(settings.FormatSRT, doc, false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(srt), "1\n") {
		t.Fatalf("srt = %q", srt)
	}
}
