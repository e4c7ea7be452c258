package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func initTestLog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	SetDir(dir)
	if err := Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(Close)
	return dir
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestStreamMetricsWritesAllFields(t *testing.T) {
	dir := initTestLog(t)
	StreamMetrics(StreamMetricsData{
		ConnectMs:    12,
		TotalMs:      340,
		RecvMessages: 5,
		RecvFinal:    2,
		RecvInterim:  3,
		Pings:        1,
	})
	Close()

	out := readLog(t, filepath.Join(dir, "diagnostics_log.txt"))
	for _, want := range []string{
		"stream_transcription",
		"connect_ms=", "total_ms=",
		"recv_messages=5", "recv_final=2", "recv_interim=3", "pings=1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("diagnostics missing %q:\n%s", want, out)
		}
	}
}

func TestTranscriptionTextAppendsPlainLine(t *testing.T) {
	dir := initTestLog(t)
	TranscriptionText("hello from the mic")
	Close()

	out := readLog(t, filepath.Join(dir, "transcribe_log.txt"))
	if !strings.Contains(out, "hello from the mic") {
		t.Fatalf("transcript log missing text:\n%s", out)
	}
}

func TestSessionMarkers(t *testing.T) {
	dir := initTestLog(t)
	SessionStart("local", "en-US")
	SessionEnd(3, 12.5)
	Close()

	out := readLog(t, filepath.Join(dir, "diagnostics_log.txt"))
	if !strings.Contains(out, "session_start") || !strings.Contains(out, "session_end") {
		t.Fatalf("session markers missing:\n%s", out)
	}
	if !strings.Contains(out, "segments=3") {
		t.Fatalf("segment count missing:\n%s", out)
	}
}
