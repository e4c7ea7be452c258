package main

// Commands flow from the TUI keymap to the controller loop; the typed
// messages below flow back into the Bubble Tea program.

type Command int

const (
	CmdToggleRecord Command = iota
	CmdPauseResume
	CmdUndo
	CmdRedo
	CmdClear
	CmdCopy
	CmdExportDefault
	CmdExportTXT
	CmdExportJSON
	CmdExportSRT
	CmdQuit
)

type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarning
	NoticeError
)

type RecordingStartMsg struct{}
type RecordingPausedMsg struct{}
type RecordingResumedMsg struct{}
type RecordingStopMsg struct{}
type RecordingTickMsg struct{ Duration float64 }
type AudioLevelMsg struct{ Level float64 }

// TranscriptMsg carries the full display state of the caption panel:
// the edit-safe buffer content plus the unconfirmed live preview.
type TranscriptMsg struct {
	Text       string
	Preview    string
	Confidence float64
}

type NoticeMsg struct {
	Level NoticeLevel
	Text  string
}

type NoVoiceWarningMsg struct{}
type VoiceClearedMsg struct{}
type ModeLineMsg struct{ Text string }
type DeviceLineMsg struct{ Text string }
type ExportedMsg struct{ Filename string }
