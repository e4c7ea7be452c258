package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStateRecording
	tuiStatePaused
)

const (
	noticeLifetime  = 4 * time.Second
	confirmClearFor = 3 * time.Second
	meterWidth      = 30
)

type notice struct {
	level NoticeLevel
	text  string
	at    time.Time
}

type tickMsg time.Time

type tuiModel struct {
	cmds chan<- Command

	state             tuiState
	recordingDuration float64
	audioLevel        float64
	peakLevel         float64
	width, height     int

	text       string
	preview    string
	confidence float64

	modeLine   string
	deviceLine string
	noVoice    bool
	lastExport string

	notices      []notice
	confirmClear time.Time
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

var (
	styleRec      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	stylePaused   = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	styleIdle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleMeta     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleText     = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	stylePreview  = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	styleWarn     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleError    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleInfo     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleMeterOn  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleMeterOff = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
)

func NewTUIProgram(cmds chan<- Command, modeLine, deviceLine string) *tea.Program {
	m := tuiModel{cmds: cmds, modeLine: modeLine, deviceLine: deviceLine}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) send(cmd Command) {
	select {
	case m.cmds <- cmd:
	default:
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		now := time.Time(msg)
		kept := m.notices[:0]
		for _, n := range m.notices {
			if now.Sub(n.at) < noticeLifetime {
				kept = append(kept, n)
			}
		}
		m.notices = kept
		return m, tuiTick()

	case RecordingStartMsg:
		m.state = tuiStateRecording
		m.recordingDuration = 0
		m.audioLevel = 0
		m.peakLevel = 0
		m.noVoice = false

	case RecordingPausedMsg:
		m.state = tuiStatePaused
		m.audioLevel = 0

	case RecordingResumedMsg:
		m.state = tuiStateRecording

	case RecordingStopMsg:
		m.state = tuiStateIdle
		m.audioLevel = 0
		m.noVoice = false

	case RecordingTickMsg:
		m.recordingDuration = msg.Duration

	case AudioLevelMsg:
		if m.state == tuiStateRecording {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
			if msg.Level > m.peakLevel {
				m.peakLevel = msg.Level
			}
		}

	case TranscriptMsg:
		m.text = msg.Text
		m.preview = msg.Preview
		m.confidence = msg.Confidence

	case NoticeMsg:
		m.notices = append(m.notices, notice{level: msg.Level, text: msg.Text, at: time.Now()})

	case NoVoiceWarningMsg:
		m.noVoice = true

	case VoiceClearedMsg:
		m.noVoice = false

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case ExportedMsg:
		m.lastExport = msg.Filename
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.send(CmdQuit)
		return m, tea.Quit
	case "r", " ":
		m.send(CmdToggleRecord)
	case "p":
		m.send(CmdPauseResume)
	case "u":
		m.send(CmdUndo)
	case "ctrl+r":
		m.send(CmdRedo)
	case "c":
		m.send(CmdCopy)
	case "e":
		m.send(CmdExportDefault)
	case "t":
		m.send(CmdExportTXT)
	case "j":
		m.send(CmdExportJSON)
	case "s":
		m.send(CmdExportSRT)
	case "x":
		// Clearing throws away the transcript; require a second press.
		if time.Since(m.confirmClear) < confirmClearFor {
			m.confirmClear = time.Time{}
			m.send(CmdClear)
		} else {
			m.confirmClear = time.Now()
			m.notices = append(m.notices, notice{
				level: NoticeWarning,
				text:  "press x again to clear the transcript",
				at:    time.Now(),
			})
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(styleMeta.Render("VoiceFlow — live captions"))
	b.WriteString("\n\n")

	switch m.state {
	case tuiStateRecording:
		b.WriteString(styleRec.Render(fmt.Sprintf("● REC %.1fs", m.recordingDuration)))
	case tuiStatePaused:
		b.WriteString(stylePaused.Render(fmt.Sprintf("‖ PAUSED %.1fs", m.recordingDuration)))
	default:
		b.WriteString(styleIdle.Render("○ IDLE"))
	}
	if m.noVoice {
		b.WriteString(styleWarn.Render("  ⚠ no voice detected"))
	}
	b.WriteString("\n")

	b.WriteString(renderMeter(m.audioLevel))
	b.WriteString("\n")

	if m.modeLine != "" {
		b.WriteString(styleMeta.Render(m.modeLine) + "\n")
	}
	if m.deviceLine != "" {
		b.WriteString(styleIdle.Render(m.deviceLine) + "\n")
	}
	b.WriteString("\n")

	wrapWidth := m.width - 2
	if wrapWidth < 20 {
		wrapWidth = 20
	}
	caption := m.text
	if caption == "" && m.preview == "" {
		b.WriteString(styleIdle.Render("No transcription yet — press r to record") + "\n")
	} else {
		for _, line := range wrapText(caption, wrapWidth) {
			b.WriteString(styleText.Render(line) + "\n")
		}
		if m.preview != "" {
			for _, line := range wrapText(m.preview, wrapWidth) {
				b.WriteString(stylePreview.Render(line) + "\n")
			}
		}
	}
	b.WriteString("\n")

	if m.confidence > 0 {
		b.WriteString(styleDim.Render(fmt.Sprintf("confidence: %.0f%%", m.confidence*100)) + "\n")
	}
	if m.lastExport != "" {
		b.WriteString(styleDim.Render("exported: "+m.lastExport) + "\n")
	}

	for _, n := range m.notices {
		var st lipgloss.Style
		switch n.level {
		case NoticeError:
			st = styleError
		case NoticeWarning:
			st = styleWarn
		default:
			st = styleInfo
		}
		b.WriteString(st.Render(n.text) + "\n")
	}
	b.WriteString("\n")

	b.WriteString(styleDim.Render("r record · p pause · u undo · ctrl+r redo · c copy · e/t/j/s export · x clear · q quit"))
	b.WriteString("\n")
	b.WriteString(styleDim.Render("voiceflow " + version))

	return b.String()
}

func renderMeter(level float64) string {
	filled := int(level * 3 * meterWidth)
	if filled > meterWidth {
		filled = meterWidth
	}
	if filled < 0 {
		filled = 0
	}
	return styleMeterOn.Render(strings.Repeat("█", filled)) +
		styleMeterOff.Render(strings.Repeat("░", meterWidth-filled))
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()

	if p != nil {
		p.Send(msg)
	}
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return nil
	}
	if width <= 0 {
		width = 1
	}

	// Wrap over runes; splitting bytes would cut multi-byte characters
	// apart mid-sequence.
	runes := []rune(text)
	var lines []string
	for len(runes) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(runes[:splitAt]))
		runes = runes[splitAt:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return lines
}
