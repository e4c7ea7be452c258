package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"

	"voiceflow/audio"
	"voiceflow/export"
	"voiceflow/log"
	"voiceflow/recognize"
	"voiceflow/reconcile"
	"voiceflow/session"
	"voiceflow/settings"
	"voiceflow/source"
	"voiceflow/textbuf"
)

const version = "0.7.2"

var (
	configFlag  = flag.String("config", "", "settings directory (overrides VOICEFLOW_CONFIG_PATH)")
	logpathFlag = flag.String("logpath", "", "log directory (overrides VOICEFLOW_LOG_PATH)")
	serverFlag  = flag.String("server", "", "remote transcription service URL (ws://...)")
	modeFlag    = flag.String("mode", "", "processing mode: local, remote or hybrid")
	langFlag    = flag.String("lang", "", "recognition language, e.g. en-US")
	engineFlag  = flag.String("engine", "", "local recognizer command line")
	deviceFlag  = flag.String("device", "", "capture device name (substring match)")
	devicesFlag = flag.Bool("devices", false, "list capture devices and exit")
	versionFlag = flag.Bool("version", false, "print version and exit")
)

// app is the controller between the TUI keymap and the recording
// pipeline. All command handling runs on one goroutine; only the
// session's own callbacks and the event consumer run concurrently.
type app struct {
	audioCtx audio.Context
	device   *audio.DeviceInfo
	cfg      settings.Settings
	engine   recognize.Engine

	rec *reconcile.Reconciler
	buf *textbuf.Buffer

	sess    *session.Session
	vad     *vadProcessor
	silence *silenceMonitor

	cmds chan Command
	done chan struct{}
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("voiceflow %s\n", version)
		return
	}

	cfgDir, err := settings.ResolveDir(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve config dir: %v\n", err)
		os.Exit(1)
	}
	store := settings.NewStore(cfgDir)
	cfg, err := store.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v (using defaults)\n", err)
	}
	applyFlagOverrides(&cfg)
	cfg.Normalize()
	if flagsTouchSettings() {
		if err := store.Save(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "warning: save settings: %v\n", err)
		}
	}

	logDir, err := log.ResolveDir(*logpathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve log dir: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logDir)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	log.Infof("voiceflow %s starting, mode=%s", version, cfg.ProcessingMode)

	audioCtx, err := audio.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "audio init: %v\n", err)
		os.Exit(1)
	}
	defer audioCtx.Close()

	if *devicesFlag {
		listDevices(audioCtx)
		return
	}

	device, err := pickDevice(audioCtx, *deviceFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	engine, err := recognize.New(cfg.LocalEngine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "local engine: %v\n", err)
		os.Exit(1)
	}

	a := &app{
		audioCtx: audioCtx,
		device:   device,
		cfg:      cfg,
		engine:   engine,
		rec: reconcile.New(reconcile.Config{
			AutoPunctuation: cfg.AutoPunctuation,
			RealTime:        cfg.RealTimeProcessing,
		}),
		buf:     textbuf.New(),
		silence: newSilenceMonitor(),
		cmds:    make(chan Command, 16),
		done:    make(chan struct{}),
	}

	p := NewTUIProgram(a.cmds, a.modeLine(), a.deviceLine())
	tuiMu.Lock()
	tuiProgram = p
	tuiMu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		p.Quit()
	}()

	go a.loop()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "ui: %v\n", err)
	}

	close(a.cmds)
	<-a.done
	log.Info("voiceflow exiting")
}

func applyFlagOverrides(cfg *settings.Settings) {
	if *serverFlag != "" {
		cfg.ServerURL = *serverFlag
	}
	if *modeFlag != "" {
		cfg.ProcessingMode = settings.ProcessingMode(*modeFlag)
	}
	if *langFlag != "" {
		cfg.Language = *langFlag
	}
	if *engineFlag != "" {
		cfg.LocalEngine = *engineFlag
	}
}

func flagsTouchSettings() bool {
	return *serverFlag != "" || *modeFlag != "" || *langFlag != "" || *engineFlag != ""
}

func listDevices(ctx audio.Context) {
	devices, err := ctx.Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "list devices: %v\n", err)
		os.Exit(1)
	}
	if len(devices) == 0 {
		fmt.Println("no capture devices found")
		return
	}
	for _, d := range devices {
		tag := ""
		if audio.IsBluetooth(d.Name) {
			tag = "  (bluetooth)"
		}
		fmt.Printf("  %s%s\n", d.Name, tag)
	}
}

// pickDevice resolves -device by case-insensitive substring match. An
// empty flag means the system default, expressed as a nil device.
func pickDevice(ctx audio.Context, name string) (*audio.DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	needle := strings.ToLower(name)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), needle) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no capture device matches %q (see -devices)", name)
}

func (a *app) modeLine() string {
	switch a.cfg.ProcessingMode {
	case settings.ModeRemote:
		return fmt.Sprintf("mode: remote (%s)", a.cfg.ServerURL)
	case settings.ModeHybrid:
		return fmt.Sprintf("mode: hybrid (%s + %s)", a.engine.Name(), a.cfg.ServerURL)
	default:
		return fmt.Sprintf("mode: local (%s)", a.engine.Name())
	}
}

func (a *app) deviceLine() string {
	if a.device == nil {
		return "mic: system default"
	}
	line := "mic: " + a.device.Name
	if audio.IsBluetooth(a.device.Name) {
		line += " (bluetooth, expect added latency)"
	}
	return line
}

func (a *app) loop() {
	defer close(a.done)
	for cmd := range a.cmds {
		switch cmd {
		case CmdToggleRecord:
			a.toggleRecord()
		case CmdPauseResume:
			a.pauseResume()
		case CmdUndo:
			if text, ok := a.buf.Undo(); ok {
				a.sendTranscript(text)
			}
		case CmdRedo:
			if text, ok := a.buf.Redo(); ok {
				a.sendTranscript(text)
			}
		case CmdClear:
			a.rec.Clear()
			a.buf.Clear()
			tuiSend(TranscriptMsg{})
			a.notice(NoticeInfo, "transcript cleared")
		case CmdCopy:
			a.copyTranscript()
		case CmdExportDefault:
			a.export(a.cfg.DefaultFormat)
		case CmdExportTXT:
			a.export(settings.FormatTXT)
		case CmdExportJSON:
			a.export(settings.FormatJSON)
		case CmdExportSRT:
			a.export(settings.FormatSRT)
		case CmdQuit:
			// The program is already quitting; teardown happens once
			// the command channel closes.
		}
	}
	a.shutdown()
}

func (a *app) sendTranscript(text string) {
	tuiSend(TranscriptMsg{
		Text:       text,
		Preview:    a.rec.Preview(),
		Confidence: a.rec.Confidence(),
	})
}

func (a *app) toggleRecord() {
	if a.sess != nil {
		a.stopRecording()
		return
	}
	a.startRecording()
}

func (a *app) startRecording() {
	if a.cfg.NoiseReduction && a.vad == nil {
		v, err := newVADProcessor(a.cfg.SampleRate)
		if err != nil {
			log.Warnf("vad unavailable: %v", err)
		} else {
			a.vad = v
		}
	}
	if a.vad != nil {
		a.vad.Reset()
	}
	a.silence.Reset()

	sess := session.New(session.Config{
		Audio:  a.audioCtx,
		Device: a.device,
		Capture: audio.CaptureConfig{
			SampleRate: uint32(a.cfg.SampleRate),
			Channels:   1,
		},
		Sources: a.buildSources,
		Hooks: session.Hooks{
			OnTick:   a.onTick,
			OnLevel:  func(rms float64) { tuiSend(AudioLevelMsg{Level: rms}) },
			OnPCM:    a.onPCM,
			OnNotice: a.sourceNotice,
		},
	})

	if err := sess.Start(context.Background()); err != nil {
		sess.Stop()
		switch {
		case errors.Is(err, audio.ErrPermissionDenied):
			a.notice(NoticeError, "microphone access denied; check system permissions")
		case errors.Is(err, audio.ErrDeviceUnavailable):
			a.notice(NoticeError, "capture device unavailable")
		default:
			a.notice(NoticeError, "could not start recording: "+err.Error())
		}
		log.Errorf("session start: %v", err)
		return
	}

	a.sess = sess
	log.SessionStart(string(a.cfg.ProcessingMode), a.cfg.Language)
	tuiSend(RecordingStartMsg{})
	go a.consumeEvents(sess)
}

func (a *app) stopRecording() {
	sess := a.sess
	a.sess = nil
	elapsed := sess.Elapsed()
	sess.Stop()
	log.SessionEnd(len(a.rec.History()), elapsed.Seconds())
	tuiSend(RecordingStopMsg{})
}

func (a *app) pauseResume() {
	if a.sess == nil {
		return
	}
	switch a.sess.State() {
	case session.Recording:
		a.sess.Pause()
		tuiSend(RecordingPausedMsg{})
	case session.Paused:
		if a.vad != nil {
			a.vad.Reset()
		}
		a.silence.Reset()
		if err := a.sess.Resume(); err != nil {
			a.notice(NoticeError, "could not resume: "+err.Error())
			log.Errorf("session resume: %v", err)
			return
		}
		tuiSend(RecordingResumedMsg{})
	}
}

// buildSources is called by the session on every transition into
// Recording, so a mode or server change applies at the next activation.
func (a *app) buildSources() ([]source.Source, error) {
	var srcs []source.Source
	if a.cfg.ProcessingMode == settings.ModeLocal || a.cfg.ProcessingMode == settings.ModeHybrid {
		srcs = append(srcs, source.NewLocal(a.engine, source.LocalConfig{
			Language:            a.cfg.Language,
			SampleRate:          a.cfg.SampleRate,
			InterimResults:      a.cfg.RealTimeProcessing,
			MaxAlternatives:     1,
			ConfidenceThreshold: a.cfg.ConfidenceThreshold,
		}, a.sourceNotice))
	}
	if a.cfg.ProcessingMode == settings.ModeRemote || a.cfg.ProcessingMode == settings.ModeHybrid {
		srcs = append(srcs, source.NewRemote(a.cfg.ServerURL, a.sourceNotice))
	}
	return srcs, nil
}

func (a *app) consumeEvents(sess *session.Session) {
	for ev := range sess.Events() {
		upd := a.rec.Apply(ev)
		if upd.Committed {
			// Attach the segment to the buffer as it stands, so undo
			// and manual edits survive the next commit.
			a.buf.Edit(reconcile.Append(a.buf.Value(), upd.CommittedSegment))
			log.TranscriptionText(upd.CommittedSegment)
		}
		if upd.Committed || upd.Preview {
			a.sendTranscript(a.buf.Value())
		}
	}
}

func (a *app) onTick(elapsed time.Duration) {
	tuiSend(RecordingTickMsg{Duration: elapsed.Seconds()})
	if a.vad == nil {
		return
	}
	switch a.silence.Tick(a.vad.HasSpeechTick()) {
	case SilenceWarn, SilenceRepeat:
		tuiSend(NoVoiceWarningMsg{})
		log.Warn("no voice detected while recording")
	case SilenceWarnClear:
		tuiSend(VoiceClearedMsg{})
	}
}

func (a *app) onPCM(data []byte) {
	if a.vad != nil {
		a.vad.Process(data)
	}
}

// sourceNotice classifies pipeline errors for the notice area. The
// session keeps running through all of them.
func (a *app) sourceNotice(err error) {
	switch {
	case errors.Is(err, recognize.ErrNoSpeech):
		tuiSend(NoticeMsg{Level: NoticeWarning, Text: "no speech detected; recognizer restarted"})
	case errors.Is(err, source.ErrTransport):
		tuiSend(NoticeMsg{Level: NoticeError, Text: "transcription service connection lost"})
	case errors.Is(err, audio.ErrPermissionDenied):
		tuiSend(NoticeMsg{Level: NoticeError, Text: "microphone access denied"})
	default:
		tuiSend(NoticeMsg{Level: NoticeError, Text: err.Error()})
	}
}

func (a *app) notice(level NoticeLevel, text string) {
	tuiSend(NoticeMsg{Level: level, Text: text})
}

func (a *app) copyTranscript() {
	text := a.buf.Value()
	if strings.TrimSpace(text) == "" {
		a.notice(NoticeWarning, "nothing to copy")
		return
	}
	if err := clipboard.WriteAll(text); err != nil {
		a.notice(NoticeError, "clipboard: "+err.Error())
		log.Errorf("clipboard: %v", err)
		return
	}
	a.notice(NoticeInfo, fmt.Sprintf("copied %d characters", len(text)))
}

func (a *app) export(format settings.Format) {
	text := a.buf.Value()
	doc := export.Document{
		Text:       text,
		Language:   a.cfg.Language,
		Confidence: a.rec.Confidence(),
		WordCount:  len(strings.Fields(text)),
		Timestamp:  time.Now(),
		Settings:   a.cfg.Map(),
		History:    a.rec.History(),
	}

	data, err := export.Render(format, doc, a.cfg.IncludeTimestamps)
	if err != nil {
		if errors.Is(err, export.ErrNoContent) {
			a.notice(NoticeWarning, "nothing to export")
		} else {
			a.notice(NoticeError, "export: "+err.Error())
			log.Errorf("export %s: %v", format, err)
		}
		return
	}

	name := export.Filename(format, doc.Timestamp)
	if err := os.WriteFile(name, data, 0644); err != nil {
		a.notice(NoticeError, "export: "+err.Error())
		log.Errorf("export write %s: %v", name, err)
		return
	}
	log.Infof("exported %s (%d bytes, %s)", name, len(data), export.MIMEType(format))
	tuiSend(ExportedMsg{Filename: name})
	a.notice(NoticeInfo, "saved "+name)
}

func (a *app) shutdown() {
	if a.sess != nil {
		elapsed := a.sess.Elapsed()
		a.sess.Stop()
		log.SessionEnd(len(a.rec.History()), elapsed.Seconds())
		a.sess = nil
	}
}
