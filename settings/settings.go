package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Namespace is the key the settings payload is stored under. It matches
// the storage key used by the web build so exported documents stay
// comparable across both.
const Namespace = "voiceflowSettings"

type ProcessingMode string

const (
	ModeLocal  ProcessingMode = "local"
	ModeRemote ProcessingMode = "remote"
	ModeHybrid ProcessingMode = "hybrid"
)

type Format string

const (
	FormatTXT  Format = "txt"
	FormatJSON Format = "json"
	FormatSRT  Format = "srt"
)

// Settings is the flat option mapping. It is read by the recording
// session and the transcript sources at activation time; changing it
// mid-session has no effect until the next Start.
type Settings struct {
	SampleRate          int            `json:"sampleRate"`
	BitRate             int            `json:"bitRate"`
	Language            string         `json:"language"`
	RealTimeProcessing  bool           `json:"realTimeProcessing"`
	AutoPunctuation     bool           `json:"autoPunctuation"`
	NoiseReduction      bool           `json:"noiseReduction"`
	ConfidenceThreshold int            `json:"confidenceThreshold"`
	ProcessingMode      ProcessingMode `json:"processingMode"`
	DefaultFormat       Format         `json:"defaultFormat"`
	IncludeTimestamps   bool           `json:"includeTimestamps"`
	ServerURL           string         `json:"serverURL"`
	LocalEngine         string         `json:"localEngine"`
}

func Default() Settings {
	return Settings{
		SampleRate:          16000,
		BitRate:             128000,
		Language:            "en-US",
		RealTimeProcessing:  true,
		AutoPunctuation:     true,
		NoiseReduction:      true,
		ConfidenceThreshold: 70,
		ProcessingMode:      ModeLocal,
		DefaultFormat:       FormatTXT,
		IncludeTimestamps:   true,
		ServerURL:           "ws://localhost:8000/ws",
	}
}

// Normalize replaces out-of-range or unknown values with defaults so a
// hand-edited settings file can never prevent startup.
func (s *Settings) Normalize() {
	def := Default()
	if s.SampleRate <= 0 {
		s.SampleRate = def.SampleRate
	}
	if s.BitRate <= 0 {
		s.BitRate = def.BitRate
	}
	if s.Language == "" {
		s.Language = def.Language
	}
	if s.ConfidenceThreshold < 0 {
		s.ConfidenceThreshold = 0
	}
	if s.ConfidenceThreshold > 100 {
		s.ConfidenceThreshold = 100
	}
	switch s.ProcessingMode {
	case ModeLocal, ModeRemote, ModeHybrid:
	default:
		s.ProcessingMode = def.ProcessingMode
	}
	switch s.DefaultFormat {
	case FormatTXT, FormatJSON, FormatSRT:
	default:
		s.DefaultFormat = def.DefaultFormat
	}
	if s.ServerURL == "" {
		s.ServerURL = def.ServerURL
	}
}

// Map returns the settings as a flat name→value mapping, the shape the
// JSON exporter embeds in documents.
func (s Settings) Map() map[string]any {
	raw, _ := json.Marshal(s)
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	return m
}

// ResolveDir picks the settings directory: explicit flag path first,
// then the VOICEFLOW_CONFIG_PATH environment variable, then the OS
// user config dir.
func ResolveDir(flagPath string) (string, error) {
	for _, p := range []string{flagPath, os.Getenv("VOICEFLOW_CONFIG_PATH")} {
		if p == "" {
			continue
		}
		if !filepath.IsAbs(p) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, p), nil
		}
		return p, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "voiceflow"), nil
}

// Store persists Settings as JSON wrapped under Namespace.
type Store struct {
	path string
}

func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, "settings.json")}
}

func (st *Store) Path() string { return st.path }

// Load reads the persisted settings. A missing file yields defaults; a
// malformed file is an error so the user's edits are never silently
// discarded.
func (st *Store) Load() (Settings, error) {
	data, err := os.ReadFile(st.path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Default(), err
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return Default(), fmt.Errorf("settings file %s: %w", st.path, err)
	}
	payload, ok := wrapper[Namespace]
	if !ok {
		return Default(), fmt.Errorf("settings file %s: missing %q key", st.path, Namespace)
	}

	s := Default()
	if err := json.Unmarshal(payload, &s); err != nil {
		return Default(), fmt.Errorf("settings file %s: %w", st.path, err)
	}
	s.Normalize()
	return s, nil
}

func (st *Store) Save(s Settings) error {
	s.Normalize()
	data, err := json.MarshalIndent(map[string]Settings{Namespace: s}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(st.path), 0755); err != nil {
		return err
	}
	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, st.path)
}
