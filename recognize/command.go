package recognize

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"voiceflow/log"
)

// CommandEngine drives an external recognizer process (whisper.cpp
// stream builds, vosk wrappers and the like). The process reads 16-bit
// mono PCM on stdin and emits one JSON object per line on stdout:
//
//	{"text": "...", "final": true, "confidence": 0.92}
//	{"error": "no_speech"}
type CommandEngine struct {
	argv []string
}

func NewCommand(command string) (*CommandEngine, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty recognizer command")
	}
	return &CommandEngine{argv: argv}, nil
}

func (e *CommandEngine) Name() string { return e.argv[0] }

func (e *CommandEngine) Start(ctx context.Context, cfg Config) (Stream, error) {
	args := append([]string{}, e.argv[1:]...)
	if cfg.Language != "" {
		args = append(args, "--language", cfg.Language)
	}
	if cfg.SampleRate > 0 {
		args = append(args, "--sample-rate", strconv.Itoa(cfg.SampleRate))
	}
	if cfg.InterimResults {
		args = append(args, "--interim")
	}
	if cfg.MaxAlternatives > 0 {
		args = append(args, "--max-alternatives", strconv.Itoa(cfg.MaxAlternatives))
	}

	cmd := exec.CommandContext(ctx, e.argv[0], args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("recognizer start: %w", err)
	}

	s := &cmdStream{
		cmd:     cmd,
		stdin:   stdin,
		results: make(chan Result, 16),
		done:    make(chan struct{}),
	}
	go s.readLoop(stdout)
	return s, nil
}

type cmdStream struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	results chan Result
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

type cmdLine struct {
	Text       string  `json:"text"`
	Final      bool    `json:"final"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error"`
}

func (s *cmdStream) readLoop(stdout io.Reader) {
	defer close(s.results)
	defer close(s.done)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var out cmdLine
		if err := json.Unmarshal([]byte(line), &out); err != nil {
			log.Warnf("recognizer emitted unparsable line: %v", err)
			continue
		}
		if out.Error == "no_speech" {
			s.results <- Result{Err: ErrNoSpeech}
			return
		}
		if out.Error != "" {
			s.results <- Result{Err: fmt.Errorf("recognizer: %s", out.Error)}
			return
		}
		s.results <- Result{Text: out.Text, Final: out.Final, Confidence: out.Confidence}
	}
	if err := scanner.Err(); err != nil {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if !closed {
			s.results <- Result{Err: fmt.Errorf("recognizer output: %w", err)}
		}
	}
}

func (s *cmdStream) Feed(pcm []byte) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	if _, err := s.stdin.Write(pcm); err != nil {
		log.Warnf("recognizer feed: %v", err)
	}
}

func (s *cmdStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.stdin.Close()
	<-s.done
	return s.cmd.Wait()
}

func (s *cmdStream) Results() <-chan Result { return s.results }
