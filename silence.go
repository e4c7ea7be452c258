package main

import (
	"sync"
	"time"
)

const (
	silenceTickInterval = 100 * time.Millisecond
	silenceWarnEvery    = 8 * time.Second
	speechMinRatio      = 0.10
	speechClearRatio    = 0.25 // higher threshold to clear warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no voice detected
	SilenceWarnClear              // speech resumed after warning
	SilenceRepeat                 // warning still standing (every 8s)
)

// silenceMonitor watches per-tick speech flags over a sliding window
// and raises a warning after a sustained quiet stretch while recording.
// Tick runs on the session's tick goroutine while Reset comes from the
// command loop, so the state is mutex-guarded.
type silenceMonitor struct {
	warnAt   int
	windowSz int

	mu         sync.Mutex
	ticks      int
	window     []bool
	warned     bool
	lastNotice int
}

func newSilenceMonitor() *silenceMonitor {
	warnAt := int(silenceWarnEvery / silenceTickInterval)
	return &silenceMonitor{
		warnAt:   warnAt,
		windowSz: warnAt,
		window:   make([]bool, warnAt),
	}
}

// ratio reports the speech fraction over the last n ticks. Caller
// holds mu.
func (m *silenceMonitor) ratio(n int) float64 {
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(hasSpeech bool) SilenceEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.window[m.ticks%m.windowSz] = hasSpeech
	m.ticks++

	r := m.ratio(m.warnAt)

	// Warn: 8s window below threshold
	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		m.lastNotice = m.ticks
		return SilenceWarn
	}
	// Clear: speech ratio above clear threshold
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceWarnClear
	}
	// Repeat the warning every 8s while it stands
	if m.warned && m.ticks-m.lastNotice >= m.warnAt {
		m.lastNotice = m.ticks
		return SilenceRepeat
	}

	return SilenceNone
}

// Reset clears the window, e.g. when a new recording segment starts.
func (m *silenceMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ticks = 0
	m.warned = false
	m.lastNotice = 0
	for i := range m.window {
		m.window[i] = false
	}
}
