package audio

import (
	"os"
	"sync"
	"time"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext replays a fixed PCM buffer through the CaptureDevice
// interface so session and source logic can be tested without a
// microphone.
type FakeContext struct {
	pcm        []byte
	sampleRate int
	err        error
}

func NewFakeContext(pcm []byte, sampleRate int) *FakeContext {
	return &FakeContext{pcm: pcm, sampleRate: sampleRate}
}

// NewFakeContextFromWAV loads PCM from a WAV file, skipping the header.
func NewFakeContextFromWAV(wavPath string, sampleRate int) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return &FakeContext{pcm: data, sampleRate: sampleRate}, nil
}

// NewFailingContext yields a context whose NewCapture always fails with
// err, for exercising the permission/device error paths.
func NewFailingContext(err error) *FakeContext {
	return &FakeContext{err: err}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "00", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &FakeCapture{pcm: f.pcm, sampleRate: f.sampleRate}, nil
}

type FakeCapture struct {
	pcm        []byte
	sampleRate int

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
	started  bool
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

// Start feeds the buffered PCM immediately, then emits silence chunks
// until Stop so downstream tick logic keeps running.
func (f *FakeCapture) Start() error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return nil
	}
	f.started = true
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	cb := f.cb
	f.mu.Unlock()

	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	if cb != nil {
		for pos := 0; pos < len(f.pcm); {
			end := min(pos+chunkBytes, len(f.pcm))
			chunk := make([]byte, end-pos)
			copy(chunk, f.pcm[pos:end])
			cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
			pos = end
		}
	}

	stopCh, feedDone := f.stopCh, f.feedDone
	go func() {
		defer close(feedDone)
		silence := make([]byte, chunkBytes)
		for {
			select {
			case <-stopCh:
				return
			case <-time.After(time.Millisecond):
			}
			f.mu.Lock()
			cb := f.cb
			f.mu.Unlock()
			if cb != nil {
				cb(silence, fakeFrameSize)
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return
	}
	f.started = false
	stopCh, feedDone := f.stopCh, f.feedDone
	f.mu.Unlock()

	close(stopCh)
	<-feedDone
}

func (f *FakeCapture) Close() {
	f.Stop()
}
