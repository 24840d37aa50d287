package capture

import (
	"sync"
	"sync/atomic"
)

// MockDevice implements Device for testing. Every recorder first plays
// back Script, one value per reading, then reports the level set with
// SetLevel.
type MockDevice struct {
	// Script is replayed from the start by each new recorder.
	Script []int

	// StartErr, if set, is returned by StartCapture.
	StartErr error

	// WriteFiles creates an empty WAV at the handle path.
	WriteFiles bool

	level atomic.Int64

	mu      sync.Mutex
	handles []AudioHandle
	active  *MockRecorder
}

// NewMockDevice creates a silent mock device.
func NewMockDevice() *MockDevice {
	return &MockDevice{}
}

// SetLevel sets the amplitude reported to recorders.
func (d *MockDevice) SetLevel(v int) { d.level.Store(int64(v)) }

// StartCapture implements Device.
func (d *MockDevice) StartCapture(h AudioHandle) (Recorder, error) {
	if d.StartErr != nil {
		return nil, d.StartErr
	}
	r := &MockRecorder{device: d, script: append([]int(nil), d.Script...)}
	if d.WriteFiles {
		pr, err := newPCMRecorder(h, 16000, 1)
		if err != nil {
			return nil, err
		}
		r.file = pr
	}
	d.mu.Lock()
	d.handles = append(d.handles, h)
	d.active = r
	d.mu.Unlock()
	return r, nil
}

// Starts returns the number of recordings started.
func (d *MockDevice) Starts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handles)
}

// Handles returns the handle of every recording started.
func (d *MockDevice) Handles() []AudioHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]AudioHandle(nil), d.handles...)
}

// Recording reports whether the latest recorder is still running.
func (d *MockDevice) Recording() bool {
	d.mu.Lock()
	r := d.active
	d.mu.Unlock()
	return r != nil && !r.stopped.Load()
}

// MockRecorder is returned by MockDevice.
type MockRecorder struct {
	device  *MockDevice
	file    *pcmRecorder
	stopped atomic.Bool

	mu     sync.Mutex
	script []int
}

// CurrentAmplitude returns the next scripted value, or the device level
// once the script is used up.
func (r *MockRecorder) CurrentAmplitude() (int, error) {
	if r.stopped.Load() {
		return 0, ErrRecorderStopped
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.script) > 0 {
		v := r.script[0]
		r.script = r.script[1:]
		return v, nil
	}
	return int(r.device.level.Load()), nil
}

// Stop implements Recorder.
func (r *MockRecorder) Stop() error {
	if r.stopped.Swap(true) {
		return nil
	}
	if r.file != nil {
		return r.file.Stop()
	}
	return nil
}

var (
	_ Device   = (*MockDevice)(nil)
	_ Recorder = (*MockRecorder)(nil)
)
