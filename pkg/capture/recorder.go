package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// pcmRecorder receives decoded PCM16 from a device, tracks the peak and
// appends to a WAV file.
type pcmRecorder struct {
	mu     sync.Mutex
	file   *os.File
	wav    *WAVWriter
	peak   int
	err    error

	stopping bool
	closed   bool
	onStop   func()
}

func newPCMRecorder(h AudioHandle, sampleRate, channels int) (*pcmRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(h.Path), 0o755); err != nil {
		return nil, fmt.Errorf("capture: create dir: %w", err)
	}
	f, err := os.Create(h.Path)
	if err != nil {
		return nil, fmt.Errorf("capture: create file: %w", err)
	}
	w, err := NewWAVWriter(f, sampleRate, channels)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &pcmRecorder{file: f, wav: w}, nil
}

// write appends samples. Write errors are kept and reported on Stop.
func (r *pcmRecorder) write(samples []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > r.peak {
			r.peak = v
		}
	}
	if r.err == nil {
		r.err = r.wav.WriteSamples(samples)
	}
}

func (r *pcmRecorder) CurrentAmplitude() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopping || r.closed {
		return 0, ErrRecorderStopped
	}
	p := r.peak
	r.peak = 0
	return p, nil
}

// Stop runs the device's detach hook, which must guarantee no further
// writes, then finalizes the file.
func (r *pcmRecorder) Stop() error {
	r.mu.Lock()
	if r.stopping {
		r.mu.Unlock()
		return nil
	}
	r.stopping = true
	onStop := r.onStop
	r.mu.Unlock()

	if onStop != nil {
		onStop()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	err := r.err
	if cerr := r.wav.Close(); err == nil {
		err = cerr
	}
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}
