package capture

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
)

// CommandDevice records by running a local program that writes raw
// little-endian PCM16 to stdout, such as arecord.
type CommandDevice struct {
	cfg    CommandConfig
	logger *slog.Logger
}

// NewCommandDevice creates a command-backed device.
func NewCommandDevice(cfg CommandConfig, logger *slog.Logger) *CommandDevice {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandDevice{cfg: cfg, logger: logger.With("component", "capture.command")}
}

// StartCapture launches the command and streams its output into h.
func (d *CommandDevice) StartCapture(h AudioHandle) (Recorder, error) {
	if d.cfg.Command == "" {
		return nil, errors.New("capture: no record command configured")
	}
	rate, channels := d.cfg.SampleRate, d.cfg.Channels
	if rate <= 0 {
		rate = 16000
	}
	if channels <= 0 {
		channels = 1
	}

	rec, err := newPCMRecorder(h, rate, channels)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(d.cfg.Command, d.cfg.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		rec.Stop()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		rec.Stop()
		return nil, fmt.Errorf("capture: start %s: %w", d.cfg.Command, err)
	}

	done := make(chan struct{})
	rec.onStop = func() {
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			d.logger.Debug("kill recorder", "error", err)
		}
		<-done
		cmd.Wait()
	}
	go func() {
		defer close(done)
		d.pump(stdout, rec)
	}()
	return rec, nil
}

func (d *CommandDevice) pump(r io.Reader, rec *pcmRecorder) {
	br := bufio.NewReader(r)
	buf := make([]byte, 4096)
	var carry []byte
	for {
		n, err := br.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			whole := len(data) &^ 1
			samples := make([]int16, whole/2)
			for i := range samples {
				samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
			}
			rec.write(samples)
			carry = append(carry[:0:0], data[whole:]...)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				d.logger.Debug("recorder output ended", "error", err)
			}
			return
		}
	}
}

var _ Device = (*CommandDevice)(nil)
