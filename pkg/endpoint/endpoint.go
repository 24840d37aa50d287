// Package endpoint detects the start and end of a spoken utterance from
// periodic amplitude readings.
//
// Detection is two-staged: loudness must be sustained for MinSustainedStart
// before speech is confirmed, and quiet must be sustained for SilenceEnd
// before the utterance is considered over. Short spikes and short pauses
// are ignored.
//
// A Detector is not safe for concurrent use. It is driven by a single
// polling loop that calls Sample once per SampleInterval.
package endpoint

import (
	"errors"
	"fmt"
	"time"
)

// Config tunes the detector. It is immutable once a Detector is built.
type Config struct {
	AmplitudeThreshold int           `yaml:"amplitude_threshold"`
	MinSustainedStart  time.Duration `yaml:"min_sustained_start"`
	SilenceEnd         time.Duration `yaml:"silence_end"`
	ListenTimeout      time.Duration `yaml:"listen_timeout"`
	SampleInterval     time.Duration `yaml:"sample_interval"`
}

// DefaultConfig returns the tuning used on the robot.
func DefaultConfig() Config {
	return Config{
		AmplitudeThreshold: 1200,
		MinSustainedStart:  300 * time.Millisecond,
		SilenceEnd:         1200 * time.Millisecond,
		ListenTimeout:      120 * time.Second,
		SampleInterval:     120 * time.Millisecond,
	}
}

// Validate checks that the durations are usable at the configured
// sampling rate.
func (c Config) Validate() error {
	if c.AmplitudeThreshold <= 0 {
		return errors.New("endpoint: amplitude threshold must be positive")
	}
	if c.SampleInterval <= 0 {
		return errors.New("endpoint: sample interval must be positive")
	}
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"min sustained start", c.MinSustainedStart},
		{"silence end", c.SilenceEnd},
		{"listen timeout", c.ListenTimeout},
	} {
		if d.v < c.SampleInterval {
			return fmt.Errorf("endpoint: %s (%v) shorter than sample interval (%v)", d.name, d.v, c.SampleInterval)
		}
	}
	if c.ListenTimeout <= c.MinSustainedStart {
		return errors.New("endpoint: listen timeout must exceed min sustained start")
	}
	return nil
}

// Result is the outcome of one sample.
type Result int

const (
	Continue Result = iota
	SpeechStarted
	SpeechEnded
	TimedOut
)

func (r Result) String() string {
	switch r {
	case Continue:
		return "continue"
	case SpeechStarted:
		return "speech_started"
	case SpeechEnded:
		return "speech_ended"
	case TimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Terminal reports whether r ends a listening cycle.
func (r Result) Terminal() bool {
	return r == SpeechEnded || r == TimedOut
}

// State is the per-cycle bookkeeping, reset by Start.
type State struct {
	// LoudSince is when the current loud run began. Zero means quiet.
	LoudSince       time.Time
	LastLoud        time.Time
	SpeechConfirmed bool
	SessionStart    time.Time
}

// AmplitudeSource yields the loudness since the previous read.
type AmplitudeSource interface {
	CurrentAmplitude() (int, error)
}

// Detector runs the endpointing algorithm.
type Detector struct {
	cfg     Config
	st      State
	running bool
	done    bool
}

// New creates a stopped detector.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Config returns the detector's tuning.
func (d *Detector) Config() Config { return d.cfg }

// Start resets state and begins a new listening cycle at now.
func (d *Detector) Start(now time.Time) {
	d.st = State{SessionStart: now}
	d.running = true
	d.done = false
}

// Stop halts the cycle. Further samples return Continue until Start.
func (d *Detector) Stop() {
	d.running = false
}

// Active reports whether the detector is in a cycle that has not yet
// produced a terminal result.
func (d *Detector) Active() bool {
	return d.running && !d.done
}

// State returns a copy of the current bookkeeping.
func (d *Detector) State() State { return d.st }

// Sample feeds one amplitude reading taken at now.
//
// At most one terminal result (SpeechEnded or TimedOut) is produced per
// cycle; samples after it are ignored.
func (d *Detector) Sample(amplitude int, now time.Time) Result {
	if !d.Active() {
		return Continue
	}

	if amplitude > d.cfg.AmplitudeThreshold {
		if d.st.LoudSince.IsZero() {
			d.st.LoudSince = now
		}
		if d.st.SpeechConfirmed {
			d.st.LastLoud = now
		} else if now.Sub(d.st.LoudSince) >= d.cfg.MinSustainedStart {
			d.st.SpeechConfirmed = true
			d.st.LastLoud = now
			return SpeechStarted
		}
	} else {
		d.st.LoudSince = time.Time{}
	}

	if !d.st.SpeechConfirmed {
		if now.Sub(d.st.SessionStart) >= d.cfg.ListenTimeout {
			d.done = true
			return TimedOut
		}
		return Continue
	}

	if now.Sub(d.st.LastLoud) >= d.cfg.SilenceEnd {
		d.done = true
		return SpeechEnded
	}
	return Continue
}

// SampleSource reads src and feeds the result. A failed read counts as
// silence for this tick.
func (d *Detector) SampleSource(src AmplitudeSource, now time.Time) Result {
	amp := 0
	if src != nil {
		if v, err := src.CurrentAmplitude(); err == nil {
			amp = v
		}
	}
	return d.Sample(amp, now)
}
