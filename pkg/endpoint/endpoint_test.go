package endpoint

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		AmplitudeThreshold: 1000,
		MinSustainedStart:  300 * time.Millisecond,
		SilenceEnd:         1200 * time.Millisecond,
		ListenTimeout:      3 * time.Second,
		SampleInterval:     100 * time.Millisecond,
	}
}

type emitted struct {
	tick   int
	result Result
}

// run feeds amps at one sample per interval, starting one interval after
// Start, and returns every non-Continue result.
func run(d *Detector, amps []int) []emitted {
	cfg := d.Config()
	d.Start(t0)
	var out []emitted
	for i, a := range amps {
		now := t0.Add(time.Duration(i+1) * cfg.SampleInterval)
		if r := d.Sample(a, now); r != Continue {
			out = append(out, emitted{tick: i + 1, result: r})
		}
	}
	return out
}

func repeat(v, n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func concat(parts ...[]int) []int {
	var out []int
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestQuietTraceNeverStarts(t *testing.T) {
	traces := map[string][]int{
		"silence":       repeat(0, 25),
		"at threshold":  repeat(1000, 25),
		"just below":    repeat(999, 25),
		"noisy but low": {10, 900, 500, 999, 0, 700, 800, 1000, 3, 999},
	}
	for name, amps := range traces {
		t.Run(name, func(t *testing.T) {
			for _, e := range run(New(testConfig()), amps) {
				if e.result == SpeechStarted || e.result == SpeechEnded {
					t.Fatalf("unexpected %v at tick %d", e.result, e.tick)
				}
			}
		})
	}
}

func TestSustainedOnsetThenSilence(t *testing.T) {
	// Loud from tick 1; 300ms later (tick 4) speech is confirmed.
	// Last loud at tick 4; 1200ms of quiet ends it at tick 16.
	amps := concat(repeat(5000, 4), repeat(0, 20))
	got := run(New(testConfig()), amps)

	want := []emitted{{4, SpeechStarted}, {16, SpeechEnded}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSilenceOneTickShortDoesNotEnd(t *testing.T) {
	amps := concat(repeat(5000, 4), repeat(0, 11))
	got := run(New(testConfig()), amps)
	if len(got) != 1 || got[0].result != SpeechStarted {
		t.Fatalf("got %v, want only SpeechStarted", got)
	}
}

func TestPauseShorterThanSilenceEndKeepsUtterance(t *testing.T) {
	amps := concat(repeat(5000, 4), repeat(0, 8), repeat(5000, 2), repeat(0, 12))
	got := run(New(testConfig()), amps)

	if len(got) != 2 {
		t.Fatalf("got %v", got)
	}
	// Last loud at tick 14, so the end is at tick 26.
	if got[1] != (emitted{26, SpeechEnded}) {
		t.Errorf("end = %+v, want tick 26", got[1])
	}
}

func TestOnsetResetsOnQuietSample(t *testing.T) {
	// Three loud ticks span 200ms, short of the 300ms onset; then one quiet tick.
	amps := concat(repeat(5000, 3), repeat(0, 1), repeat(5000, 4), repeat(0, 1))
	got := run(New(testConfig()), amps)

	if len(got) != 1 {
		t.Fatalf("got %v, want one SpeechStarted", got)
	}
	// Second burst begins at tick 5, confirmed 300ms later at tick 8.
	if got[0] != (emitted{8, SpeechStarted}) {
		t.Errorf("got %+v, want SpeechStarted at tick 8", got[0])
	}
}

func TestIsolatedSpikesNeverConfirm(t *testing.T) {
	var amps []int
	for i := 0; i < 10; i++ {
		amps = append(amps, 8000, 8000, 8000, 0)
	}
	for _, e := range run(New(testConfig()), amps) {
		if e.result == SpeechStarted {
			t.Fatalf("spikes confirmed speech at tick %d", e.tick)
		}
	}
}

func TestTimeoutEmittedOnce(t *testing.T) {
	amps := repeat(0, 60)
	got := run(New(testConfig()), amps)

	if len(got) != 1 {
		t.Fatalf("got %v, want exactly one event", got)
	}
	if got[0] != (emitted{30, TimedOut}) {
		t.Errorf("got %+v, want TimedOut at tick 30", got[0])
	}
}

func TestNoTimeoutAfterSpeechConfirmed(t *testing.T) {
	cfg := testConfig()
	// Keep talking well past the listen timeout.
	amps := concat(repeat(5000, 50), repeat(0, 12))
	got := run(New(cfg), amps)

	if len(got) != 2 || got[0].result != SpeechStarted || got[1].result != SpeechEnded {
		t.Fatalf("got %v", got)
	}
}

func TestSamplesIgnoredAfterTerminal(t *testing.T) {
	d := New(testConfig())
	run(d, repeat(0, 30))
	if d.Active() {
		t.Fatal("detector still active after timeout")
	}
	if r := d.Sample(9000, t0.Add(time.Hour)); r != Continue {
		t.Errorf("Sample after terminal = %v, want Continue", r)
	}

	d.Start(t0)
	if !d.Active() {
		t.Error("Start should re-arm")
	}
	if st := d.State(); st.SpeechConfirmed || !st.LoudSince.IsZero() || !st.SessionStart.Equal(t0) {
		t.Errorf("state not reset: %+v", st)
	}
}

func TestStopHaltsSampling(t *testing.T) {
	d := New(testConfig())
	d.Start(t0)
	d.Stop()
	for i := 1; i <= 40; i++ {
		if r := d.Sample(0, t0.Add(time.Duration(i)*100*time.Millisecond)); r != Continue {
			t.Fatalf("stopped detector returned %v", r)
		}
	}
}

type flakySource struct {
	amps []int
	errs []error
	i    int
}

func (f *flakySource) CurrentAmplitude() (int, error) {
	a, err := f.amps[f.i], f.errs[f.i]
	f.i++
	return a, err
}

func TestSampleSourceTreatsErrorAsSilence(t *testing.T) {
	d := New(testConfig())
	d.Start(t0)
	src := &flakySource{
		amps: []int{5000, 5000, 5000, 5000},
		errs: []error{nil, nil, errors.New("mic gone"), nil},
	}
	var results []Result
	for i := range src.amps {
		results = append(results, d.SampleSource(src, t0.Add(time.Duration(i+1)*100*time.Millisecond)))
	}
	for i, r := range results {
		if r != Continue {
			t.Errorf("tick %d = %v; the failed read should break the onset", i+1, r)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero threshold", func(c *Config) { c.AmplitudeThreshold = 0 }},
		{"zero interval", func(c *Config) { c.SampleInterval = 0 }},
		{"onset below interval", func(c *Config) { c.MinSustainedStart = 50 * time.Millisecond }},
		{"silence below interval", func(c *Config) { c.SilenceEnd = time.Millisecond }},
		{"timeout not above onset", func(c *Config) { c.ListenTimeout = c.MinSustainedStart }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
