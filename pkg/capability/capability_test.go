package capability

import (
	"errors"
	"testing"
)

type twoArg interface{ Say(text, locale string) error }
type oneArg interface{ Say1(text string) error }

type newFirmware struct {
	fail  error
	calls []string
}

func (f *newFirmware) Say(text, locale string) error {
	f.calls = append(f.calls, text+"/"+locale)
	return f.fail
}

func (f *newFirmware) Say1(text string) error {
	f.calls = append(f.calls, text)
	return nil
}

type oldFirmware struct{ calls []string }

func (f *oldFirmware) Say1(text string) error {
	f.calls = append(f.calls, text)
	return nil
}

func sayShapes(text string) []Shape {
	return []Shape{
		For("say(text, locale)", func(s twoArg) error { return s.Say(text, "zh-TW") }),
		For("say(text)", func(s oneArg) error { return s.Say1(text) }),
	}
}

func TestNegotiatePrefersFirstShape(t *testing.T) {
	h := &newFirmware{}
	name, err := Negotiate(h, sayShapes("hi")...)
	if err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	if name != "say(text, locale)" {
		t.Errorf("shape = %q", name)
	}
	if len(h.calls) != 1 || h.calls[0] != "hi/zh-TW" {
		t.Errorf("calls = %v", h.calls)
	}
}

func TestNegotiateFallsThroughOnMismatch(t *testing.T) {
	h := &oldFirmware{}
	name, err := Negotiate(h, sayShapes("hi")...)
	if err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	if name != "say(text)" {
		t.Errorf("shape = %q", name)
	}
}

func TestNegotiateFallsThroughOnFailure(t *testing.T) {
	h := &newFirmware{fail: errors.New("locale unsupported")}
	name, err := Negotiate(h, sayShapes("hi")...)
	if err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	if name != "say(text)" {
		t.Errorf("shape = %q", name)
	}
	if len(h.calls) != 2 {
		t.Errorf("calls = %v, want both shapes tried", h.calls)
	}
}

func TestNegotiateNoShape(t *testing.T) {
	_, err := Negotiate(struct{}{}, sayShapes("hi")...)
	if !errors.Is(err, ErrNoShape) {
		t.Errorf("err = %v, want ErrNoShape", err)
	}
	if _, err := Negotiate(nil, sayShapes("hi")...); !errors.Is(err, ErrNoShape) {
		t.Errorf("nil handle err = %v, want ErrNoShape", err)
	}
}

func TestNegotiateAllFail(t *testing.T) {
	boom := errors.New("boom")
	shapes := []Shape{
		For("a", func(s oneArg) error { return errors.New("first") }),
		For("b", func(s oneArg) error { return boom }),
	}
	_, err := Negotiate(&oldFirmware{}, shapes...)

	var ce *CallError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CallError", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("err should wrap the last failure")
	}
	if len(ce.Tried) != 2 {
		t.Errorf("Tried = %v", ce.Tried)
	}
}

func TestNegotiateIsStateless(t *testing.T) {
	h := &newFirmware{fail: errors.New("busy")}
	Negotiate(h, sayShapes("one")...)
	h.fail = nil
	name, _ := Negotiate(h, sayShapes("two")...)
	if name != "say(text, locale)" {
		t.Errorf("second call used %q; earlier fallback must not stick", name)
	}
}

func TestSupported(t *testing.T) {
	got := Supported(&oldFirmware{}, sayShapes("x")...)
	if len(got) != 1 || got[0] != "say(text)" {
		t.Errorf("Supported() = %v", got)
	}
}
