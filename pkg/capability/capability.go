// Package capability negotiates between equivalent call shapes exposed by
// a device SDK whose surface varies across firmware generations.
//
// A Shape pairs a type check with an invocation. Negotiate tries shapes in
// order and uses the first one the handle both exposes and accepts.
// Nothing is cached: every call negotiates again.
package capability

import (
	"errors"
	"fmt"
)

// ErrNoShape is returned when the handle exposes none of the shapes.
var ErrNoShape = errors.New("capability: no matching call shape")

// Shape is one way of performing an operation.
type Shape struct {
	Name   string
	Match  func(handle any) bool
	Invoke func(handle any) error
}

// For builds a Shape that applies when the handle implements T.
func For[T any](name string, call func(T) error) Shape {
	return Shape{
		Name: name,
		Match: func(h any) bool {
			_, ok := h.(T)
			return ok
		},
		Invoke: func(h any) error {
			return call(h.(T))
		},
	}
}

// CallError reports that every exposed shape failed. Err is the failure
// of the last shape tried.
type CallError struct {
	Tried []string
	Err   error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("capability: all call shapes failed %v: %v", e.Tried, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Negotiate invokes the first shape the handle exposes that succeeds and
// returns its name. A shape that fails is skipped in favour of the next.
func Negotiate(handle any, shapes ...Shape) (string, error) {
	var tried []string
	var lastErr error
	for _, s := range shapes {
		if handle == nil || !s.Match(handle) {
			continue
		}
		tried = append(tried, s.Name)
		if err := s.Invoke(handle); err != nil {
			lastErr = err
			continue
		}
		return s.Name, nil
	}
	if len(tried) == 0 {
		return "", ErrNoShape
	}
	return "", &CallError{Tried: tried, Err: lastErr}
}

// Supported lists the shapes the handle exposes, in order, without
// invoking any of them.
func Supported(handle any, shapes ...Shape) []string {
	var names []string
	for _, s := range shapes {
		if handle != nil && s.Match(handle) {
			names = append(names, s.Name)
		}
	}
	return names
}
