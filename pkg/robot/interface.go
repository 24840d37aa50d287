// Package robot is the client for the robot's agent service: speech,
// motion and face calls over HTTP.
//
// Two firmware generations are in the field and they expose different
// call surfaces. Each generation is a separate client type, and callers
// discover what a handle can do with small single-method interfaces and
// capability negotiation rather than a common wide interface.
package robot

import "context"

// Agent is what every generation has in common.
type Agent interface {
	BaseURL() string
	Generation() int
}

// MotionPlayer plays a named motion once.
type MotionPlayer interface {
	PlayMotion(ctx context.Context, name string) error
}

// MotionStarter starts a motion, optionally looping.
type MotionStarter interface {
	StartMotion(ctx context.Context, name string, loop bool) error
}

// NamedMotionPlayer is the legacy motion call.
type NamedMotionPlayer interface {
	PlayMotionByName(ctx context.Context, name string) error
}

// MotionStopper stops any running motion.
type MotionStopper interface {
	StopMotion(ctx context.Context) error
}

// FaceShower brings the animated face to the front.
type FaceShower interface {
	ShowFace(ctx context.Context) error
}

// MouthAnimator toggles the talking mouth animation.
type MouthAnimator interface {
	MouthOn(ctx context.Context, speed int) error
	MouthOff(ctx context.Context) error
}
