package robot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/teslashibe/go-voicebot/pkg/capability"
	"github.com/teslashibe/go-voicebot/pkg/emotion"
)

// Motion call shape names.
const (
	ShapePlayMotion       = "playMotion(name)"
	ShapeStartMotion      = "startMotion(name, loop=false)"
	ShapePlayMotionByName = "playMotionByName(name)"
	ShapeStopMotion       = "stopMotion()"
)

// MotionSurface adapts any agent to emotion.Motion.
type MotionSurface struct {
	agent any
}

// NewMotionSurface wraps an agent handle.
func NewMotionSurface(agent any) *MotionSurface {
	return &MotionSurface{agent: agent}
}

// Play negotiates a motion call for id.
func (m *MotionSurface) Play(ctx context.Context, id emotion.ActionID) error {
	_, err := capability.Negotiate(m.agent, motionShapes(ctx, string(id))...)
	return err
}

// Stop stops any running motion.
func (m *MotionSurface) Stop(ctx context.Context) error {
	_, err := capability.Negotiate(m.agent,
		capability.For(ShapeStopMotion, func(s MotionStopper) error { return s.StopMotion(ctx) }),
	)
	return err
}

// Capabilities lists the motion shapes the agent exposes.
func (m *MotionSurface) Capabilities() []string {
	shapes := append(motionShapes(context.Background(), ""),
		capability.For(ShapeStopMotion, func(MotionStopper) error { return nil }))
	return capability.Supported(m.agent, shapes...)
}

func motionShapes(ctx context.Context, name string) []capability.Shape {
	return []capability.Shape{
		capability.For(ShapePlayMotion, func(p MotionPlayer) error { return p.PlayMotion(ctx, name) }),
		capability.For(ShapeStartMotion, func(p MotionStarter) error { return p.StartMotion(ctx, name, false) }),
		capability.For(ShapePlayMotionByName, func(p NamedMotionPlayer) error { return p.PlayMotionByName(ctx, name) }),
	}
}

// Face drives the optional face cues. Agents without face control are
// silently ignored.
type Face struct {
	agent  any
	speed  int
	logger *slog.Logger
}

// NewFace wraps an agent handle.
func NewFace(agent any, mouthSpeed int, logger *slog.Logger) *Face {
	if logger == nil {
		logger = slog.Default()
	}
	return &Face{agent: agent, speed: mouthSpeed, logger: logger.With("component", "robot.face")}
}

// Show brings the face forward.
func (f *Face) Show(ctx context.Context) error {
	return f.call(capability.For("showFace()", func(s FaceShower) error { return s.ShowFace(ctx) }))
}

// MouthOn starts the talking animation.
func (f *Face) MouthOn(ctx context.Context) error {
	return f.call(capability.For("mouthOn(speed)", func(m MouthAnimator) error { return m.MouthOn(ctx, f.speed) }))
}

// MouthOff stops the talking animation.
func (f *Face) MouthOff(ctx context.Context) error {
	return f.call(capability.For("mouthOff()", func(m MouthAnimator) error { return m.MouthOff(ctx) }))
}

func (f *Face) call(s capability.Shape) error {
	_, err := capability.Negotiate(f.agent, s)
	if errors.Is(err, capability.ErrNoShape) {
		return nil
	}
	if err != nil {
		f.logger.Debug("face call failed", "shape", s.Name, "error", err)
	}
	return err
}

var _ emotion.Motion = (*MotionSurface)(nil)
