package robot

import "context"

// AgentV2 is the current firmware. It can report speech readiness, speaks
// in an explicit locale and drives the face.
type AgentV2 struct {
	t transport
}

// NewAgentV2 creates a generation 2 client without probing.
func NewAgentV2(cfg Config) *AgentV2 {
	return &AgentV2{t: newTransport(cfg)}
}

func (a *AgentV2) BaseURL() string { return a.t.baseURL }
func (a *AgentV2) Generation() int { return 2 }

// ServiceReady asks whether the speech service is up.
func (a *AgentV2) ServiceReady(ctx context.Context) (bool, error) {
	var resp struct {
		Ready bool `json:"ready"`
	}
	if err := a.t.get(ctx, "/api/v2/tts/ready", &resp); err != nil {
		return false, err
	}
	return resp.Ready, nil
}

// StartTTSLocale speaks text in locale.
func (a *AgentV2) StartTTSLocale(ctx context.Context, text, locale string) error {
	return a.t.post(ctx, "/api/v2/tts/speak", map[string]string{"text": text, "locale": locale})
}

// StopTTS interrupts speech.
func (a *AgentV2) StopTTS(ctx context.Context) error {
	return a.t.post(ctx, "/api/v2/tts/stop", nil)
}

// PlayMotion plays a motion once.
func (a *AgentV2) PlayMotion(ctx context.Context, name string) error {
	return a.t.post(ctx, "/api/v2/motion/play", map[string]string{"name": name})
}

// StopMotion stops the running motion.
func (a *AgentV2) StopMotion(ctx context.Context) error {
	return a.t.post(ctx, "/api/v2/motion/stop", nil)
}

// ShowFace brings the face to the front.
func (a *AgentV2) ShowFace(ctx context.Context) error {
	return a.t.post(ctx, "/api/v2/face/show", nil)
}

// MouthOn starts the talking animation.
func (a *AgentV2) MouthOn(ctx context.Context, speed int) error {
	return a.t.post(ctx, "/api/v2/face/mouth", map[string]any{"on": true, "speed": speed})
}

// MouthOff stops the talking animation.
func (a *AgentV2) MouthOff(ctx context.Context) error {
	return a.t.post(ctx, "/api/v2/face/mouth", map[string]any{"on": false})
}

// AgentV1 is the older firmware. It speaks in its configured locale only,
// has no readiness query and no face control.
type AgentV1 struct {
	t transport
}

// NewAgentV1 creates a generation 1 client without probing.
func NewAgentV1(cfg Config) *AgentV1 {
	return &AgentV1{t: newTransport(cfg)}
}

func (a *AgentV1) BaseURL() string { return a.t.baseURL }
func (a *AgentV1) Generation() int { return 1 }

// StartTTS speaks text.
func (a *AgentV1) StartTTS(ctx context.Context, text string) error {
	return a.t.post(ctx, "/api/v1/tts", map[string]string{"text": text})
}

// StopTTS interrupts speech.
func (a *AgentV1) StopTTS(ctx context.Context) error {
	return a.t.post(ctx, "/api/v1/tts/stop", nil)
}

// StartMotion starts a motion.
func (a *AgentV1) StartMotion(ctx context.Context, name string, loop bool) error {
	return a.t.post(ctx, "/api/v1/motion/start", map[string]any{"name": name, "loop": loop})
}

// PlayMotionByName is the oldest motion call, kept by some builds.
func (a *AgentV1) PlayMotionByName(ctx context.Context, name string) error {
	return a.t.post(ctx, "/api/v1/motion/play_by_name", map[string]string{"name": name})
}

// StopMotion stops the running motion.
func (a *AgentV1) StopMotion(ctx context.Context) error {
	return a.t.post(ctx, "/api/v1/motion/stop", nil)
}

var (
	_ Agent         = (*AgentV2)(nil)
	_ MotionPlayer  = (*AgentV2)(nil)
	_ MotionStopper = (*AgentV2)(nil)
	_ FaceShower    = (*AgentV2)(nil)
	_ MouthAnimator = (*AgentV2)(nil)

	_ Agent             = (*AgentV1)(nil)
	_ MotionStarter     = (*AgentV1)(nil)
	_ NamedMotionPlayer = (*AgentV1)(nil)
	_ MotionStopper     = (*AgentV1)(nil)
)
