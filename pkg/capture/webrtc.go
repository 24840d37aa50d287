package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"gopkg.in/hraban/opus.v2"
)

// maxOpusFrame is 120ms at 48kHz, the largest Opus frame.
const maxOpusFrame = 5760

// WebRTCDevice keeps one WebRTC session with the robot's audio producer
// and taps the decoded microphone stream while a recording is active.
//
// Signalling follows the GStreamer webrtcsink protocol: welcome, list,
// startSession, then peer messages carrying SDP and ICE.
type WebRTCDevice struct {
	cfg    WebRTCConfig
	logger *slog.Logger

	ws      *websocket.Conn
	wsMutex sync.Mutex
	pc      *webrtc.PeerConnection
	decoder *opus.Decoder

	myPeerID   string
	producerID string
	sessionID  string

	trackReady chan struct{}
	readyOnce  sync.Once

	mu     sync.Mutex
	active *pcmRecorder
	closed bool
}

// NewWebRTCDevice creates an unconnected device.
func NewWebRTCDevice(cfg WebRTCConfig, logger *slog.Logger) *WebRTCDevice {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	return &WebRTCDevice{
		cfg:        cfg,
		logger:     logger.With("component", "capture.webrtc"),
		trackReady: make(chan struct{}),
	}
}

// Connect performs signalling and waits for the audio track.
func (d *WebRTCDevice) Connect(ctx context.Context) error {
	decoder, err := opus.NewDecoder(d.cfg.SampleRate, d.cfg.Channels)
	if err != nil {
		return fmt.Errorf("capture: opus decoder: %w", err)
	}
	d.decoder = decoder

	dialer := websocket.Dialer{HandshakeTimeout: d.cfg.HandshakeTimeout}
	d.ws, _, err = dialer.DialContext(ctx, d.cfg.SignallingURL, nil)
	if err != nil {
		return fmt.Errorf("capture: signalling connect: %w", err)
	}

	if err := d.waitForWelcome(); err != nil {
		return fmt.Errorf("capture: welcome: %w", err)
	}
	if err := d.findProducer(); err != nil {
		return fmt.Errorf("capture: find producer: %w", err)
	}
	if err := d.createPeerConnection(); err != nil {
		return fmt.Errorf("capture: peer connection: %w", err)
	}
	if err := d.writeJSON(map[string]string{"type": "startSession", "peerId": d.producerID}); err != nil {
		return fmt.Errorf("capture: start session: %w", err)
	}

	go d.handleSignalling()

	timeout := d.cfg.TrackTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	select {
	case <-d.trackReady:
		d.logger.Info("microphone connected", "producer", d.producerID)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return errors.New("capture: timeout waiting for audio track")
	}
}

// StartCapture starts writing decoded audio to h.
func (d *WebRTCDevice) StartCapture(h AudioHandle) (Recorder, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, ErrDeviceClosed
	}

	rec, err := newPCMRecorder(h, d.cfg.SampleRate, d.cfg.Channels)
	if err != nil {
		return nil, err
	}
	rec.onStop = func() {
		d.mu.Lock()
		if d.active == rec {
			d.active = nil
		}
		d.mu.Unlock()
	}

	d.mu.Lock()
	prev := d.active
	d.active = rec
	d.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}
	return rec, nil
}

// Close tears down the session.
func (d *WebRTCDevice) Close() error {
	d.mu.Lock()
	d.closed = true
	active := d.active
	d.mu.Unlock()
	if active != nil {
		active.Stop()
	}
	if d.pc != nil {
		d.pc.Close()
	}
	if d.ws != nil {
		return d.ws.Close()
	}
	return nil
}

func (d *WebRTCDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *WebRTCDevice) session() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionID
}

func (d *WebRTCDevice) writeJSON(v any) error {
	d.wsMutex.Lock()
	defer d.wsMutex.Unlock()
	return d.ws.WriteJSON(v)
}

func (d *WebRTCDevice) waitForWelcome() error {
	d.ws.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := d.ws.ReadMessage()
	d.ws.SetReadDeadline(time.Time{})
	if err != nil {
		return err
	}

	var welcome struct {
		Type   string `json:"type"`
		PeerID string `json:"peerId"`
	}
	if err := json.Unmarshal(msg, &welcome); err != nil {
		return err
	}
	if welcome.Type != "welcome" {
		return fmt.Errorf("expected welcome, got %s", welcome.Type)
	}
	d.myPeerID = welcome.PeerID
	return nil
}

func (d *WebRTCDevice) findProducer() error {
	if err := d.writeJSON(map[string]string{"type": "list"}); err != nil {
		return err
	}

	d.ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := d.ws.ReadMessage()
	d.ws.SetReadDeadline(time.Time{})
	if err != nil {
		return err
	}

	var list struct {
		Producers []struct {
			ID   string            `json:"id"`
			Meta map[string]string `json:"meta"`
		} `json:"producers"`
	}
	if err := json.Unmarshal(msg, &list); err != nil {
		return err
	}
	for _, p := range list.Producers {
		if p.Meta["name"] == d.cfg.Producer {
			d.producerID = p.ID
			return nil
		}
	}
	return fmt.Errorf("producer %q not found among %d", d.cfg.Producer, len(list.Producers))
}

func (d *WebRTCDevice) createPeerConnection() error {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}
	d.pc = pc

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return err
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		d.logger.Debug("track received", "codec", track.Codec().MimeType)
		d.readyOnce.Do(func() { close(d.trackReady) })
		go d.readTrack(track)
	})

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			d.sendICECandidate(c)
		}
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		d.logger.Debug("connection state", "state", s.String())
	})
	return nil
}

func (d *WebRTCDevice) readTrack(track *webrtc.TrackRemote) {
	pcm := make([]int16, maxOpusFrame*d.cfg.Channels)
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !d.isClosed() {
				d.logger.Warn("audio track ended", "error", err)
			}
			return
		}
		samples, err := d.decodePacket(pkt, pcm)
		if err != nil {
			d.logger.Debug("opus decode failed", "error", err)
			continue
		}

		d.mu.Lock()
		rec := d.active
		d.mu.Unlock()
		if rec != nil {
			rec.write(samples)
		}
	}
}

// decodePacket decodes one RTP packet into pcm and returns the filled part.
func (d *WebRTCDevice) decodePacket(pkt *rtp.Packet, pcm []int16) ([]int16, error) {
	if len(pkt.Payload) == 0 {
		return nil, errors.New("empty payload")
	}
	n, err := d.decoder.Decode(pkt.Payload, pcm)
	if err != nil {
		return nil, err
	}
	return pcm[:n*d.cfg.Channels], nil
}

func (d *WebRTCDevice) handleSignalling() {
	for {
		_, msg, err := d.ws.ReadMessage()
		if err != nil {
			if !d.isClosed() {
				d.logger.Warn("signalling closed", "error", err)
			}
			return
		}

		var base struct {
			Type      string `json:"type"`
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "sessionStarted":
			d.mu.Lock()
			d.sessionID = base.SessionID
			d.mu.Unlock()
		case "peer":
			d.handlePeerMessage(msg)
		case "endSession":
			return
		}
	}
}

type peerMessage struct {
	SDP *struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	} `json:"sdp"`
	ICE *struct {
		Candidate     string  `json:"candidate"`
		SDPMid        *string `json:"sdpMid"`
		SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
	} `json:"ice"`
}

func (d *WebRTCDevice) handlePeerMessage(msg []byte) {
	var pm peerMessage
	if err := json.Unmarshal(msg, &pm); err != nil {
		d.logger.Debug("bad peer message", "error", err)
		return
	}

	if pm.SDP != nil && pm.SDP.Type == "offer" {
		offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: pm.SDP.SDP}
		if err := d.pc.SetRemoteDescription(offer); err != nil {
			d.logger.Warn("set remote description", "error", err)
			return
		}
		answer, err := d.pc.CreateAnswer(nil)
		if err != nil {
			d.logger.Warn("create answer", "error", err)
			return
		}
		if err := d.pc.SetLocalDescription(answer); err != nil {
			d.logger.Warn("set local description", "error", err)
			return
		}
		d.writeJSON(map[string]any{
			"type":      "peer",
			"sessionId": d.session(),
			"sdp":       map[string]string{"type": answer.Type.String(), "sdp": answer.SDP},
		})
	}

	if pm.ICE != nil {
		if err := d.pc.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:     pm.ICE.Candidate,
			SDPMid:        pm.ICE.SDPMid,
			SDPMLineIndex: pm.ICE.SDPMLineIndex,
		}); err != nil {
			d.logger.Debug("add ice candidate", "error", err)
		}
	}
}

func (d *WebRTCDevice) sendICECandidate(c *webrtc.ICECandidate) {
	sessionID := d.session()
	if sessionID == "" {
		return
	}
	init := c.ToJSON()
	d.writeJSON(map[string]any{
		"type":      "peer",
		"sessionId": sessionID,
		"ice": map[string]any{
			"candidate":     init.Candidate,
			"sdpMLineIndex": init.SDPMLineIndex,
		},
	})
}

var _ Device = (*WebRTCDevice)(nil)
