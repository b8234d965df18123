package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/satindergrewal/stillroom/internal/audio"
	"github.com/satindergrewal/stillroom/internal/logger"
	"gopkg.in/hraban/opus.v2"
)

const (
	// opusBitrate is the encoder target for the stereo mix.
	opusBitrate = 96000
	// gatherTimeout bounds ICE candidate gathering for one offer.
	gatherTimeout = 10 * time.Second
)

// sampleWriter is the half of a local track the streaming loop needs.
type sampleWriter interface {
	WriteSample(media.Sample) error
}

// negotiationError carries the HTTP status a failed negotiation answers with.
type negotiationError struct {
	status int
	msg    string
	err    error
}

func (e *negotiationError) Error() string { return fmt.Sprintf("%s: %v", e.msg, e.err) }
func (e *negotiationError) Unwrap() error { return e.err }

func failNegotiation(status int, msg string, err error) error {
	return &negotiationError{status: status, msg: msg, err: err}
}

// WebRTCHandler answers SDP offers with an Opus track carrying the live mix.
type WebRTCHandler struct {
	broadcaster *Broadcaster
	log         *logger.Logger
	mu          sync.Mutex
	peers       []*webrtc.PeerConnection
}

// NewWebRTCHandler creates a WebRTC stream handler.
func NewWebRTCHandler(b *Broadcaster, log *logger.Logger) *WebRTCHandler {
	return &WebRTCHandler{
		broadcaster: b,
		log:         logger.OrNop(log).Named("webrtc"),
	}
}

// PeerCount returns the number of active WebRTC peers.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	if !h.broadcaster.Live() {
		http.Error(w, "audio output not started", http.StatusServiceUnavailable)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	pc, track, err := h.negotiate(r.Context(), offer)
	if err != nil {
		var ne *negotiationError
		if errors.As(err, &ne) {
			h.log.Warnw("webrtc negotiation failed", "err", err)
			http.Error(w, ne.msg, ne.status)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	h.peers = append(h.peers, pc)
	h.mu.Unlock()
	h.log.Infow("webrtc peer connected", "total", h.PeerCount())

	go h.streamToPeer(pc, track)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(pc.LocalDescription()); err != nil {
		h.log.Warnw("write sdp answer failed", "err", err)
	}
}

// negotiate builds a peer connection for offer and waits for ICE gathering,
// bounded by ctx and gatherTimeout. The connection is closed on any failure.
func (h *WebRTCHandler) negotiate(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.PeerConnection, *webrtc.TrackLocalStaticSample, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, nil, failNegotiation(http.StatusInternalServerError, "create peer connection failed", err)
	}

	fail := func(status int, msg string, err error) (*webrtc.PeerConnection, *webrtc.TrackLocalStaticSample, error) {
		_ = pc.Close()
		return nil, nil, failNegotiation(status, msg, err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"stillroom",
	)
	if err != nil {
		return fail(http.StatusInternalServerError, "create audio track failed", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		return fail(http.StatusInternalServerError, "add track failed", err)
	}

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			h.dropPeer(pc)
		}
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		return fail(http.StatusBadRequest, "set remote description failed", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fail(http.StatusInternalServerError, "create answer failed", err)
	}

	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return fail(http.StatusInternalServerError, "set local description failed", err)
	}

	ctx, cancel := context.WithTimeout(ctx, gatherTimeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return fail(http.StatusServiceUnavailable, "ice gathering aborted", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return fail(http.StatusServiceUnavailable, "ice gathering aborted", ctx.Err())
	}
	return pc, track, nil
}

// streamToPeer encodes broadcast frames to Opus until the listener is
// released or the track stops accepting samples, then hangs up the peer.
func (h *WebRTCHandler) streamToPeer(pc *webrtc.PeerConnection, track sampleWriter) {
	defer h.dropPeer(pc)

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		h.log.Errorw("opus encoder init failed", "err", err)
		return
	}
	if err := enc.SetBitrate(opusBitrate); err != nil {
		h.log.Warnw("opus bitrate rejected", "bitrate", opusBitrate, "err", err)
	}

	opusBuf := make([]byte, 4000)
	for {
		select {
		case <-listener.Done():
			return
		case frame, ok := <-listener.C:
			if !ok {
				return
			}
			n, err := enc.Encode(frame, opusBuf)
			if err != nil {
				h.log.Warnw("opus encode failed", "err", err)
				continue
			}
			sample := media.Sample{Data: opusBuf[:n], Duration: audio.FrameDuration}
			if err := track.WriteSample(sample); err != nil {
				h.log.Infow("webrtc track closed", "err", err)
				return
			}
		}
	}
}

// dropPeer forgets pc and closes it. Safe to call more than once.
func (h *WebRTCHandler) dropPeer(pc *webrtc.PeerConnection) {
	h.mu.Lock()
	found := false
	for i, p := range h.peers {
		if p == pc {
			h.peers = append(h.peers[:i], h.peers[i+1:]...)
			found = true
			break
		}
	}
	remaining := len(h.peers)
	h.mu.Unlock()

	_ = pc.Close()
	if found {
		h.log.Infow("webrtc peer disconnected", "remaining", remaining)
	}
}

// Close hangs up every peer.
func (h *WebRTCHandler) Close() {
	h.mu.Lock()
	peers := h.peers
	h.peers = nil
	h.mu.Unlock()
	for _, pc := range peers {
		_ = pc.Close()
	}
}
