package stream

import (
	"net/http"

	"github.com/satindergrewal/stillroom/internal/audio"
	"github.com/satindergrewal/stillroom/internal/logger"
)

// HTTPHandler serves the live mix as an endless chunked WAV stream.
type HTTPHandler struct {
	broadcaster *Broadcaster
	log         *logger.Logger
}

// NewHTTPHandler creates an HTTP stream handler.
func NewHTTPHandler(b *Broadcaster, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{broadcaster: b, log: logger.OrNop(log).Named("http-stream")}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	if !h.broadcaster.Live() {
		http.Error(w, "audio output not started", http.StatusServiceUnavailable)
		return
	}

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if err := audio.WriteWAVHeader(w, audio.StreamingDataSize); err != nil {
		return
	}
	flusher.Flush()

	h.log.Infow("HTTP listener connected", "total", h.broadcaster.ListenerCount())
	defer h.log.Infow("HTTP listener disconnected")

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-listener.Done():
			return
		case frame := <-listener.C:
			if _, err := w.Write(audio.SamplesToBytes(frame)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
