package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/satindergrewal/stillroom/internal/noise"
	"github.com/satindergrewal/stillroom/internal/presets"
	"github.com/satindergrewal/stillroom/internal/timer"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errInvalidBodyPref = "invalid body: "
	errMixerClosed     = "mixer is shut down"
	errApplyPreset     = "failed to apply preset"
)

type timerActionKind int

const (
	actionStart timerActionKind = iota
	actionResume
	actionPause
	actionToggle
	actionReset
	actionMode
)

// Request DTO for setting a band volume.
type volumeRequest struct {
	Band  string   `json:"band" binding:"required"`
	Value *float64 `json:"value" binding:"required"`
}

type autopilotRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type bandState struct {
	Band    noise.Band `json:"band"`
	Label   string     `json:"label"`
	Volume  float64    `json:"volume"`
	Running bool       `json:"running"`
}

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
		"audio":  h.services.Mixer.Status(),
	})
}

func (h *Handler) status(c *gin.Context) {
	resp := gin.H{
		"timer":     h.services.Timer.Snapshot(),
		"mixer":     h.services.Mixer.Volumes(),
		"audio":     h.services.Mixer.Status(),
		"autopilot": h.services.Autopilot.Status(),
	}
	if h.services.Listeners != nil {
		resp["listeners"] = h.services.Listeners()
	}
	c.JSON(http.StatusOK, resp)
}

// --- Timer ---

func (h *Handler) getTimer(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Timer.Snapshot())
}

func (h *Handler) timerAction(kind timerActionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		t := h.services.Timer
		switch kind {
		case actionStart:
			t.Start()
		case actionResume:
			t.Resume()
		case actionPause:
			t.Pause()
		case actionToggle:
			t.Toggle()
		case actionReset:
			t.Reset()
		case actionMode:
			t.SwitchMode()
		}
		c.JSON(http.StatusOK, t.Snapshot())
	}
}

// --- Mixer ---

func (h *Handler) mixerState() gin.H {
	m := h.services.Mixer
	vols := m.Volumes()
	bands := make([]bandState, 0, len(noise.Bands))
	for _, b := range noise.Bands {
		bands = append(bands, bandState{
			Band:    b,
			Label:   b.Label(),
			Volume:  vols.Get(b),
			Running: m.Running(b),
		})
	}
	return gin.H{"volumes": vols, "bands": bands, "audio": m.Status()}
}

func (h *Handler) getMixer(c *gin.Context) {
	c.JSON(http.StatusOK, h.mixerState())
}

func (h *Handler) setVolume(c *gin.Context) {
	var req volumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	band, err := noise.ParseBand(req.Band)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.services.Mixer.SetVolume(band, *req.Value); err != nil {
		h.mixerError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.mixerState())
}

func (h *Handler) stopBand(c *gin.Context) {
	band, err := noise.ParseBand(c.Param("band"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.services.Mixer.Stop(band); err != nil {
		h.mixerError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.mixerState())
}

func (h *Handler) mixerError(c *gin.Context, err error) {
	if errors.Is(err, noise.ErrClosed) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errMixerClosed})
		return
	}
	h.logAndJSONError(c, http.StatusInternalServerError, err.Error(), "mixer_failed", err)
}

// --- Presets ---

func (h *Handler) getPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"presets":   presets.List(),
		"autopilot": h.services.Autopilot.Status(),
	})
}

func (h *Handler) applyPreset(c *gin.Context) {
	name := c.Param("name")
	if err := h.services.Autopilot.Apply(name); err != nil {
		switch {
		case errors.Is(err, presets.ErrUnknownPreset):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, noise.ErrClosed):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": errMixerClosed})
		default:
			h.logAndJSONError(c, http.StatusInternalServerError, errApplyPreset, "preset_apply_failed", err, "preset", name)
		}
		return
	}
	resp := h.mixerState()
	resp["preset"] = name
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) setAutopilot(c *gin.Context) {
	var req autopilotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	h.services.Autopilot.SetEnabled(*req.Enabled)
	c.JSON(http.StatusOK, h.services.Autopilot.Status())
}

// snapshotFor is the WebSocket payload for a timer event.
func snapshotFor(ev timer.Event) wsEnvelope {
	return wsEnvelope{Type: string(ev.Type), Data: ev.Snapshot}
}
