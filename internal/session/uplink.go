package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/verbascape/verbascape/internal/observe"
	"github.com/verbascape/verbascape/pkg/audio"
	"github.com/verbascape/verbascape/pkg/audio/capture"
	"github.com/verbascape/verbascape/pkg/provider/live"
)

// Uplink forwards capture frames to the live session, fire-and-forget.
//
// Frames preserve capture order but are never gated on playback state. While
// the session is not yet active (or no longer active), frames are dropped
// silently; real-time audio is inherently lossy and a late frame is worse
// than a missing one.
type Uplink struct {
	mu      sync.Mutex
	handle  live.SessionHandle
	active  bool
	metrics *observe.Metrics
}

// NewUplink creates an unbound, inactive Uplink.
func NewUplink(metrics *observe.Metrics) *Uplink {
	return &Uplink{metrics: metrics}
}

// Bind attaches the live session handle frames are forwarded to.
func (u *Uplink) Bind(handle live.SessionHandle) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.handle = handle
}

// Activate opens the forwarding window.
func (u *Uplink) Activate() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.active = true
}

// Deactivate closes the forwarding window. Frames arriving afterwards are
// dropped.
func (u *Uplink) Deactivate() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.active = false
}

// SendFrame implements [capture.FrameSink].
func (u *Uplink) SendFrame(frame audio.AudioFrame) {
	u.mu.Lock()
	handle, active := u.handle, u.active
	u.mu.Unlock()

	if !active || handle == nil {
		u.recordFrame(true)
		return
	}

	err := handle.SendFrame(live.Frame{
		MIMEType: live.MIMEPCMCapture,
		Data:     frame.Data,
	})
	if err != nil {
		slog.Debug("uplink frame dropped", "error", err)
		u.recordFrame(true)
		return
	}
	u.recordFrame(false)
}

func (u *Uplink) recordFrame(dropped bool) {
	if u.metrics != nil {
		u.metrics.RecordUplinkFrame(context.Background(), dropped)
	}
}

var _ capture.FrameSink = (*Uplink)(nil)
