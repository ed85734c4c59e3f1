package guest

import (
	"context"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/shared/types"
)

// wire registers every observer a freshly created guest needs. Listeners
// fire in registration order: the readiness observer precedes the
// forwarders so "did-attach" is already keyed by the new view-instance id,
// and the destroyed observer follows them so the embedder still sees the
// guest's own "destroyed" event before the record is dropped.
func (m *Manager) wire(inst *Instance) []surface.Subscription {
	id := inst.ID
	g := inst.Surface
	subs := make([]surface.Subscription, 0, len(m.events)+5)

	subs = append(subs, g.Once(surface.EventDidAttach, func(*surface.Event, ...any) {
		m.onFirstAttach(id)
	}))

	for _, name := range m.events {
		name := name
		switch name {
		case types.EventNewWindow:
			subs = append(subs, g.On(name, func(_ *surface.Event, args ...any) {
				m.sendToEmbedder(id, types.ChannelDispatchEvent, append([]any{name}, sanitizeForEmbedder(args)...)...)
			}))
		default:
			subs = append(subs, g.On(name, func(_ *surface.Event, args ...any) {
				m.sendToEmbedder(id, types.ChannelDispatchEvent, append([]any{name}, args...)...)
			}))
		}
	}

	subs = append(subs,
		g.On(types.EventIPCMessageHost, func(_ *surface.Event, args ...any) {
			m.relayIPC(id, args)
		}),
		g.On(surface.EventDomReady, func(*surface.Event, ...any) {
			m.replayVisibility(id)
		}),
		g.Once(surface.EventDestroyed, func(*surface.Event, ...any) {
			m.onGuestDestroyed(id)
		}),
		// Guests that never get attached are not covered by the embedder
		// watcher; drop them together with their creator.
		inst.Embedder.Once(surface.EventWillDestroy, func(*surface.Event, ...any) {
			m.dropIfUnattached(id)
		}),
	)
	return subs
}

// sendToEmbedder forwards to the guest's current embedder under a channel
// keyed by its view-instance id. Nothing is sent before the guest has a
// view-instance id or after its embedder is gone.
func (m *Manager) sendToEmbedder(id surface.ID, channel string, args ...any) {
	m.mu.RLock()
	inst, ok := m.guests[id]
	if !ok || inst.ViewInstanceID == nil {
		m.mu.RUnlock()
		return
	}
	embedder := inst.Embedder
	view := *inst.ViewInstanceID
	m.mu.RUnlock()

	if embedder.IsDestroyed() {
		return
	}
	if err := embedder.Send(types.ForView(channel, view), args...); err != nil {
		m.logger.Warn("Failed to forward to embedder",
			zap.Int64("guest_id", int64(id)),
			zap.String("channel", channel),
			zap.Error(err),
		)
		return
	}
	m.metrics.Forwarded(channel)
}

// relayIPC forwards a guest-originated message: args are (channel, payload...)
// where a single []any payload is spread.
func (m *Manager) relayIPC(id surface.ID, args []any) {
	if len(args) == 0 {
		return
	}
	channel, ok := args[0].(string)
	if !ok {
		return
	}
	out := []any{channel}
	rest := args[1:]
	if len(rest) == 1 {
		if spread, ok := rest[0].([]any); ok {
			rest = spread
		}
	}
	m.sendToEmbedder(id, types.ChannelIPCMessage, append(out, rest...)...)
}

func (m *Manager) replayVisibility(id surface.ID) {
	m.mu.RLock()
	inst, ok := m.guests[id]
	if !ok || inst.Visibility == nil {
		m.mu.RUnlock()
		return
	}
	g := inst.Surface
	vis := *inst.Visibility
	m.mu.RUnlock()

	if err := g.Send(types.ChannelVisibilityChange, vis); err != nil {
		m.logger.Debug("Visibility replay failed", zap.Int64("guest_id", int64(id)), zap.Error(err))
	}
}

// onFirstAttach runs on the guest's first readiness signal: it consumes the
// stashed attach params, fixes the view-instance id and starts the initial
// navigation.
func (m *Manager) onFirstAttach(id surface.ID) {
	m.mu.Lock()
	inst, ok := m.guests[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	params := inst.attachParams
	inst.attachParams = nil
	previouslyAttached := inst.ViewInstanceID != nil
	if params != nil && !previouslyAttached {
		v := params.InstanceID
		inst.ViewInstanceID = &v
	}
	embedder := inst.Embedder
	g := inst.Surface
	m.mu.Unlock()

	if previouslyAttached || params == nil {
		return
	}

	if params.Src != "" {
		src := params.Src
		opts := surface.LoadOptions{HTTPReferrer: params.HTTPReferrer, UserAgent: params.UserAgent}
		go func() {
			if err := g.LoadURL(context.Background(), src, opts); err != nil {
				m.logger.Warn("Initial navigation failed",
					zap.Int64("guest_id", int64(id)),
					zap.String("src", src),
					zap.Error(err),
				)
			}
		}()
	}
	embedder.Emit(types.EventDidAttachWebview, g)
}

func (m *Manager) onGuestDestroyed(id surface.ID) {
	m.mu.RLock()
	inst, ok := m.guests[id]
	var embedder surface.Surface
	if ok {
		embedder = inst.Embedder
	}
	m.mu.RUnlock()

	if ok {
		m.Detach(embedder, id)
	}
}

func (m *Manager) dropIfUnattached(id surface.ID) {
	m.mu.RLock()
	inst, ok := m.guests[id]
	unattached := ok && inst.ElementSlotID == nil
	var embedder surface.Surface
	if ok {
		embedder = inst.Embedder
	}
	m.mu.RUnlock()

	if unattached {
		m.Detach(embedder, id)
	}
}

// sanitizeForEmbedder strips live surface handles from an event payload;
// they cannot cross the process boundary.
func sanitizeForEmbedder(args []any) []any {
	out := make([]any, 0, len(args))
	for _, arg := range args {
		switch v := arg.(type) {
		case surface.Surface:
			out = append(out, nil)
		case map[string]any:
			clean := make(map[string]any, len(v))
			for k, val := range v {
				if k == "webContents" {
					continue
				}
				if _, live := val.(surface.Surface); live {
					continue
				}
				clean[k] = val
			}
			out = append(out, clean)
		default:
			out = append(out, arg)
		}
	}
	return out
}
