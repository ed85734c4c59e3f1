package guest

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/shared/types"
)

// watch starts observing an embedder's visibility and destruction. Adding
// an embedder twice is a no-op.
func (m *Manager) watch(embedder surface.Surface) {
	if embedder.IsDestroyed() {
		return
	}
	id := embedder.ID()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.watched[id]; ok {
		return
	}
	// Subscribing never fires a listener, so it is safe under mu.
	m.watched[id] = &watch{
		embedder: embedder,
		visibility: embedder.On(types.EventVisibilityChange, func(_ *surface.Event, args ...any) {
			if vis, ok := visibilityArg(args); ok {
				m.onVisibilityChange(id, vis)
			}
		}),
		destroy: embedder.Once(surface.EventWillDestroy, func(*surface.Event, ...any) {
			m.onEmbedderDestroyed(id)
		}),
	}
	m.metrics.SetWatchedEmbedders(len(m.watched))
}

// Watched reports whether the embedder is currently observed.
func (m *Manager) Watched(embedder surface.ID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.watched[embedder]
	return ok
}

func (m *Manager) onVisibilityChange(embedderID surface.ID, vis types.Visibility) {
	m.mu.Lock()
	var targets []surface.Surface
	for _, inst := range m.guests {
		if inst.Embedder.ID() != embedderID {
			continue
		}
		v := vis
		inst.Visibility = &v
		targets = append(targets, inst.Surface)
	}
	m.mu.Unlock()

	for _, g := range targets {
		if err := g.Send(types.ChannelVisibilityChange, vis); err != nil {
			m.logger.Debug("Visibility not delivered", zap.Int64("guest_id", int64(g.ID())), zap.Error(err))
		}
	}
}

// onEmbedderDestroyed detaches every guest the embedder still owns, then
// stops watching it. Detach mutates the registry, so it runs over a
// snapshot of ids.
func (m *Manager) onEmbedderDestroyed(embedderID surface.ID) {
	m.mu.RLock()
	w, ok := m.watched[embedderID]
	var owned []surface.ID
	for id, inst := range m.guests {
		if inst.Embedder.ID() == embedderID {
			owned = append(owned, id)
		}
	}
	m.mu.RUnlock()

	if !ok {
		return
	}

	for _, id := range owned {
		m.Detach(w.embedder, id)
	}
	w.visibility.Unsubscribe()
	w.destroy.Unsubscribe()

	m.mu.Lock()
	delete(m.watched, embedderID)
	m.metrics.SetWatchedEmbedders(len(m.watched))
	m.mu.Unlock()

	m.logger.Debug("Embedder released",
		zap.Int64("embedder_id", int64(embedderID)),
		zap.Int("guests_detached", len(owned)),
	)
}

func visibilityArg(args []any) (types.Visibility, bool) {
	if len(args) == 0 {
		return "", false
	}
	switch v := args[0].(type) {
	case types.Visibility:
		return v, true
	case string:
		return types.Visibility(v), true
	}
	return "", false
}
