package guest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/shared/types"
)

// Outcome describes how an attach request ended when it did not fail.
type Outcome int

const (
	OutcomeAttached Outcome = iota
	// OutcomeUnchanged means the guest already occupied the slot.
	OutcomeUnchanged
	// OutcomeVetoed means a will-attach-webview listener prevented the
	// attach; the guest surface has been destroyed.
	OutcomeVetoed
)

// String returns the string representation of the outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeAttached:
		return "attached"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeVetoed:
		return "vetoed"
	default:
		return "unknown"
	}
}

// Attach binds guestID to the element slot elementSlotID of caller, hosted
// in the caller frame frameID.
func (m *Manager) Attach(ctx context.Context, caller surface.Surface, frameID, elementSlotID int, guestID surface.ID, params types.Params) (Outcome, error) {
	if caller.IsDestroyed() {
		return OutcomeUnchanged, fmt.Errorf("%w: embedder %d destroyed", ErrNotFound, caller.ID())
	}
	key := SlotKey{Embedder: caller.ID(), Slot: elementSlotID}

	m.mu.Lock()
	var occupant surface.Surface
	if occupantID, ok := m.slots[key]; ok {
		// Reattachment of the same guest is a no-op.
		if occupantID == guestID {
			m.mu.Unlock()
			return OutcomeUnchanged, nil
		}
		delete(m.slots, key)
		if occ, ok := m.guests[occupantID]; ok {
			occ.ElementSlotID = nil
			occupant = occ.Surface
		}
	}

	inst, err := m.lookupLocked(guestID, caller)
	if err != nil {
		m.mu.Unlock()
		if occupant != nil {
			occupant.DetachFromOuterFrame()
		}
		return OutcomeUnchanged, err
	}

	// Release the guest's previous slot, if it had one.
	var (
		previousEmbedder surface.Surface
		previousView     *int
		movingView       bool
	)
	if inst.ElementSlotID != nil {
		oldKey := SlotKey{Embedder: inst.Embedder.ID(), Slot: *inst.ElementSlotID}
		if m.slots[oldKey] == guestID {
			delete(m.slots, oldKey)
		}
		inst.ElementSlotID = nil
		if inst.ViewInstanceID == nil || *inst.ViewInstanceID != params.InstanceID {
			movingView = true
			previousEmbedder = inst.Embedder
			if inst.ViewInstanceID != nil {
				v := *inst.ViewInstanceID
				previousView = &v
			}
		}
	}
	g := inst.Surface
	m.mu.Unlock()

	if occupant != nil {
		occupant.DetachFromOuterFrame()
	}
	if movingView {
		m.binding.RemoveGuest(previousEmbedder, guestID)
		if previousView != nil && !previousEmbedder.IsDestroyed() {
			if err := previousEmbedder.Send(types.ForView(types.ChannelDestroyGuest, *previousView)); err != nil {
				m.logger.Debug("Destroy notice not delivered", zap.Int64("guest_id", int64(guestID)), zap.Error(err))
			}
		}
	}

	prefs := EffectivePreferences(guestID, caller.Preferences(), params)
	req := params
	ev := caller.Emit(types.EventWillAttachWebview, prefs, &req)
	if ev.DefaultPrevented() {
		m.mu.Lock()
		if cur, ok := m.guests[guestID]; ok && cur.ViewInstanceID == nil {
			v := params.InstanceID
			cur.ViewInstanceID = &v
		}
		m.mu.Unlock()

		m.logger.Info("Guest attach vetoed by embedder",
			zap.Int64("guest_id", int64(guestID)),
			zap.Int64("embedder_id", int64(caller.ID())),
		)
		g.Destroy()
		m.metrics.Attach(OutcomeVetoed.String())
		return OutcomeVetoed, nil
	}

	m.mu.Lock()
	inst, ok := m.guests[guestID]
	if !ok {
		m.mu.Unlock()
		return OutcomeUnchanged, fmt.Errorf("%w: %d destroyed during attach", ErrNotFound, guestID)
	}
	stashed := req
	inst.attachParams = &stashed
	m.slots[key] = guestID
	inst.Embedder = caller
	slot := elementSlotID
	inst.ElementSlotID = &slot
	m.mu.Unlock()

	g.SetEmbedder(caller)
	m.watch(caller)
	// The watcher ignores embedders already tearing down.
	if caller.IsDestroyed() {
		m.Detach(caller, guestID)
		return OutcomeUnchanged, fmt.Errorf("%w: embedder %d destroyed during attach", ErrNotFound, caller.ID())
	}
	m.binding.AddGuest(guestID, elementSlotID, caller, g, prefs)
	if err := g.AttachToFrame(caller, frameID); err != nil {
		return OutcomeAttached, fmt.Errorf("attach guest %d to frame %d: %w", guestID, frameID, err)
	}

	m.metrics.Attach(OutcomeAttached.String())
	m.logger.Debug("Guest attached",
		zap.Int64("guest_id", int64(guestID)),
		zap.Int64("embedder_id", int64(caller.ID())),
		zap.Int("element_slot_id", elementSlotID),
	)
	return OutcomeAttached, nil
}

// Detach removes the guest-embedder relationship and destroys the guest
// surface. It is a no-op for unknown guests and for callers that are not
// the guest's current embedder, so stale or duplicate requests are safe.
func (m *Manager) Detach(caller surface.Surface, guestID surface.ID) bool {
	if caller == nil {
		return false
	}

	m.mu.Lock()
	inst, ok := m.guests[guestID]
	if !ok || inst.Embedder.ID() != caller.ID() {
		m.mu.Unlock()
		return false
	}
	delete(m.guests, guestID)
	if inst.ElementSlotID != nil {
		key := SlotKey{Embedder: caller.ID(), Slot: *inst.ElementSlotID}
		if m.slots[key] == guestID {
			delete(m.slots, key)
		}
	}
	subs := inst.subs
	inst.subs = nil
	m.mu.Unlock()

	m.binding.RemoveGuest(caller, guestID)
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	inst.Surface.Destroy()

	m.metrics.GuestRemoved()
	m.logger.Debug("Guest detached",
		zap.Int64("guest_id", int64(guestID)),
		zap.Int64("embedder_id", int64(caller.ID())),
	)
	return true
}
