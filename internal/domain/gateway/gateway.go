package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/guest"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/shared/types"
)

// Gateway validates and executes requests from embedders. Inbound handling
// is serialized: one request is processed at a time, and synchronous guest
// calls made from a request must not re-enter the gateway.
type Gateway struct {
	mu      sync.Mutex
	guests  *guest.Manager
	caps    *Capabilities
	logger  *zap.Logger
	metrics *monitoring.Metrics

	gateMu sync.Mutex
	gate   map[surface.ID]bool // Protected by gateMu
}

// New creates a gateway over the guest manager
func New(guests *guest.Manager, caps *Capabilities, logger *zap.Logger, metrics *monitoring.Metrics) *Gateway {
	if caps == nil {
		caps = DefaultCapabilities()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		guests:  guests,
		caps:    caps,
		logger:  logger.Named("gateway"),
		metrics: metrics,
		gate:    make(map[surface.ID]bool),
	}
}

// Capabilities returns the allow-lists in force.
func (g *Gateway) Capabilities() *Capabilities {
	return g.caps
}

// Do runs fn in the gateway's serialization domain. Transports use it for
// embedder lifecycle changes that must not interleave with requests.
func (g *Gateway) Do(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn()
}

// embeddingEnabled reports whether sender may use guest surfaces. The answer
// is cached until the sender is destroyed.
func (g *Gateway) embeddingEnabled(sender surface.Surface) bool {
	id := sender.ID()

	g.gateMu.Lock()
	enabled, cached := g.gate[id]
	g.gateMu.Unlock()
	if cached {
		return enabled
	}

	enabled, _ = sender.Preferences().Bool(surface.PrefWebviewTag)
	if sender.IsDestroyed() {
		return enabled
	}

	g.gateMu.Lock()
	_, raced := g.gate[id]
	g.gate[id] = enabled
	g.gateMu.Unlock()
	if !raced {
		sender.Once(surface.EventDestroyed, func(*surface.Event, ...any) {
			g.gateMu.Lock()
			delete(g.gate, id)
			g.gateMu.Unlock()
		})
	}
	return enabled
}

func (g *Gateway) check(kind types.RequestKind, sender surface.Surface) error {
	if sender == nil {
		return fmt.Errorf("%w: %s without sender", ErrFeatureDisabled, kind)
	}
	if g.embeddingEnabled(sender) {
		return nil
	}
	g.logger.Error("Guest request from sender with embedding disabled",
		zap.String("kind", string(kind)),
		zap.Int64("sender_id", int64(sender.ID())),
	)
	return fmt.Errorf("%w: %s from surface %d", ErrFeatureDisabled, kind, sender.ID())
}

// CreateGuest creates a guest owned by sender.
func (g *Gateway) CreateGuest(ctx context.Context, sender surface.Surface, params types.Params) (surface.ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(types.KindCreateGuest, sender); err != nil {
		return 0, err
	}
	id, err := g.guests.Create(ctx, sender, params)
	if err != nil {
		return 0, err
	}
	g.observeFocus(id)
	return id, nil
}

// observeFocus relays focus reports raised by the guest page, with the
// guest itself as sender. Reports are only raised from asynchronous calls,
// which run outside the serialization lock.
func (g *Gateway) observeFocus(id surface.ID) {
	inst, ok := g.guests.Lookup(id)
	if !ok {
		return
	}
	page := inst.Surface
	page.On(surface.EventFocusReport, func(_ *surface.Event, args ...any) {
		if len(args) == 0 {
			return
		}
		if focus, ok := args[0].(bool); ok {
			g.FocusChanged(page, focus, id)
		}
	})
}

// AttachGuest attaches a guest to one of sender's element slots. Attach
// failures are logged rather than returned; only a gate rejection is an
// error.
func (g *Gateway) AttachGuest(ctx context.Context, sender surface.Surface, frameID, elementSlotID int, guestID surface.ID, params types.Params) (guest.Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(types.KindAttachGuest, sender); err != nil {
		return guest.OutcomeUnchanged, err
	}
	outcome, err := g.guests.Attach(ctx, sender, frameID, elementSlotID, guestID, params)
	if err != nil {
		g.logger.Error("Guest attach failed",
			zap.Int64("guest_id", int64(guestID)),
			zap.Int64("sender_id", int64(sender.ID())),
			zap.Int("element_slot_id", elementSlotID),
			zap.Error(err),
		)
	}
	return outcome, nil
}

// DetachGuest detaches a guest owned by sender. Unknown or foreign guests
// are ignored.
func (g *Gateway) DetachGuest(sender surface.Surface, guestID surface.ID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(types.KindDetachGuest, sender); err != nil {
		return false, err
	}
	return g.guests.Detach(sender, guestID), nil
}

// FocusChanged relays a focus change reported by a guest to its embedder.
// The sender must be the guest itself; anything else is logged and dropped.
func (g *Gateway) FocusChanged(sender surface.Surface, focus bool, guestID surface.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(types.KindFocusChange, sender); err != nil {
		return
	}
	inst, ok := g.guests.Lookup(guestID)
	if !ok || inst.Surface.ID() != sender.ID() {
		g.logger.Error("Focus change for a guest not owned by sender",
			zap.Int64("guest_id", int64(guestID)),
			zap.Int64("sender_id", int64(sender.ID())),
		)
		return
	}
	// Forwarding delivers this to the guest's current embedder.
	sender.Emit(types.EventFocusChange, focus, int64(guestID))
}

// InvokeAsync starts an allow-listed asynchronous call on a guest. The
// returned Pending completes with guest.ErrNotFound if the guest is
// destroyed before the call finishes.
func (g *Gateway) InvokeAsync(ctx context.Context, sender surface.Surface, guestID surface.ID, method string, args []any) (*Pending, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(types.KindInvokeAsync, sender); err != nil {
		return nil, err
	}
	target, err := g.guests.LookupForCaller(guestID, sender)
	if err != nil {
		return nil, err
	}
	if !g.caps.AsyncMethod(method) {
		return nil, fmt.Errorf("%w: async method %q", ErrInvalidOperation, method)
	}

	p := newPending()
	gone := func() error {
		return fmt.Errorf("%w: %d destroyed before %s completed", guest.ErrNotFound, guestID, method)
	}
	sub := target.Once(surface.EventDestroyed, func(*surface.Event, ...any) {
		p.resolve(nil, gone())
	})
	if target.IsDestroyed() {
		sub.Unsubscribe()
		return resolved(nil, gone()), nil
	}

	callCtx := context.WithoutCancel(ctx)
	go func() {
		result, err := target.Call(callCtx, method, args)
		sub.Unsubscribe()
		if target.IsDestroyed() {
			p.resolve(nil, gone())
			return
		}
		p.resolve(result, err)
	}()
	return p, nil
}

// InvokeSync runs an allow-listed synchronous call on a guest.
func (g *Gateway) InvokeSync(ctx context.Context, sender surface.Surface, guestID surface.ID, method string, args []any) (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(types.KindInvokeSync, sender); err != nil {
		return nil, err
	}
	target, err := g.guests.LookupForCaller(guestID, sender)
	if err != nil {
		return nil, err
	}
	if !g.caps.SyncMethod(method) {
		return nil, fmt.Errorf("%w: sync method %q", ErrInvalidOperation, method)
	}
	return target.Call(ctx, method, args)
}

// GetProperty reads a readable property of a guest.
func (g *Gateway) GetProperty(sender surface.Surface, guestID surface.ID, name string) (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(types.KindPropertyGet, sender); err != nil {
		return nil, err
	}
	target, err := g.guests.LookupForCaller(guestID, sender)
	if err != nil {
		return nil, err
	}
	if !g.caps.Readable(name) {
		return nil, fmt.Errorf("%w: property %q is not readable", ErrInvalidOperation, name)
	}
	return target.Property(name)
}

// SetProperty writes a writable property of a guest.
func (g *Gateway) SetProperty(sender surface.Surface, guestID surface.ID, name string, value any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(types.KindPropertySet, sender); err != nil {
		return err
	}
	target, err := g.guests.LookupForCaller(guestID, sender)
	if err != nil {
		return err
	}
	if !g.caps.Writable(name) {
		return fmt.Errorf("%w: property %q is not writable", ErrInvalidOperation, name)
	}
	return target.SetProperty(name, value)
}

// CapturePage captures a guest, optionally cropped to rect, and returns it
// in transport form.
func (g *Gateway) CapturePage(ctx context.Context, sender surface.Surface, guestID surface.ID, rect *surface.Rect) (types.SerializedImage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.check(types.KindCapturePage, sender); err != nil {
		return types.SerializedImage{}, err
	}
	target, err := g.guests.LookupForCaller(guestID, sender)
	if err != nil {
		return types.SerializedImage{}, err
	}
	capture, err := target.CapturePage(ctx, rect)
	if err != nil {
		if errors.Is(err, surface.ErrDestroyed) {
			return types.SerializedImage{}, fmt.Errorf("%w: %d", guest.ErrNotFound, guestID)
		}
		return types.SerializedImage{}, err
	}
	return SerializeImage(capture)
}
