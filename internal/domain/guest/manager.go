package guest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/shared/types"
)

// Binding is the surface-embedding layer that actually composites a guest
// into its embedder.
type Binding interface {
	AddGuest(guestID surface.ID, elementSlotID int, embedder, guest surface.Surface, prefs surface.Preferences)
	RemoveGuest(embedder surface.Surface, guestID surface.ID)
}

// SlotKey addresses one placeholder element of one embedder.
type SlotKey struct {
	Embedder surface.ID
	Slot     int
}

// Instance is the registry record of one guest surface.
type Instance struct {
	ID             surface.ID
	Embedder       surface.Surface
	Surface        surface.Surface
	ElementSlotID  *int
	ViewInstanceID *int
	Visibility     *types.Visibility
	CreatedAt      time.Time

	attachParams *types.Params
	subs         []surface.Subscription
}

type watch struct {
	embedder   surface.Surface
	visibility surface.Subscription
	destroy    surface.Subscription
}

// Options configures a Manager.
type Options struct {
	Factory surface.Factory
	Binding Binding
	// Events lists the guest events forwarded to the embedder.
	Events  []string
	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Manager owns the guest registry, the slot map and the set of watched
// embedders. mu guards the maps and the mutable fields of every Instance;
// it is never held while calling into a surface, so surface callbacks may
// re-enter the manager.
type Manager struct {
	mu      sync.RWMutex
	guests  map[surface.ID]*Instance // Protected by mu
	slots   map[SlotKey]surface.ID   // Protected by mu
	watched map[surface.ID]*watch    // Protected by mu

	factory surface.Factory
	binding Binding
	events  []string
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewManager creates a guest manager
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		guests:  make(map[surface.ID]*Instance),
		slots:   make(map[SlotKey]surface.ID),
		watched: make(map[surface.ID]*watch),
		factory: opts.Factory,
		binding: opts.Binding,
		events:  append([]string(nil), opts.Events...),
		logger:  logger.Named("guest"),
		metrics: opts.Metrics,
	}
}

// Create allocates a new guest surface owned by embedder and registers it.
// A destroyed embedder cannot own guests.
func (m *Manager) Create(ctx context.Context, embedder surface.Surface, params types.Params) (surface.ID, error) {
	if embedder.IsDestroyed() {
		return 0, fmt.Errorf("%w: embedder %d destroyed", ErrNotFound, embedder.ID())
	}
	guest, err := m.factory.Create(ctx, surface.CreateOptions{
		Partition: params.Partition,
		Embedder:  embedder,
	})
	if err != nil {
		return 0, fmt.Errorf("create guest surface: %w", err)
	}

	inst := &Instance{
		ID:        guest.ID(),
		Embedder:  embedder,
		Surface:   guest,
		CreatedAt: time.Now(),
	}
	inst.subs = m.wire(inst)

	m.mu.Lock()
	m.guests[inst.ID] = inst
	m.mu.Unlock()

	m.metrics.GuestCreated()
	// The creator may have started tearing down before the record existed.
	if embedder.IsDestroyed() {
		m.Detach(embedder, inst.ID)
		return 0, fmt.Errorf("%w: embedder %d destroyed", ErrNotFound, embedder.ID())
	}
	m.logger.Debug("Guest created",
		zap.Int64("guest_id", int64(inst.ID)),
		zap.Int64("embedder_id", int64(embedder.ID())),
		zap.String("partition", params.Partition),
	)
	return inst.ID, nil
}

// Lookup returns a copy of the record for id.
func (m *Manager) Lookup(id surface.ID) (Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.guests[id]
	if !ok {
		return Instance{}, false
	}
	return inst.snapshot(), true
}

// LookupForCaller returns the guest surface if caller is its current
// embedder. Ownership can change between calls, so callers must not cache
// the result across requests.
func (m *Manager) LookupForCaller(id surface.ID, caller surface.Surface) (surface.Surface, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, err := m.lookupLocked(id, caller)
	if err != nil {
		return nil, err
	}
	return inst.Surface, nil
}

// lookupLocked must be called with mu held
func (m *Manager) lookupLocked(id surface.ID, caller surface.Surface) (*Instance, error) {
	inst, ok := m.guests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if caller == nil || inst.Embedder.ID() != caller.ID() {
		return nil, fmt.Errorf("%w: %d", ErrAccessDenied, id)
	}
	return inst, nil
}

// List returns snapshots of every registered guest.
func (m *Manager) List() []types.GuestInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.GuestInfo, 0, len(m.guests))
	for _, inst := range m.guests {
		snap := inst.snapshot()
		out = append(out, types.GuestInfo{
			GuestID:        int64(snap.ID),
			EmbedderID:     int64(snap.Embedder.ID()),
			ElementSlotID:  snap.ElementSlotID,
			ViewInstanceID: snap.ViewInstanceID,
			Visibility:     snap.Visibility,
			CreatedAt:      snap.CreatedAt,
		})
	}
	return out
}

// Stats returns manager statistics
func (m *Manager) Stats() types.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	attached := 0
	for _, inst := range m.guests {
		if inst.ElementSlotID != nil {
			attached++
		}
	}
	return types.Stats{
		Guests:           len(m.guests),
		AttachedGuests:   attached,
		Slots:            len(m.slots),
		WatchedEmbedders: len(m.watched),
	}
}

// SlotOccupant returns the guest attached to a slot, if any.
func (m *Manager) SlotOccupant(embedder surface.ID, slot int) (surface.ID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.slots[SlotKey{Embedder: embedder, Slot: slot}]
	return id, ok
}

// snapshot copies the exported fields so readers never share pointers
// with the registry.
func (inst *Instance) snapshot() Instance {
	out := Instance{
		ID:        inst.ID,
		Embedder:  inst.Embedder,
		Surface:   inst.Surface,
		CreatedAt: inst.CreatedAt,
	}
	if inst.ElementSlotID != nil {
		v := *inst.ElementSlotID
		out.ElementSlotID = &v
	}
	if inst.ViewInstanceID != nil {
		v := *inst.ViewInstanceID
		out.ViewInstanceID = &v
	}
	if inst.Visibility != nil {
		v := *inst.Visibility
		out.Visibility = &v
	}
	return out
}
