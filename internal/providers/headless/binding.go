package headless

import (
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
)

// Composition records one guest placed into an embedder.
type Composition struct {
	GuestID       surface.ID
	EmbedderID    surface.ID
	ElementSlotID int
}

// Binding composites headless guests into their embedders. Since nothing
// is drawn it tracks the relationship and applies the guest's effective
// preferences.
type Binding struct {
	logger *zap.Logger

	mu     sync.Mutex
	guests map[surface.ID]Composition // Protected by mu
}

// NewBinding creates an empty binding
func NewBinding(logger *zap.Logger) *Binding {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Binding{
		logger: logger.Named("binding"),
		guests: make(map[surface.ID]Composition),
	}
}

// AddGuest implements guest.Binding.
func (b *Binding) AddGuest(guestID surface.ID, elementSlotID int, embedder, guest surface.Surface, prefs surface.Preferences) {
	if hs, ok := guest.(*Surface); ok {
		hs.ApplyPreferences(prefs)
	}

	b.mu.Lock()
	b.guests[guestID] = Composition{GuestID: guestID, EmbedderID: embedder.ID(), ElementSlotID: elementSlotID}
	b.mu.Unlock()

	b.logger.Debug("Guest composited",
		zap.Int64("guest_id", int64(guestID)),
		zap.Int64("embedder_id", int64(embedder.ID())),
		zap.Int("element_slot_id", elementSlotID),
	)
}

// RemoveGuest implements guest.Binding.
func (b *Binding) RemoveGuest(embedder surface.Surface, guestID surface.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.guests[guestID]; ok && c.EmbedderID == embedder.ID() {
		delete(b.guests, guestID)
	}
}

// Composition returns where a guest is placed, if anywhere.
func (b *Binding) Composition(guestID surface.ID) (Composition, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.guests[guestID]
	return c, ok
}
