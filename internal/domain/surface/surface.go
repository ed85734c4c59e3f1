package surface

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
)

var (
	ErrDestroyed   = errors.New("surface destroyed")
	ErrUnsupported = errors.New("operation not supported by surface")

	// ErrInvalidArgument is returned for calls with malformed arguments.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Lifecycle events every surface emits.
const (
	EventWillDestroy = "will-destroy"
	EventDestroyed   = "destroyed"
	EventDidAttach   = "did-attach"
	EventDomReady    = "dom-ready"
)

// EventFocusReport is raised by a guest page whose focus changed. Its only
// argument is the new focus state.
const EventFocusReport = "guest-focus-report"

// ID identifies a surface for its whole lifetime
type ID int64

// Rect selects a region of a surface in device-independent pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// LoadOptions tunes a single navigation.
type LoadOptions struct {
	HTTPReferrer string
	UserAgent    string
}

// Capture is the result of CapturePage.
type Capture struct {
	Image       image.Image
	ScaleFactor float64
}

// Surface is the handle to a renderable unit. Implementations live outside
// the guest core; the core only forwards to them.
type Surface interface {
	ID() ID
	IsDestroyed() bool
	Destroy()

	On(event string, l Listener) Subscription
	Once(event string, l Listener) Subscription
	Emit(event string, args ...any) *Event

	// Send delivers an internal message to the surface's own renderer.
	Send(channel string, args ...any) error
	Preferences() Preferences

	SetEmbedder(embedder Surface)
	Embedder() Surface
	AttachToFrame(embedder Surface, frameID int) error
	DetachFromOuterFrame()

	LoadURL(ctx context.Context, url string, opts LoadOptions) error
	Call(ctx context.Context, method string, args []any) (any, error)
	Property(name string) (any, error)
	SetProperty(name string, value any) error
	CapturePage(ctx context.Context, rect *Rect) (*Capture, error)
}

// Sequence hands out surface ids. One sequence is shared by every factory
// of a host so ids never collide across surface kinds.
type Sequence struct {
	last atomic.Int64
}

// NewSequence creates a sequence starting at 1
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next returns the next unused id.
func (s *Sequence) Next() ID {
	return ID(s.last.Add(1))
}

// Base carries the state shared by every surface implementation: identity,
// the event emitter, preferences, the host embedder and destruction.
type Base struct {
	*Emitter

	id ID

	mu        sync.RWMutex
	prefs     Preferences
	embedder  Surface
	destroyed bool
}

// NewBase creates the shared part of a surface
func NewBase(id ID, prefs Preferences) *Base {
	return &Base{
		Emitter: NewEmitter(),
		id:      id,
		prefs:   WithDefaults(prefs),
	}
}

func (b *Base) ID() ID {
	return b.id
}

func (b *Base) IsDestroyed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.destroyed
}

// Destroy emits will-destroy and destroyed exactly once.
func (b *Base) Destroy() {
	b.DestroyWith(nil)
}

// DestroyWith runs cleanup between will-destroy and destroyed. Only the
// first call has any effect.
func (b *Base) DestroyWith(cleanup func()) {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	b.mu.Unlock()

	b.Emit(EventWillDestroy)
	if cleanup != nil {
		cleanup()
	}
	b.Emit(EventDestroyed)
	b.RemoveAll()
}

// Preferences returns a copy of the last effective preferences.
func (b *Base) Preferences() Preferences {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.prefs.Clone()
}

// SetPreferences replaces the effective preferences.
func (b *Base) SetPreferences(p Preferences) {
	b.mu.Lock()
	b.prefs = WithDefaults(p)
	b.mu.Unlock()
}

func (b *Base) SetEmbedder(embedder Surface) {
	b.mu.Lock()
	b.embedder = embedder
	b.mu.Unlock()
}

func (b *Base) Embedder() Surface {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.embedder
}

// CreateOptions describes a surface to be created by a Factory.
type CreateOptions struct {
	Partition   string
	Embedder    Surface
	Preferences Preferences
}

// Factory creates surfaces. Creation may complete asynchronously inside the
// implementation, but the returned handle and its ID are usable at once.
type Factory interface {
	Create(ctx context.Context, opts CreateOptions) (Surface, error)
}
