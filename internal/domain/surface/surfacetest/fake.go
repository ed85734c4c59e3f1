// Package surfacetest provides in-memory surfaces for tests of code that
// drives the surface contract.
package surfacetest

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
)

// ErrCallFailed is returned by Call for the method "fail".
var ErrCallFailed = errors.New("call failed")

// Message is one recorded Send.
type Message struct {
	Channel string
	Args    []any
}

// Fake is a surface that records everything done to it. AttachToFrame
// emits did-attach synchronously.
type Fake struct {
	*surface.Base

	mu       sync.Mutex
	sent     []Message
	frames   []int
	detaches int
	props    map[string]any
	calls    []string

	// Loads receives every URL passed to LoadURL.
	Loads chan string
	// Block, when set, makes Call wait until it is closed.
	Block chan struct{}
}

// New creates a fake surface
func New(id surface.ID, prefs surface.Preferences) *Fake {
	return &Fake{
		Base:  surface.NewBase(id, prefs),
		props: map[string]any{"src": ""},
		Loads: make(chan string, 16),
	}
}

func (f *Fake) Send(channel string, args ...any) error {
	if f.IsDestroyed() {
		return surface.ErrDestroyed
	}
	f.mu.Lock()
	f.sent = append(f.sent, Message{Channel: channel, Args: args})
	f.mu.Unlock()
	return nil
}

// Sent returns the recorded messages.
func (f *Fake) Sent() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

// SentOn returns the recorded messages on channel.
func (f *Fake) SentOn(channel string) []Message {
	var out []Message
	for _, m := range f.Sent() {
		if m.Channel == channel {
			out = append(out, m)
		}
	}
	return out
}

func (f *Fake) AttachToFrame(_ surface.Surface, frameID int) error {
	if f.IsDestroyed() {
		return surface.ErrDestroyed
	}
	f.mu.Lock()
	f.frames = append(f.frames, frameID)
	f.mu.Unlock()
	f.Emit(surface.EventDidAttach)
	return nil
}

// Frames returns the frames the surface was attached to, in order.
func (f *Fake) Frames() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.frames...)
}

func (f *Fake) DetachFromOuterFrame() {
	f.mu.Lock()
	f.detaches++
	f.mu.Unlock()
}

// Detaches returns how often DetachFromOuterFrame was called.
func (f *Fake) Detaches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detaches
}

func (f *Fake) LoadURL(_ context.Context, url string, _ surface.LoadOptions) error {
	f.mu.Lock()
	f.props["src"] = url
	f.mu.Unlock()
	select {
	case f.Loads <- url:
	default:
	}
	return nil
}

// Call echoes the method name. "fail" returns ErrCallFailed.
func (f *Fake) Call(ctx context.Context, method string, args []any) (any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	block := f.Block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if method == "fail" {
		return nil, ErrCallFailed
	}
	return map[string]any{"method": method, "args": args}, nil
}

// Calls returns the invoked method names.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) Property(name string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.props[name]
	if !ok {
		return nil, surface.ErrUnsupported
	}
	return v, nil
}

func (f *Fake) SetProperty(name string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.props[name] = value
	return nil
}

// CapturePage returns a blank 4x3 image.
func (f *Fake) CapturePage(context.Context, *surface.Rect) (*surface.Capture, error) {
	return &surface.Capture{Image: image.NewRGBA(image.Rect(0, 0, 4, 3)), ScaleFactor: 1}, nil
}

// Factory creates fakes from a shared sequence.
type Factory struct {
	seq *surface.Sequence

	mu      sync.Mutex
	created map[surface.ID]*Fake
	err     error
}

// NewFactory creates a factory
func NewFactory(seq *surface.Sequence) *Factory {
	if seq == nil {
		seq = surface.NewSequence()
	}
	return &Factory{seq: seq, created: make(map[surface.ID]*Fake)}
}

// Create implements surface.Factory.
func (f *Factory) Create(_ context.Context, opts surface.CreateOptions) (surface.Surface, error) {
	f.mu.Lock()
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.NewSurface(opts.Preferences), nil
}

// NewSurface creates a fake outside of Create, e.g. an embedder.
func (f *Factory) NewSurface(prefs surface.Preferences) *Fake {
	s := New(f.seq.Next(), prefs)
	f.mu.Lock()
	f.created[s.ID()] = s
	f.mu.Unlock()
	return s
}

// Get returns a fake created by this factory.
func (f *Factory) Get(id surface.ID) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[id]
}

// FailWith makes every following Create fail with err.
func (f *Factory) FailWith(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// BindingCall is one recorded Binding operation.
type BindingCall struct {
	GuestID  surface.ID
	Slot     int
	Embedder surface.ID
	Prefs    surface.Preferences
}

// Binding records AddGuest and RemoveGuest calls and applies the
// preferences it is handed to fake guests.
type Binding struct {
	mu      sync.Mutex
	added   []BindingCall
	removed []BindingCall
}

func (b *Binding) AddGuest(guestID surface.ID, elementSlotID int, embedder, guest surface.Surface, prefs surface.Preferences) {
	if f, ok := guest.(*Fake); ok {
		f.SetPreferences(prefs)
	}
	b.mu.Lock()
	b.added = append(b.added, BindingCall{GuestID: guestID, Slot: elementSlotID, Embedder: embedder.ID(), Prefs: prefs})
	b.mu.Unlock()
}

func (b *Binding) RemoveGuest(embedder surface.Surface, guestID surface.ID) {
	b.mu.Lock()
	b.removed = append(b.removed, BindingCall{GuestID: guestID, Embedder: embedder.ID()})
	b.mu.Unlock()
}

// Added returns the recorded AddGuest calls.
func (b *Binding) Added() []BindingCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]BindingCall(nil), b.added...)
}

// Removed returns the recorded RemoveGuest calls.
func (b *Binding) Removed() []BindingCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]BindingCall(nil), b.removed...)
}
