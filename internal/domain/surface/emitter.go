package surface

import (
	"sync"
)

// Listener receives an emitted event and its arguments.
type Listener func(e *Event, args ...any)

// Event is passed to every listener of a single emission.
type Event struct {
	Name string

	mu        sync.Mutex
	prevented bool
}

// PreventDefault marks the event as cancelled for the emitter.
func (e *Event) PreventDefault() {
	e.mu.Lock()
	e.prevented = true
	e.mu.Unlock()
}

// DefaultPrevented reports whether any listener called PreventDefault.
func (e *Event) DefaultPrevented() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prevented
}

// Subscription is returned by On and Once. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	emitter *Emitter
	event   string
	id      uint64
}

func (s *subscription) Unsubscribe() {
	s.emitter.remove(s.event, s.id)
}

type registration struct {
	id       uint64
	listener Listener
	once     bool
	fired    bool
	removed  bool
}

// Emitter dispatches named events to listeners in registration order.
// Listeners run synchronously on the emitting goroutine and may re-enter
// the emitter (subscribe, unsubscribe or emit) without deadlocking.
type Emitter struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[string][]*registration
}

// NewEmitter creates an empty emitter
func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[string][]*registration)}
}

// On registers a listener for every emission of event.
func (em *Emitter) On(event string, l Listener) Subscription {
	return em.add(event, l, false)
}

// Once registers a listener that fires on the next emission only.
func (em *Emitter) Once(event string, l Listener) Subscription {
	return em.add(event, l, true)
}

func (em *Emitter) add(event string, l Listener, once bool) Subscription {
	em.mu.Lock()
	defer em.mu.Unlock()

	em.nextID++
	reg := &registration{id: em.nextID, listener: l, once: once}
	em.listeners[event] = append(em.listeners[event], reg)
	return &subscription{emitter: em, event: event, id: reg.id}
}

func (em *Emitter) remove(event string, id uint64) {
	em.mu.Lock()
	defer em.mu.Unlock()

	regs := em.listeners[event]
	for i, reg := range regs {
		if reg.id == id {
			reg.removed = true
			em.listeners[event] = append(regs[:i:i], regs[i+1:]...)
			break
		}
	}
	if len(em.listeners[event]) == 0 {
		delete(em.listeners, event)
	}
}

// Emit delivers event to a snapshot of its current listeners and returns
// the event so callers can check DefaultPrevented. A listener removed by an
// earlier one during the same emission is skipped.
func (em *Emitter) Emit(event string, args ...any) *Event {
	e := &Event{Name: event}

	em.mu.Lock()
	regs := em.listeners[event]
	snapshot := make([]*registration, 0, len(regs))
	for _, reg := range regs {
		if reg.once {
			if reg.fired {
				continue
			}
			reg.fired = true
		}
		snapshot = append(snapshot, reg)
	}
	em.mu.Unlock()

	for _, reg := range snapshot {
		em.mu.Lock()
		removed := reg.removed
		em.mu.Unlock()
		if removed {
			continue
		}
		if reg.once {
			em.remove(event, reg.id)
		}
		reg.listener(e, args...)
	}
	return e
}

// ListenerCount returns the number of listeners registered for event.
func (em *Emitter) ListenerCount(event string) int {
	em.mu.Lock()
	defer em.mu.Unlock()
	return len(em.listeners[event])
}

// RemoveAll drops every listener.
func (em *Emitter) RemoveAll() {
	em.mu.Lock()
	for _, regs := range em.listeners {
		for _, reg := range regs {
			reg.removed = true
		}
	}
	em.listeners = make(map[string][]*registration)
	em.mu.Unlock()
}
