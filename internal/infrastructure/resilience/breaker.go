package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned without running the call while a breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures a breaker group.
type Settings struct {
	// Threshold is the run of consecutive failures that opens a breaker.
	Threshold int
	// Cooldown is how long an open breaker rejects calls before probing.
	Cooldown time.Duration
	// IsFailure classifies call errors. Nil counts every error.
	IsFailure func(err error) bool
	// OnStateChange observes transitions. It runs with the breaker locked
	// and must not call back into it.
	OnStateChange func(key string, from, to State)
}

func (s Settings) withDefaults() Settings {
	if s.Threshold <= 0 {
		s.Threshold = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.IsFailure == nil {
		s.IsFailure = func(err error) bool { return err != nil }
	}
	return s
}

// Breaker guards calls to one upstream.
type Breaker struct {
	key      string
	settings Settings

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed breaker
func NewBreaker(key string, settings Settings) *Breaker {
	return &Breaker{key: key, settings: settings.withDefaults()}
}

// State returns the current state. An open breaker whose cooldown has
// elapsed reports half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current(time.Now())
}

// Do runs fn unless the breaker is open. While half-open only one probe
// runs at a time; concurrent calls are rejected until it reports back.
func (b *Breaker) Do(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}

	done := false
	defer func() {
		if !done {
			b.after(true)
		}
	}()
	err := fn()
	done = true
	b.after(b.settings.IsFailure(err))
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.current(time.Now()) {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) after(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.current(time.Now())
	if state == StateHalfOpen {
		b.probing = false
		if failed {
			b.transition(StateOpen)
		} else {
			b.transition(StateClosed)
		}
		return
	}
	if state != StateClosed {
		return
	}
	if !failed {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.settings.Threshold {
		b.transition(StateOpen)
	}
}

func (b *Breaker) current(now time.Time) State {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.settings.Cooldown {
		b.transition(StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.failures = 0
	if to == StateOpen {
		b.openedAt = time.Now()
	}
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.key, from, to)
	}
}

// Group holds one breaker per key, created on first use.
type Group struct {
	settings Settings

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewGroup creates an empty breaker group
func NewGroup(settings Settings) *Group {
	return &Group{
		settings: settings.withDefaults(),
		breakers: make(map[string]*Breaker),
	}
}

// Breaker returns the breaker for key.
func (g *Group) Breaker(key string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.breakers[key]
	if !ok {
		b = NewBreaker(key, g.settings)
		g.breakers[key] = b
	}
	return b
}

// Do runs fn through the breaker for key.
func (g *Group) Do(key string, fn func() error) error {
	return g.Breaker(key).Do(fn)
}

// Open returns the keys whose breakers are not closed.
func (g *Group) Open() []string {
	g.mu.Lock()
	breakers := make([]*Breaker, 0, len(g.breakers))
	for _, b := range g.breakers {
		breakers = append(breakers, b)
	}
	g.mu.Unlock()

	var keys []string
	for _, b := range breakers {
		if b.State() != StateClosed {
			keys = append(keys, b.key)
		}
	}
	return keys
}
