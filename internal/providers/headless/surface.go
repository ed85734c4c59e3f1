package headless

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
)

// Events emitted by headless surfaces beyond the lifecycle set.
const (
	EventDidStartLoading    = "did-start-loading"
	EventDidStopLoading     = "did-stop-loading"
	EventDidStartNavigation = "did-start-navigation"
	EventWillNavigate       = "will-navigate"
	EventDidNavigate        = "did-navigate"
	EventLoadCommit         = "load-commit"
	EventPageTitleUpdated   = "page-title-updated"
	EventPageFaviconUpdated = "page-favicon-updated"
	EventDidFrameFinishLoad = "did-frame-finish-load"
	EventDidFinishLoad      = "did-finish-load"
	EventDidFailLoad        = "did-fail-load"
	EventConsoleMessage     = "console-message"
	EventFoundInPage        = "found-in-page"
	EventDevToolsOpened     = "devtools-opened"
	EventDevToolsClosed     = "devtools-closed"
	EventIPCMessageHost     = "ipc-message-host"
)

const zoomBase = 1.2

// Message is an internal message delivered to a surface's renderer.
type Message struct {
	Channel string
	Args    []any
}

// Surface is a headless page.
type Surface struct {
	*surface.Base

	cfg       Config
	partition string
	session   *Session
	sessions  *Sessions
	runtime   *Runtime
	logger    *zap.Logger

	mu        sync.Mutex
	url       string
	title     string
	text      string
	html      string
	history   []string
	index     int
	loading   bool
	navSeq    uint64
	cancelNav context.CancelFunc

	userAgent   string
	audioMuted  bool
	zoomLevel   float64
	layoutZoom  [2]float64
	visualZoom  [2]float64
	frameRate   int
	css         map[string]string
	cssSeq      int
	findSeq     int
	devTools    bool
	attached    bool
	frameID     int
	inbox       []Message
	typed       []string
	inputEvents []any
	edits       []string
}

func newSurface(id surface.ID, prefs surface.Preferences, partition string, sess *Session, sessions *Sessions, cfg Config, logger *zap.Logger) *Surface {
	s := &Surface{
		Base:       surface.NewBase(id, prefs),
		cfg:        cfg,
		partition:  partition,
		session:    sess,
		sessions:   sessions,
		runtime:    NewRuntime(cfg.ScriptTimeout),
		logger:     logger.With(zap.Int64("surface_id", int64(id))),
		index:      -1,
		userAgent:  cfg.UserAgent,
		layoutZoom: [2]float64{1, 1},
		visualZoom: [2]float64{1, 1},
		frameRate:  60,
		css:        make(map[string]string),
	}
	s.applyZoomPreference(s.Base.Preferences())
	return s
}

// Destroy tears the page down and emits will-destroy and destroyed once.
func (s *Surface) Destroy() {
	s.DestroyWith(func() {
		s.mu.Lock()
		if s.cancelNav != nil {
			s.cancelNav()
			s.cancelNav = nil
		}
		s.attached = false
		s.mu.Unlock()

		s.runtime.Close()
		if s.sessions != nil {
			s.sessions.Release(s.partition)
		}
	})
}

// ApplyPreferences replaces the effective preferences and the zoom factor
// they carry.
func (s *Surface) ApplyPreferences(prefs surface.Preferences) {
	s.SetPreferences(prefs)
	s.applyZoomPreference(s.Base.Preferences())
}

func (s *Surface) applyZoomPreference(prefs surface.Preferences) {
	if factor, ok := prefs.Float(surface.PrefZoomFactor); ok && factor > 0 {
		s.mu.Lock()
		s.zoomLevel = factorToLevel(factor)
		s.mu.Unlock()
	}
}

// Send records an internal message for the page.
func (s *Surface) Send(channel string, args ...any) error {
	if s.IsDestroyed() {
		return surface.ErrDestroyed
	}
	s.mu.Lock()
	s.inbox = append(s.inbox, Message{Channel: channel, Args: args})
	s.mu.Unlock()
	return nil
}

// Inbox returns the messages delivered so far.
func (s *Surface) Inbox() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.inbox...)
}

// PostToHost sends a message from the page to its host.
func (s *Surface) PostToHost(channel string, args ...any) {
	if s.IsDestroyed() {
		return
	}
	s.Emit(EventIPCMessageHost, channel, args)
}

// ReportFocus tells the host the page gained or lost focus.
func (s *Surface) ReportFocus(focus bool) {
	if s.IsDestroyed() {
		return
	}
	s.Emit(surface.EventFocusReport, focus)
}

// AttachToFrame places the page in a frame of embedder and signals
// readiness with did-attach.
func (s *Surface) AttachToFrame(embedder surface.Surface, frameID int) error {
	if s.IsDestroyed() {
		return surface.ErrDestroyed
	}
	s.SetEmbedder(embedder)
	s.mu.Lock()
	s.attached = true
	s.frameID = frameID
	s.mu.Unlock()

	s.Emit(surface.EventDidAttach)
	return nil
}

// DetachFromOuterFrame removes the page from its frame without destroying it.
func (s *Surface) DetachFromOuterFrame() {
	s.mu.Lock()
	s.attached = false
	s.frameID = 0
	s.mu.Unlock()
}

// Attached reports whether the page sits in a frame and which one.
func (s *Surface) Attached() (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached, s.frameID
}

func (s *Surface) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *Surface) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// Session returns the partition session of the page.
func (s *Surface) Session() *Session {
	return s.session
}

// Property reads a page property.
func (s *Surface) Property(name string) (any, error) {
	if s.IsDestroyed() {
		return nil, surface.ErrDestroyed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch name {
	case "audioMuted":
		return s.audioMuted, nil
	case "userAgent":
		return s.userAgent, nil
	case "zoomLevel":
		return s.zoomLevel, nil
	case "zoomFactor":
		return levelToFactor(s.zoomLevel), nil
	case "frameRate":
		return s.frameRate, nil
	case "src":
		return s.url, nil
	default:
		return nil, fmt.Errorf("%w: property %q", surface.ErrUnsupported, name)
	}
}

// SetProperty writes a page property.
func (s *Surface) SetProperty(name string, value any) error {
	if s.IsDestroyed() {
		return surface.ErrDestroyed
	}

	switch name {
	case "audioMuted":
		muted, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%w: audioMuted must be a boolean", surface.ErrInvalidArgument)
		}
		s.mu.Lock()
		s.audioMuted = muted
		s.mu.Unlock()
	case "userAgent":
		ua, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: userAgent must be a string", surface.ErrInvalidArgument)
		}
		s.mu.Lock()
		s.userAgent = ua
		s.mu.Unlock()
	case "zoomLevel":
		level, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("%w: zoomLevel must be a number", surface.ErrInvalidArgument)
		}
		s.mu.Lock()
		s.zoomLevel = level
		s.mu.Unlock()
	case "zoomFactor":
		return s.setZoomFactor(value)
	case "frameRate":
		rate, ok := toFloat(value)
		if !ok || rate < 1 || rate > 240 {
			return fmt.Errorf("%w: frameRate must be between 1 and 240", surface.ErrInvalidArgument)
		}
		s.mu.Lock()
		s.frameRate = int(rate)
		s.mu.Unlock()
	default:
		return fmt.Errorf("%w: property %q", surface.ErrUnsupported, name)
	}
	return nil
}

func (s *Surface) setZoomFactor(value any) error {
	factor, ok := toFloat(value)
	if !ok || factor <= 0 {
		return fmt.Errorf("%w: zoomFactor must be greater than 0", surface.ErrInvalidArgument)
	}
	s.mu.Lock()
	s.zoomLevel = factorToLevel(factor)
	s.mu.Unlock()
	return nil
}

func factorToLevel(factor float64) float64 {
	return math.Log(factor) / math.Log(zoomBase)
}

func levelToFactor(level float64) float64 {
	return math.Pow(zoomBase, level)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
