package headless

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/infrastructure/resilience"
)

var (
	// ErrAborted is returned when a navigation is cancelled or superseded.
	ErrAborted = errors.New("navigation aborted")

	errInvalidURL    = errors.New("invalid url")
	errUnknownScheme = errors.New("unknown url scheme")
	errBlocked       = errors.New("host not allowed")
)

const aboutBlank = "about:blank"

// LoadURL navigates the page to rawURL and waits for the load to finish.
func (s *Surface) LoadURL(ctx context.Context, rawURL string, opts surface.LoadOptions) error {
	return s.navigate(ctx, rawURL, opts, -1)
}

// navigateAsync starts a navigation that callers do not wait for.
func (s *Surface) navigateAsync(rawURL string, historyIndex int) {
	go func() {
		if err := s.navigate(context.Background(), rawURL, surface.LoadOptions{}, historyIndex); err != nil && !errors.Is(err, ErrAborted) {
			s.logger.Debug("Navigation failed", zap.String("url", rawURL), zap.Error(err))
		}
	}()
}

// navigate loads rawURL. historyIndex selects an existing history entry;
// -1 pushes a new one.
func (s *Surface) navigate(ctx context.Context, rawURL string, opts surface.LoadOptions, historyIndex int) error {
	if s.IsDestroyed() {
		return surface.ErrDestroyed
	}

	target, err := url.Parse(rawURL)
	if err != nil || target.Scheme == "" {
		s.Emit(EventDidFailLoad, -300, "ERR_INVALID_URL", rawURL, true)
		return fmt.Errorf("%w: %q", errInvalidURL, rawURL)
	}
	if ev := s.Emit(EventWillNavigate, rawURL); ev.DefaultPrevented() {
		return fmt.Errorf("%w: %s prevented", ErrAborted, rawURL)
	}

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.LoadTimeout)
	defer cancel()

	s.mu.Lock()
	if s.cancelNav != nil {
		s.cancelNav()
	}
	s.navSeq++
	seq := s.navSeq
	s.cancelNav = cancel
	s.loading = true
	s.mu.Unlock()

	s.Emit(EventDidStartLoading)
	s.Emit(EventDidStartNavigation, rawURL, false, true)

	page, err := s.load(navCtx, rawURL, target, opts)
	if err != nil {
		current := s.finishNavigation(seq)
		code, desc := netError(err)
		s.Emit(EventDidFailLoad, code, desc, rawURL, true)
		if current {
			s.Emit(EventDidStopLoading)
		}
		return fmt.Errorf("load %s: %w", rawURL, err)
	}

	doc := parseDocument(page)

	s.mu.Lock()
	if s.navSeq != seq || s.IsDestroyed() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s superseded", ErrAborted, rawURL)
	}
	s.url = page.URL
	s.title = doc.Title
	s.text = doc.Text
	s.html = doc.HTML
	if historyIndex >= 0 && historyIndex < len(s.history) {
		s.history[historyIndex] = page.URL
		s.index = historyIndex
	} else {
		s.history = append(s.history[:s.index+1], page.URL)
		s.index = len(s.history) - 1
	}
	frameID := s.frameID
	s.mu.Unlock()

	s.Emit(EventDidNavigate, page.URL, page.Status, page.StatusText)
	s.Emit(EventLoadCommit, page.URL, true)
	if doc.Title != "" {
		s.Emit(EventPageTitleUpdated, doc.Title, true)
	}
	if len(doc.Favicons) > 0 {
		s.Emit(EventPageFaviconUpdated, doc.Favicons)
	}
	s.Emit(surface.EventDomReady)
	s.finishNavigation(seq)
	s.Emit(EventDidFrameFinishLoad, true, frameID)
	s.Emit(EventDidFinishLoad)
	s.Emit(EventDidStopLoading)
	return nil
}

// finishNavigation clears the loading state if seq is still the current
// navigation.
func (s *Surface) finishNavigation(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.navSeq != seq {
		return false
	}
	s.loading = false
	s.cancelNav = nil
	return true
}

// stop cancels the navigation in flight, if any.
func (s *Surface) stop() {
	s.mu.Lock()
	cancel := s.cancelNav
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Surface) load(ctx context.Context, rawURL string, target *url.URL, opts surface.LoadOptions) (*Page, error) {
	switch target.Scheme {
	case "about":
		if rawURL != aboutBlank {
			return nil, fmt.Errorf("%w: %s", errUnknownScheme, target)
		}
		return &Page{URL: aboutBlank, Status: 200, StatusText: "200 OK", ContentType: "text/html"}, nil
	case "data":
		return decodeDataURL(rawURL)
	case "http", "https":
		if !hostAllowed(s.cfg.AllowedHosts, target.Hostname()) {
			return nil, fmt.Errorf("%w: %s", errBlocked, target.Hostname())
		}
		ua := opts.UserAgent
		if ua == "" {
			s.mu.Lock()
			ua = s.userAgent
			s.mu.Unlock()
		}
		return s.session.Fetch(ctx, target.String(), FetchOptions{UserAgent: ua, Referrer: opts.HTTPReferrer})
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownScheme, target.Scheme)
	}
}

// decodeDataURL decodes data:[<mediatype>][;base64],<data>.
func decodeDataURL(raw string) (*Page, error) {
	spec, data, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: data url without payload", errInvalidURL)
	}

	mediaType := spec
	isBase64 := false
	if strings.HasSuffix(spec, ";base64") {
		mediaType = strings.TrimSuffix(spec, ";base64")
		isBase64 = true
	}
	if mediaType == "" {
		mediaType = "text/plain;charset=US-ASCII"
	}

	var body string
	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidURL, err)
		}
		body = string(decoded)
	} else {
		decoded, err := url.PathUnescape(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidURL, err)
		}
		body = decoded
	}
	return &Page{URL: raw, Status: 200, StatusText: "200 OK", ContentType: mediaType, Body: body}, nil
}

// hostAllowed matches host against glob patterns such as "*.example.com".
// An empty pattern list allows every host.
func hostAllowed(patterns []string, host string) bool {
	if len(patterns) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(strings.ToLower(pattern), host); err == nil && ok {
			return true
		}
	}
	return false
}

// netError maps a load failure onto a network error code and name.
func netError(err error) (int, string) {
	var httpErr *HTTPError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return -7, "ERR_TIMED_OUT"
	case errors.Is(err, context.Canceled):
		return -3, "ERR_ABORTED"
	case errors.As(err, &httpErr):
		return -379, "ERR_HTTP_RESPONSE_CODE_FAILURE"
	case errors.Is(err, errBlocked):
		return -20, "ERR_BLOCKED_BY_CLIENT"
	case errors.Is(err, resilience.ErrOpen):
		return -139, "ERR_TEMPORARILY_THROTTLED"
	case errors.Is(err, errUnknownScheme):
		return -302, "ERR_UNKNOWN_URL_SCHEME"
	case errors.Is(err, errInvalidURL):
		return -300, "ERR_INVALID_URL"
	default:
		return -2, "ERR_FAILED"
	}
}
