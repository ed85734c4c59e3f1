package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/infrastructure/resilience"
)

// DefaultPartition is the session used when a guest names no partition.
const DefaultPartition = "default"

// Session is the network state shared by every surface of one partition.
type Session struct {
	ID        string
	Partition string
	Persist   bool
	CreatedAt time.Time

	client   *resty.Client
	breakers *resilience.Group
}

// Page is a fetched document.
type Page struct {
	URL         string
	Status      int
	StatusText  string
	ContentType string
	Body        string
}

func newSession(partition string, cfg Config, breakers *resilience.Group) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	client := resty.New().
		SetCookieJar(jar).
		SetTimeout(cfg.LoadTimeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(cfg.MaxRedirects)).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9")

	return &Session{
		ID:        uuid.NewString(),
		Partition: partition,
		Persist:   strings.HasPrefix(partition, "persist:"),
		CreatedAt: time.Now(),
		client:    client,
		breakers:  breakers,
	}, nil
}

// Fetch retrieves rawURL. Non-2xx/3xx statuses are returned as errors.
// Hosts that keep failing are short-circuited with resilience.ErrOpen.
func (s *Session) Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*Page, error) {
	if s.breakers == nil {
		return s.fetch(ctx, rawURL, opts)
	}
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	var page *Page
	err := s.breakers.Do(host, func() error {
		var err error
		page, err = s.fetch(ctx, rawURL, opts)
		return err
	})
	return page, err
}

func (s *Session) fetch(ctx context.Context, rawURL string, opts FetchOptions) (*Page, error) {
	req := s.client.R().SetContext(ctx)
	if opts.UserAgent != "" {
		req.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.Referrer != "" {
		req.SetHeader("Referer", opts.Referrer)
	}

	resp, err := req.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	status := resp.StatusCode()
	if status < 200 || status >= 400 {
		return nil, &HTTPError{Status: status, URL: rawURL}
	}

	final := rawURL
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		final = raw.Request.URL.String()
	}
	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = mimetype.Detect(resp.Body()).String()
	}
	return &Page{
		URL:         final,
		Status:      status,
		StatusText:  resp.Status(),
		ContentType: contentType,
		Body:        resp.String(),
	}, nil
}

// FetchOptions carries per-request headers.
type FetchOptions struct {
	UserAgent string
	Referrer  string
}

// HTTPError reports an unsuccessful response status.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d (url: %s)", e.Status, e.URL)
}

// upstreamFailed reports whether err counts against the host's breaker.
// Client errors and cancellations do not.
func upstreamFailed(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status >= 500
	}
	return true
}

// Sessions maps partition names to sessions. In-memory partitions are
// released once their last surface is gone; "persist:" partitions live as
// long as the process.
type Sessions struct {
	cfg      Config
	breakers *resilience.Group

	mu       sync.Mutex
	sessions map[string]*Session // Protected by mu
	refs     map[string]int      // Protected by mu
}

// NewSessions creates an empty session table. Every session shares one
// breaker per remote host.
func NewSessions(cfg Config, logger *zap.Logger) *Sessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Sessions{
		cfg: cfg,
		breakers: resilience.NewGroup(resilience.Settings{
			Threshold: cfg.BreakerThreshold,
			Cooldown:  cfg.BreakerCooldown,
			IsFailure: upstreamFailed,
			OnStateChange: func(host string, from, to resilience.State) {
				logger.Warn("Host circuit breaker changed state",
					zap.String("host", host),
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		}),
		sessions: make(map[string]*Session),
		refs:     make(map[string]int),
	}
}

// Acquire returns the session for partition, creating it if needed.
func (s *Sessions) Acquire(partition string) (*Session, error) {
	if partition == "" {
		partition = DefaultPartition
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[partition]
	if !ok {
		var err error
		sess, err = newSession(partition, s.cfg, s.breakers)
		if err != nil {
			return nil, err
		}
		s.sessions[partition] = sess
	}
	s.refs[partition]++
	return sess, nil
}

// Release drops one reference to the session of partition.
func (s *Sessions) Release(partition string) {
	if partition == "" {
		partition = DefaultPartition
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.refs[partition]--
	if s.refs[partition] > 0 {
		return
	}
	delete(s.refs, partition)
	if sess, ok := s.sessions[partition]; ok && !sess.Persist && partition != DefaultPartition {
		delete(s.sessions, partition)
	}
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// OpenHosts returns the hosts whose breakers are rejecting or probing.
func (s *Sessions) OpenHosts() []string {
	hosts := s.breakers.Open()
	sort.Strings(hosts)
	return hosts
}
