package headless

import "time"

// Config tunes headless surfaces. AllowedHosts restricts http(s)
// navigation to hosts matching one of its glob patterns. A host failing
// BreakerThreshold fetches in a row is refused for BreakerCooldown.
type Config struct {
	UserAgent        string
	CaptureWidth     int
	CaptureHeight    int
	LoadTimeout      time.Duration
	ScriptTimeout    time.Duration
	MaxRedirects     int
	RetryCount       int
	AllowedHosts     []string
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		UserAgent:        "guesthost/1.0",
		CaptureWidth:     800,
		CaptureHeight:    600,
		LoadTimeout:      30 * time.Second,
		ScriptTimeout:    5 * time.Second,
		MaxRedirects:     10,
		RetryCount:       2,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.CaptureWidth <= 0 {
		c.CaptureWidth = d.CaptureWidth
	}
	if c.CaptureHeight <= 0 {
		c.CaptureHeight = d.CaptureHeight
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = d.LoadTimeout
	}
	if c.ScriptTimeout <= 0 {
		c.ScriptTimeout = d.ScriptTimeout
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = d.MaxRedirects
	}
	if c.RetryCount < 0 {
		c.RetryCount = 0
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = d.BreakerThreshold
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = d.BreakerCooldown
	}
	return c
}
