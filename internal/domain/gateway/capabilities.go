package gateway

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

//go:embed capabilities.yaml
var defaultCapabilities []byte

// Capabilities holds the allow-lists consulted before any call reaches a
// guest. It is immutable once loaded.
type Capabilities struct {
	asyncMethods map[string]struct{}
	syncMethods  map[string]struct{}
	readable     map[string]struct{}
	writable     map[string]struct{}
	events       []string
}

type capabilitiesDocument struct {
	AsyncMethods       []string `yaml:"asyncMethods" toml:"asyncMethods"`
	SyncMethods        []string `yaml:"syncMethods" toml:"syncMethods"`
	ReadableProperties []string `yaml:"readableProperties" toml:"readableProperties"`
	WritableProperties []string `yaml:"writableProperties" toml:"writableProperties"`
	Events             []string `yaml:"events" toml:"events"`
}

// DefaultCapabilities returns the built-in allow-lists.
func DefaultCapabilities() *Capabilities {
	caps, err := ParseCapabilities(defaultCapabilities)
	if err != nil {
		panic(fmt.Sprintf("embedded capabilities are invalid: %v", err))
	}
	return caps
}

// LoadCapabilities reads allow-lists from a YAML or, for a .toml
// extension, TOML file. An empty path yields the built-in lists.
func LoadCapabilities(path string) (*Capabilities, error) {
	if path == "" {
		return DefaultCapabilities(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capabilities: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return ParseCapabilitiesTOML(data)
	}
	return ParseCapabilities(data)
}

// ParseCapabilities decodes a YAML capabilities document.
func ParseCapabilities(data []byte) (*Capabilities, error) {
	var doc capabilitiesDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse capabilities: %w", err)
	}
	return newCapabilities(doc)
}

// ParseCapabilitiesTOML decodes the TOML form of a capabilities document.
func ParseCapabilitiesTOML(data []byte) (*Capabilities, error) {
	var doc capabilitiesDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse capabilities: %w", err)
	}
	return newCapabilities(doc)
}

func newCapabilities(doc capabilitiesDocument) (*Capabilities, error) {
	caps := &Capabilities{
		asyncMethods: make(map[string]struct{}, len(doc.AsyncMethods)),
		syncMethods:  make(map[string]struct{}, len(doc.SyncMethods)),
		readable:     make(map[string]struct{}, len(doc.ReadableProperties)),
		writable:     make(map[string]struct{}, len(doc.WritableProperties)),
	}
	sets := []struct {
		field string
		names []string
		dst   map[string]struct{}
	}{
		{"asyncMethods", doc.AsyncMethods, caps.asyncMethods},
		{"syncMethods", doc.SyncMethods, caps.syncMethods},
		{"readableProperties", doc.ReadableProperties, caps.readable},
		{"writableProperties", doc.WritableProperties, caps.writable},
	}
	for _, set := range sets {
		for _, name := range set.names {
			if name == "" {
				return nil, fmt.Errorf("capabilities: empty name in %s", set.field)
			}
			set.dst[name] = struct{}{}
		}
	}
	for name := range caps.writable {
		if _, ok := caps.readable[name]; !ok {
			return nil, fmt.Errorf("capabilities: writable property %q is not readable", name)
		}
	}

	seen := make(map[string]bool, len(doc.Events))
	for _, ev := range doc.Events {
		if ev == "" || seen[ev] {
			continue
		}
		seen[ev] = true
		caps.events = append(caps.events, ev)
	}
	return caps, nil
}

func (c *Capabilities) AsyncMethod(name string) bool {
	_, ok := c.asyncMethods[name]
	return ok
}

func (c *Capabilities) SyncMethod(name string) bool {
	_, ok := c.syncMethods[name]
	return ok
}

func (c *Capabilities) Readable(name string) bool {
	_, ok := c.readable[name]
	return ok
}

func (c *Capabilities) Writable(name string) bool {
	_, ok := c.writable[name]
	return ok
}

// Events returns the forwarded guest events in declaration order.
func (c *Capabilities) Events() []string {
	return append([]string(nil), c.events...)
}
