package gateway

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCapabilities(t *testing.T) {
	caps := DefaultCapabilities()

	assert.True(t, caps.AsyncMethod("executeJavaScript"))
	assert.False(t, caps.SyncMethod("executeJavaScript"))
	assert.True(t, caps.SyncMethod("getURL"))
	assert.False(t, caps.AsyncMethod("getURL"))

	assert.True(t, caps.Readable("src"))
	assert.False(t, caps.Writable("src"))
	assert.True(t, caps.Writable("zoomFactor"))

	events := caps.Events()
	assert.Contains(t, events, "did-finish-load")
	assert.Contains(t, events, "new-window")
	events[0] = "mutated"
	assert.NotEqual(t, "mutated", caps.Events()[0])
}

func TestParseCapabilities(t *testing.T) {
	caps, err := ParseCapabilities([]byte(`
asyncMethods: [a]
syncMethods: [b]
readableProperties: [p, q]
writableProperties: [p]
events: [e1, e2, e1]
`))
	require.NoError(t, err)
	assert.True(t, caps.AsyncMethod("a"))
	assert.True(t, caps.SyncMethod("b"))
	assert.True(t, caps.Readable("q"))
	assert.False(t, caps.Writable("q"))
	assert.Equal(t, []string{"e1", "e2"}, caps.Events())
}

func TestParseCapabilitiesInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", "asyncMethods: [a"},
		{"empty name", "syncMethods: [\"\"]"},
		{"write only", "readableProperties: [a]\nwritableProperties: [b]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCapabilities([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadCapabilities(t *testing.T) {
	caps, err := LoadCapabilities("")
	require.NoError(t, err)
	assert.True(t, caps.SyncMethod("getURL"))

	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "caps.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("syncMethods: [only]\n"), 0o600))
	caps, err = LoadCapabilities(yamlPath)
	require.NoError(t, err)
	assert.True(t, caps.SyncMethod("only"))
	assert.False(t, caps.SyncMethod("getURL"))

	tomlPath := filepath.Join(dir, "caps.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("asyncMethods = [\"print\"]\nevents = [\"dom-ready\"]\n"), 0o600))
	caps, err = LoadCapabilities(tomlPath)
	require.NoError(t, err)
	assert.True(t, caps.AsyncMethod("print"))
	assert.Equal(t, []string{"dom-ready"}, caps.Events())

	_, err = LoadCapabilities(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
