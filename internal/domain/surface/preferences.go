package surface

// Preference keys read by the guest core.
const (
	PrefWebviewTag                 = "webviewTag"
	PrefContextIsolation           = "contextIsolation"
	PrefJavaScript                 = "javascript"
	PrefNativeWindowOpen           = "nativeWindowOpen"
	PrefNodeIntegration            = "nodeIntegration"
	PrefNodeIntegrationInSubFrames = "nodeIntegrationInSubFrames"
	PrefEnableRemoteModule         = "enableRemoteModule"
	PrefSandbox                    = "sandbox"
	PrefEnableWebSQL               = "enableWebSQL"
	PrefZoomFactor                 = "zoomFactor"
	PrefGuestInstanceID            = "guestInstanceId"
)

// Preferences is the configuration bag of a surface. Keys are open ended:
// guests may receive arbitrary keys parsed from a features string.
type Preferences map[string]any

// defaults applied to keys a surface leaves unset
var defaultPreferences = Preferences{
	"plugins":                      false,
	"experimentalFeatures":         false,
	PrefNodeIntegration:            true,
	PrefNodeIntegrationInSubFrames: false,
	"nodeIntegrationInWorker":      false,
	PrefWebviewTag:                 true,
	PrefSandbox:                    false,
	PrefNativeWindowOpen:           false,
	PrefContextIsolation:           false,
	PrefJavaScript:                 true,
	"images":                       true,
	"webgl":                        true,
	PrefEnableWebSQL:               true,
	"webSecurity":                  true,
	"offscreen":                    false,
	"spellcheck":                   true,
	PrefZoomFactor:                 1.0,
}

// WithDefaults returns a copy of p with every unset default filled in.
func WithDefaults(p Preferences) Preferences {
	out := p.Clone()
	for k, v := range defaultPreferences {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}

// Clone returns a shallow copy; a nil receiver yields an empty bag.
func (p Preferences) Clone() Preferences {
	out := make(Preferences, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Bool reads a boolean preference. ok is false when the key is unset or
// not a boolean.
func (p Preferences) Bool(key string) (value bool, ok bool) {
	value, ok = p[key].(bool)
	return value, ok
}

// Float reads a numeric preference.
func (p Preferences) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Merge copies every key of other over p.
func (p Preferences) Merge(other Preferences) Preferences {
	for k, v := range other {
		p[k] = v
	}
	return p
}
