package guest

import (
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/shared/types"
)

// Security options a guest inherits from its embedder. A value is only
// copied when the embedder already holds it, so a guest can never end up
// looser than its embedder and never stricter than it either.
var inheritedPreferences = map[string]bool{
	surface.PrefContextIsolation:           true,
	surface.PrefJavaScript:                 false,
	surface.PrefNativeWindowOpen:           true,
	surface.PrefNodeIntegration:            false,
	surface.PrefEnableRemoteModule:         false,
	surface.PrefSandbox:                    true,
	surface.PrefNodeIntegrationInSubFrames: false,
	surface.PrefEnableWebSQL:               false,
}

// EffectivePreferences computes the preferences a guest is attached with.
func EffectivePreferences(guestID surface.ID, embedder surface.Preferences, params types.Params) surface.Preferences {
	zoom, ok := embedder.Float(surface.PrefZoomFactor)
	if !ok {
		zoom = 1
	}

	prefs := surface.Preferences{
		surface.PrefGuestInstanceID:            int64(guestID),
		surface.PrefNodeIntegration:            boolOr(params.NodeIntegration, false),
		surface.PrefNodeIntegrationInSubFrames: boolOr(params.NodeIntegrationInSubFrames, false),
		surface.PrefZoomFactor:                 zoom,
		"disablePopups":                        !params.AllowPopups,
		"webSecurity":                          !params.DisableWebSecurity,
	}
	if params.EnableRemoteModule != nil {
		prefs[surface.PrefEnableRemoteModule] = *params.EnableRemoteModule
	}
	if params.Plugins != nil {
		prefs["plugins"] = *params.Plugins
	}
	if params.BlinkFeatures != "" {
		prefs["enableBlinkFeatures"] = params.BlinkFeatures
	}
	if params.DisableBlinkFeatures != "" {
		prefs["disableBlinkFeatures"] = params.DisableBlinkFeatures
	}
	if params.WebPreferences != nil {
		prefs.Merge(ParseFeatures(*params.WebPreferences))
	}
	if params.Preload != "" {
		prefs["preloadURL"] = params.Preload
	}

	for name, secure := range inheritedPreferences {
		if v, ok := embedder.Bool(name); ok && v == secure {
			prefs[name] = secure
		}
	}
	return prefs
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
