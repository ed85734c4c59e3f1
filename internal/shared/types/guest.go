package types

import "time"

// Visibility mirrors the document visibility state of an embedder window.
type Visibility string

const (
	VisibilityVisible Visibility = "visible"
	VisibilityHidden  Visibility = "hidden"
)

// Params is the attribute bag an embedder supplies when creating and
// attaching a guest. Keys follow the lowercase attribute names of the
// placeholder element.
type Params struct {
	InstanceID                 int     `json:"instanceId"`
	Src                        string  `json:"src,omitempty"`
	HTTPReferrer               string  `json:"httpreferrer,omitempty"`
	UserAgent                  string  `json:"useragent,omitempty"`
	UserAgentOverride          string  `json:"userAgentOverride,omitempty"`
	Partition                  string  `json:"partition,omitempty"`
	Preload                    string  `json:"preload,omitempty"`
	WebPreferences             *string `json:"webpreferences,omitempty"`
	NodeIntegration            *bool   `json:"nodeintegration,omitempty"`
	NodeIntegrationInSubFrames *bool   `json:"nodeintegrationinsubframes,omitempty"`
	EnableRemoteModule         *bool   `json:"enableremotemodule,omitempty"`
	Plugins                    *bool   `json:"plugins,omitempty"`
	AllowPopups                bool    `json:"allowpopups,omitempty"`
	DisableWebSecurity         bool    `json:"disablewebsecurity,omitempty"`
	BlinkFeatures              string  `json:"blinkfeatures,omitempty"`
	DisableBlinkFeatures       string  `json:"disableblinkfeatures,omitempty"`
}

// GuestInfo is a read-only snapshot of one registry record.
type GuestInfo struct {
	GuestID        int64       `json:"guest_id"`
	EmbedderID     int64       `json:"embedder_id"`
	ElementSlotID  *int        `json:"element_slot_id,omitempty"`
	ViewInstanceID *int        `json:"view_instance_id,omitempty"`
	Visibility     *Visibility `json:"visibility,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Stats contains guest registry statistics
type Stats struct {
	Guests           int `json:"guests"`
	AttachedGuests   int `json:"attached_guests"`
	Slots            int `json:"slots"`
	WatchedEmbedders int `json:"watched_embedders"`
}
