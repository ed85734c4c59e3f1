package types

import "fmt"

// Internal channel names. Channels sent to an embedder on behalf of a guest
// carry the guest's view-instance id as a suffix (see ForView).
const (
	ChannelDispatchEvent    = "guest-view-internal-dispatch-event"
	ChannelIPCMessage       = "guest-view-internal-ipc-message"
	ChannelDestroyGuest     = "guest-view-internal-destroy-guest"
	ChannelVisibilityChange = "guest-instance-visibility-change"
)

// Notifications emitted on an embedder surface.
const (
	EventWillAttachWebview = "will-attach-webview"
	EventDidAttachWebview  = "did-attach-webview"
	EventFocusChange       = "focus-change"
	EventVisibilityChange  = "-window-visibility-change"
	EventNewWindow         = "new-window"
	EventIPCMessageHost    = "ipc-message-host"
)

// ForView keys a channel to a guest's view-instance id.
func ForView(channel string, viewInstanceID int) string {
	return fmt.Sprintf("%s-%d", channel, viewInstanceID)
}
