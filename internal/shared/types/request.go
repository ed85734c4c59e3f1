package types

import "encoding/json"

// RequestKind names an inbound gateway request.
type RequestKind string

const (
	KindCreateGuest      RequestKind = "create-guest"
	KindAttachGuest      RequestKind = "attach-guest"
	KindDetachGuest      RequestKind = "detach-guest"
	KindFocusChange      RequestKind = "focus-change"
	KindInvokeAsync      RequestKind = "invoke-async"
	KindInvokeSync       RequestKind = "invoke-sync"
	KindPropertyGet      RequestKind = "property-get"
	KindPropertySet      RequestKind = "property-set"
	KindCapturePage      RequestKind = "capture-page"
	KindVisibilityChange RequestKind = "visibility-change"
	KindPing             RequestKind = "ping"
)

// Request is one inbound message from a peer.
type Request struct {
	ID            string          `json:"id,omitempty"`
	Type          RequestKind     `json:"type"`
	GuestID       int64           `json:"guestId,omitempty"`
	ElementSlotID int             `json:"elementSlotId,omitempty"`
	FrameID       int             `json:"frameId,omitempty"`
	Method        string          `json:"method,omitempty"`
	Name          string          `json:"name,omitempty"`
	Args          []any           `json:"args,omitempty"`
	Value         json.RawMessage `json:"value,omitempty"`
	Params        *Params         `json:"params,omitempty"`
	Focus         bool            `json:"focus,omitempty"`
	Visibility    Visibility      `json:"visibility,omitempty"`
}

// ErrorBody describes a failed request on the wire.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Response answers a Request carrying the same ID.
type Response struct {
	ID     string     `json:"id,omitempty"`
	Type   string     `json:"type"`
	Result any        `json:"result,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// Notification is pushed to a peer without a matching request.
type Notification struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Args    []any  `json:"args,omitempty"`
}

// SerializedImage is the transport-safe form of a captured page.
type SerializedImage struct {
	Representations []ImageRepresentation `json:"representations"`
}

// ImageRepresentation is one scale factor of a SerializedImage.
type ImageRepresentation struct {
	ScaleFactor float64 `json:"scaleFactor"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	DataURL     string  `json:"dataURL"`
}
