// Package ws serves remote embedders over WebSocket.
//
// Each connection is represented in the host by a Peer surface. Requests
// are JSON envelopes dispatched through the message gateway; internal
// messages the host sends to the embedder are pushed as notifications.
// Each request runs in a tracing span that continues the trace of the
// upgrade request.
//
// Message Types (Client → Server):
//   - create-guest, attach-guest, detach-guest
//   - invoke-async, invoke-sync
//   - property-get, property-set
//   - capture-page
//   - focus-change, visibility-change
//   - ping
//
// Message Types (Server → Client):
//   - hello: connection and embedder ids
//   - result / error: response to the request with the same id
//   - message: internal message (forwarded guest events, IPC, destroy notices)
//   - event: embedder-side events such as did-attach-webview
//
// Example Usage:
//
//	handler := ws.NewHandler(gw, ws.Options{Sequence: seq})
//	router.GET("/ws", handler.HandleConnection)
package ws
