// Package types provides shared data structures for the guest host.
//
// Core Types:
//   - Params: attach attributes supplied by an embedder
//   - GuestInfo, Stats: registry snapshots
//   - Visibility: embedder window visibility state
//
// Wire Types:
//   - Request, Response, ErrorBody: gateway envelopes
//   - Notification: unsolicited message to a peer
//   - SerializedImage: transport-safe page capture
//
// Channel names and embedder notifications are constants; ForView keys a
// channel to a guest's view-instance id:
//
//	ch := types.ForView(types.ChannelDispatchEvent, 7)
//	// "guest-view-internal-dispatch-event-7"
package types
