// Package headless provides a surface implementation without a renderer.
//
// A headless surface navigates by fetching documents over HTTP (one
// resty client and cookie jar per partition session), extracts the page
// title with goquery and runs executeJavaScript in a goja sandbox. It
// emits the same navigation events a browser surface would, which makes
// it usable both for tests and for driving guests from a remote embedder.
// Hosts that keep failing are refused for a cooldown. Scripts reach the
// host through ipcRenderer.sendToHost and window.focus/blur.
//
// Components:
//   - Surface: one headless page
//   - Factory: creates surfaces from a shared id sequence
//   - Sessions: partition name to HTTP session, plus per-host breakers
//     shared by every session
//   - Binding: records guest-embedder composition and applies preferences
//   - Runtime: sandboxed script execution
package headless
