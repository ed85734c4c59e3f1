package ws

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/shared/types"
)

const writeWait = 10 * time.Second

// codec encodes and decodes envelopes with encoding/json semantics.
var codec = sonic.ConfigStd

// Notification types
const (
	NotificationMessage = "message"
	NotificationEvent   = "event"
	NotificationHello   = "hello"
)

// Peer is the embedder surface standing in for a remote client. Internal
// messages sent to it are written to the connection.
type Peer struct {
	*surface.Base

	connID  id.ConnID
	conn    *websocket.Conn
	writeMu sync.Mutex
	metrics *monitoring.Metrics
}

func newPeer(sid surface.ID, prefs surface.Preferences, conn *websocket.Conn, connID id.ConnID, metrics *monitoring.Metrics) *Peer {
	return &Peer{
		Base:    surface.NewBase(sid, prefs),
		connID:  connID,
		conn:    conn,
		metrics: metrics,
	}
}

// ConnID returns the connection the peer belongs to.
func (p *Peer) ConnID() id.ConnID {
	return p.connID
}

// Send writes an internal message to the client.
func (p *Peer) Send(channel string, args ...any) error {
	if p.IsDestroyed() {
		return surface.ErrDestroyed
	}
	return p.write(NotificationMessage, types.Notification{Type: NotificationMessage, Channel: channel, Args: args})
}

// write serializes writes to the connection
func (p *Peer) write(msgType string, v any) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	data, err := codec.Marshal(v)
	if err != nil {
		return err
	}
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	p.metrics.RecordWSMessage("out", msgType)
	return nil
}

// A remote embedder is never itself a guest, nor is it driven by the host.

func (p *Peer) AttachToFrame(surface.Surface, int) error {
	return surface.ErrUnsupported
}

func (p *Peer) DetachFromOuterFrame() {}

func (p *Peer) LoadURL(context.Context, string, surface.LoadOptions) error {
	return surface.ErrUnsupported
}

func (p *Peer) Call(context.Context, string, []any) (any, error) {
	return nil, surface.ErrUnsupported
}

func (p *Peer) Property(string) (any, error) {
	return nil, surface.ErrUnsupported
}

func (p *Peer) SetProperty(string, any) error {
	return surface.ErrUnsupported
}

func (p *Peer) CapturePage(context.Context, *surface.Rect) (*surface.Capture, error) {
	return nil, surface.ErrUnsupported
}
