package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/gateway"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/shared/types"
)

// KindRateLimited is the error kind of requests dropped by the per
// connection limiter.
const KindRateLimited = "RateLimited"

// Options configures a Handler.
type Options struct {
	Sequence *surface.Sequence
	// Preferences are the preferences of every embedder peer.
	Preferences       surface.Preferences
	ReadLimit         int64
	MessagesPerSecond int
	Burst             int
	Logger            *zap.Logger
	Metrics           *monitoring.Metrics
	Tracer            *tracing.Tracer
}

// Handler manages embedder WebSocket connections
type Handler struct {
	gateway  *gateway.Gateway
	opts     Options
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(gw *gateway.Gateway, opts Options) *Handler {
	if opts.Sequence == nil {
		opts.Sequence = surface.NewSequence()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MessagesPerSecond <= 0 {
		opts.MessagesPerSecond = 50
	}
	if opts.Burst <= 0 {
		opts.Burst = opts.MessagesPerSecond * 2
	}
	return &Handler{
		gateway: gw,
		opts:    opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Embedders connect from any origin
			},
		},
		logger: opts.Logger.Named("ws"),
	}
}

// HandleConnection upgrades the request and serves one embedder until the
// connection closes. Closing destroys the embedder and, with it, every
// guest it owns.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.opts.ReadLimit > 0 {
		conn.SetReadLimit(h.opts.ReadLimit)
	}

	connID := id.NewConnID()
	peer := newPeer(h.opts.Sequence.Next(), h.opts.Preferences, conn, connID, h.opts.Metrics)
	// Requests on the connection continue the trace of the upgrade request.
	traceID := tracing.TraceIDFrom(c.Request.Context())
	logger := h.logger.With(
		zap.String("conn_id", connID.String()),
		zap.Int64("embedder_id", int64(peer.ID())),
		zap.String("trace_id", string(traceID)),
	)

	h.opts.Metrics.IncWSConnections()
	defer h.opts.Metrics.DecWSConnections()

	peer.On(types.EventDidAttachWebview, func(_ *surface.Event, args ...any) {
		if len(args) == 0 {
			return
		}
		if g, ok := args[0].(surface.Surface); ok {
			_ = peer.write(NotificationEvent, types.Notification{
				Type:    NotificationEvent,
				Channel: types.EventDidAttachWebview,
				Args:    []any{int64(g.ID())},
			})
		}
	})

	ctx, cancel := context.WithCancel(tracing.WithTrace(context.Background(), traceID, tracing.SpanIDFrom(c.Request.Context())))
	var inflight sync.WaitGroup
	defer func() {
		h.gateway.Do(peer.Destroy)
		cancel()
		inflight.Wait()
		logger.Info("Embedder disconnected")
	}()

	logger.Info("Embedder connected")
	if err := peer.write(NotificationHello, map[string]any{
		"type":       NotificationHello,
		"connId":     connID.String(),
		"embedderId": int64(peer.ID()),
	}); err != nil {
		logger.Warn("Failed to greet embedder", zap.Error(err))
		return
	}

	limiter := rate.NewLimiter(rate.Limit(h.opts.MessagesPerSecond), h.opts.Burst)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		var req types.Request
		if err := codec.Unmarshal(data, &req); err != nil {
			h.reply(logger, peer, types.Response{
				Type:  gateway.ResponseError,
				Error: &types.ErrorBody{Kind: gateway.KindInvalidOperation, Message: "malformed request: " + err.Error()},
			})
			continue
		}
		h.opts.Metrics.RecordWSMessage("in", string(req.Type))
		if req.ID == "" {
			req.ID = id.NewRequestID().String()
		}

		if !limiter.Allow() {
			h.reply(logger, peer, types.Response{
				ID:    req.ID,
				Type:  gateway.ResponseError,
				Error: &types.ErrorBody{Kind: KindRateLimited, Message: "rate limit exceeded"},
			})
			continue
		}

		switch req.Type {
		case types.KindInvokeAsync:
			inflight.Add(1)
			go func(req types.Request) {
				defer inflight.Done()
				h.reply(logger, peer, h.dispatch(ctx, peer, req))
			}(req)
		case types.KindFocusChange:
			// Fire-and-forget: only failures are reported.
			if resp := h.dispatch(ctx, peer, req); resp.Error != nil {
				h.reply(logger, peer, resp)
			}
		default:
			h.reply(logger, peer, h.dispatch(ctx, peer, req))
		}
	}
}

// dispatch runs req through the gateway inside its own span.
func (h *Handler) dispatch(ctx context.Context, peer *Peer, req types.Request) types.Response {
	span, ctx := h.opts.Tracer.StartSpan(ctx, string(req.Type))
	span.SetTag("request_id", req.ID)
	if req.GuestID != 0 {
		span.SetTag("guest_id", strconv.FormatInt(req.GuestID, 10))
	}

	resp := h.gateway.Dispatch(ctx, peer, req)

	status, err := "ok", error(nil)
	if resp.Error != nil {
		status, err = resp.Error.Kind, errors.New(resp.Error.Message)
	}
	h.opts.Tracer.Finish(span, status, err)
	return resp
}

func (h *Handler) reply(logger *zap.Logger, peer *Peer, resp types.Response) {
	if err := peer.write(resp.Type, resp); err != nil {
		logger.Debug("Failed to write response", zap.String("id", resp.ID), zap.Error(err))
	}
}
