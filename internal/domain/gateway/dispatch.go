package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/shared/types"
)

// Response types
const (
	ResponseResult = "result"
	ResponseError  = "error"
)

// Dispatch executes one wire request from sender. Asynchronous calls are
// awaited outside the serialization lock, so callers should run those on
// their own goroutine.
func (g *Gateway) Dispatch(ctx context.Context, sender surface.Surface, req types.Request) types.Response {
	timer := monitoring.NewTimer(g.metrics, string(req.Type))

	result, err := g.dispatch(ctx, sender, req)
	if err != nil {
		kind := Kind(err)
		timer.Stop(kind)
		g.logger.Debug("Request failed",
			zap.String("id", req.ID),
			zap.String("type", string(req.Type)),
			zap.String("kind", kind),
			zap.Error(err),
		)
		return types.Response{
			ID:    req.ID,
			Type:  ResponseError,
			Error: &types.ErrorBody{Kind: kind, Message: err.Error()},
		}
	}
	timer.Stop("ok")
	return types.Response{ID: req.ID, Type: ResponseResult, Result: result}
}

func (g *Gateway) dispatch(ctx context.Context, sender surface.Surface, req types.Request) (any, error) {
	guestID := surface.ID(req.GuestID)
	params := types.Params{}
	if req.Params != nil {
		params = *req.Params
	}

	switch req.Type {
	case types.KindPing:
		return "pong", nil

	case types.KindCreateGuest:
		id, err := g.CreateGuest(ctx, sender, params)
		if err != nil {
			return nil, err
		}
		return map[string]any{"guestId": int64(id)}, nil

	case types.KindAttachGuest:
		outcome, err := g.AttachGuest(ctx, sender, req.FrameID, req.ElementSlotID, guestID, params)
		if err != nil {
			return nil, err
		}
		return map[string]any{"outcome": outcome.String()}, nil

	case types.KindDetachGuest:
		removed, err := g.DetachGuest(sender, guestID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"removed": removed}, nil

	case types.KindFocusChange:
		g.FocusChanged(sender, req.Focus, guestID)
		return nil, nil

	case types.KindInvokeAsync:
		p, err := g.InvokeAsync(ctx, sender, guestID, req.Method, req.Args)
		if err != nil {
			return nil, err
		}
		return p.Wait(ctx)

	case types.KindInvokeSync:
		return g.InvokeSync(ctx, sender, guestID, req.Method, req.Args)

	case types.KindPropertyGet:
		return g.GetProperty(sender, guestID, req.Name)

	case types.KindPropertySet:
		var value any
		if len(req.Value) > 0 {
			if err := json.Unmarshal(req.Value, &value); err != nil {
				return nil, fmt.Errorf("%w: property value: %v", ErrInvalidOperation, err)
			}
		}
		return nil, g.SetProperty(sender, guestID, req.Name, value)

	case types.KindCapturePage:
		rect, err := rectFromArgs(req.Args)
		if err != nil {
			return nil, err
		}
		return g.CapturePage(ctx, sender, guestID, rect)

	case types.KindVisibilityChange:
		vis := req.Visibility
		if sender == nil {
			return nil, fmt.Errorf("%w: visibility change without sender", ErrInvalidOperation)
		}
		if vis != types.VisibilityVisible && vis != types.VisibilityHidden {
			return nil, fmt.Errorf("%w: visibility %q", ErrInvalidOperation, vis)
		}
		g.Do(func() {
			sender.Emit(types.EventVisibilityChange, vis)
		})
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: unknown request type %q", ErrInvalidOperation, req.Type)
	}
}
