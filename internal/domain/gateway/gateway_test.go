package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/guest"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface/surfacetest"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/shared/types"
)

type fixture struct {
	gw      *Gateway
	guests  *guest.Manager
	factory *surfacetest.Factory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	factory := surfacetest.NewFactory(nil)
	caps := DefaultCapabilities()
	guests := guest.NewManager(guest.Options{
		Factory: factory,
		Binding: &surfacetest.Binding{},
		Events:  caps.Events(),
		Logger:  zap.NewNop(),
	})
	return &fixture{
		gw:      New(guests, caps, zap.NewNop(), nil),
		guests:  guests,
		factory: factory,
	}
}

func (f *fixture) embedder(enabled bool) *surfacetest.Fake {
	return f.factory.NewSurface(surface.Preferences{surface.PrefWebviewTag: enabled})
}

// attached creates a guest owned by e and attaches it to slot 1.
func (f *fixture) attached(t *testing.T, e surface.Surface) (surface.ID, *surfacetest.Fake) {
	t.Helper()
	ctx := context.Background()
	id, err := f.gw.CreateGuest(ctx, e, types.Params{})
	require.NoError(t, err)
	outcome, err := f.gw.AttachGuest(ctx, e, 1, 1, id, types.Params{InstanceID: 1})
	require.NoError(t, err)
	require.Equal(t, guest.OutcomeAttached, outcome)
	return id, f.factory.Get(id)
}

func TestCapabilityGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	disabled := f.embedder(false)

	_, err := f.gw.CreateGuest(ctx, disabled, types.Params{})
	assert.ErrorIs(t, err, ErrFeatureDisabled)
	assert.Empty(t, f.guests.List())

	_, err = f.gw.DetachGuest(disabled, 1)
	assert.ErrorIs(t, err, ErrFeatureDisabled)
	_, err = f.gw.GetProperty(disabled, 1, "src")
	assert.ErrorIs(t, err, ErrFeatureDisabled)
	_, err = f.gw.CreateGuest(ctx, nil, types.Params{})
	assert.ErrorIs(t, err, ErrFeatureDisabled)
}

func TestCapabilityGateCachedUntilDestroyed(t *testing.T) {
	f := newFixture(t)
	e := f.embedder(true)

	_, err := f.gw.CreateGuest(context.Background(), e, types.Params{})
	require.NoError(t, err)

	f.gw.gateMu.Lock()
	_, cached := f.gw.gate[e.ID()]
	f.gw.gateMu.Unlock()
	assert.True(t, cached)

	e.Destroy()

	f.gw.gateMu.Lock()
	_, cached = f.gw.gate[e.ID()]
	f.gw.gateMu.Unlock()
	assert.False(t, cached)
}

func TestDestroyedSenderCannotCreate(t *testing.T) {
	f := newFixture(t)
	e := f.embedder(true)
	_, err := f.gw.CreateGuest(context.Background(), e, types.Params{})
	require.NoError(t, err)

	e.Destroy()
	_, err = f.gw.CreateGuest(context.Background(), e, types.Params{})
	assert.Equal(t, KindNotFound, Kind(err))
	assert.Empty(t, f.guests.List())
}

func TestRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	x := f.embedder(true)

	id, err := f.gw.CreateGuest(ctx, x, types.Params{})
	require.NoError(t, err)
	outcome, err := f.gw.AttachGuest(ctx, x, 1, 1, id, types.Params{InstanceID: 1, Src: "about:blank"})
	require.NoError(t, err)
	assert.Equal(t, guest.OutcomeAttached, outcome)

	g := f.factory.Get(id)
	select {
	case <-g.Loads:
	case <-time.After(time.Second):
		t.Fatal("guest never navigated")
	}
	src, err := f.gw.GetProperty(x, id, "src")
	require.NoError(t, err)
	assert.Equal(t, "about:blank", src)

	removed, err := f.gw.DetachGuest(x, id)
	require.NoError(t, err)
	assert.True(t, removed)
	_, occupied := f.guests.SlotOccupant(x.ID(), 1)
	assert.False(t, occupied)

	removed, err = f.gw.DetachGuest(x, id)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestAttachErrorsAreLogged(t *testing.T) {
	f := newFixture(t)
	owner := f.embedder(true)
	other := f.embedder(true)
	id, err := f.gw.CreateGuest(context.Background(), owner, types.Params{})
	require.NoError(t, err)

	_, err = f.gw.AttachGuest(context.Background(), other, 1, 1, id, types.Params{})
	assert.NoError(t, err)
	_, occupied := f.guests.SlotOccupant(other.ID(), 1)
	assert.False(t, occupied)

	_, err = f.gw.AttachGuest(context.Background(), owner, 1, 1, 999, types.Params{})
	assert.NoError(t, err)
}

func TestInvokeSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.embedder(true)
	id, g := f.attached(t, e)

	_, err := f.gw.InvokeSync(ctx, e, id, "notAllowedMethod", nil)
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.Empty(t, g.Calls())

	// Async-only methods are not callable synchronously.
	_, err = f.gw.InvokeSync(ctx, e, id, "executeJavaScript", nil)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	result, err := f.gw.InvokeSync(ctx, e, id, "getURL", nil)
	require.NoError(t, err)
	assert.Equal(t, "getURL", result.(map[string]any)["method"])

	_, err = f.gw.InvokeSync(ctx, f.embedder(true), id, "getURL", nil)
	assert.ErrorIs(t, err, guest.ErrAccessDenied)
	_, err = f.gw.InvokeSync(ctx, e, 999, "getURL", nil)
	assert.ErrorIs(t, err, guest.ErrNotFound)
}

func TestInvokeAsync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.embedder(true)
	id, _ := f.attached(t, e)

	_, err := f.gw.InvokeAsync(ctx, e, id, "getURL", nil)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	p, err := f.gw.InvokeAsync(ctx, e, id, "insertText", []any{"hi"})
	require.NoError(t, err)
	result, err := p.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, []any{"hi"}, result.(map[string]any)["args"])
}

func TestInvokeAsyncGuestDestroyed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.embedder(true)
	id, g := f.attached(t, e)
	g.Block = make(chan struct{})

	p, err := f.gw.InvokeAsync(ctx, e, id, "executeJavaScript", []any{"1"})
	require.NoError(t, err)

	g.Destroy()

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err = p.Wait(waitCtx)
	assert.ErrorIs(t, err, guest.ErrNotFound)
	assert.Equal(t, KindNotFound, Kind(err))
	close(g.Block)
}

func TestProperties(t *testing.T) {
	f := newFixture(t)
	e := f.embedder(true)
	id, g := f.attached(t, e)

	require.NoError(t, f.gw.SetProperty(e, id, "zoomFactor", 1.5))
	v, err := f.gw.GetProperty(e, id, "zoomFactor")
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	err = f.gw.SetProperty(e, id, "src", "https://example.com")
	assert.ErrorIs(t, err, ErrInvalidOperation)
	src, _ := g.Property("src")
	assert.Equal(t, "", src)

	_, err = f.gw.GetProperty(e, id, "cookies")
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestFocusChanged(t *testing.T) {
	f := newFixture(t)
	e := f.embedder(true)
	id, g := f.attached(t, e)
	channel := types.ForView(types.ChannelDispatchEvent, 1)

	focusEvents := func() []surfacetest.Message {
		var out []surfacetest.Message
		for _, m := range e.SentOn(channel) {
			if m.Args[0] == types.EventFocusChange {
				out = append(out, m)
			}
		}
		return out
	}

	// A sender reporting someone else's identity is dropped.
	f.gw.FocusChanged(e, true, id)
	assert.Empty(t, focusEvents())

	f.gw.FocusChanged(g, true, id)
	got := focusEvents()
	require.Len(t, got, 1)
	assert.Equal(t, []any{types.EventFocusChange, true, int64(id)}, got[0].Args)
}

func TestFocusReportedByGuestPage(t *testing.T) {
	f := newFixture(t)
	e := f.embedder(true)
	id, g := f.attached(t, e)

	g.Emit(surface.EventFocusReport, true)
	g.Emit(surface.EventFocusReport, "not a bool")

	var got [][]any
	for _, m := range e.SentOn(types.ForView(types.ChannelDispatchEvent, 1)) {
		if m.Args[0] == types.EventFocusChange {
			got = append(got, m.Args)
		}
	}
	assert.Equal(t, [][]any{{types.EventFocusChange, true, int64(id)}}, got)
}

func TestCapturePage(t *testing.T) {
	f := newFixture(t)
	e := f.embedder(true)
	id, _ := f.attached(t, e)

	img, err := f.gw.CapturePage(context.Background(), e, id, nil)
	require.NoError(t, err)
	require.Len(t, img.Representations, 1)

	rep := img.Representations[0]
	assert.Equal(t, 1.0, rep.ScaleFactor)
	assert.Equal(t, 4, rep.Width)
	assert.Equal(t, 3, rep.Height)
	require.True(t, strings.HasPrefix(rep.DataURL, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(rep.DataURL, "data:image/png;base64,"))
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 4, decoded.Bounds().Dx())
}

func TestSerializeEmptyImage(t *testing.T) {
	img, err := SerializeImage(nil)
	require.NoError(t, err)
	assert.NotNil(t, img.Representations)
	assert.Empty(t, img.Representations)
}

func TestRectFromArgs(t *testing.T) {
	rect, err := rectFromArgs(nil)
	require.NoError(t, err)
	assert.Nil(t, rect)

	rect, err = rectFromArgs([]any{map[string]any{"x": 1.0, "y": 2.0, "width": 30.0, "height": 40.0}})
	require.NoError(t, err)
	assert.Equal(t, &surface.Rect{X: 1, Y: 2, Width: 30, Height: 40}, rect)

	_, err = rectFromArgs([]any{"full"})
	assert.ErrorIs(t, err, ErrInvalidOperation)
	_, err = rectFromArgs([]any{map[string]any{"width": "wide"}})
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestDispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.embedder(true)

	resp := f.gw.Dispatch(ctx, e, types.Request{ID: "1", Type: types.KindCreateGuest})
	require.Equal(t, ResponseResult, resp.Type, "%+v", resp.Error)
	assert.Equal(t, "1", resp.ID)
	guestID := resp.Result.(map[string]any)["guestId"].(int64)

	resp = f.gw.Dispatch(ctx, e, types.Request{
		ID:            "2",
		Type:          types.KindAttachGuest,
		GuestID:       guestID,
		ElementSlotID: 1,
		Params:        &types.Params{InstanceID: 1},
	})
	require.Equal(t, ResponseResult, resp.Type)
	assert.Equal(t, map[string]any{"outcome": "attached"}, resp.Result)

	resp = f.gw.Dispatch(ctx, e, types.Request{
		ID:      "3",
		Type:    types.KindPropertySet,
		GuestID: guestID,
		Name:    "audioMuted",
		Value:   json.RawMessage(`true`),
	})
	require.Equal(t, ResponseResult, resp.Type)

	resp = f.gw.Dispatch(ctx, e, types.Request{ID: "4", Type: types.KindPropertyGet, GuestID: guestID, Name: "audioMuted"})
	require.Equal(t, ResponseResult, resp.Type)
	assert.Equal(t, true, resp.Result)

	resp = f.gw.Dispatch(ctx, e, types.Request{ID: "5", Type: types.KindInvokeAsync, GuestID: guestID, Method: "send", Args: []any{"ch"}})
	require.Equal(t, ResponseResult, resp.Type)

	resp = f.gw.Dispatch(ctx, e, types.Request{ID: "6", Type: types.KindInvokeSync, GuestID: guestID, Method: "notAllowedMethod"})
	require.Equal(t, ResponseError, resp.Type)
	assert.Equal(t, KindInvalidOperation, resp.Error.Kind)

	resp = f.gw.Dispatch(ctx, e, types.Request{ID: "7", Type: "bogus"})
	assert.Equal(t, KindInvalidOperation, resp.Error.Kind)

	resp = f.gw.Dispatch(ctx, e, types.Request{ID: "8", Type: types.KindPing})
	assert.Equal(t, "pong", resp.Result)

	resp = f.gw.Dispatch(ctx, e, types.Request{ID: "9", Type: types.KindCapturePage, GuestID: guestID})
	require.Equal(t, ResponseResult, resp.Type)
	assert.Len(t, resp.Result.(types.SerializedImage).Representations, 1)

	resp = f.gw.Dispatch(ctx, f.embedder(false), types.Request{ID: "10", Type: types.KindCreateGuest})
	assert.Equal(t, KindFeatureDisabled, resp.Error.Kind)
}

func TestDispatchVisibilityChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.embedder(true)
	_, g := f.attached(t, e)

	resp := f.gw.Dispatch(ctx, e, types.Request{Type: types.KindVisibilityChange, Visibility: types.VisibilityHidden})
	require.Equal(t, ResponseResult, resp.Type)
	assert.Len(t, g.SentOn(types.ChannelVisibilityChange), 1)

	resp = f.gw.Dispatch(ctx, e, types.Request{Type: types.KindVisibilityChange, Visibility: "dim"})
	assert.Equal(t, KindInvalidOperation, resp.Error.Kind)
}

func TestKind(t *testing.T) {
	assert.Equal(t, KindNotFound, Kind(guest.ErrNotFound))
	assert.Equal(t, KindNotFound, Kind(surface.ErrDestroyed))
	assert.Equal(t, KindAccessDenied, Kind(guest.ErrAccessDenied))
	assert.Equal(t, KindInvalidOperation, Kind(surface.ErrUnsupported))
	assert.Equal(t, KindFeatureDisabled, Kind(ErrFeatureDisabled))
	assert.Equal(t, KindInternal, Kind(surfacetest.ErrCallFailed))
}
