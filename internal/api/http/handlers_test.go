package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/guest"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface/surfacetest"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/shared/types"
)

type fixture struct {
	router  *gin.Engine
	guests  *guest.Manager
	factory *surfacetest.Factory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	factory := surfacetest.NewFactory(surface.NewSequence())
	guests := guest.NewManager(guest.Options{
		Factory: factory,
		Binding: &surfacetest.Binding{},
		Metrics: monitoring.NewMetrics(registry),
	})

	router := gin.New()
	NewHandlers(guests, nil, registry).Register(router)
	return &fixture{router: router, guests: guests, factory: factory}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func (f *fixture) attachedGuest(t *testing.T) (surface.ID, surface.ID) {
	t.Helper()
	embedder := f.factory.NewSurface(surface.Preferences{surface.PrefWebviewTag: true})
	id, err := f.guests.Create(context.Background(), embedder, types.Params{})
	require.NoError(t, err)
	_, err = f.guests.Attach(context.Background(), embedder, 1, 4, id, types.Params{InstanceID: 2})
	require.NoError(t, err)
	return id, embedder.ID()
}

func TestRoot(t *testing.T) {
	f := newFixture(t)

	w := f.get(t, "/")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	decode(t, w, &body)
	assert.Equal(t, "online", body["status"])
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	f.attachedGuest(t)

	w := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status   string      `json:"status"`
		Guests   types.Stats `json:"guests"`
		Sessions int         `json:"sessions"`
	}
	decode(t, w, &body)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, 1, body.Guests.Guests)
	assert.Equal(t, 0, body.Sessions)
}

func TestListGuests(t *testing.T) {
	f := newFixture(t)
	first, embedder := f.attachedGuest(t)
	second, _ := f.attachedGuest(t)

	w := f.get(t, "/guests")
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Guests []types.GuestInfo `json:"guests"`
		Stats  types.Stats       `json:"stats"`
	}
	decode(t, w, &body)
	require.Len(t, body.Guests, 2)
	assert.Equal(t, int64(first), body.Guests[0].GuestID)
	assert.Equal(t, int64(embedder), body.Guests[0].EmbedderID)
	assert.Equal(t, int64(second), body.Guests[1].GuestID)
	assert.Equal(t, 2, body.Stats.AttachedGuests)
	assert.Equal(t, 2, body.Stats.WatchedEmbedders)
}

func TestGetGuest(t *testing.T) {
	f := newFixture(t)
	id, embedder := f.attachedGuest(t)

	w := f.get(t, "/guests/"+strconv.FormatInt(int64(id), 10))
	assert.Equal(t, http.StatusOK, w.Code)

	var info types.GuestInfo
	decode(t, w, &info)
	assert.Equal(t, int64(id), info.GuestID)
	assert.Equal(t, int64(embedder), info.EmbedderID)
	require.NotNil(t, info.ElementSlotID)
	assert.Equal(t, 4, *info.ElementSlotID)

	assert.Equal(t, http.StatusNotFound, f.get(t, "/guests/999").Code)
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/guests/abc").Code)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.attachedGuest(t)

	w := f.get(t, "/guests/stats")
	assert.Equal(t, http.StatusOK, w.Code)

	var stats types.Stats
	decode(t, w, &stats)
	assert.Equal(t, types.Stats{Guests: 1, AttachedGuests: 1, Slots: 1, WatchedEmbedders: 1}, stats)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	f.attachedGuest(t)

	w := f.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "guesthost_guests_created_total 1")
	assert.Contains(t, w.Body.String(), `guesthost_attaches_total{outcome="attached"} 1`)
}
