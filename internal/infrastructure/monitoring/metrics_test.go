package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/", "200", 0)
		m.RecordGatewayRequest("ping", "ok", 0)
		m.GuestCreated()
		m.GuestRemoved()
		m.Attach("attached")
		m.SetWatchedEmbedders(3)
		m.Forwarded("did-finish-load")
		m.RecordWSMessage("in", "ping")
		m.IncWSConnections()
		m.DecWSConnections()
		m.RunUptime(nil)
		NewTimer(nil, "ping").Stop("ok")
	})
}

func TestGuestGauge(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.GuestCreated()
	m.GuestCreated()
	m.GuestRemoved()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.GuestsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuestsRemoved))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuestsActive))
}

func TestTimer(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	NewTimer(m, "property-get").Stop("NotFound")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayRequests.WithLabelValues("property-get", "NotFound")))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(prometheus.NewRegistry())

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/guests/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, path := range []string{"/guests/1", "/guests/2", "/nowhere"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/guests/:id", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestRegistrationIsPerRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
