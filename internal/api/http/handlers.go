package http

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/guest"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/providers/headless"
	"github.com/GriffinCanCode/AgentOS/guesthost/internal/shared/types"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	guests   *guest.Manager
	sessions *headless.Sessions
	gatherer prometheus.Gatherer
	started  time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(guests *guest.Manager, sessions *headless.Sessions, gatherer prometheus.Gatherer) *Handlers {
	return &Handlers{
		guests:   guests,
		sessions: sessions,
		gatherer: gatherer,
		started:  time.Now(),
	}
}

// Register mounts the routes on router.
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/guests", h.ListGuests)
	router.GET("/guests/stats", h.Stats)
	router.GET("/guests/:id", h.GetGuest)
	if h.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}
}

// Root handles the liveness probe
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "guesthost",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	sessions := 0
	openHosts := []string{}
	if h.sessions != nil {
		sessions = h.sessions.Len()
		if hosts := h.sessions.OpenHosts(); len(hosts) > 0 {
			openHosts = hosts
		}
	}
	status := "healthy"
	if len(openHosts) > 0 {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     status,
		"uptime":     time.Since(h.started).Round(time.Second).String(),
		"guests":     h.guests.Stats(),
		"sessions":   sessions,
		"open_hosts": openHosts,
	})
}

// ListGuests lists every registered guest ordered by id
func (h *Handlers) ListGuests(c *gin.Context) {
	guests := h.guests.List()
	sort.Slice(guests, func(i, j int) bool { return guests[i].GuestID < guests[j].GuestID })

	c.JSON(http.StatusOK, gin.H{
		"guests": guests,
		"stats":  h.guests.Stats(),
	})
}

// GetGuest returns one guest record
func (h *Handlers) GetGuest(c *gin.Context) {
	raw, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid guest id"})
		return
	}

	inst, ok := h.guests.Lookup(surface.ID(raw))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "guest not found"})
		return
	}
	c.JSON(http.StatusOK, types.GuestInfo{
		GuestID:        int64(inst.ID),
		EmbedderID:     int64(inst.Embedder.ID()),
		ElementSlotID:  inst.ElementSlotID,
		ViewInstanceID: inst.ViewInstanceID,
		Visibility:     inst.Visibility,
		CreatedAt:      inst.CreatedAt,
	})
}

// Stats returns registry statistics
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.guests.Stats())
}
