// Package ginserver serves the reporter status API.
package ginserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vshulcz/zbxreporter/internal/domain"
	"github.com/vshulcz/zbxreporter/internal/ports"
)

const (
	defaultCyclesLimit = 20
	maxCyclesLimit     = 500
)

// Handler exposes read-only endpoints over the cycle journal and discovery state.
type Handler struct {
	host      string
	journal   ports.JournalReader
	discovery ports.DiscoveryState
}

// NewHandler wires the journal and discovery state. A nil discovery means
// low-level discovery is disabled.
func NewHandler(host string, journal ports.JournalReader, discovery ports.DiscoveryState) *Handler {
	return &Handler{host: host, journal: journal, discovery: discovery}
}

// Ping handles `GET /ping` and checks the journal backend.
func (h *Handler) Ping(c *gin.Context) {
	if err := h.journal.Ping(c.Request.Context()); err != nil {
		c.String(http.StatusInternalServerError, "journal ping error: %v", err)
		return
	}
	c.String(http.StatusOK, "ok")
}

// Status handles `GET /status` and returns the latest report cycle.
func (h *Handler) Status(c *gin.Context) {
	cycles, err := h.journal.Recent(c.Request.Context(), 1)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(cycles) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no report cycles yet"})
		return
	}
	c.JSON(http.StatusOK, cycles[0])
}

// Cycles handles `GET /cycles?limit=N`, newest first.
func (h *Handler) Cycles(c *gin.Context) {
	limit := defaultCyclesLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxCyclesLimit)
	}
	cycles, err := h.journal.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cycles == nil {
		cycles = []domain.Cycle{}
	}
	c.JSON(http.StatusOK, cycles)
}

// Discovery handles `GET /discovery`.
func (h *Handler) Discovery(c *gin.Context) {
	if h.discovery == nil {
		c.JSON(http.StatusOK, gin.H{"host": h.host, "enabled": false, "keys": []string{}})
		return
	}
	keys := h.discovery.AnnouncedKeys()
	if keys == nil {
		keys = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"host": h.host, "enabled": true, "keys": keys})
}
