package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/buidlcat/friendrekt/analyzer"
	"github.com/buidlcat/friendrekt/middleware"
	"github.com/buidlcat/friendrekt/storage"
	"github.com/buidlcat/friendrekt/syncer"
	"github.com/buidlcat/friendrekt/utils"
)

// Handler serves the status API.
type Handler struct {
	store   storage.DataStore
	metrics *syncer.Metrics
	pricer  analyzer.Pricer
	amount  uint64
	started time.Time
	logger  *zap.Logger
}

// NewHandler creates a new handler. amount is the default quantity for price quotes.
func NewHandler(store storage.DataStore, metrics *syncer.Metrics, pricer analyzer.Pricer, amount uint64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:   store,
		metrics: metrics,
		pricer:  pricer,
		amount:  amount,
		started: time.Now(),
		logger:  logger.Named("server"),
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.metrics.Registry(), promhttp.HandlerOpts{})))

	api := r.Group("/api", middleware.BasicAuth(), middleware.ValidateQueryParams())
	api.GET("/stats", h.GetStats)
	api.GET("/snipes", h.ListSnipes)
	api.GET("/snipes/:address", middleware.ValidateAddress(), h.ListSnipesForSubject)
	api.GET("/price", h.GetPrice)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

// GetStats returns the pipeline counters and the audit log summary.
func (h *Handler) GetStats(c *gin.Context) {
	resp := gin.H{"pipeline": h.metrics.Snapshot()}

	if h.store != nil {
		summary, err := h.store.GetSnipeSummary(c.Request.Context())
		if err != nil {
			h.logger.Warn("snipe summary failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load snipe summary"})
			return
		}
		resp["snipes"] = summary
	}

	c.JSON(http.StatusOK, resp)
}

// ListSnipes returns recent submission attempts, newest first.
func (h *Handler) ListSnipes(c *gin.Context) {
	limit := parseLimit(c)

	snipes, err := h.store.ListSnipes(c.Request.Context(), limit)
	if err != nil {
		h.logger.Warn("list snipes failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load snipes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"snipes": snipes,
		"count":  len(snipes),
	})
}

// ListSnipesForSubject filters recent attempts by sniped subject.
func (h *Handler) ListSnipesForSubject(c *gin.Context) {
	addr := c.GetString("validatedAddress")

	snipes, err := h.store.ListSnipes(c.Request.Context(), middleware.MaxListLimit)
	if err != nil {
		h.logger.Warn("list snipes failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load snipes"})
		return
	}

	limit := parseLimit(c)
	filtered := snipes[:0]
	for _, s := range snipes {
		if strings.EqualFold(s.Subject, addr) {
			filtered = append(filtered, s)
			if len(filtered) == limit {
				break
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"subject": addr,
		"snipes":  filtered,
		"count":   len(filtered),
	})
}

// GetPrice quotes the bonding-curve cost of amount shares at supply.
func (h *Handler) GetPrice(c *gin.Context) {
	supply, _ := strconv.ParseUint(c.DefaultQuery("supply", "1"), 10, 64)
	amount := h.amount
	if v := c.Query("amount"); v != "" {
		amount, _ = strconv.ParseUint(v, 10, 64)
	}

	price := h.pricer.Price(supply, amount)
	c.JSON(http.StatusOK, gin.H{
		"supply":    supply,
		"amount":    amount,
		"price_wei": utils.BigString(price),
		"price_eth": utils.WeiToEth(price),
	})
}

func parseLimit(c *gin.Context) int {
	limit := storage.DefaultListLimit
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
	}
	return limit
}
