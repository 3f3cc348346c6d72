package main

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SummaryService is the slice of EnergyService the HTTP layer needs.
type SummaryService interface {
	DailySummary(ctx context.Context) (*Summary, error)
	MockSummary() *Summary
}

// Handler wires the HTTP layer to the summary service and logging.
type Handler struct {
	service    SummaryService
	dispatches DispatchSource // nil when dispatch awareness is disabled
	cfg        *Config
	log        *zap.SugaredLogger
}

func NewHandler(service SummaryService, dispatches DispatchSource, cfg *Config, log *zap.SugaredLogger) *Handler {
	return &Handler{service: service, dispatches: dispatches, cfg: cfg, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/", h.index)
	router.GET("/api/energy", h.energy)
	router.GET("/trmnl", h.trmnl)
	router.GET("/dispatches", h.dispatchList)
	router.GET("/health", h.health)

	return router
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"timestamp":      time.Now().Format(time.RFC3339),
		"dispatch_aware": h.cfg.DispatchEnabled,
	})
}

func mockRequested(c *gin.Context) bool {
	return c.Query("mock") == "true"
}

func (h *Handler) summaryFor(c *gin.Context) (*Summary, error) {
	if mockRequested(c) {
		return h.service.MockSummary(), nil
	}
	return h.service.DailySummary(c.Request.Context())
}

func (h *Handler) energy(c *gin.Context) {
	summary, err := h.summaryFor(c)
	if err != nil {
		h.log.Errorw("building daily summary failed", "err", err)
		c.JSON(http.StatusBadGateway, ErrorSummary{
			Date:      yesterdayLabel(h.cfg.Location),
			Error:     "Failed to fetch data",
			Timestamp: time.Now().Format(time.RFC3339),
		})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) trmnl(c *gin.Context) {
	summary, err := h.summaryFor(c)
	if err != nil {
		h.log.Errorw("building daily summary failed", "err", err)
		h.renderHTML(c, http.StatusBadGateway, trmnlErrorTemplate, gin.H{
			"Date": yesterdayLabel(h.cfg.Location),
		})
		return
	}
	h.renderHTML(c, http.StatusOK, trmnlTemplate, summary)
}

func (h *Handler) index(c *gin.Context) {
	h.renderHTML(c, http.StatusOK, indexTemplate, gin.H{
		"OffPeakRate":        h.cfg.Tariff.OffPeakRate,
		"PeakRate":           h.cfg.Tariff.PeakRate,
		"GasRate":            h.cfg.Tariff.GasRate,
		"StandingChargeElec": h.cfg.Tariff.StandingChargeElec,
		"StandingChargeGas":  h.cfg.Tariff.StandingChargeGas,
		"OffPeakWindow":      h.cfg.OffPeakWindow.Start.String() + "-" + h.cfg.OffPeakWindow.End.String(),
	})
}

// dispatchRow is the display form of a DispatchWindow.
type dispatchRow struct {
	Start string
	End   string
	Delta float64
}

func (h *Handler) dispatchList(c *gin.Context) {
	var planned, completed []dispatchRow
	if h.cfg.DispatchEnabled && h.dispatches != nil {
		windows, err := h.dispatches.RecentDispatches(c.Request.Context(), time.Now())
		if err != nil {
			h.log.Warnw("dispatch fetch failed", "err", err)
		}
		for _, w := range windows {
			row := dispatchRow{
				Start: w.Start.In(h.cfg.Location).Format("2006-01-02 15:04"),
				End:   w.End.In(h.cfg.Location).Format("15:04"),
				Delta: w.Delta,
			}
			if w.Kind == DispatchPlanned {
				planned = append(planned, row)
			} else {
				completed = append(completed, row)
			}
		}
	}
	h.renderHTML(c, http.StatusOK, dispatchesTemplate, gin.H{
		"Planned":   planned,
		"Completed": completed,
	})
}

func (h *Handler) renderHTML(c *gin.Context, status int, tmpl renderer, data any) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		h.log.Errorw("template render failed", "err", err)
		c.String(http.StatusInternalServerError, "template render failed")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func yesterdayLabel(loc *time.Location) string {
	return time.Now().In(loc).AddDate(0, 0, -1).Format(displayDateFormat)
}
