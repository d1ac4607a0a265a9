package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arbsim/ledgerd/internal/config"
	"github.com/arbsim/ledgerd/internal/ledger"
	"github.com/arbsim/ledgerd/internal/logging"
	"github.com/arbsim/ledgerd/internal/metrics"
	"github.com/arbsim/ledgerd/internal/models"
	"github.com/arbsim/ledgerd/internal/observability"
	"github.com/arbsim/ledgerd/internal/recommend"
)

// SimulationHandler exposes the ledger engine over HTTP: live stats,
// analysis, archive, reset, and session history.
type SimulationHandler struct {
	store    *ledger.Store
	archiver *ledger.Archiver
	history  *ledger.History
	engine   *recommend.Engine
	cfg      config.LedgerConfig
}

func NewSimulationHandler(store *ledger.Store, archiver *ledger.Archiver, history *ledger.History, engine *recommend.Engine, cfg config.LedgerConfig) *SimulationHandler {
	return &SimulationHandler{
		store:    store,
		archiver: archiver,
		history:  history,
		engine:   engine,
		cfg:      cfg,
	}
}

type ArchiveRequest struct {
	Notes string `json:"notes"`
}

// scope resolves the ledger scope from the mode query parameter.
func (h *SimulationHandler) scope(c *gin.Context) string {
	if mode := c.Query("mode"); mode != "" {
		return mode
	}
	return h.cfg.Mode()
}

// GetStats returns the live ledger's StatsSnapshot, recomputed from the
// current trade set.
func (h *SimulationHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	scope := h.scope(c)

	trades, err := h.store.ListTrades(ctx, scope)
	if err != nil {
		h.internalError(c, err, "failed to load trades")
		return
	}
	startingBalance, err := h.store.StartingBalance(ctx, scope, h.cfg.StartingBalance())
	if err != nil {
		h.internalError(c, err, "failed to load starting balance")
		return
	}

	snap := metrics.Snapshot(trades, startingBalance)
	snap.TradingMode = scope

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   snap,
	})
}

// GetAnalysis returns the narrative report, the recommendation list, and the
// full metrics for the live ledger.
func (h *SimulationHandler) GetAnalysis(c *gin.Context) {
	ctx := c.Request.Context()
	scope := h.scope(c)

	trades, err := h.store.ListTrades(ctx, scope)
	if err != nil {
		h.internalError(c, err, "failed to load trades")
		return
	}
	startingBalance, err := h.store.StartingBalance(ctx, scope, h.cfg.StartingBalance())
	if err != nil {
		h.internalError(c, err, "failed to load starting balance")
		return
	}

	snap := metrics.Snapshot(trades, startingBalance)
	m := metrics.Calculate(trades, startingBalance)
	summary := models.SessionSummary{
		RoiPct:       snap.RoiPct,
		WinRatePct:   snap.WinRatePct,
		TotalTrades:  snap.TotalTrades,
		FailedTrades: snap.FailedTrades,
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"analysis":        recommend.Narrative(summary, m),
			"recommendations": h.engine.Evaluate(summary, m),
			"metrics":         m,
		},
	})
}

// ArchiveSession closes the current simulation run into an immutable
// session. Cleanup failures after the session is committed surface as a
// 207 partial success rather than an error.
func (h *SimulationHandler) ArchiveSession(c *gin.Context) {
	ctx := c.Request.Context()
	scope := h.scope(c)

	var req ArchiveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"status": "error",
				"error":  "invalid request payload",
			})
			return
		}
	}

	result, err := h.archiver.Archive(ctx, scope, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNothingToArchive):
			c.JSON(http.StatusBadRequest, gin.H{
				"status": "error",
				"error":  "no trades to archive",
			})
		case errors.Is(err, ledger.ErrLocked):
			c.JSON(http.StatusConflict, gin.H{
				"status": "error",
				"error":  err.Error(),
			})
		default:
			h.internalError(c, err, "archive failed")
		}
		return
	}

	status := http.StatusOK
	if len(result.CleanupErrors) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{
		"status": "success",
		"data":   result,
	})
}

// ResetLedger wipes the live simulation state without archiving it.
func (h *SimulationHandler) ResetLedger(c *gin.Context) {
	ctx := c.Request.Context()
	scope := h.scope(c)

	result, err := h.archiver.Reset(ctx, scope)
	if err != nil {
		if errors.Is(err, ledger.ErrLocked) {
			c.JSON(http.StatusConflict, gin.H{
				"status": "error",
				"error":  err.Error(),
			})
			return
		}
		h.internalError(c, err, "reset failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   result,
	})
}

// ListSessions returns archived sessions, newest first.
func (h *SimulationHandler) ListSessions(c *gin.Context) {
	ctx := c.Request.Context()
	scope := h.scope(c)

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	sessions, err := h.history.ListSessions(ctx, scope, c.Query("status"), limit)
	if err != nil {
		h.internalError(c, err, "failed to list sessions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"sessions": sessions,
			"count":    len(sessions),
		},
	})
}

// GetSession returns one archived session with its trades and a recomputed
// strategy breakdown.
func (h *SimulationHandler) GetSession(c *gin.Context) {
	ctx := c.Request.Context()

	detail, err := h.history.GetSession(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, ledger.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status": "error",
				"error":  "session not found",
			})
			return
		}
		h.internalError(c, err, "failed to load session")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   detail,
	})
}

func (h *SimulationHandler) internalError(c *gin.Context, err error, msg string) {
	logging.WithError(err).Error(msg)
	observability.CaptureError(err, map[string]string{
		"component": "api",
		"path":      c.FullPath(),
	})
	c.JSON(http.StatusInternalServerError, gin.H{
		"status": "error",
		"error":  msg,
	})
}
