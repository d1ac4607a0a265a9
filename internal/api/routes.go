package api

import (
	"github.com/gin-gonic/gin"

	"github.com/arbsim/ledgerd/internal/api/handlers"
	"github.com/arbsim/ledgerd/internal/config"
	"github.com/arbsim/ledgerd/internal/database"
	"github.com/arbsim/ledgerd/internal/ledger"
	"github.com/arbsim/ledgerd/internal/recommend"
)

// SetupRoutes wires all HTTP routes. redis may be nil; archive/reset then
// fall back to the in-process lock and the health endpoint reports redis as
// disabled.
func SetupRoutes(router *gin.Engine, db database.Database, redis *database.RedisClient, cfg *config.Config) {
	store := ledger.NewStore(db)
	locker := ledger.NewLocker(redis)
	archiver := ledger.NewArchiver(store, locker, cfg.Ledger)
	history := ledger.NewHistory(store)
	engine := recommend.NewEngine(cfg.Ledger)

	healthHandler := handlers.NewHealthHandler(db, redis)
	router.GET("/health", healthHandler.HealthCheck)
	router.HEAD("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	simHandler := handlers.NewSimulationHandler(store, archiver, history, engine, cfg.Ledger)

	v1 := router.Group("/api/v1")
	{
		sim := v1.Group("/simulation")
		{
			sim.GET("/stats", simHandler.GetStats)
			sim.GET("/analysis", simHandler.GetAnalysis)
			sim.POST("/archive", simHandler.ArchiveSession)
			sim.POST("/reset", simHandler.ResetLedger)
			sim.GET("/sessions", simHandler.ListSessions)
			sim.GET("/sessions/:id", simHandler.GetSession)
		}
	}
}
