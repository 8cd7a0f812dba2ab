/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/config"
    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"
)

func NewRouter(cfg config.Config, log zerolog.Logger, sync syncService, dash dashboard) *gin.Engine {
    if cfg.AppEnv != "dev" { gin.SetMode(gin.ReleaseMode) }
    r := gin.New()
    r.Use(gin.Recovery())
    r.Use(func(c *gin.Context){
        c.Next()
        log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
    })

    h := NewHandlers(cfg, log, sync, dash)

    r.GET("/healthz", h.Healthz)
    r.GET("/admin/last-run", h.LastRun)
    r.POST("/admin/sync", h.SyncNow)

    r.GET("/dashboard/status", h.TaskCounts)
    r.GET("/dashboard/projects", h.ProjectDistribution)
    r.GET("/dashboard/deviations", h.AverageDeviations)
    r.GET("/dashboard/lead-time/real", h.RealLeadTime)
    r.GET("/dashboard/lead-time/estimated", h.EstimatedLeadTime)
    r.GET("/dashboard/lead-time/monthly", h.MonthlyLeadTime)
    r.GET("/dashboard/professionals", h.TasksByProfessional)

    return r
}
