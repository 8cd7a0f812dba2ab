/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/config"
    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/domain"
    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/services"
    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"
)

type syncService interface {
    RunSync(ctx context.Context) (domain.SyncSummary, error)
    LastRun(ctx context.Context) (*domain.SyncRun, error)
}

type dashboard interface {
    TaskCounts(ctx context.Context, f domain.Filter) ([]domain.StatusCount, error)
    ProjectDistribution(ctx context.Context, f domain.Filter) ([]domain.ProjectCount, error)
    AverageDeviations(ctx context.Context, f domain.Filter) (domain.DeviationSummary, error)
    RealLeadTime(ctx context.Context, periodStart, periodEnd time.Time) ([]domain.MonthlyLeadTime, error)
    EstimatedLeadTime(ctx context.Context, periodStart, periodEnd time.Time) ([]domain.MonthlyLeadTime, error)
    MonthlyLeadTime(ctx context.Context, periodStart, periodEnd time.Time, creator string) ([]domain.MonthlyAverage, error)
    TasksByProfessional(ctx context.Context, periodStart, periodEnd time.Time, professionalID string) ([]domain.ProfessionalWorkload, error)
}

type Handlers struct {
    cfg  config.Config
    log  zerolog.Logger
    sync syncService
    dash dashboard
}

func NewHandlers(cfg config.Config, log zerolog.Logger, sync syncService, dash dashboard) *Handlers {
    return &Handlers{cfg: cfg, log: log, sync: sync, dash: dash}
}

func (h *Handlers) Healthz(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) SyncNow(c *gin.Context) {
    // Run detached from the HTTP request to avoid context cancellation
    go func(){
        if _, err := h.sync.RunSync(context.Background()); err != nil {
            h.log.Error().Err(err).Msg("admin sync failed")
        }
    }()
    c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *Handlers) LastRun(c *gin.Context) {
    lr, err := h.sync.LastRun(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, lr)
}

// parseTimeParam accepts RFC3339 or plain dates; zero time when absent.
func parseTimeParam(c *gin.Context, name string) (time.Time, bool) {
    v := c.Query(name)
    if v == "" { return time.Time{}, true }
    for _, l := range []string{time.RFC3339, "2006-01-02"} {
        if t, err := time.Parse(l, v); err == nil { return t.UTC(), true }
    }
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + ": " + v})
    return time.Time{}, false
}

func (h *Handlers) filter(c *gin.Context) (domain.Filter, bool) {
    start, ok := parseTimeParam(c, "start")
    if !ok { return domain.Filter{}, false }
    end, ok := parseTimeParam(c, "end")
    if !ok { return domain.Filter{}, false }
    return domain.Filter{Start: start, End: end, Creator: c.Query("creator")}, true
}

func respond(c *gin.Context, v any, err error) {
    if err != nil {
        if errors.Is(err, services.ErrWindowRequired) {
            c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
            return
        }
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, v)
}

func (h *Handlers) TaskCounts(c *gin.Context) {
    f, ok := h.filter(c)
    if !ok { return }
    out, err := h.dash.TaskCounts(c.Request.Context(), f)
    respond(c, out, err)
}

func (h *Handlers) ProjectDistribution(c *gin.Context) {
    f, ok := h.filter(c)
    if !ok { return }
    out, err := h.dash.ProjectDistribution(c.Request.Context(), f)
    respond(c, out, err)
}

func (h *Handlers) AverageDeviations(c *gin.Context) {
    f, ok := h.filter(c)
    if !ok { return }
    out, err := h.dash.AverageDeviations(c.Request.Context(), f)
    respond(c, out, err)
}

func (h *Handlers) RealLeadTime(c *gin.Context) {
    f, ok := h.filter(c)
    if !ok { return }
    out, err := h.dash.RealLeadTime(c.Request.Context(), f.Start, f.End)
    respond(c, out, err)
}

func (h *Handlers) EstimatedLeadTime(c *gin.Context) {
    f, ok := h.filter(c)
    if !ok { return }
    out, err := h.dash.EstimatedLeadTime(c.Request.Context(), f.Start, f.End)
    respond(c, out, err)
}

func (h *Handlers) MonthlyLeadTime(c *gin.Context) {
    f, ok := h.filter(c)
    if !ok { return }
    out, err := h.dash.MonthlyLeadTime(c.Request.Context(), f.Start, f.End, f.Creator)
    respond(c, out, err)
}

func (h *Handlers) TasksByProfessional(c *gin.Context) {
    f, ok := h.filter(c)
    if !ok { return }
    out, err := h.dash.TasksByProfessional(c.Request.Context(), f.Start, f.End, c.Query("professional_id"))
    respond(c, out, err)
}
