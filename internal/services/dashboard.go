/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "errors"
    "sort"
    "time"

    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/domain"
    "github.com/rs/zerolog"
)

// ErrWindowRequired is returned by the builders whose window is mandatory.
var ErrWindowRequired = errors.New("period start and end are required")

// MetricsStore is the read-only query surface the dashboard consumes.
type MetricsStore interface {
    CountTasksByStatus(ctx context.Context, f domain.Filter) ([]domain.StatusCount, error)
    CountTasksByProject(ctx context.Context, f domain.Filter) ([]domain.ProjectCount, error)
    AverageDeviations(ctx context.Context, f domain.Filter) (domain.DeviationSummary, error)
    RealLeadTimeByMonth(ctx context.Context, start, end time.Time) ([]domain.MonthlyLeadTime, error)
    EstimatedLeadTimeByMonth(ctx context.Context, start, end time.Time) ([]domain.MonthlyLeadTime, error)
    MonthlyLeadTime(ctx context.Context, start, end time.Time, creator string) ([]domain.MonthlyAverage, error)
    TasksForWorkload(ctx context.Context, professionalID string) ([]domain.Task, error)
}

type Dashboard struct {
    log   zerolog.Logger
    store MetricsStore
}

func NewDashboard(log zerolog.Logger, store MetricsStore) *Dashboard {
    return &Dashboard{log: log, store: store}
}

func (d *Dashboard) TaskCounts(ctx context.Context, f domain.Filter) ([]domain.StatusCount, error) {
    return d.store.CountTasksByStatus(ctx, f)
}

func (d *Dashboard) ProjectDistribution(ctx context.Context, f domain.Filter) ([]domain.ProjectCount, error) {
    return d.store.CountTasksByProject(ctx, f)
}

func (d *Dashboard) AverageDeviations(ctx context.Context, f domain.Filter) (domain.DeviationSummary, error) {
    return d.store.AverageDeviations(ctx, f)
}

func (d *Dashboard) RealLeadTime(ctx context.Context, periodStart, periodEnd time.Time) ([]domain.MonthlyLeadTime, error) {
    return d.store.RealLeadTimeByMonth(ctx, periodStart, periodEnd)
}

func (d *Dashboard) EstimatedLeadTime(ctx context.Context, periodStart, periodEnd time.Time) ([]domain.MonthlyLeadTime, error) {
    return d.store.EstimatedLeadTimeByMonth(ctx, periodStart, periodEnd)
}

// MonthlyLeadTime keeps the legacy contract: unlike the other builders, its
// window is mandatory and unbounded calls are rejected.
func (d *Dashboard) MonthlyLeadTime(ctx context.Context, periodStart, periodEnd time.Time, creator string) ([]domain.MonthlyAverage, error) {
    if periodStart.IsZero() || periodEnd.IsZero() { return nil, ErrWindowRequired }
    return d.store.MonthlyLeadTime(ctx, periodStart, periodEnd, creator)
}

// TasksByProfessional counts open and closed tasks per professional for the
// period. Each qualifying task contributes once to every distinct id among
// its primary responsible and its assignees.
func (d *Dashboard) TasksByProfessional(ctx context.Context, periodStart, periodEnd time.Time, professionalID string) ([]domain.ProfessionalWorkload, error) {
    if periodStart.IsZero() || periodEnd.IsZero() { return nil, ErrWindowRequired }
    tasks, err := d.store.TasksForWorkload(ctx, professionalID)
    if err != nil { return nil, err }
    return aggregateWorkload(tasks, periodStart, periodEnd), nil
}

// aggregateWorkload applies the window rules and fans each qualifying task
// out to its professionals.
//
// Closed for the window: is_closed and close_date within [start, end].
// Open for the window: not closed (or no close_date), created by end, and
// not yet closed by end. A task matching neither counts for nobody.
func aggregateWorkload(tasks []domain.Task, periodStart, periodEnd time.Time) []domain.ProfessionalWorkload {
    type counts struct{ open, closed int }
    acc := map[string]*counts{}
    for _, t := range tasks {
        closed := t.IsClosed && t.CloseDate != nil &&
            !t.CloseDate.Before(periodStart) && !t.CloseDate.After(periodEnd)
        open := !closed &&
            (!t.IsClosed || t.CloseDate == nil) &&
            t.CreatedAt != nil && !t.CreatedAt.After(periodEnd) &&
            (t.CloseDate == nil || t.CloseDate.After(periodEnd))
        if !closed && !open { continue }
        // dedupe so one person never counts twice for one task
        seen := map[string]struct{}{}
        if t.ResponsibleID != "" { seen[t.ResponsibleID] = struct{}{} }
        for _, a := range t.Assignments {
            if a.AssigneeID != "" { seen[a.AssigneeID] = struct{}{} }
        }
        for id := range seen {
            c := acc[id]
            if c == nil { c = &counts{}; acc[id] = c }
            if closed { c.closed++ } else { c.open++ }
        }
    }
    out := make([]domain.ProfessionalWorkload, 0, len(acc))
    for id, c := range acc {
        out = append(out, domain.ProfessionalWorkload{Professional: id, OpenCount: c.open, ClosedCount: c.closed})
    }
    sort.Slice(out, func(i, j int) bool { return out[i].Professional < out[j].Professional })
    return out
}
