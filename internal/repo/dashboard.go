package repo

import (
    "context"
    "fmt"
    "strings"
    "time"

    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/domain"
)

// filterClause renders the shared optional created_at window + creator
// filter. Returned string is empty or starts with " WHERE ".
func filterClause(f domain.Filter) (string, []any) {
    var conds []string
    var args []any
    if !f.Start.IsZero() {
        args = append(args, f.Start)
        conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
    }
    if !f.End.IsZero() {
        args = append(args, f.End)
        conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
    }
    if f.Creator != "" {
        args = append(args, f.Creator)
        conds = append(conds, fmt.Sprintf("user_name = $%d", len(args)))
    }
    if len(conds) == 0 { return "", nil }
    return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *Repository) CountTasksByStatus(ctx context.Context, f domain.Filter) ([]domain.StatusCount, error) {
    where, args := filterClause(f)
    q := `SELECT status, COUNT(*) FROM tasks` + where + ` GROUP BY 1 ORDER BY 2 DESC, 1`
    rows, err := r.db.Pool.Query(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.StatusCount
    for rows.Next() {
        var sc domain.StatusCount
        if err := rows.Scan(&sc.Status, &sc.Count); err != nil { return nil, err }
        out = append(out, sc)
    }
    return out, rows.Err()
}

func (r *Repository) CountTasksByProject(ctx context.Context, f domain.Filter) ([]domain.ProjectCount, error) {
    where, args := filterClause(f)
    q := `SELECT COALESCE(NULLIF(project_label,''), '` + domain.NoProjectLabel + `'), COUNT(*)
        FROM tasks` + where + ` GROUP BY 1 ORDER BY 2 DESC, 1`
    rows, err := r.db.Pool.Query(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.ProjectCount
    for rows.Next() {
        var pc domain.ProjectCount
        if err := rows.Scan(&pc.Project, &pc.Count); err != nil { return nil, err }
        out = append(out, pc)
    }
    return out, rows.Err()
}

// AverageDeviations computes the planned-vs-actual averages in days. The two
// legs are independent: a task missing one leg's timestamps still feeds the
// other.
func (r *Repository) AverageDeviations(ctx context.Context, f domain.Filter) (domain.DeviationSummary, error) {
    where, args := filterClause(f)
    q := `SELECT
        AVG(EXTRACT(EPOCH FROM (start_date - gantt_bar_start_date))/86400.0)
            FILTER (WHERE start_date IS NOT NULL AND gantt_bar_start_date IS NOT NULL),
        AVG(EXTRACT(EPOCH FROM (close_date - gantt_bar_end_date))/86400.0)
            FILTER (WHERE close_date IS NOT NULL AND gantt_bar_end_date IS NOT NULL)
        FROM tasks` + where
    var out domain.DeviationSummary
    if err := r.db.Pool.QueryRow(ctx, q, args...).Scan(&out.AvgStartDeviationDays, &out.AvgEndDeviationDays); err != nil {
        return domain.DeviationSummary{}, err
    }
    return out, nil
}

// leadTimeByMonth buckets close-minus-start spans by the month of the start
// column and reports averages in hours.
func (r *Repository) leadTimeByMonth(ctx context.Context, startCol, endCol string, start, end time.Time) ([]domain.MonthlyLeadTime, error) {
    conds := []string{startCol + " IS NOT NULL", endCol + " IS NOT NULL"}
    var args []any
    if !start.IsZero() {
        args = append(args, start)
        conds = append(conds, fmt.Sprintf("%s >= $%d", startCol, len(args)))
    }
    if !end.IsZero() {
        args = append(args, end)
        conds = append(conds, fmt.Sprintf("%s <= $%d", startCol, len(args)))
    }
    q := `SELECT to_char(` + startCol + ` AT TIME ZONE 'UTC', 'YYYY-MM'),
            AVG(EXTRACT(EPOCH FROM (` + endCol + ` - ` + startCol + `))/3600.0),
            SUM(EXTRACT(EPOCH FROM (` + endCol + ` - ` + startCol + `))/3600.0),
            COUNT(*)
        FROM tasks WHERE ` + strings.Join(conds, " AND ") + `
        GROUP BY 1 ORDER BY 1`
    rows, err := r.db.Pool.Query(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.MonthlyLeadTime
    for rows.Next() {
        var m domain.MonthlyLeadTime
        if err := rows.Scan(&m.Month, &m.AverageHours, &m.TotalHours, &m.Count); err != nil { return nil, err }
        out = append(out, m)
    }
    return out, rows.Err()
}

func (r *Repository) RealLeadTimeByMonth(ctx context.Context, start, end time.Time) ([]domain.MonthlyLeadTime, error) {
    return r.leadTimeByMonth(ctx, "start_date", "close_date", start, end)
}

func (r *Repository) EstimatedLeadTimeByMonth(ctx context.Context, start, end time.Time) ([]domain.MonthlyLeadTime, error) {
    return r.leadTimeByMonth(ctx, "desired_start_date", "desired_date_with_time", start, end)
}

// MonthlyLeadTime is the legacy builder: window over gantt_bar_start_date is
// mandatory (enforced by the service layer), result is in days.
func (r *Repository) MonthlyLeadTime(ctx context.Context, start, end time.Time, creator string) ([]domain.MonthlyAverage, error) {
    conds := []string{
        "gantt_bar_start_date IS NOT NULL",
        "close_date IS NOT NULL",
        "gantt_bar_start_date >= $1",
        "gantt_bar_start_date <= $2",
    }
    args := []any{start, end}
    if creator != "" {
        args = append(args, creator)
        conds = append(conds, fmt.Sprintf("user_name = $%d", len(args)))
    }
    q := `SELECT to_char(gantt_bar_start_date AT TIME ZONE 'UTC', 'YYYY-MM'),
            AVG(EXTRACT(EPOCH FROM (close_date - gantt_bar_start_date))/86400.0)
        FROM tasks WHERE ` + strings.Join(conds, " AND ") + `
        GROUP BY 1 ORDER BY 1`
    rows, err := r.db.Pool.Query(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.MonthlyAverage
    for rows.Next() {
        var m domain.MonthlyAverage
        if err := rows.Scan(&m.Month, &m.AvgLeadDays); err != nil { return nil, err }
        out = append(out, m)
    }
    return out, rows.Err()
}

// TasksForWorkload fetches the columns the per-professional fan-out needs.
// The window predicates and the fan-out itself run in Go; only the optional
// professional filter is pushed into SQL.
func (r *Repository) TasksForWorkload(ctx context.Context, professionalID string) ([]domain.Task, error) {
    q := `SELECT ext_id, is_closed, created_at, close_date, responsible_id,
            COALESCE(assignments, '[]'::jsonb)
        FROM tasks`
    var args []any
    if professionalID != "" {
        args = append(args, professionalID)
        q += ` WHERE responsible_id = $1
            OR assignments @> jsonb_build_array(jsonb_build_object('assignee_id', $1::text))`
    }
    rows, err := r.db.Pool.Query(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.Task
    for rows.Next() {
        var t domain.Task
        if err := rows.Scan(&t.ExtID, &t.IsClosed, &t.CreatedAt, &t.CloseDate, &t.ResponsibleID, &t.Assignments); err != nil {
            return nil, err
        }
        out = append(out, t)
    }
    return out, rows.Err()
}
