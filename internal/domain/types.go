package domain

import "time"

// Terminal status label used by the board: only transitions away from it
// count as a reopen.
const TerminalStatus = "*FINALIZADAS"

// Label grouping tasks that carry no project custom field.
const NoProjectLabel = "SEM PROJETO"

// RawTask is one record as delivered by the Runrun.it feed. Only ID is
// required; date fields arrive as ISO strings and stay empty while the task
// has not reached the corresponding phase.
type RawTask struct {
    ID                  int64          `json:"id"`
    Title               string         `json:"title"`
    BoardStageName      string         `json:"board_stage_name"`
    IsClosed            bool           `json:"is_closed"`
    TypeName            string         `json:"type_name"`
    UserName            string         `json:"user_name"`
    ResponsibleID       string         `json:"responsible_id"`
    ResponsibleName     string         `json:"responsible_name"`
    CreatedAt           string         `json:"created_at"`
    StartDate           string         `json:"start_date"`
    CloseDate           string         `json:"close_date"`
    GanttBarStartDate   string         `json:"gantt_bar_start_date"`
    GanttBarEndDate     string         `json:"gantt_bar_end_date"`
    DesiredStartDate    string         `json:"desired_start_date"`
    DesiredDateWithTime string         `json:"desired_date_with_time"`
    CustomFields        map[string]any `json:"custom_fields"`
    Assignments         []Assignment   `json:"assignments"`
}

// ProjectLabel extracts custom_259.label; empty means unassigned.
func (rt RawTask) ProjectLabel() string {
    if cf, ok := rt.CustomFields["custom_259"].(map[string]any); ok {
        if s, ok := cf["label"].(string); ok { return s }
    }
    return ""
}

type Assignment struct {
    AssigneeID string `json:"assignee_id"`
}

// Task is the stored snapshot row, one per remote task id.
type Task struct {
    ExtID               int64
    Title               string
    Status              string
    IsClosed            bool
    TypeName            string
    UserName            string
    ResponsibleID       string
    ResponsibleName     string
    CreatedAt           *time.Time
    StartDate           *time.Time
    CloseDate           *time.Time
    GanttBarStartDate   *time.Time
    GanttBarEndDate     *time.Time
    DesiredStartDate    *time.Time
    DesiredDateWithTime *time.Time
    CompletionDate      *time.Time
    ProjectLabel        string
    Assignments         []Assignment
}

// ReopenEvent is appended once per observed terminal→non-terminal transition.
type ReopenEvent struct {
    TaskID     int64
    ReopenedAt time.Time
}

type SyncSummary struct {
    Fetched  int `json:"fetched"`
    Inserted int `json:"inserted"`
    Updated  int `json:"updated"`
    Reopened int `json:"reopened"`
    Dropped  int `json:"dropped"`
}

// SyncRun is one recorded reconcile run.
type SyncRun struct {
    StartedAt  time.Time  `json:"started_at"`
    FinishedAt *time.Time `json:"finished_at"`
    Fetched    int        `json:"fetched"`
    Inserted   int        `json:"inserted"`
    Updated    int        `json:"updated"`
    Reopened   int        `json:"reopened"`
    Dropped    int        `json:"dropped"`
    Success    bool       `json:"success"`
    Error      string     `json:"error"`
}

// Filter is the optional window/creator filter shared by the dashboard
// queries. Zero times mean unbounded; the window is inclusive on both ends.
type Filter struct {
    Start   time.Time
    End     time.Time
    Creator string
}

type StatusCount struct {
    Status string `json:"status"`
    Count  int64  `json:"count"`
}

type ProjectCount struct {
    Project string `json:"project"`
    Count   int64  `json:"count"`
}

// DeviationSummary carries planned-vs-actual averages in days. Each leg is
// nil when no task qualified for it.
type DeviationSummary struct {
    AvgStartDeviationDays *float64 `json:"avg_start_deviation"`
    AvgEndDeviationDays   *float64 `json:"avg_end_deviation"`
}

type MonthlyLeadTime struct {
    Month        string  `json:"month"`
    AverageHours float64 `json:"average_lead_time"`
    TotalHours   float64 `json:"total_lead_time"`
    Count        int64   `json:"count"`
}

type MonthlyAverage struct {
    Month       string  `json:"month"`
    AvgLeadDays float64 `json:"avg_lead_time"`
}

type ProfessionalWorkload struct {
    Professional string `json:"professional"`
    OpenCount    int    `json:"open_count"`
    ClosedCount  int    `json:"closed_count"`
}
