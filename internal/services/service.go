/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "fmt"
    "time"

    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/config"
    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/domain"
    "github.com/rs/zerolog"
)

// Store is the snapshot-store surface the synchronizer writes through.
type Store interface {
    TasksByExtIDs(ctx context.Context, ids []int64) (map[int64]domain.Task, error)
    ApplyTaskOps(ctx context.Context, inserts, updates []domain.Task) error
    InsertReopenEvents(ctx context.Context, evs []domain.ReopenEvent) error
    StartSyncRun(ctx context.Context) (int64, error)
    FinishSyncRun(ctx context.Context, id int64, sum domain.SyncSummary, success bool, errStr string) error
    LastSyncRun(ctx context.Context) (*domain.SyncRun, error)
}

// Feed produces the full unordered task snapshot, open and closed sets,
// already deduplicated across pages. Zero records is a valid empty batch.
type Feed interface {
    FetchAll(ctx context.Context) ([]domain.RawTask, error)
}

type Service struct {
    cfg   config.Config
    log   zerolog.Logger
    store Store
    feed  Feed
}

func New(cfg config.Config, log zerolog.Logger, store Store, feed Feed) *Service {
    return &Service{cfg: cfg, log: log, store: store, feed: feed}
}

// RunSync fetches the remote snapshot and reconciles it, recording the run
// in sync_runs either way.
func (s *Service) RunSync(ctx context.Context) (domain.SyncSummary, error) {
    runID, err := s.store.StartSyncRun(ctx)
    if err != nil { s.log.Error().Err(err).Msg("start sync run failed") }
    var sum domain.SyncSummary
    var runErr error
    defer func(){
        if runID != 0 {
            errStr := ""
            if runErr != nil { errStr = runErr.Error() }
            _ = s.store.FinishSyncRun(ctx, runID, sum, runErr == nil, errStr)
        }
    }()
    batch, err := s.feed.FetchAll(ctx)
    if err != nil {
        runErr = fmt.Errorf("feed fetch: %w", err)
        return sum, runErr
    }
    sum, runErr = s.Reconcile(ctx, batch)
    return sum, runErr
}

func (s *Service) LastRun(ctx context.Context) (*domain.SyncRun, error) {
    return s.store.LastSyncRun(ctx)
}

// Reconcile merges one fetched batch into the snapshot store. Records
// without an id are dropped; duplicate ids keep the last occurrence. Reopen
// detection compares each incoming status against the status read before
// any write from this run, so a transition is judged exactly once per run.
func (s *Service) Reconcile(ctx context.Context, batch []domain.RawTask) (domain.SyncSummary, error) {
    sum := domain.SyncSummary{Fetched: len(batch)}
    terminal := s.cfg.TerminalStatus
    if terminal == "" { terminal = domain.TerminalStatus }

    byID := make(map[int64]domain.RawTask, len(batch))
    order := make([]int64, 0, len(batch))
    for _, rt := range batch {
        if rt.ID <= 0 { sum.Dropped++; continue }
        if _, seen := byID[rt.ID]; !seen { order = append(order, rt.ID) }
        byID[rt.ID] = rt
    }
    if len(order) == 0 {
        s.log.Info().Int("fetched", sum.Fetched).Int("dropped", sum.Dropped).Msg("sync: empty batch")
        return sum, nil
    }

    existing, err := s.store.TasksByExtIDs(ctx, order)
    if err != nil { return sum, fmt.Errorf("read existing tasks: %w", err) }

    now := time.Now().UTC()
    var inserts, updates []domain.Task
    var reopened []domain.ReopenEvent
    for _, id := range order {
        t := taskFromRaw(byID[id])
        if prev, ok := existing[id]; ok {
            if prev.Status == terminal && t.Status != terminal {
                reopened = append(reopened, domain.ReopenEvent{TaskID: id, ReopenedAt: now})
            }
            updates = append(updates, t)
        } else {
            inserts = append(inserts, t)
        }
    }

    if err := s.store.ApplyTaskOps(ctx, inserts, updates); err != nil {
        return sum, fmt.Errorf("apply task ops: %w", err)
    }
    sum.Inserted = len(inserts)
    sum.Updated = len(updates)
    if err := s.store.InsertReopenEvents(ctx, reopened); err != nil {
        // Tasks are already written; the missing events must be surfaced,
        // not retried, because a retry would re-read the updated status and
        // miss the transition.
        return sum, fmt.Errorf("record reopen events (tasks already written): %w", err)
    }
    sum.Reopened = len(reopened)
    s.log.Info().Int("fetched", sum.Fetched).Int("inserted", sum.Inserted).
        Int("updated", sum.Updated).Int("reopened", sum.Reopened).
        Int("dropped", sum.Dropped).Msg("sync: reconciled")
    return sum, nil
}

// taskFromRaw maps a feed record onto the stored shape. completion_date is
// derived: close_date when the record is closed, nil otherwise.
func taskFromRaw(rt domain.RawTask) domain.Task {
    t := domain.Task{
        ExtID:               rt.ID,
        Title:               rt.Title,
        Status:              rt.BoardStageName,
        IsClosed:            rt.IsClosed,
        TypeName:            rt.TypeName,
        UserName:            rt.UserName,
        ResponsibleID:       rt.ResponsibleID,
        ResponsibleName:     rt.ResponsibleName,
        CreatedAt:           parseTimeUTC(rt.CreatedAt),
        StartDate:           parseTimeUTC(rt.StartDate),
        CloseDate:           parseTimeUTC(rt.CloseDate),
        GanttBarStartDate:   parseTimeUTC(rt.GanttBarStartDate),
        GanttBarEndDate:     parseTimeUTC(rt.GanttBarEndDate),
        DesiredStartDate:    parseTimeUTC(rt.DesiredStartDate),
        DesiredDateWithTime: parseTimeUTC(rt.DesiredDateWithTime),
        ProjectLabel:        rt.ProjectLabel(),
        Assignments:         rt.Assignments,
    }
    if t.Assignments == nil { t.Assignments = []domain.Assignment{} }
    if rt.IsClosed { t.CompletionDate = t.CloseDate }
    return t
}

func parseTimeUTC(s string) *time.Time {
    if s == "" { return nil }
    layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700", "2006-01-02"}
    for _, l := range layouts {
        if t, err := time.Parse(l, s); err == nil {
            tt := t.UTC(); return &tt
        }
    }
    return nil
}
