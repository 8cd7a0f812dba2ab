package services

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/config"
    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/domain"
    "github.com/rs/zerolog"
)

// fakeStore mirrors the repository's reconcile surface in memory, applying
// the same mutable-field whitelist on updates.
type fakeStore struct {
    tasks     map[int64]domain.Task
    reopened  []domain.ReopenEvent
    runs      int
    lastSum   domain.SyncSummary
    lastOK    bool
    applyErr  error
    reopenErr error
}

func newFakeStore() *fakeStore { return &fakeStore{tasks: map[int64]domain.Task{}} }

func (f *fakeStore) TasksByExtIDs(_ context.Context, ids []int64) (map[int64]domain.Task, error) {
    out := map[int64]domain.Task{}
    for _, id := range ids {
        if t, ok := f.tasks[id]; ok { out[id] = t }
    }
    return out, nil
}

func (f *fakeStore) ApplyTaskOps(_ context.Context, inserts, updates []domain.Task) error {
    if f.applyErr != nil { return f.applyErr }
    for _, t := range inserts { f.tasks[t.ExtID] = t }
    for _, t := range updates {
        cur := f.tasks[t.ExtID]
        cur.ExtID = t.ExtID
        cur.Title = t.Title
        cur.Status = t.Status
        cur.IsClosed = t.IsClosed
        cur.CompletionDate = t.CompletionDate
        cur.ProjectLabel = t.ProjectLabel
        cur.Assignments = t.Assignments
        f.tasks[t.ExtID] = cur
    }
    return nil
}

func (f *fakeStore) InsertReopenEvents(_ context.Context, evs []domain.ReopenEvent) error {
    if f.reopenErr != nil { return f.reopenErr }
    f.reopened = append(f.reopened, evs...)
    return nil
}

func (f *fakeStore) StartSyncRun(context.Context) (int64, error) { f.runs++; return int64(f.runs), nil }

func (f *fakeStore) FinishSyncRun(_ context.Context, _ int64, sum domain.SyncSummary, ok bool, _ string) error {
    f.lastSum = sum
    f.lastOK = ok
    return nil
}

func (f *fakeStore) LastSyncRun(context.Context) (*domain.SyncRun, error) {
    return &domain.SyncRun{Fetched: f.lastSum.Fetched, Success: f.lastOK}, nil
}

type fakeFeed struct {
    batch []domain.RawTask
    err   error
}

func (f *fakeFeed) FetchAll(context.Context) ([]domain.RawTask, error) { return f.batch, f.err }

func newService(store *fakeStore, feed Feed) *Service {
    return New(config.Config{TerminalStatus: "*FINALIZADAS"}, zerolog.Nop(), store, feed)
}

func TestReconcile_InsertsNewAndUpdatesExisting(t *testing.T) {
    store := newFakeStore()
    created := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
    store.tasks[1] = domain.Task{ExtID: 1, Title: "old title", Status: "EM ANDAMENTO", CreatedAt: &created}

    sum, err := newService(store, nil).Reconcile(context.Background(), []domain.RawTask{
        {ID: 1, Title: "new title", BoardStageName: "EM ANDAMENTO"},
        {ID: 2, Title: "brand new", BoardStageName: "BACKLOG", CreatedAt: "2024-03-01T09:00:00Z"},
    })
    if err != nil { t.Fatalf("reconcile: %v", err) }
    if sum.Inserted != 1 || sum.Updated != 1 || sum.Reopened != 0 {
        t.Fatalf("unexpected summary: %+v", sum)
    }
    if store.tasks[1].Title != "new title" { t.Fatalf("update not applied: %+v", store.tasks[1]) }
    if store.tasks[1].CreatedAt == nil || !store.tasks[1].CreatedAt.Equal(created) {
        t.Fatalf("created_at must not change on update: %+v", store.tasks[1])
    }
    got := store.tasks[2]
    if got.Status != "BACKLOG" || got.CreatedAt == nil {
        t.Fatalf("insert not applied: %+v", got)
    }
    if got.CompletionDate != nil { t.Fatalf("open task must have nil completion date") }
}

func TestReconcile_DropsRecordsWithoutID(t *testing.T) {
    store := newFakeStore()
    sum, err := newService(store, nil).Reconcile(context.Background(), []domain.RawTask{
        {Title: "no id"},
        {ID: 7, Title: "ok"},
    })
    if err != nil { t.Fatalf("reconcile: %v", err) }
    if sum.Dropped != 1 || sum.Inserted != 1 {
        t.Fatalf("unexpected summary: %+v", sum)
    }
}

func TestReconcile_DuplicateIDLastOccurrenceWins(t *testing.T) {
    store := newFakeStore()
    sum, err := newService(store, nil).Reconcile(context.Background(), []domain.RawTask{
        {ID: 3, Title: "first"},
        {ID: 3, Title: "second"},
    })
    if err != nil { t.Fatalf("reconcile: %v", err) }
    if sum.Inserted != 1 { t.Fatalf("duplicate id must collapse to one op: %+v", sum) }
    if store.tasks[3].Title != "second" { t.Fatalf("last occurrence must win: %+v", store.tasks[3]) }
}

func TestReconcile_EmptyBatch(t *testing.T) {
    store := newFakeStore()
    sum, err := newService(store, nil).Reconcile(context.Background(), nil)
    if err != nil { t.Fatalf("empty batch must be valid: %v", err) }
    if sum.Fetched != 0 || sum.Inserted != 0 { t.Fatalf("unexpected summary: %+v", sum) }
}

func TestReconcile_ReopenDetectedExactlyOnce(t *testing.T) {
    store := newFakeStore()
    closeAt := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
    store.tasks[1] = domain.Task{ExtID: 1, Status: "*FINALIZADAS", IsClosed: true, CompletionDate: &closeAt}
    svc := newService(store, nil)

    batch := []domain.RawTask{{ID: 1, BoardStageName: "EM ANDAMENTO", IsClosed: false}}
    sum, err := svc.Reconcile(context.Background(), batch)
    if err != nil { t.Fatalf("reconcile: %v", err) }
    if sum.Reopened != 1 || len(store.reopened) != 1 {
        t.Fatalf("expected one reopen event, got %+v / %d", sum, len(store.reopened))
    }
    if store.reopened[0].TaskID != 1 { t.Fatalf("wrong task id: %+v", store.reopened[0]) }
    if store.tasks[1].Status != "EM ANDAMENTO" { t.Fatalf("status not updated: %+v", store.tasks[1]) }
    if store.tasks[1].CompletionDate != nil {
        t.Fatalf("completion date must revert to nil on reopen: %+v", store.tasks[1])
    }

    // same batch again: no status change, no second event
    before := store.tasks[1]
    sum, err = svc.Reconcile(context.Background(), batch)
    if err != nil { t.Fatalf("second reconcile: %v", err) }
    if sum.Reopened != 0 || len(store.reopened) != 1 {
        t.Fatalf("second run must not emit events: %+v / %d", sum, len(store.reopened))
    }
    if store.tasks[1].Status != before.Status || store.tasks[1].Title != before.Title {
        t.Fatalf("second run must leave mutable fields identical: %+v vs %+v", store.tasks[1], before)
    }
}

func TestReconcile_NoReopenFromNonTerminalStatus(t *testing.T) {
    store := newFakeStore()
    store.tasks[1] = domain.Task{ExtID: 1, Status: "EM ANDAMENTO"}
    sum, err := newService(store, nil).Reconcile(context.Background(), []domain.RawTask{
        {ID: 1, BoardStageName: "BACKLOG"},
    })
    if err != nil { t.Fatalf("reconcile: %v", err) }
    if sum.Reopened != 0 || len(store.reopened) != 0 {
        t.Fatalf("non-terminal transition must not reopen: %+v", sum)
    }
}

func TestReconcile_TerminalToTerminalIsNotReopen(t *testing.T) {
    store := newFakeStore()
    store.tasks[1] = domain.Task{ExtID: 1, Status: "*FINALIZADAS"}
    sum, err := newService(store, nil).Reconcile(context.Background(), []domain.RawTask{
        {ID: 1, BoardStageName: "*FINALIZADAS", IsClosed: true},
    })
    if err != nil { t.Fatalf("reconcile: %v", err) }
    if sum.Reopened != 0 { t.Fatalf("terminal to terminal must not reopen: %+v", sum) }
}

func TestReconcile_ClosedInsertDerivesCompletionDate(t *testing.T) {
    store := newFakeStore()
    _, err := newService(store, nil).Reconcile(context.Background(), []domain.RawTask{
        {ID: 5, BoardStageName: "*FINALIZADAS", IsClosed: true, CloseDate: "2024-01-10T12:00:00Z"},
    })
    if err != nil { t.Fatalf("reconcile: %v", err) }
    got := store.tasks[5]
    if got.CompletionDate == nil || !got.CompletionDate.Equal(time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)) {
        t.Fatalf("completion date must equal close date for closed insert: %+v", got)
    }
}

func TestReconcile_ReopenWriteFailureKeepsTaskCounts(t *testing.T) {
    store := newFakeStore()
    store.tasks[1] = domain.Task{ExtID: 1, Status: "*FINALIZADAS"}
    store.reopenErr = errors.New("boom")
    sum, err := newService(store, nil).Reconcile(context.Background(), []domain.RawTask{
        {ID: 1, BoardStageName: "EM ANDAMENTO"},
    })
    if err == nil { t.Fatal("expected error") }
    if sum.Updated != 1 || sum.Reopened != 0 {
        t.Fatalf("task write counts must survive the failed event insert: %+v", sum)
    }
}

func TestRunSync_RecordsRun(t *testing.T) {
    store := newFakeStore()
    feed := &fakeFeed{batch: []domain.RawTask{{ID: 1, BoardStageName: "BACKLOG"}}}
    sum, err := newService(store, feed).RunSync(context.Background())
    if err != nil { t.Fatalf("run sync: %v", err) }
    if sum.Inserted != 1 { t.Fatalf("unexpected summary: %+v", sum) }
    if store.runs != 1 || !store.lastOK || store.lastSum.Inserted != 1 {
        t.Fatalf("run not recorded: runs=%d ok=%v sum=%+v", store.runs, store.lastOK, store.lastSum)
    }
}

func TestRunSync_FeedFailureRecordedAsFailedRun(t *testing.T) {
    store := newFakeStore()
    feed := &fakeFeed{err: errors.New("feed down")}
    if _, err := newService(store, feed).RunSync(context.Background()); err == nil {
        t.Fatal("expected error")
    }
    if store.lastOK { t.Fatal("failed fetch must finish the run unsuccessfully") }
}

func TestTaskFromRaw_ProjectLabelAndDates(t *testing.T) {
    rt := domain.RawTask{
        ID:             9,
        BoardStageName: "EM ANDAMENTO",
        StartDate:      "2024-02-01T08:00:00Z",
        CustomFields:   map[string]any{"custom_259": map[string]any{"label": "Alpha"}},
    }
    got := taskFromRaw(rt)
    if got.ProjectLabel != "Alpha" { t.Fatalf("project label: %+v", got) }
    if got.StartDate == nil || !got.StartDate.Equal(time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)) {
        t.Fatalf("start date not parsed: %+v", got)
    }
    if got.CloseDate != nil || got.CompletionDate != nil {
        t.Fatalf("absent dates must stay nil: %+v", got)
    }

    if lbl := taskFromRaw(domain.RawTask{ID: 10}).ProjectLabel; lbl != "" {
        t.Fatalf("missing custom field must yield empty label, got %q", lbl)
    }
}
