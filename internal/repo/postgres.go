package repo

import (
    "context"
    "errors"
    "time"

    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/config"
    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/domain"
    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/rs/zerolog"
)

type DB struct {
    Pool *pgxpool.Pool
    log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
    pool, err := pgxpool.New(ctx, cfg.DBDSN)
    if err != nil { log.Fatal().Err(err).Msg("db connect failed") }
    ctx2, cancel := context.WithTimeout(ctx, 10*time.Second); defer cancel()
    if err := pool.Ping(ctx2); err != nil { log.Fatal().Err(err).Msg("db ping failed") }
    return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
    db  *DB
    log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

var schema = []string{
    `CREATE TABLE IF NOT EXISTS tasks(
        id BIGSERIAL PRIMARY KEY,
        ext_id BIGINT NOT NULL UNIQUE,
        title TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL DEFAULT '',
        is_closed BOOLEAN NOT NULL DEFAULT FALSE,
        type_name TEXT NOT NULL DEFAULT '',
        user_name TEXT NOT NULL DEFAULT '',
        responsible_id TEXT NOT NULL DEFAULT '',
        responsible_name TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ,
        start_date TIMESTAMPTZ,
        close_date TIMESTAMPTZ,
        gantt_bar_start_date TIMESTAMPTZ,
        gantt_bar_end_date TIMESTAMPTZ,
        desired_start_date TIMESTAMPTZ,
        desired_date_with_time TIMESTAMPTZ,
        completion_date TIMESTAMPTZ,
        project_label TEXT NOT NULL DEFAULT '',
        assignments JSONB)`,
    `CREATE INDEX IF NOT EXISTS tasks_created_at_idx ON tasks(created_at)`,
    `CREATE INDEX IF NOT EXISTS tasks_start_date_idx ON tasks(start_date)`,
    `CREATE TABLE IF NOT EXISTS reopened_tasks(
        id BIGSERIAL PRIMARY KEY,
        task_ext_id BIGINT NOT NULL,
        reopened_at TIMESTAMPTZ NOT NULL)`,
    `CREATE TABLE IF NOT EXISTS sync_runs(
        id BIGSERIAL PRIMARY KEY,
        started_at TIMESTAMPTZ NOT NULL,
        finished_at TIMESTAMPTZ,
        fetched INT,
        inserted INT,
        updated INT,
        reopened INT,
        dropped INT,
        success BOOLEAN,
        error TEXT)`,
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
    for _, q := range schema {
        if _, err := r.db.Pool.Exec(ctx, q); err != nil { return err }
    }
    return nil
}

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
    return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
    if !ok && err == nil { return errors.New("advisory unlock returned false") }
    return err
}

const taskColumns = `ext_id, title, status, is_closed, type_name, user_name,
    responsible_id, responsible_name, created_at, start_date, close_date,
    gantt_bar_start_date, gantt_bar_end_date, desired_start_date,
    desired_date_with_time, completion_date, project_label, COALESCE(assignments, '[]'::jsonb)`

func scanTask(row pgx.Rows) (domain.Task, error) {
    var t domain.Task
    err := row.Scan(&t.ExtID, &t.Title, &t.Status, &t.IsClosed, &t.TypeName, &t.UserName,
        &t.ResponsibleID, &t.ResponsibleName, &t.CreatedAt, &t.StartDate, &t.CloseDate,
        &t.GanttBarStartDate, &t.GanttBarEndDate, &t.DesiredStartDate,
        &t.DesiredDateWithTime, &t.CompletionDate, &t.ProjectLabel, &t.Assignments)
    return t, err
}

// TasksByExtIDs reads the current snapshot rows for the given external ids in
// one round trip.
func (r *Repository) TasksByExtIDs(ctx context.Context, ids []int64) (map[int64]domain.Task, error) {
    out := map[int64]domain.Task{}
    if len(ids) == 0 { return out, nil }
    rows, err := r.db.Pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE ext_id = ANY($1)`, ids)
    if err != nil { return nil, err }
    defer rows.Close()
    for rows.Next() {
        t, err := scanTask(rows)
        if err != nil { return nil, err }
        out[t.ExtID] = t
    }
    return out, rows.Err()
}

// ApplyTaskOps applies all inserts and updates as a single batched round
// trip. Updates touch only the mutable whitelist; everything else on an
// existing row is left as first observed.
func (r *Repository) ApplyTaskOps(ctx context.Context, inserts, updates []domain.Task) error {
    if len(inserts) == 0 && len(updates) == 0 { return nil }
    batch := &pgx.Batch{}
    const insQ = `INSERT INTO tasks(ext_id, title, status, is_closed, type_name, user_name,
            responsible_id, responsible_name, created_at, start_date, close_date,
            gantt_bar_start_date, gantt_bar_end_date, desired_start_date,
            desired_date_with_time, completion_date, project_label, assignments)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
        ON CONFLICT (ext_id) DO NOTHING`
    for _, t := range inserts {
        batch.Queue(insQ, t.ExtID, t.Title, t.Status, t.IsClosed, t.TypeName, t.UserName,
            t.ResponsibleID, t.ResponsibleName, t.CreatedAt, t.StartDate, t.CloseDate,
            t.GanttBarStartDate, t.GanttBarEndDate, t.DesiredStartDate,
            t.DesiredDateWithTime, t.CompletionDate, t.ProjectLabel, t.Assignments)
    }
    const updQ = `UPDATE tasks SET
            title=$2, status=$3, is_closed=$4, completion_date=$5,
            project_label=$6, assignments=$7
        WHERE ext_id=$1`
    for _, t := range updates {
        batch.Queue(updQ, t.ExtID, t.Title, t.Status, t.IsClosed, t.CompletionDate,
            t.ProjectLabel, t.Assignments)
    }
    br := r.db.Pool.SendBatch(ctx, batch)
    defer br.Close()
    for i := 0; i < len(inserts)+len(updates); i++ {
        if _, err := br.Exec(); err != nil { return err }
    }
    return nil
}

func (r *Repository) InsertReopenEvents(ctx context.Context, evs []domain.ReopenEvent) error {
    if len(evs) == 0 { return nil }
    batch := &pgx.Batch{}
    const q = `INSERT INTO reopened_tasks(task_ext_id, reopened_at) VALUES($1,$2)`
    for _, e := range evs { batch.Queue(q, e.TaskID, e.ReopenedAt) }
    br := r.db.Pool.SendBatch(ctx, batch)
    defer br.Close()
    for range evs { if _, err := br.Exec(); err != nil { return err } }
    return nil
}

// Sync runs
func (r *Repository) StartSyncRun(ctx context.Context) (int64, error) {
    const q = `INSERT INTO sync_runs(started_at, success) VALUES(now(), false) RETURNING id`
    var id int64
    if err := r.db.Pool.QueryRow(ctx, q).Scan(&id); err != nil { return 0, err }
    return id, nil
}

func (r *Repository) FinishSyncRun(ctx context.Context, id int64, sum domain.SyncSummary, success bool, errStr string) error {
    const q = `UPDATE sync_runs SET finished_at=now(), fetched=$2, inserted=$3,
        updated=$4, reopened=$5, dropped=$6, success=$7, error=$8 WHERE id=$1`
    _, err := r.db.Pool.Exec(ctx, q, id, sum.Fetched, sum.Inserted, sum.Updated, sum.Reopened, sum.Dropped, success, errStr)
    return err
}

func (r *Repository) LastSyncRun(ctx context.Context) (*domain.SyncRun, error) {
    const q = `SELECT started_at, finished_at,
        coalesce(fetched,0), coalesce(inserted,0), coalesce(updated,0),
        coalesce(reopened,0), coalesce(dropped,0),
        coalesce(success,false), coalesce(error,'')
        FROM sync_runs ORDER BY id DESC LIMIT 1`
    row := r.db.Pool.QueryRow(ctx, q)
    lr := &domain.SyncRun{}
    if err := row.Scan(&lr.StartedAt, &lr.FinishedAt, &lr.Fetched, &lr.Inserted, &lr.Updated,
        &lr.Reopened, &lr.Dropped, &lr.Success, &lr.Error); err != nil {
        if errors.Is(err, pgx.ErrNoRows) { return nil, nil }
        return nil, err
    }
    return lr, nil
}
