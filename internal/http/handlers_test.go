package http

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/config"
    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/domain"
    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/services"
    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"
)

type stubSync struct{ last *domain.SyncRun }

func (s *stubSync) RunSync(context.Context) (domain.SyncSummary, error) {
    return domain.SyncSummary{}, nil
}
func (s *stubSync) LastRun(context.Context) (*domain.SyncRun, error) { return s.last, nil }

type stubDash struct {
    counts []domain.StatusCount
}

func (d *stubDash) TaskCounts(context.Context, domain.Filter) ([]domain.StatusCount, error) {
    return d.counts, nil
}
func (d *stubDash) ProjectDistribution(context.Context, domain.Filter) ([]domain.ProjectCount, error) {
    return nil, nil
}
func (d *stubDash) AverageDeviations(context.Context, domain.Filter) (domain.DeviationSummary, error) {
    return domain.DeviationSummary{}, nil
}
func (d *stubDash) RealLeadTime(context.Context, time.Time, time.Time) ([]domain.MonthlyLeadTime, error) {
    return nil, nil
}
func (d *stubDash) EstimatedLeadTime(context.Context, time.Time, time.Time) ([]domain.MonthlyLeadTime, error) {
    return nil, nil
}
func (d *stubDash) MonthlyLeadTime(_ context.Context, start, end time.Time, _ string) ([]domain.MonthlyAverage, error) {
    if start.IsZero() || end.IsZero() { return nil, services.ErrWindowRequired }
    return nil, nil
}
func (d *stubDash) TasksByProfessional(_ context.Context, start, end time.Time, _ string) ([]domain.ProfessionalWorkload, error) {
    if start.IsZero() || end.IsZero() { return nil, services.ErrWindowRequired }
    return nil, nil
}

func testRouter(dash *stubDash) *gin.Engine {
    gin.SetMode(gin.TestMode)
    return NewRouter(config.Config{}, zerolog.Nop(), &stubSync{}, dash)
}

func doGet(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
    t.Helper()
    w := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, path, nil)
    r.ServeHTTP(w, req)
    return w
}

func TestTaskCounts_ParsesWindow(t *testing.T) {
    dash := &stubDash{counts: []domain.StatusCount{{Status: "BACKLOG", Count: 3}}}
    w := doGet(t, testRouter(dash), "/dashboard/status?start=2024-01-01&end=2024-01-31")
    if w.Code != http.StatusOK { t.Fatalf("status %d: %s", w.Code, w.Body.String()) }
    var got []domain.StatusCount
    if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil { t.Fatalf("decode: %v", err) }
    if len(got) != 1 || got[0].Status != "BACKLOG" { t.Fatalf("got %+v", got) }
}

func TestTaskCounts_InvalidTimeParam(t *testing.T) {
    w := doGet(t, testRouter(&stubDash{}), "/dashboard/status?start=notatime")
    if w.Code != http.StatusBadRequest { t.Fatalf("status %d: %s", w.Code, w.Body.String()) }
}

func TestMonthlyLeadTime_MissingWindowIsBadRequest(t *testing.T) {
    w := doGet(t, testRouter(&stubDash{}), "/dashboard/lead-time/monthly")
    if w.Code != http.StatusBadRequest { t.Fatalf("status %d: %s", w.Code, w.Body.String()) }
}

func TestTasksByProfessional_MissingWindowIsBadRequest(t *testing.T) {
    w := doGet(t, testRouter(&stubDash{}), "/dashboard/professionals?professional_id=A")
    if w.Code != http.StatusBadRequest { t.Fatalf("status %d: %s", w.Code, w.Body.String()) }
}

func TestHealthz(t *testing.T) {
    w := doGet(t, testRouter(&stubDash{}), "/healthz")
    if w.Code != http.StatusOK { t.Fatalf("status %d", w.Code) }
}
