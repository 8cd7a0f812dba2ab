/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package runrun

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strings"
    "time"

    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/config"
    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/domain"
    "github.com/rs/zerolog"
)

type Client struct {
    baseURL   string
    appKey    string
    userToken string
    pageSize  int
    http      *http.Client
    log       zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    size := cfg.RunrunPageSize
    if size <= 0 { size = 100 }
    return &Client{
        baseURL:   cfg.RunrunBaseURL,
        appKey:    cfg.RunrunAppKey,
        userToken: cfg.RunrunUserToken,
        pageSize:  size,
        http:      &http.Client{ Timeout: cfg.HTTPTimeout },
        log:       log,
    }
}

// FetchAll returns the complete snapshot: every open task followed by every
// closed task. An empty result is a valid empty batch, not an error.
func (c *Client) FetchAll(ctx context.Context) ([]domain.RawTask, error) {
    open, err := c.fetchPaginated(ctx, false)
    if err != nil { return nil, err }
    closed, err := c.fetchPaginated(ctx, true)
    if err != nil { return nil, err }
    return append(open, closed...), nil
}

func (c *Client) fetchPaginated(ctx context.Context, isClosed bool) ([]domain.RawTask, error) {
    var all []domain.RawTask
    page := 1
    for {
        tasks, err := c.tasksPage(ctx, isClosed, page)
        if err != nil { return nil, err }
        if len(tasks) == 0 { return all, nil }
        all = append(all, tasks...)
        page++
    }
}

func (c *Client) tasksPage(ctx context.Context, isClosed bool, page int) ([]domain.RawTask, error) {
    if c.baseURL == "" { return nil, errors.New("runrun: empty baseURL") }
    q := url.Values{}
    q.Set("is_closed", fmt.Sprint(isClosed))
    q.Set("limit", fmt.Sprint(c.pageSize))
    q.Set("page", fmt.Sprint(page))
    u := strings.TrimRight(c.baseURL, "/") + "/tasks?" + q.Encode()

    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
        if err != nil { return nil, err }
        req.Header.Set("App-Key", c.appKey)
        req.Header.Set("User-Token", c.userToken)
        req.Header.Set("Content-Type", "application/json")
        resp, err := c.http.Do(req)
        if err != nil { lastErr = err } else {
            out, done, err := decodePage(resp)
            if done { return out, err }
            lastErr = err
        }
        // backoff
        time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
    }
    return nil, lastErr
}

// decodePage reads one response; done=false marks a retryable failure.
func decodePage(resp *http.Response) ([]domain.RawTask, bool, error) {
    defer resp.Body.Close()
    if resp.StatusCode >= 300 {
        b, _ := io.ReadAll(resp.Body)
        err := fmt.Errorf("runrun api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
        if resp.StatusCode == 429 || resp.StatusCode >= 500 { return nil, false, err }
        return nil, true, err
    }
    var out []domain.RawTask
    if err := json.NewDecoder(resp.Body).Decode(&out); err != nil { return nil, true, err }
    return out, true, nil
}
