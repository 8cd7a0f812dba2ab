/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "context"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/adapters/runrun"
    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/config"
    apihttp "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/http"
    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/jobs"
    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/logger"
    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/repo"
    "github.com/ViniciusBaptistaCertacon/RR-Manager/internal/services"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    // DB
    db := repo.MustOpen(ctx, cfg, log)
    defer db.Close()

    repository := repo.NewRepository(db, log)
    {
        ctx2, cancel2 := context.WithTimeout(ctx, 30*time.Second); defer cancel2()
        if err := repository.EnsureSchema(ctx2); err != nil {
            log.Fatal().Err(err).Msg("schema bootstrap failed")
        }
    }

    // Feed adapter
    feed := runrun.NewClient(cfg, log)

    // Services
    svc := services.New(cfg, log, repository, feed)
    dash := services.NewDashboard(log, repository)

    // HTTP server (Gin)
    router := apihttp.NewRouter(cfg, log, svc, dash)

    // Cron
    cron := jobs.NewCron(cfg, log, svc, repository)
    cron.Start()
    defer cron.Stop()

    // graceful shutdown
    errCh := make(chan error, 1)
    go func() { errCh <- router.Run(cfg.HTTPAddr) }()

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

    select {
    case <-sigCh:
        log.Info().Msg("shutting down...")
    case err := <-errCh:
        if err != nil { log.Error().Err(err).Msg("http server error") }
    }

    time.Sleep(500 * time.Millisecond)
}
