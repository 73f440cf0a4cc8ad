package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/TGO0427/synercore-import-schedule-sub009/config"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/digest"
)

type workerHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	jobs   *workerJobs
	digest *digest.Service
	cfg    *config.Config
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}
	if opts.swaggerPath == "" {
		return fmt.Errorf("worker swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("worker swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.digest == nil {
			_, _ = w.Write([]byte(`{"error":"digest service not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.digest.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// Avoid dumping secrets; show only operational worker settings.
		out := map[string]any{
			"dailyDigestCron":          opts.cfg.Schedule.DailyDigestCron,
			"weeklyDigestCron":         opts.cfg.Schedule.WeeklyDigestCron,
			"autoArchiveCron":          opts.cfg.Schedule.AutoArchiveCron,
			"queueCleanupCron":         opts.cfg.Schedule.QueueCleanupCron,
			"autoArchiveThresholdDays": opts.cfg.Schedule.AutoArchiveThresholdDays,
			"digestRetentionDays":      opts.cfg.Schedule.DigestRetentionDays,
			"digestTopShipmentsLimit":  opts.cfg.Schedule.DigestTopShipmentsLimit,
			"emailRateLimitPerMinute":  opts.cfg.Schedule.EmailRateLimitPerMinute,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	trigger := func(run func(ctx context.Context) any) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if opts.jobs == nil {
				_, _ = w.Write([]byte(`{"error":"jobs not wired"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(run(r.Context()))
		}
	}
	r.Post("/trigger/digest/daily", trigger(func(ctx context.Context) any { return opts.jobs.runDailyDigest(ctx) }))
	r.Post("/trigger/digest/weekly", trigger(func(ctx context.Context) any { return opts.jobs.runWeeklyDigest(ctx) }))
	r.Post("/trigger/archive", trigger(func(ctx context.Context) any { return opts.jobs.runAutoArchive(ctx) }))
	r.Post("/trigger/cleanup", trigger(func(ctx context.Context) any { return opts.jobs.runQueueCleanup(ctx) }))

	// Serve swagger with no-cache + cachebuster.
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})

	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	if err := srv.Serve(lis); err != nil && ctx.Err() != nil {
		return ctx.Err()
	} else if err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}
