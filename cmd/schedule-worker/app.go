package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/TGO0427/synercore-import-schedule-sub009/config"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/cache/rediscache"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/mailer/smtpmailer"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/archiver"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/digest"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/prefs"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/storage/pgschedule"
)

// workerStorage is the slice of the pg storage the scheduled jobs touch.
type workerStorage interface {
	digest.Repository
	archiver.Repository
	prefs.Repository
}

type workerFactories struct {
	newStorage     func(cfg *config.Config) (st workerStorage, closeFn func(), err error)
	newRateLimiter func(cfg *config.Config) digest.RateLimiter
	newMailer      func(cfg *config.Config) (digest.Mailer, error)
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (workerStorage, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgschedule.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newRateLimiter: func(cfg *config.Config) digest.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newMailer: func(cfg *config.Config) (digest.Mailer, error) {
			return smtpmailer.New(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.FromAddress)
		},
	}
}

func RunScheduleWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	dailySpec := cfg.Schedule.DailyDigestCron
	if dailySpec == "" {
		dailySpec = "0 8 * * *"
	}
	weeklySpec := cfg.Schedule.WeeklyDigestCron
	if weeklySpec == "" {
		weeklySpec = "0 8 * * 1"
	}
	archiveSpec := cfg.Schedule.AutoArchiveCron
	if archiveSpec == "" {
		archiveSpec = "0 2 * * *"
	}
	cleanupSpec := cfg.Schedule.QueueCleanupCron
	if cleanupSpec == "" {
		cleanupSpec = "30 2 * * *"
	}
	retentionDays := cfg.Schedule.DigestRetentionDays
	if retentionDays <= 0 {
		retentionDays = digest.DefaultRetentionDays
	}
	rlPerMin := int64(cfg.Schedule.EmailRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 60
	}

	st, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	mail, err := f.newMailer(cfg)
	if err != nil {
		return err
	}
	rl := f.newRateLimiter(cfg)

	prefsSvc := prefs.New(st)
	digestSvc := digest.New(st, prefsSvc, mail, rl).
		WithSettings(rlPerMin, cfg.Schedule.DigestTopShipmentsLimit, retentionDays)
	archiverSvc := archiver.New(st, cfg.Schedule.AutoArchiveThresholdDays)

	jobs := &workerJobs{digest: digestSvc, archiver: archiverSvc, retentionDays: retentionDays}

	c := cron.New()
	if _, err := c.AddFunc(dailySpec, func() { jobs.runDailyDigest(ctx) }); err != nil {
		return fmt.Errorf("daily digest cron %q: %w", dailySpec, err)
	}
	if _, err := c.AddFunc(weeklySpec, func() { jobs.runWeeklyDigest(ctx) }); err != nil {
		return fmt.Errorf("weekly digest cron %q: %w", weeklySpec, err)
	}
	if _, err := c.AddFunc(archiveSpec, func() { jobs.runAutoArchive(ctx) }); err != nil {
		return fmt.Errorf("auto archive cron %q: %w", archiveSpec, err)
	}
	if _, err := c.AddFunc(cleanupSpec, func() { jobs.runQueueCleanup(ctx) }); err != nil {
		return fmt.Errorf("queue cleanup cron %q: %w", cleanupSpec, err)
	}

	c.Start()
	defer func() {
		stopCtx := c.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
		}
	}()

	slog.Info("scheduler started",
		"dailyDigest", dailySpec,
		"weeklyDigest", weeklySpec,
		"autoArchive", archiveSpec,
		"queueCleanup", cleanupSpec,
	)

	return runWorkerHTTPServer(ctx, workerHTTPOpts{
		httpAddr:    cfg.Schedule.WorkerHTTPAddr,
		swaggerPath: os.Getenv("swaggerPath"),
		jobs:        jobs,
		digest:      digestSvc,
		cfg:         cfg,
	})
}

type workerJobs struct {
	digest        *digest.Service
	archiver      *archiver.Service
	retentionDays int
}

func (j *workerJobs) runDailyDigest(ctx context.Context) digest.DispatchSummary {
	sum, err := j.digest.DispatchAllDue(ctx, digest.PeriodDaily)
	if err != nil {
		slog.Error("daily digest run failed", "error", err.Error())
		return sum
	}
	slog.Info("daily digest run finished", "users", sum.Users, "sent", sum.Sent, "failed", sum.Failed)
	return sum
}

func (j *workerJobs) runWeeklyDigest(ctx context.Context) digest.DispatchSummary {
	sum, err := j.digest.DispatchAllDue(ctx, digest.PeriodWeekly)
	if err != nil {
		slog.Error("weekly digest run failed", "error", err.Error())
		return sum
	}
	slog.Info("weekly digest run finished", "users", sum.Users, "sent", sum.Sent, "failed", sum.Failed)
	return sum
}

func (j *workerJobs) runAutoArchive(ctx context.Context) archiver.AutoArchiveSummary {
	sum, err := j.archiver.RunAutoArchive(ctx)
	if err != nil {
		slog.Error("auto archive run failed", "error", err.Error())
		return sum
	}
	slog.Info("auto archive run finished", "scanned", sum.Scanned, "processed", sum.Processed, "failed", sum.Failed, "archiveKey", sum.ArchiveKey)
	return sum
}

func (j *workerJobs) runQueueCleanup(ctx context.Context) digest.CleanupSummary {
	sum, err := j.digest.CleanupOlderThan(ctx, j.retentionDays)
	if err != nil {
		slog.Error("queue cleanup run failed", "error", err.Error())
		return sum
	}
	slog.Info("queue cleanup run finished", "deleted", sum.Deleted)
	return sum
}
