package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TGO0427/synercore-import-schedule-sub009/config"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/broker/kafka"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/cache/rediscache"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/mailer/smtpmailer"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/alerts"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/archiver"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/digest"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/notifier"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/prefs"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/transitions"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/storage/pgschedule"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("config parse error, %v", err))
	}

	httpAddr := cfg.Schedule.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.Schedule.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "schedule-api"
	}
	topic := cfg.Kafka.StatusChangedTopicName
	if topic == "" {
		topic = "shipment.status_changed"
	}
	cacheTTL := time.Duration(cfg.Schedule.CurrentShipmentTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	warehouseCapacity := cfg.Schedule.WarehouseCapacity
	if warehouseCapacity <= 0 {
		warehouseCapacity = 1000
	}
	rlPerMin := int64(cfg.Schedule.EmailRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 60
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)
	defer st.Close()

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)
	defer func() { _ = consumer.Close() }()

	mail, err := smtpmailer.New(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.FromAddress)
	if err != nil {
		panic(fmt.Sprintf("smtp client: %v", err))
	}

	transitionsSvc := transitions.New(st, rc, producer, topic, cacheTTL)
	alertsEngine := alerts.New(alerts.Config{
		StuckInspectionThreshold: time.Duration(cfg.Schedule.InspectingStuckDays) * 24 * time.Hour,
		CapacityWarningPercent:   float64(cfg.Schedule.CapacityWarningPercent),
	})
	archiverSvc := archiver.New(st, cfg.Schedule.AutoArchiveThresholdDays)
	prefsSvc := prefs.New(st)
	digestSvc := digest.New(st, prefsSvc, mail, rl).
		WithSettings(rlPerMin, cfg.Schedule.DigestTopShipmentsLimit, cfg.Schedule.DigestRetentionDays)
	notifierSvc := notifier.New(st, prefsSvc, digestSvc, mail, rl).WithRateLimit(rlPerMin)

	swaggerPath := os.Getenv("swaggerPath")
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = runScheduleAPI(ctx, scheduleAPIOpts{
		httpAddr:          httpAddr,
		swaggerPath:       swaggerPath,
		topic:             topic,
		consumerGroup:     consumerGroup,
		warehouseCapacity: warehouseCapacity,
	}, apiServices{
		transitions: transitionsSvc,
		alerts:      alertsEngine,
		archiver:    archiverSvc,
		prefs:       prefsSvc,
		notifier:    notifierSvc,
	}, consumer)
	if err != nil && err != context.Canceled {
		panic(err)
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgschedule.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgschedule.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}
