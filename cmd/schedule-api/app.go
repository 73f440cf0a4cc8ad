package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	scheduleapi "github.com/TGO0427/synercore-import-schedule-sub009/internal/api/schedule_api"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/broker/messages"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/alerts"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/archiver"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/notifier"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/prefs"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/transitions"
)

type scheduleAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	warehouseCapacity int

	onListen func(httpAddr string)
}

type apiServices struct {
	transitions *transitions.Service
	alerts      *alerts.Engine
	archiver    *archiver.Service
	prefs       *prefs.Service
	notifier    *notifier.Service
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

func runScheduleAPI(ctx context.Context, opts scheduleAPIOpts, svcs apiServices, consumer kafkaConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	api := scheduleapi.New(svcs.transitions, svcs.alerts, svcs.archiver, svcs.prefs, opts.warehouseCapacity)

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

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})
	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	r.Group(api.Routes)

	go func() {
		slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
		_ = consumer.Consume(ctx, func(_key, value []byte) error {
			var m messages.ShipmentStatusChanged
			if err := json.Unmarshal(value, &m); err != nil {
				return err
			}
			return svcs.notifier.HandleStatusChanged(ctx, m)
		})
	}()

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && ctx.Err() != nil {
		return ctx.Err()
	} else if err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}
