package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TGO0427/synercore-import-schedule-sub009/config"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/apperr"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/models"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/services/digest"
)

type fakeStorage struct{}

func (fakeStorage) AppendDigestEntry(ctx context.Context, e *models.DigestQueueEntry) error {
	return nil
}
func (fakeStorage) QueryUnprocessed(ctx context.Context, userID uint64, since time.Time) ([]*models.DigestQueueEntry, error) {
	return nil, nil
}
func (fakeStorage) MarkProcessed(ctx context.Context, ids []uint64) error { return nil }
func (fakeStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
func (fakeStorage) ListUsersByFrequency(ctx context.Context, frequency string) ([]*models.User, error) {
	return nil, nil
}
func (fakeStorage) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	return nil, apperr.NotFoundf("user %d", id)
}
func (fakeStorage) GetShipmentsByIDs(ctx context.Context, ids []uint64) ([]*models.Shipment, error) {
	return nil, nil
}
func (fakeStorage) FindShipments(ctx context.Context, filter models.ShipmentFilter) ([]*models.Shipment, error) {
	return nil, nil
}
func (fakeStorage) ArchiveShipments(ctx context.Context, fileName, archiveType string, reason *string, ids []uint64) (*models.ArchiveRecord, error) {
	return &models.ArchiveRecord{FileName: fileName, TotalShipments: len(ids)}, nil
}
func (fakeStorage) ListArchiveRecords(ctx context.Context) ([]*models.ArchiveRecord, error) {
	return nil, nil
}
func (fakeStorage) RenameArchiveRecord(ctx context.Context, fileName, newFileName string) (*models.ArchiveRecord, error) {
	return nil, apperr.NotFoundf("archive %s", fileName)
}
func (fakeStorage) GetPreference(ctx context.Context, userID uint64) (*models.NotificationPreference, error) {
	return nil, nil
}
func (fakeStorage) UpsertPreference(ctx context.Context, p *models.NotificationPreference) (*models.NotificationPreference, error) {
	return p, nil
}

type noopMailer struct{}

func (noopMailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	return nil
}

func writeSwagger(t *testing.T) string {
	t.Helper()
	sw := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))
	return sw
}

func testFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (workerStorage, func(), error) {
			return fakeStorage{}, nil, nil
		},
		newRateLimiter: func(cfg *config.Config) digest.RateLimiter { return nil },
		newMailer:      func(cfg *config.Config) (digest.Mailer, error) { return noopMailer{}, nil },
	}
}

func TestRunScheduleWorker_ContextCanceled(t *testing.T) {
	t.Setenv("swaggerPath", writeSwagger(t))

	cfg := &config.Config{
		Schedule: config.ScheduleConfig{WorkerHTTPAddr: "127.0.0.1:0"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunScheduleWorker(ctx, cfg, testFactories())
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunScheduleWorker_BadCronSpec(t *testing.T) {
	t.Setenv("swaggerPath", writeSwagger(t))

	cfg := &config.Config{
		Schedule: config.ScheduleConfig{DailyDigestCron: "not a cron"},
	}

	err := RunScheduleWorker(context.Background(), cfg, testFactories())
	require.Error(t, err)
	require.Contains(t, err.Error(), "daily digest cron")
}

func TestRunWorkerHTTPServer_Endpoints(t *testing.T) {
	sw := writeSwagger(t)

	st := fakeStorage{}
	digestSvc := digest.New(st, nil, noopMailer{}, nil)
	jobs := &workerJobs{digest: digestSvc, retentionDays: 90}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	ready := make(chan string, 1)
	go func() {
		errCh <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    "127.0.0.1:0",
			swaggerPath: sw,
			jobs:        jobs,
			digest:      digestSvc,
			cfg:         &config.Config{},
			onListen:    func(a string) { ready <- a },
		})
	}()

	httpAddr := <-ready

	resp, err := http.Get("http://" + httpAddr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	resp, err = http.Get("http://" + httpAddr + "/stats")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	resp, err = http.Post("http://"+httpAddr+"/trigger/cleanup", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	resp, err = http.Get("http://" + httpAddr + "/swagger.json")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	cancel()
	select {
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting server to stop")
	case <-errCh:
	}
}

func TestRunWorkerHTTPServer_RequiresSwagger(t *testing.T) {
	err := runWorkerHTTPServer(context.Background(), workerHTTPOpts{httpAddr: "127.0.0.1:0"})
	require.Error(t, err)
}
