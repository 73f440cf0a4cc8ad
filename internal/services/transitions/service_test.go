package transitions

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TGO0427/synercore-import-schedule-sub009/internal/apperr"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/broker/messages"
	"github.com/TGO0427/synercore-import-schedule-sub009/internal/models"
)

type fakeRepo struct {
	createIn  []models.ShipmentCreateInput
	createOut []*models.Shipment
	createErr error

	getOut *models.Shipment
	getErr error

	findOut []*models.Shipment
	findErr error

	updateID     uint64
	updateStatus string
	updateMD     models.TransitionMetadata
	updateOut    *models.Shipment
	updateErr    error
}

func (f *fakeRepo) CreateOrGetShipments(ctx context.Context, items []models.ShipmentCreateInput) ([]*models.Shipment, error) {
	f.createIn = items
	return f.createOut, f.createErr
}
func (f *fakeRepo) GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error) {
	return f.getOut, f.getErr
}
func (f *fakeRepo) GetShipmentsByIDs(ctx context.Context, ids []uint64) ([]*models.Shipment, error) {
	return nil, nil
}
func (f *fakeRepo) FindShipments(ctx context.Context, filter models.ShipmentFilter) ([]*models.Shipment, error) {
	return f.findOut, f.findErr
}
func (f *fakeRepo) UpdateShipmentStatus(ctx context.Context, id uint64, status string, md models.TransitionMetadata) (*models.Shipment, error) {
	f.updateID = id
	f.updateStatus = status
	f.updateMD = md
	return f.updateOut, f.updateErr
}

type fakeCache struct {
	m map[string][]byte
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, ok := c.m[key]
	return b, ok, nil
}
func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.m[key] = value
	return nil
}

type fakeProducer struct {
	topic string
	key   []byte
	value []byte
	err   error
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.topic = topic
	p.key = key
	p.value = value
	return p.err
}

func TestService_CreateShipments_validate(t *testing.T) {
	s := New(&fakeRepo{}, nil, nil, "", 0)

	_, err := s.CreateShipments(context.Background(), nil)
	require.Error(t, err)

	_, err = s.CreateShipments(context.Background(), []models.ShipmentCreateInput{{OrderRef: "", Supplier: "S"}})
	require.Error(t, err)

	_, err = s.CreateShipments(context.Background(), []models.ShipmentCreateInput{{OrderRef: "PO-1", Supplier: ""}})
	require.Error(t, err)

	_, err = s.CreateShipments(context.Background(), []models.ShipmentCreateInput{{OrderRef: "PO-1", Supplier: "S", Status: "bogus"}})
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestService_CreateShipments_dedup(t *testing.T) {
	r := &fakeRepo{createOut: []*models.Shipment{{ID: 1}}}
	s := New(r, nil, nil, "", 0)

	_, err := s.CreateShipments(context.Background(), []models.ShipmentCreateInput{
		{OrderRef: "PO-1", Supplier: "Acme"},
		{OrderRef: "PO-1", Supplier: "Acme"},
		{OrderRef: "PO-1", Supplier: "Globex"},
	})
	require.NoError(t, err)
	require.Len(t, r.createIn, 2)
}

func TestService_GetShipmentByID_cacheHit(t *testing.T) {
	r := &fakeRepo{getErr: apperr.NotFoundf("shipment 7")}
	c := &fakeCache{m: map[string][]byte{}}
	s := New(r, c, nil, "", 10*time.Minute)

	want := &models.Shipment{ID: 7, OrderRef: "PO-7", Status: models.StatusStored}
	b, _ := json.Marshal(want)
	c.m["shipment:7:current"] = b

	out, err := s.GetShipmentByID(context.Background(), 7)
	require.NoError(t, err) // repo was never consulted
	require.Equal(t, uint64(7), out.ID)
	require.Equal(t, models.StatusStored, out.Status)
}

func TestService_Transition_invalidStatus(t *testing.T) {
	s := New(&fakeRepo{}, nil, nil, "", 0)
	_, err := s.Transition(context.Background(), 1, "warp_drive", models.TransitionMetadata{})
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestService_Transition_notFound(t *testing.T) {
	r := &fakeRepo{getErr: apperr.NotFoundf("shipment 99")}
	s := New(r, nil, nil, "", 0)
	_, err := s.Transition(context.Background(), 99, models.StatusUnloading, models.TransitionMetadata{})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_Transition_publishesChange(t *testing.T) {
	now := time.Now().UTC()
	r := &fakeRepo{
		getOut:    &models.Shipment{ID: 3, OrderRef: "PO-3", Supplier: "Acme", Status: models.StatusUnloading},
		updateOut: &models.Shipment{ID: 3, OrderRef: "PO-3", Supplier: "Acme", Status: models.StatusInspecting, UpdatedAt: now},
	}
	p := &fakeProducer{}
	s := New(r, nil, p, "shipment.status_changed", 0)

	out, err := s.Transition(context.Background(), 3, models.StatusInspecting, models.TransitionMetadata{})
	require.NoError(t, err)
	require.Equal(t, models.StatusInspecting, out.Status)
	require.Equal(t, "shipment.status_changed", p.topic)

	var msg messages.ShipmentStatusChanged
	require.NoError(t, json.Unmarshal(p.value, &msg))
	require.Equal(t, uint64(3), msg.ShipmentID)
	require.Equal(t, models.StatusUnloading, msg.OldStatus)
	require.Equal(t, models.StatusInspecting, msg.NewStatus)
}

func TestService_Transition_publishFailureIsNotFatal(t *testing.T) {
	r := &fakeRepo{
		getOut:    &models.Shipment{ID: 3, Status: models.StatusUnloading},
		updateOut: &models.Shipment{ID: 3, Status: models.StatusInspecting},
	}
	p := &fakeProducer{err: errors.New("broker down")}
	s := New(r, nil, p, "shipment.status_changed", 0)

	_, err := s.Transition(context.Background(), 3, models.StatusInspecting, models.TransitionMetadata{})
	require.NoError(t, err)
}

func TestService_Transition_skipsStagesFreely(t *testing.T) {
	// planned straight to stored: the engine validates the enum, not sequencing.
	r := &fakeRepo{
		getOut:    &models.Shipment{ID: 4, Status: models.StatusPlannedSeafreight},
		updateOut: &models.Shipment{ID: 4, Status: models.StatusStored},
	}
	s := New(r, nil, nil, "", 0)

	out, err := s.Transition(context.Background(), 4, models.StatusStored, models.TransitionMetadata{})
	require.NoError(t, err)
	require.Equal(t, models.StatusStored, out.Status)
	require.Equal(t, models.StatusStored, r.updateStatus)
}

func TestService_CompleteInspection(t *testing.T) {
	reason := "damaged packaging"
	r := &fakeRepo{
		getOut:    &models.Shipment{ID: 5, Status: models.StatusInspecting},
		updateOut: &models.Shipment{ID: 5, Status: models.StatusInspectionFailed, RejectionReason: &reason},
	}
	s := New(r, nil, nil, "", 0)

	out, err := s.CompleteInspection(context.Background(), 5, false, models.TransitionMetadata{RejectionReason: &reason})
	require.NoError(t, err)
	require.Equal(t, models.StatusInspectionFailed, out.Status)
	require.Equal(t, models.StatusInspectionFailed, r.updateStatus)
	require.Equal(t, &reason, r.updateMD.RejectionReason)

	r.updateOut = &models.Shipment{ID: 5, Status: models.StatusInspectionPassed}
	out, err = s.CompleteInspection(context.Background(), 5, true, models.TransitionMetadata{})
	require.NoError(t, err)
	require.Equal(t, models.StatusInspectionPassed, out.Status)
}

func TestService_Transition_cachesCurrent(t *testing.T) {
	r := &fakeRepo{
		getOut:    &models.Shipment{ID: 8, Status: models.StatusReceiving},
		updateOut: &models.Shipment{ID: 8, Status: models.StatusStored},
	}
	c := &fakeCache{m: map[string][]byte{}}
	s := New(r, c, nil, "", time.Minute)

	_, err := s.Transition(context.Background(), 8, models.StatusStored, models.TransitionMetadata{})
	require.NoError(t, err)

	b, ok := c.m["shipment:8:current"]
	require.True(t, ok)
	var cached models.Shipment
	require.NoError(t, json.Unmarshal(b, &cached))
	require.Equal(t, models.StatusStored, cached.Status)
}
