package relay

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/barbershop-booking/internal/domain"
	"github.com/barbershop-booking/internal/infrastructure/sns"
	"github.com/barbershop-booking/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockDeviceStore struct{ mock.Mock }

func (m *mockDeviceStore) ListByUser(ctx context.Context, userID string) ([]domain.Device, error) {
	args := m.Called(ctx, userID)
	ds, _ := args.Get(0).([]domain.Device)
	return ds, args.Error(1)
}
func (m *mockDeviceStore) ClearToken(ctx context.Context, deviceID string) error {
	return m.Called(ctx, deviceID).Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, push sns.Push) (string, error) {
	args := m.Called(ctx, push)
	return args.String(0), args.Error(1)
}

type mockRecorder struct{ mock.Mock }

func (m *mockRecorder) Put(ctx context.Context, n *domain.Notification) error {
	return m.Called(ctx, n).Error(0)
}

// --- helpers ---

func withToken(id, token string) domain.Device {
	return domain.Device{DeviceID: id, UserID: "c1", Token: &token, Enable: true}
}

func tokenIs(tok string) interface{} {
	return mock.MatchedBy(func(p sns.Push) bool { return p.Token == tok })
}

func outcomeIs(o notify.Outcome) interface{} {
	return mock.MatchedBy(func(n *domain.Notification) bool { return n.Outcome == string(o) && n.Channel == "relay" })
}

func request() notify.RelayRequest {
	return notify.RelayRequest{
		RecipientID:   "c1",
		Title:         "Almost your turn",
		Body:          "You're #2 in line",
		CorrelationID: "corr-1",
		Extra:         map[string]any{"tag": "queue-a1", "position": 2},
	}
}

func newService(ds *mockDeviceStore, pub *mockPublisher, rec *mockRecorder) Service {
	return NewService(ServiceDeps{DeviceRepo: ds, Publisher: pub, Audit: rec})
}

// --- tests ---

func TestSend_DeliversToEveryToken(t *testing.T) {
	ds, pub, rec := &mockDeviceStore{}, &mockPublisher{}, &mockRecorder{}
	ds.On("ListByUser", mock.Anything, "c1").Return([]domain.Device{withToken("d1", "t1"), withToken("d2", "t2")}, nil)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(p sns.Push) bool {
		return p.Token == "t1" && p.Data["tag"] == "queue-a1" && p.Data["position"] == "2" && p.Data["correlationId"] == "corr-1"
	})).Return("m-1", nil)
	pub.On("Publish", mock.Anything, tokenIs("t2")).Return("m-2", nil)
	rec.On("Put", mock.Anything, outcomeIs(notify.OutcomeDelivered)).Return(nil)

	d, err := newService(ds, pub, rec).Send(context.Background(), request())

	require.NoError(t, err)
	assert.Equal(t, "m-1", d.DeliveryID)
	assert.Equal(t, 2, d.Devices)
	pub.AssertExpectations(t)
	rec.AssertExpectations(t)
}

func TestSend_NoToken_NotOptedIn(t *testing.T) {
	ds, pub, rec := &mockDeviceStore{}, &mockPublisher{}, &mockRecorder{}
	ds.On("ListByUser", mock.Anything, "c1").Return([]domain.Device{{DeviceID: "d1", Enable: true}}, nil)
	rec.On("Put", mock.Anything, outcomeIs(notify.OutcomeNotOptedIn)).Return(nil)

	_, err := newService(ds, pub, rec).Send(context.Background(), request())

	assert.ErrorIs(t, err, domain.ErrNotOptedIn)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	rec.AssertExpectations(t)
}

func TestSend_AllTokensRejected_ClearsAndIsTerminal(t *testing.T) {
	ds, pub, rec := &mockDeviceStore{}, &mockPublisher{}, &mockRecorder{}
	ds.On("ListByUser", mock.Anything, "c1").Return([]domain.Device{withToken("d1", "t1")}, nil)
	pub.On("Publish", mock.Anything, tokenIs("t1")).Return("", fmt.Errorf("sns publish: %w", domain.ErrTokenInvalid))
	ds.On("ClearToken", mock.Anything, "d1").Return(nil)
	rec.On("Put", mock.Anything, outcomeIs(notify.OutcomeTokenInvalid)).Return(nil)

	_, err := newService(ds, pub, rec).Send(context.Background(), request())

	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	assert.NotErrorIs(t, err, domain.ErrDeliveryFailed)
	ds.AssertExpectations(t)
}

func TestSend_OneRejectedOneDelivered(t *testing.T) {
	ds, pub, rec := &mockDeviceStore{}, &mockPublisher{}, &mockRecorder{}
	ds.On("ListByUser", mock.Anything, "c1").Return([]domain.Device{withToken("d1", "t1"), withToken("d2", "t2")}, nil)
	pub.On("Publish", mock.Anything, tokenIs("t1")).Return("", domain.ErrTokenInvalid)
	pub.On("Publish", mock.Anything, tokenIs("t2")).Return("m-2", nil)
	ds.On("ClearToken", mock.Anything, "d1").Return(errors.New("throttled"))
	rec.On("Put", mock.Anything, outcomeIs(notify.OutcomeDelivered)).Return(nil)

	d, err := newService(ds, pub, rec).Send(context.Background(), request())

	require.NoError(t, err)
	assert.Equal(t, "m-2", d.DeliveryID)
	ds.AssertExpectations(t)
}

func TestSend_ProviderFailure_Retryable(t *testing.T) {
	ds, pub, rec := &mockDeviceStore{}, &mockPublisher{}, &mockRecorder{}
	ds.On("ListByUser", mock.Anything, "c1").Return([]domain.Device{withToken("d1", "t1")}, nil)
	pub.On("Publish", mock.Anything, tokenIs("t1")).Return("", errors.New("connection reset"))
	rec.On("Put", mock.Anything, outcomeIs(notify.OutcomeFailed)).Return(nil)

	_, err := newService(ds, pub, rec).Send(context.Background(), request())

	assert.ErrorIs(t, err, domain.ErrDeliveryFailed)
	assert.False(t, notify.Terminal(err))
	ds.AssertNotCalled(t, "ClearToken", mock.Anything, mock.Anything)
}

func TestSend_AuditFailureIgnored(t *testing.T) {
	ds, pub, rec := &mockDeviceStore{}, &mockPublisher{}, &mockRecorder{}
	ds.On("ListByUser", mock.Anything, "c1").Return([]domain.Device{withToken("d1", "t1")}, nil)
	pub.On("Publish", mock.Anything, tokenIs("t1")).Return("m-1", nil)
	rec.On("Put", mock.Anything, mock.Anything).Return(errors.New("throttled"))

	d, err := newService(ds, pub, rec).Send(context.Background(), request())

	require.NoError(t, err)
	assert.Equal(t, "m-1", d.DeliveryID)
}
