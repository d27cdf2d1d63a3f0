package device

import (
	"context"
	"testing"

	"github.com/barbershop-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDeviceStore struct{ mock.Mock }

func (m *mockDeviceStore) GetByUUID(ctx context.Context, uuid string) (*domain.Device, error) {
	args := m.Called(ctx, uuid)
	if d, _ := args.Get(0).(*domain.Device); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockDeviceStore) Put(ctx context.Context, d *domain.Device) error {
	return m.Called(ctx, d).Error(0)
}
func (m *mockDeviceStore) Get(ctx context.Context, deviceID string) (*domain.Device, error) {
	args := m.Called(ctx, deviceID)
	if d, _ := args.Get(0).(*domain.Device); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockDeviceStore) ListByUser(ctx context.Context, userID string) ([]domain.Device, error) {
	args := m.Called(ctx, userID)
	ds, _ := args.Get(0).([]domain.Device)
	return ds, args.Error(1)
}
func (m *mockDeviceStore) Update(ctx context.Context, deviceID string, updates map[string]interface{}) error {
	return m.Called(ctx, deviceID, updates).Error(0)
}
func (m *mockDeviceStore) HasToken(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}
func (m *mockDeviceStore) ClearToken(ctx context.Context, deviceID string) error {
	return m.Called(ctx, deviceID).Error(0)
}
func (m *mockDeviceStore) SoftDelete(ctx context.Context, deviceID string) error {
	return m.Called(ctx, deviceID).Error(0)
}

func TestRegisterToken_StoresTokenOnResolvedDevice(t *testing.T) {
	repo := &mockDeviceStore{}
	uuid := "browser-1"
	repo.On("GetByUUID", mock.Anything, uuid).Return(&domain.Device{DeviceID: "d1", UUID: uuid, UserID: "c1", Enable: true}, nil)
	repo.On("Update", mock.Anything, "d1", map[string]interface{}{"token": "fcm-abc"}).Return(nil)

	d, err := NewService(repo).RegisterToken(context.Background(), "c1", domain.RegisterTokenRequest{DeviceUUID: &uuid, Token: " fcm-abc "})

	require.NoError(t, err)
	require.NotNil(t, d.Token)
	assert.Equal(t, "fcm-abc", *d.Token)
	assert.True(t, d.HasToken())
	repo.AssertExpectations(t)
}

func TestRegisterToken_BlankToken(t *testing.T) {
	_, err := NewService(&mockDeviceStore{}).RegisterToken(context.Background(), "c1", domain.RegisterTokenRequest{Token: "  "})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestDelete_OwnerOnly(t *testing.T) {
	repo := &mockDeviceStore{}
	repo.On("Get", mock.Anything, "d1").Return(&domain.Device{DeviceID: "d1", UserID: "c2"}, nil)

	err := NewService(repo).Delete(context.Background(), "d1", "c1")

	assert.ErrorIs(t, err, domain.ErrForbidden)
	repo.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
}

func TestDelete_Success(t *testing.T) {
	repo := &mockDeviceStore{}
	repo.On("Get", mock.Anything, "d1").Return(&domain.Device{DeviceID: "d1", UserID: "c1"}, nil)
	repo.On("SoftDelete", mock.Anything, "d1").Return(nil)

	require.NoError(t, NewService(repo).Delete(context.Background(), "d1", "c1"))
	repo.AssertExpectations(t)
}
