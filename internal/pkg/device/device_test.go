package device

import (
	"context"
	"errors"
	"testing"

	"github.com/barbershop-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) GetByUUID(ctx context.Context, uuid string) (*domain.Device, error) {
	args := m.Called(ctx, uuid)
	if d, _ := args.Get(0).(*domain.Device); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) Put(ctx context.Context, d *domain.Device) error {
	return m.Called(ctx, d).Error(0)
}

func strPtr(s string) *string { return &s }

func TestResolve_ExistingDevice(t *testing.T) {
	repo := &mockStore{}
	existing := &domain.Device{DeviceID: "d1", UUID: "u-1", UserID: "c1", Enable: true}
	repo.On("GetByUUID", mock.Anything, "u-1").Return(existing, nil)

	d, err := Resolve(context.Background(), repo, strPtr("u-1"), "c1")

	require.NoError(t, err)
	assert.Same(t, existing, d)
	repo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestResolve_HandsOverToNewUser(t *testing.T) {
	repo := &mockStore{}
	tok := "fcm-token"
	repo.On("GetByUUID", mock.Anything, "u-1").Return(&domain.Device{DeviceID: "d1", UUID: "u-1", UserID: "c0", Token: &tok, Enable: true}, nil)
	repo.On("Put", mock.Anything, mock.MatchedBy(func(d *domain.Device) bool {
		return d.DeviceID == "d1" && d.UserID == "c1" && d.Token == nil
	})).Return(nil)

	d, err := Resolve(context.Background(), repo, strPtr("u-1"), "c1")

	require.NoError(t, err)
	assert.Equal(t, "c1", d.UserID)
	repo.AssertExpectations(t)
}

func TestResolve_CreatesWhenUnknown(t *testing.T) {
	repo := &mockStore{}
	repo.On("GetByUUID", mock.Anything, "u-2").Return(nil, domain.ErrNotFound)
	repo.On("Put", mock.Anything, mock.MatchedBy(func(d *domain.Device) bool {
		return d.UUID == "u-2" && d.UserID == "c1" && d.Enable && d.DeviceID != ""
	})).Return(nil)

	d, err := Resolve(context.Background(), repo, strPtr("u-2"), "c1")

	require.NoError(t, err)
	assert.Equal(t, "u-2", d.UUID)
	repo.AssertExpectations(t)
}

func TestResolve_NoUUIDGeneratesOne(t *testing.T) {
	repo := &mockStore{}
	repo.On("Put", mock.Anything, mock.Anything).Return(nil)

	d, err := Resolve(context.Background(), repo, nil, "c1")

	require.NoError(t, err)
	assert.NotEmpty(t, d.UUID)
	repo.AssertNotCalled(t, "GetByUUID", mock.Anything, mock.Anything)
}

func TestResolve_LookupError(t *testing.T) {
	repo := &mockStore{}
	repo.On("GetByUUID", mock.Anything, "u-1").Return(nil, errors.New("throttled"))

	_, err := Resolve(context.Background(), repo, strPtr("u-1"), "c1")

	assert.EqualError(t, err, "throttled")
}
