package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/barbershop-booking/internal/domain"
	pkgdevice "github.com/barbershop-booking/internal/pkg/device"
)

const fieldToken = "token"

type Service interface {
	// RegisterToken opts the device into push delivery.
	RegisterToken(ctx context.Context, userID string, req domain.RegisterTokenRequest) (*domain.Device, error)
	List(ctx context.Context, userID string) ([]domain.Device, error)
	Delete(ctx context.Context, deviceID, userID string) error
	HasToken(ctx context.Context, userID string) (bool, error)
	ClearToken(ctx context.Context, deviceID string) error
}

type deviceStore interface {
	GetByUUID(ctx context.Context, uuid string) (*domain.Device, error)
	Put(ctx context.Context, d *domain.Device) error
	Get(ctx context.Context, deviceID string) (*domain.Device, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Device, error)
	Update(ctx context.Context, deviceID string, updates map[string]interface{}) error
	HasToken(ctx context.Context, userID string) (bool, error)
	ClearToken(ctx context.Context, deviceID string) error
	SoftDelete(ctx context.Context, deviceID string) error
}

type service struct {
	repo deviceStore
}

func NewService(repo deviceStore) Service {
	return &service{repo: repo}
}

func (s *service) RegisterToken(ctx context.Context, userID string, req domain.RegisterTokenRequest) (*domain.Device, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return nil, fmt.Errorf("token is required: %w", domain.ErrBadRequest)
	}
	d, err := pkgdevice.Resolve(ctx, s.repo, req.DeviceUUID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, d.DeviceID, map[string]interface{}{fieldToken: token}); err != nil {
		return nil, err
	}
	d.Token = &token
	return d, nil
}

func (s *service) List(ctx context.Context, userID string) ([]domain.Device, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) Delete(ctx context.Context, deviceID, userID string) error {
	d, err := s.repo.Get(ctx, deviceID)
	if err != nil {
		return err
	}
	if d.UserID != userID {
		return fmt.Errorf("device belongs to another user: %w", domain.ErrForbidden)
	}
	return s.repo.SoftDelete(ctx, deviceID)
}

func (s *service) HasToken(ctx context.Context, userID string) (bool, error) {
	return s.repo.HasToken(ctx, userID)
}

func (s *service) ClearToken(ctx context.Context, deviceID string) error {
	return s.repo.ClearToken(ctx, deviceID)
}
