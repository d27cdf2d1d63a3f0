package device

import (
	"context"
	"errors"
	"time"

	"github.com/barbershop-booking/internal/domain"
	"github.com/barbershop-booking/internal/pkg/id"
)

// Store is the subset of the device repository Resolve needs.
type Store interface {
	GetByUUID(ctx context.Context, uuid string) (*domain.Device, error)
	Put(ctx context.Context, d *domain.Device) error
}

// Resolve returns the user's device registered under deviceUUID, or creates
// a new enabled one. A UUID registered to someone else is handed over to
// userID, since one browser belongs to whoever signed in last.
func Resolve(ctx context.Context, repo Store, deviceUUID *string, userID string) (*domain.Device, error) {
	now := time.Now().UTC()
	if deviceUUID != nil && *deviceUUID != "" {
		d, err := repo.GetByUUID(ctx, *deviceUUID)
		switch {
		case err == nil && d.UserID == userID && d.Enable:
			return d, nil
		case err == nil:
			d.UserID = userID
			d.Enable = true
			d.Token = nil
			d.UpdatedAt = now
			if err := repo.Put(ctx, d); err != nil {
				return nil, err
			}
			return d, nil
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}
	devUUID := id.New()
	if deviceUUID != nil && *deviceUUID != "" {
		devUUID = *deviceUUID
	}
	d := &domain.Device{
		DeviceID:  id.New(),
		UUID:      devUUID,
		UserID:    userID,
		Enable:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Put(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}
