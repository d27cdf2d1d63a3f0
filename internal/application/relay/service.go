package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/barbershop-booking/internal/domain"
	"github.com/barbershop-booking/internal/infrastructure/sns"
	"github.com/barbershop-booking/internal/notify"
)

// Delivery is what the relay reports for an accepted push.
type Delivery struct {
	DeliveryID string `json:"deliveryId"`
	Devices    int    `json:"devices"`
}

type Service interface {
	// Send pushes to every device the recipient registered. It succeeds when at
	// least one device accepted the message.
	Send(ctx context.Context, req notify.RelayRequest) (*Delivery, error)
}

type deviceStore interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Device, error)
	ClearToken(ctx context.Context, deviceID string) error
}

type publisher interface {
	Publish(ctx context.Context, push sns.Push) (string, error)
}

type service struct {
	devices deviceStore
	pub     publisher
	audit   notify.Recorder
	logger  *slog.Logger
}

type ServiceDeps struct {
	DeviceRepo deviceStore
	Publisher  publisher
	Audit      notify.Recorder
	Logger     *slog.Logger
}

func NewService(deps ServiceDeps) Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &service{devices: deps.DeviceRepo, pub: deps.Publisher, audit: deps.Audit, logger: logger}
}

func (s *service) Send(ctx context.Context, req notify.RelayRequest) (*Delivery, error) {
	msg := notify.Message{
		RecipientID:   req.RecipientID,
		Title:         req.Title,
		Body:          req.Body,
		CorrelationID: req.CorrelationID,
	}
	res := notify.Result{Channel: notify.ChannelRelay}

	d, err := s.send(ctx, req)
	if d != nil {
		res.DeliveryID = d.DeliveryID
	}
	res.Outcome = notify.Classify(err)
	notify.Record(ctx, s.audit, s.logger, msg, res)
	return d, err
}

func (s *service) send(ctx context.Context, req notify.RelayRequest) (*Delivery, error) {
	devices, err := s.devices.ListByUser(ctx, req.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w: %v", domain.ErrDeliveryFailed, err)
	}
	var targets []domain.Device
	for _, d := range devices {
		if d.HasToken() {
			targets = append(targets, d)
		}
	}
	if len(targets) == 0 {
		return nil, domain.ErrNotOptedIn
	}

	push := sns.Push{Title: req.Title, Body: req.Body, Data: pushData(req)}
	var (
		delivered []string
		invalid   int
		lastErr   error
	)
	for _, d := range targets {
		push.Token = *d.Token
		msgID, err := s.pub.Publish(ctx, push)
		switch {
		case err == nil:
			delivered = append(delivered, msgID)
		case errors.Is(err, domain.ErrTokenInvalid):
			invalid++
			s.logger.Info("dropping rejected device token", "user_id", req.RecipientID, "device_id", d.DeviceID)
			if cerr := s.devices.ClearToken(context.WithoutCancel(ctx), d.DeviceID); cerr != nil {
				s.logger.Warn("failed to clear device token", "device_id", d.DeviceID, "err", cerr)
			}
		default:
			lastErr = err
			s.logger.Warn("push publish failed", "user_id", req.RecipientID, "device_id", d.DeviceID, "err", err)
		}
	}

	switch {
	case len(delivered) > 0:
		return &Delivery{DeliveryID: delivered[0], Devices: len(delivered)}, nil
	case invalid == len(targets):
		return nil, fmt.Errorf("all %d device tokens rejected: %w", invalid, domain.ErrTokenInvalid)
	case errors.Is(lastErr, domain.ErrDeliveryFailed):
		return nil, lastErr
	default:
		return nil, fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, lastErr)
	}
}

func pushData(req notify.RelayRequest) map[string]string {
	data := make(map[string]string, len(req.Extra)+1)
	for k, v := range req.Extra {
		data[k] = fmt.Sprint(v)
	}
	if req.CorrelationID != "" {
		data["correlationId"] = req.CorrelationID
	}
	return data
}
