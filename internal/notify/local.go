package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/barbershop-booking/internal/domain"
)

// DefaultNoticeTimeout is how long a shown notice stays up without user action.
const DefaultNoticeTimeout = 10 * time.Second

type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

// ParsePermission maps the browser's Notification.permission value. Unknown
// values are treated as not yet decided.
func ParsePermission(s string) Permission {
	switch Permission(s) {
	case PermissionGranted, PermissionDenied:
		return Permission(s)
	default:
		return PermissionDefault
	}
}

// Permissions is the host's per-origin notification permission. The host
// persists the grant; the sink only reads and requests it.
type Permissions interface {
	Permission() Permission
	RequestPermission(ctx context.Context) (Permission, error)
}

// Notice is what the host shows. Notices sharing a Tag replace each other.
type Notice struct {
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Icon    string         `json:"icon,omitempty"`
	Tag     string         `json:"tag"`
	Data    map[string]any `json:"data,omitempty"`
	Timeout time.Duration  `json:"-"`
}

type Display interface {
	Show(ctx context.Context, n Notice) error
}

// LocalSink shows notifications on the customer's own device.
type LocalSink struct {
	perms   Permissions
	display Display
	icon    string
	timeout time.Duration
	logger  *slog.Logger
}

type LocalOption func(*LocalSink)

func WithIcon(icon string) LocalOption {
	return func(s *LocalSink) { s.icon = icon }
}

func WithNoticeTimeout(d time.Duration) LocalOption {
	return func(s *LocalSink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) LocalOption {
	return func(s *LocalSink) { s.logger = l }
}

func NewLocalSink(perms Permissions, display Display, opts ...LocalOption) *LocalSink {
	s := &LocalSink{
		perms:   perms,
		display: display,
		timeout: DefaultNoticeTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver asks for permission at most once when the host has no decision yet.
// A denial is logged and reported as ErrPermissionDenied; it is never retried.
func (s *LocalSink) Deliver(ctx context.Context, msg Message) (Result, error) {
	res := Result{Channel: ChannelLocal}

	perm := s.perms.Permission()
	if perm == PermissionDefault {
		var err error
		perm, err = s.perms.RequestPermission(ctx)
		if err != nil {
			res.Outcome = Classify(err)
			return res, fmt.Errorf("request notification permission: %w", err)
		}
	}
	if perm != PermissionGranted {
		s.logger.Info("notification permission denied", "recipient", msg.RecipientID, "tag", msg.Tag)
		res.Outcome = OutcomePermissionDenied
		return res, domain.ErrPermissionDenied
	}

	tag := msg.Tag
	if tag == "" {
		tag = "queue-" + msg.RecipientID
	}
	notice := Notice{
		Title:   msg.Title,
		Body:    msg.Body,
		Icon:    s.icon,
		Tag:     tag,
		Data:    msg.Metadata,
		Timeout: s.timeout,
	}
	if err := s.display.Show(ctx, notice); err != nil {
		res.Outcome = Classify(err)
		if res.Outcome == OutcomeCancelled {
			return res, err
		}
		return res, fmt.Errorf("show notification: %w: %v", domain.ErrDeliveryFailed, err)
	}
	res.Outcome = OutcomeDelivered
	res.DeliveryID = tag
	return res, nil
}
