package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/barbershop-booking/internal/domain"
	"github.com/barbershop-booking/internal/pkg/id"
	"github.com/barbershop-booking/internal/pkg/listing"
)

const dateLayout = "2006-01-02"

type Service interface {
	Book(ctx context.Context, customerID string, req domain.BookRequest) (*domain.Appointment, error)
	ListMine(ctx context.Context, customerID string) ([]domain.Appointment, error)
	Cancel(ctx context.Context, appointmentID, customerID string) (*domain.Appointment, error)
	Get(ctx context.Context, appointmentID string) (*domain.Appointment, error)
	ListByDate(ctx context.Context, date string, perPage int, cursor string) (listing.Page[domain.Appointment], error)
	UpdateStatus(ctx context.Context, appointmentID string, status domain.AppointmentStatus) (*domain.Appointment, error)
}

// QueueListener is told about every booking change that can move a queue.
type QueueListener interface {
	QueueChanged(ctx context.Context, a domain.Appointment)
}

type appointmentStore interface {
	Put(ctx context.Context, a *domain.Appointment) error
	Get(ctx context.Context, appointmentID string) (*domain.Appointment, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Appointment, error)
	ListByDate(ctx context.Context, date string, limit int32, cursor string) ([]domain.Appointment, string, error)
	UpdateStatus(ctx context.Context, appointmentID string, from, to domain.AppointmentStatus) error
}

type catalogStore interface {
	Get(ctx context.Context, itemID string) (*domain.CatalogItem, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type service struct {
	repo      appointmentStore
	catalog   catalogStore
	users     userStore
	listeners []QueueListener
	loc       *time.Location
	paging    listing.Config
	now       func() time.Time
}

type ServiceDeps struct {
	AppointmentRepo appointmentStore
	CatalogRepo     catalogStore
	UserRepo        userStore
	Listeners       []QueueListener
	Location        *time.Location
	Paging          listing.Config
	Now             func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:      deps.AppointmentRepo,
		catalog:   deps.CatalogRepo,
		users:     deps.UserRepo,
		listeners: deps.Listeners,
		loc:       deps.Location,
		paging:    deps.Paging,
		now:       deps.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Book(ctx context.Context, customerID string, req domain.BookRequest) (*domain.Appointment, error) {
	at, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		return nil, fmt.Errorf("scheduled_at must be RFC3339: %w", domain.ErrBadRequest)
	}
	now := s.now().UTC()
	if !at.After(now) {
		return nil, fmt.Errorf("scheduled_at must be in the future: %w", domain.ErrBadRequest)
	}

	svcItem, err := s.catalog.Get(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if svcItem.Kind != domain.KindService || !svcItem.Enable {
		return nil, fmt.Errorf("service %s is not bookable: %w", req.ServiceID, domain.ErrBadRequest)
	}

	date := at.In(s.loc).Format(dateLayout)
	mine, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	for _, a := range mine {
		if a.Date == date && a.Status.Active() {
			return nil, fmt.Errorf("already booked on %s: %w", date, domain.ErrConflict)
		}
	}

	u, err := s.users.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	a := &domain.Appointment{
		AppointmentID:   id.New(),
		CustomerID:      customerID,
		CustomerName:    u.DisplayName(),
		ServiceID:       svcItem.ItemID,
		ServiceName:     svcItem.Name,
		Date:            date,
		ScheduledAt:     at.UTC(),
		DurationMinutes: svcItem.DurationMinutes,
		Status:          domain.StatusPending,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Put(ctx, a); err != nil {
		return nil, err
	}
	s.changed(ctx, *a)
	return a, nil
}

func (s *service) ListMine(ctx context.Context, customerID string) ([]domain.Appointment, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

func (s *service) Get(ctx context.Context, appointmentID string) (*domain.Appointment, error) {
	return s.repo.Get(ctx, appointmentID)
}

func (s *service) Cancel(ctx context.Context, appointmentID, customerID string) (*domain.Appointment, error) {
	a, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if a.CustomerID != customerID {
		return nil, fmt.Errorf("appointment belongs to another customer: %w", domain.ErrForbidden)
	}
	return s.transition(ctx, a, domain.StatusCancelled)
}

func (s *service) ListByDate(ctx context.Context, date string, perPage int, cursor string) (listing.Page[domain.Appointment], error) {
	if date == "" {
		date = s.now().In(s.loc).Format(dateLayout)
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return listing.Page[domain.Appointment]{}, fmt.Errorf("date must be YYYY-MM-DD: %w", domain.ErrBadRequest)
	}
	limit := s.paging.Limit(perPage)
	appts, next, err := s.repo.ListByDate(ctx, date, limit, cursor)
	if err != nil {
		return listing.Page[domain.Appointment]{}, err
	}
	return listing.NewPage(appts, limit, next), nil
}

func (s *service) UpdateStatus(ctx context.Context, appointmentID string, status domain.AppointmentStatus) (*domain.Appointment, error) {
	a, err := s.repo.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, a, status)
}

func (s *service) transition(ctx context.Context, a *domain.Appointment, to domain.AppointmentStatus) (*domain.Appointment, error) {
	if a.Status == to {
		return a, nil
	}
	if !a.Status.CanBecome(to) {
		return nil, fmt.Errorf("cannot move appointment from %s to %s: %w", a.Status, to, domain.ErrConflict)
	}
	if err := s.repo.UpdateStatus(ctx, a.AppointmentID, a.Status, to); err != nil {
		return nil, err
	}
	a.Status = to
	a.UpdatedAt = s.now().UTC()
	s.changed(ctx, *a)
	return a, nil
}

func (s *service) changed(ctx context.Context, a domain.Appointment) {
	for _, l := range s.listeners {
		l.QueueChanged(ctx, a)
	}
}

