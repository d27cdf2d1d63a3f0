package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/barbershop-booking/internal/domain"
	"github.com/barbershop-booking/internal/pkg/id"
	"github.com/barbershop-booking/internal/pkg/listing"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldName        = "name"
	fieldDescription = "description"
	fieldPrice       = "price"
	fieldDuration    = "duration_minutes"
	fieldStock       = "stock"
	fieldEnable      = "enable"
)

type Service interface {
	List(ctx context.Context, kind domain.CatalogKind, includeDisabled bool, perPage int, cursor string) (listing.Page[domain.CatalogItem], error)
	Get(ctx context.Context, itemID string) (*domain.CatalogItem, error)
	Create(ctx context.Context, kind domain.CatalogKind, in domain.CatalogInput) (*domain.CatalogItem, error)
	Update(ctx context.Context, itemID string, in domain.CatalogInput) (*domain.CatalogItem, error)
	Delete(ctx context.Context, itemID string) error
	UploadImage(ctx context.Context, itemID, filename string, r io.Reader) (*domain.CatalogItem, error)
}

type catalogStore interface {
	Put(ctx context.Context, item *domain.CatalogItem) error
	Get(ctx context.Context, itemID string) (*domain.CatalogItem, error)
	ListByKind(ctx context.Context, kind domain.CatalogKind, includeDisabled bool, limit int32, cursor string) ([]domain.CatalogItem, string, error)
	Update(ctx context.Context, itemID string, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, itemID string) error
	SetImage(ctx context.Context, itemID, key string) error
}

type imageStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// ContentTypeFunc maps an uploaded file name to its MIME type.
type ContentTypeFunc func(filename string) (string, bool)

type service struct {
	repo        catalogStore
	images      imageStore
	contentType ContentTypeFunc
	imageTTL    time.Duration
	paging      listing.Config
}

type ServiceDeps struct {
	CatalogRepo catalogStore
	Images      imageStore
	ContentType ContentTypeFunc
	ImageTTL    time.Duration
	Paging      listing.Config
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:        deps.CatalogRepo,
		images:      deps.Images,
		contentType: deps.ContentType,
		imageTTL:    deps.ImageTTL,
		paging:      deps.Paging,
	}
}

func (s *service) List(ctx context.Context, kind domain.CatalogKind, includeDisabled bool, perPage int, cursor string) (listing.Page[domain.CatalogItem], error) {
	if !kind.Valid() {
		return listing.Page[domain.CatalogItem]{}, fmt.Errorf("unknown catalog kind %q: %w", kind, domain.ErrBadRequest)
	}
	limit := s.paging.Limit(perPage)
	items, next, err := s.repo.ListByKind(ctx, kind, includeDisabled, limit, cursor)
	if err != nil {
		return listing.Page[domain.CatalogItem]{}, err
	}
	for i := range items {
		s.withImageURL(ctx, &items[i])
	}
	return listing.NewPage(items, limit, next), nil
}

func (s *service) Get(ctx context.Context, itemID string) (*domain.CatalogItem, error) {
	item, err := s.repo.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	s.withImageURL(ctx, item)
	return item, nil
}

func (s *service) Create(ctx context.Context, kind domain.CatalogKind, in domain.CatalogInput) (*domain.CatalogItem, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown catalog kind %q: %w", kind, domain.ErrBadRequest)
	}
	if kind == domain.KindService && in.DurationMinutes <= 0 {
		return nil, fmt.Errorf("a service needs duration_minutes: %w", domain.ErrBadRequest)
	}
	now := time.Now().UTC()
	item := &domain.CatalogItem{
		ItemID:          id.New(),
		Kind:            kind,
		Name:            in.Name,
		Description:     in.Description,
		Price:           in.Price,
		DurationMinutes: in.DurationMinutes,
		Stock:           in.Stock,
		Enable:          in.Enable == nil || *in.Enable,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if kind == domain.KindProduct {
		item.DurationMinutes = 0
	} else {
		item.Stock = 0
	}
	if err := s.repo.Put(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) Update(ctx context.Context, itemID string, in domain.CatalogInput) (*domain.CatalogItem, error) {
	current, err := s.repo.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		fieldName:        in.Name,
		fieldDescription: in.Description,
		fieldPrice:       in.Price,
	}
	switch current.Kind {
	case domain.KindService:
		if in.DurationMinutes <= 0 {
			return nil, fmt.Errorf("a service needs duration_minutes: %w", domain.ErrBadRequest)
		}
		updates[fieldDuration] = in.DurationMinutes
	case domain.KindProduct:
		updates[fieldStock] = in.Stock
	}
	if in.Enable != nil {
		updates[fieldEnable] = *in.Enable
	}
	if err := s.repo.Update(ctx, itemID, updates); err != nil {
		return nil, err
	}
	return s.Get(ctx, itemID)
}

func (s *service) Delete(ctx context.Context, itemID string) error {
	if _, err := s.repo.Get(ctx, itemID); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, itemID)
}

// UploadImage stores a new image for the item and replaces the old one.
func (s *service) UploadImage(ctx context.Context, itemID, filename string, r io.Reader) (*domain.CatalogItem, error) {
	contentType, ok := s.contentType(filename)
	if !ok {
		return nil, fmt.Errorf("unsupported image type %q: %w", path.Ext(filename), domain.ErrBadRequest)
	}
	item, err := s.repo.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("catalog/%s/%s%s", itemID, id.New(), strings.ToLower(path.Ext(filename)))
	if err := s.images.Put(ctx, key, r, contentType); err != nil {
		return nil, err
	}
	if err := s.repo.SetImage(ctx, itemID, key); err != nil {
		return nil, err
	}
	if item.ImageKey != "" {
		if err := s.images.Delete(ctx, item.ImageKey); err != nil {
			slog.Warn("failed to delete replaced catalog image", "item_id", itemID, "key", item.ImageKey, "err", err)
		}
	}
	item.ImageKey = key
	s.withImageURL(ctx, item)
	return item, nil
}

func (s *service) withImageURL(ctx context.Context, item *domain.CatalogItem) {
	if item.ImageKey == "" {
		return
	}
	url, err := s.images.PresignedURL(ctx, item.ImageKey, s.imageTTL)
	if err != nil {
		slog.Warn("failed to presign catalog image", "item_id", item.ItemID, "err", err)
		return
	}
	item.ImageURL = url
}
