package domain

import "time"

type CatalogKind string

const (
	KindService CatalogKind = "service"
	KindProduct CatalogKind = "product"
)

func (k CatalogKind) Valid() bool {
	return k == KindService || k == KindProduct
}

// CatalogItem is either a bookable service (DurationMinutes set) or a
// product sold over the counter (Stock set).
type CatalogItem struct {
	ItemID          string      `json:"id" dynamodbav:"item_id"`
	Kind            CatalogKind `json:"kind" dynamodbav:"kind"`
	Name            string      `json:"name" dynamodbav:"name"`
	Description     string      `json:"description" dynamodbav:"description"`
	Price           int64       `json:"price" dynamodbav:"price"` // minor currency units
	DurationMinutes int         `json:"duration_minutes,omitempty" dynamodbav:"duration_minutes"`
	Stock           int         `json:"stock,omitempty" dynamodbav:"stock"`
	ImageKey        string      `json:"-" dynamodbav:"image_key"`
	ImageURL        string      `json:"image_url,omitempty" dynamodbav:"-"`
	Enable          bool        `json:"enable" dynamodbav:"enable"`
	CreatedAt       time.Time   `json:"created" dynamodbav:"created_at"`
	UpdatedAt       time.Time   `json:"updated" dynamodbav:"updated_at"`
}

type CatalogInput struct {
	Name            string `json:"name" validate:"required,max=120"`
	Description     string `json:"description" validate:"max=2000"`
	Price           int64  `json:"price" validate:"gte=0"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0,lte=480"`
	Stock           int    `json:"stock" validate:"gte=0"`
	Enable          *bool  `json:"enable"`
}
