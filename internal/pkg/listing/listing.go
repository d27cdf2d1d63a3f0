// Package listing holds the pagination settings shared by every admin list
// endpoint (appointments, services, products).
package listing

// Config is the paging policy for list endpoints.
type Config struct {
	PerPage    int
	MaxPerPage int
}

// Limit clamps a requested page size. Zero or negative asks for the default.
func (c Config) Limit(requested int) int32 {
	per := c.PerPage
	if per < 1 {
		per = 20
	}
	if requested > 0 {
		per = requested
	}
	if c.MaxPerPage > 0 && per > c.MaxPerPage {
		per = c.MaxPerPage
	}
	return int32(per)
}

// Page is one page of results. NextCursor is empty on the last page.
type Page[T any] struct {
	Data       []T    `json:"data"`
	PerPage    int    `json:"per_page"`
	NextCursor string `json:"next_cursor,omitempty"`
}

func NewPage[T any](data []T, perPage int32, next string) Page[T] {
	if data == nil {
		data = []T{}
	}
	return Page[T]{Data: data, PerPage: int(perPage), NextCursor: next}
}
