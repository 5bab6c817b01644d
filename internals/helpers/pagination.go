package helper

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var ErrPageOutOfRange = errors.New("invalid page")

type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Count    int64 `json:"count"`
	NumPages int   `json:"num_pages"`
	HasNext  bool  `json:"has_next"`
	HasPrev  bool  `json:"has_prev"`
}

// Paging is the resolved ?page=&page_size= pair. Unpaged means page_size=0: return everything.
type Paging struct {
	Page     int
	PageSize int
	Unpaged  bool
}

func (p Paging) Offset() int { return (p.Page - 1) * p.PageSize }
func (p Paging) Limit() int  { return p.PageSize }

// ResolvePaging membaca ?page= & ?page_size= (alias ?per_page=).
func ResolvePaging(c *fiber.Ctx, defaultPageSize, maxPageSize int) Paging {
	page, err := strconv.Atoi(strings.TrimSpace(c.Query("page", "1")))
	if err != nil || page < 1 {
		page = 1
	}

	raw := strings.TrimSpace(c.Query("page_size"))
	if raw == "" {
		raw = strings.TrimSpace(c.Query("per_page"))
	}
	if raw == "0" {
		return Paging{Page: 1, Unpaged: true}
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size <= 0 {
		size = defaultPageSize
	}
	if maxPageSize > 0 && size > maxPageSize {
		size = maxPageSize
	}
	return Paging{Page: page, PageSize: size}
}

// BuildPagination fails with ErrPageOutOfRange when page is past the last one.
// Page 1 of an empty result is valid.
func BuildPagination(total int64, p Paging) (*Pagination, error) {
	if p.Unpaged {
		return nil, nil
	}
	numPages := int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	if numPages == 0 {
		numPages = 1
	}
	if p.Page > numPages {
		return nil, ErrPageOutOfRange
	}
	return &Pagination{
		Page:     p.Page,
		PageSize: p.PageSize,
		Count:    total,
		NumPages: numPages,
		HasNext:  p.Page < numPages,
		HasPrev:  p.Page > 1,
	}, nil
}
