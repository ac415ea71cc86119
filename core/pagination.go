package core

import "strconv"

const DefaultPageSize = 20

type Pagination struct {
	Count       int  `json:"count"`
	Page        int  `json:"page"`
	NumPages    int  `json:"num_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`

	pageSize int
}

// NewPagination resolves the requested page against the total count.
// A missing or non-numeric page gives the first page, a page out of range (zero and negatives included) gives the last one.
func NewPagination(page string, pageSize, count int) Pagination {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	numPages := (count + pageSize - 1) / pageSize
	if numPages == 0 {
		numPages = 1
	}
	num, err := strconv.Atoi(page)
	if err != nil {
		num = 1
	} else if num < 1 || num > numPages {
		num = numPages
	}
	return Pagination{
		Count:       count,
		Page:        num,
		NumPages:    numPages,
		HasNext:     num < numPages,
		HasPrevious: num > 1,
		pageSize:    pageSize,
	}
}

func (p Pagination) Limit() int { return p.pageSize }

func (p Pagination) Offset() int { return (p.Page - 1) * p.pageSize }
