// Package pagination encodes opaque page cursors for list endpoints.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// ErrInvalidCursor is returned for cursors that do not decode to a valid page
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor addresses one page of a listing. Pages start at 1.
type Cursor struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Meta describes the page that was served
type Meta struct {
	PageSize    int    `json:"page_size"`
	CurrentPage int    `json:"current_page"`
	NextCursor  string `json:"next_cursor,omitempty"`
	PrevCursor  string `json:"prev_cursor,omitempty"`
}

// First returns the cursor of the first page with pageSize clamped
func First(pageSize int) Cursor {
	return Cursor{Page: 1, PageSize: clampPageSize(pageSize)}
}

// Encode renders c as base64url JSON
func (c Cursor) Encode() string {
	data, _ := json.Marshal(c)
	return base64.URLEncoding.EncodeToString(data)
}

// Decode parses a cursor produced by Encode
func Decode(s string) (Cursor, error) {
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if c.Page < 1 || c.PageSize < 1 || c.PageSize > MaxPageSize {
		return Cursor{}, fmt.Errorf("%w: page %d size %d", ErrInvalidCursor, c.Page, c.PageSize)
	}
	return c, nil
}

// Offset is the number of rows before this page
func (c Cursor) Offset() int {
	return (c.Page - 1) * c.PageSize
}

// Next returns the following page
func (c Cursor) Next() Cursor {
	return Cursor{Page: c.Page + 1, PageSize: c.PageSize}
}

// Prev returns the preceding page and false on the first page
func (c Cursor) Prev() (Cursor, bool) {
	if c.Page <= 1 {
		return Cursor{}, false
	}
	return Cursor{Page: c.Page - 1, PageSize: c.PageSize}, true
}

// MetaFor builds the response metadata. hasMore reports whether rows exist past this page.
func (c Cursor) MetaFor(hasMore bool) Meta {
	m := Meta{PageSize: c.PageSize, CurrentPage: c.Page}
	if hasMore {
		m.NextCursor = c.Next().Encode()
	}
	if prev, ok := c.Prev(); ok {
		m.PrevCursor = prev.Encode()
	}
	return m
}

func clampPageSize(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	default:
		return n
	}
}
