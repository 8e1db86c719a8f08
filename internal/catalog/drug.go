// Package catalog stores drug reference records scraped from public listings
// and serves paged, case-insensitive title searches over them.
package catalog

import (
	"context"
	"errors"
	"strings"
)

// ErrIncompleteRecord is returned by Validate when any field is blank.
var ErrIncompleteRecord = errors.New("incomplete drug record")

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Drug is one catalog entry. JSON names follow the stored documents.
type Drug struct {
	ID         string `json:"_id"`
	Link       string `json:"link"`
	Title      string `json:"title"`
	Price      string `json:"price"`
	Meta       string `json:"meta"`
	Desc       string `json:"desc"`
	Detail     string `json:"detail"`
	SideEffect string `json:"sideEffect"`
}

// Validate rejects records with any blank field. ID is assigned by the store
// and is not checked.
func (d Drug) Validate() error {
	fields := []struct{ name, value string }{
		{"link", d.Link},
		{"title", d.Title},
		{"price", d.Price},
		{"meta", d.Meta},
		{"desc", d.Desc},
		{"detail", d.Detail},
		{"sideEffect", d.SideEffect},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &IncompleteError{Missing: missing}
	}
	return nil
}

// IncompleteError names the blank fields of a rejected record.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return "incomplete drug record: missing " + strings.Join(e.Missing, ", ")
}

func (e *IncompleteError) Is(target error) bool { return target == ErrIncompleteRecord }

// Query selects one page of a title search.
type Query struct {
	Search string
	Page   int
	Limit  int
}

// Normalize clamps Limit to 1..MaxLimit and Page to >= 0.
func (q Query) Normalize() Query {
	q.Search = strings.TrimSpace(q.Search)
	switch {
	case q.Limit < 1:
		q.Limit = 1
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}
	if q.Page < 0 {
		q.Page = 0
	}
	return q
}

// Offset is the number of records skipped before the page.
func (q Query) Offset() int { return q.Page * q.Limit }

// Page is one page of search results.
type Page struct {
	Drugs      []Drug `json:"drugs"`
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalPages int64  `json:"totalPages"`
}

func newPage(q Query, drugs []Drug, total int64) Page {
	if drugs == nil {
		drugs = []Drug{}
	}
	return Page{
		Drugs:      drugs,
		Total:      total,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: (total + int64(q.Limit) - 1) / int64(q.Limit),
	}
}

// Store is a drug catalog backend.
type Store interface {
	// Search returns titles containing q.Search case-insensitively, sorted by title.
	Search(ctx context.Context, q Query) (Page, error)
	// Get returns common.ErrNotFound when id is unknown.
	Get(ctx context.Context, id string) (*Drug, error)
	// Upsert inserts d or overwrites the record with the same link.
	Upsert(ctx context.Context, d Drug) error
	Close(ctx context.Context) error
}
