package services

import (
	"context"

	"house-finder/models"
)

// ListingIterator is a lazy, single-pass sequence of listings. Next
// advances and reports whether a listing is available; Err reports the
// error that stopped iteration, if any.
type ListingIterator interface {
	Next(ctx context.Context) bool
	Listing() *models.Listing
	Err() error
}

// EvaluatedIterator is a lazy, single-pass sequence of evaluated listings.
type EvaluatedIterator interface {
	Next(ctx context.Context) bool
	Value() *models.EvaluatedListing
	Err() error
}

// SliceListings iterates over an in-memory slice.
type SliceListings struct {
	items []*models.Listing
	pos   int
	err   error
}

func NewSliceListings(items []*models.Listing) *SliceListings {
	return &SliceListings{items: items, pos: -1}
}

func (s *SliceListings) Next(ctx context.Context) bool {
	if s.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if s.pos+1 >= len(s.items) {
		s.pos = len(s.items)
		return false
	}
	s.pos++
	return true
}

func (s *SliceListings) Listing() *models.Listing {
	if s.pos < 0 || s.pos >= len(s.items) {
		return nil
	}
	return s.items[s.pos]
}

func (s *SliceListings) Err() error { return s.err }

// SliceEvaluations iterates over already evaluated listings, as produced
// by Evaluator.EvaluateAll.
type SliceEvaluations struct {
	items []*models.EvaluatedListing
	pos   int
	err   error
}

func NewSliceEvaluations(items []*models.EvaluatedListing) *SliceEvaluations {
	return &SliceEvaluations{items: items, pos: -1}
}

func (s *SliceEvaluations) Next(ctx context.Context) bool {
	if s.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if s.pos+1 >= len(s.items) {
		s.pos = len(s.items)
		return false
	}
	s.pos++
	return true
}

func (s *SliceEvaluations) Value() *models.EvaluatedListing {
	if s.pos < 0 || s.pos >= len(s.items) {
		return nil
	}
	return s.items[s.pos]
}

func (s *SliceEvaluations) Err() error { return s.err }
