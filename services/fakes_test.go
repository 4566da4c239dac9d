package services

import (
	"context"
	"sync/atomic"
	"time"

	"house-finder/maps"
	"house-finder/models"
)

type fakeTravel struct {
	durations map[string]time.Duration
	err       error
	calls     atomic.Int32
}

func (f *fakeTravel) TravelTime(_ context.Context, req maps.TravelTimeRequest) (time.Duration, error) {
	f.calls.Add(1)
	if f.err != nil {
		return 0, f.err
	}
	d, ok := f.durations[req.Origin]
	if !ok {
		return 0, &maps.NoResultError{Lookup: "travel_time", Query: req.Origin}
	}
	return d, nil
}

type fakeGeocoder map[string]models.LatLng

func (f fakeGeocoder) Find(_ context.Context, address string) (models.LatLng, error) {
	loc, ok := f[address]
	if !ok {
		return models.LatLng{}, &maps.NoResultError{Lookup: "latitude_longitude", Query: address}
	}
	return loc, nil
}

type fakePlaces []models.Place

func (f fakePlaces) Find(context.Context, models.LatLng, string) ([]models.Place, error) {
	return f, nil
}

func ptr[T any](v T) *T { return &v }
