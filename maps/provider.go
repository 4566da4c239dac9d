// Package maps talks to the external mapping provider. It rotates API keys
// when a key runs out of quota and memoizes every lookup in a persistent
// cache so a fact is only ever paid for once.
package maps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"house-finder/models"
)

var (
	// ErrQuotaExceeded is reported by a Provider when the active key is
	// over its query limit. It is the only error that triggers rotation.
	ErrQuotaExceeded = errors.New("maps: quota exceeded")

	// ErrRotationLimit is returned once a query has rotated keys more
	// times than the gateway allows.
	ErrRotationLimit = errors.New("maps: credential rotation limit reached")

	// ErrNoResult matches every *NoResultError.
	ErrNoResult = errors.New("maps: no result")

	ErrEmptyQuery = errors.New("maps: empty query")
)

// NoResultError means the provider answered but the answer did not contain
// the fact a lookup needed. Callers decide whether that is fatal.
type NoResultError struct {
	Lookup string
	Query  string
}

func (e *NoResultError) Error() string {
	return fmt.Sprintf("maps: no %s result for %s", e.Lookup, e.Query)
}

func (e *NoResultError) Is(target error) bool { return target == ErrNoResult }

// Provider is the subset of a mapping service the lookups need.
type Provider interface {
	Geocode(ctx context.Context, address string) ([]GeocodeResult, error)
	Directions(ctx context.Context, req DirectionsRequest) ([]Route, error)
	PlacesNearby(ctx context.Context, req NearbyRequest) ([]models.Place, error)
}

// ProviderFactory builds a Provider bound to one API key.
type ProviderFactory func(apiKey string) (Provider, error)

type GeocodeResult struct {
	Location         models.LatLng
	FormattedAddress string
}

// DirectionsRequest mirrors the directions API. Zero times are omitted.
type DirectionsRequest struct {
	Origin        string
	Destination   string
	Mode          string
	TrafficModel  string
	ArrivalTime   time.Time
	DepartureTime time.Time
}

type Route struct {
	Legs []Leg
}

type Leg struct {
	Duration       time.Duration
	DistanceMeters int
}

// NearbyRequest mirrors the places nearby-search API.
type NearbyRequest struct {
	Location models.LatLng
	Type     string
	Keyword  string
	RankBy   string
}

const (
	TrafficModelPessimistic = "pessimistic"
	RankByDistance          = "distance"
)
