package maps

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"house-finder/models"
	"house-finder/storage"
	"house-finder/utils"
)

// Cache operation names. Changing one orphans every stored entry for it.
const (
	opTravelTime   = "travel_time"
	opLatLng       = "latitude_longitude"
	opNearbyPlaces = "nearby_places"
)

// LookupOptions configures the lookups built by NewLookups.
type LookupOptions struct {
	// Location is the reference zone for HH:MM arrival/departure times.
	Location *time.Location
	Now      func() time.Time
	Logger   *utils.Logger
	Metrics  *Metrics
}

// Lookups bundles the memoized provider lookups of one run.
type Lookups struct {
	TravelTime *TravelTimeCalculator
	LatLng     *LatitudeLongitudeFinder
	Nearby     *NearbyPlacesFinder
}

// NewLookups wires all lookups to the same gateway and cache.
func NewLookups(gw *Gateway, cache storage.Cache, opts LookupOptions) *Lookups {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Lookups{
		TravelTime: &TravelTimeCalculator{
			memo:     newMemo(opTravelTime, cache, opts.Logger, opts.Metrics),
			gateway:  gw,
			location: opts.Location,
			now:      opts.Now,
		},
		LatLng: &LatitudeLongitudeFinder{
			memo:    newMemo(opLatLng, cache, opts.Logger, opts.Metrics),
			gateway: gw,
		},
		Nearby: &NearbyPlacesFinder{
			memo:    newMemo(opNearbyPlaces, cache, opts.Logger, opts.Metrics),
			gateway: gw,
		},
	}
}

// TravelTimeRequest describes one journey. ArrivalTime and DepartureTime
// are optional "HH:MM" strings.
type TravelTimeRequest struct {
	Origin        string
	Destination   string
	Mode          string
	ArrivalTime   string
	DepartureTime string
}

func (r TravelTimeRequest) params() map[string]any {
	return map[string]any{
		"origin":         r.Origin,
		"destination":    r.Destination,
		"mode":           r.Mode,
		"arrival_time":   r.ArrivalTime,
		"departure_time": r.DepartureTime,
	}
}

// TravelTimeCalculator finds journey durations.
type TravelTimeCalculator struct {
	memo     *memo
	gateway  *Gateway
	location *time.Location
	now      func() time.Time
}

// TravelTime returns the duration of the first leg of the first route.
// Cache keys hold the HH:MM strings, not the derived instants, so a result
// stays valid across days.
func (c *TravelTimeCalculator) TravelTime(ctx context.Context, req TravelTimeRequest) (time.Duration, error) {
	if strings.TrimSpace(req.Origin) == "" || strings.TrimSpace(req.Destination) == "" {
		return 0, fmt.Errorf("%w: travel time needs origin and destination", ErrEmptyQuery)
	}

	seconds, err := remember(ctx, c.memo, req.params(), func(ctx context.Context) (int64, error) {
		dreq, err := c.directionsRequest(req)
		if err != nil {
			return 0, err
		}
		routes, err := Query(ctx, c.gateway, "directions", func(ctx context.Context, p Provider) ([]Route, error) {
			return p.Directions(ctx, dreq)
		})
		if err != nil {
			return 0, err
		}
		if len(routes) == 0 || len(routes[0].Legs) == 0 {
			return 0, &NoResultError{Lookup: opTravelTime, Query: req.Origin + " -> " + req.Destination}
		}
		return int64(routes[0].Legs[0].Duration / time.Second), nil
	})
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}

func (c *TravelTimeCalculator) directionsRequest(req TravelTimeRequest) (DirectionsRequest, error) {
	d := DirectionsRequest{
		Origin:      req.Origin,
		Destination: req.Destination,
		Mode:        req.Mode,
	}
	now := c.now()
	if req.ArrivalTime != "" {
		t, err := NextOccurrence(req.ArrivalTime, now, c.location)
		if err != nil {
			return d, err
		}
		d.ArrivalTime = t
		d.TrafficModel = TrafficModelPessimistic
	}
	if req.DepartureTime != "" {
		t, err := NextOccurrence(req.DepartureTime, now, c.location)
		if err != nil {
			return d, err
		}
		d.DepartureTime = t
		d.TrafficModel = TrafficModelPessimistic
	}
	return d, nil
}

// LatitudeLongitudeFinder geocodes free-text addresses.
type LatitudeLongitudeFinder struct {
	memo    *memo
	gateway *Gateway
}

// Find returns the location of the first geocoding result for address.
func (f *LatitudeLongitudeFinder) Find(ctx context.Context, address string) (models.LatLng, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return models.LatLng{}, fmt.Errorf("%w: address", ErrEmptyQuery)
	}

	return remember(ctx, f.memo, map[string]any{"address": address}, func(ctx context.Context) (models.LatLng, error) {
		results, err := Query(ctx, f.gateway, "geocode", func(ctx context.Context, p Provider) ([]GeocodeResult, error) {
			return p.Geocode(ctx, address)
		})
		if err != nil {
			return models.LatLng{}, err
		}
		if len(results) == 0 {
			return models.LatLng{}, &NoResultError{Lookup: opLatLng, Query: address}
		}
		loc := results[0].Location
		f.memo.logger.Debug("[maps] Loaded %s as %s", address, loc)
		return loc, nil
	})
}

// NearbyPlacesFinder lists places of a type around a location.
type NearbyPlacesFinder struct {
	memo    *memo
	gateway *Gateway
}

// Find returns places of placeType ordered by distance from location,
// nearest first. An empty answer is a valid, cached result.
func (f *NearbyPlacesFinder) Find(ctx context.Context, location models.LatLng, placeType string) ([]models.Place, error) {
	placeType = strings.TrimSpace(placeType)
	if placeType == "" {
		return nil, fmt.Errorf("%w: place type", ErrEmptyQuery)
	}

	params := map[string]any{"location": location.String(), "place_type": placeType}
	return remember(ctx, f.memo, params, func(ctx context.Context) ([]models.Place, error) {
		places, err := Query(ctx, f.gateway, "places_nearby", func(ctx context.Context, p Provider) ([]models.Place, error) {
			return p.PlacesNearby(ctx, NearbyRequest{
				Location: location,
				Type:     placeType,
				Keyword:  placeType,
				RankBy:   RankByDistance,
			})
		})
		if err != nil {
			return nil, err
		}
		if places == nil {
			places = []models.Place{}
		}
		sort.SliceStable(places, func(i, j int) bool {
			return Distance(location, places[i].Location) < Distance(location, places[j].Location)
		})
		f.memo.logger.Debug("[maps] Found %d nearby %s places to %s", len(places), placeType, location)
		return places, nil
	})
}
