package maps

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gmaps "googlemaps.github.io/maps"

	"house-finder/models"
)

// GoogleProvider adapts the Google Maps web services client to Provider.
type GoogleProvider struct {
	client *gmaps.Client
}

// NewGoogleProvider is a ProviderFactory for Google Maps.
func NewGoogleProvider(apiKey string) (Provider, error) {
	c, err := gmaps.NewClient(gmaps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("maps: google client: %w", err)
	}
	return &GoogleProvider{client: c}, nil
}

func (p *GoogleProvider) Geocode(ctx context.Context, address string) ([]GeocodeResult, error) {
	results, err := p.client.Geocode(ctx, &gmaps.GeocodingRequest{Address: address})
	if err != nil {
		return nil, classifyGoogleError("geocode", err)
	}

	out := make([]GeocodeResult, 0, len(results))
	for _, r := range results {
		out = append(out, GeocodeResult{
			Location:         models.LatLng{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
			FormattedAddress: r.FormattedAddress,
		})
	}
	return out, nil
}

func (p *GoogleProvider) Directions(ctx context.Context, req DirectionsRequest) ([]Route, error) {
	r := &gmaps.DirectionsRequest{
		Origin:      req.Origin,
		Destination: req.Destination,
		Mode:        gmaps.Mode(req.Mode),
	}
	if !req.ArrivalTime.IsZero() {
		r.ArrivalTime = strconv.FormatInt(req.ArrivalTime.Unix(), 10)
	}
	if !req.DepartureTime.IsZero() {
		r.DepartureTime = strconv.FormatInt(req.DepartureTime.Unix(), 10)
	}
	if req.TrafficModel != "" {
		r.TrafficModel = gmaps.TrafficModel(req.TrafficModel)
	}

	routes, _, err := p.client.Directions(ctx, r)
	if err != nil {
		return nil, classifyGoogleError("directions", err)
	}

	out := make([]Route, 0, len(routes))
	for _, route := range routes {
		legs := make([]Leg, 0, len(route.Legs))
		for _, leg := range route.Legs {
			if leg == nil {
				continue
			}
			legs = append(legs, Leg{Duration: leg.Duration, DistanceMeters: leg.Distance.Meters})
		}
		out = append(out, Route{Legs: legs})
	}
	return out, nil
}

func (p *GoogleProvider) PlacesNearby(ctx context.Context, req NearbyRequest) ([]models.Place, error) {
	resp, err := p.client.NearbySearch(ctx, &gmaps.NearbySearchRequest{
		Location: &gmaps.LatLng{Lat: req.Location.Lat, Lng: req.Location.Lng},
		Type:     gmaps.PlaceType(req.Type),
		Keyword:  req.Keyword,
		RankBy:   gmaps.RankBy(req.RankBy),
	})
	if err != nil {
		return nil, classifyGoogleError("places_nearby", err)
	}

	out := make([]models.Place, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, models.Place{
			ID:       r.PlaceID,
			Name:     r.Name,
			Vicinity: r.Vicinity,
			Location: models.LatLng{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
			Types:    r.Types,
		})
	}
	return out, nil
}

// classifyGoogleError maps API status codes onto this package's errors.
// The client reports non-OK statuses as "maps: STATUS - message". An empty
// answer is not an error here; it surfaces as a NoResultError in the lookup.
func classifyGoogleError(op string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "OVER_QUERY_LIMIT"), strings.Contains(msg, "OVER_DAILY_LIMIT"):
		return fmt.Errorf("google %s: %w: %v", op, ErrQuotaExceeded, err)
	case strings.Contains(msg, "ZERO_RESULTS"), strings.Contains(msg, "NOT_FOUND"):
		return nil
	}
	return fmt.Errorf("google %s: %w", op, err)
}
