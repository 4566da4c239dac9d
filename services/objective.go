package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"house-finder/maps"
	"house-finder/models"
)

// Objective validation errors.
var (
	ErrUnsupportedObjectiveKind = errors.New("services: unsupported objective kind")
	ErrMissingThreshold         = errors.New("services: constraint objective needs a threshold")
	ErrMissingParameter         = errors.New("services: objective parameter missing")
	ErrDuplicateObjective       = errors.New("services: duplicate objective name")
	ErrConflictingTimes         = errors.New("services: arrival_time and departure_time are exclusive")
	ErrUnsupportedMode          = errors.New("services: unsupported travel mode")
)

var travelModes = map[string]bool{"driving": true, "walking": true, "bicycling": true, "transit": true}

// TravelTimer computes journey durations.
type TravelTimer interface {
	TravelTime(ctx context.Context, req maps.TravelTimeRequest) (time.Duration, error)
}

// Geocoder resolves a free-text address.
type Geocoder interface {
	Find(ctx context.Context, address string) (models.LatLng, error)
}

// PlaceFinder lists places of a type ordered by distance, nearest first.
type PlaceFinder interface {
	Find(ctx context.Context, location models.LatLng, placeType string) ([]models.Place, error)
}

// ObjectiveDeps are the lookups objectives may need. A dependency may be
// nil when no configured objective uses it.
type ObjectiveDeps struct {
	TravelTime TravelTimer
	Geocoder   Geocoder
	Places     PlaceFinder
}

// DepsFromLookups adapts a maps.Lookups bundle.
func DepsFromLookups(l *maps.Lookups) ObjectiveDeps {
	return ObjectiveDeps{TravelTime: l.TravelTime, Geocoder: l.LatLng, Places: l.Nearby}
}

// Objective is a named, weighted scoring rule. The set of implementations
// is closed: PriceDistance, LocationDistance, TravelTime and
// NearbyPlaceDistance.
type Objective interface {
	Name() string
	Weight() float64
	// Threshold returns the largest accepted raw score and true when the
	// objective is a hard constraint.
	Threshold() (float64, bool)
	// Calculate returns the raw score. Only lookups can fail, with
	// maps.ErrNoResult when the provider had no answer.
	Calculate(ctx context.Context, l *models.Listing) (float64, error)

	objective()
}

type base struct {
	name       string
	weight     float64
	constraint bool
	threshold  float64
}

func (b base) Name() string    { return b.name }
func (b base) Weight() float64 { return b.weight }
func (b base) objective()      {}

func (b base) Threshold() (float64, bool) {
	return b.threshold, b.constraint
}

// PriceDistance scores listing price minus the target price, in currency
// units. Cheaper than target is negative.
type PriceDistance struct {
	base
	Target int
}

func (o *PriceDistance) Calculate(_ context.Context, l *models.Listing) (float64, error) {
	return float64(l.Price - o.Target), nil
}

// LocationDistance scores the great-circle distance to Target in metres.
type LocationDistance struct {
	base
	Target models.LatLng
}

func (o *LocationDistance) Calculate(_ context.Context, l *models.Listing) (float64, error) {
	return maps.Distance(l.Location, o.Target), nil
}

// TravelTime scores the journey from the listing to Destination in seconds.
type TravelTime struct {
	base
	Destination   string
	Mode          string
	ArrivalTime   string
	DepartureTime string

	calc TravelTimer
}

func (o *TravelTime) Calculate(ctx context.Context, l *models.Listing) (float64, error) {
	d, err := o.calc.TravelTime(ctx, maps.TravelTimeRequest{
		Origin:        l.Location.String(),
		Destination:   o.Destination,
		Mode:          o.Mode,
		ArrivalTime:   o.ArrivalTime,
		DepartureTime: o.DepartureTime,
	})
	if err != nil {
		return 0, err
	}
	return d.Seconds(), nil
}

// NearbyPlaceDistance scores the distance in metres from the listing to
// the closest place of PlaceType.
type NearbyPlaceDistance struct {
	base
	PlaceType string

	places PlaceFinder
}

func (o *NearbyPlaceDistance) Calculate(ctx context.Context, l *models.Listing) (float64, error) {
	places, err := o.places.Find(ctx, l.Location, o.PlaceType)
	if err != nil {
		return 0, err
	}
	if len(places) == 0 {
		return 0, &maps.NoResultError{Lookup: "nearby_places", Query: o.PlaceType + " near " + l.Location.String()}
	}
	return maps.Distance(l.Location, places[0].Location), nil
}

// CalculateWeighted returns the raw score and raw × weight. The sign of
// the weight is applied as given.
func CalculateWeighted(ctx context.Context, o Objective, l *models.Listing) (models.ScoreResult, error) {
	score, err := o.Calculate(ctx, l)
	if err != nil {
		return models.ScoreResult{Objective: o.Name()}, err
	}
	return models.ScoreResult{
		Objective:     o.Name(),
		Score:         score,
		WeightedScore: score * o.Weight(),
		Available:     true,
	}, nil
}

// BuildObjectives turns specs into objectives, in order. Every problem is
// reported, joined into one error. Target addresses are geocoded here,
// once per run.
func BuildObjectives(ctx context.Context, specs []models.ObjectiveSpec, deps ObjectiveDeps) ([]Objective, error) {
	var errs []error
	seen := make(map[string]struct{}, len(specs))
	out := make([]Objective, 0, len(specs))

	for _, spec := range specs {
		if _, dup := seen[spec.Name]; dup {
			errs = append(errs, fmt.Errorf("%q: %w", spec.Name, ErrDuplicateObjective))
			continue
		}
		seen[spec.Name] = struct{}{}

		o, err := buildObjective(ctx, spec, deps)
		if err != nil {
			errs = append(errs, fmt.Errorf("objective %q: %w", spec.Name, err))
			continue
		}
		out = append(out, o)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func buildObjective(ctx context.Context, spec models.ObjectiveSpec, deps ObjectiveDeps) (Objective, error) {
	b := base{name: spec.Name, weight: spec.Weight, constraint: spec.IsConstraint}
	if spec.IsConstraint {
		if spec.Threshold == nil {
			return nil, ErrMissingThreshold
		}
		b.threshold = *spec.Threshold
	}

	switch spec.Kind {
	case models.KindPriceDistance:
		if spec.TargetPrice == nil {
			return nil, fmt.Errorf("%w: target_price", ErrMissingParameter)
		}
		return &PriceDistance{base: b, Target: *spec.TargetPrice}, nil

	case models.KindLocationDistance:
		switch {
		case spec.Target != nil:
			return &LocationDistance{base: b, Target: *spec.Target}, nil
		case spec.TargetAddress != "":
			if deps.Geocoder == nil {
				return nil, fmt.Errorf("%w: geocoder for target_address", ErrMissingParameter)
			}
			target, err := deps.Geocoder.Find(ctx, spec.TargetAddress)
			if err != nil {
				return nil, fmt.Errorf("geocode target_address: %w", err)
			}
			return &LocationDistance{base: b, Target: target}, nil
		default:
			return nil, fmt.Errorf("%w: target or target_address", ErrMissingParameter)
		}

	case models.KindTravelTime:
		if spec.Destination == "" {
			return nil, fmt.Errorf("%w: destination", ErrMissingParameter)
		}
		if deps.TravelTime == nil {
			return nil, fmt.Errorf("%w: travel time calculator", ErrMissingParameter)
		}
		if spec.ArrivalTime != "" && spec.DepartureTime != "" {
			return nil, ErrConflictingTimes
		}
		for _, t := range []string{spec.ArrivalTime, spec.DepartureTime} {
			if t == "" {
				continue
			}
			if _, _, err := maps.ParseTimeOfDay(t); err != nil {
				return nil, err
			}
		}
		mode := spec.Mode
		if mode == "" {
			mode = "transit"
		}
		if !travelModes[mode] {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
		}
		return &TravelTime{
			base:          b,
			Destination:   spec.Destination,
			Mode:          mode,
			ArrivalTime:   spec.ArrivalTime,
			DepartureTime: spec.DepartureTime,
			calc:          deps.TravelTime,
		}, nil

	case models.KindNearbyPlaceDistance:
		if spec.PlaceType == "" {
			return nil, fmt.Errorf("%w: place_type", ErrMissingParameter)
		}
		if deps.Places == nil {
			return nil, fmt.Errorf("%w: nearby places finder", ErrMissingParameter)
		}
		return &NearbyPlaceDistance{base: b, PlaceType: spec.PlaceType, places: deps.Places}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedObjectiveKind, spec.Kind)
	}
}
