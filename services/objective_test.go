package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"house-finder/maps"
	"house-finder/models"
)

func buildOne(t *testing.T, spec models.ObjectiveSpec, deps ObjectiveDeps) Objective {
	t.Helper()
	objs, err := BuildObjectives(context.Background(), []models.ObjectiveSpec{spec}, deps)
	if err != nil {
		t.Fatalf("BuildObjectives: %v", err)
	}
	return objs[0]
}

func TestPriceDistanceScore(t *testing.T) {
	o := buildOne(t, models.ObjectiveSpec{
		Name: "price", Kind: models.KindPriceDistance, Weight: 1, TargetPrice: ptr(1400),
	}, ObjectiveDeps{})
	l := &models.Listing{ID: "1", Price: 1500, Location: models.LatLng{Lat: 51.5, Lng: -0.1}}

	r, err := CalculateWeighted(context.Background(), o, l)
	if err != nil {
		t.Fatalf("CalculateWeighted: %v", err)
	}
	if r.Score != 100 || r.WeightedScore != 100 {
		t.Errorf("got %v/%v, want 100/100", r.Score, r.WeightedScore)
	}
	if !r.Available {
		t.Error("result should be available")
	}
}

func TestPriceDistanceSignedAndNegativeWeight(t *testing.T) {
	o := buildOne(t, models.ObjectiveSpec{
		Name: "price", Kind: models.KindPriceDistance, Weight: -2, TargetPrice: ptr(1400),
	}, ObjectiveDeps{})

	r, err := CalculateWeighted(context.Background(), o, &models.Listing{Price: 1300})
	if err != nil {
		t.Fatalf("CalculateWeighted: %v", err)
	}
	if r.Score != -100 || r.WeightedScore != 200 {
		t.Errorf("got %v/%v, want -100/200", r.Score, r.WeightedScore)
	}
}

func TestLocationDistanceSamePoint(t *testing.T) {
	target := models.LatLng{Lat: 51.5, Lng: -0.1}
	o := buildOne(t, models.ObjectiveSpec{
		Name: "centre", Kind: models.KindLocationDistance, Weight: 2, Target: &target,
	}, ObjectiveDeps{})

	r, err := CalculateWeighted(context.Background(), o, &models.Listing{Location: target})
	if err != nil {
		t.Fatalf("CalculateWeighted: %v", err)
	}
	if r.Score != 0 || r.WeightedScore != 0 {
		t.Errorf("got %v/%v, want 0/0", r.Score, r.WeightedScore)
	}
}

func TestLocationDistanceGeocodesAddressOnce(t *testing.T) {
	geo := fakeGeocoder{"Bank": {Lat: 51.5, Lng: -0.1}}
	o := buildOne(t, models.ObjectiveSpec{
		Name: "bank", Kind: models.KindLocationDistance, Weight: 1, TargetAddress: "Bank",
	}, ObjectiveDeps{Geocoder: geo})

	ld, ok := o.(*LocationDistance)
	if !ok {
		t.Fatalf("got %T, want *LocationDistance", o)
	}
	if ld.Target != geo["Bank"] {
		t.Errorf("target: got %v, want %v", ld.Target, geo["Bank"])
	}
}

func TestTravelTimeScoreInSeconds(t *testing.T) {
	tt := &fakeTravel{durations: map[string]time.Duration{"51.5,-0.1": 30 * time.Minute}}
	o := buildOne(t, models.ObjectiveSpec{
		Name: "commute", Kind: models.KindTravelTime, Weight: 0.5,
		Destination: "Bank", Mode: "transit", ArrivalTime: "09:00",
	}, ObjectiveDeps{TravelTime: tt})

	r, err := CalculateWeighted(context.Background(), o, &models.Listing{Location: models.LatLng{Lat: 51.5, Lng: -0.1}})
	if err != nil {
		t.Fatalf("CalculateWeighted: %v", err)
	}
	if r.Score != 1800 || r.WeightedScore != 900 {
		t.Errorf("got %v/%v, want 1800/900", r.Score, r.WeightedScore)
	}
}

func TestNearbyPlaceDistance(t *testing.T) {
	home := models.LatLng{Lat: 51.5, Lng: -0.1}
	places := fakePlaces{{ID: "gym", Location: models.LatLng{Lat: 51.501, Lng: -0.1}}}
	o := buildOne(t, models.ObjectiveSpec{
		Name: "gym", Kind: models.KindNearbyPlaceDistance, Weight: 1, PlaceType: "gym",
	}, ObjectiveDeps{Places: places})

	got, err := o.Calculate(context.Background(), &models.Listing{Location: home})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if want := maps.Distance(home, places[0].Location); math.Abs(got-want) > 1e-9 {
		t.Errorf("got %v, want %v", got, want)
	}

	empty := buildOne(t, models.ObjectiveSpec{
		Name: "pool", Kind: models.KindNearbyPlaceDistance, Weight: 1, PlaceType: "pool",
	}, ObjectiveDeps{Places: fakePlaces{}})
	if _, err := empty.Calculate(context.Background(), &models.Listing{Location: home}); !errors.Is(err, maps.ErrNoResult) {
		t.Errorf("no places: got %v, want ErrNoResult", err)
	}
}

func TestBuildObjectivesValidation(t *testing.T) {
	deps := ObjectiveDeps{TravelTime: &fakeTravel{}, Geocoder: fakeGeocoder{}, Places: fakePlaces{}}

	tests := []struct {
		name string
		spec models.ObjectiveSpec
		want error
	}{
		{"unknown kind", models.ObjectiveSpec{Name: "x", Kind: "school_rating"}, ErrUnsupportedObjectiveKind},
		{"constraint without threshold", models.ObjectiveSpec{Name: "x", Kind: models.KindPriceDistance, TargetPrice: ptr(1), IsConstraint: true}, ErrMissingThreshold},
		{"price without target", models.ObjectiveSpec{Name: "x", Kind: models.KindPriceDistance}, ErrMissingParameter},
		{"location without target", models.ObjectiveSpec{Name: "x", Kind: models.KindLocationDistance}, ErrMissingParameter},
		{"travel without destination", models.ObjectiveSpec{Name: "x", Kind: models.KindTravelTime}, ErrMissingParameter},
		{"travel with both times", models.ObjectiveSpec{Name: "x", Kind: models.KindTravelTime, Destination: "Bank", ArrivalTime: "09:00", DepartureTime: "08:00"}, ErrConflictingTimes},
		{"travel with unknown mode", models.ObjectiveSpec{Name: "x", Kind: models.KindTravelTime, Destination: "Bank", Mode: "bus"}, ErrUnsupportedMode},
		{"nearby without type", models.ObjectiveSpec{Name: "x", Kind: models.KindNearbyPlaceDistance}, ErrMissingParameter},
		{"unknown target address", models.ObjectiveSpec{Name: "x", Kind: models.KindLocationDistance, TargetAddress: "Atlantis"}, maps.ErrNoResult},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildObjectives(context.Background(), []models.ObjectiveSpec{tt.spec}, deps)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuildObjectivesBadTimeOfDay(t *testing.T) {
	_, err := BuildObjectives(context.Background(), []models.ObjectiveSpec{{
		Name: "commute", Kind: models.KindTravelTime, Destination: "Bank", ArrivalTime: "9am",
	}}, ObjectiveDeps{TravelTime: &fakeTravel{}})
	if err == nil {
		t.Error("expected error for malformed arrival time")
	}
}

func TestBuildObjectivesKeepsOrderAndRejectsDuplicates(t *testing.T) {
	specs := []models.ObjectiveSpec{
		{Name: "b", Kind: models.KindPriceDistance, TargetPrice: ptr(1), Weight: 1},
		{Name: "a", Kind: models.KindLocationDistance, Target: &models.LatLng{}, Weight: 1},
	}
	objs, err := BuildObjectives(context.Background(), specs, ObjectiveDeps{})
	if err != nil {
		t.Fatalf("BuildObjectives: %v", err)
	}
	if objs[0].Name() != "b" || objs[1].Name() != "a" {
		t.Errorf("order: got %s,%s want b,a", objs[0].Name(), objs[1].Name())
	}

	_, err = BuildObjectives(context.Background(), append(specs, specs[0]), ObjectiveDeps{})
	if !errors.Is(err, ErrDuplicateObjective) {
		t.Errorf("duplicate: got %v, want ErrDuplicateObjective", err)
	}
}

func TestBuildObjectivesDefaultsTravelMode(t *testing.T) {
	o := buildOne(t, models.ObjectiveSpec{
		Name: "commute", Kind: models.KindTravelTime, Destination: "Bank",
	}, ObjectiveDeps{TravelTime: &fakeTravel{}})
	if got := o.(*TravelTime).Mode; got != "transit" {
		t.Errorf("mode: got %q, want transit", got)
	}
}
