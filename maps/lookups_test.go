package maps

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"house-finder/models"
	"house-finder/storage"
)

func newTestLookups(t *testing.T, b *stubBackend, cache storage.Cache, now time.Time) *Lookups {
	t.Helper()
	gw, _ := newTestGateway(t, b, "k1")
	return NewLookups(gw, cache, LookupOptions{
		Location: time.UTC,
		Now:      func() time.Time { return now },
	})
}

func newTestCache(t *testing.T) *storage.FileCache {
	t.Helper()
	c, err := storage.OpenFileCache(filepath.Join(t.TempDir(), "cache.json"))
	if err != nil {
		t.Fatalf("OpenFileCache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestTravelTimeCachedAcrossDays(t *testing.T) {
	b := newStubBackend()
	b.routes = []Route{{Legs: []Leg{{Duration: 25 * time.Minute}}}}
	cache := newTestCache(t)
	req := TravelTimeRequest{Origin: "51.5,-0.1", Destination: "Bank", Mode: "transit", ArrivalTime: "09:00"}

	monday := time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC)
	got, err := newTestLookups(t, b, cache, monday).TravelTime.TravelTime(context.Background(), req)
	if err != nil {
		t.Fatalf("TravelTime: %v", err)
	}
	if got != 25*time.Minute {
		t.Errorf("duration: got %v, want 25m", got)
	}
	if b.lastDirReq.TrafficModel != TrafficModelPessimistic {
		t.Errorf("traffic model: got %q, want %q", b.lastDirReq.TrafficModel, TrafficModelPessimistic)
	}
	want := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	if !b.lastDirReq.ArrivalTime.Equal(want) {
		t.Errorf("arrival: got %v, want %v", b.lastDirReq.ArrivalTime, want)
	}

	// A later day resolves to a different instant but the same cache key.
	friday := time.Date(2024, 3, 8, 18, 0, 0, 0, time.UTC)
	calls := b.calls.Load()
	got, err = newTestLookups(t, b, cache, friday).TravelTime.TravelTime(context.Background(), req)
	if err != nil {
		t.Fatalf("TravelTime (cached): %v", err)
	}
	if got != 25*time.Minute {
		t.Errorf("cached duration: got %v, want 25m", got)
	}
	if n := b.calls.Load() - calls; n != 0 {
		t.Errorf("provider calls on cache hit: got %d, want 0", n)
	}
}

func TestTravelTimeWithoutTimesHasNoTrafficModel(t *testing.T) {
	b := newStubBackend()
	b.routes = []Route{{Legs: []Leg{{Duration: time.Minute}}}}
	l := newTestLookups(t, b, newTestCache(t), time.Now())

	if _, err := l.TravelTime.TravelTime(context.Background(), TravelTimeRequest{Origin: "a", Destination: "b", Mode: "walking"}); err != nil {
		t.Fatalf("TravelTime: %v", err)
	}
	if b.lastDirReq.TrafficModel != "" {
		t.Errorf("traffic model: got %q, want empty", b.lastDirReq.TrafficModel)
	}
	if !b.lastDirReq.ArrivalTime.IsZero() || !b.lastDirReq.DepartureTime.IsZero() {
		t.Errorf("times should be zero: %+v", b.lastDirReq)
	}
}

func TestTravelTimeNoRoute(t *testing.T) {
	b := newStubBackend()
	b.routes = []Route{{}}
	cache := newTestCache(t)
	l := newTestLookups(t, b, cache, time.Now())

	_, err := l.TravelTime.TravelTime(context.Background(), TravelTimeRequest{Origin: "a", Destination: "b", Mode: "driving"})
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("err: got %v, want ErrNoResult", err)
	}
	var nr *NoResultError
	if !errors.As(err, &nr) || nr.Lookup != opTravelTime {
		t.Errorf("err: got %#v, want NoResultError for %s", err, opTravelTime)
	}
	if cache.Len() != 0 {
		t.Errorf("no-result answers must not be cached, got %d entries", cache.Len())
	}
}

func TestTravelTimeBadTimeOfDay(t *testing.T) {
	b := newStubBackend()
	l := newTestLookups(t, b, newTestCache(t), time.Now())

	_, err := l.TravelTime.TravelTime(context.Background(), TravelTimeRequest{Origin: "a", Destination: "b", ArrivalTime: "9am"})
	if err == nil {
		t.Fatal("expected error for malformed arrival time")
	}
	if b.calls.Load() != 0 {
		t.Errorf("provider should not be called")
	}
}

func TestLatLngFinderTrimsAndCaches(t *testing.T) {
	b := newStubBackend()
	b.geocode["Bank, London"] = []GeocodeResult{
		{Location: models.LatLng{Lat: 51.5133, Lng: -0.0886}},
		{Location: models.LatLng{Lat: 1, Lng: 1}},
	}
	l := newTestLookups(t, b, newTestCache(t), time.Now())

	for _, in := range []string{"Bank, London", "  Bank, London\n"} {
		got, err := l.LatLng.Find(context.Background(), in)
		if err != nil {
			t.Fatalf("Find(%q): %v", in, err)
		}
		if got.Lat != 51.5133 || got.Lng != -0.0886 {
			t.Errorf("Find(%q): got %v, want first result", in, got)
		}
	}
	if got := b.calls.Load(); got != 1 {
		t.Errorf("provider calls: got %d, want 1", got)
	}
}

func TestLatLngFinderErrors(t *testing.T) {
	b := newStubBackend()
	l := newTestLookups(t, b, newTestCache(t), time.Now())

	if _, err := l.LatLng.Find(context.Background(), "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("empty: got %v, want ErrEmptyQuery", err)
	}
	if _, err := l.LatLng.Find(context.Background(), "Atlantis"); !errors.Is(err, ErrNoResult) {
		t.Errorf("unknown: got %v, want ErrNoResult", err)
	}
}

func TestLatLngFinderSharesConcurrentMisses(t *testing.T) {
	b := newStubBackend()
	b.geocode["Bank"] = []GeocodeResult{{Location: models.LatLng{Lat: 51.5, Lng: -0.09}}}
	b.gate = make(chan struct{})
	l := newTestLookups(t, b, newTestCache(t), time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.LatLng.Find(context.Background(), "Bank"); err != nil {
				t.Errorf("Find: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(b.gate)
	wg.Wait()

	if got := b.calls.Load(); got != 1 {
		t.Errorf("provider calls: got %d, want 1", got)
	}
}

func TestNearbyPlacesSortedByDistance(t *testing.T) {
	b := newStubBackend()
	origin := models.LatLng{Lat: 51.5, Lng: -0.1}
	b.places = []models.Place{
		{ID: "far", Location: models.LatLng{Lat: 51.52, Lng: -0.1}},
		{ID: "near", Location: models.LatLng{Lat: 51.501, Lng: -0.1}},
		{ID: "mid", Location: models.LatLng{Lat: 51.51, Lng: -0.1}},
	}
	l := newTestLookups(t, b, newTestCache(t), time.Now())

	got, err := l.Nearby.Find(context.Background(), origin, " gym ")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	want := []string{"near", "mid", "far"}
	if len(got) != len(want) {
		t.Fatalf("places: got %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("place %d: got %s, want %s", i, got[i].ID, id)
		}
	}

	if _, err := l.Nearby.Find(context.Background(), origin, "gym"); err != nil {
		t.Fatalf("Find (cached): %v", err)
	}
	if n := b.calls.Load(); n != 1 {
		t.Errorf("provider calls: got %d, want 1", n)
	}
}

func TestNearbyPlacesEmptyIsCached(t *testing.T) {
	b := newStubBackend()
	l := newTestLookups(t, b, newTestCache(t), time.Now())
	loc := models.LatLng{Lat: 1, Lng: 2}

	for i := 0; i < 2; i++ {
		got, err := l.Nearby.Find(context.Background(), loc, "cinema")
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("places: got %d, want 0", len(got))
		}
	}
	if n := b.calls.Load(); n != 1 {
		t.Errorf("provider calls: got %d, want 1", n)
	}
	if _, err := l.Nearby.Find(context.Background(), loc, ""); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("empty type: got %v, want ErrEmptyQuery", err)
	}
}
