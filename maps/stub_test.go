package maps

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"house-finder/models"
)

// stubProvider answers from fixed data and counts calls. quotaFor marks
// keys that always report ErrQuotaExceeded.
type stubProvider struct {
	key    string
	shared *stubBackend
}

type stubBackend struct {
	mu       sync.Mutex
	quotaFor map[string]bool
	// rejectKey makes the factory fail for a key.
	rejectKey map[string]bool
	// failFirst makes the first N calls report quota regardless of key.
	failFirst int32

	calls      atomic.Int32
	lastDirReq DirectionsRequest
	geocode    map[string][]GeocodeResult
	routes     []Route
	places     []models.Place
	gate       chan struct{}
}

func newStubBackend() *stubBackend {
	return &stubBackend{quotaFor: map[string]bool{}, rejectKey: map[string]bool{}, geocode: map[string][]GeocodeResult{}}
}

func (b *stubBackend) factory(key string) (Provider, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejectKey[key] {
		return nil, errors.New("invalid key " + key)
	}
	return &stubProvider{key: key, shared: b}, nil
}

func (b *stubBackend) check(key string) error {
	n := b.calls.Add(1)
	if n <= atomic.LoadInt32(&b.failFirst) {
		return ErrQuotaExceeded
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.quotaFor[key] {
		return ErrQuotaExceeded
	}
	return nil
}

func (p *stubProvider) Geocode(_ context.Context, address string) ([]GeocodeResult, error) {
	if err := p.shared.check(p.key); err != nil {
		return nil, err
	}
	if p.shared.gate != nil {
		<-p.shared.gate
	}
	return p.shared.geocode[address], nil
}

func (p *stubProvider) Directions(_ context.Context, req DirectionsRequest) ([]Route, error) {
	if err := p.shared.check(p.key); err != nil {
		return nil, err
	}
	p.shared.mu.Lock()
	p.shared.lastDirReq = req
	p.shared.mu.Unlock()
	return p.shared.routes, nil
}

func (p *stubProvider) PlacesNearby(_ context.Context, _ NearbyRequest) ([]models.Place, error) {
	if err := p.shared.check(p.key); err != nil {
		return nil, err
	}
	out := make([]models.Place, len(p.shared.places))
	copy(out, p.shared.places)
	return out, nil
}
