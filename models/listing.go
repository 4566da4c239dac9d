package models

import (
	"strconv"
	"time"
)

// LatLng is a WGS84 coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String formats the coordinate the way mapping APIs expect it: "lat,lng".
func (p LatLng) String() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

// Listing is one property advert as produced by a listing source.
// Listings are never mutated after creation.
type Listing struct {
	ID          string
	Location    LatLng
	Price       int
	URL         string
	PrintURL    string
	Address     string
	Description string
	Image       string
}

// Query describes a search against a listing source.
type Query struct {
	Area        string
	Type        string
	MinBedrooms int
	MaxBedrooms int
	MinPrice    int
	MaxPrice    int
}

// Place is a point of interest returned by a nearby search.
type Place struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Vicinity string   `json:"vicinity,omitempty"`
	Location LatLng   `json:"location"`
	Types    []string `json:"types,omitempty"`
}

// RunInfo identifies one end-to-end run.
type RunInfo struct {
	ID        string
	StartedAt time.Time
	Query     Query
}
