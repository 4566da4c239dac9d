package models

// ObjectiveKind names one of the supported scoring rules.
type ObjectiveKind string

const (
	KindTravelTime          ObjectiveKind = "travel_time"
	KindPriceDistance       ObjectiveKind = "price_distance"
	KindLocationDistance    ObjectiveKind = "location_distance"
	KindNearbyPlaceDistance ObjectiveKind = "nearby_place_distance"
)

// ObjectiveSpec is the user configuration for one objective. Only the
// parameters relevant to Kind are read.
type ObjectiveSpec struct {
	Name         string
	Kind         ObjectiveKind
	Weight       float64
	IsConstraint bool
	// Threshold is the largest raw score a constraint accepts.
	Threshold *float64

	// travel_time
	Destination   string
	Mode          string
	ArrivalTime   string
	DepartureTime string

	// price_distance
	TargetPrice *int

	// location_distance
	Target        *LatLng
	TargetAddress string

	// nearby_place_distance
	PlaceType string
}

// ScoreResult is the outcome of one objective for one listing.
type ScoreResult struct {
	Objective     string  `json:"objective"`
	Score         float64 `json:"score"`
	WeightedScore float64 `json:"weighted_score"`
	Available     bool    `json:"available"`
	Reason        string  `json:"reason,omitempty"`
}

// EvaluatedListing is a listing annotated with its per-objective scores.
type EvaluatedListing struct {
	Listing              *Listing
	Results              []ScoreResult
	IsValid              bool
	SatisfiesConstraints bool
	TotalScore           float64
}

// Result returns the score for the named objective, if present.
func (e *EvaluatedListing) Result(name string) (ScoreResult, bool) {
	for _, r := range e.Results {
		if r.Objective == name {
			return r, true
		}
	}
	return ScoreResult{}, false
}

// RunSummary holds aggregate figures about an evaluation run.
type RunSummary struct {
	Evaluated      int
	Invalid        int
	Violating      int
	Ranked         int
	AveragePrice   float64
	MinPrice       int
	MaxPrice       int
	Best           []*EvaluatedListing
	ObjectiveMeans map[string]float64
}
