package services

import (
	"context"
	"sort"

	"house-finder/models"
	"house-finder/utils"
)

// DefaultRankLimit caps how many listings a ranking keeps.
const DefaultRankLimit = 100

// FilterCounts tallies what a FilteredIterator saw.
type FilterCounts struct {
	Seen      int
	Invalid   int
	Violating int
	Accepted  int
}

// FilteredIterator passes through only valid listings that satisfy every
// constraint.
type FilteredIterator struct {
	src    EvaluatedIterator
	cur    *models.EvaluatedListing
	counts FilterCounts
}

func (f *FilteredIterator) Next(ctx context.Context) bool {
	for f.src.Next(ctx) {
		ev := f.src.Value()
		f.counts.Seen++
		switch {
		case !ev.IsValid:
			f.counts.Invalid++
		case !ev.SatisfiesConstraints:
			f.counts.Violating++
		default:
			f.counts.Accepted++
			f.cur = ev
			return true
		}
	}
	f.cur = nil
	return false
}

func (f *FilteredIterator) Value() *models.EvaluatedListing { return f.cur }

func (f *FilteredIterator) Err() error { return f.src.Err() }

// Counts returns the tallies so far.
func (f *FilteredIterator) Counts() FilterCounts { return f.counts }

// Ranker orders accepted listings by total score, lowest first: a positive
// weight penalizes its raw score and a negative one rewards it.
type Ranker struct {
	// Limit caps the ranking; zero or less keeps everything.
	Limit  int
	logger *utils.Logger
}

// NewRanker creates a Ranker keeping at most limit listings.
func NewRanker(limit int, logger *utils.Logger) *Ranker {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Ranker{Limit: limit, logger: logger}
}

// Filter wraps it in a lazy view of accepted listings.
func (r *Ranker) Filter(it EvaluatedIterator) *FilteredIterator {
	if f, ok := it.(*FilteredIterator); ok {
		return f
	}
	return &FilteredIterator{src: it}
}

// Rank drains the accepted listings of it and returns them sorted by
// ascending total score. Ties keep source order.
func (r *Ranker) Rank(ctx context.Context, it EvaluatedIterator) ([]*models.EvaluatedListing, error) {
	f := r.Filter(it)

	var ranked []*models.EvaluatedListing
	for f.Next(ctx) {
		ranked = append(ranked, f.Value())
	}
	if err := f.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalScore < ranked[j].TotalScore
	})
	if r.Limit > 0 && len(ranked) > r.Limit {
		ranked = ranked[:r.Limit]
	}

	c := f.Counts()
	r.logger.Info("[ranker] %d of %d listings satisfy the constraints (%d invalid, %d violating), keeping %d",
		c.Accepted, c.Seen, c.Invalid, c.Violating, len(ranked))
	return ranked, nil
}
