package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"house-finder/maps"
	"house-finder/models"
	"house-finder/utils"
)

// EvaluationError is a failure that aborts the whole run: anything an
// objective returns other than maps.ErrNoResult.
type EvaluationError struct {
	ListingID string
	Objective string
	Err       error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("services: evaluate listing %s, objective %q: %v", e.ListingID, e.Objective, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Evaluator applies a fixed list of objectives to listings.
type Evaluator struct {
	objectives []Objective
	logger     *utils.Logger
	metrics    *Metrics
}

// NewEvaluator creates an Evaluator. metrics may be nil.
func NewEvaluator(objectives []Objective, logger *utils.Logger, metrics *Metrics) *Evaluator {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Evaluator{objectives: objectives, logger: logger, metrics: metrics}
}

// Objectives returns the objectives in configuration order.
func (e *Evaluator) Objectives() []Objective { return e.objectives }

// Evaluate scores l against every objective in configuration order. An
// objective without an answer yields an unavailable result and marks the
// listing invalid; any other failure is returned as *EvaluationError.
func (e *Evaluator) Evaluate(ctx context.Context, l *models.Listing) (*models.EvaluatedListing, error) {
	start := time.Now()
	ev := &models.EvaluatedListing{
		Listing:              l,
		Results:              make([]models.ScoreResult, 0, len(e.objectives)),
		IsValid:              true,
		SatisfiesConstraints: true,
	}

	for _, o := range e.objectives {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		threshold, isConstraint := o.Threshold()

		r, err := CalculateWeighted(ctx, o, l)
		switch {
		case err == nil:
			ev.TotalScore += r.WeightedScore
			if isConstraint && r.Score > threshold {
				ev.SatisfiesConstraints = false
			}
		case errors.Is(err, maps.ErrNoResult):
			r.Available = false
			r.Reason = err.Error()
			ev.IsValid = false
			if isConstraint {
				ev.SatisfiesConstraints = false
			}
			e.metrics.IncUnavailable(o.Name())
			e.logger.Warn("[evaluator] %s: %s unavailable: %v", l.ID, o.Name(), err)
		default:
			return nil, &EvaluationError{ListingID: l.ID, Objective: o.Name(), Err: err}
		}
		ev.Results = append(ev.Results, r)
	}

	e.metrics.ObserveEvaluation(ev, time.Since(start))
	return ev, nil
}

// Stream evaluates listings from src lazily: each listing is pulled and
// evaluated only when Next is called on the returned iterator.
func (e *Evaluator) Stream(src ListingIterator) *EvaluationIterator {
	return &EvaluationIterator{eval: e, src: src}
}

// EvaluationIterator is the lazy result of Evaluator.Stream. It is single
// pass; restarting means streaming a fresh source.
type EvaluationIterator struct {
	eval *Evaluator
	src  ListingIterator
	cur  *models.EvaluatedListing
	err  error
	done bool
}

func (it *EvaluationIterator) Next(ctx context.Context) bool {
	if it.done {
		return false
	}
	if !it.src.Next(ctx) {
		it.done = true
		it.cur = nil
		if err := it.src.Err(); err != nil {
			it.err = fmt.Errorf("services: listing source: %w", err)
		}
		return false
	}
	ev, err := it.eval.Evaluate(ctx, it.src.Listing())
	if err != nil {
		it.done = true
		it.cur = nil
		it.err = err
		return false
	}
	it.cur = ev
	return true
}

func (it *EvaluationIterator) Value() *models.EvaluatedListing { return it.cur }

func (it *EvaluationIterator) Err() error { return it.err }

// EvaluateAll drains src and evaluates listings on up to workers
// goroutines, spacing job starts by rateLimitMs. Results keep source
// order. The first run-level error cancels the remaining work and is
// returned.
func (e *Evaluator) EvaluateAll(ctx context.Context, src ListingIterator, workers, rateLimitMs int) ([]*models.EvaluatedListing, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := utils.NewWorkerPool(workers, rateLimitMs)
	var (
		mu       sync.Mutex
		results  []*models.EvaluatedListing
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for i := 0; src.Next(ctx); i++ {
		l := src.Listing()
		mu.Lock()
		results = append(results, nil)
		mu.Unlock()

		pool.Submit(func() {
			if ctx.Err() != nil {
				return
			}
			ev, err := e.Evaluate(ctx, l)
			if err != nil {
				fail(err)
				return
			}
			mu.Lock()
			results[i] = ev
			mu.Unlock()
		})
	}
	pool.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := src.Err(); err != nil {
		return nil, fmt.Errorf("services: listing source: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.logger.Info("[evaluator] Evaluated %d listings with %d workers", len(results), workers)
	return results, nil
}
