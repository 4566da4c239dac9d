package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"house-finder/models"
	"house-finder/utils"
)

// topN is how many listings the summary highlights.
const topN = 5

type InsightService struct {
	logger *utils.Logger
	out    io.Writer
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger, out: os.Stdout}
}

// Generate summarizes a run from the filter tallies and the final ranking.
// Price figures and objective means cover ranked listings only.
func (s *InsightService) Generate(counts FilterCounts, ranked []*models.EvaluatedListing) *models.RunSummary {
	summary := &models.RunSummary{
		Evaluated:      counts.Seen,
		Invalid:        counts.Invalid,
		Violating:      counts.Violating,
		Ranked:         len(ranked),
		ObjectiveMeans: make(map[string]float64),
	}

	if len(ranked) == 0 {
		return summary
	}

	var total int
	summary.MinPrice = ranked[0].Listing.Price
	summary.MaxPrice = ranked[0].Listing.Price
	sums := make(map[string]float64)
	ns := make(map[string]int)

	for _, ev := range ranked {
		p := ev.Listing.Price
		total += p
		if p < summary.MinPrice {
			summary.MinPrice = p
		}
		if p > summary.MaxPrice {
			summary.MaxPrice = p
		}
		for _, r := range ev.Results {
			if !r.Available {
				continue
			}
			sums[r.Objective] += r.Score
			ns[r.Objective]++
		}
	}
	summary.AveragePrice = round2(float64(total) / float64(len(ranked)))
	for name, sum := range sums {
		summary.ObjectiveMeans[name] = round2(sum / float64(ns[name]))
	}

	if len(ranked) > topN {
		summary.Best = ranked[:topN]
	} else {
		summary.Best = ranked
	}
	return summary
}

func (s *InsightService) Print(r *models.RunSummary) {
	w := s.out
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🏠 HOUSE FINDER RUN SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Listings evaluated     : \033[1m%d\033[0m\n", r.Evaluated)
	fmt.Fprintf(w, "  Missing a score        : \033[1m%d\033[0m\n", r.Invalid)
	fmt.Fprintf(w, "  Violating a constraint : \033[1m%d\033[0m\n", r.Violating)
	fmt.Fprintf(w, "  Ranked                 : \033[1m%d\033[0m\n", r.Ranked)
	fmt.Fprintln(w)

	// Price Stats
	fmt.Fprintf(w, "\033[1;33m  Price Statistics (ranked listings)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.Ranked > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m£%.2f\033[0m\n", r.AveragePrice)
		fmt.Fprintf(w, "  Minimum price : \033[1;32m£%d\033[0m\n", r.MinPrice)
		fmt.Fprintf(w, "  Maximum price : \033[1;32m£%d\033[0m\n", r.MaxPrice)
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	// Objective means
	fmt.Fprintf(w, "\033[1;33m  Mean Raw Score per Objective\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ObjectiveMeans) == 0 {
		fmt.Fprintf(w, "  No scores available\n")
	} else {
		names := make([]string, 0, len(r.ObjectiveMeans))
		for name := range r.ObjectiveMeans {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-30s %12.2f\n", truncate(name, 28), r.ObjectiveMeans[name])
		}
	}
	fmt.Fprintln(w)

	// Best listings
	fmt.Fprintf(w, "\033[1;33m  Top %d Listings\033[0m\n", topN)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Best) == 0 {
		fmt.Fprintf(w, "  No listings satisfy the constraints\n")
	} else {
		for i, ev := range r.Best {
			fmt.Fprintf(w, "  \033[1m%d.\033[0m %-36s £%-6d \033[1;32m%10.2f\033[0m\n",
				i+1, truncate(ev.Listing.Address, 34), ev.Listing.Price, ev.TotalScore)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	if f < 0 {
		return -round2(-f)
	}
	return float64(int64(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
