package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"house-finder/models"
)

func sampleReport() *Report {
	return &Report{
		Run: models.RunInfo{
			ID:        "run-1",
			StartedAt: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
			Query:     models.Query{Area: "Shoreditch", Type: "rent"},
		},
		Objectives: []string{"price", "commute"},
		Listings: []*models.EvaluatedListing{{
			Listing: &models.Listing{
				ID: "42", Price: 1500, Address: "Flat <2> & Co",
				URL: "https://www.zoopla.co.uk/to-rent/details/42", PrintURL: "https://www.zoopla.co.uk/to-rent/details/print/42",
			},
			Results: []models.ScoreResult{
				{Objective: "price", Score: 100, WeightedScore: 100, Available: true},
				{Objective: "commute", Available: false, Reason: "no route"},
			},
			IsValid:    false,
			TotalScore: 100,
		}},
		Summary: &models.RunSummary{Evaluated: 3, Ranked: 1},
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sampleReport()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Shoreditch (rent)",
		"run-1",
		"1 of 3 listings satisfy the constraints.",
		"<th>commute</th>",
		"£1500",
		"100.0",
		"n/a",
		"Flat &lt;2&gt; &amp; Co",
		"details/print/42",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRenderEmpty(t *testing.T) {
	r := sampleReport()
	r.Listings = nil
	var buf bytes.Buffer
	if err := Render(&buf, r); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "No listings satisfy the constraints.") {
		t.Error("empty report should say so")
	}
}

func TestWriteHTMLCreatesDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.html")
	if err := WriteHTML(path, sampleReport()); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(b), "<!DOCTYPE html>") {
		t.Errorf("unexpected content: %.40s", b)
	}
}
