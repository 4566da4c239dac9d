package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"house-finder/models"
)

// PostgresWriter persists ranked listings to the evaluations table, one
// row per listing per run.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := openPostgres(dsn)
	if err != nil {
		return nil, err
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS evaluations (
			id          SERIAL PRIMARY KEY,
			run_id      UUID          NOT NULL,
			rank        INTEGER       NOT NULL,
			listing_id  TEXT          NOT NULL,
			address     TEXT          NOT NULL DEFAULT '',
			price       INTEGER       NOT NULL DEFAULT 0,
			latitude    DOUBLE PRECISION NOT NULL,
			longitude   DOUBLE PRECISION NOT NULL,
			url         TEXT          NOT NULL DEFAULT '',
			total_score DOUBLE PRECISION NOT NULL,
			results     JSONB         NOT NULL,
			created_at  TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
			UNIQUE (run_id, listing_id)
		);

		CREATE INDEX IF NOT EXISTS idx_evaluations_run   ON evaluations(run_id);
		CREATE INDEX IF NOT EXISTS idx_evaluations_score ON evaluations(total_score);
	`)
	return err
}

// Write batch-inserts the ranked listings of run.
func (pw *PostgresWriter) Write(run models.RunInfo, ranked []*models.EvaluatedListing) error {
	if len(ranked) == 0 {
		return nil
	}

	const batchSize = 50
	for i := 0; i < len(ranked); i += batchSize {
		end := i + batchSize
		if end > len(ranked) {
			end = len(ranked)
		}
		if err := pw.insertBatch(run.ID, i, ranked[i:end]); err != nil {
			return fmt.Errorf("postgres: insert evaluations: %w", err)
		}
	}
	return nil
}

func (pw *PostgresWriter) insertBatch(runID string, offset int, batch []*models.EvaluatedListing) error {
	const cols = 10
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, e := range batch {
		results, err := json.Marshal(e.Results)
		if err != nil {
			return err
		}
		base := idx * cols
		placeholders := make([]string, cols)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")

		l := e.Listing
		valueArgs = append(valueArgs,
			runID, offset+idx+1, l.ID, l.Address, l.Price,
			l.Location.Lat, l.Location.Lng, l.URL, e.TotalScore, string(results))
	}

	query := fmt.Sprintf(`
		INSERT INTO evaluations (run_id, rank, listing_id, address, price, latitude, longitude, url, total_score, results)
		VALUES %s
		ON CONFLICT (run_id, listing_id) DO NOTHING
	`, strings.Join(valueStrings, ","))

	_, err := pw.db.Exec(query, valueArgs...)
	return err
}

// FetchRun loads the stored ranking of a run in rank order.
func (pw *PostgresWriter) FetchRun(runID string) ([]*models.EvaluatedListing, error) {
	rows, err := pw.db.Query(`
		SELECT listing_id, address, price, latitude, longitude, url, total_score, results
		FROM evaluations
		WHERE run_id = $1
		ORDER BY rank
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch run: %w", err)
	}
	defer rows.Close()

	var out []*models.EvaluatedListing
	for rows.Next() {
		l := &models.Listing{}
		e := &models.EvaluatedListing{Listing: l, IsValid: true, SatisfiesConstraints: true}
		var results []byte
		if err := rows.Scan(
			&l.ID, &l.Address, &l.Price, &l.Location.Lat, &l.Location.Lng,
			&l.URL, &e.TotalScore, &results,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		if err := json.Unmarshal(results, &e.Results); err != nil {
			return nil, fmt.Errorf("postgres: decode results: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
