package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"rankwatch/models"
)

// PostgresWriter archives snapshots and kept change events in PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	return newPostgresWriter(db, 10, 2*time.Second)
}

// newPostgresWriter pings db up to attempts times and migrates the schema.
// db is closed when either step fails.
func newPostgresWriter(db *sql.DB, attempts int, delay time.Duration) (*PostgresWriter, error) {
	var err error
	for i := 0; i < attempts; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(delay)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS ranking_items (
			id             SERIAL PRIMARY KEY,
			snapshot_date  DATE         NOT NULL,
			source         TEXT         NOT NULL DEFAULT '',
			rank           INTEGER      NOT NULL,
			item_code      TEXT         NOT NULL,
			item_name      TEXT         NOT NULL DEFAULT '',
			item_price     INTEGER      NOT NULL DEFAULT 0,
			review_average NUMERIC(3,2) NOT NULL DEFAULT 0,
			review_count   INTEGER      NOT NULL DEFAULT 0,
			item_url       TEXT         NOT NULL DEFAULT '',
			image_url      TEXT         NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			UNIQUE (snapshot_date, item_code)
		);

		CREATE TABLE IF NOT EXISTS change_events (
			id            SERIAL PRIMARY KEY,
			run_id        TEXT         NOT NULL,
			tier          VARCHAR(20)  NOT NULL,
			kind          VARCHAR(20)  NOT NULL,
			item_code     TEXT         NOT NULL,
			item_name     TEXT         NOT NULL DEFAULT '',
			rank          INTEGER      NOT NULL DEFAULT 0,
			prev_rank     INTEGER      NOT NULL DEFAULT 0,
			price         INTEGER      NOT NULL DEFAULT 0,
			prev_price    INTEGER      NOT NULL DEFAULT 0,
			price_percent NUMERIC(7,1) NOT NULL DEFAULT 0,
			score         INTEGER      NOT NULL,
			label         TEXT         NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_ranking_items_date ON ranking_items(snapshot_date);
		CREATE INDEX IF NOT EXISTS idx_ranking_items_code ON ranking_items(item_code);
		CREATE INDEX IF NOT EXISTS idx_change_events_run  ON change_events(run_id);
		CREATE INDEX IF NOT EXISTS idx_change_events_tier ON change_events(tier);
	`)
	return err
}

// WriteSnapshot replaces the rows stored for the snapshot's date. The delete
// and every insert batch share one transaction, so a failed write leaves the
// previous rows in place.
func (pw *PostgresWriter) WriteSnapshot(snap *models.Snapshot) error {
	if snap.Len() == 0 {
		return nil
	}
	day := snap.TakenAt.Format("2006-01-02")

	tx, err := pw.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM ranking_items WHERE snapshot_date = $1", day); err != nil {
		return fmt.Errorf("postgres: clear %s: %w", day, err)
	}

	const batchSize = 50
	for i := 0; i < len(snap.Items); i += batchSize {
		end := i + batchSize
		if end > len(snap.Items) {
			end = len(snap.Items)
		}
		if err := insertItems(tx, day, snap.Source, snap.Items[i:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit %s: %w", day, err)
	}
	return nil
}

func insertItems(tx *sql.Tx, day, source string, batch []*models.Item) error {
	const cols = 10
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, it := range batch {
		base := idx * cols
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10))
		valueArgs = append(valueArgs,
			day, source, it.Rank, it.Code, it.Name, it.Price, it.ReviewAverage, it.ReviewCount, it.URL, it.ImageURL)
	}

	query := fmt.Sprintf(`
		INSERT INTO ranking_items
			(snapshot_date, source, rank, item_code, item_name, item_price, review_average, review_count, item_url, image_url)
		VALUES %s
		ON CONFLICT (snapshot_date, item_code) DO NOTHING
	`, strings.Join(valueStrings, ","))

	if _, err := tx.Exec(query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert items: %w", err)
	}
	return nil
}

// PublishReport stores the kept change events of a report.
func (pw *PostgresWriter) PublishReport(r *models.ChangeReport) error {
	tx, err := pw.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO change_events
			(run_id, tier, kind, item_code, item_name, rank, prev_rank, price, prev_price, price_percent, score, label)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`)
	if err != nil {
		return fmt.Errorf("postgres: prepare: %w", err)
	}
	defer stmt.Close()

	for _, tier := range [][]models.ScoredChange{r.Changes.Critical, r.Changes.Important, r.Changes.Notable} {
		for _, sc := range tier {
			if _, err := stmt.Exec(r.RunID, sc.Tier, sc.Kind, sc.Code, sc.Name,
				sc.Rank, sc.PrevRank, sc.Price, sc.PrevPrice, sc.PricePercent, sc.Score, sc.Label); err != nil {
				return fmt.Errorf("postgres: insert change %s: %w", sc.Code, err)
			}
		}
	}
	return tx.Commit()
}

// LatestSnapshotDates returns up to n stored snapshot dates, newest first.
func (pw *PostgresWriter) LatestSnapshotDates(n int) ([]time.Time, error) {
	rows, err := pw.db.Query(`
		SELECT DISTINCT snapshot_date FROM ranking_items
		ORDER BY snapshot_date DESC
		LIMIT $1
	`, n)
	if err != nil {
		return nil, fmt.Errorf("postgres: snapshot dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("postgres: scan date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// FetchSnapshot loads the snapshot stored for day, rank ordered.
func (pw *PostgresWriter) FetchSnapshot(day time.Time) (*models.Snapshot, error) {
	rows, err := pw.db.Query(`
		SELECT source, rank, item_code, item_name, item_price, review_average, review_count, item_url, image_url
		FROM ranking_items
		WHERE snapshot_date = $1
		ORDER BY rank, item_code
	`, day.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch snapshot: %w", err)
	}
	defer rows.Close()

	snap := &models.Snapshot{TakenAt: day}
	for rows.Next() {
		it := &models.Item{}
		if err := rows.Scan(
			&snap.Source, &it.Rank, &it.Code, &it.Name, &it.Price,
			&it.ReviewAverage, &it.ReviewCount, &it.URL, &it.ImageURL,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		snap.Items = append(snap.Items, it)
	}
	if snap.Source == "" {
		snap.Source = "postgres:" + day.Format("2006-01-02")
	}
	return snap, rows.Err()
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
