package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	"sitesight/internal/pipeline"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Postgres keeps the latest run in a single table. Each write replaces the
// table contents inside one transaction.
type Postgres struct {
	db    *sql.DB
	table string
}

func NewPostgres(db *sql.DB, table string) (*Postgres, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid postgres table name %q", table)
	}
	return &Postgres{db: db, table: table}, nil
}

func (p *Postgres) Name() string { return "postgres" }

// EnsureSchema creates the results table if it does not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		position          INTEGER PRIMARY KEY,
		run_id            UUID NOT NULL,
		generated_at      TIMESTAMPTZ NOT NULL,
		site_name         TEXT NOT NULL,
		rank_score        DOUBLE PRECISION NOT NULL,
		site_health_score DOUBLE PRECISION NOT NULL,
		rank_label        SMALLINT NOT NULL,
		health_signals    JSONB NOT NULL,
		recommendations   JSONB NOT NULL
	)`, p.table)
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", p.table, err)
	}
	return nil
}

func (p *Postgres) Write(ctx context.Context, run *pipeline.Run) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", p.table)); err != nil {
		return fmt.Errorf("clear %s: %w", p.table, err)
	}

	insert := fmt.Sprintf(`INSERT INTO %s
		(position, run_id, generated_at, site_name, rank_score, site_health_score, rank_label, health_signals, recommendations)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, p.table)

	for i, r := range run.Results {
		signals, err := json.Marshal(r.HealthSignals)
		if err != nil {
			return fmt.Errorf("encode health signals of %s: %w", r.SiteName, err)
		}
		recs, err := json.Marshal(r.Recommendations)
		if err != nil {
			return fmt.Errorf("encode recommendations of %s: %w", r.SiteName, err)
		}

		if _, err := tx.ExecContext(ctx, insert,
			i+1, run.RunID, run.GeneratedAt, r.SiteName, r.RankScore, r.SiteHealthScore, r.RankLabel, string(signals), string(recs),
		); err != nil {
			return fmt.Errorf("insert %s: %w", r.SiteName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
