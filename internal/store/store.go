package store

import (
	"context"

	pl "github.com/HannahMarsh/PrettyLogger"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/data"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/errs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/exp/slog"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id              TEXT PRIMARY KEY,
	seed                BIGINT NOT NULL,
	users               INTEGER NOT NULL,
	attackers           INTEGER NOT NULL,
	capacity            INTEGER NOT NULL,
	risk_constant       DOUBLE PRECISION NOT NULL,
	risk_per_bucket     DOUBLE PRECISION NOT NULL,
	attack_probability  DOUBLE PRECISION NOT NULL,
	reveal_probability  DOUBLE PRECISION NOT NULL,
	max_ticks           INTEGER NOT NULL,
	ticks               INTEGER NOT NULL,
	clean               BOOLEAN NOT NULL,
	reason              TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tick_metrics (
	run_id              TEXT NOT NULL,
	tick                INTEGER NOT NULL,
	buckets             INTEGER NOT NULL,
	average_occupancy   DOUBLE PRECISION NOT NULL,
	users               INTEGER NOT NULL,
	attacked_buckets    INTEGER NOT NULL,
	evicted_this_tick   INTEGER NOT NULL,
	evicted_attackers   INTEGER NOT NULL,
	evicted_benign      INTEGER NOT NULL,
	remaining_attackers INTEGER NOT NULL,
	total_risk          DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, tick)
);
`

const insertTick = `
INSERT INTO tick_metrics (
	run_id, tick, buckets, average_occupancy, users, attacked_buckets,
	evicted_this_tick, evicted_attackers, evicted_benign, remaining_attackers, total_risk
) VALUES (
	:run_id, :tick, :buckets, :average_occupancy, :users, :attacked_buckets,
	:evicted_this_tick, :evicted_attackers, :evicted_benign, :remaining_attackers, :total_risk
)`

const insertRun = `
INSERT INTO runs (
	run_id, seed, users, attackers, capacity, risk_constant, risk_per_bucket,
	attack_probability, reveal_probability, max_ticks, ticks, clean, reason
) VALUES (
	:run_id, :seed, :users, :attackers, :capacity, :risk_constant, :risk_per_bucket,
	:attack_probability, :reveal_probability, :max_ticks, :ticks, :clean, :reason
)`

// Run is the stored summary of one simulation run.
type Run struct {
	RunId             string  `db:"run_id"`
	Seed              int64   `db:"seed"`
	Users             int     `db:"users"`
	Attackers         int     `db:"attackers"`
	Capacity          int     `db:"capacity"`
	RiskConstant      float64 `db:"risk_constant"`
	RiskPerBucket     float64 `db:"risk_per_bucket"`
	AttackProbability float64 `db:"attack_probability"`
	RevealProbability float64 `db:"reveal_probability"`
	MaxTicks          int     `db:"max_ticks"`
	Ticks             int     `db:"ticks"`
	Clean             bool    `db:"clean"`
	Reason            string  `db:"reason"`
}

// Store persists tick metrics and run summaries to postgres or sqlite3. It
// implements interfaces.MetricsSink.
type Store struct {
	db *sqlx.DB
}

func Open(driver, dsn string) (*Store, error) {
	if driver != "postgres" && driver != "sqlite3" {
		return nil, errs.Precondition("store.driver", "must be sqlite3 or postgres, got %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, pl.WrapError(err, "store.Open(): failed to open %s database", driver)
	}
	if driver == "sqlite3" {
		// an in-memory sqlite database lives and dies with its connection
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, pl.WrapError(err, "store.Open(): failed to reach %s database", driver)
	}
	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, pl.WrapError(err, "store.Open(): failed to create schema")
	}
	slog.Info("store ready", "driver", driver)
	return &Store{db: db}, nil
}

func (s *Store) Observe(m data.TickMetrics) error {
	if _, err := s.db.NamedExec(insertTick, m); err != nil {
		return pl.WrapError(err, "store.Observe(): failed to insert tick %d of run %s", m.Tick, m.RunId)
	}
	return nil
}

func (s *Store) SaveResult(r *data.Result) error {
	run := Run{
		RunId:             r.RunId,
		Seed:              r.P.Seed,
		Users:             r.P.Users,
		Attackers:         r.P.Attackers,
		Capacity:          r.P.Capacity,
		RiskConstant:      r.P.RiskConstant,
		RiskPerBucket:     r.P.RiskPerBucket,
		AttackProbability: r.P.AttackProbability,
		RevealProbability: r.P.RevealProbability,
		MaxTicks:          r.P.MaxTicks,
		Ticks:             r.Last().Tick,
		Clean:             r.Clean,
		Reason:            r.Reason,
	}
	if _, err := s.db.NamedExec(insertRun, run); err != nil {
		return pl.WrapError(err, "store.SaveResult(): failed to insert run %s", r.RunId)
	}
	return nil
}

// Ticks returns the stored observations of a run in tick order.
func (s *Store) Ticks(ctx context.Context, runId string) ([]data.TickMetrics, error) {
	ticks := make([]data.TickMetrics, 0)
	query := s.db.Rebind("SELECT * FROM tick_metrics WHERE run_id = ? ORDER BY tick")
	if err := s.db.SelectContext(ctx, &ticks, query, runId); err != nil {
		return nil, pl.WrapError(err, "store.Ticks(): failed to query run %s", runId)
	}
	return ticks, nil
}

func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	runs := make([]Run, 0)
	if err := s.db.SelectContext(ctx, &runs, "SELECT * FROM runs ORDER BY seed, run_id"); err != nil {
		return nil, pl.WrapError(err, "store.Runs(): failed to query runs")
	}
	return runs, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
