package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/thesis-cli/internal/db"
	"github.com/sells-group/thesis-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_company":     `SELECT id, ticker, name, watchlist_priority, next_earnings_date, created_at, updated_at FROM companies WHERE ticker = $1`,
	"active_thesis":   `SELECT ` + thesisColumns + ` FROM theses WHERE company_id = $1 AND status = 'active'`,
	"latest_ratings":  `SELECT id, company_id, strong_buy, buy, hold, sell, strong_sell, source_date, created_at FROM analyst_ratings WHERE company_id = $1 ORDER BY source_date DESC, created_at DESC LIMIT 1`,
	"append_evidence": `INSERT INTO hypothesis_evidence (id, hypothesis_id, direction, summary, source_ref, source_date, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"guidance_head":   `SELECT ` + guidanceColumns + ` FROM guidance g WHERE g.company_id = $1 AND g.metric_name = $2 AND NOT EXISTS (SELECT 1 FROM guidance x WHERE x.supersedes = g.id) ORDER BY g.created_at DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	ticker             TEXT NOT NULL UNIQUE,
	name               TEXT NOT NULL DEFAULT '',
	watchlist_priority TEXT NOT NULL DEFAULT 'standard',
	next_earnings_date TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS analyst_ratings (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id  TEXT NOT NULL REFERENCES companies(id),
	strong_buy  INTEGER NOT NULL DEFAULT 0,
	buy         INTEGER NOT NULL DEFAULT 0,
	hold        INTEGER NOT NULL DEFAULT 0,
	sell        INTEGER NOT NULL DEFAULT 0,
	strong_sell INTEGER NOT NULL DEFAULT 0,
	source_date TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS theses (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id           TEXT NOT NULL REFERENCES companies(id),
	position_type        TEXT NOT NULL,
	market_view          TEXT NOT NULL DEFAULT '',
	our_view             TEXT NOT NULL DEFAULT '',
	variant_edge         TEXT NOT NULL DEFAULT '',
	confidence_bull      DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence_base      DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence_bear      DOUBLE PRECISION NOT NULL DEFAULT 0,
	catalyst_description TEXT NOT NULL DEFAULT '',
	catalyst_deadline    TIMESTAMPTZ,
	review_date          TIMESTAMPTZ,
	status               TEXT NOT NULL DEFAULT 'active',
	version              INTEGER NOT NULL DEFAULT 1,
	close_reason         TEXT,
	closed_at            TIMESTAMPTZ,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS uniq_active_thesis
	ON theses(company_id) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS hypotheses (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	thesis_id          TEXT NOT NULL REFERENCES theses(id),
	hypothesis         TEXT NOT NULL,
	counter_hypothesis TEXT NOT NULL DEFAULT '',
	confidence         DOUBLE PRECISION NOT NULL DEFAULT 50,
	status             TEXT NOT NULL DEFAULT 'active',
	scope_tag          TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS hypothesis_evidence (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	hypothesis_id TEXT NOT NULL REFERENCES hypotheses(id),
	direction     TEXT NOT NULL,
	summary       TEXT NOT NULL,
	source_ref    TEXT NOT NULL DEFAULT '',
	source_date   TIMESTAMPTZ NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS kill_criteria (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	thesis_id          TEXT NOT NULL REFERENCES theses(id),
	metric_name        TEXT NOT NULL,
	threshold_value    DOUBLE PRECISION NOT NULL,
	threshold_operator TEXT NOT NULL,
	category           TEXT NOT NULL DEFAULT 'review',
	description        TEXT NOT NULL DEFAULT '',
	triggered          BOOLEAN NOT NULL DEFAULT FALSE,
	triggered_date     TIMESTAMPTZ,
	observed_value     DOUBLE PRECISION,
	triggered_evidence TEXT NOT NULL DEFAULT '',
	note               TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS guidance (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id   TEXT NOT NULL REFERENCES companies(id),
	metric_name  TEXT NOT NULL,
	value_low    DOUBLE PRECISION NOT NULL,
	value_high   DOUBLE PRECISION NOT NULL,
	unit         TEXT NOT NULL DEFAULT '',
	period       TEXT NOT NULL DEFAULT '',
	qualifier    TEXT NOT NULL,
	revision_pct DOUBLE PRECISION,
	source_date  TIMESTAMPTZ NOT NULL,
	supersedes   TEXT REFERENCES guidance(id),
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS uniq_guidance_supersedes
	ON guidance(supersedes) WHERE supersedes IS NOT NULL;

CREATE UNIQUE INDEX IF NOT EXISTS uniq_guidance_root
	ON guidance(company_id, metric_name) WHERE supersedes IS NULL;

CREATE TABLE IF NOT EXISTS classifications (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id         TEXT NOT NULL REFERENCES companies(id),
	filing_type        TEXT NOT NULL,
	filing_date        TIMESTAMPTZ NOT NULL,
	raw_score          DOUBLE PRECISION NOT NULL,
	calibrated_score   DOUBLE PRECISION NOT NULL,
	urgency_tier       TEXT NOT NULL,
	report_type        TEXT NOT NULL,
	contrarian_thesis  TEXT NOT NULL DEFAULT '',
	consensus_strength DOUBLE PRECISION,
	consensus_missing  BOOLEAN NOT NULL DEFAULT FALSE,
	dampener           DOUBLE PRECISION NOT NULL DEFAULT 1,
	rejected_findings  INTEGER NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS decision_log (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id    TEXT NOT NULL,
	thesis_id     TEXT,
	decision_type TEXT NOT NULL,
	decision_text TEXT NOT NULL,
	rationale     TEXT NOT NULL DEFAULT '',
	snapshot      JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_theses_company ON theses(company_id);
CREATE INDEX IF NOT EXISTS idx_hypotheses_thesis ON hypotheses(thesis_id);
CREATE INDEX IF NOT EXISTS idx_evidence_hypothesis ON hypothesis_evidence(hypothesis_id);
CREATE INDEX IF NOT EXISTS idx_kill_thesis ON kill_criteria(thesis_id);
CREATE INDEX IF NOT EXISTS idx_guidance_metric ON guidance(company_id, metric_name);
CREATE INDEX IF NOT EXISTS idx_classifications_company ON classifications(company_id);
CREATE INDEX IF NOT EXISTS idx_decisions_company ON decision_log(company_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// isPgUniqueViolation reports whether err is a Postgres unique_violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Companies

func (s *PostgresStore) UpsertCompany(ctx context.Context, c *model.Company) (*model.Company, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO companies (id, ticker, name, watchlist_priority, next_earnings_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (ticker) DO UPDATE SET
			name = EXCLUDED.name,
			watchlist_priority = EXCLUDED.watchlist_priority,
			next_earnings_date = EXCLUDED.next_earnings_date,
			updated_at = EXCLUDED.updated_at
		 RETURNING id, ticker, name, watchlist_priority, next_earnings_date, created_at, updated_at`,
		c.ID, c.Ticker, c.Name, string(c.WatchlistPriority), c.NextEarningsDate, now, now,
	)
	out, err := scanPgCompany(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert company %s", c.Ticker)
	}
	return out, nil
}

func (s *PostgresStore) GetCompany(ctx context.Context, ticker string) (*model.Company, error) {
	row := s.pool.QueryRow(ctx, "get_company", strings.ToUpper(strings.TrimSpace(ticker)))
	c, err := scanPgCompany(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "company %s", ticker)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get company")
	}
	return c, nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ticker, name, watchlist_priority, next_earnings_date, created_at, updated_at
		 FROM companies ORDER BY ticker`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		c, err := scanPgCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		companies = append(companies, *c)
	}
	return companies, eris.Wrap(rows.Err(), "postgres: list companies iterate")
}

// Analyst ratings

func (s *PostgresStore) SaveRatings(ctx context.Context, companyID string, counts model.RatingCounts, sourceDate time.Time) (*model.RatingsSnapshot, error) {
	if err := counts.Validate(); err != nil {
		return nil, err
	}
	snap := &model.RatingsSnapshot{
		ID:         uuid.New().String(),
		CompanyID:  companyID,
		Counts:     counts,
		SourceDate: sourceDate,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analyst_ratings (id, company_id, strong_buy, buy, hold, sell, strong_sell, source_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		snap.ID, companyID, counts.StrongBuy, counts.Buy, counts.Hold, counts.Sell, counts.StrongSell,
		sourceDate, snap.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: save ratings")
	}
	return snap, nil
}

func (s *PostgresStore) LatestRatings(ctx context.Context, companyID string) (*model.RatingsSnapshot, error) {
	row := s.pool.QueryRow(ctx, "latest_ratings", companyID)
	var snap model.RatingsSnapshot
	err := row.Scan(&snap.ID, &snap.CompanyID,
		&snap.Counts.StrongBuy, &snap.Counts.Buy, &snap.Counts.Hold,
		&snap.Counts.Sell, &snap.Counts.StrongSell,
		&snap.SourceDate, &snap.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest ratings")
	}
	return &snap, nil
}

// Theses

func (s *PostgresStore) CreateThesis(ctx context.Context, t *model.Thesis) (*model.Thesis, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	t.ID = uuid.New().String()
	t.Status = model.ThesisActive
	t.CreatedAt = now
	t.UpdatedAt = now

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin create thesis")
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM theses WHERE company_id = $1`, t.CompanyID)
	if err := row.Scan(&t.Version); err != nil {
		return nil, eris.Wrap(err, "postgres: next thesis version")
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO theses
			(id, company_id, position_type, market_view, our_view, variant_edge,
			 confidence_bull, confidence_base, confidence_bear,
			 catalyst_description, catalyst_deadline, review_date,
			 status, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		t.ID, t.CompanyID, string(t.PositionType), t.MarketView, t.OurView, t.VariantEdge,
		t.ConfidenceBull, t.ConfidenceBase, t.ConfidenceBear,
		t.CatalystDescription, t.CatalystDeadline, t.ReviewDate,
		string(t.Status), t.Version, now, now,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, eris.Wrapf(model.ErrDuplicateActiveThesis, "company %s", t.CompanyID)
		}
		return nil, eris.Wrap(err, "postgres: insert thesis")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit create thesis")
	}
	return t, nil
}

func (s *PostgresStore) GetThesis(ctx context.Context, id string) (*model.Thesis, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+thesisColumns+` FROM theses WHERE id = $1`, id)
	t, err := scanPgThesis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "thesis %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get thesis")
	}
	return t, nil
}

func (s *PostgresStore) ActiveThesis(ctx context.Context, companyID string) (*model.Thesis, error) {
	row := s.pool.QueryRow(ctx, "active_thesis", companyID)
	t, err := scanPgThesis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: active thesis")
	}
	return t, nil
}

func (s *PostgresStore) ListTheses(ctx context.Context, companyID string) ([]model.Thesis, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+thesisColumns+` FROM theses WHERE company_id = $1 ORDER BY version DESC`, companyID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list theses")
	}
	defer rows.Close()

	var theses []model.Thesis
	for rows.Next() {
		t, err := scanPgThesis(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan thesis")
		}
		theses = append(theses, *t)
	}
	return theses, eris.Wrap(rows.Err(), "postgres: list theses iterate")
}

func (s *PostgresStore) CloseThesis(ctx context.Context, id string, status model.ThesisStatus, reason model.CloseReason, closedAt time.Time) error {
	if status != model.ThesisClosed && status != model.ThesisInvalidated {
		return eris.Wrapf(model.ErrValidation, "close thesis: status %q is not terminal", status)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE theses SET status = $1, close_reason = $2, closed_at = $3, updated_at = $4
		 WHERE id = $5 AND status = 'active'`,
		string(status), string(reason), closedAt.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: close thesis %s", id)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing thesis from one already closed.
		if _, err := s.GetThesis(ctx, id); err != nil {
			return err
		}
		return eris.Wrapf(model.ErrAlreadyClosed, "thesis %s", id)
	}
	return nil
}

// Hypotheses and evidence

func (s *PostgresStore) CreateHypothesis(ctx context.Context, h *model.Hypothesis) (*model.Hypothesis, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	h.ID = uuid.New().String()
	if h.Status == "" {
		h.Status = model.HypothesisActive
	}
	h.CreatedAt = now
	h.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO hypotheses (id, thesis_id, hypothesis, counter_hypothesis, confidence, status, scope_tag, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		h.ID, h.ThesisID, h.Text, h.CounterText, h.Confidence, string(h.Status), h.ScopeTag, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert hypothesis")
	}
	return h, nil
}

func (s *PostgresStore) GetHypothesis(ctx context.Context, id string) (*model.Hypothesis, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, thesis_id, hypothesis, counter_hypothesis, confidence, status, scope_tag, created_at, updated_at
		 FROM hypotheses WHERE id = $1`, id)
	var h model.Hypothesis
	err := row.Scan(&h.ID, &h.ThesisID, &h.Text, &h.CounterText, &h.Confidence, &h.Status, &h.ScopeTag, &h.CreatedAt, &h.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "hypothesis %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get hypothesis")
	}
	return &h, nil
}

func (s *PostgresStore) ListHypotheses(ctx context.Context, thesisID string) ([]model.Hypothesis, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, thesis_id, hypothesis, counter_hypothesis, confidence, status, scope_tag, created_at, updated_at
		 FROM hypotheses WHERE thesis_id = $1 ORDER BY created_at`, thesisID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list hypotheses")
	}
	defer rows.Close()

	var hyps []model.Hypothesis
	for rows.Next() {
		var h model.Hypothesis
		if err := rows.Scan(&h.ID, &h.ThesisID, &h.Text, &h.CounterText, &h.Confidence, &h.Status, &h.ScopeTag, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan hypothesis")
		}
		hyps = append(hyps, h)
	}
	return hyps, eris.Wrap(rows.Err(), "postgres: list hypotheses iterate")
}

func (s *PostgresStore) UpdateHypothesis(ctx context.Context, id string, status model.HypothesisStatus, confidence float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE hypotheses SET status = $1, confidence = $2, updated_at = $3 WHERE id = $4`,
		string(status), confidence, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update hypothesis %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "hypothesis %s", id)
	}
	return nil
}

func (s *PostgresStore) AppendEvidence(ctx context.Context, e *model.Evidence) (*model.Evidence, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx, "append_evidence",
		e.ID, e.HypothesisID, string(e.Direction), e.Summary, e.SourceRef, e.SourceDate, e.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: append evidence")
	}
	return e, nil
}

func (s *PostgresStore) ListEvidence(ctx context.Context, hypothesisID string) ([]model.Evidence, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, hypothesis_id, direction, summary, source_ref, source_date, created_at
		 FROM hypothesis_evidence WHERE hypothesis_id = $1 ORDER BY created_at, id`, hypothesisID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list evidence")
	}
	defer rows.Close()

	var entries []model.Evidence
	for rows.Next() {
		var e model.Evidence
		if err := rows.Scan(&e.ID, &e.HypothesisID, &e.Direction, &e.Summary, &e.SourceRef, &e.SourceDate, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan evidence")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list evidence iterate")
}

// Kill criteria

func (s *PostgresStore) CreateKillCriterion(ctx context.Context, k *model.KillCriterion) (*model.KillCriterion, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	k.ID = uuid.New().String()
	k.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO kill_criteria (id, thesis_id, metric_name, threshold_value, threshold_operator, category, description, triggered, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)`,
		k.ID, k.ThesisID, k.MetricName, k.ThresholdValue, string(k.Operator), string(k.Category), k.Description, k.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert kill criterion")
	}
	return k, nil
}

func (s *PostgresStore) GetKillCriterion(ctx context.Context, id string) (*model.KillCriterion, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+killColumns+` FROM kill_criteria WHERE id = $1`, id)
	k, err := scanPgKillCriterion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "kill criterion %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get kill criterion")
	}
	return k, nil
}

func (s *PostgresStore) ListKillCriteria(ctx context.Context, thesisID string, untriggeredOnly bool) ([]model.KillCriterion, error) {
	query := `SELECT ` + killColumns + ` FROM kill_criteria WHERE thesis_id = $1`
	if untriggeredOnly {
		query += ` AND triggered = FALSE`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, thesisID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list kill criteria")
	}
	defer rows.Close()

	var criteria []model.KillCriterion
	for rows.Next() {
		k, err := scanPgKillCriterion(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan kill criterion")
		}
		criteria = append(criteria, *k)
	}
	return criteria, eris.Wrap(rows.Err(), "postgres: list kill criteria iterate")
}

func (s *PostgresStore) MarkTriggered(ctx context.Context, id string, observed float64, observedDate time.Time, evidence string) (bool, error) {
	// Conditional update keeps triggering idempotent: an already-triggered
	// criterion is never overwritten.
	tag, err := s.pool.Exec(ctx,
		`UPDATE kill_criteria
		 SET triggered = TRUE, triggered_date = $1, observed_value = $2, triggered_evidence = $3
		 WHERE id = $4 AND triggered = FALSE`,
		observedDate.UTC(), observed, evidence, id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: mark triggered %s", id)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetKillCriterion(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *PostgresStore) AnnotateKillCriterion(ctx context.Context, id string, note string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE kill_criteria SET note = $1 WHERE id = $2`, note, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: annotate kill criterion %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "kill criterion %s", id)
	}
	return nil
}

// Guidance chain

func (s *PostgresStore) GuidanceHead(ctx context.Context, companyID, metric string) (*model.GuidanceRecord, error) {
	row := s.pool.QueryRow(ctx, "guidance_head", companyID, strings.ToLower(metric))
	g, err := scanPgGuidance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: guidance head")
	}
	return g, nil
}

func (s *PostgresStore) InsertGuidance(ctx context.Context, g *model.GuidanceRecord) (*model.GuidanceRecord, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	g.ID = uuid.New().String()
	g.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO guidance (id, company_id, metric_name, value_low, value_high, unit, period, qualifier, revision_pct, source_date, supersedes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		g.ID, g.CompanyID, g.MetricName, g.ValueLow, g.ValueHigh, g.Unit, g.Period,
		string(g.Qualifier), g.RevisionPct, g.SourceDate, g.Supersedes, g.CreatedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			// Either the record was already superseded or another root
			// was inserted for this chain; the head moved.
			return nil, eris.Wrapf(model.ErrInvariantViolation, "guidance chain head moved")
		}
		return nil, eris.Wrap(err, "postgres: insert guidance")
	}
	return g, nil
}

func (s *PostgresStore) ListGuidance(ctx context.Context, companyID, metric string) ([]model.GuidanceRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+guidanceColumns+` FROM guidance g
		 WHERE g.company_id = $1 AND g.metric_name = $2 ORDER BY g.created_at DESC`,
		companyID, strings.ToLower(metric),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list guidance")
	}
	defer rows.Close()

	var records []model.GuidanceRecord
	for rows.Next() {
		g, err := scanPgGuidance(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan guidance")
		}
		records = append(records, *g)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list guidance iterate")
}

// Classifications

func (s *PostgresStore) SaveClassification(ctx context.Context, c *model.Classification) (*model.Classification, error) {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO classifications
			(id, company_id, filing_type, filing_date, raw_score, calibrated_score,
			 urgency_tier, report_type, contrarian_thesis, consensus_strength,
			 consensus_missing, dampener, rejected_findings, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID, c.CompanyID, string(c.FilingType), c.FilingDate, c.RawScore, c.CalibratedScore,
		string(c.UrgencyTier), string(c.ReportType), c.ContrarianThesis, c.ConsensusStrength,
		c.ConsensusMissing, c.Dampener, c.RejectedFindings, c.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: save classification")
	}
	return c, nil
}

func (s *PostgresStore) ListClassifications(ctx context.Context, companyID string, limit int) ([]model.Classification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, filing_type, filing_date, raw_score, calibrated_score,
			urgency_tier, report_type, contrarian_thesis, consensus_strength,
			consensus_missing, dampener, rejected_findings, created_at
		 FROM classifications WHERE company_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		companyID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list classifications")
	}
	defer rows.Close()

	var results []model.Classification
	for rows.Next() {
		var c model.Classification
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.FilingType, &c.FilingDate, &c.RawScore, &c.CalibratedScore,
			&c.UrgencyTier, &c.ReportType, &c.ContrarianThesis, &c.ConsensusStrength,
			&c.ConsensusMissing, &c.Dampener, &c.RejectedFindings, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan classification")
		}
		results = append(results, c)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list classifications iterate")
}

// Decision log

func (s *PostgresStore) LogDecision(ctx context.Context, d *model.Decision) error {
	d.ID = uuid.New().String()
	d.CreatedAt = time.Now().UTC()

	var snapshot any
	if len(d.Snapshot) > 0 {
		snapshot = d.Snapshot
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO decision_log (id, company_id, thesis_id, decision_type, decision_text, rationale, snapshot, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.CompanyID, nullIfEmpty(d.ThesisID), d.DecisionType, d.DecisionText, d.Rationale, snapshot, d.CreatedAt,
	)
	return eris.Wrap(err, "postgres: log decision")
}

func (s *PostgresStore) ListDecisions(ctx context.Context, companyID string, limit int) ([]model.Decision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, thesis_id, decision_type, decision_text, rationale, snapshot, created_at
		 FROM decision_log WHERE company_id = $1 ORDER BY created_at DESC LIMIT $2`,
		companyID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list decisions")
	}
	defer rows.Close()

	var decisions []model.Decision
	for rows.Next() {
		var d model.Decision
		var thesisID *string
		if err := rows.Scan(&d.ID, &d.CompanyID, &thesisID, &d.DecisionType, &d.DecisionText, &d.Rationale, &d.Snapshot, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan decision")
		}
		if thesisID != nil {
			d.ThesisID = *thesisID
		}
		decisions = append(decisions, d)
	}
	return decisions, eris.Wrap(rows.Err(), "postgres: list decisions iterate")
}

// pgx scan helpers. SQLite and Postgres share column order but need
// separate scans for driver-specific null handling.

func scanPgCompany(row pgx.Row) (*model.Company, error) {
	var c model.Company
	var earnings *time.Time
	if err := row.Scan(&c.ID, &c.Ticker, &c.Name, &c.WatchlistPriority, &earnings, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.NextEarningsDate = earnings
	return &c, nil
}

func scanPgThesis(row pgx.Row) (*model.Thesis, error) {
	var t model.Thesis
	var closeReason *string
	if err := row.Scan(&t.ID, &t.CompanyID, &t.PositionType, &t.MarketView, &t.OurView, &t.VariantEdge,
		&t.ConfidenceBull, &t.ConfidenceBase, &t.ConfidenceBear,
		&t.CatalystDescription, &t.CatalystDeadline, &t.ReviewDate,
		&t.Status, &t.Version, &closeReason, &t.ClosedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if closeReason != nil {
		t.CloseReason = model.CloseReason(*closeReason)
	}
	return &t, nil
}

func scanPgKillCriterion(row pgx.Row) (*model.KillCriterion, error) {
	var k model.KillCriterion
	if err := row.Scan(&k.ID, &k.ThesisID, &k.MetricName, &k.ThresholdValue, &k.Operator, &k.Category,
		&k.Description, &k.Triggered, &k.TriggeredDate, &k.ObservedValue, &k.TriggeredEvidence, &k.Note, &k.CreatedAt); err != nil {
		return nil, err
	}
	return &k, nil
}

func scanPgGuidance(row pgx.Row) (*model.GuidanceRecord, error) {
	var g model.GuidanceRecord
	if err := row.Scan(&g.ID, &g.CompanyID, &g.MetricName, &g.ValueLow, &g.ValueHigh, &g.Unit,
		&g.Period, &g.Qualifier, &g.RevisionPct, &g.SourceDate, &g.Supersedes, &g.CreatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}
