package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/thesis-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id                 TEXT PRIMARY KEY,
	ticker             TEXT NOT NULL UNIQUE,
	name               TEXT NOT NULL DEFAULT '',
	watchlist_priority TEXT NOT NULL DEFAULT 'standard',
	next_earnings_date DATETIME,
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS analyst_ratings (
	id          TEXT PRIMARY KEY,
	company_id  TEXT NOT NULL REFERENCES companies(id),
	strong_buy  INTEGER NOT NULL DEFAULT 0,
	buy         INTEGER NOT NULL DEFAULT 0,
	hold        INTEGER NOT NULL DEFAULT 0,
	sell        INTEGER NOT NULL DEFAULT 0,
	strong_sell INTEGER NOT NULL DEFAULT 0,
	source_date DATETIME NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS theses (
	id                   TEXT PRIMARY KEY,
	company_id           TEXT NOT NULL REFERENCES companies(id),
	position_type        TEXT NOT NULL,
	market_view          TEXT NOT NULL DEFAULT '',
	our_view             TEXT NOT NULL DEFAULT '',
	variant_edge         TEXT NOT NULL DEFAULT '',
	confidence_bull      REAL NOT NULL DEFAULT 0,
	confidence_base      REAL NOT NULL DEFAULT 0,
	confidence_bear      REAL NOT NULL DEFAULT 0,
	catalyst_description TEXT NOT NULL DEFAULT '',
	catalyst_deadline    DATETIME,
	review_date          DATETIME,
	status               TEXT NOT NULL DEFAULT 'active',
	version              INTEGER NOT NULL DEFAULT 1,
	close_reason         TEXT,
	closed_at            DATETIME,
	created_at           DATETIME NOT NULL,
	updated_at           DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uniq_active_thesis
	ON theses(company_id) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS hypotheses (
	id                 TEXT PRIMARY KEY,
	thesis_id          TEXT NOT NULL REFERENCES theses(id),
	hypothesis         TEXT NOT NULL,
	counter_hypothesis TEXT NOT NULL DEFAULT '',
	confidence         REAL NOT NULL DEFAULT 50,
	status             TEXT NOT NULL DEFAULT 'active',
	scope_tag          TEXT NOT NULL DEFAULT '',
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS hypothesis_evidence (
	id            TEXT PRIMARY KEY,
	hypothesis_id TEXT NOT NULL REFERENCES hypotheses(id),
	direction     TEXT NOT NULL,
	summary       TEXT NOT NULL,
	source_ref    TEXT NOT NULL DEFAULT '',
	source_date   DATETIME NOT NULL,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS kill_criteria (
	id                 TEXT PRIMARY KEY,
	thesis_id          TEXT NOT NULL REFERENCES theses(id),
	metric_name        TEXT NOT NULL,
	threshold_value    REAL NOT NULL,
	threshold_operator TEXT NOT NULL,
	category           TEXT NOT NULL DEFAULT 'review',
	description        TEXT NOT NULL DEFAULT '',
	triggered          INTEGER NOT NULL DEFAULT 0,
	triggered_date     DATETIME,
	observed_value     REAL,
	triggered_evidence TEXT NOT NULL DEFAULT '',
	note               TEXT NOT NULL DEFAULT '',
	created_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS guidance (
	id           TEXT PRIMARY KEY,
	company_id   TEXT NOT NULL REFERENCES companies(id),
	metric_name  TEXT NOT NULL,
	value_low    REAL NOT NULL,
	value_high   REAL NOT NULL,
	unit         TEXT NOT NULL DEFAULT '',
	period       TEXT NOT NULL DEFAULT '',
	qualifier    TEXT NOT NULL,
	revision_pct REAL,
	source_date  DATETIME NOT NULL,
	supersedes   TEXT REFERENCES guidance(id),
	created_at   DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uniq_guidance_supersedes
	ON guidance(supersedes) WHERE supersedes IS NOT NULL;

CREATE UNIQUE INDEX IF NOT EXISTS uniq_guidance_root
	ON guidance(company_id, metric_name) WHERE supersedes IS NULL;

CREATE TABLE IF NOT EXISTS classifications (
	id                 TEXT PRIMARY KEY,
	company_id         TEXT NOT NULL REFERENCES companies(id),
	filing_type        TEXT NOT NULL,
	filing_date        DATETIME NOT NULL,
	raw_score          REAL NOT NULL,
	calibrated_score   REAL NOT NULL,
	urgency_tier       TEXT NOT NULL,
	report_type        TEXT NOT NULL,
	contrarian_thesis  TEXT NOT NULL DEFAULT '',
	consensus_strength REAL,
	consensus_missing  INTEGER NOT NULL DEFAULT 0,
	dampener           REAL NOT NULL DEFAULT 1,
	rejected_findings  INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS decision_log (
	id            TEXT PRIMARY KEY,
	company_id    TEXT NOT NULL,
	thesis_id     TEXT,
	decision_type TEXT NOT NULL,
	decision_text TEXT NOT NULL,
	rationale     TEXT NOT NULL DEFAULT '',
	snapshot      TEXT,
	created_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_theses_company ON theses(company_id);
CREATE INDEX IF NOT EXISTS idx_hypotheses_thesis ON hypotheses(thesis_id);
CREATE INDEX IF NOT EXISTS idx_evidence_hypothesis ON hypothesis_evidence(hypothesis_id);
CREATE INDEX IF NOT EXISTS idx_kill_thesis ON kill_criteria(thesis_id);
CREATE INDEX IF NOT EXISTS idx_guidance_metric ON guidance(company_id, metric_name);
CREATE INDEX IF NOT EXISTS idx_classifications_company ON classifications(company_id);
CREATE INDEX IF NOT EXISTS idx_decisions_company ON decision_log(company_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a SQLite unique constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Companies

func (s *SQLiteStore) UpsertCompany(ctx context.Context, c *model.Company) (*model.Company, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (id, ticker, name, watchlist_priority, next_earnings_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(ticker) DO UPDATE SET
			name = excluded.name,
			watchlist_priority = excluded.watchlist_priority,
			next_earnings_date = excluded.next_earnings_date,
			updated_at = excluded.updated_at`,
		c.ID, c.Ticker, c.Name, string(c.WatchlistPriority), c.NextEarningsDate, now, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert company %s", c.Ticker)
	}
	return s.GetCompany(ctx, c.Ticker)
}

func (s *SQLiteStore) GetCompany(ctx context.Context, ticker string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, ticker, name, watchlist_priority, next_earnings_date, created_at, updated_at
		 FROM companies WHERE ticker = ?`,
		strings.ToUpper(strings.TrimSpace(ticker)),
	)
	return scanCompany(row)
}

func (s *SQLiteStore) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ticker, name, watchlist_priority, next_earnings_date, created_at, updated_at
		 FROM companies ORDER BY ticker`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	return companies, eris.Wrap(rows.Err(), "sqlite: list companies iterate")
}

// Analyst ratings

func (s *SQLiteStore) SaveRatings(ctx context.Context, companyID string, counts model.RatingCounts, sourceDate time.Time) (*model.RatingsSnapshot, error) {
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
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analyst_ratings (id, company_id, strong_buy, buy, hold, sell, strong_sell, source_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, companyID, counts.StrongBuy, counts.Buy, counts.Hold, counts.Sell, counts.StrongSell,
		sourceDate, snap.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: save ratings")
	}
	return snap, nil
}

func (s *SQLiteStore) LatestRatings(ctx context.Context, companyID string) (*model.RatingsSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, strong_buy, buy, hold, sell, strong_sell, source_date, created_at
		 FROM analyst_ratings WHERE company_id = ?
		 ORDER BY source_date DESC, created_at DESC LIMIT 1`,
		companyID,
	)
	var snap model.RatingsSnapshot
	err := row.Scan(&snap.ID, &snap.CompanyID,
		&snap.Counts.StrongBuy, &snap.Counts.Buy, &snap.Counts.Hold,
		&snap.Counts.Sell, &snap.Counts.StrongSell,
		&snap.SourceDate, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest ratings")
	}
	return &snap, nil
}

// Theses

func (s *SQLiteStore) CreateThesis(ctx context.Context, t *model.Thesis) (*model.Thesis, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	t.ID = uuid.New().String()
	t.Status = model.ThesisActive
	t.CreatedAt = now
	t.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin create thesis")
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM theses WHERE company_id = ?`, t.CompanyID)
	if err := row.Scan(&t.Version); err != nil {
		return nil, eris.Wrap(err, "sqlite: next thesis version")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO theses
			(id, company_id, position_type, market_view, our_view, variant_edge,
			 confidence_bull, confidence_base, confidence_bear,
			 catalyst_description, catalyst_deadline, review_date,
			 status, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.CompanyID, string(t.PositionType), t.MarketView, t.OurView, t.VariantEdge,
		t.ConfidenceBull, t.ConfidenceBase, t.ConfidenceBear,
		t.CatalystDescription, t.CatalystDeadline, t.ReviewDate,
		string(t.Status), t.Version, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, eris.Wrapf(model.ErrDuplicateActiveThesis, "company %s", t.CompanyID)
		}
		return nil, eris.Wrap(err, "sqlite: insert thesis")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit create thesis")
	}
	return t, nil
}

func (s *SQLiteStore) GetThesis(ctx context.Context, id string) (*model.Thesis, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+thesisColumns+` FROM theses WHERE id = ?`, id)
	t, err := scanThesis(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(model.ErrNotFound, "thesis %s", id)
	}
	return t, err
}

func (s *SQLiteStore) ActiveThesis(ctx context.Context, companyID string) (*model.Thesis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+thesisColumns+` FROM theses WHERE company_id = ? AND status = 'active'`, companyID)
	t, err := scanThesis(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (s *SQLiteStore) ListTheses(ctx context.Context, companyID string) ([]model.Thesis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+thesisColumns+` FROM theses WHERE company_id = ? ORDER BY version DESC`, companyID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list theses")
	}
	defer rows.Close()

	var theses []model.Thesis
	for rows.Next() {
		t, err := scanThesis(rows)
		if err != nil {
			return nil, err
		}
		theses = append(theses, *t)
	}
	return theses, eris.Wrap(rows.Err(), "sqlite: list theses iterate")
}

func (s *SQLiteStore) CloseThesis(ctx context.Context, id string, status model.ThesisStatus, reason model.CloseReason, closedAt time.Time) error {
	if status != model.ThesisClosed && status != model.ThesisInvalidated {
		return eris.Wrapf(model.ErrValidation, "close thesis: status %q is not terminal", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE theses SET status = ?, close_reason = ?, closed_at = ?, updated_at = ?
		 WHERE id = ? AND status = 'active'`,
		string(status), string(reason), closedAt.UTC(), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: close thesis %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		// Distinguish a missing thesis from one already closed.
		if _, err := s.GetThesis(ctx, id); err != nil {
			return err
		}
		return eris.Wrapf(model.ErrAlreadyClosed, "thesis %s", id)
	}
	return nil
}

// Hypotheses and evidence

func (s *SQLiteStore) CreateHypothesis(ctx context.Context, h *model.Hypothesis) (*model.Hypothesis, error) {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hypotheses (id, thesis_id, hypothesis, counter_hypothesis, confidence, status, scope_tag, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.ThesisID, h.Text, h.CounterText, h.Confidence, string(h.Status), h.ScopeTag, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert hypothesis")
	}
	return h, nil
}

func (s *SQLiteStore) GetHypothesis(ctx context.Context, id string) (*model.Hypothesis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, thesis_id, hypothesis, counter_hypothesis, confidence, status, scope_tag, created_at, updated_at
		 FROM hypotheses WHERE id = ?`, id)
	var h model.Hypothesis
	err := row.Scan(&h.ID, &h.ThesisID, &h.Text, &h.CounterText, &h.Confidence, &h.Status, &h.ScopeTag, &h.CreatedAt, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(model.ErrNotFound, "hypothesis %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get hypothesis")
	}
	return &h, nil
}

func (s *SQLiteStore) ListHypotheses(ctx context.Context, thesisID string) ([]model.Hypothesis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thesis_id, hypothesis, counter_hypothesis, confidence, status, scope_tag, created_at, updated_at
		 FROM hypotheses WHERE thesis_id = ? ORDER BY created_at`, thesisID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list hypotheses")
	}
	defer rows.Close()

	var hyps []model.Hypothesis
	for rows.Next() {
		var h model.Hypothesis
		if err := rows.Scan(&h.ID, &h.ThesisID, &h.Text, &h.CounterText, &h.Confidence, &h.Status, &h.ScopeTag, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan hypothesis")
		}
		hyps = append(hyps, h)
	}
	return hyps, eris.Wrap(rows.Err(), "sqlite: list hypotheses iterate")
}

func (s *SQLiteStore) UpdateHypothesis(ctx context.Context, id string, status model.HypothesisStatus, confidence float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE hypotheses SET status = ?, confidence = ?, updated_at = ? WHERE id = ?`,
		string(status), confidence, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update hypothesis %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "hypothesis %s", id)
	}
	return nil
}

func (s *SQLiteStore) AppendEvidence(ctx context.Context, e *model.Evidence) (*model.Evidence, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hypothesis_evidence (id, hypothesis_id, direction, summary, source_ref, source_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.HypothesisID, string(e.Direction), e.Summary, e.SourceRef, e.SourceDate, e.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: append evidence")
	}
	return e, nil
}

func (s *SQLiteStore) ListEvidence(ctx context.Context, hypothesisID string) ([]model.Evidence, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, hypothesis_id, direction, summary, source_ref, source_date, created_at
		 FROM hypothesis_evidence WHERE hypothesis_id = ? ORDER BY created_at, id`, hypothesisID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list evidence")
	}
	defer rows.Close()

	var entries []model.Evidence
	for rows.Next() {
		var e model.Evidence
		if err := rows.Scan(&e.ID, &e.HypothesisID, &e.Direction, &e.Summary, &e.SourceRef, &e.SourceDate, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan evidence")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list evidence iterate")
}

// Kill criteria

func (s *SQLiteStore) CreateKillCriterion(ctx context.Context, k *model.KillCriterion) (*model.KillCriterion, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	k.ID = uuid.New().String()
	k.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kill_criteria (id, thesis_id, metric_name, threshold_value, threshold_operator, category, description, triggered, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		k.ID, k.ThesisID, k.MetricName, k.ThresholdValue, string(k.Operator), string(k.Category), k.Description, k.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert kill criterion")
	}
	return k, nil
}

func (s *SQLiteStore) GetKillCriterion(ctx context.Context, id string) (*model.KillCriterion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+killColumns+` FROM kill_criteria WHERE id = ?`, id)
	k, err := scanKillCriterion(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(model.ErrNotFound, "kill criterion %s", id)
	}
	return k, err
}

func (s *SQLiteStore) ListKillCriteria(ctx context.Context, thesisID string, untriggeredOnly bool) ([]model.KillCriterion, error) {
	query := `SELECT ` + killColumns + ` FROM kill_criteria WHERE thesis_id = ?`
	if untriggeredOnly {
		query += ` AND triggered = 0`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, thesisID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list kill criteria")
	}
	defer rows.Close()

	var criteria []model.KillCriterion
	for rows.Next() {
		k, err := scanKillCriterion(rows)
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, *k)
	}
	return criteria, eris.Wrap(rows.Err(), "sqlite: list kill criteria iterate")
}

func (s *SQLiteStore) MarkTriggered(ctx context.Context, id string, observed float64, observedDate time.Time, evidence string) (bool, error) {
	// Conditional update keeps triggering idempotent: an already-triggered
	// criterion is never overwritten.
	res, err := s.db.ExecContext(ctx,
		`UPDATE kill_criteria
		 SET triggered = 1, triggered_date = ?, observed_value = ?, triggered_evidence = ?
		 WHERE id = ? AND triggered = 0`,
		observedDate.UTC(), observed, evidence, id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: mark triggered %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		if _, err := s.GetKillCriterion(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *SQLiteStore) AnnotateKillCriterion(ctx context.Context, id string, note string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE kill_criteria SET note = ? WHERE id = ?`, note, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: annotate kill criterion %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "kill criterion %s", id)
	}
	return nil
}

// Guidance chain

func (s *SQLiteStore) GuidanceHead(ctx context.Context, companyID, metric string) (*model.GuidanceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+guidanceColumns+` FROM guidance g
		 WHERE g.company_id = ? AND g.metric_name = ?
		   AND NOT EXISTS (SELECT 1 FROM guidance x WHERE x.supersedes = g.id)
		 ORDER BY g.created_at DESC LIMIT 1`,
		companyID, strings.ToLower(metric),
	)
	g, err := scanGuidance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return g, err
}

func (s *SQLiteStore) InsertGuidance(ctx context.Context, g *model.GuidanceRecord) (*model.GuidanceRecord, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	g.ID = uuid.New().String()
	g.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guidance (id, company_id, metric_name, value_low, value_high, unit, period, qualifier, revision_pct, source_date, supersedes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.CompanyID, g.MetricName, g.ValueLow, g.ValueHigh, g.Unit, g.Period,
		string(g.Qualifier), g.RevisionPct, g.SourceDate, g.Supersedes, g.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Either the record was already superseded or another root
			// was inserted for this chain; the head moved.
			return nil, eris.Wrapf(model.ErrInvariantViolation, "guidance chain head moved")
		}
		return nil, eris.Wrap(err, "sqlite: insert guidance")
	}
	return g, nil
}

func (s *SQLiteStore) ListGuidance(ctx context.Context, companyID, metric string) ([]model.GuidanceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+guidanceColumns+` FROM guidance g
		 WHERE g.company_id = ? AND g.metric_name = ? ORDER BY g.created_at DESC`,
		companyID, strings.ToLower(metric),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list guidance")
	}
	defer rows.Close()

	var records []model.GuidanceRecord
	for rows.Next() {
		g, err := scanGuidance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *g)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list guidance iterate")
}

// Classifications

func (s *SQLiteStore) SaveClassification(ctx context.Context, c *model.Classification) (*model.Classification, error) {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO classifications
			(id, company_id, filing_type, filing_date, raw_score, calibrated_score,
			 urgency_tier, report_type, contrarian_thesis, consensus_strength,
			 consensus_missing, dampener, rejected_findings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CompanyID, string(c.FilingType), c.FilingDate, c.RawScore, c.CalibratedScore,
		string(c.UrgencyTier), string(c.ReportType), c.ContrarianThesis, c.ConsensusStrength,
		boolToInt(c.ConsensusMissing), c.Dampener, c.RejectedFindings, c.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: save classification")
	}
	return c, nil
}

func (s *SQLiteStore) ListClassifications(ctx context.Context, companyID string, limit int) ([]model.Classification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, filing_type, filing_date, raw_score, calibrated_score,
			urgency_tier, report_type, contrarian_thesis, consensus_strength,
			consensus_missing, dampener, rejected_findings, created_at
		 FROM classifications WHERE company_id = ?
		 ORDER BY created_at DESC LIMIT ?`,
		companyID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list classifications")
	}
	defer rows.Close()

	var results []model.Classification
	for rows.Next() {
		var c model.Classification
		var consensusMissing int
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.FilingType, &c.FilingDate, &c.RawScore, &c.CalibratedScore,
			&c.UrgencyTier, &c.ReportType, &c.ContrarianThesis, &c.ConsensusStrength,
			&consensusMissing, &c.Dampener, &c.RejectedFindings, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan classification")
		}
		c.ConsensusMissing = consensusMissing != 0
		results = append(results, c)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list classifications iterate")
}

// Decision log

func (s *SQLiteStore) LogDecision(ctx context.Context, d *model.Decision) error {
	d.ID = uuid.New().String()
	d.CreatedAt = time.Now().UTC()

	var snapshot any
	if len(d.Snapshot) > 0 {
		snapshot = string(d.Snapshot)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decision_log (id, company_id, thesis_id, decision_type, decision_text, rationale, snapshot, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.CompanyID, nullIfEmpty(d.ThesisID), d.DecisionType, d.DecisionText, d.Rationale, snapshot, d.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: log decision")
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, companyID string, limit int) ([]model.Decision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, thesis_id, decision_type, decision_text, rationale, snapshot, created_at
		 FROM decision_log WHERE company_id = ? ORDER BY created_at DESC LIMIT ?`,
		companyID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list decisions")
	}
	defer rows.Close()

	var decisions []model.Decision
	for rows.Next() {
		var d model.Decision
		var thesisID, snapshot sql.NullString
		if err := rows.Scan(&d.ID, &d.CompanyID, &thesisID, &d.DecisionType, &d.DecisionText, &d.Rationale, &snapshot, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan decision")
		}
		d.ThesisID = thesisID.String
		if snapshot.Valid {
			d.Snapshot = []byte(snapshot.String)
		}
		decisions = append(decisions, d)
	}
	return decisions, eris.Wrap(rows.Err(), "sqlite: list decisions iterate")
}

// scan helpers

const thesisColumns = `id, company_id, position_type, market_view, our_view, variant_edge,
	confidence_bull, confidence_base, confidence_bear,
	catalyst_description, catalyst_deadline, review_date,
	status, version, close_reason, closed_at, created_at, updated_at`

const killColumns = `id, thesis_id, metric_name, threshold_value, threshold_operator, category,
	description, triggered, triggered_date, observed_value, triggered_evidence, note, created_at`

const guidanceColumns = `g.id, g.company_id, g.metric_name, g.value_low, g.value_high, g.unit,
	g.period, g.qualifier, g.revision_pct, g.source_date, g.supersedes, g.created_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanCompany(row scannable) (*model.Company, error) {
	var c model.Company
	var earnings sql.NullTime
	err := row.Scan(&c.ID, &c.Ticker, &c.Name, &c.WatchlistPriority, &earnings, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(model.ErrNotFound, "company")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan company")
	}
	if earnings.Valid {
		t := earnings.Time
		c.NextEarningsDate = &t
	}
	return &c, nil
}

func scanThesis(row scannable) (*model.Thesis, error) {
	var t model.Thesis
	var deadline, review, closedAt sql.NullTime
	var closeReason sql.NullString
	err := row.Scan(&t.ID, &t.CompanyID, &t.PositionType, &t.MarketView, &t.OurView, &t.VariantEdge,
		&t.ConfidenceBull, &t.ConfidenceBase, &t.ConfidenceBear,
		&t.CatalystDescription, &deadline, &review,
		&t.Status, &t.Version, &closeReason, &closedAt, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan thesis")
	}
	if deadline.Valid {
		d := deadline.Time
		t.CatalystDeadline = &d
	}
	if review.Valid {
		r := review.Time
		t.ReviewDate = &r
	}
	if closedAt.Valid {
		c := closedAt.Time
		t.ClosedAt = &c
	}
	t.CloseReason = model.CloseReason(closeReason.String)
	return &t, nil
}

func scanKillCriterion(row scannable) (*model.KillCriterion, error) {
	var k model.KillCriterion
	var triggered int
	var triggeredDate sql.NullTime
	var observed sql.NullFloat64
	err := row.Scan(&k.ID, &k.ThesisID, &k.MetricName, &k.ThresholdValue, &k.Operator, &k.Category,
		&k.Description, &triggered, &triggeredDate, &observed, &k.TriggeredEvidence, &k.Note, &k.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan kill criterion")
	}
	k.Triggered = triggered != 0
	if triggeredDate.Valid {
		d := triggeredDate.Time
		k.TriggeredDate = &d
	}
	if observed.Valid {
		v := observed.Float64
		k.ObservedValue = &v
	}
	return &k, nil
}

func scanGuidance(row scannable) (*model.GuidanceRecord, error) {
	var g model.GuidanceRecord
	var revisionPct sql.NullFloat64
	var supersedes sql.NullString
	err := row.Scan(&g.ID, &g.CompanyID, &g.MetricName, &g.ValueLow, &g.ValueHigh, &g.Unit,
		&g.Period, &g.Qualifier, &revisionPct, &g.SourceDate, &supersedes, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan guidance")
	}
	if revisionPct.Valid {
		v := revisionPct.Float64
		g.RevisionPct = &v
	}
	if supersedes.Valid {
		sv := supersedes.String
		g.Supersedes = &sv
	}
	return &g, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
