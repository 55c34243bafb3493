package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/thesis-cli/internal/model"
)

// anyArgs returns n pgxmock.AnyArg() placeholders, for expectations that
// do not care about the statement's arguments.
func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func validThesis() *model.Thesis {
	return &model.Thesis{
		CompanyID:      "co-1",
		PositionType:   model.PositionOwn,
		OurView:        "margin inflection underappreciated",
		MarketView:     "secular decliner",
		ConfidenceBull: 30,
		ConfidenceBase: 50,
		ConfidenceBear: 20,
	}
}

func TestPostgresStore_GetCompany_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`get_company`).
		WithArgs("ZZZZ").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetCompany(context.Background(), "zzzz")
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ActiveThesis_NoneIsNil(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`active_thesis`).
		WithArgs("co-1").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.ActiveThesis(context.Background(), "co-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateThesis_DuplicateActive(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(version\), 0\) \+ 1 FROM theses`).
		WithArgs("co-1").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(2))
	mock.ExpectExec(`INSERT INTO theses`).
		WithArgs(anyArgs(16)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uniq_active_thesis"})
	mock.ExpectRollback()

	_, err := s.CreateThesis(context.Background(), validThesis())
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrDuplicateActiveThesis))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateThesis_RejectsInvalid(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	th := validThesis()
	th.OurView = ""
	_, err := s.CreateThesis(context.Background(), th)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrValidation))
}

func TestPostgresStore_CloseThesis_AlreadyClosed(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	closeReason := "manual"

	mock.ExpectExec(`UPDATE theses SET status`).
		WithArgs(anyArgs(5)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT .+ FROM theses WHERE id`).
		WithArgs("th-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "company_id", "position_type", "market_view", "our_view", "variant_edge",
			"confidence_bull", "confidence_base", "confidence_bear",
			"catalyst_description", "catalyst_deadline", "review_date",
			"status", "version", "close_reason", "closed_at", "created_at", "updated_at",
		}).AddRow(
			"th-1", "co-1", "own", "", "view", "",
			30.0, 50.0, 20.0,
			"", nil, nil,
			"closed", 1, &closeReason, &now, now, now,
		))

	err := s.CloseThesis(context.Background(), "th-1", model.ThesisClosed, model.CloseReasonManual, now)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrAlreadyClosed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CloseThesis_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE theses SET status`).
		WithArgs(anyArgs(5)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT .+ FROM theses WHERE id`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	err := s.CloseThesis(context.Background(), "missing", model.ThesisClosed, model.CloseReasonManual, time.Now())
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CloseThesis_RejectsNonTerminalStatus(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	err := s.CloseThesis(context.Background(), "th-1", model.ThesisActive, model.CloseReasonManual, time.Now())
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrValidation))
}

func TestPostgresStore_MarkTriggered_SecondCallIsNoop(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	observed := 38.5

	mock.ExpectExec(`UPDATE kill_criteria`).
		WithArgs(anyArgs(4)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT .+ FROM kill_criteria WHERE id`).
		WithArgs("kc-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "thesis_id", "metric_name", "threshold_value", "threshold_operator", "category",
			"description", "triggered", "triggered_date", "observed_value", "triggered_evidence", "note", "created_at",
		}).AddRow(
			"kc-1", "th-1", "gross_margin", 40.0, "<", "thesis_break",
			"", true, &now, &observed, "Q2 release", "", now,
		))

	fired, err := s.MarkTriggered(context.Background(), "kc-1", 37.0, now, "Q3 release")
	require.NoError(t, err)
	assert.False(t, fired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkTriggered_Fires(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE kill_criteria`).
		WithArgs(pgxmock.AnyArg(), 38.5, "Q2 release", "kc-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	fired, err := s.MarkTriggered(context.Background(), "kc-1", 38.5, time.Now(), "Q2 release")
	require.NoError(t, err)
	assert.True(t, fired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GuidanceHead_EmptyChain(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`guidance_head`).
		WithArgs("co-1", "revenue").
		WillReturnError(pgx.ErrNoRows)

	head, err := s.GuidanceHead(context.Background(), "co-1", "REVENUE")
	require.NoError(t, err)
	assert.Nil(t, head)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertGuidance_SupersededHeadConflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO guidance`).
		WithArgs(anyArgs(12)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uniq_guidance_supersedes"})

	prev := "g-1"
	_, err := s.InsertGuidance(context.Background(), &model.GuidanceRecord{
		CompanyID:  "co-1",
		MetricName: "revenue",
		ValueLow:   100,
		ValueHigh:  110,
		Qualifier:  model.GuidanceRaised,
		SourceDate: time.Now(),
		Supersedes: &prev,
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrInvariantViolation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertGuidance_CompetingRootConflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO guidance`).
		WithArgs(anyArgs(12)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uniq_guidance_root"})

	_, err := s.InsertGuidance(context.Background(), &model.GuidanceRecord{
		CompanyID:  "co-1",
		MetricName: "revenue",
		ValueLow:   100,
		ValueHigh:  110,
		Qualifier:  model.GuidanceIntroduced,
		SourceDate: time.Now(),
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrInvariantViolation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestRatings_NoneIsNil(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`latest_ratings`).
		WithArgs("co-1").
		WillReturnError(pgx.ErrNoRows)

	snap, err := s.LatestRatings(context.Background(), "co-1")
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.NoError(t, mock.ExpectationsWereMet())
}
