// Package store persists the system's institutional memory: companies,
// theses, hypotheses with their evidence trails, kill criteria, guidance
// revision chains, and classification results.
//
// The store is where the structural invariants live. One active thesis
// per company is a partial unique index, not an in-process check; the
// guidance chain head is protected by a unique index on supersedes; kill
// criteria trigger at most once via conditional update. Multiple
// processes may mutate state concurrently as long as they go through
// these operations.
package store

import (
	"context"
	"time"

	"github.com/sells-group/thesis-cli/internal/model"
)

// Store is the persistence interface shared by the Postgres and SQLite
// backends.
type Store interface {
	// Companies
	UpsertCompany(ctx context.Context, c *model.Company) (*model.Company, error)
	GetCompany(ctx context.Context, ticker string) (*model.Company, error)
	ListCompanies(ctx context.Context) ([]model.Company, error)

	// Analyst ratings
	SaveRatings(ctx context.Context, companyID string, counts model.RatingCounts, sourceDate time.Time) (*model.RatingsSnapshot, error)
	LatestRatings(ctx context.Context, companyID string) (*model.RatingsSnapshot, error)

	// Theses
	CreateThesis(ctx context.Context, t *model.Thesis) (*model.Thesis, error)
	GetThesis(ctx context.Context, id string) (*model.Thesis, error)
	ActiveThesis(ctx context.Context, companyID string) (*model.Thesis, error)
	ListTheses(ctx context.Context, companyID string) ([]model.Thesis, error)
	CloseThesis(ctx context.Context, id string, status model.ThesisStatus, reason model.CloseReason, closedAt time.Time) error

	// Hypotheses and evidence
	CreateHypothesis(ctx context.Context, h *model.Hypothesis) (*model.Hypothesis, error)
	GetHypothesis(ctx context.Context, id string) (*model.Hypothesis, error)
	ListHypotheses(ctx context.Context, thesisID string) ([]model.Hypothesis, error)
	UpdateHypothesis(ctx context.Context, id string, status model.HypothesisStatus, confidence float64) error
	AppendEvidence(ctx context.Context, e *model.Evidence) (*model.Evidence, error)
	ListEvidence(ctx context.Context, hypothesisID string) ([]model.Evidence, error)

	// Kill criteria
	CreateKillCriterion(ctx context.Context, k *model.KillCriterion) (*model.KillCriterion, error)
	GetKillCriterion(ctx context.Context, id string) (*model.KillCriterion, error)
	ListKillCriteria(ctx context.Context, thesisID string, untriggeredOnly bool) ([]model.KillCriterion, error)
	MarkTriggered(ctx context.Context, id string, observed float64, observedDate time.Time, evidence string) (bool, error)
	AnnotateKillCriterion(ctx context.Context, id string, note string) error

	// Guidance chain
	GuidanceHead(ctx context.Context, companyID, metric string) (*model.GuidanceRecord, error)
	InsertGuidance(ctx context.Context, g *model.GuidanceRecord) (*model.GuidanceRecord, error)
	ListGuidance(ctx context.Context, companyID, metric string) ([]model.GuidanceRecord, error)

	// Classifications
	SaveClassification(ctx context.Context, c *model.Classification) (*model.Classification, error)
	ListClassifications(ctx context.Context, companyID string, limit int) ([]model.Classification, error)

	// Decision log
	LogDecision(ctx context.Context, d *model.Decision) error
	ListDecisions(ctx context.Context, companyID string, limit int) ([]model.Decision, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
