package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/thesis-cli/internal/config"
	"github.com/sells-group/thesis-cli/internal/fetcher"
	"github.com/sells-group/thesis-cli/internal/model"
	"github.com/sells-group/thesis-cli/internal/store"
	"github.com/sells-group/thesis-cli/internal/thesis"
)

// Monitor sweeps the watchlist: refreshes analyst ratings, flags stale
// review dates and expired catalysts, and re-evaluates the hypothesis
// signal for each active thesis.
type Monitor struct {
	store   store.Store
	ratings *fetcher.RatingsClient
	manager *thesis.Manager
	cfg     config.MonitorConfig
}

// New creates a Monitor. The ratings client may be nil, in which case
// the sweep skips consensus refresh and only checks thesis health.
func New(st store.Store, ratings *fetcher.RatingsClient, mgr *thesis.Manager, cfg config.MonitorConfig) *Monitor {
	return &Monitor{store: st, ratings: ratings, manager: mgr, cfg: cfg}
}

// Report is the outcome of one sweep over one company.
type Report struct {
	Ticker           string               `json:"ticker"`
	RatingsRefreshed bool                 `json:"ratings_refreshed"`
	ReviewOverdue    bool                 `json:"review_overdue"`
	CatalystExpired  bool                 `json:"catalyst_expired"`
	Verdict          thesis.SignalVerdict `json:"verdict,omitempty"`
	Err              error                `json:"-"`
}

// RunOnce sweeps the given tickers concurrently. An empty slice means
// the whole watchlist. Individual company failures are recorded in the
// report rather than aborting the sweep.
func (m *Monitor) RunOnce(ctx context.Context, tickers []string) ([]Report, error) {
	if len(tickers) == 0 {
		companies, err := m.store.ListCompanies(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range companies {
			tickers = append(tickers, c.Ticker)
		}
	}
	if len(tickers) == 0 {
		zap.L().Info("monitor: watchlist is empty")
		return nil, nil
	}

	concurrency := m.cfg.MaxConcurrentCompanies
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("monitor: starting sweep",
		zap.Int("companies", len(tickers)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	var failed atomic.Int64
	reports := make([]Report, 0, len(tickers))

	for _, ticker := range tickers {
		g.Go(func() error {
			rep := m.sweepCompany(gctx, ticker)
			if rep.Err != nil {
				failed.Add(1)
				zap.L().Error("monitor: company sweep failed",
					zap.String("ticker", ticker), zap.Error(rep.Err))
			}
			mu.Lock()
			reports = append(reports, rep)
			mu.Unlock()
			// Individual failures do not abort the sweep.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}

	zap.L().Info("monitor: sweep complete",
		zap.Int("companies", len(tickers)),
		zap.Int64("failed", failed.Load()),
	)
	return reports, nil
}

// Watch runs sweeps on a fixed interval until the context is canceled.
func (m *Monitor) Watch(ctx context.Context, tickers []string, interval time.Duration) error {
	if interval <= 0 {
		return eris.Wrap(model.ErrValidation, "monitor: interval must be positive")
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		if _, err := m.RunOnce(ctx, tickers); err != nil {
			zap.L().Error("monitor: sweep error", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

func (m *Monitor) sweepCompany(ctx context.Context, ticker string) Report {
	rep := Report{Ticker: ticker}
	log := zap.L().With(zap.String("ticker", ticker))

	company, err := m.store.GetCompany(ctx, ticker)
	if err != nil {
		rep.Err = err
		return rep
	}

	if m.ratings != nil {
		counts, asOf, err := m.ratings.Fetch(ctx, ticker)
		switch {
		case eris.Is(err, model.ErrNotFound):
			log.Debug("monitor: no analyst coverage")
		case err != nil:
			log.Warn("monitor: ratings refresh failed", zap.Error(err))
		default:
			if _, err := m.store.SaveRatings(ctx, company.ID, counts, asOf); err != nil {
				rep.Err = err
				return rep
			}
			rep.RatingsRefreshed = true
		}
	}

	active, err := m.store.ActiveThesis(ctx, company.ID)
	if err != nil {
		rep.Err = err
		return rep
	}
	if active == nil {
		return rep
	}

	now := time.Now()
	if active.ReviewDate != nil && active.ReviewDate.Before(now) {
		rep.ReviewOverdue = true
		log.Warn("monitor: thesis review is overdue",
			zap.Time("review_date", *active.ReviewDate),
			zap.Int("thesis_version", active.Version),
		)
	}
	if active.CatalystDeadline != nil && active.CatalystDeadline.Before(now) {
		rep.CatalystExpired = true
		log.Warn("monitor: catalyst deadline has passed without resolution",
			zap.Time("catalyst_deadline", *active.CatalystDeadline),
			zap.String("catalyst", active.CatalystDescription),
		)
	}

	sig, err := m.manager.EvaluateSignal(ctx, active.ID, nil)
	if err != nil {
		rep.Err = err
		return rep
	}
	rep.Verdict = sig.Verdict
	return rep
}
