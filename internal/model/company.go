package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// WatchlistPriority controls how much weight a company's filings carry
// during significance scoring.
type WatchlistPriority string

const (
	WatchlistPrimary  WatchlistPriority = "primary"
	WatchlistStandard WatchlistPriority = "standard"
)

// Company is a tracked public company.
type Company struct {
	ID                string            `json:"id"`
	Ticker            string            `json:"ticker"`
	Name              string            `json:"name"`
	WatchlistPriority WatchlistPriority `json:"watchlist_priority"`
	NextEarningsDate  *time.Time        `json:"next_earnings_date,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Validate checks required fields and normalizes the ticker.
func (c *Company) Validate() error {
	c.Ticker = strings.ToUpper(strings.TrimSpace(c.Ticker))
	if c.Ticker == "" {
		return eris.Wrap(ErrValidation, "company: ticker is required")
	}
	switch c.WatchlistPriority {
	case "":
		c.WatchlistPriority = WatchlistStandard
	case WatchlistPrimary, WatchlistStandard:
	default:
		return eris.Wrapf(ErrValidation, "company: unknown watchlist priority %q", c.WatchlistPriority)
	}
	return nil
}

// RatingCounts holds raw analyst recommendation counts for a company.
type RatingCounts struct {
	StrongBuy  int `json:"strong_buy"`
	Buy        int `json:"buy"`
	Hold       int `json:"hold"`
	Sell       int `json:"sell"`
	StrongSell int `json:"strong_sell"`
}

// Total returns the number of covering analysts.
func (r RatingCounts) Total() int {
	return r.StrongBuy + r.Buy + r.Hold + r.Sell + r.StrongSell
}

// Validate rejects negative counts.
func (r RatingCounts) Validate() error {
	if r.StrongBuy < 0 || r.Buy < 0 || r.Hold < 0 || r.Sell < 0 || r.StrongSell < 0 {
		return eris.Wrap(ErrValidation, "ratings: counts must be non-negative")
	}
	return nil
}

// RatingsSnapshot is a persisted point-in-time view of analyst coverage.
type RatingsSnapshot struct {
	ID         string       `json:"id"`
	CompanyID  string       `json:"company_id"`
	Counts     RatingCounts `json:"counts"`
	SourceDate time.Time    `json:"source_date"`
	CreatedAt  time.Time    `json:"created_at"`
}
