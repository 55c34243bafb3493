package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/thesis-cli/internal/model"
)

func TestConsensusStrength(t *testing.T) {
	tests := []struct {
		name   string
		counts model.RatingCounts
		want   float64
		known  bool
	}{
		{"all strong buy", model.RatingCounts{StrongBuy: 10}, 1.0, true},
		{"all strong sell", model.RatingCounts{StrongSell: 7}, 0.0, true},
		{"all hold", model.RatingCounts{Hold: 5}, 0.5, true},
		{"mixed bullish", model.RatingCounts{StrongBuy: 6, Buy: 2}, 0.938, true},
		{"reference point", model.RatingCounts{StrongBuy: 4, Buy: 4}, 0.875, true},
		{"balanced", model.RatingCounts{StrongBuy: 1, StrongSell: 1}, 0.5, true},
		{"no coverage", model.RatingCounts{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, known := ConsensusStrength(tt.counts)
			assert.Equal(t, tt.known, known)
			if tt.known {
				assert.InDelta(t, tt.want, got, 0.0005)
			}
		})
	}
}

func TestConsensusStrengthBounds(t *testing.T) {
	// Any mix with coverage stays in [0, 1].
	for sb := 0; sb <= 4; sb++ {
		for ss := 0; ss <= 4; ss++ {
			for h := 0; h <= 4; h++ {
				counts := model.RatingCounts{StrongBuy: sb, StrongSell: ss, Hold: h}
				if counts.Total() == 0 {
					continue
				}
				got, known := ConsensusStrength(counts)
				assert.True(t, known)
				assert.GreaterOrEqual(t, got, 0.0)
				assert.LessOrEqual(t, got, 1.0)
			}
		}
	}
}

func TestConsensusStrengthMonotonicInStrongBuy(t *testing.T) {
	base := model.RatingCounts{Buy: 3, Hold: 2, Sell: 1}
	prev := -1.0
	for sb := 0; sb <= 20; sb++ {
		counts := base
		counts.StrongBuy = sb
		got, known := ConsensusStrength(counts)
		assert.True(t, known)
		assert.Greater(t, got, prev, "strength must increase with strong-buy count")
		prev = got
	}
}
