// Package classify turns raw findings and analyst-consensus data into a
// calibrated urgency classification for a single filing or event.
package classify

import (
	"math"

	"github.com/sells-group/thesis-cli/internal/model"
)

// Rating weights for the consensus strength average. A street that is all
// strong buy scores 1.0; all strong sell scores 0.0.
const (
	weightStrongBuy  = 1.0
	weightBuy        = 0.75
	weightHold       = 0.5
	weightSell       = 0.25
	weightStrongSell = 0.0
)

// ConsensusStrength computes how bullish analyst coverage is, as a value
// in [0, 1]. The second return is false when no analysts cover the
// company: strength is undefined in that case, and the calibration engine
// applies no dampening rather than assuming a bullish or bearish default.
func ConsensusStrength(counts model.RatingCounts) (float64, bool) {
	total := counts.Total()
	if total == 0 {
		return 0, false
	}

	weighted := float64(counts.StrongBuy)*weightStrongBuy +
		float64(counts.Buy)*weightBuy +
		float64(counts.Hold)*weightHold +
		float64(counts.Sell)*weightSell +
		float64(counts.StrongSell)*weightStrongSell

	strength := weighted / float64(total)

	// Guard against float drift at the extremes.
	strength = math.Max(0, math.Min(1, strength))
	return math.Round(strength*1000) / 1000, true
}
