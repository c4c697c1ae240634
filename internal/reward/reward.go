// Package reward converts a final placement into experience and coin
// grants. Compute is pure; the coordinator applies its output through the
// store's idempotent grant path.
package reward

import "time"

const (
	scoreXPDivisor = 10

	coinScoreThreshold = 1000
	coinScoreBonus     = 100
	speedThreshold     = 2 * time.Minute
	speedBonus         = 150
	firstClearBonus    = 250
)

var xpByRank = map[int]int64{1: 500, 2: 300, 3: 200}

const xpBaseRest = 100

var coinsByRank = map[int]int64{1: 200, 2: 100, 3: 50}

type Input struct {
	Rank           int
	Score          int64
	Difficulty     float64
	BaseCoins      int64
	Completed      bool
	CompletionTime time.Duration
	FirstClear     bool
}

type Grant struct {
	XP    int64
	Coins int64
}

func Compute(in Input) Grant {
	base := xpByRank[in.Rank]
	if base == 0 {
		base = xpBaseRest
	}
	difficulty := in.Difficulty
	if difficulty <= 0 {
		difficulty = 1.0
	}
	xp := int64(float64(base)*difficulty) + in.Score/scoreXPDivisor

	coins := in.BaseCoins + coinsByRank[in.Rank]
	if in.Score >= coinScoreThreshold {
		coins += coinScoreBonus
	}
	if in.Completed && in.CompletionTime > 0 && in.CompletionTime < speedThreshold {
		coins += speedBonus
	}
	if in.FirstClear {
		coins += firstClearBonus
	}
	return Grant{XP: xp, Coins: coins}
}
