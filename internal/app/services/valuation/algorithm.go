// Package valuation contains the price-change algorithm and the recurring
// revaluation engine that applies it.
package valuation

import (
	"time"

	"github.com/memestreet/market_layer/internal/app/domain/asset"
)

const (
	// ScoreFloor is the minimum engagement score; it also guards the
	// percent-change division.
	ScoreFloor = 10.0
	// PriceFloor is the absolute price floor applied after every tick.
	PriceFloor = 0.1
	// MaxTickChange bounds the fractional price move of a single tick in
	// either direction.
	MaxTickChange = 0.3

	volatilityFloor       = 0.1
	volatilityDecayPerDay = 0.1
	volumeFactorCap       = 2.0
	volumeScale           = 1000.0
)

// Inputs are the observed state feeding one valuation pass.
type Inputs struct {
	CurrentPrice float64
	TotalShares  int64
	PrevScore    float64
	NewScore     float64
	Age          time.Duration
	TradeVolume  int64
}

// Compute derives a bounded price delta from an engagement score change.
// It is pure and deterministic: no I/O, no clock reads beyond the supplied
// timestamp.
//
// The delta is the score change percent damped by an age-based volatility
// factor and amplified by a volume factor, clamped to ±MaxTickChange. Young
// assets move freely; volatility decays linearly with age down to a floor
// that never fully silences movement. The clamp is the manipulation
// resistance guarantee: no single tick moves the price more than 30%.
func Compute(in Inputs, now time.Time) asset.Valuation {
	prevScore := in.PrevScore
	if prevScore < ScoreFloor {
		prevScore = ScoreFloor
	}
	scoreChange := (in.NewScore - prevScore) / prevScore

	ageDays := in.Age.Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	volatility := 1 - ageDays*volatilityDecayPerDay
	if volatility < volatilityFloor {
		volatility = volatilityFloor
	}

	volume := 1 + float64(in.TradeVolume)/volumeScale
	if volume > volumeFactorCap {
		volume = volumeFactorCap
	}

	changePercent := scoreChange * volatility * volume
	if changePercent > MaxTickChange {
		changePercent = MaxTickChange
	} else if changePercent < -MaxTickChange {
		changePercent = -MaxTickChange
	}

	newPrice := in.CurrentPrice * (1 + changePercent)
	if newPrice < PriceFloor {
		newPrice = PriceFloor
	}

	newScore := in.NewScore
	if newScore < ScoreFloor {
		newScore = ScoreFloor
	}

	return asset.Valuation{
		PreviousPrice:   in.CurrentPrice,
		NewPrice:        newPrice,
		ChangePercent:   changePercent,
		MarketCap:       float64(in.TotalShares) * newPrice,
		EngagementScore: newScore,
		Timestamp:       now.UTC(),
	}
}
