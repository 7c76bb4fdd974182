package asset

import "time"

// MaxHistorySamples bounds the price history ring kept on each asset. The
// oldest sample is evicted first once the bound is reached.
const MaxHistorySamples = 24

// Asset is a tradable meme entity with a fixed share pool and a continuously
// recomputed price. Identity and content fields are immutable after issuance;
// market state is mutated by the revaluation engine and the trading flow.
type Asset struct {
	ID          string    `json:"id"`
	CreatorID   string    `json:"creator_id"`
	CreatorName string    `json:"creator_name"`
	CreatedAt   time.Time `json:"created_at"`

	TemplateID string   `json:"template_id"`
	Title      string   `json:"title"`
	Text       string   `json:"text"`
	Categories []string `json:"categories"`

	TotalShares     int64        `json:"total_shares"`
	AvailableShares int64        `json:"available_shares"`
	CurrentPrice    float64      `json:"current_price"`
	TradeVolume     int64        `json:"trade_volume"`
	EngagementScore float64      `json:"engagement_score"`
	PriceHistory    []PricePoint `json:"price_history"`
	LastUpdated     time.Time    `json:"last_updated"`
}

// PricePoint is one market tick in an asset's price history.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// AppendHistory appends a sample and truncates to the newest MaxHistorySamples.
func (a *Asset) AppendHistory(p PricePoint) {
	a.PriceHistory = append(a.PriceHistory, p)
	if len(a.PriceHistory) > MaxHistorySamples {
		a.PriceHistory = a.PriceHistory[len(a.PriceHistory)-MaxHistorySamples:]
	}
}

// LatestChangePercent returns the percent change across the last two history
// samples. Assets with fewer than two samples report zero.
func (a *Asset) LatestChangePercent() float64 {
	n := len(a.PriceHistory)
	if n < 2 {
		return 0
	}
	prev := a.PriceHistory[n-2].Price
	if prev == 0 {
		return 0
	}
	return (a.PriceHistory[n-1].Price - prev) / prev * 100
}

// AgeAt reports how long the asset has existed at the given instant.
func (a *Asset) AgeAt(now time.Time) time.Duration {
	if a.CreatedAt.IsZero() || now.Before(a.CreatedAt) {
		return 0
	}
	return now.Sub(a.CreatedAt)
}

// Valuation captures the result of one recompute pass. It is not persisted as
// its own entity; the engine applies it to the asset and forwards it to the
// market-history sink.
type Valuation struct {
	AssetID         string    `json:"asset_id"`
	PreviousPrice   float64   `json:"previous_price"`
	NewPrice        float64   `json:"new_price"`
	ChangePercent   float64   `json:"change_percent"`
	MarketCap       float64   `json:"market_cap"`
	EngagementScore float64   `json:"engagement_score"`
	Timestamp       time.Time `json:"timestamp"`
}
