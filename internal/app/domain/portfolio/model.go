package portfolio

import "time"

// Holding is one position inside a user portfolio.
type Holding struct {
	Shares          int64   `json:"shares"`
	AverageBuyPrice float64 `json:"average_buy_price"`
}

// Portfolio maps asset ids to holdings for a single user. It is created
// lazily on first allocation; entries are never deleted.
type Portfolio struct {
	UserID    string             `json:"user_id"`
	Holdings  map[string]Holding `json:"holdings"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Grant adds shares to a holding, recomputing the average buy price. A zero
// cost grant (founder allocation) keeps the average at its prior value, or
// zero for a fresh entry.
func (p *Portfolio) Grant(assetID string, shares int64, pricePerShare float64) {
	if p.Holdings == nil {
		p.Holdings = make(map[string]Holding)
	}
	h := p.Holdings[assetID]
	total := h.Shares + shares
	if total > 0 && pricePerShare > 0 {
		h.AverageBuyPrice = (h.AverageBuyPrice*float64(h.Shares) + pricePerShare*float64(shares)) / float64(total)
	}
	h.Shares = total
	p.Holdings[assetID] = h
}
