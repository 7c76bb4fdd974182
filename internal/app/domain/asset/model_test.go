package asset

import (
	"testing"
	"time"
)

func TestAppendHistory_EvictsOldest(t *testing.T) {
	var a Asset
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < MaxHistorySamples+5; i++ {
		a.AppendHistory(PricePoint{Timestamp: base.Add(time.Duration(i) * time.Hour), Price: float64(i)})
	}

	if len(a.PriceHistory) != MaxHistorySamples {
		t.Fatalf("history length = %d", len(a.PriceHistory))
	}
	if a.PriceHistory[0].Price != 5 {
		t.Fatalf("oldest sample = %v, want 5", a.PriceHistory[0].Price)
	}
	if a.PriceHistory[MaxHistorySamples-1].Price != float64(MaxHistorySamples+4) {
		t.Fatalf("newest sample = %v", a.PriceHistory[MaxHistorySamples-1].Price)
	}
}

func TestLatestChangePercent(t *testing.T) {
	now := time.Now().UTC()

	var empty Asset
	if got := empty.LatestChangePercent(); got != 0 {
		t.Fatalf("empty history = %v", got)
	}

	one := Asset{PriceHistory: []PricePoint{{Timestamp: now, Price: 10}}}
	if got := one.LatestChangePercent(); got != 0 {
		t.Fatalf("single sample = %v", got)
	}

	up := Asset{PriceHistory: []PricePoint{
		{Timestamp: now.Add(-time.Hour), Price: 10},
		{Timestamp: now, Price: 13},
	}}
	if got := up.LatestChangePercent(); got != 30 {
		t.Fatalf("rise = %v, want 30", got)
	}

	down := Asset{PriceHistory: []PricePoint{
		{Timestamp: now.Add(-time.Hour), Price: 10},
		{Timestamp: now, Price: 9},
	}}
	if got := down.LatestChangePercent(); got != -10 {
		t.Fatalf("fall = %v, want -10", got)
	}

	zeroPrev := Asset{PriceHistory: []PricePoint{
		{Timestamp: now.Add(-time.Hour), Price: 0},
		{Timestamp: now, Price: 5},
	}}
	if got := zeroPrev.LatestChangePercent(); got != 0 {
		t.Fatalf("zero previous = %v", got)
	}
}

func TestAgeAt(t *testing.T) {
	now := time.Now().UTC()

	var unset Asset
	if got := unset.AgeAt(now); got != 0 {
		t.Fatalf("unset CreatedAt = %v", got)
	}

	a := Asset{CreatedAt: now.Add(-48 * time.Hour)}
	if got := a.AgeAt(now); got != 48*time.Hour {
		t.Fatalf("age = %v", got)
	}
	// Clock skew: creation in the future reports zero, not negative.
	if got := a.AgeAt(now.Add(-72 * time.Hour)); got != 0 {
		t.Fatalf("future creation = %v", got)
	}
}
