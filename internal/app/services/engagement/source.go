// Package engagement integrates the external popularity signal that drives
// price movement. Fetch failures are expected and absorbed by callers; a
// missing signal never aborts a revaluation pass.
package engagement

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/memestreet/market_layer/pkg/logger"
)

// Signal is one observation of an asset's external popularity.
type Signal struct {
	Score        float64
	CommentCount int64
}

// Source retrieves engagement signals for assets.
type Source interface {
	Fetch(ctx context.Context, assetID string) (Signal, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, assetID string) (Signal, error)

func (f SourceFunc) Fetch(ctx context.Context, assetID string) (Signal, error) {
	if f == nil {
		return Signal{}, nil
	}
	return f(ctx, assetID)
}

// Blend folds a raw signal and the asset's trade volume into the engagement
// score used by the valuation algorithm. Comments weigh half a point each,
// trade volume a tenth; the result is floored at the score minimum so the
// percent-change formula always has a positive denominator.
func Blend(sig Signal, tradeVolume int64) float64 {
	score := sig.Score + 0.5*float64(sig.CommentCount) + 0.1*float64(tradeVolume)
	if score < 10 {
		return 10
	}
	return score
}

// HTTPSource polls an HTTP endpoint for engagement data. Requests are rate
// limited so bursts of concurrent ticks cannot hammer the upstream.
type HTTPSource struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	limiter  *rate.Limiter
	log      *logger.Logger
}

// NewHTTPSource constructs a source for the given endpoint. A nil client gets
// a 5 second timeout; requestsPerSecond <= 0 disables rate limiting.
func NewHTTPSource(client *http.Client, endpoint, apiKey string, requestsPerSecond float64, log *logger.Logger) (*HTTPSource, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("engagement endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse engagement endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("engagement-source")
	}
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)+1)
	}
	return &HTTPSource{
		client:   client,
		endpoint: parsed,
		apiKey:   strings.TrimSpace(apiKey),
		limiter:  limiter,
		log:      log,
	}, nil
}

func (s *HTTPSource) Fetch(ctx context.Context, assetID string) (Signal, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return Signal{}, fmt.Errorf("engagement rate limit: %w", err)
		}
	}

	requestURL := *s.endpoint
	q := requestURL.Query()
	q.Set("asset_id", assetID)
	requestURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL.String(), nil)
	if err != nil {
		return Signal{}, fmt.Errorf("build engagement request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Signal{}, fmt.Errorf("engagement request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Signal{}, fmt.Errorf("engagement status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Signal{}, fmt.Errorf("read engagement response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return Signal{}, fmt.Errorf("engagement response is not valid JSON")
	}

	parsed := gjson.ParseBytes(body)
	return Signal{
		Score:        parsed.Get("score").Float(),
		CommentCount: parsed.Get("comment_count").Int(),
	}, nil
}
