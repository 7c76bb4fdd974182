package engagement

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/memestreet/market_layer/pkg/logger"
)

func testLogger() *logger.Logger {
	log := logger.NewDefault("engagement-test")
	log.SetOutput(io.Discard)
	return log
}

func TestBlend(t *testing.T) {
	tests := []struct {
		name   string
		sig    Signal
		volume int64
		want   float64
	}{
		{"score only", Signal{Score: 42}, 0, 42},
		{"comments weigh half", Signal{Score: 20, CommentCount: 10}, 0, 25},
		{"volume weighs tenth", Signal{Score: 20}, 100, 30},
		{"floored at minimum", Signal{Score: 1}, 0, 10},
		{"zero signal floors", Signal{}, 0, 10},
	}
	for _, tt := range tests {
		if got := Blend(tt.sig, tt.volume); got != tt.want {
			t.Fatalf("%s: Blend = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestHTTPSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("asset_id"); got != "meme-1" {
			t.Errorf("asset_id = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"score": 87.5, "comment_count": 12, "shares": 3}`))
	}))
	defer server.Close()

	source, err := NewHTTPSource(server.Client(), server.URL, "secret", 0, testLogger())
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	sig, err := source.Fetch(context.Background(), "meme-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if sig.Score != 87.5 || sig.CommentCount != 12 {
		t.Fatalf("unexpected signal: %+v", sig)
	}
}

func TestHTTPSource_FetchErrors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		source, err := NewHTTPSource(server.Client(), server.URL, "", 0, testLogger())
		if err != nil {
			t.Fatalf("new source: %v", err)
		}
		if _, err := source.Fetch(context.Background(), "meme-1"); err == nil {
			t.Fatalf("expected status error")
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer server.Close()

		source, err := NewHTTPSource(server.Client(), server.URL, "", 0, testLogger())
		if err != nil {
			t.Fatalf("new source: %v", err)
		}
		if _, err := source.Fetch(context.Background(), "meme-1"); err == nil {
			t.Fatalf("expected parse error")
		}
	})
}

func TestNewHTTPSource_RequiresEndpoint(t *testing.T) {
	if _, err := NewHTTPSource(nil, "   ", "", 0, testLogger()); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
}

func TestSourceFunc_NilIsSafe(t *testing.T) {
	var f SourceFunc
	sig, err := f.Fetch(context.Background(), "meme-1")
	if err != nil || sig != (Signal{}) {
		t.Fatalf("nil SourceFunc: %+v, %v", sig, err)
	}
}
