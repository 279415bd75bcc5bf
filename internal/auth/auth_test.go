package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/oauth2"
)

// tokenServer serves client-credentials tokens named tok-1, tok-2, ...
func tokenServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		n := atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":3600}`, n)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_MissingCredentials(t *testing.T) {
	tests := []struct {
		name, id, secret string
	}{
		{"no id", "", "secret"},
		{"no secret", "id", ""},
		{"neither", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.id, tt.secret, nil)
			if !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("New() error = %v, want ErrMissingCredentials", err)
			}
		})
	}
}

func TestTokenSource_FetchesAndCaches(t *testing.T) {
	var hits int32
	srv := tokenServer(t, &hits)
	cache := NewTokenCache(filepath.Join(t.TempDir(), "token.json"))

	a, err := New("id", "secret", cache, WithTokenURL(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tok, err := a.TokenSource(context.Background()).Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "tok-1" {
		t.Errorf("AccessToken = %q, want tok-1", tok.AccessToken)
	}

	saved, err := cache.Load()
	if err != nil || saved == nil {
		t.Fatalf("cache.Load() = %v, %v", saved, err)
	}
	if saved.AccessToken != "tok-1" {
		t.Errorf("cached AccessToken = %q, want tok-1", saved.AccessToken)
	}
}

func TestTokenSource_ReusesValidCachedToken(t *testing.T) {
	var hits int32
	srv := tokenServer(t, &hits)
	cache := NewTokenCache(filepath.Join(t.TempDir(), "token.json"))
	if err := cache.Save(&oauth2.Token{
		AccessToken: "cached",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	a, _ := New("id", "secret", cache, WithTokenURL(srv.URL))
	tok, err := a.TokenSource(context.Background()).Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	if tok.AccessToken != "cached" {
		t.Errorf("AccessToken = %q, want cached", tok.AccessToken)
	}
	if got := atomic.LoadInt32(&hits); got != 0 {
		t.Errorf("token endpoint called %d times, want 0", got)
	}
}

func TestTokenSource_ReplacesExpiredToken(t *testing.T) {
	var hits int32
	srv := tokenServer(t, &hits)
	cache := NewTokenCache(filepath.Join(t.TempDir(), "token.json"))
	_ = cache.Save(&oauth2.Token{
		AccessToken: "stale",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(-time.Minute),
	})

	a, _ := New("id", "secret", cache, WithTokenURL(srv.URL))
	tok, err := a.TokenSource(context.Background()).Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	if tok.AccessToken != "tok-1" {
		t.Errorf("AccessToken = %q, want tok-1", tok.AccessToken)
	}
	saved, _ := cache.Load()
	if saved == nil || saved.AccessToken != "tok-1" {
		t.Errorf("cache not updated: %+v", saved)
	}
}

func TestTokenSource_CorruptCache(t *testing.T) {
	var hits int32
	srv := tokenServer(t, &hits)
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	a, _ := New("id", "secret", NewTokenCache(path), WithTokenURL(srv.URL))
	tok, err := a.TokenSource(context.Background()).Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.AccessToken != "tok-1" {
		t.Errorf("AccessToken = %q, want tok-1", tok.AccessToken)
	}
}

func TestClient_TokenEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	a, _ := New("id", "wrong", nil, WithTokenURL(srv.URL))
	if _, err := a.Client(context.Background()); err == nil {
		t.Error("Client() should fail when the token endpoint rejects the credentials")
	}
}
