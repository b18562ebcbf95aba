package github

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestFileTokenCacheRoundTrip(t *testing.T) {
	cache := &FileTokenCache{path: filepath.Join(t.TempDir(), "token.json")}

	token, err := cache.Get()
	if err != nil {
		t.Fatalf("Get on missing file should not error: %v", err)
	}
	if token != nil {
		t.Error("Get on missing file should return nil token")
	}

	stored := &oauth2.Token{
		AccessToken:  "access",
		TokenType:    "Bearer",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
	}
	if err := cache.Set(stored); err != nil {
		t.Fatalf("Set should not error: %v", err)
	}

	info, err := os.Stat(cache.path)
	if err != nil {
		t.Fatalf("token file should exist: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("token file permissions = %o, want 0600", info.Mode().Perm())
	}

	got, err := cache.Get()
	if err != nil {
		t.Fatalf("Get after Set should not error: %v", err)
	}
	if got == nil || got.AccessToken != stored.AccessToken || got.RefreshToken != stored.RefreshToken {
		t.Errorf("round trip token = %+v, want %+v", got, stored)
	}
}

func TestFileTokenCacheClear(t *testing.T) {
	cache := &FileTokenCache{path: filepath.Join(t.TempDir(), "token.json")}

	if err := cache.Set(&oauth2.Token{AccessToken: "x", TokenType: "Bearer"}); err != nil {
		t.Fatalf("Set should not error: %v", err)
	}
	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear should not error: %v", err)
	}
	if _, err := os.Stat(cache.path); !os.IsNotExist(err) {
		t.Error("token file should not exist after Clear")
	}
	if err := cache.Clear(); err != nil {
		t.Errorf("Clear on missing file should not error: %v", err)
	}
}

func TestCachedTokenConversion(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	original := &cachedToken{
		AccessToken:  "access",
		TokenType:    "Bearer",
		RefreshToken: "refresh",
		Expiry:       expiry,
	}

	back := fromOAuth2Token(original.toOAuth2Token())
	if *back != *original {
		t.Errorf("conversion round trip = %+v, want %+v", back, original)
	}
}
