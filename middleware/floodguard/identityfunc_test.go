package floodguard

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDefaultIdentityFunc_PrefersHeaderWhenSet(t *testing.T) {
	fn := DefaultIdentityFunc("X-User-ID", "X-Chat-ID", false)

	r := httptest.NewRequest(http.MethodPost, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-User-ID", " user-123 ")
	r.Header.Set("X-Chat-ID", "chat-9")

	identity, scope := fn(r)
	if identity != "user-123" {
		t.Fatalf("expected header identity, got %q", identity)
	}
	if scope != "chat-9" {
		t.Fatalf("expected scope from header, got %q", scope)
	}
}

func TestDefaultIdentityFunc_TrustXForwardedForUsesFirstIP(t *testing.T) {
	fn := DefaultIdentityFunc("", "", true)

	r := httptest.NewRequest(http.MethodPost, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	identity, _ := fn(r)
	if identity != "1.2.3.4" {
		t.Fatalf("expected first XFF ip, got %q", identity)
	}
}

func TestDefaultIdentityFunc_FallbacksToRemoteAddrHost(t *testing.T) {
	fn := DefaultIdentityFunc("", "", false)

	r := httptest.NewRequest(http.MethodPost, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"

	identity, scope := fn(r)
	if identity != "10.0.0.9" {
		t.Fatalf("expected remote host, got %q", identity)
	}
	if scope != "" {
		t.Fatalf("expected empty scope, got %q", scope)
	}
}
