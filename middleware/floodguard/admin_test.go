package floodguard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/master-pd/nomi-sub001/middleware/floodguard/application"
	"github.com/master-pd/nomi-sub001/middleware/floodguard/infra"
)

// muta a identidade com uma rajada acima do limite por segundo.
func floodIdentity(t *testing.T, g *infra.Guard, identity, scope string) {
	t.Helper()
	g.CheckEvent(identity, scope, testBase)
	g.CheckEvent(identity, scope, testBase)
	dec := g.CheckEvent(identity, scope, testBase.Add(1*time.Second))
	if dec.Allowed {
		t.Fatalf("expected flood to be detected")
	}
}

func newAdminRouter(g *infra.Guard, now time.Time) http.Handler {
	return NewAdminRouter(AdminOptions{
		Service: application.AdminService{
			Guard: g,
			Clock: func() time.Time { return now },
		},
	})
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd *strings.Reader
	if body != "" {
		rd = strings.NewReader(body)
	} else {
		rd = strings.NewReader("{}")
	}
	r := httptest.NewRequest(method, "http://example"+path, rd)
	r.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("invalid json response %q: %v", w.Body.String(), err)
		}
	}
	return w, out
}

func TestAdminRouter_Healthz(t *testing.T) {
	g := newGuard(t)
	h := newAdminRouter(g, testBase)

	w, body := doJSON(t, h, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body)
	}
}

func TestAdminRouter_UnmuteFlow(t *testing.T) {
	g := newGuard(t)
	floodIdentity(t, g, "u1", "g1")
	h := newAdminRouter(g, testBase.Add(2*time.Second))

	w, body := doJSON(t, h, http.MethodPost, "/admin/unmute", `{"identity":"u1","scope":"g1"}`)
	if w.Code != http.StatusOK || body["unmuted"] != true {
		t.Fatalf("expected unmuted=true, got code=%d body=%v", w.Code, body)
	}

	// segunda chamada não encontra mute nenhum
	_, body = doJSON(t, h, http.MethodPost, "/admin/unmute", `{"identity":"u1","scope":"g1"}`)
	if body["unmuted"] != false {
		t.Fatalf("expected unmuted=false on second call, got %v", body)
	}
}

func TestAdminRouter_UnmuteRequiresIdentity(t *testing.T) {
	g := newGuard(t)
	h := newAdminRouter(g, testBase)

	w, body := doJSON(t, h, http.MethodPost, "/admin/unmute", `{"scope":"g1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if msg, _ := body["error"].(string); msg == "" {
		t.Fatalf("expected error message, got %v", body)
	}
}

func TestAdminRouter_ResetClearsState(t *testing.T) {
	g := newGuard(t)
	floodIdentity(t, g, "u2", "")
	h := newAdminRouter(g, testBase.Add(2*time.Second))

	w, body := doJSON(t, h, http.MethodPost, "/admin/reset", `{"identity":"u2"}`)
	if w.Code != http.StatusOK || body["reset"] != true {
		t.Fatalf("expected reset=true, got code=%d body=%v", w.Code, body)
	}

	_, stats := doJSON(t, h, http.MethodGet, "/admin/stats?identity=u2", "")
	if stats["is_muted"] != false || stats["warnings"] != float64(0) {
		t.Fatalf("expected clean state after reset, got %v", stats)
	}
}

func TestAdminRouter_ConfigUpdateAndValidation(t *testing.T) {
	g := newGuard(t)
	h := newAdminRouter(g, testBase)

	w, body := doJSON(t, h, http.MethodPut, "/admin/config", `{"max_messages_per_minute":5,"mute_duration":{"first_offense":30}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", w.Code, body)
	}
	if body["max_messages_per_minute"] != float64(5) {
		t.Fatalf("expected merged minute limit 5, got %v", body["max_messages_per_minute"])
	}
	md, _ := body["mute_duration"].(map[string]any)
	if md["first_offense"] != float64(30) {
		t.Fatalf("expected merged first offense 30s, got %v", md)
	}

	// atualização inválida: 400 e a configuração anterior continua valendo
	w, body = doJSON(t, h, http.MethodPut, "/admin/config", `{"max_messages_per_minute":-1}`)
	if msg, _ := body["error"].(string); w.Code != http.StatusBadRequest || msg == "" {
		t.Fatalf("expected 400 with error, got code=%d body=%v", w.Code, body)
	}
	if got := g.Config().MaxMessagesPerMinute; got != 5 {
		t.Fatalf("expected previous config intact (5), got %d", got)
	}
}

func TestAdminRouter_SystemStats(t *testing.T) {
	g := newGuard(t)
	floodIdentity(t, g, "u3", "")
	h := newAdminRouter(g, testBase.Add(2*time.Second))

	w, body := doJSON(t, h, http.MethodGet, "/admin/stats/system", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["total_identities_tracked"] != float64(1) || body["currently_muted"] != float64(1) {
		t.Fatalf("expected one tracked/muted identity, got %v", body)
	}
	if body["total_warnings_issued"] != float64(1) {
		t.Fatalf("expected one warning issued, got %v", body)
	}
	if _, ok := body["config"].(map[string]any); !ok {
		t.Fatalf("expected config snapshot in response, got %v", body)
	}
}

func TestAdminRouter_IdentityStatsRequiresIdentity(t *testing.T) {
	g := newGuard(t)
	h := newAdminRouter(g, testBase)

	w, _ := doJSON(t, h, http.MethodGet, "/admin/stats", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without identity, got %d", w.Code)
	}
}

func TestAdminRouter_RateLimitProtectsEndpoints(t *testing.T) {
	g := newGuard(t)
	h := NewAdminRouter(AdminOptions{
		Service:   application.AdminService{Guard: g, Clock: func() time.Time { return testBase }},
		RateLimit: infra.NewBucketStore(0.02, 1),
	})

	w, _ := doJSON(t, h, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected first admin call 200, got %d", w.Code)
	}
	w, _ = doJSON(t, h, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second admin call 429, got %d", w.Code)
	}
}
