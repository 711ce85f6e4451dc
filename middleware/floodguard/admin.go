package floodguard

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/master-pd/nomi-sub001/middleware/floodguard/application"
	"github.com/master-pd/nomi-sub001/middleware/floodguard/domain"
	"github.com/master-pd/nomi-sub001/middleware/floodguard/infra"
)

// API administrativa do floodguard: moderação manual (unmute/reset),
// configuração dinâmica e leitura de estatísticas. Montada em um listener
// separado do tráfego de ingestão.

type AdminOptions struct {
	Service application.AdminService
	// RateLimit opcional protege os endpoints administrativos por cliente.
	RateLimit *infra.BucketStore
}

func NewAdminRouter(opts AdminOptions) http.Handler {
	r := chi.NewRouter()

	if opts.RateLimit != nil {
		r.Use(adminRateLimit(opts.RateLimit))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/unmute", handleUnmute(opts.Service))
		r.Post("/reset", handleReset(opts.Service))
		r.Put("/config", handleConfigUpdate(opts.Service))
		r.Get("/stats", handleIdentityStats(opts.Service))
		r.Get("/stats/system", handleSystemStats(opts.Service))
	})

	return r
}

type identityRequest struct {
	Identity string `json:"identity"`
	Scope    string `json:"scope,omitempty"`
}

func handleUnmute(svc application.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeIdentity(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{
			"unmuted": svc.Unmute(req.Identity, req.Scope),
		})
	}
}

func handleReset(svc application.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeIdentity(w, r)
		if !ok {
			return
		}
		svc.Reset(req.Identity, req.Scope)
		writeJSON(w, http.StatusOK, map[string]bool{"reset": true})
	}
}

func handleConfigUpdate(svc application.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd domain.ConfigUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		cfg, err := svc.UpdateConfig(upd)
		if err != nil {
			// a configuração anterior permanece valendo
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toConfigResponse(cfg))
	}
}

func handleIdentityStats(svc application.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := strings.TrimSpace(r.URL.Query().Get("identity"))
		if identity == "" {
			writeError(w, http.StatusBadRequest, "identity is required")
			return
		}
		scope := strings.TrimSpace(r.URL.Query().Get("scope"))
		writeJSON(w, http.StatusOK, toIdentityStatsResponse(svc.Stats(identity, scope)))
	}
}

func handleSystemStats(svc application.AdminService) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		st := svc.SystemStats()
		writeJSON(w, http.StatusOK, systemStatsResponse{
			TotalIdentitiesTracked: st.TrackedIdentities,
			CurrentlyMuted:         st.MutedIdentities,
			TotalWarningsIssued:    st.WarningsIssued,
			Config:                 toConfigResponse(st.Config),
		})
	}
}

func decodeIdentity(w http.ResponseWriter, r *http.Request) (identityRequest, bool) {
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return req, false
	}
	if strings.TrimSpace(req.Identity) == "" {
		writeError(w, http.StatusBadRequest, "identity is required")
		return req, false
	}
	return req, true
}

// adminRateLimit aplica um token bucket por cliente na API administrativa.
func adminRateLimit(store *infra.BucketStore) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !store.Allow(clientHost(r)) {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// respostas JSON com as mesmas chaves da configuração externa

type configResponse struct {
	MaxMessagesPerSecond   float64              `json:"max_messages_per_second"`
	MaxMessagesPerMinute   int                  `json:"max_messages_per_minute"`
	MaxMessagesPer5Minutes int                  `json:"max_messages_per_5minutes"`
	MuteDuration           muteDurationResponse `json:"mute_duration"`
	AutoResetSeconds       int                  `json:"auto_reset_seconds"`
	Enabled                bool                 `json:"enabled"`
}

type muteDurationResponse struct {
	FirstOffense  int `json:"first_offense"`
	SecondOffense int `json:"second_offense"`
	ThirdOffense  int `json:"third_offense"`
	Persistent    int `json:"persistent"`
}

func toConfigResponse(cfg domain.Config) configResponse {
	return configResponse{
		MaxMessagesPerSecond:   cfg.MaxMessagesPerSecond,
		MaxMessagesPerMinute:   cfg.MaxMessagesPerMinute,
		MaxMessagesPer5Minutes: cfg.MaxMessagesPer5Minutes,
		MuteDuration: muteDurationResponse{
			FirstOffense:  int(cfg.MuteDurations.FirstOffense.Seconds()),
			SecondOffense: int(cfg.MuteDurations.SecondOffense.Seconds()),
			ThirdOffense:  int(cfg.MuteDurations.ThirdOffense.Seconds()),
			Persistent:    int(cfg.MuteDurations.Persistent.Seconds()),
		},
		AutoResetSeconds: int(cfg.AutoReset.Seconds()),
		Enabled:          cfg.Enabled,
	}
}

type identityStatsResponse struct {
	Identity string `json:"identity"`
	Scope    string `json:"scope,omitempty"`

	MessageCount int `json:"message_count"`
	Warnings     int `json:"warnings"`

	IsMuted              bool   `json:"is_muted"`
	MuteReason           string `json:"mute_reason,omitempty"`
	MuteRemainingSeconds int    `json:"mute_remaining_seconds"`

	WindowStart       string  `json:"window_start,omitempty"`
	ElapsedSeconds    float64 `json:"time_elapsed_seconds"`
	MessagesPerSecond float64 `json:"messages_per_second"`
}

func toIdentityStatsResponse(st domain.IdentityStats) identityStatsResponse {
	out := identityStatsResponse{
		Identity:             st.Identity,
		Scope:                st.Scope,
		MessageCount:         st.MessageCount,
		Warnings:             st.Warnings,
		IsMuted:              st.Muted,
		MuteReason:           string(st.MuteReason),
		MuteRemainingSeconds: int(st.MuteRemaining.Seconds()),
		ElapsedSeconds:       st.Elapsed.Seconds(),
		MessagesPerSecond:    st.Rate,
	}
	if !st.WindowStart.IsZero() {
		out.WindowStart = st.WindowStart.UTC().Format(time.RFC3339)
	}
	return out
}

type systemStatsResponse struct {
	TotalIdentitiesTracked int            `json:"total_identities_tracked"`
	CurrentlyMuted         int            `json:"currently_muted"`
	TotalWarningsIssued    int            `json:"total_warnings_issued"`
	Config                 configResponse `json:"config"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
