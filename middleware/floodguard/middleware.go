package floodguard

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/master-pd/nomi-sub001/middleware/floodguard/application"
	"github.com/master-pd/nomi-sub001/middleware/floodguard/domain"
)

// IdentityFunc extrai a identidade estável do remetente e o escopo opcional
// (ex: id do chat/grupo). Identidades iguais em escopos diferentes têm estado
// de flood totalmente independente.
type IdentityFunc func(r *http.Request) (identity, scope string)

type Options struct {
	Guard domain.Checker
	Stats domain.StatsStore
	// Clock fixa o tempo em testes; nil usa o relógio de parede.
	Clock func() time.Time

	IdentityFn         IdentityFunc
	IdentityHeader     string
	ScopeHeader        string
	TrustXForwardedFor bool

	RejectStatus    int
	AddFloodHeaders bool
}

// guardInfo expõe a configuração vigente para headers informativos.
type guardInfo interface {
	Config() domain.Config
}

func DefaultIdentityFunc(identityHeader, scopeHeader string, trustXFF bool) IdentityFunc {
	return func(r *http.Request) (string, string) {
		scope := ""
		if scopeHeader != "" {
			scope = strings.TrimSpace(r.Header.Get(scopeHeader))
		}

		if identityHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(identityHeader)); v != "" {
				return v, scope
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if len(parts) > 0 {
					ip := strings.TrimSpace(parts[0])
					if ip != "" {
						return ip, scope
					}
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host, scope
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr, scope
		}
		return "unknown", scope
	}
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.IdentityFn == nil {
		opts.IdentityFn = DefaultIdentityFunc(opts.IdentityHeader, opts.ScopeHeader, opts.TrustXForwardedFor)
	}

	svc := application.Service{
		Guard: opts.Guard,
		Clock: opts.Clock,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, scope := opts.IdentityFn(r)

			if opts.AddFloodHeaders {
				w.Header().Set("X-FloodGuard-Identity", identity)
				if scope != "" {
					w.Header().Set("X-FloodGuard-Scope", scope)
				}
				if gi, ok := opts.Guard.(guardInfo); ok {
					cfg := gi.Config()
					w.Header().Set("X-FloodGuard-Max-Rate", formatFloat(cfg.MaxMessagesPerSecond))
					w.Header().Set("X-FloodGuard-Max-Minute", formatInt(cfg.MaxMessagesPerMinute))
				}
			}

			dec := svc.Check(identity, scope)
			if opts.Stats != nil {
				at := time.Now()
				if opts.Clock != nil {
					at = opts.Clock()
				}
				_ = opts.Stats.Record(r.Context(), domain.DecisionEvent{
					Identity: identity,
					Scope:    scope,
					Allowed:  dec.Allowed,
					Reason:   dec.Reason,
					At:       at,
				})
			}
			if !dec.Allowed {
				retry := dec.MuteRemaining
				if retry <= 0 {
					retry = dec.MuteDuration
				}
				secs := int(retry.Seconds())
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", formatInt(secs))
				if opts.AddFloodHeaders {
					w.Header().Set("X-FloodGuard-Reason", string(dec.Reason))
					if dec.Warnings > 0 {
						w.Header().Set("X-FloodGuard-Warnings", formatInt(dec.Warnings))
					}
					if !dec.MuteExpiresAt.IsZero() {
						w.Header().Set("X-FloodGuard-Mute-Expires", dec.MuteExpiresAt.UTC().Format(time.RFC3339))
					}
				}
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
