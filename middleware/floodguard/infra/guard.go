package infra

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/master-pd/nomi-sub001/middleware/floodguard/domain"

	"go.uber.org/zap"
)

// Guard é a implementação em memória do controle de flood por identidade.
//
// Todo o estado de uma identidade (janela de taxa, warnings, mute) vive em uma
// única entrada de um mapa protegido por mutex. O lock cobre apenas a
// sequência read-modify-write de cada evento; logging e qualquer I/O ficam
// fora dele. A configuração é um snapshot imutável trocado atomicamente.
type Guard struct {
	mu      sync.Mutex
	entries map[identityKey]*identityEntry

	cfg atomic.Pointer[domain.Config]
	// cfgMu serializa atualizações de configuração (read-modify-swap).
	cfgMu sync.Mutex

	logger     *zap.Logger
	idleTTL    time.Duration
	sweepEvery time.Duration
}

// identityKey é a composição exata (identidade, escopo). Chave de struct em
// vez de concatenação: "u1"+"_g1" e "u1_g1"+"" nunca colidem.
type identityKey struct {
	identity string
	scope    string
}

type identityEntry struct {
	// windowStart zero exatamente quando count == 0.
	count       int
	windowStart time.Time

	// warnings só decresce via ResetIdentity.
	warnings int

	mute *muteRecord

	// lastSeen alimenta apenas a varredura de inativos.
	lastSeen time.Time
}

type muteRecord struct {
	until     time.Time
	reason    domain.Reason
	imposedAt time.Time
	duration  time.Duration
}

type GuardOption func(*Guard)

// WithLogger registra mutes/unmutes/resets; o padrão é não logar nada.
func WithLogger(l *zap.Logger) GuardOption {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithIdleTTL define há quanto tempo uma identidade precisa estar parada para
// a varredura descartá-la.
func WithIdleTTL(d time.Duration) GuardOption {
	return func(g *Guard) { g.idleTTL = d }
}

func WithSweepEvery(d time.Duration) GuardOption {
	return func(g *Guard) { g.sweepEvery = d }
}

func NewGuard(cfg domain.Config, opts ...GuardOption) (*Guard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Guard{
		entries:    make(map[identityKey]*identityEntry),
		logger:     zap.NewNop(),
		idleTTL:    24 * time.Hour,
		sweepEvery: 10 * time.Minute,
	}
	g.cfg.Store(&cfg)
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Config retorna o snapshot de configuração vigente.
func (g *Guard) Config() domain.Config {
	return *g.cfg.Load()
}

// CheckEvent implementa domain.Checker: um evento por mensagem recebida.
//
// Ordem: desabilitado -> mute vigente -> atualização da janela -> análise de
// padrão -> escalonamento/mute -> allow.
func (g *Guard) CheckEvent(identity, scope string, now time.Time) domain.Decision {
	cfg := g.cfg.Load()
	if !cfg.Enabled {
		return domain.Decision{Allowed: true}
	}

	k := identityKey{identity: identity, scope: scope}

	g.mu.Lock()
	dec, newMute := g.checkLocked(k, now, cfg)
	trackedGauge.Set(float64(len(g.entries)))
	g.mu.Unlock()

	observeDecision(dec)
	if newMute {
		g.logger.Warn("flood mute imposed",
			zap.String("identity", identity),
			zap.String("scope", scope),
			zap.String("reason", string(dec.Reason)),
			zap.String("detail", dec.Detail),
			zap.Int("warnings", dec.Warnings),
			zap.Duration("mute_duration", dec.MuteDuration))
	}
	return dec
}

func (g *Guard) checkLocked(k identityKey, now time.Time, cfg *domain.Config) (domain.Decision, bool) {
	ent := g.entries[k]
	if ent == nil {
		ent = &identityEntry{}
		g.entries[k] = ent
	}
	ent.lastSeen = now

	// mute vigente bloqueia sem tocar no resto do estado
	if m := ent.mute; m != nil {
		if now.Before(m.until) {
			return domain.Decision{
				Allowed:       false,
				Reason:        domain.ReasonUserMuted,
				MuteRemaining: m.until.Sub(now),
			}, false
		}
		// expirado: remoção preguiçosa no próximo acesso
		ent.mute = nil
	}

	// janela parada além do auto-reset é zerada antes de contar a mensagem
	// atual; uma janela velha de baixo tráfego não pode inflar o denominador
	// da taxa nem segurar contagem antiga
	if !ent.windowStart.IsZero() && now.Sub(ent.windowStart) > cfg.AutoReset {
		ent.count = 0
		ent.windowStart = time.Time{}
	}

	if ent.count == 0 {
		ent.windowStart = now
	}
	ent.count++

	reason, detail, flooding := analyze(ent.count, ent.windowStart, now, cfg)
	if !flooding {
		return domain.Decision{Allowed: true}, false
	}

	ent.warnings++
	d := cfg.MuteDurations.ForWarnings(ent.warnings)
	ent.mute = &muteRecord{
		until:     now.Add(d),
		reason:    reason,
		imposedAt: now,
		duration:  d,
	}
	// todo mute novo zera a janela; a próxima mensagem não mutada abre outra
	ent.count = 0
	ent.windowStart = time.Time{}

	return domain.Decision{
		Allowed:       false,
		Reason:        reason,
		Detail:        detail,
		Warnings:      ent.warnings,
		MuteDuration:  d,
		MuteExpiresAt: now.Add(d),
	}, true
}

// analyze é função pura da janela e do instante atual. A ordem das regras é
// fixa: a primeira que casar vence, da causa mais específica para a mais
// grossa.
//
// Quando elapsed == 0 (mensagens no mesmo instante) a regra de taxa é pulada
// para não dividir por zero; a rajada cai nas regras 2/3, de limiar mais
// grosso. elapsed negativo (relógio andou para trás) é tratado como zero.
func analyze(count int, windowStart, now time.Time, cfg *domain.Config) (domain.Reason, string, bool) {
	elapsed := now.Sub(windowStart).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	if elapsed > 0 {
		rate := float64(count) / elapsed
		if rate > cfg.MaxMessagesPerSecond {
			return domain.ReasonHighMessageRate,
				strconv.FormatFloat(rate, 'f', 1, 64) + " messages/second", true
		}
	}

	if elapsed < 60 && count > cfg.MaxMessagesPerMinute {
		return domain.ReasonMinuteLimit,
			strconv.Itoa(count) + " messages in " + strconv.FormatFloat(elapsed, 'f', 0, 64) + "s", true
	}

	if elapsed < 300 && count > cfg.MaxMessagesPer5Minutes {
		return domain.ReasonFiveMinuteLimit,
			strconv.Itoa(count) + " messages in 5 minutes", true
	}

	return "", "", false
}

// Unmute remove o registro de mute se houver um (vigente ou já expirado).
// Warnings ficam como estão.
func (g *Guard) Unmute(identity, scope string) bool {
	k := identityKey{identity: identity, scope: scope}

	g.mu.Lock()
	ent := g.entries[k]
	existed := ent != nil && ent.mute != nil
	if existed {
		ent.mute = nil
	}
	g.mu.Unlock()

	if existed {
		unmutesTotal.Inc()
		g.logger.Info("identity unmuted",
			zap.String("identity", identity),
			zap.String("scope", scope))
	}
	return existed
}

// ResetIdentity apaga janela, warnings e mute de uma vez; a identidade volta a
// se comportar como nunca vista.
func (g *Guard) ResetIdentity(identity, scope string) {
	k := identityKey{identity: identity, scope: scope}

	g.mu.Lock()
	delete(g.entries, k)
	trackedGauge.Set(float64(len(g.entries)))
	g.mu.Unlock()

	resetsTotal.Inc()
	g.logger.Info("identity flood state reset",
		zap.String("identity", identity),
		zap.String("scope", scope))
}

// UpdateConfig aplica um merge parcial e troca o snapshot atomicamente.
// Uma atualização inválida devolve erro e mantém a configuração anterior.
// Estado por identidade não é tocado.
func (g *Guard) UpdateConfig(u domain.ConfigUpdate) (domain.Config, error) {
	g.cfgMu.Lock()
	defer g.cfgMu.Unlock()

	next := u.ApplyTo(*g.cfg.Load())
	if err := next.Validate(); err != nil {
		return *g.cfg.Load(), err
	}
	g.cfg.Store(&next)

	g.logger.Info("floodguard config updated", zap.Bool("enabled", next.Enabled))
	return next, nil
}

// Stats é leitura pura: não remove mute expirado nem mexe na janela.
func (g *Guard) Stats(identity, scope string, now time.Time) domain.IdentityStats {
	st := domain.IdentityStats{Identity: identity, Scope: scope}
	k := identityKey{identity: identity, scope: scope}

	g.mu.Lock()
	defer g.mu.Unlock()

	ent := g.entries[k]
	if ent == nil {
		return st
	}

	st.MessageCount = ent.count
	st.Warnings = ent.warnings

	// mute expirado mas ainda presente conta como inativo
	if m := ent.mute; m != nil && now.Before(m.until) {
		st.Muted = true
		st.MuteReason = m.reason
		st.MuteRemaining = m.until.Sub(now)
	}

	if !ent.windowStart.IsZero() {
		st.WindowStart = ent.windowStart
		elapsed := now.Sub(ent.windowStart)
		if elapsed < 0 {
			elapsed = 0
		}
		st.Elapsed = elapsed
		if secs := elapsed.Seconds(); secs > 0 {
			st.Rate = float64(ent.count) / secs
		}
	}
	return st
}

// SystemStats agrega o estado vivo do guard. Leitura pura, como Stats.
func (g *Guard) SystemStats(now time.Time) domain.SystemStats {
	out := domain.SystemStats{Config: *g.cfg.Load()}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, ent := range g.entries {
		muted := ent.mute != nil && now.Before(ent.mute.until)
		if muted {
			out.MutedIdentities++
		}
		if muted || ent.count > 0 || ent.warnings > 0 {
			out.TrackedIdentities++
		}
		out.WarningsIssued += ent.warnings
	}
	return out
}

// Sweep descarta identidades paradas há mais que o idleTTL. Identidades com
// mute ainda vigente nunca são descartadas (o mute precisa continuar valendo).
// Retorna quantas entradas foram removidas.
func (g *Guard) Sweep(now time.Time) int {
	cutoff := now.Add(-g.idleTTL)

	g.mu.Lock()
	removed := 0
	for k, ent := range g.entries {
		if ent.lastSeen.After(cutoff) {
			continue
		}
		if m := ent.mute; m != nil && now.Before(m.until) {
			continue
		}
		delete(g.entries, k)
		removed++
	}
	trackedGauge.Set(float64(len(g.entries)))
	g.mu.Unlock()

	if removed > 0 {
		g.logger.Debug("floodguard sweep", zap.Int("removed", removed))
	}
	return removed
}

// StartJanitor inicia uma goroutine que varre identidades inativas
// periodicamente. Nunca é necessária para correção (expiração de mute e
// janela é preguiçosa), apenas para manter a memória limitada.
// Pare cancelando o contexto.
func (g *Guard) StartJanitor(ctx DoneContext) {
	if g.sweepEvery <= 0 {
		return
	}

	t := time.NewTicker(g.sweepEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				g.Sweep(time.Now())
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar
// context aqui. (Permite reuso em libs sem acoplar.)
type DoneContext interface {
	Done() <-chan struct{}
}
