package domain

// Camada de domínio do controle de flood.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"errors"
	"time"
)

// Reason identifica a causa de uma decisão de bloqueio.
type Reason string

const (
	// ReasonUserMuted: a identidade já está sob mute vigente.
	ReasonUserMuted Reason = "user_muted"
	// ReasonHighMessageRate: taxa média da janela acima do limite por segundo.
	ReasonHighMessageRate Reason = "high_message_rate"
	// ReasonMinuteLimit: contagem acima do limite com janela menor que 1 minuto.
	ReasonMinuteLimit Reason = "minute_limit_exceeded"
	// ReasonFiveMinuteLimit: contagem acima do limite com janela menor que 5 minutos.
	ReasonFiveMinuteLimit Reason = "five_minute_limit_exceeded"
)

// Checker decide se uma mensagem de uma identidade deve ser processada agora.
//
// O relógio é sempre injetado pelo chamador; a implementação nunca lê o
// relógio do sistema dentro da decisão (testabilidade).
type Checker interface {
	CheckEvent(identity, scope string, now time.Time) Decision
}

// Decision é o resultado de um evento de mensagem.
type Decision struct {
	Allowed bool

	// Reason/Detail preenchidos apenas quando bloqueado.
	Reason Reason
	Detail string

	// Warnings é o contador de episódios de flood (pós-incremento) quando um
	// mute novo é imposto.
	Warnings int

	// MuteDuration/MuteExpiresAt preenchidos quando um mute novo é imposto.
	MuteDuration  time.Duration
	MuteExpiresAt time.Time

	// MuteRemaining preenchido quando bloqueado por mute já vigente.
	MuteRemaining time.Duration
}

// MuteDurations é a tabela de escalonamento: duração do mute por contagem
// acumulada de warnings.
type MuteDurations struct {
	FirstOffense  time.Duration
	SecondOffense time.Duration
	ThirdOffense  time.Duration
	Persistent    time.Duration
}

// ForWarnings seleciona a duração pela contagem pós-incremento (w >= 1).
func (m MuteDurations) ForWarnings(w int) time.Duration {
	switch {
	case w >= 4:
		return m.Persistent
	case w == 3:
		return m.ThirdOffense
	case w == 2:
		return m.SecondOffense
	default:
		return m.FirstOffense
	}
}

// Config é um snapshot imutável da configuração do guard.
//
// Atualizações dinâmicas criam um snapshot novo trocado atomicamente; nenhum
// evento em andamento observa uma configuração parcialmente aplicada.
type Config struct {
	MaxMessagesPerSecond   float64
	MaxMessagesPerMinute   int
	MaxMessagesPer5Minutes int
	MuteDurations          MuteDurations
	AutoReset              time.Duration
	Enabled                bool
}

// DefaultConfig retorna os limites padrão do controle de flood.
func DefaultConfig() Config {
	return Config{
		MaxMessagesPerSecond:   2,
		MaxMessagesPerMinute:   15,
		MaxMessagesPer5Minutes: 50,
		MuteDurations: MuteDurations{
			FirstOffense:  1 * time.Minute,
			SecondOffense: 5 * time.Minute,
			ThirdOffense:  30 * time.Minute,
			Persistent:    24 * time.Hour,
		},
		AutoReset: 5 * time.Minute,
		Enabled:   true,
	}
}

var (
	ErrInvalidRate         = errors.New("max_messages_per_second must be > 0")
	ErrInvalidMinuteLimit  = errors.New("max_messages_per_minute must be > 0")
	ErrInvalid5MinuteLimit = errors.New("max_messages_per_5minutes must be > 0")
	ErrInvalidMuteDuration = errors.New("mute durations must be > 0")
	ErrInvalidAutoReset    = errors.New("auto_reset_seconds must be > 0")
)

// Validate rejeita limites não positivos. Uma atualização inválida deve ser
// recusada deixando a configuração anterior intacta.
func (c Config) Validate() error {
	if c.MaxMessagesPerSecond <= 0 {
		return ErrInvalidRate
	}
	if c.MaxMessagesPerMinute <= 0 {
		return ErrInvalidMinuteLimit
	}
	if c.MaxMessagesPer5Minutes <= 0 {
		return ErrInvalid5MinuteLimit
	}
	m := c.MuteDurations
	if m.FirstOffense <= 0 || m.SecondOffense <= 0 || m.ThirdOffense <= 0 || m.Persistent <= 0 {
		return ErrInvalidMuteDuration
	}
	if c.AutoReset <= 0 {
		return ErrInvalidAutoReset
	}
	return nil
}

// ConfigUpdate é um merge parcial: campos nil mantêm o valor vigente.
// Durações chegam em segundos (mesmas chaves da configuração externa).
type ConfigUpdate struct {
	MaxMessagesPerSecond   *float64             `json:"max_messages_per_second,omitempty"`
	MaxMessagesPerMinute   *int                 `json:"max_messages_per_minute,omitempty"`
	MaxMessagesPer5Minutes *int                 `json:"max_messages_per_5minutes,omitempty"`
	MuteDurations          *MuteDurationsUpdate `json:"mute_duration,omitempty"`
	AutoResetSeconds       *int                 `json:"auto_reset_seconds,omitempty"`
	Enabled                *bool                `json:"enabled,omitempty"`
}

type MuteDurationsUpdate struct {
	FirstOffense  *int `json:"first_offense,omitempty"`
	SecondOffense *int `json:"second_offense,omitempty"`
	ThirdOffense  *int `json:"third_offense,omitempty"`
	Persistent    *int `json:"persistent,omitempty"`
}

// ApplyTo devolve um snapshot novo com o merge aplicado; o snapshot recebido
// nunca é mutado.
func (u ConfigUpdate) ApplyTo(c Config) Config {
	if u.MaxMessagesPerSecond != nil {
		c.MaxMessagesPerSecond = *u.MaxMessagesPerSecond
	}
	if u.MaxMessagesPerMinute != nil {
		c.MaxMessagesPerMinute = *u.MaxMessagesPerMinute
	}
	if u.MaxMessagesPer5Minutes != nil {
		c.MaxMessagesPer5Minutes = *u.MaxMessagesPer5Minutes
	}
	if md := u.MuteDurations; md != nil {
		if md.FirstOffense != nil {
			c.MuteDurations.FirstOffense = time.Duration(*md.FirstOffense) * time.Second
		}
		if md.SecondOffense != nil {
			c.MuteDurations.SecondOffense = time.Duration(*md.SecondOffense) * time.Second
		}
		if md.ThirdOffense != nil {
			c.MuteDurations.ThirdOffense = time.Duration(*md.ThirdOffense) * time.Second
		}
		if md.Persistent != nil {
			c.MuteDurations.Persistent = time.Duration(*md.Persistent) * time.Second
		}
	}
	if u.AutoResetSeconds != nil {
		c.AutoReset = time.Duration(*u.AutoResetSeconds) * time.Second
	}
	if u.Enabled != nil {
		c.Enabled = *u.Enabled
	}
	return c
}

// Admin é a superfície administrativa do guard (moderação manual, config
// dinâmica e leitura de estado). Leituras nunca mutam estado.
type Admin interface {
	Unmute(identity, scope string) bool
	ResetIdentity(identity, scope string)
	UpdateConfig(u ConfigUpdate) (Config, error)
	Stats(identity, scope string, now time.Time) IdentityStats
	SystemStats(now time.Time) SystemStats
}

// IdentityStats é um snapshot somente-leitura do estado de uma identidade.
// Um mute expirado mas ainda não removido aparece como inativo.
type IdentityStats struct {
	Identity string
	Scope    string

	MessageCount int
	Warnings     int

	Muted         bool
	MuteReason    Reason
	MuteRemaining time.Duration

	// WindowStart zero indica que não há janela aberta.
	WindowStart time.Time
	Elapsed     time.Duration
	Rate        float64
}

// SystemStats agrega o estado do guard para observabilidade externa.
type SystemStats struct {
	// TrackedIdentities conta identidades com algum estado vivo
	// (janela aberta, warnings acumulados ou mute ativo).
	TrackedIdentities int
	MutedIdentities   int
	WarningsIssued    int
	Config            Config
}
