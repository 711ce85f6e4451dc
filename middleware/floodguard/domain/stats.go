package domain

import (
	"context"
	"time"
)

// DecisionEvent representa uma decisão do controle de flood para registro.
//
// Ele é propositalmente agnóstico de transporte: identidade/escopo são strings
// genéricas e servem para web, bots de chat, gRPC, etc.
//
// Observação: cuidado com cardinalidade (registrar toda identidade sem controle
// pode explodir o número de chaves em uma base como Redis).
type DecisionEvent struct {
	Identity string
	Scope    string

	Allowed bool
	Reason  Reason

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas de decisão.
//
// Implementações podem armazenar em Redis, memória, etc.
// O adapter deve tratar erro como best-effort (não derrubar o evento).
type StatsStore interface {
	Record(ctx context.Context, ev DecisionEvent) error
}
