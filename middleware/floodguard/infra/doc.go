// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - Guard: estado de flood por identidade em memória (janela, warnings, mute)
//   - MemoryStatsStore / RedisStatsStore: registro de decisões
//   - BucketStore: token bucket por chave usando golang.org/x/time/rate
//   - ChanPool: semáforo simples para limite de concorrência
package infra
