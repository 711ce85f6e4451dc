// Package floodguard fornece adapters HTTP (net/http) para o controle de
// flood por identidade e para o limite de concorrência de ingestão.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/block, operações administrativas) sem net/http
//   - infra: implementações concretas (guard em memória, stats, semáforo), detalhes de infraestrutura
//   - floodguard (este pacote): middlewares HTTP + extração de identidade/escopo + tradução para status/headers + API administrativa
//
// Fluxo no gateway:
//
//  1. Extrai identidade e escopo do cliente (header/XFF/IP + header de escopo)
//  2. Chama a camada application para obter a decisão do guard
//  3. Se bloqueado (mute vigente ou flood novo), responde 429 com Retry-After
//  4. Se permitido, chama o próximo handler (ex: reverse proxy para o upstream de chat)
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o
// comportamento, como FLOOD_MAX_PER_SECOND, FLOOD_MAX_PER_MINUTE,
// FLOOD_AUTO_RESET e CONCURRENCY_MAX.
package floodguard
