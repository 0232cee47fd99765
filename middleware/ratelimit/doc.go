// Package ratelimit fornece adapters HTTP (net/http) para rate limit, limite de
// concorrência e o gate de admissão por janela deslizante.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout, admissão no gate) sem net/http
//   - infra: implementações concretas (gate de janela deslizante, token bucket, semáforo, stats)
//   - ratelimit (este pacote): middlewares HTTP + wiring/extração de chave + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai a chave do cliente (IP/header/XFF) e aplica o limite de entrada (429)
//  2. Limita requisições simultâneas (503)
//  3. Espera a admissão no gate do recurso de destino (503 se a espera for cancelada)
//  4. Se admitido, chama o próximo handler (ex: cliente da API de documentos)
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como GATE_UNIT, GATE_LIMIT, RATE_RPS, RATE_BURST, CONCURRENCY_MAX e CONCURRENCY_TIMEOUT.
package ratelimit
