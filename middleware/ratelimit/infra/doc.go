// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - SlidingWindowGate: gate de admissão bloqueante por janela deslizante, com fila FIFO
//   - GateRegistry / LoadGateFile: um gate por recurso, declarados em YAML
//   - Store: limiter por chave (token bucket via golang.org/x/time/rate ou janela deslizante)
//   - SemaphorePool: limite de concorrência via golang.org/x/sync/semaphore
//   - MemoryStatsStore / RedisStatsStore: contadores de admissão
package infra
