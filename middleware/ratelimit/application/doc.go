// Package application contém os casos de uso (regras de aplicação) para rate limit,
// limite de concorrência e admissão pelo gate de janela deslizante.
//
// Ele depende apenas do pacote domain (e do logger) e não conhece net/http.
// Ex.: Service.Decide(key) retorna uma Decision (allow/deny + retry-after);
// AdmissionService.Admit(ctx) bloqueia até o gate admitir.
package application
