package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"
)

// Stub do método de criação de documentos, para validar o gateway localmente:
//
//	go run ./teste-validacao/upstream-fake
//	UPSTREAM_URL=http://localhost:8081/api/v3/lk/documents/create go run ./cmd/gateway
func main() {
	var seq int64
	http.HandleFunc("/api/v3/lk/documents/create", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		n := atomic.AddInt64(&seq, 1)
		fmt.Printf("%s #%d auth=%q body=%s\n", time.Now().Format("15:04:05.000"), n, r.Header.Get("Authorization"), body)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"value":"doc-%d"}`, n)
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}
	fmt.Printf("Servidor fake rodando em http://localhost%s\n", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		fmt.Printf("Erro ao subir o servidor: %s\n", err)
	}
}
