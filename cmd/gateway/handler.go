package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"crpt-gateway/client/crpt"
	"crpt-gateway/middleware/ratelimit/domain"

	"github.com/sirupsen/logrus"
)

const createPath = "/api/v3/lk/documents/create"

// documentCreator é o que o handler precisa do cliente crpt.
type documentCreator interface {
	CreateDocument(ctx context.Context, document any, signature string) (*crpt.Response, error)
}

type createRequest struct {
	Document  json.RawMessage `json:"document"`
	Signature string          `json:"signature"`
}

// createHandler recebe {"document": ..., "signature": "..."} e repassa ao upstream
// pelo cliente (que espera a admissão no gate). Status e corpo do upstream voltam como estão.
// timeout > 0 limita a operação inteira (fila do gate incluída).
func createHandler(client documentCreator, logger logrus.FieldLogger, timeout time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		var req createRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 10<<20)).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if len(req.Document) == 0 || string(req.Document) == "null" {
			http.Error(w, "document is required", http.StatusBadRequest)
			return
		}

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		resp, err := client.CreateDocument(ctx, req.Document, req.Signature)
		if err != nil {
			status := http.StatusBadGateway
			var se *crpt.SerializationError
			switch {
			case domain.IsCancelled(err):
				status = http.StatusServiceUnavailable
			case errors.As(err, &se):
				status = http.StatusBadRequest
			}
			logger.WithError(err).WithField("status", status).Warn("document create failed")
			http.Error(w, http.StatusText(status), status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(resp.Body)
	})
}
