package crpt

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type requestBody struct {
	Document  any    `json:"document,omitempty"`
	Signature string `json:"signature"`
}

// Document é um exemplo de documento. O formato real segue o schema da API.
type Document struct {
	DocType     string `json:"doc_type,omitempty"`
	OwnerINN    string `json:"owner_inn,omitempty"`
	ProducerINN string `json:"producer_inn,omitempty"`
	RegNumber   string `json:"reg_number,omitempty"`
}

// Marshal monta o payload canônico {"document": ..., "signature": "..."}.
// Campos nulos são omitidos (use omitempty nos tipos de documento).
func Marshal(document any, signature string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(requestBody{Document: document, Signature: signature}); err != nil {
		return nil, &SerializationError{Err: err}
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// SerializationError indica que o documento não pôde ser convertido em JSON.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("crpt: failed to serialize document to JSON: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// TransportError indica falha de I/O ao falar com a API (conexão, timeout, cancelamento).
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("crpt: POST %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
