// Package crpt é um cliente mínimo para o método de criação de documentos da API
// "Честный знак" (CRPT). Toda chamada passa antes pelo gate de admissão informado
// na construção; o cliente não faz retry nem obtém token.
package crpt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"crpt-gateway/middleware/ratelimit/domain"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://ismp.crpt.ru/api/v3/lk/documents/create"
	// DemoBaseURL é o estande de demonstração.
	DemoBaseURL = "https://markirovka.demo.crpt.tech/api/v3/lk/documents/create"

	acceptHeader = "*/*"
	contentType  = "application/json;charset=UTF-8"
)

var ErrNilDocument = errors.New("document cannot be nil")

// Client é seguro para uso concorrente.
type Client struct {
	gate   domain.Gate
	http   *resty.Client
	logger logrus.FieldLogger

	mu        sync.RWMutex
	baseURL   string
	authToken string
}

type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

func WithAuthToken(token string) Option {
	return func(c *Client) { c.authToken = token }
}

// WithTimeout limita cada requisição HTTP (não inclui a espera no gate).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRestyClient troca o cliente HTTP (ex: transporte customizado em testes).
func WithRestyClient(rc *resty.Client) Option {
	return func(c *Client) {
		if rc != nil {
			c.http = rc
		}
	}
}

// New cria o cliente. O gate é obrigatório: uma instância por recurso limitado,
// compartilhada por todos os clientes que consomem a mesma cota.
func New(gate domain.Gate, opts ...Option) (*Client, error) {
	if gate == nil {
		return nil, errors.New("crpt: gate is required")
	}

	c := &Client{
		gate:    gate,
		http:    resty.New().SetTimeout(30 * time.Second),
		logger:  logrus.StandardLogger(),
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		return nil, errors.New("crpt: base URL is required")
	}
	return c, nil
}

// SetBaseURL troca a URL do método de criação (ex: DemoBaseURL).
func (c *Client) SetBaseURL(url string) {
	c.mu.Lock()
	c.baseURL = url
	c.mu.Unlock()
}

// SetAuthToken define o token Bearer (sem o prefixo "Bearer "). Vazio remove o header.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	c.authToken = token
	c.mu.Unlock()
}

func (c *Client) endpoint() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL, c.authToken
}

// CreateDocument espera a admissão no gate, serializa
// {"document": <document>, "signature": "<signature>"} e faz o POST.
//
// O status HTTP não é interpretado: qualquer resposta recebida volta em Response.
// Erros possíveis: cancelamento do gate (domain.ErrCancelled), *SerializationError, *TransportError.
func (c *Client) CreateDocument(ctx context.Context, document any, signature string) (*Response, error) {
	if document == nil {
		return nil, ErrNilDocument
	}

	if err := c.gate.Acquire(ctx); err != nil {
		return nil, err
	}

	body, err := Marshal(document, signature)
	if err != nil {
		return nil, err
	}

	url, token := c.endpoint()
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", acceptHeader).
		SetHeader("Content-Type", contentType).
		SetBody(body)
	if token != "" {
		req.SetAuthToken(token)
	}

	resp, err := req.Post(url)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	c.logger.WithFields(logrus.Fields{
		"module": "crpt",
		"status": resp.StatusCode(),
		"took":   resp.Time().String(),
	}).Debug("crpt: document create answered")

	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}

// Response é o status e o corpo cru da resposta.
type Response struct {
	StatusCode int
	Body       []byte
}

func (r *Response) String() string {
	return fmt.Sprintf("Response{statusCode=%d, body=%q}", r.StatusCode, r.Body)
}
