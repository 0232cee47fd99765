package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"crpt-gateway/client/crpt"
	"crpt-gateway/internal/logging"
	"crpt-gateway/middleware/ratelimit"
	"crpt-gateway/middleware/ratelimit/application"
	"crpt-gateway/middleware/ratelimit/infra"

	"github.com/sirupsen/logrus"
)

// Demonstração: um webserver com o GateMiddleware injetado (sem proxy) e, do lado
// cliente, 10 goroutines chamando CreateDocument com um gate de 5 por segundo.
// As 5 primeiras passam na hora; as outras esperam a janela andar.
func main() {
	logger, err := logging.New(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	if err != nil {
		logrus.Fatalf("logger: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// lado servidor: protege o handler com o próprio gate
	serverGate, err := infra.NewSlidingWindowGate(time.Second, 5)
	if err != nil {
		logger.Fatalf("gate: %v", err)
	}
	stats := infra.NewMemoryStatsStore(infra.WithTrackKeys(true))

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/lk/documents/create", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"value":"ok"}`))
	})

	h := http.Handler(mux)
	h = ratelimit.GateMiddleware(ratelimit.GateOptions{
		Gate:          serverGate,
		Stats:         stats,
		Key:           "server",
		Logger:        logger,
		AddWaitHeader: true,
	})(h)
	h = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50, Stats: stats})(h)

	addr := "127.0.0.1:8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatalf("listen: %v", err)
	}

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
		}
	}()
	logger.Infof("example server listening on %s", ln.Addr())

	// lado cliente
	clientGate, err := infra.NewSlidingWindowGate(time.Second, 5)
	if err != nil {
		logger.Fatalf("gate: %v", err)
	}
	client, err := crpt.New(
		application.AdmissionService{Gate: clientGate, Stats: stats, Logger: logger, Key: "client"},
		crpt.WithBaseURL("http://"+ln.Addr().String()+"/api/v3/lk/documents/create"),
		crpt.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("client: %v", err)
	}

	runDemo(ctx, client, logger, 10)

	total := stats.ByKey()
	logger.WithFields(logrus.Fields{
		"client": total["client"],
		"server": total["server"],
	}).Info("demo finished")

	if os.Getenv("KEEP_SERVING") == "" {
		cancel()
	} else {
		<-ctx.Done()
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)
}

func runDemo(ctx context.Context, client *crpt.Client, logger logrus.FieldLogger, n int) {
	doc := crpt.Document{
		DocType:     "LP_INTRODUCE_GOODS",
		OwnerINN:    "1234567890",
		ProducerINN: "1234567890",
		RegNumber:   "reg-001",
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			l := logger.WithField("worker", idx)
			l.Info("sending")

			resp, err := client.CreateDocument(ctx, doc, "BASE64_SIGNATURE_EXAMPLE")
			if err != nil {
				l.WithError(err).Warn("create failed")
				return
			}
			l.WithFields(logrus.Fields{
				"status":  resp.StatusCode,
				"elapsed": time.Since(start).Round(time.Millisecond).String(),
			}).Info("got response")
		}(i)
	}
	wg.Wait()
}
