package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/master-pd/nomi-sub001/middleware/floodguard"
	"github.com/master-pd/nomi-sub001/middleware/floodguard/domain"
	"github.com/master-pd/nomi-sub001/middleware/floodguard/infra"
)

func main() {
	// Exemplo: injetando o floodguard direto no seu webserver (sem proxy)
	guard, err := infra.NewGuard(domain.DefaultConfig())
	if err != nil {
		log.Fatalf("guard error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	guard.StartJanitor(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/send", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("delivered\n"))
	})

	h := http.Handler(mux)
	h = floodguard.ConcurrencyMiddleware(floodguard.ConcurrencyOptions{Max: 50})(h)
	h = floodguard.Middleware(floodguard.Options{
		Guard:              guard,
		IdentityHeader:     "X-User-ID", // ou vazio para usar IP
		ScopeHeader:        "X-Chat-ID",
		TrustXForwardedFor: true,
		AddFloodHeaders:    true,
	})(h)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("example server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
