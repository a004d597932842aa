// Command mock-backend runs a deterministic DeepSeek-compatible chat server
// for local development and CLI smoke tests. Replies are derived from the
// last user message, so the same prompt always yields the same answer.
//
// Configuration:
//
//	MOCK_PORT    - Listen port (default: 9090)
//	MOCK_API_KEY - Bearer token the server requires (default: none)
//	MOCK_MODELS  - Comma-separated model IDs served by /models
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rhuss/deepspeak/pkg/deepseek/deepseektest"
	"github.com/rhuss/deepspeak/pkg/transport"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	backend := &deepseektest.Backend{}
	if key := os.Getenv("MOCK_API_KEY"); key != "" {
		backend.RequireAPIKey(key)
	}
	if models := os.Getenv("MOCK_MODELS"); models != "" {
		backend.SetModels(strings.Split(models, ",")...)
	}

	handler := transport.Chain(
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(nil),
	)(backend.Handler())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
