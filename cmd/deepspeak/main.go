// Command deepspeak is a command-line client for the DeepSeek chat API.
//
// Configuration is read from a YAML file (see pkg/config), a .env file in
// the working directory and the environment:
//
//	DEEPSEEK_API_KEY    - API key (required for API calls)
//	DEEPSPEAK_BASE_URL  - API base URL (default: https://api.deepseek.com)
//	DEEPSPEAK_MODEL     - Default model (default: deepseek-chat)
//	DEEPSPEAK_TIMEOUT   - Request timeout, seconds or Go duration (default: 60s)
//	DEEPSPEAK_CONFIG    - Config file path
//	DEEPSPEAK_LOG_LEVEL - ERROR, WARN, INFO, DEBUG or TRACE
//	DEEPSPEAK_DEBUG     - Debug categories: client, streaming, config, cli, all
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
