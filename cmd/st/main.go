package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tanatools/supertag/internal/sterr"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		reportError(err)
		os.Exit(sterr.ExitCode(err))
	}
}
