package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/brensch/campwatch/internal/ridb"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	// ExitAuth means no usable RIDB key; nothing can be checked.
	ExitAuth = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("campwatch failed", slog.Any("err", err))
		if errors.Is(err, ridb.ErrAuth) {
			os.Exit(ExitAuth)
		}
		os.Exit(ExitError)
	}
}
