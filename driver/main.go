package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/KaiJun-SIT/Big-Data-amazon/shared/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stderr)
	stop()
	logger.Sync()
	os.Exit(code)
}
