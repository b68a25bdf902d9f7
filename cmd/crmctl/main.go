package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/odyssey-erp/odyssey-crm/cmd/crmctl/cli"
	"github.com/odyssey-erp/odyssey-crm/internal/app"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping crmctl")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	code := cli.Run(ctx, os.Args[1:], cli.Env{Config: cfg, Logger: app.NewLogger(cfg)})
	stop()
	os.Exit(code)
}
