// Command customerctl inspects and administers stored customer records.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kylevidrine/portal/internal/bootstrap"
	"github.com/kylevidrine/portal/internal/cmd/customerctl"
	"github.com/kylevidrine/portal/internal/config"
	"github.com/kylevidrine/portal/internal/customers"
	"github.com/kylevidrine/portal/pkg/logger"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.SetOutput(os.Stderr)

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenCustomerStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	code := customerctl.Run(ctx, customers.NewService(store.Repo), os.Args[1:], os.Stdout, os.Stderr)
	_ = store.Close()
	os.Exit(code)
}
