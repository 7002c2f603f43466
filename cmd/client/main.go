// Package main runs the math client: discovery, verification or a single
// free-text query.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	clientcmd "github.com/louisbranch/mathmcp/internal/cmd/client"
	"github.com/louisbranch/mathmcp/internal/platform/config"
)

func main() {
	cfg, err := clientcmd.ParseConfig(flag.CommandLine, os.Args[1:], os.LookupEnv)
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := clientcmd.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		config.Exitf("Error: %v", err)
	}
}
