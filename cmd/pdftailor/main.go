// Package main は PDF の連結（stitch）と分解（unstitch）を行うコマンドです。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yourusername/pdf-tailor/internal/config"
	"github.com/yourusername/pdf-tailor/internal/tailor"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lib, err := tailor.NewPdfcpuLibrary(config.ValidationMode())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitFailure)
	}

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, lib)
	stop()
	os.Exit(code)
}
