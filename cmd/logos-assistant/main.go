// Package main provides the logos-assistant CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

// Version is set by ldflags during build.
var Version = "dev"

// main is the program entry point.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
