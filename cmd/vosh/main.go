package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mako10k/vosh/internal/app"
)

// Application metadata
const (
	AppName    = "vosh"
	AppVersion = "0.1.0"
)

func main() {
	metadata := app.ApplicationMetadata{
		Name:    AppName,
		Version: AppVersion,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	code, err := app.ExecuteWithArgs(ctx, metadata, os.Args[1:], app.StdStreams())
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
	}
	os.Exit(code)
}
