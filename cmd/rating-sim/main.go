package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/fheprop/internal/ratingsim"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ratingsim.NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
