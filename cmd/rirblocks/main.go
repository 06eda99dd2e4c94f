package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"

	"github.com/Flarenzy/rirblocks/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, arg.ErrHelp) {
			p, _ := arg.NewParser(arg.Config{Program: "rirblocks"}, &app.Config{})
			p.WriteHelp(os.Stdout)
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("rirblocks exited: %v", err)
	}
}
