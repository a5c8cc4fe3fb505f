// Package main loads player status fragments from the command line.
//
// Each argument is a player id (loaded into element player-<id>) or a
// target=id pair; an empty id clears its target.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	statuscmd "github.com/louisbranch/statusfrag/internal/cmd/status"
	"github.com/louisbranch/statusfrag/internal/platform/config"
)

func main() {
	cfg, err := statuscmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[STATUS] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := statuscmd.Run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("load status: %v", err)
	}
}
