// Command slotboardctl runs operator jobs against the slot board store,
// most importantly the unattended weekly backup and reset.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/abrezinsky/slotboard/internal/cli"
)

var version = "dev"

func main() {
	// .env is optional; cron runs usually export the environment directly
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.Main(ctx, os.Args[1:], os.Stdout, os.Stderr, version)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "slotboardctl: %v\n", err)
		os.Exit(1)
	}
}
