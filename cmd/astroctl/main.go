// Command astroctl inspects data files and manages AstroAPI projects from
// the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/astroapi/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; the CLI also runs outside a deployment.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", cli.ErrorMessage(err))
		stop()
		os.Exit(1)
	}
}
