// Command nxsql runs SQL against SQLite databases through nxsqlite.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ninjasync/nxsqlite/internal/cli"
	"github.com/ninjasync/nxsqlite/internal/logging"
)

func main() {
	// Commands log through their own configured logger; the default
	// only sees what happens before the config is loaded.
	if _, err := logging.Init(os.Stderr, "warn", "text"); err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
