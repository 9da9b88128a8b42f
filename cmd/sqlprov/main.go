// Command sqlprov renders declared queries to SQL for a configured dialect
// and validates declared schemas.
//
//	sqlprov render --schema schema.yaml --queries queries.yaml
//	sqlprov render --watch
//	sqlprov validate --schema schema.yaml
//	sqlprov version
//
// Configuration is read from sqlprov.yaml in the working directory, or the
// file named by --config. Every key can be overridden with a SQLPROV_
// environment variable, e.g. SQLPROV_DIALECT=mssql.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		stop()
		os.Exit(1)
	}
}
