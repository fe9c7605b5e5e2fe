// Package main is the entry point of the malla command.
//
//	malla serve                     run the HTTP API
//	malla migrate up|down|status    manage the projection store schema
//	malla summary --rut R --program P [--catalog C] [--json]
//	malla plans --rut R --program P [--json]
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/malla-ucn/malla-estudiante/internal/cli"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	return cli.NewRootCmd(&cli.App{}).ExecuteContext(ctx)
}
