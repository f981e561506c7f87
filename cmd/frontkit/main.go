// Command frontkit builds, serves and checks a single-page frontend.
package main

import (
	"context"
	"os"

	"github.com/dkoosis/frontkit/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background(), os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
