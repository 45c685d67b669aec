package main

import (
	"fmt"
	"os"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/demos"
	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/runner"
)

func main() {
	cat, err := demos.NewCatalog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid demo catalog: %v\n", err)
		os.Exit(runner.ExitContract)
	}
	os.Exit(runner.Run(os.Args[1:], cat, os.Stdin, os.Stdout, os.Stderr))
}
