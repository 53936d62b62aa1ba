package main

import (
	"fmt"
	"os"

	"prizevault/chain/cmd/pvd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "pvd: %v\n", err)
		os.Exit(1)
	}
}
