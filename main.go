package main

import (
	"fmt"
	"os"

	_ "pkgsync/cmd"
	"pkgsync/cmd/root"
)

func main() {
	if err := root.RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pkgsync: %v\n", err)
		os.Exit(1)
	}
}
