package main

import (
	"os"

	substratecmder "github.com/presencelabs/substrate/cmd/substrate"
)

func main() {
	cmd := substratecmder.NewSubstrateCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
