package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/vulnfinder/vulnfinder/cmd/vulnfinder/commands"
	"github.com/vulnfinder/vulnfinder/pkg/engine"
)

func main() {
	if err := commands.NewCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, engine.ErrUnauthorized) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
