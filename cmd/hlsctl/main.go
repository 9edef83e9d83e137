package main

import (
	"os"

	"github.com/psantana5/hls-server/cmd/hlsctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
