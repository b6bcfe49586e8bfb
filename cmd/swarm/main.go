package main

import (
	"os"

	"github.com/devswarm/swarm/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
