package main

import (
	"github.com/robotalks/swuart/pkg/cli/sh"
	"github.com/robotalks/swuart/pkg/env"

	_ "github.com/robotalks/swuart/pkg/cli/cmds/uart"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
