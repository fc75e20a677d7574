package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/robotalks/swuart/pkg/env"
	"github.com/robotalks/swuart/pkg/framework"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()

	env := env.NewConfig().MustNewEnv()
	framework.NewLoop().Add(env).RunOrFail()
}
