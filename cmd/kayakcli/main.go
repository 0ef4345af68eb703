package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/robotalks/kayak/pkg/cli/sh"
	"github.com/robotalks/kayak/pkg/kayak"
)

func init() {
	kayak.SetupFlags()
	// rejected lines are reported through the log.
	flag.Set("logtostderr", "true")
}

func main() {
	sh.Main()
}
