// Package main is the entry point for kitsune.
package main

import (
	"github.com/kitsune-cli/kitsune/cmd"
	"github.com/kitsune-cli/kitsune/config"
	"github.com/kitsune-cli/kitsune/log"
	"github.com/samber/lo"
)

func main() {
	lo.Must0(config.Setup())
	lo.Must0(log.Setup())

	cmd.Execute()
}
