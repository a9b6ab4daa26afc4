package main

import (
	"fmt"
	"os"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/config"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/verigradectl/internal/cli"
)

func main() {
	config.Load()
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
