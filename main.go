package main

import (
	"os"

	"github.com/torchat/torchat-go/cli/app"
)

func main() {
	ctl := app.New()

	if err := ctl.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
