package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/torchat/torchat-go/cli/server"
	"github.com/torchat/torchat-go/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "torchat-go\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a torchat-go instance of [cli.App] with all commands
// included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "torchat-go"
	ctl.Version = config.Version
	ctl.Usage = "Anonymous peer-to-peer chat over SOCKS4a"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, server.NewCommands()...)
	return ctl
}
