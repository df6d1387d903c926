package main

import (
	"github.com/gekko3d/rtaccel/logging"
	"github.com/urfave/cli"
)

func setupLogging(ctx *cli.Context) logging.Logger {
	return logging.NewDefaultLogger("rtaccel", ctx.GlobalBool("verbose"))
}
