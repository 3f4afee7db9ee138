// Package main defines the rustchain node entry point: flag parsing, logging
// setup and handing control to the node lifecycle manager.
package main

import (
	"fmt"
	"os"
	goruntime "runtime"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/rustchain-network/rustchain/cmd/rustchain-node/flags"
	"github.com/rustchain-network/rustchain/node"
	"github.com/rustchain-network/rustchain/runtime/version"
)

var log = logrus.WithField("prefix", "main")

var appFlags = []cli.Flag{
	flags.DataDirFlag,
	flags.HTTPHostFlag,
	flags.HTTPPortFlag,
	flags.AdminKeyFlag,
	flags.NodeIDFlag,
	flags.PeersFlag,
	flags.TrustedProxiesFlag,
	flags.MonitoringPortFlag,
	flags.DisableMonitoringFlag,
	flags.MockSignaturesFlag,
	flags.VerbosityFlag,
	flags.LogFormatFlag,
}

func startNode(ctx *cli.Context) error {
	n, err := node.New(ctx)
	if err != nil {
		return err
	}
	n.Start()
	return nil
}

func main() {
	app := cli.App{}
	app.Name = "rustchain-node"
	app.Usage = "launches a rustchain proof-of-antiquity node that attests vintage hardware and settles epoch rewards"
	app.Version = version.Version()
	app.Flags = appFlags
	app.Action = startNode
	app.Before = func(ctx *cli.Context) error {
		format := ctx.String(flags.LogFormatFlag.Name)
		switch format {
		case "text":
			formatter := new(prefixed.TextFormatter)
			formatter.TimestampFormat = "2006-01-02 15:04:05"
			formatter.FullTimestamp = true
			logrus.SetFormatter(formatter)
		case "json":
			logrus.SetFormatter(&logrus.JSONFormatter{})
		default:
			return fmt.Errorf("unknown log format %s", format)
		}

		level, err := logrus.ParseLevel(ctx.String(flags.VerbosityFlag.Name))
		if err != nil {
			return err
		}
		logrus.SetLevel(level)

		goruntime.GOMAXPROCS(goruntime.NumCPU())
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
