// Command chatcli is a terminal client for a PairChat server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/Tyrowin/pairchat/internal/client"
	"github.com/Tyrowin/pairchat/internal/logging"
)

// flags holds global options and what the Before hook builds from them.
type flags struct {
	Server   string
	Token    string
	LogLevel string

	API *client.Client
	Log *zap.Logger
}

func main() {
	f := &flags{}

	app := &cli.Command{
		Name:      "chatcli",
		Usage:     "Talk to a PairChat server from the terminal",
		UsageText: "chatcli [global options] command [command options]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "server",
				Usage:       "server base URL",
				Sources:     cli.EnvVars("PAIRCHAT_SERVER"),
				Value:       "http://localhost:8080",
				Destination: &f.Server,
			},
			&cli.StringFlag{
				Name:        "token",
				Usage:       "access token returned by login",
				Sources:     cli.EnvVars("PAIRCHAT_TOKEN"),
				Destination: &f.Token,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("PAIRCHAT_LOG_LEVEL"),
				Value:       "warn",
				Destination: &f.LogLevel,
			},
		},
		Before: func(ctx context.Context, _ *cli.Command) (context.Context, error) {
			log, err := logging.New(f.LogLevel, true)
			if err != nil {
				return ctx, err
			}
			f.Log = log

			api, err := client.New(f.Server, client.WithToken(f.Token))
			if err != nil {
				return ctx, err
			}
			f.API = api
			return ctx, nil
		},
		Commands: []*cli.Command{
			registerCmd(f),
			loginCmd(f),
			usersCmd(f),
			historyCmd(f),
			sendCmd(f),
			deleteCmd(f),
			watchCmd(f),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.Run(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "chatcli:", err)
		os.Exit(1)
	}
}
