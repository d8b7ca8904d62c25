package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/3s-rg-codes/fcstream/functions/go/hello"
	"github.com/3s-rg-codes/fcstream/pkg/config"
	"github.com/3s-rg-codes/fcstream/pkg/function"
	"github.com/3s-rg-codes/fcstream/pkg/runtime"
	"github.com/3s-rg-codes/fcstream/pkg/utils"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the function over the custom runtime HTTP contract and gRPC",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
			},
			&cli.StringFlag{
				Name:  "http-address",
				Usage: "HTTP listen address (default " + config.DefaultHTTPAddress + ")",
			},
			&cli.StringFlag{
				Name:  "grpc-address",
				Usage: "gRPC listen address, empty disables gRPC (default " + config.DefaultGRPCAddress + ")",
			},
			&cli.DurationFlag{
				Name:  "idle-timeout",
				Usage: "stop after this long without calls, 0 disables it. example: 30s, 5m",
			},
		}, logFlags(true)...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger, closeLog, err := utils.SetupLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
			if err != nil {
				return err
			}
			defer closeLog()
			logger.Info("Current configuration", "config", cfg)

			rt := runtime.New(hello.New(), function.LoadEnvironment(), logger)

			sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runtime.Serve(sigCtx, cfg.Server, rt)
		},
	}
}

// loadConfig applies the flags that were set on top of the file and environment config.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("http-address") {
		cfg.Server.HTTPAddress = cmd.String("http-address")
	}
	if cmd.IsSet("grpc-address") {
		cfg.Server.GRPCAddress = cmd.String("grpc-address")
	}
	if cmd.IsSet("idle-timeout") {
		cfg.Server.IdleTimeout = cmd.Duration("idle-timeout")
	}
	if cmd.IsSet(logLevelFlag) {
		cfg.Log.Level = cmd.String(logLevelFlag)
	}
	if cmd.IsSet(logFormatFlag) {
		cfg.Log.Format = cmd.String(logFormatFlag)
	}
	if cmd.IsSet(logFileFlag) {
		cfg.Log.File = cmd.String(logFileFlag)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
