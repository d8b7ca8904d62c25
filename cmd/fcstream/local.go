package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/3s-rg-codes/fcstream/functions/go/hello"
	"github.com/3s-rg-codes/fcstream/pkg/function"
	"github.com/3s-rg-codes/fcstream/pkg/runtime"
	"github.com/3s-rg-codes/fcstream/pkg/utils"
	"github.com/urfave/cli/v3"
)

func localCommand() *cli.Command {
	return &cli.Command{
		Name:  "local",
		Usage: "initialize the function and invoke it once with stdin as payload, writing to stdout",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "request-id",
				Usage: "request id, generated when empty",
			},
		}, logFlags(false)...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			level, format := cmd.String(logLevelFlag), cmd.String(logFormatFlag)
			// stdout carries the response, so logs go to stderr
			logger := utils.NewLogger(os.Stderr, level, format)

			rt := runtime.New(hello.New(), function.LoadEnvironment(), logger)

			h := http.Header{}
			if id := cmd.String("request-id"); id != "" {
				h.Set(function.HeaderRequestID, id)
			}
			fctx := rt.NewContext(ctx, h)

			if err := rt.Initialize(fctx); err != nil {
				return err
			}
			if err := rt.Invoke(fctx, cmd.Root().Reader, cmd.Root().Writer); err != nil {
				return fmt.Errorf("invocation %s failed: %w", fctx.RequestID, err)
			}
			return nil
		},
	}
}
