package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/3s-rg-codes/fcstream/pkg/client"
	"github.com/goforj/godump"
	"github.com/urfave/cli/v3"
)

const defaultCallTimeout = 30 * time.Second

type invoker interface {
	Initialize(ctx context.Context, requestID string) error
	Invoke(ctx context.Context, payload []byte, requestID string) (*client.Result, error)
}

func invokeCommand() *cli.Command {
	return &cli.Command{
		Name:  "invoke",
		Usage: "call a running function",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "address",
				Value: "localhost:9000",
				Usage: "address of the function (localhost:50052 for grpc)",
			},
			&cli.StringFlag{
				Name:  "transport",
				Value: "http",
				Usage: "http or grpc",
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "payload passed to the function, - reads stdin",
			},
			&cli.StringFlag{
				Name:  "request-id",
				Usage: "request id, generated by the function when empty",
			},
			&cli.BoolFlag{
				Name:  "initialize",
				Usage: "call the initializer before invoking",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   defaultCallTimeout,
				Usage:   "example: 30s, 1m",
			},
			&cli.BoolFlag{
				Name:  "dump",
				Usage: "dump the invocation result instead of printing the body",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			payload, err := readPayload(cmd)
			if err != nil {
				return err
			}

			c, closeFn, err := newInvoker(cmd.String("transport"), cmd.String("address"))
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
			defer cancel()

			requestID := cmd.String("request-id")
			if cmd.Bool("initialize") {
				if err := c.Initialize(ctx, requestID); err != nil {
					return err
				}
			}

			res, err := c.Invoke(ctx, payload, requestID)
			if err != nil {
				return err
			}

			if cmd.Bool("dump") {
				godump.Dump(struct {
					RequestID string
					Body      string
				}{res.RequestID, string(res.Body)})
				return nil
			}
			_, err = cmd.Root().Writer.Write(res.Body)
			return err
		},
	}
}

func newInvoker(transport, address string) (invoker, func(), error) {
	switch transport {
	case "http":
		return client.NewHTTPClient(address), func() {}, nil
	case "grpc":
		c, err := client.NewGRPCClient(address)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { _ = c.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q, expected http or grpc", transport)
	}
}

func readPayload(cmd *cli.Command) ([]byte, error) {
	data := cmd.String("data")
	if data != "-" {
		return []byte(data), nil
	}
	payload, err := io.ReadAll(cmd.Root().Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload from stdin: %w", err)
	}
	return payload, nil
}
