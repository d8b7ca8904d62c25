package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"
)

const (
	logLevelFlag  = "log-level"
	logFormatFlag = "log-format"
	logFileFlag   = "log-file"
)

// logFlags are created per command since flags keep their parsed state.
func logFlags(withFile bool) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    logLevelFlag,
			Usage:   "log level (debug, info, warn, error)",
			Sources: cli.EnvVars("FC_LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    logFormatFlag,
			Usage:   "log format (text, json, dev)",
			Sources: cli.EnvVars("FC_LOG_FORMAT"),
		},
	}
	if withFile {
		flags = append(flags, &cli.StringFlag{
			Name:    logFileFlag,
			Usage:   "log file path (defaults to stdout)",
			Sources: cli.EnvVars("FC_LOG_FILE"),
		})
	}
	return flags
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "fcstream",
		Usage: "run and call the hello world stream function",
		Commands: []*cli.Command{
			serveCommand(),
			invokeCommand(),
			localCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
