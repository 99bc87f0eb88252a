package main

import (
	"os"

	"github.com/urfave/cli/v3"

	"github.com/anantzoid/kernel-tuner/internal/logger"
)

var (
	jobPath     string
	langName    string
	deviceIndex int64
	iterations  int64
	verbose     bool
	outputDir   string
	logLevel    string
	logFormat   string
)

func commonJobFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "job",
			Aliases:     []string{"j"},
			Usage:       "path to the job file (YAML)",
			Required:    true,
			Destination: &jobPath,
		},
		&cli.StringFlag{
			Name:        "lang",
			Aliases:     []string{"l"},
			Usage:       "kernel language (auto, cuda, opencl, c)",
			Value:       "auto",
			Destination: &langName,
		},
		&cli.Int64Flag{
			Name:        "device",
			Aliases:     []string{"d"},
			Usage:       "device index",
			Destination: &deviceIndex,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (auto, pretty, json, text)",
			Value:       "auto",
			Destination: &logFormat,
		},
	}
}

// newLogger builds the logger from the logging flags, letting the config file
// fill in whichever ones the command line left untouched.
func newLogger(c *cli.Command, cfg Config) logger.Logger {
	level := logLevel
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		level = cfg.LogLevel
	}
	format := logFormat
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		format = cfg.LogFormat
	}

	parsed := logger.ParseLevel(level)
	switch format {
	case "pretty":
		return logger.Pretty(os.Stderr, parsed)
	case "json":
		return logger.JSON(os.Stderr, parsed)
	case "text":
		return logger.Text(os.Stderr, parsed)
	default:
		return logger.Auto(os.Stderr, parsed)
	}
}
