package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

func newApp() *cli.App {
	return &cli.App{
		Name:     "climdiag",
		Usage:    "Weighted ensemble and climate field diagnostics",
		Version:  version,
		Metadata: make(map[string]interface{}),
		// Masking operations carry their own comma separated arguments.
		DisableSliceFlagSeparator: true,
		Description: `climdiag computes weighted percentiles of multi-model ensembles,
applies reference masks to gridded fields, and derives bias and
Eady growth rate diagnostics.

Inputs are JSON documents; "-" reads stdin.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"CLIMDIAG_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "text",
				Usage:   "Output format: text, json, markdown, toon",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "Log level: debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Value: "text",
				Usage: "Log format: text, json",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable the result cache",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Disable progress bars",
			},
			&cli.StringFlag{
				Name:  "pprof",
				Usage: "Write CPU and memory profiles to <prefix>.cpu.pprof and <prefix>.mem.pprof",
			},
		},
		Before: func(c *cli.Context) error {
			if prefix := c.String("pprof"); prefix != "" {
				cpuFile, err := os.Create(prefix + ".cpu.pprof")
				if err != nil {
					return fmt.Errorf("failed to create CPU profile: %w", err)
				}
				if err := pprof.StartCPUProfile(cpuFile); err != nil {
					cpuFile.Close()
					return fmt.Errorf("failed to start CPU profile: %w", err)
				}
				c.App.Metadata["pprofCPU"] = cpuFile
			}
			return nil
		},
		After: func(c *cli.Context) error {
			prefix := c.String("pprof")
			if prefix == "" {
				return nil
			}
			pprof.StopCPUProfile()
			if cpuFile, ok := c.App.Metadata["pprofCPU"].(*os.File); ok {
				cpuFile.Close()
			}

			memFile, err := os.Create(prefix + ".mem.pprof")
			if err != nil {
				return fmt.Errorf("failed to create memory profile: %w", err)
			}
			defer memFile.Close()

			runtime.GC()
			if err := pprof.WriteHeapProfile(memFile); err != nil {
				return fmt.Errorf("failed to write memory profile: %w", err)
			}
			return nil
		},
		Commands: []*cli.Command{
			quantileCmd(),
			percentilesCmd(),
			iqrCmd(),
			maskCmd(),
			biasCmd(),
			eadyCmd(),
			cacheCmd(),
			configCmd(),
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		color.Red("Error: %v", err)
		stop()
		os.Exit(1)
	}
}
