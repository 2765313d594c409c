package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/panbanda/climdiag/pkg/config"
	"github.com/pelletier/go-toml"
	"github.com/urfave/cli/v2"
)

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Subcommands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Validate a configuration file",
				Description: `Validates a climdiag configuration file against the schema and
checks percentiles and masking operations.

Examples:
  climdiag config validate                  # Validates default config locations
  climdiag -c climdiag.toml config validate # Validates specific file`,
				Action: runConfigValidate,
			},
			{
				Name:   "show",
				Usage:  "Show the effective configuration as TOML",
				Action: runConfigShow,
			},
			{
				Name:      "init",
				Usage:     "Write a configuration file with the defaults",
				ArgsUsage: "[path]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing config file",
					},
				},
				Action: runConfigInit,
			},
		},
	}
}

func loadOptions(c *cli.Context) []config.LoadOption {
	if path := c.String("config"); path != "" {
		return []config.LoadOption{config.WithPath(path)}
	}
	return nil
}

func runConfigValidate(c *cli.Context) error {
	result, err := config.LoadConfig(loadOptions(c)...)
	if err != nil {
		fmt.Fprintln(c.App.Writer, color.RedString("Configuration validation failed:"))
		fmt.Fprintf(c.App.Writer, "  - %s\n", err)
		return err
	}

	if result.Source != "" {
		fmt.Fprintln(c.App.Writer, color.GreenString("Configuration valid: %s", result.Source))
	} else {
		fmt.Fprintln(c.App.Writer, color.YellowString("No config file found. Default configuration is valid."))
	}
	return nil
}

func runConfigShow(c *cli.Context) error {
	result, err := config.LoadConfig(loadOptions(c)...)
	if err != nil {
		return err
	}

	if result.Source != "" {
		fmt.Fprintf(c.App.Writer, "# Configuration from: %s\n\n", result.Source)
	} else {
		fmt.Fprintln(c.App.Writer, "# Default configuration (no config file found)")
	}

	content, err := toml.Marshal(result.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprint(c.App.Writer, string(content))
	return nil
}

func runConfigInit(c *cli.Context) error {
	outputPath := "climdiag.toml"
	if c.Args().Len() > 0 {
		outputPath = c.Args().First()
	}

	if _, err := os.Stat(outputPath); err == nil && !c.Bool("force") {
		return fmt.Errorf("config file %q already exists (use --force to overwrite)", outputPath)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}

	content, err := generateDefaultConfig()
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintln(c.App.Writer, color.GreenString("Created %s", outputPath))
	return nil
}

func generateDefaultConfig() (string, error) {
	content, err := toml.Marshal(config.DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("failed to marshal config to TOML: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# climdiag configuration\n")
	buf.WriteString("# Masking steps are added as [[mask.operations]] tables, e.g.\n")
	buf.WriteString("#   [[mask.operations]]\n")
	buf.WriteString("#   op = \"masked_greater\"\n")
	buf.WriteString("#   args = { value = 310.0 }\n\n")
	buf.Write(content)
	return buf.String(), nil
}
