package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"kahvi/internal/config"
	"kahvi/internal/logging"
	"kahvi/internal/store"
)

const (
	outputAuto  = "auto"
	outputTable = "table"
	outputJSON  = "json"
)

type commandContext struct {
	configFlag *string
	outputFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, outputFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		outputFlag: outputFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		if exists {
			c.configPath = resolved
		}
	})
	return c.config, c.configErr
}

// cliLogger logs warnings to stderr so they never mix with command output.
func (c *commandContext) cliLogger() *slog.Logger {
	logger, err := logging.New(logging.Options{Level: "warn", Format: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func (c *commandContext) openStore() (*store.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg, c.cliLogger())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// wantJSON reports whether output should be JSON for this command.
func (c *commandContext) wantJSON(cmd *cobra.Command) bool {
	mode := outputAuto
	if c.outputFlag != nil {
		mode = *c.outputFlag
	}
	switch mode {
	case outputJSON:
		return true
	case outputTable:
		return false
	default:
		return !isTerminal(cmd.OutOrStdout())
	}
}

func validateOutput(mode string) error {
	switch mode {
	case outputAuto, outputTable, outputJSON:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want auto, table, or json)", mode)
	}
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
