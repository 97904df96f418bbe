package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"dubline/internal/config"
	"dubline/internal/logging"
	"dubline/internal/pipeline"
)

// newEngine builds the pipeline for "run"; tests swap in fake collaborators.
var newEngine = pipeline.NewFromConfig

type commandContext struct {
	configFlag  *string
	workDirFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, workDirFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		workDirFlag: workDirFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(c.flagValue(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if workDir := c.flagValue(c.workDirFlag); workDir != "" {
			expanded, err := config.ExpandPath(workDir)
			if err != nil {
				c.configErr = fmt.Errorf("resolve work dir: %w", err)
				return
			}
			cfg.Paths.WorkDir = expanded
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
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
