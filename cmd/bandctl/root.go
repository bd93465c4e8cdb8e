package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"bandscope/internal/app"
	bscfg "bandscope/internal/config"
	"bandscope/internal/logger"

	"github.com/spf13/cobra"
)

// Version is the CLI version.
const Version = "0.3.0"

// cli holds what the subcommands share; the app is built lazily in
// PersistentPreRunE so --help never touches the stores.
type cli struct {
	configPath string
	storeDSN   string
	verbose    bool

	app *app.App
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "bandctl",
		Short:         "Resistor color band decoding and rule maintenance",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.app != nil {
				_ = c.app.Close()
			}
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default $"+bscfg.EnvConfigPath+" or "+bscfg.DefaultPath+")")
	flags.StringVar(&c.storeDSN, "db", "", "postgres connection string; overrides store.driver")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		c.decodeCmd(),
		c.encodeCmd(),
		c.analyzeCmd(),
		c.rulesCmd(),
		c.historyCmd(),
	)
	return root
}

func (c *cli) open() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if c.storeDSN != "" {
		cfg.Store.Driver = "postgres"
		cfg.Store.DSN = c.storeDSN
	}
	// the CLI never watches files
	cfg.Palette.Watch = false
	if c.verbose {
		cfg.App.LogLevel = "debug"
	} else {
		cfg.App.LogLevel = "warn"
	}
	logger.Configure(logger.Options{Level: cfg.App.LogLevel, Output: os.Stderr})
	a, err := app.NewApp(cfg)
	if err != nil {
		return fmt.Errorf("初始化失败: %w", err)
	}
	c.app = a
	return nil
}

// loadConfig falls back to defaults when no file was asked for and the
// default one does not exist.
func (c *cli) loadConfig() (*bscfg.Config, error) {
	path := bscfg.ResolvePath(c.configPath)
	if c.configPath == "" && os.Getenv(bscfg.EnvConfigPath) == "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return bscfg.Default(), nil
		}
	}
	cfg, err := bscfg.Load(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}
	return cfg, nil
}
