package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/mark-c-hall/posterpalette/internal/proxyclient"
	"github.com/mark-c-hall/posterpalette/internal/ui"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	app := newApp(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

func newApp(logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:    "browse",
		Usage:   "Browse movie posters and theme the terminal from their colors",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "browse.toml",
			},
			&cli.StringFlag{
				Name:    "proxy-url",
				Usage:   "Base URL of the posterpalette proxy",
				Sources: cli.EnvVars("PROXY_BASE_URL"),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout for proxy calls",
			},
			&cli.StringFlag{
				Name:  "genre",
				Usage: "Initial genre id",
			},
			&cli.IntFlag{
				Name:  "start-year",
				Usage: "Initial lower release year bound",
			},
			&cli.IntFlag{
				Name:  "end-year",
				Usage: "Initial upper release year bound",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the UI owns the terminal",
				Value: "./tmp/browse.log",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Log at debug level",
			},
		},
		Action: browse,
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write an example configuration file",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := cmd.Root().String("config")
					if err := ui.CreateConfigFile(path); err != nil {
						return err
					}
					logger.Info("wrote config", "path", path)
					return nil
				},
			},
		},
	}
}

func browse(ctx context.Context, cmd *cli.Command) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	timeout, err := config.RequestTimeout()
	if err != nil {
		return err
	}

	// Logs go to a file so they do not interfere with TUI rendering.
	fileLogger, closeLog, err := newFileLogger(cmd.String("log-file"), cmd.Bool("debug"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer closeLog()

	client := proxyclient.New(config.ProxyURL, timeout)
	fileLogger.Info("starting browser", "proxy", client.BaseURL)

	model := ui.NewModel(ctx, client, config.InitialFilters(), fileLogger)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// loadConfig layers the TOML file, when present, over the defaults and then
// any flags or environment variables on top.
func loadConfig(cmd *cli.Command) (*ui.Config, error) {
	config := ui.DefaultConfig()
	path := cmd.String("config")
	if _, err := os.Stat(path); err == nil {
		config, err = ui.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	} else if cmd.IsSet("config") {
		return nil, fmt.Errorf("config file %s not found", path)
	}

	if cmd.IsSet("proxy-url") {
		config.ProxyURL = cmd.String("proxy-url")
	}
	if cmd.IsSet("timeout") {
		config.Timeout = cmd.Duration("timeout").String()
	}
	if cmd.IsSet("genre") {
		config.Filters.Genre = cmd.String("genre")
	}
	if cmd.IsSet("start-year") {
		config.Filters.StartYear = cmd.Int("start-year")
	}
	if cmd.IsSet("end-year") {
		config.Filters.EndYear = cmd.Int("end-year")
	}
	return config, nil
}
