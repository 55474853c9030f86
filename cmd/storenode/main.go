// Command storenode runs a storage node: it brings every configured backend
// up, serves the node API and tears the backends down on SIGINT or SIGTERM.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/objectfs/storenode/internal/config"
	"github.com/objectfs/storenode/internal/node"
	"github.com/objectfs/storenode/pkg/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "storenode: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	logLevel := flag.String("log-level", "", "override global.log_level")
	check := flag.Bool("check", false, "validate the configuration and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *logLevel)
	if err != nil {
		return err
	}
	if *check {
		fmt.Printf("configuration ok: %d backends\n", len(cfg.Backends))
		return nil
	}

	logger, closer, err := utils.NewLogger(cfg.Logging())
	if err != nil {
		return err
	}
	defer closer.Close()

	app := fx.New(
		fx.Supply(cfg),
		fx.Supply(logger),
		fx.WithLogger(func() fxevent.Logger {
			l := &fxevent.SlogLogger{Logger: utils.Component(logger, "fx")}
			l.UseLogLevel(slog.LevelDebug)
			return l
		}),
		fx.StartTimeout(cfg.Node.StartTimeout+10*time.Second),
		fx.StopTimeout(cfg.Node.StopTimeout+5*time.Second),
		node.Module(),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

// loadConfig layers defaults, the file at path and STORENODE_* variables.
func loadConfig(path, logLevel string) (*config.Configuration, error) {
	cfg := config.NewDefault()
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Global.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
