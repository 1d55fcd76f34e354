/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/voxel/engine"
	"github.com/spaghettifunk/voxel/engine/core"
	"github.com/spaghettifunk/voxel/testbed"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	flag.Parse()

	os.Exit(run(*configPath))
}

func run(configPath string) int {
	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		core.LogError("loading config: %s", err)
		return 1
	}
	appConfig, err := engine.NewApplicationConfig(cfg)
	if err != nil {
		core.LogError("%s", err)
		return 1
	}

	e, err := engine.New(testbed.NewTestGame(appConfig).Game)
	if err != nil {
		core.LogError("%+v", err)
		return 1
	}
	defer func() {
		if err := e.Shutdown(); err != nil {
			core.LogError("shutdown: %s", err)
		}
	}()

	if err := e.Initialize(); err != nil {
		core.LogError("initializing engine: %+v", err)
		return 1
	}

	// SIGINT and friends stop the loop between frames.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	if err := e.Run(ctx); err != nil {
		return 1
	}
	return 0
}
