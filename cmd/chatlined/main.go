package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/fx"

	"chatline/internal/config"
	"chatline/internal/daemon"
)

func main() {
	configFlag := flag.String("config", "", "path to chatline.toml (default: <data dir>/chatline.toml)")
	flag.Parse()

	path := *configFlag
	if path == "" {
		path = filepath.Join(config.Default().DataDir, "chatline.toml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(cfg),
	)

	app.Run()
}
