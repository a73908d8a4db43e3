package main

import (
	"context"
	"os"

	"starling-server/src/cli"
	"starling-server/src/config"
	"starling-server/src/logger"
)

func main() {
	ctx := context.Background()

	c := cli.New(func(ctx context.Context) (*cli.App, error) {
		cfg, err := config.Load(os.Getenv("ENV_FILE"))
		if err != nil {
			return nil, err
		}
		log := logger.New(cfg.LogLevel, cfg.LogFormat)
		return cli.Open(ctx, cfg, log)
	})
	os.Exit(c.Run(ctx, os.Args[1:]))
}
