package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/koding/multiconfig"
	cfg "github.com/nergy-se/solardivert/pkg/api/v1/config"
	"github.com/nergy-se/solardivert/pkg/app"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()
	err := Run(ctx)
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func Run(ctx context.Context) error {
	config := &cfg.CliConfig{}
	loaders := append(cfg.Loaders(os.Getenv("SOLARDIVERT_CONFIG")), &multiconfig.FlagLoader{})
	err := multiconfig.MultiLoader(loaders...).Load(config)
	if err != nil {
		return err
	}
	lvl, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		return fmt.Errorf("error setting logrus loglevel: %w", err)
	}
	logrus.SetLevel(lvl)

	err = config.Validate()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	app := app.New(config)

	err = app.Start(ctx)
	if err != nil {
		return err
	}

	app.Wait()
	return nil
}
