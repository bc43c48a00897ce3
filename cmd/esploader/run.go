package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/moffa90/go-esploader/catalog"
	"github.com/moffa90/go-esploader/config"
	"github.com/moffa90/go-esploader/esploader"
	"github.com/moffa90/go-esploader/link"
	"github.com/moffa90/go-esploader/logger"
	"github.com/moffa90/go-esploader/provision"
)

func setupLogger(cfg config.Config) logger.Logger {
	log := logger.NewSlog(cfg.LogLevel(), logger.WithConsole(cfg.Log.Console))
	logger.SetLogger(log)
	return log
}

func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	fsys := os.DirFS(cfg.Images.Dir)
	layouts, err := cfg.Layouts(fsys)
	if err != nil {
		return nil, err
	}
	return catalog.Load(fsys, layouts)
}

func runFixture(ctx context.Context, configPath string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := setupLogger(cfg)

	images, err := loadCatalog(cfg)
	if err != nil {
		return fmt.Errorf("load images: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lnk := link.New(cfg.Link(), link.WithLogger(log.With("component", "link")))
	defer func() {
		if err := lnk.Close(); err != nil {
			log.Warn("link close failed", "error", err)
		}
	}()

	client := esploader.New(lnk,
		esploader.WithLogger(log.With("component", "esploader")),
		esploader.WithTimeout(cfg.Transfer.Timeout),
		esploader.WithRetries(cfg.Transfer.Retries),
	)

	opts := []provision.Option{
		provision.WithOutput(out),
		provision.WithLogger(log),
		provision.WithBaudRates(cfg.Serial.TransferBaudRate, cfg.Serial.BaudRate),
		provision.WithHeartbeatInterval(cfg.Heartbeat.Interval),
		provision.WithAbortOnTransferError(cfg.Transfer.AbortOnError),
		provision.WithHaltOnFailure(cfg.Transfer.HaltOnFailure),
	}
	if cfg.Pins.Indicator != "" {
		led, err := lnk.LookupPin(cfg.Pins.Indicator)
		if err != nil {
			log.Warn("indicator unavailable, running without heartbeat", "pin", cfg.Pins.Indicator, "error", err)
		} else {
			opts = append(opts, provision.WithIndicator(led))
		}
	}

	err = provision.New(lnk, client, images, opts...).Run(ctx)
	if errors.Is(err, context.Canceled) && len(provision.TransferErrors(err)) == 0 {
		// interrupted relay is the normal way out
		return nil
	}
	return err
}
