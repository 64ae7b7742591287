package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/minishop-go/minishop/internal/config"
	"github.com/minishop-go/minishop/pkg/api"
	"github.com/minishop-go/minishop/pkg/host"
	"github.com/minishop-go/minishop/pkg/status"
	"github.com/minishop-go/minishop/pkg/store"
)

func watchCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the store status channel",
		Long: `Connect the status channel against the configured backend and print
every update: push events, fallback poll refreshes and stream state
changes. Useful for checking that a deployment's stream endpoint
actually delivers.

Examples:
  minishop watch
  minishop watch --transport=websocket
  MINISHOP_BASE_URL=https://shop.example.com/api minishop watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if transport != "" {
				cfg.Status.Transport = transport
			}
			return runWatch(cfg, newLogger(cfg))
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", "", `Push transport: "sse" or "websocket" (default from minishop.json)`)

	return cmd
}

func runWatch(cfg *config.Config, log *slog.Logger) error {
	dev := host.NewDevHost()
	tr := api.NewTransport(api.TransportConfig{
		BaseURL: cfg.BaseURL,
		Timeout: time.Duration(cfg.RequestTimeout),
		Auth:    host.NewAuth(dev, dev),
		Logger:  log,
	})
	client := api.NewClient(tr)

	var stream status.StreamTransport
	if cfg.Status.Transport == "websocket" {
		stream = status.NewWSTransport(tr)
	} else {
		stream = status.NewSSETransport(tr)
	}

	st := store.New()
	ch := status.New(status.Config{
		Store:          st,
		Fetcher:        client,
		Stream:         stream,
		PollInterval:   time.Duration(cfg.Status.PollInterval),
		ReconnectDelay: time.Duration(cfg.Status.ReconnectDelay),
		Logger:         log,
	})

	cancel := ch.Subscribe(func() {
		cur, ok := ch.Current()
		if !ok {
			return
		}
		mode := "open"
		if cur.IsSleepMode {
			mode = "sleeping"
		}
		fmt.Printf("%s  store=%s  stream=%s  message=%q\n",
			time.Now().Format(time.TimeOnly), mode, ch.State(), cur.SleepMessage)
	})
	defer cancel()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("watching status channel", "base_url", cfg.BaseURL, "transport", cfg.Status.Transport)
	ch.Start(ctx)
	<-ctx.Done()
	ch.Stop()
	return nil
}
